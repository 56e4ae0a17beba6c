package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	Get(ctx context.Context) (*Organization, error)
	Update(ctx context.Context, req UpdateOrganizationRequest) (*Organization, error)
	Delete(ctx context.Context) error
}

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// UpdateOrganizationRequest uses nil for "unchanged". Slug is accepted only to
// reject attempts to change it.
type UpdateOrganizationRequest struct {
	Name   *string `json:"name,omitempty"`
	Slug   *string `json:"slug,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrNameTaken            = errors.New("name_taken")
	ErrSlugTaken            = errors.New("slug_taken")
	ErrSlugImmutable        = errors.New("slug_immutable")
	ErrOrganizationNotFound = errors.New("organization_not_found")
)
