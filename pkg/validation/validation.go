// Package validation wraps a shared validator instance for request structs.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			return fieldName(f.Tag.Get("json"), f.Name)
		})
	})
	return instance
}

// Struct validates v against its `validate` tags. On failure it returns
// sentinel wrapped with the failing fields, e.g. "invalid_email: email=email".
func Struct(v any, sentinel error) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	fields := Fields(err)
	if len(fields) == 0 {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	pairs := make([]string, 0, len(fields))
	for field, tag := range fields {
		pairs = append(pairs, field+"="+tag)
	}
	sort.Strings(pairs)
	return fmt.Errorf("%w: %s", sentinel, strings.Join(pairs, ","))
}

// Fields maps each failing field to the tag that rejected it.
func Fields(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// Email reports whether value is a syntactically valid address.
func Email(value string) bool {
	return get().Var(value, "required,email") == nil
}

func fieldName(jsonTag, goName string) string {
	name, _, _ := strings.Cut(jsonTag, ",")
	if name == "" || name == "-" {
		return goName
	}
	return name
}

// Var validates a single value against tag.
func Var(value any, tag string) error {
	return get().Var(value, tag)
}
