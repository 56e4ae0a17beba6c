package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/audit/masking"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/config"
	"github.com/smallbiznis/finsight/internal/observability/metrics"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RecorderParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    auditdomain.Repository
	Config  *config.AuditConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Recorder struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    auditdomain.Repository
	cfg     *config.AuditConfigHolder
	metrics *metrics.Metrics
}

func NewRecorder(p RecorderParams) *Recorder {
	return &Recorder{
		db:      p.DB,
		log:     p.Log.Named("audit.recorder"),
		clock:   p.Clock,
		repo:    p.Repo,
		cfg:     p.Config,
		metrics: p.Metrics,
	}
}

// Record inserts through tx so the entry commits or rolls back with the caller's
// mutation. A nil tx writes outside any transaction.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, rec auditdomain.Record) error {
	action := strings.TrimSpace(rec.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	outcome := rec.Outcome
	switch outcome {
	case "":
		outcome = auditdomain.OutcomeSuccess
	case auditdomain.OutcomeSuccess, auditdomain.OutcomeFailure, auditdomain.OutcomeDenied:
	default:
		return auditdomain.ErrInvalidOutcome
	}

	resourceType := strings.TrimSpace(rec.ResourceType)
	if resourceType == "" {
		resourceType = "unknown"
	}

	orgID, userID := r.resolveActor(ctx, rec.OrgID, rec.UserID)
	now := r.clock.Now().UTC()
	cfg := r.cfg.Get()

	entry := auditdomain.AuditLog{
		ID:            ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		OrgID:         orgID,
		UserID:        userID,
		Action:        action,
		ResourceType:  resourceType,
		ResourceID:    normalizeString(rec.ResourceID),
		Outcome:       outcome,
		Details:       datatypes.JSONMap(masking.MaskKeys(rec.Details, cfg.IsMasked)),
		CorrelationID: correlation.ExtractCorrelationID(ctx),
		CreatedAt:     now,
	}

	db := tx
	if db == nil {
		db = r.db
	}
	if err := r.repo.Insert(ctx, db, &entry); err != nil {
		r.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", auditdomain.ErrWriteFailed, err)
	}

	r.metrics.RecordAuditWrite(ctx, resourceType, string(outcome))
	return nil
}

func (r *Recorder) resolveActor(ctx context.Context, orgID, userID *snowflake.ID) (*snowflake.ID, *snowflake.ID) {
	principal, ok := orgcontext.PrincipalFromContext(ctx)
	if orgID == nil && ok && principal.OrgID != 0 {
		id := principal.OrgID
		orgID = &id
	}
	if userID == nil && ok && principal.UserID != 0 {
		id := principal.UserID
		userID = &id
	}
	return nonZero(orgID), nonZero(userID)
}

func nonZero(id *snowflake.ID) *snowflake.ID {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

func normalizeString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

var _ auditdomain.Recorder = (*Recorder)(nil)
