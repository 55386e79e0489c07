package patterns

import (
	"context"

	"screener/internal/logger"
	pkgerrors "screener/pkg/errors"
)

type Service interface {
	Create(ctx context.Context, req CreatePatternRequest, meta ChangeMeta) (*Pattern, error)
	Get(ctx context.Context, id string) (*Pattern, error)
	List(ctx context.Context, filter ListFilter) ([]Pattern, error)
	Update(ctx context.Context, id string, req UpdatePatternRequest, meta ChangeMeta) (*Pattern, error)
	Delete(ctx context.Context, id string, meta ChangeMeta) error
	TopPatterns(ctx context.Context, limit int) ([]Pattern, error)
	AuditLogs(ctx context.Context, patternID string, limit int) ([]AuditLogEntry, error)
	RecentAuditLogs(ctx context.Context, limit int) ([]AuditLogEntry, error)
}

// ChangeMeta carries who performed a mutation and from where, for the
// audit trail.
type ChangeMeta struct {
	ChangedBy    string
	ChangeReason string
	IPAddress    string
}

// CacheInvalidator clears derived decision state when the pattern set
// changes. Backed by the decision cache, whose own generation counter
// lives with the backend, so the invalidation is visible to every
// instance and survives restarts.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

type service struct {
	repo      Repository
	validator *Validator
	store     *Store
	audit     *AuditLogger
	cache     CacheInvalidator
	logger    logger.Logger
}

type ServiceOption func(*service)

func WithAudit(audit *AuditLogger) ServiceOption {
	return func(s *service) {
		s.audit = audit
	}
}

func WithCacheInvalidator(cache CacheInvalidator) ServiceOption {
	return func(s *service) {
		s.cache = cache
	}
}

func NewService(repo Repository, store *Store, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		repo:      repo,
		validator: NewValidator(),
		store:     store,
		logger:    log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) Create(ctx context.Context, req CreatePatternRequest, meta ChangeMeta) (*Pattern, error) {
	if err := s.validator.ValidateOrError(req.Pattern, req.Type, req.TargetField); err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	pattern := &Pattern{
		Name:        req.Name,
		Description: req.Description,
		Pattern:     req.Pattern,
		Type:        req.Type,
		TargetField: req.TargetField,
		Priority:    req.Priority,
		IsActive:    isActive,
		CategoryID:  req.CategoryID,
	}

	if err := s.repo.Create(ctx, pattern); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, AuditLogEntry{
		PatternID:    pattern.ID,
		Action:       AuditActionCreate,
		NewValue:     pattern,
		ChangedBy:    meta.ChangedBy,
		ChangeReason: meta.ChangeReason,
		IPAddress:    meta.IPAddress,
	})

	gen := s.store.Bump()
	s.invalidateDecisions(ctx)
	s.logger.InfowCtx(ctx, "Pattern created",
		"pattern_id", pattern.ID, "type", pattern.Type, "generation", gen)

	return pattern, nil
}

func (s *service) Get(ctx context.Context, id string) (*Pattern, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Pattern, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdatePatternRequest, meta ChangeMeta) (*Pattern, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	old := *existing
	updated := applyUpdate(existing, req)

	if err := s.validator.ValidateOrError(updated.Pattern, updated.Type, updated.TargetField); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}

	action := AuditActionUpdate
	if old.IsActive != updated.IsActive {
		if updated.IsActive {
			action = AuditActionActivate
		} else {
			action = AuditActionDeactivate
		}
	}

	s.recordAudit(ctx, AuditLogEntry{
		PatternID:    updated.ID,
		Action:       action,
		OldValue:     old,
		NewValue:     updated,
		ChangedBy:    meta.ChangedBy,
		ChangeReason: meta.ChangeReason,
		IPAddress:    meta.IPAddress,
	})

	gen := s.store.Bump()
	s.invalidateDecisions(ctx)
	s.logger.InfowCtx(ctx, "Pattern updated",
		"pattern_id", updated.ID, "action", action, "generation", gen)

	return updated, nil
}

func applyUpdate(p *Pattern, req UpdatePatternRequest) *Pattern {
	updated := *p
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.Pattern != nil {
		updated.Pattern = *req.Pattern
	}
	if req.Type != nil {
		updated.Type = *req.Type
	}
	if req.TargetField != nil {
		updated.TargetField = *req.TargetField
	}
	if req.Priority != nil {
		updated.Priority = *req.Priority
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if req.CategoryID != nil {
		updated.CategoryID = req.CategoryID
	}
	return &updated
}

func (s *service) Delete(ctx context.Context, id string, meta ChangeMeta) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.recordAudit(ctx, AuditLogEntry{
		PatternID:    id,
		Action:       AuditActionDelete,
		OldValue:     existing,
		ChangedBy:    meta.ChangedBy,
		ChangeReason: meta.ChangeReason,
		IPAddress:    meta.IPAddress,
	})

	// The generation bump guarantees no cached decision keeps referring
	// to the deleted pattern.
	gen := s.store.Bump()
	s.invalidateDecisions(ctx)
	s.logger.InfowCtx(ctx, "Pattern deleted", "pattern_id", id, "generation", gen)

	return nil
}

func (s *service) TopPatterns(ctx context.Context, limit int) ([]Pattern, error) {
	return s.repo.TopPatterns(ctx, limit)
}

func (s *service) AuditLogs(ctx context.Context, patternID string, limit int) ([]AuditLogEntry, error) {
	if s.audit == nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithDetail("message", "audit logging is not enabled")
	}
	return s.audit.ListByPattern(ctx, patternID, limit)
}

func (s *service) RecentAuditLogs(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	if s.audit == nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithDetail("message", "audit logging is not enabled")
	}
	return s.audit.ListRecent(ctx, limit)
}

// invalidateDecisions advances the decision-cache generation alongside
// the in-process bump. The in-process generation resets on restart, so
// entries on a durable backend are only fenced off by the cache's own
// counter. A failed invalidation is logged; the next mutation retries.
func (s *service) invalidateDecisions(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to invalidate decision cache", "error", err)
	}
}

// recordAudit never fails the mutation; a missed audit row is logged
// and the write stands.
func (s *service) recordAudit(ctx context.Context, entry AuditLogEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogChange(ctx, entry); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record audit entry",
			"pattern_id", entry.PatternID, "action", entry.Action, "error", err)
	}
}
