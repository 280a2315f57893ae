// Package rentcat is the service layer of the catalog editor. It owns the
// collaborator interfaces and runs every editing operation through the same
// sequence: read, apply to a copy, validate, persist with a backup, record
// the activity and regenerate the site.
package rentcat

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rentcat/internal/catalog"
)

// Activity event names.
const (
	EventCategoryUpserted     = "category.upserted"
	EventCategoryDeleted      = "category.deleted"
	EventSubcategoryUpserted  = "subcategory.upserted"
	EventSubcategoryDeleted   = "subcategory.deleted"
	EventToolUpserted         = "tool.upserted"
	EventToolDeleted          = "tool.deleted"
	EventToolsToggled         = "tools.toggled"
	EventToolsPriceAdjusted   = "tools.price_adjusted"
	EventCatalogImported      = "catalog.imported"
	EventBackupRestored       = "backup.restored"
	EventRegenerationComplete = "regeneration.completed"
)

// Service coordinates the store, backups, generator and activity log.
type Service struct {
	store    CatalogStore
	backups  BackupRestorer
	regen    Regenerator
	activity ActivityRecorder
	logger   Logger
	clock    Clock
}

// NewService wires a Service. activity may be NopRecorder{}.
func NewService(store CatalogStore, backups BackupRestorer, regen Regenerator, activity ActivityRecorder, logger Logger, clock Clock) *Service {
	return &Service{
		store:    store,
		backups:  backups,
		regen:    regen,
		activity: activity,
		logger:   logger,
		clock:    clock,
	}
}

// MutationResult is returned by every editing operation once the new
// catalog is persisted, even when the regeneration that follows fails.
type MutationResult struct {
	Catalog      catalog.Catalog
	Affected     int
	SavedAt      time.Time
	Regeneration RegenerationResult
}

// Catalog returns the stored catalog.
func (s *Service) Catalog() (catalog.Catalog, error) {
	c, err := s.store.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return c, nil
}

// Export serializes the stored catalog.
func (s *Service) Export(format catalog.Format) ([]byte, error) {
	c, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	return catalog.Export(c, format)
}

func (s *Service) UpsertCategory(ctx context.Context, req catalog.CategoryRequest) (*MutationResult, error) {
	details := map[string]any{"name": req.Name, "original_slug": req.OriginalSlug}
	return s.mutate(ctx, EventCategoryUpserted, details, func(c catalog.Catalog) (catalog.Catalog, int, error) {
		out, err := catalog.UpsertCategory(c, req)
		return out, 1, err
	})
}

func (s *Service) DeleteCategory(ctx context.Context, categorySlug string) (*MutationResult, error) {
	details := map[string]any{"category": categorySlug}
	return s.mutate(ctx, EventCategoryDeleted, details, func(c catalog.Catalog) (catalog.Catalog, int, error) {
		out, err := catalog.DeleteCategory(c, categorySlug)
		return out, 1, err
	})
}

func (s *Service) UpsertSubcategory(ctx context.Context, req catalog.SubcategoryRequest) (*MutationResult, error) {
	details := map[string]any{"category": req.CategorySlug, "name": req.Name, "original_slug": req.OriginalSlug}
	return s.mutate(ctx, EventSubcategoryUpserted, details, func(c catalog.Catalog) (catalog.Catalog, int, error) {
		out, err := catalog.UpsertSubcategory(c, req)
		return out, 1, err
	})
}

func (s *Service) DeleteSubcategory(ctx context.Context, categorySlug, subcategorySlug string) (*MutationResult, error) {
	details := map[string]any{"category": categorySlug, "subcategory": subcategorySlug}
	return s.mutate(ctx, EventSubcategoryDeleted, details, func(c catalog.Catalog) (catalog.Catalog, int, error) {
		out, err := catalog.DeleteSubcategory(c, categorySlug, subcategorySlug)
		return out, 1, err
	})
}

func (s *Service) UpsertTool(ctx context.Context, req catalog.ToolRequest) (*MutationResult, error) {
	details := map[string]any{
		"tool_id":     req.ToolID,
		"category":    req.CategorySlug,
		"subcategory": req.SubcategorySlug,
	}
	if req.ID != nil {
		details["id"] = *req.ID
	}
	return s.mutate(ctx, EventToolUpserted, details, func(c catalog.Catalog) (catalog.Catalog, int, error) {
		out, err := catalog.UpsertTool(c, req)
		return out, 1, err
	})
}

func (s *Service) DeleteTool(ctx context.Context, categorySlug, subcategorySlug, toolID string) (*MutationResult, error) {
	details := map[string]any{"key": catalog.ToolKey(categorySlug, subcategorySlug, toolID)}
	return s.mutate(ctx, EventToolDeleted, details, func(c catalog.Catalog) (catalog.Catalog, int, error) {
		out, err := catalog.DeleteTool(c, categorySlug, subcategorySlug, toolID)
		return out, 1, err
	})
}

// BulkToggle enables or disables the tools named by composite keys.
// Unknown keys are ignored; Affected counts the tools that matched.
func (s *Service) BulkToggle(ctx context.Context, keys []string, enabled bool) (*MutationResult, error) {
	details := map[string]any{"keys": keys, "enabled": enabled}
	return s.mutate(ctx, EventToolsToggled, details, func(c catalog.Catalog) (catalog.Catalog, int, error) {
		out, n := catalog.BulkToggle(c, keys, enabled)
		return out, n, nil
	})
}

// BulkAdjustPrice adds delta to every numeric rate of the selected tools.
func (s *Service) BulkAdjustPrice(ctx context.Context, keys []string, delta decimal.Decimal) (*MutationResult, error) {
	details := map[string]any{"keys": keys, "delta": delta.String()}
	return s.mutate(ctx, EventToolsPriceAdjusted, details, func(c catalog.Catalog) (catalog.Catalog, int, error) {
		out, n := catalog.BulkAdjustPrice(c, keys, delta)
		return out, n, nil
	})
}

// Import replaces the whole catalog with a validated document.
func (s *Service) Import(ctx context.Context, raw []byte, format catalog.Format) (*MutationResult, error) {
	imported, err := catalog.Import(raw, format)
	if err != nil {
		return nil, err
	}
	stats := imported.Stats()
	details := map[string]any{
		"format":        string(format),
		"categories":    stats.Categories,
		"subcategories": stats.Subcategories,
		"tools":         stats.Tools,
	}
	return s.mutate(ctx, EventCatalogImported, details, func(catalog.Catalog) (catalog.Catalog, int, error) {
		return imported, stats.Tools, nil
	})
}

// RestoreBackup replaces the catalog with a named backup. The current
// document is backed up first, so a restore can itself be undone.
func (s *Service) RestoreBackup(ctx context.Context, name string) (*MutationResult, error) {
	restored, err := s.backups.Restore(name, s.store)
	if err != nil {
		return nil, fmt.Errorf("restoring backup %s: %w", name, err)
	}
	s.logger.Info("backup restored", "name", name)
	s.record(EventBackupRestored, map[string]any{"name": name})

	res := &MutationResult{Catalog: restored, Affected: restored.Stats().Tools, SavedAt: s.clock.Now()}
	return s.regenerate(ctx, res)
}

// Regenerate runs the generator directly.
func (s *Service) Regenerate(ctx context.Context, force bool) (RegenerationResult, error) {
	res, err := s.regen.Run(ctx, force)
	if err != nil {
		return res, fmt.Errorf("regenerating site: %w", err)
	}
	if res.Outcome == OutcomeCompleted {
		s.record(EventRegenerationComplete, map[string]any{"run_id": res.RunID, "forced": force})
	}
	return res, nil
}

type operation func(c catalog.Catalog) (catalog.Catalog, int, error)

// mutate applies op to the stored catalog and persists the result. Nothing
// is written when op or validation fails.
func (s *Service) mutate(ctx context.Context, event string, details map[string]any, op operation) (*MutationResult, error) {
	current, err := s.store.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	next, affected, err := op(current)
	if err != nil {
		return nil, err
	}
	if errs := catalog.Validate(next); len(errs) > 0 {
		s.logger.Warn("rejected invalid catalog", "event", event, "errors", errs.Error())
		return nil, &catalog.ValidationError{Errors: errs}
	}

	if err := s.store.Write(next, true); err != nil {
		return nil, fmt.Errorf("saving catalog: %w", err)
	}
	s.logger.Info("catalog saved", "event", event, "affected", affected)

	details["affected"] = affected
	s.record(event, details)

	return s.regenerate(ctx, &MutationResult{Catalog: next, Affected: affected, SavedAt: s.clock.Now()})
}

// regenerate runs the generator after a successful write. A failure is
// returned alongside the result: the catalog is already persisted.
func (s *Service) regenerate(ctx context.Context, res *MutationResult) (*MutationResult, error) {
	regen, err := s.Regenerate(ctx, false)
	res.Regeneration = regen
	if err != nil {
		s.logger.Error("regeneration failed after save", "run_id", regen.RunID, "error", err)
		return res, err
	}
	return res, nil
}

// record writes an activity row. The catalog is already saved, so a
// failing activity log is only reported.
func (s *Service) record(event string, details map[string]any) {
	if err := s.activity.Record(event, details); err != nil {
		s.logger.Warn("recording activity failed", "event", event, "error", err)
	}
}
