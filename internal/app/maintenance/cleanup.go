package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultLabSpec            = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultAssignSpec         = "@daily"
)

// Cleaner coordinates background maintenance tasks such as expiring stale lab
// bookings, pruning old audit logs, and reconciling domain based group assignments.
type Cleaner struct {
	db        *gorm.DB
	labs      *services.LabService
	audit     *services.AuditService
	assign    *services.AutoAssignService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool
	retention int

	labSchedule    string
	auditSchedule  string
	assignSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithLabSchedule overrides the cron specification for lab booking expiry.
func WithLabSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.labSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithAssignSchedule overrides the cron specification for auto-assign reconciliation.
func WithAssignSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.assignSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding maintenance job being skipped.
func NewCleaner(db *gorm.DB, labs *services.LabService, audit *services.AuditService, assign *services.AutoAssignService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:             db,
		labs:           labs,
		audit:          audit,
		assign:         assign,
		now:            time.Now,
		retention:      defaultAuditRetentionDays,
		labSchedule:    defaultLabSpec,
		auditSchedule:  defaultAuditSpec,
		assignSchedule: defaultAssignSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	// Determine whether any job is enabled.
	cleaner.enabled = cleaner.labs != nil || cleaner.audit != nil || (cleaner.assign != nil && cleaner.db != nil)

	return cleaner
}

// Start registers maintenance jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.labs != nil {
		if _, err := c.cron.AddFunc(c.labSchedule, func() {
			ctx := context.Background()
			if _, err := c.labs.ExpirePast(ctx); err != nil {
				c.log.Warn("lab booking expiry failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.assign != nil && c.db != nil {
		if _, err := c.cron.AddFunc(c.assignSchedule, func() {
			ctx := context.Background()
			if _, err := ReconcileAssignments(ctx, c.db, c.assign); err != nil {
				c.log.Warn("auto-assign reconciliation failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured maintenance routines sequentially. Primarily used
// in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.labs != nil {
		if _, err := c.labs.ExpirePast(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.assign != nil && c.db != nil {
		if _, err := ReconcileAssignments(ctx, c.db, c.assign); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// ReconcileStats summarises a reconciliation sweep across active tenants.
type ReconcileStats struct {
	Tenants  int
	Created  int
	Existing int
	Skipped  int
}

// ReconcileAssignments runs the domain based auto-assignment pass for every active
// tenant so users registered before a domain binding still pick up their group.
func ReconcileAssignments(ctx context.Context, db *gorm.DB, assign *services.AutoAssignService) (ReconcileStats, error) {
	if db == nil {
		return ReconcileStats{}, errors.New("reconcile assignments: db is required")
	}
	if assign == nil {
		return ReconcileStats{}, errors.New("reconcile assignments: auto-assign service is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var tenants []models.Tenant
	if err := db.WithContext(ctx).Where("is_active = ?", true).Find(&tenants).Error; err != nil {
		return ReconcileStats{}, fmt.Errorf("reconcile assignments: list tenants: %w", err)
	}

	stats := ReconcileStats{}
	for _, tenant := range tenants {
		report, err := assign.AutoAssignTenant(ctx, tenant.ID)
		if err != nil {
			return stats, fmt.Errorf("reconcile assignments: tenant %s: %w", tenant.ID, err)
		}
		stats.Tenants++
		stats.Created += report.Created
		stats.Existing += report.Existing
		stats.Skipped += report.Skipped
	}

	return stats, nil
}
