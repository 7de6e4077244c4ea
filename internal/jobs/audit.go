// Package jobs runs scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/metrics"
	"github.com/mmynk/groupledger/internal/models"
)

// GroupLister is the storage the audit reads from.
type GroupLister interface {
	ListActiveGroups(ctx context.Context) ([]*models.Group, error)
}

// Violation describes one group whose stored balances are inconsistent.
type Violation struct {
	GroupID string
	// Sum of the active members' balances.
	Sum decimal.Decimal
	// Drift lists members whose stored balance differs from a replay of the
	// group's history.
	Drift []string
}

// Auditor checks every active group for balance conservation.
type Auditor struct {
	groups  GroupLister
	logger  *slog.Logger
	timeout time.Duration
	cron    *cron.Cron
}

// NewAuditor creates an Auditor. Each run is bounded by timeout.
func NewAuditor(groups GroupLister, logger *slog.Logger, timeout time.Duration) *Auditor {
	return &Auditor{
		groups:  groups,
		logger:  logger,
		timeout: timeout,
		cron:    cron.New(),
	}
}

// Start schedules Run on spec (standard cron syntax or descriptors such as
// "@every 1h") and starts the scheduler.
func (a *Auditor) Start(spec string) error {
	_, err := a.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if _, err := a.Run(ctx); err != nil {
			a.logger.Error("Balance audit failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", spec, err)
	}
	a.cron.Start()
	a.logger.Info("Balance audit scheduled", "schedule", spec)
	return nil
}

// Stop stops the scheduler and waits for a running audit to finish or ctx
// to end.
func (a *Auditor) Stop(ctx context.Context) {
	select {
	case <-a.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Run audits every active group once. A bad group is logged and counted and
// the run continues with the next one.
func (a *Auditor) Run(ctx context.Context) ([]Violation, error) {
	groups, err := a.groups.ListActiveGroups(ctx)
	if err != nil {
		metrics.AuditRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var violations []Violation
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			metrics.AuditRuns.WithLabelValues("error").Inc()
			return violations, err
		}
		v, ok := auditGroup(g)
		if ok {
			continue
		}
		violations = append(violations, v)
		metrics.AuditViolations.Inc()
		a.logger.Error("Balance audit violation",
			"group_id", g.ID,
			"sum", v.Sum.String(),
			"drift", v.Drift,
		)
	}

	metrics.AuditRuns.WithLabelValues("ok").Inc()
	a.logger.Info("Balance audit finished", "groups", len(groups), "violations", len(violations))
	return violations, nil
}

func auditGroup(g *models.Group) (Violation, bool) {
	v := Violation{GroupID: g.ID}
	sum, conserved := calculator.CheckConservation(g)
	v.Sum = sum

	replayed := calculator.ReplayBalances(g)
	for _, m := range g.Members {
		if m.Balance.Sub(replayed[m.UserID]).Abs().GreaterThan(calculator.Tolerance) {
			v.Drift = append(v.Drift, m.UserID)
		}
	}
	return v, conserved && len(v.Drift) == 0
}
