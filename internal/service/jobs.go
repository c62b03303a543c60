package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"keyhouse/internal/middleware"
	"keyhouse/internal/observability"

	"github.com/google/uuid"
)

// Job names accepted by Jobs.Run.
const (
	JobCheckOverdueLoans        = "check-overdue-loans"
	JobExpirePendingPrecedents  = "expire-pending-precedents"
	JobReleaseUnpaidInspections = "release-unpaid-inspections"
	JobConfirmInspection        = "confirm-inspection"
)

// Jobs exposes the time-driven transitions as plain synchronous entry
// points for an external periodic scheduler.
type Jobs struct {
	inspections *InspectionService
	precedents  *PrecedentService
	loans       *LoanService
}

func NewJobs(inspections *InspectionService, precedents *PrecedentService, loans *LoanService) *Jobs {
	return &Jobs{inspections: inspections, precedents: precedents, loans: loans}
}

// Names lists the periodic jobs, excluding the per-inspection confirmation.
func (j *Jobs) Names() []string {
	names := []string{JobCheckOverdueLoans, JobExpirePendingPrecedents, JobReleaseUnpaidInspections}
	sort.Strings(names)
	return names
}

// Run executes one job. target is required by JobConfirmInspection only.
func (j *Jobs) Run(ctx context.Context, name string, now time.Time, target uuid.UUID) (int, error) {
	run := observability.StartJob(ctx, middleware.Logger, name)

	var affected int
	var err error
	switch name {
	case JobCheckOverdueLoans:
		affected, err = j.loans.CheckOverdueLoans(ctx, now)
	case JobExpirePendingPrecedents:
		affected, err = j.precedents.ExpirePending(ctx, now)
	case JobReleaseUnpaidInspections:
		affected, err = j.inspections.ReleaseUnpaidInspections(ctx, now)
	case JobConfirmInspection:
		if target == uuid.Nil {
			err = fmt.Errorf("%s requires an inspection id", name)
			break
		}
		_, err = j.inspections.ConfirmAndScheduleAfterPayment(ctx, target)
		if err == nil {
			affected = 1
		}
	default:
		err = fmt.Errorf("unknown job %q", name)
	}

	run.End(ctx, affected, err)
	return affected, err
}

// RunAll executes every periodic job and returns the first error.
func (j *Jobs) RunAll(ctx context.Context, now time.Time) error {
	var firstErr error
	for _, name := range j.Names() {
		if _, err := j.Run(ctx, name, now, uuid.Nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
