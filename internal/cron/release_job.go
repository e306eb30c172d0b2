package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
)

const releaseSweepBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type releaseWorkflow interface {
	Due(ctx context.Context, now time.Time, limit int) ([]models.FundRelease, error)
	EvaluateAndAdvance(ctx context.Context, releaseID uuid.UUID) (*models.FundRelease, error)
}

// ReleaseSweepJobParams configures the scheduled fund-release sweep.
type ReleaseSweepJobParams struct {
	Logger    *logger.Logger
	Releases  releaseWorkflow
	BatchSize int
}

// NewReleaseSweepJob constructs the job that advances due fund releases.
func NewReleaseSweepJob(params ReleaseSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Releases == nil {
		return nil, fmt.Errorf("release workflow required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = releaseSweepBatchSize
	}
	return &releaseSweepJob{
		logg:      params.Logger,
		releases:  params.Releases,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type releaseSweepJob struct {
	logg      *logger.Logger
	releases  releaseWorkflow
	batchSize int
	now       func() time.Time
}

func (j *releaseSweepJob) Name() string { return "fund-release-sweep" }

// Run walks due releases in batches and advances each through the eligibility
// pipeline. A release that fails stays due and is skipped for the rest of the
// run, so one stuck payout never blocks the batch.
func (j *releaseSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	seen := make(map[uuid.UUID]struct{})
	var (
		advanced int
		failed   int
		errs     error
	)

	for {
		due, err := j.releases.Due(ctx, now, j.batchSize)
		if err != nil {
			return fmt.Errorf("list due releases: %w", err)
		}

		progressed := false
		for _, release := range due {
			if _, ok := seen[release.ID]; ok {
				continue
			}
			seen[release.ID] = struct{}{}
			progressed = true

			if _, err := j.releases.EvaluateAndAdvance(ctx, release.ID); err != nil {
				failed++
				errs = multierr.Append(errs, fmt.Errorf("release %s: %w", release.ID, err))
				continue
			}
			advanced++
		}

		if !progressed || len(due) < j.batchSize {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":      len(seen),
		"advanced": advanced,
		"failed":   failed,
	})
	if errs != nil {
		j.logg.Warn(logCtx, "fund release sweep finished with failures")
		return errs
	}
	j.logg.Info(logCtx, "fund release sweep complete")
	return nil
}
