// Package sweeper zeroes elapsed usage windows in bulk on calendar
// boundaries. The request path resets windows lazily for accounts it
// touches; the sweeper covers everyone else so dormant accounts do not
// carry stale counters into a new day or month.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/reelforge/reelforge/internal/clock"
	creditdomain "github.com/reelforge/reelforge/internal/credit/domain"
	obsmetrics "github.com/reelforge/reelforge/internal/observability/metrics"
	"github.com/reelforge/reelforge/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("sweeper: missing dependencies")

// Daily sweeps cover every capped plan; monthly counters only move for
// monthly plans, so that sweep is narrower.
var (
	dailySweepPlans   = []creditdomain.Plan{creditdomain.PlanFree, creditdomain.PlanDaily, creditdomain.PlanMonthly}
	monthlySweepPlans = []creditdomain.Plan{creditdomain.PlanMonthly}
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   creditdomain.Repository
	Clock  clock.Clock
	GenID  *snowflake.Node
	Locker *ratelimit.Locker `optional:"true"`
	Config Config            `optional:"true"`
}

type Sweeper struct {
	log    *zap.Logger
	cfg    Config
	repo   creditdomain.Repository
	clock  clock.Clock
	genID  *snowflake.Node
	locker *ratelimit.Locker
}

func New(p Params) (*Sweeper, error) {
	if p.Log == nil || p.Repo == nil || p.Clock == nil || p.GenID == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		log:    p.Log.Named("sweeper").With(zap.String("component", "sweeper")),
		cfg:    p.Config.withDefaults(),
		repo:   p.Repo,
		clock:  p.Clock,
		genID:  p.GenID,
		locker: p.Locker,
	}, nil
}

func (s *Sweeper) runJob(parent context.Context, name string, fn func(ctx context.Context, run *jobRun) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	run := s.newJobRun(name)
	s.logJobStart(run)
	sweepMetrics := obsmetrics.Sweeper()
	sweepMetrics.IncJobRun(name)

	err := s.withLock(ctx, name, run, func(ctx context.Context) error {
		return fn(ctx, run)
	})
	sweepMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(run)
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout: the sweep is idempotent and the next
	// run picks up whatever was left.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		sweepMetrics.IncJobTimeout(name)
		sweepMetrics.IncJobError(name, err)
		s.log.Warn("sweep timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	sweepMetrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

// withLock serializes a sweep across replicas when redis is configured.
// A held lock means another replica is already sweeping, so this run is
// skipped. A redis failure does not block the sweep itself.
func (s *Sweeper) withLock(ctx context.Context, name string, run *jobRun, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := "sweeper:" + name
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.JobTimeout)
	if err != nil {
		s.log.Warn("sweep lock unavailable, running unguarded",
			zap.String("job", name),
			zap.Error(err),
		)
		return fn(ctx)
	}
	if !ok {
		obsmetrics.Sweeper().IncJobSkip(name)
		s.log.Info("sweep skipped, another replica holds the lock",
			zap.String("job", name),
			zap.String("run_id", run.runID),
		)
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("sweep lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// DailySweepJob zeroes daily counters for every capped account whose
// last daily reset predates today's boundary.
func (s *Sweeper) DailySweepJob(ctx context.Context, run *jobRun) error {
	now := s.clock.Now().In(s.cfg.Location)
	cutoff := creditdomain.DayStart(now)

	count, err := s.repo.ResetDailyWindows(ctx, dailySweepPlans, cutoff, now)
	if err != nil {
		return err
	}
	run.AddReset(count)
	obsmetrics.Sweeper().AddAccountsReset(obsmetrics.SweepWindowDaily, count)
	return nil
}

// MonthlySweepJob zeroes monthly counters for monthly-plan accounts
// whose last monthly reset predates this month's boundary.
func (s *Sweeper) MonthlySweepJob(ctx context.Context, run *jobRun) error {
	now := s.clock.Now().In(s.cfg.Location)
	cutoff := creditdomain.MonthStart(now)

	count, err := s.repo.ResetMonthlyWindows(ctx, monthlySweepPlans, cutoff, now)
	if err != nil {
		return err
	}
	run.AddReset(count)
	obsmetrics.Sweeper().AddAccountsReset(obsmetrics.SweepWindowMonthly, count)
	return nil
}

// RunOnce runs both sweeps immediately, regardless of schedule.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	return errors.Join(
		s.runJob(ctx, "daily_sweep", s.DailySweepJob),
		s.runJob(ctx, "monthly_sweep", s.MonthlySweepJob),
	)
}

// RunForever fires each sweep at its configured wall-clock moment until
// the context is canceled.
func (s *Sweeper) RunForever(ctx context.Context) {
	for {
		now := s.clock.Now().In(s.cfg.Location)
		nextDaily := s.nextDailyAfter(now)
		nextMonthly := s.nextMonthlyAfter(now)

		next := nextDaily
		if nextMonthly.Before(next) {
			next = nextMonthly
		}
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if next.Equal(nextDaily) {
			if err := s.runJob(ctx, "daily_sweep", s.DailySweepJob); err != nil {
				s.log.Warn("daily sweep failed", zap.Error(err))
			}
		}
		if next.Equal(nextMonthly) {
			if err := s.runJob(ctx, "monthly_sweep", s.MonthlySweepJob); err != nil {
				s.log.Warn("monthly sweep failed", zap.Error(err))
			}
		}
	}
}

// nextDailyAfter returns the first daily fire time strictly after now.
func (s *Sweeper) nextDailyAfter(now time.Time) time.Time {
	at := s.cfg.DailyAt
	candidate := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, s.cfg.Location)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// nextMonthlyAfter returns the first monthly fire time strictly after
// now, clamping the configured day to short months.
func (s *Sweeper) nextMonthlyAfter(now time.Time) time.Time {
	at := s.cfg.MonthlyAt
	candidate := s.monthlyFireTime(now.Year(), now.Month())
	if !candidate.After(now) {
		next := time.Date(now.Year(), now.Month(), 1, at.Hour, at.Minute, 0, 0, s.cfg.Location).AddDate(0, 1, 0)
		candidate = s.monthlyFireTime(next.Year(), next.Month())
	}
	return candidate
}

func (s *Sweeper) monthlyFireTime(year int, month time.Month) time.Time {
	at := s.cfg.MonthlyAt
	day := s.cfg.MonthlyDay
	lastDay := time.Date(year, month, 1, 0, 0, 0, 0, s.cfg.Location).AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, at.Hour, at.Minute, 0, 0, s.cfg.Location)
}
