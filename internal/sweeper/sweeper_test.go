package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/reelforge/reelforge/internal/clock"
	creditdomain "github.com/reelforge/reelforge/internal/credit/domain"
	creditrepository "github.com/reelforge/reelforge/internal/credit/repository"
	"github.com/reelforge/reelforge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("00:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 0, Minute: 5}, got)

	got, err = ParseTimeOfDay("23:59")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 59}, got)

	for _, bad := range []string{"", "24:00", "12:60", "noon", "12", "-1:00"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func newTestSweeper(t *testing.T, clk clock.Clock) (*Sweeper, creditdomain.Repository) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&creditdomain.CreditAccount{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := creditrepository.New(dbConn)
	sweep, err := New(Params{
		Log:   zap.NewNop(),
		Repo:  repo,
		Clock: clk,
		GenID: node,
		Config: Config{
			DailyAt:    TimeOfDay{Hour: 0, Minute: 0},
			MonthlyAt:  TimeOfDay{Hour: 0, Minute: 5},
			MonthlyDay: 1,
			Location:   time.UTC,
		},
	})
	require.NoError(t, err)
	return sweep, repo
}

func seedAccount(t *testing.T, repo creditdomain.Repository, node *snowflake.Node, userID string, mutate func(*creditdomain.CreditAccount)) {
	t.Helper()
	acc := &creditdomain.CreditAccount{
		ID:     node.Generate(),
		UserID: userID,
		Plan:   creditdomain.PlanFree,
	}
	mutate(acc)
	require.NoError(t, repo.Insert(context.Background(), acc))
}

func TestDailySweepResetsStaleCappedAccounts(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 10, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	sweep, repo := newTestSweeper(t, clk)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	yesterday := now.Add(-25 * time.Hour)
	today := creditdomain.DayStart(now).Add(time.Second)

	seedAccount(t, repo, node, "stale-free", func(a *creditdomain.CreditAccount) {
		a.DailyUsed = 5
		a.LastDailyReset = &yesterday
	})
	seedAccount(t, repo, node, "stale-monthly-plan", func(a *creditdomain.CreditAccount) {
		a.Plan = creditdomain.PlanMonthly
		a.DailyUsed = 3
		a.LastDailyReset = &yesterday
	})
	seedAccount(t, repo, node, "stale-unlimited", func(a *creditdomain.CreditAccount) {
		a.IsUnlimited = true
		a.DailyUsed = 9
		a.LastDailyReset = &yesterday
	})
	seedAccount(t, repo, node, "stale-lifetime", func(a *creditdomain.CreditAccount) {
		a.Plan = creditdomain.PlanLifetime
		a.DailyUsed = 4
		a.LastDailyReset = &yesterday
	})
	seedAccount(t, repo, node, "fresh", func(a *creditdomain.CreditAccount) {
		a.DailyUsed = 2
		a.LastDailyReset = &today
	})
	seedAccount(t, repo, node, "never-reset", func(a *creditdomain.CreditAccount) {
		a.DailyUsed = 1
	})

	run := sweep.newJobRun("daily_sweep")
	require.NoError(t, sweep.DailySweepJob(context.Background(), run))
	assert.Equal(t, int64(3), run.resetCount)

	for userID, wantUsed := range map[string]int64{
		"stale-free":         0,
		"stale-monthly-plan": 0,
		"never-reset":        0,
		"stale-unlimited":    9,
		"stale-lifetime":     4,
		"fresh":              2,
	} {
		acc, err := repo.FindByUserID(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, wantUsed, acc.DailyUsed, userID)
	}

	// Swept accounts carry a fresh stamp so a rerun is a no-op.
	rerun := sweep.newJobRun("daily_sweep")
	require.NoError(t, sweep.DailySweepJob(context.Background(), rerun))
	assert.Zero(t, rerun.resetCount)
}

func TestMonthlySweepOnlyTouchesMonthlyPlans(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 5, 10, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	sweep, repo := newTestSweeper(t, clk)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	lastMonth := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	seedAccount(t, repo, node, "stale-monthly", func(a *creditdomain.CreditAccount) {
		a.Plan = creditdomain.PlanMonthly
		a.MonthlyUsed = 40
		a.LastMonthlyReset = &lastMonth
	})
	seedAccount(t, repo, node, "stale-free", func(a *creditdomain.CreditAccount) {
		a.MonthlyUsed = 7
		a.LastMonthlyReset = &lastMonth
	})
	seedAccount(t, repo, node, "unlimited-monthly", func(a *creditdomain.CreditAccount) {
		a.Plan = creditdomain.PlanMonthly
		a.IsUnlimited = true
		a.MonthlyUsed = 12
		a.LastMonthlyReset = &lastMonth
	})

	run := sweep.newJobRun("monthly_sweep")
	require.NoError(t, sweep.MonthlySweepJob(context.Background(), run))
	assert.Equal(t, int64(1), run.resetCount)

	acc, err := repo.FindByUserID(context.Background(), "stale-monthly")
	require.NoError(t, err)
	assert.Zero(t, acc.MonthlyUsed)

	acc, err = repo.FindByUserID(context.Background(), "stale-free")
	require.NoError(t, err)
	assert.Equal(t, int64(7), acc.MonthlyUsed)

	acc, err = repo.FindByUserID(context.Background(), "unlimited-monthly")
	require.NoError(t, err)
	assert.Equal(t, int64(12), acc.MonthlyUsed)
}

func TestRunOnceRunsBothSweeps(t *testing.T) {
	now := time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	sweep, repo := newTestSweeper(t, clk)
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	stale := now.AddDate(0, -1, 0)
	seedAccount(t, repo, node, "user-1", func(a *creditdomain.CreditAccount) {
		a.Plan = creditdomain.PlanMonthly
		a.DailyUsed = 3
		a.MonthlyUsed = 80
		a.LastDailyReset = &stale
		a.LastMonthlyReset = &stale
	})

	require.NoError(t, sweep.RunOnce(context.Background()))

	acc, err := repo.FindByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, acc.DailyUsed)
	assert.Zero(t, acc.MonthlyUsed)
}

func TestNextDailyAfter(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	sweep, _ := newTestSweeper(t, clk)

	before := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), sweep.nextDailyAfter(before))

	exactly := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), sweep.nextDailyAfter(exactly))
}

func TestNextMonthlyAfter(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	sweep, _ := newTestSweeper(t, clk)

	midMonth := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC), sweep.nextMonthlyAfter(midMonth))

	justBefore := time.Date(2026, 4, 1, 0, 4, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC), sweep.nextMonthlyAfter(justBefore))

	// Day 31 clamps to the end of short months.
	sweep.cfg.MonthlyDay = 31
	inFebruary := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 5, 0, 0, time.UTC), sweep.nextMonthlyAfter(inFebruary))
}
