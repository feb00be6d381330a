package trigger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jumperz11/Linkdinscrap/internal/models"
)

type fakeStarter struct {
	mu      sync.Mutex
	running bool
	authed  bool
	starts  []string
}

func (f *fakeStarter) Running() bool { return f.running }

func (f *fakeStarter) Authenticated(ctx context.Context) (bool, error) { return f.authed, nil }

func (f *fakeStarter) StartRun(ctx context.Context, cfg models.RunConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, cfg.Keywords)
	return "run-1", nil
}

func testCoordinator(s *fakeStarter) *Coordinator {
	cfgFor := func(kw string) models.RunConfig {
		return models.RunConfig{Keywords: kw, ScoreThreshold: 75, MaxProfiles: 10,
			MaxDuration: time.Hour, MinDelay: time.Second, MaxDelay: 2 * time.Second}
	}
	return New(s, cfgFor, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustTime(t *testing.T, layout, v string) time.Time {
	t.Helper()
	ts, err := time.Parse(layout, v)
	require.NoError(t, err)
	return ts
}

func TestNextFireTime(t *testing.T) {
	rule := models.TriggerRule{
		Enabled: true,
		Times:   []string{"09:00"},
		Days:    []time.Weekday{time.Monday, time.Wednesday},
	}
	// Tuesday 10:00.
	now := mustTime(t, time.RFC3339, "2026-03-03T10:00:00Z")
	require.Equal(t, time.Tuesday, now.Weekday())

	fire, ok := NextFireTime(rule, now)
	require.True(t, ok)
	assert.Equal(t, time.Wednesday, fire.Weekday())
	assert.Equal(t, "2026-03-04T09:00:00Z", fire.Format(time.RFC3339))
}

func TestNextFireTimeSameDayLaterSlot(t *testing.T) {
	rule := models.TriggerRule{
		Enabled: true,
		Times:   []string{"08:00", "17:30"},
		Days:    []time.Weekday{time.Tuesday},
	}
	now := mustTime(t, time.RFC3339, "2026-03-03T10:00:00Z") // Tuesday 10:00

	fire, ok := NextFireTime(rule, now)
	require.True(t, ok)
	assert.Equal(t, "2026-03-03T17:30:00Z", fire.Format(time.RFC3339))
}

func TestNextFireTimeWrapsWeek(t *testing.T) {
	rule := models.TriggerRule{
		Enabled: true,
		Times:   []string{"09:00"},
		Days:    []time.Weekday{time.Monday},
	}
	now := mustTime(t, time.RFC3339, "2026-03-02T09:30:00Z") // Monday 09:30, just missed

	fire, ok := NextFireTime(rule, now)
	require.True(t, ok)
	assert.Equal(t, "2026-03-09T09:00:00Z", fire.Format(time.RFC3339), "wraps to next Monday")
}

func TestNextFireTimeDisabledOrEmpty(t *testing.T) {
	now := time.Now()

	_, ok := NextFireTime(models.TriggerRule{Enabled: false, Times: []string{"09:00"}, Days: []time.Weekday{time.Monday}}, now)
	assert.False(t, ok)

	_, ok = NextFireTime(models.TriggerRule{Enabled: true, Days: []time.Weekday{time.Monday}}, now)
	assert.False(t, ok)

	_, ok = NextFireTime(models.TriggerRule{Enabled: true, Times: []string{"09:00"}}, now)
	assert.False(t, ok)
}

func TestFireSkipsWhenRunning(t *testing.T) {
	s := &fakeStarter{running: true, authed: true}
	c := testCoordinator(s)

	c.fire("product manager")
	assert.Empty(t, s.starts, "active run means the slot is skipped, not queued")
}

func TestFireSkipsWhenUnauthenticated(t *testing.T) {
	s := &fakeStarter{authed: false}
	c := testCoordinator(s)

	c.fire("product manager")
	assert.Empty(t, s.starts)
}

func TestFireStartsRun(t *testing.T) {
	s := &fakeStarter{authed: true}
	c := testCoordinator(s)

	c.fire("product manager")
	require.Len(t, s.starts, 1)
	assert.Equal(t, "product manager", s.starts[0])
}

func TestApplyReplacesEntries(t *testing.T) {
	s := &fakeStarter{authed: true}
	c := testCoordinator(s)

	first := models.TriggerRule{
		Enabled:  true,
		Times:    []string{"09:00", "14:00"},
		Days:     []time.Weekday{time.Monday, time.Wednesday},
		Keywords: "golang",
	}
	require.NoError(t, c.Apply(first))
	assert.Len(t, c.entries, 4, "times x days schedules")

	second := models.TriggerRule{
		Enabled:  true,
		Times:    []string{"10:00"},
		Days:     []time.Weekday{time.Friday},
		Keywords: "rust",
	}
	require.NoError(t, c.Apply(second))
	assert.Len(t, c.entries, 1, "old entries removed atomically")
	assert.Len(t, c.cron.Entries(), 1, "no stale cron entries survive")
	assert.Equal(t, second, c.Rule())
}

func TestApplyDisabledRegistersNothing(t *testing.T) {
	s := &fakeStarter{authed: true}
	c := testCoordinator(s)

	require.NoError(t, c.Apply(models.TriggerRule{
		Enabled: true, Times: []string{"09:00"}, Days: []time.Weekday{time.Monday},
	}))
	require.NoError(t, c.Apply(models.TriggerRule{
		Enabled: false, Times: []string{"09:00"}, Days: []time.Weekday{time.Monday},
	}))
	assert.Empty(t, c.entries)
	assert.Empty(t, c.cron.Entries())
}

func TestCronSpecs(t *testing.T) {
	specs, err := cronSpecs(models.TriggerRule{
		Times: []string{"09:30"},
		Days:  []time.Weekday{time.Monday, time.Friday},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"30 9 * * 1", "30 9 * * 5"}, specs)

	_, err = cronSpecs(models.TriggerRule{Times: []string{"25:99"}})
	assert.Error(t, err)
}
