// Package trigger turns the persisted TriggerRule into recurring run-start
// requests. A fire while a run is active (or the session is stale) is
// skipped, never queued.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jumperz11/Linkdinscrap/internal/models"
)

// Starter is the slice of the engine the coordinator needs.
type Starter interface {
	Running() bool
	Authenticated(ctx context.Context) (bool, error)
	StartRun(ctx context.Context, cfg models.RunConfig) (string, error)
}

// ConfigFor builds the run config for a scheduled start; keywords come from
// the rule when set.
type ConfigFor func(keywords string) models.RunConfig

type Coordinator struct {
	starter   Starter
	configFor ConfigFor
	log       *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries []cron.EntryID
	rule    models.TriggerRule
}

func New(starter Starter, configFor ConfigFor, log *slog.Logger) *Coordinator {
	return &Coordinator{
		starter:   starter,
		configFor: configFor,
		log:       log.With("module", "trigger"),
		cron:      cron.New(),
	}
}

func (c *Coordinator) Start() { c.cron.Start() }

func (c *Coordinator) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// Apply replaces the registered triggers with the new rule's set, atomically:
// old entries are removed and new ones added under one lock, so no stale
// trigger survives an update.
func (c *Coordinator) Apply(rule models.TriggerRule) error {
	specs, err := cronSpecs(rule)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.entries {
		c.cron.Remove(id)
	}
	c.entries = c.entries[:0]
	c.rule = rule

	if !rule.Enabled {
		c.log.Info("trigger rule disabled, no schedules registered")
		return nil
	}
	keywords := rule.Keywords
	for _, spec := range specs {
		id, err := c.cron.AddFunc(spec, func() { c.fire(keywords) })
		if err != nil {
			return fmt.Errorf("register trigger %q: %w", spec, err)
		}
		c.entries = append(c.entries, id)
	}
	c.log.Info("trigger rule applied", "schedules", len(c.entries), "keywords", keywords)
	return nil
}

// Rule returns the active rule.
func (c *Coordinator) Rule() models.TriggerRule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rule
}

// fire is one scheduled slot. A missed slot is skipped, not deferred.
func (c *Coordinator) fire(keywords string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if c.starter.Running() {
		c.log.Info("scheduled run skipped, run already active")
		return
	}
	ok, err := c.starter.Authenticated(ctx)
	if err != nil || !ok {
		c.log.Warn("scheduled run skipped, session not authenticated", "err", err)
		return
	}
	id, err := c.starter.StartRun(ctx, c.configFor(keywords))
	if err != nil {
		c.log.Warn("scheduled run start failed", "err", err)
		return
	}
	c.log.Info("scheduled run started", "run_id", id)
}

// NextFireTime computes the soonest future fire for the rule from now,
// wrapping across the 7-day window. ok=false when the rule is disabled or
// has no times or days.
func NextFireTime(rule models.TriggerRule, now time.Time) (time.Time, bool) {
	if !rule.Enabled || len(rule.Times) == 0 || len(rule.Days) == 0 {
		return time.Time{}, false
	}
	days := map[time.Weekday]bool{}
	for _, d := range rule.Days {
		days[d] = true
	}
	times := make([]time.Time, 0, len(rule.Times))
	for _, t := range rule.Times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			continue
		}
		times = append(times, parsed)
	}
	if len(times) == 0 {
		return time.Time{}, false
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	for offset := 0; offset <= 7; offset++ {
		day := now.AddDate(0, 0, offset)
		if !days[day.Weekday()] {
			continue
		}
		for _, t := range times {
			fire := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
			if fire.After(now) {
				return fire, true
			}
		}
	}
	return time.Time{}, false
}

// cronSpecs expands times x days into 5-field cron expressions, one per
// time-of-day with the day set folded into the dow field.
func cronSpecs(rule models.TriggerRule) ([]string, error) {
	var specs []string
	for _, t := range rule.Times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			return nil, fmt.Errorf("bad trigger time %q: %w", t, err)
		}
		for _, d := range rule.Days {
			specs = append(specs, fmt.Sprintf("%d %d * * %d", parsed.Minute(), parsed.Hour(), int(d)))
		}
	}
	return specs, nil
}
