// Package engine owns the run state machine and executes the
// discover/visit/score/act/persist loop. Exactly one run can be active at a
// time; every reader goes through the engine's accessors.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jumperz11/Linkdinscrap/internal/automation"
	"github.com/jumperz11/Linkdinscrap/internal/bot"
	"github.com/jumperz11/Linkdinscrap/internal/discovery"
	"github.com/jumperz11/Linkdinscrap/internal/intel"
	"github.com/jumperz11/Linkdinscrap/internal/models"
	"github.com/jumperz11/Linkdinscrap/internal/pacing"
)

// RecordStore is the persistence the engine needs. *store.Store satisfies it.
type RecordStore interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	SaveProfile(ctx context.Context, p *models.ProfileRecord) error
	CreateRun(ctx context.Context, r *models.Run) error
	UpdateRun(ctx context.Context, r *models.Run) error
	GetTargetProfile(ctx context.Context) (*models.TargetProfile, error)
}

// CandidateSource yields candidates until exhaustion. discovery.Stream is the
// production implementation.
type CandidateSource interface {
	Next(ctx context.Context) (models.Candidate, bool, error)
}

// Progress is one observer update: counters plus the candidate being worked.
type Progress struct {
	RunID     string           `json:"run_id"`
	Status    models.RunStatus `json:"status"`
	Visited   int              `json:"visited"`
	Connected int              `json:"connected"`
	Followed  int              `json:"followed"`
	Current   string           `json:"current,omitempty"`
}

// Status is the poll view of the engine: idle or running, plus the current
// (or most recent) run snapshot.
type Status struct {
	State   string      `json:"state"`
	Run     *models.Run `json:"run,omitempty"`
	Current string      `json:"current,omitempty"`
}

const (
	StateIdle    = "idle"
	StateRunning = "running"
)

type Options struct {
	Session      automation.Session
	Scorer       intel.Scorer
	Store        RecordStore
	Pacer        *pacing.Pacer
	Log          *slog.Logger
	NoteTemplate string
	MaxNoteLen   int
}

type Engine struct {
	session      automation.Session
	scorer       intel.Scorer
	store        RecordStore
	pacer        *pacing.Pacer
	log          *slog.Logger
	noteTemplate string
	maxNoteLen   int

	mu      sync.Mutex
	run     *models.Run // non-nil only while Running
	last    *models.Run
	current string
	stop    bool
	done    chan struct{}

	// Seams for tests; production uses the defaults set in New.
	sleep     func(time.Duration)
	now       func() time.Time
	newSource func(keywords string) CandidateSource
	onEvent   func(Progress)
}

func New(opts Options) *Engine {
	e := &Engine{
		session:      opts.Session,
		scorer:       opts.Scorer,
		store:        opts.Store,
		pacer:        opts.Pacer,
		log:          opts.Log.With("module", "engine"),
		noteTemplate: opts.NoteTemplate,
		maxNoteLen:   opts.MaxNoteLen,
		sleep:        time.Sleep,
		now:          time.Now,
	}
	if e.maxNoteLen <= 0 {
		e.maxNoteLen = 280
	}
	if e.pacer == nil {
		e.pacer = pacing.New()
	}
	e.newSource = func(keywords string) CandidateSource {
		return discovery.New(e.session, keywords, opts.Log)
	}
	return e
}

// OnProgress registers the observer callback. Call before the first run.
func (e *Engine) OnProgress(fn func(Progress)) { e.onEvent = fn }

// StartRun validates preconditions and launches the run loop. It returns the
// run id immediately; the loop runs until a stop condition fires.
//
// Precondition order: config validation, no-active-run, authenticated
// session. Concurrent callers race on the run slot; exactly one wins, the
// rest get ConflictError.
func (e *Engine) StartRun(ctx context.Context, cfg models.RunConfig) (string, error) {
	if err := validateRunConfig(cfg); err != nil {
		return "", err
	}

	run := &models.Run{
		ID:        uuid.NewString(),
		Config:    cfg,
		Status:    models.StatusRunning,
		StartedAt: e.now(),
	}

	e.mu.Lock()
	if e.run != nil {
		id := e.run.ID
		e.mu.Unlock()
		return "", &bot.ConflictError{RunID: id}
	}
	// Claim the slot before the auth check so a concurrent start conflicts
	// instead of double-running.
	e.run = run
	e.stop = false
	e.current = ""
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		e.run = nil
		e.mu.Unlock()
	}

	ok, err := e.session.IsAuthenticated(ctx)
	if err != nil {
		release()
		return "", &bot.AuthError{Reason: err.Error()}
	}
	if !ok {
		release()
		return "", &bot.AuthError{Reason: "no valid session"}
	}

	if err := e.store.CreateRun(ctx, run); err != nil {
		release()
		return "", fmt.Errorf("create run: %w", err)
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.done = done
	e.mu.Unlock()

	go e.runLoop(context.WithoutCancel(ctx), run, done)
	e.log.Info("run started", "run_id", run.ID, "keywords", cfg.Keywords,
		"max_profiles", cfg.MaxProfiles, "max_duration", cfg.MaxDuration)
	return run.ID, nil
}

// RequestStop asks the active run to stop. Observed only at loop-iteration
// boundaries; an in-flight action finishes first. No-op when idle.
func (e *Engine) RequestStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		e.stop = true
		e.log.Info("stop requested", "run_id", e.run.ID)
	}
}

// Status returns the current engine view: the active run while running, the
// last finished run while idle.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		snapshot := *e.run
		return Status{State: StateRunning, Run: &snapshot, Current: e.current}
	}
	var last *models.Run
	if e.last != nil {
		snapshot := *e.last
		last = &snapshot
	}
	return Status{State: StateIdle, Run: last}
}

// Running reports whether a run is active. The trigger coordinator checks
// this before firing.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil
}

// Authenticated lets the trigger coordinator verify the session before a
// scheduled start.
func (e *Engine) Authenticated(ctx context.Context) (bool, error) {
	return e.session.IsAuthenticated(ctx)
}

// Wait blocks until the active run loop exits. Returns immediately when idle.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (e *Engine) runLoop(ctx context.Context, run *models.Run, done chan struct{}) {
	status := models.StatusCompleted
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("run loop panicked", "run_id", run.ID, "panic", r)
			status = models.StatusFailed
			e.bump(func() { run.Error = fmt.Sprintf("panic: %v", r) })
		}
		e.finish(ctx, run, status)
		close(done)
	}()

	target, err := e.store.GetTargetProfile(ctx)
	if err != nil {
		e.log.Warn("target profile unavailable, scoring without anchor", "err", err)
	}
	source := e.newSource(run.Config.Keywords)

	for {
		// Stop conditions, in priority order. An external stop wins over
		// the caps; caps complete the run.
		if e.stopRequested() {
			status = models.StatusStopped
			e.log.Info("run stopping on request", "run_id", run.ID)
			return
		}
		if run.Visited >= run.Config.MaxProfiles {
			e.log.Info("visit cap reached", "run_id", run.ID, "visited", run.Visited)
			return
		}
		if e.now().Sub(run.StartedAt) >= run.Config.MaxDuration {
			e.log.Info("duration cap reached", "run_id", run.ID, "elapsed", e.now().Sub(run.StartedAt))
			return
		}
		cand, ok, err := source.Next(ctx)
		if err != nil {
			e.log.Warn("discovery failed, treating as exhaustion", "run_id", run.ID, "err", err)
			return
		}
		if !ok {
			e.log.Info("candidates exhausted", "run_id", run.ID)
			return
		}
		// A stop may have arrived while discovery was advancing; honor it
		// before starting work on the popped candidate.
		if e.stopRequested() {
			status = models.StatusStopped
			e.log.Info("run stopping on request", "run_id", run.ID)
			return
		}

		e.setCurrent(cand.Name + " (" + cand.ExternalID + ")")

		// Dedup: a previously recorded profile is skipped and does not
		// count toward the visit cap.
		if seen, err := e.store.Exists(ctx, cand.ExternalID); err == nil && seen {
			e.log.Debug("skipping known profile", "id", cand.ExternalID)
			continue
		}

		snap, err := e.session.Visit(ctx, cand)
		if err != nil {
			e.log.Warn("visit failed", "id", cand.ExternalID, "err", err)
			e.pause(run)
			continue
		}
		e.bump(func() { run.Visited++ })

		ev, err := e.scorer.Score(ctx, snap, target, run.Config.Keywords)
		if err != nil {
			e.log.Warn("scorer failed, using keyword heuristic", "id", snap.ExternalID, "err", err)
			ev = intel.FallbackScore(snap, run.Config.Keywords)
		}

		action, message := e.act(ctx, run, snap, target, ev.Score)

		rec := &models.ProfileRecord{
			ExternalID: snap.ExternalID,
			RunID:      run.ID,
			Name:       snap.Name,
			Headline:   snap.Headline,
			Company:    snap.Company,
			Location:   snap.Location,
			Detail:     snap.About,
			Score:      ev.Score,
			Reason:     ev.Reason,
			Category:   models.Categorize(ev.Score),
			Action:     action,
			Message:    message,
			CreatedAt:  e.now(),
		}
		if err := e.store.SaveProfile(ctx, rec); err != nil {
			e.log.Warn("persist profile failed", "id", snap.ExternalID, "err", err)
		}
		if err := e.store.UpdateRun(ctx, run); err != nil {
			e.log.Warn("persist run counters failed", "run_id", run.ID, "err", err)
		}

		e.notify(run)
		e.log.Info("candidate processed", "id", snap.ExternalID, "score", ev.Score,
			"category", string(models.Categorize(ev.Score)), "action", string(action),
			"visited", run.Visited)

		e.pause(run)
	}
}

// act applies the action policy: at or above the threshold try connect (when
// enabled) then follow (when enabled), independently; each failure downgrades
// only that action. Below the threshold the profile is only viewed.
func (e *Engine) act(ctx context.Context, run *models.Run, snap *models.ProfileSnapshot, target *models.TargetProfile, score int) (models.Action, string) {
	if score < run.Config.ScoreThreshold {
		return models.ActionViewed, ""
	}
	action := models.ActionViewed
	var message string

	if run.Config.EnableConnect {
		msg, err := e.scorer.ComposeMessage(ctx, snap, target, e.maxNoteLen)
		if err != nil {
			e.log.Warn("compose failed, using template", "id", snap.ExternalID, "err", err)
			msg = intel.FallbackMessage(snap, e.noteTemplate, run.Config.Keywords, e.maxNoteLen)
		}
		if err := e.session.Connect(ctx, msg); err != nil {
			e.log.Warn("connect failed", "id", snap.ExternalID, "err", err)
		} else {
			action = models.ActionConnected
			message = msg
			e.bump(func() { run.Connected++ })
		}
	}

	if run.Config.EnableFollow {
		if err := e.session.Follow(ctx); err != nil {
			e.log.Warn("follow failed", "id", snap.ExternalID, "err", err)
		} else {
			e.bump(func() { run.Followed++ })
			if action != models.ActionConnected {
				action = models.ActionFollowed
			}
		}
	}
	return action, message
}

// bump applies a counter mutation under the lock so Status snapshots never
// observe a torn run.
func (e *Engine) bump(fn func()) {
	e.mu.Lock()
	fn()
	e.mu.Unlock()
}

// finish persists the terminal run record and returns the engine to idle.
func (e *Engine) finish(ctx context.Context, run *models.Run, status models.RunStatus) {
	ended := e.now()
	e.bump(func() {
		run.Status = status
		run.EndedAt = &ended
	})
	if err := e.store.UpdateRun(ctx, run); err != nil {
		e.log.Error("persist terminal run failed", "run_id", run.ID, "err", err)
	}

	e.mu.Lock()
	e.last = run
	e.run = nil
	e.current = ""
	e.mu.Unlock()

	e.notify(run)
	e.log.Info("run finished", "run_id", run.ID, "status", string(status),
		"visited", run.Visited, "connected", run.Connected, "followed", run.Followed)
}

// pause applies the delay model between iterations: a randomized delay plus
// an occasional forced micro-break.
func (e *Engine) pause(run *models.Run) {
	e.sleep(e.pacer.NextDelay(run.Config.MinDelay, run.Config.MaxDelay))
	if b := e.pacer.MaybeMicroBreak(); b > 0 {
		e.log.Info("taking a break", "duration", b)
		e.sleep(b)
	}
}

func (e *Engine) stopRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stop
}

func (e *Engine) setCurrent(s string) {
	e.mu.Lock()
	e.current = s
	e.mu.Unlock()
}

func (e *Engine) notify(run *models.Run) {
	if e.onEvent == nil {
		return
	}
	e.mu.Lock()
	p := Progress{
		RunID:     run.ID,
		Status:    run.Status,
		Visited:   run.Visited,
		Connected: run.Connected,
		Followed:  run.Followed,
		Current:   e.current,
	}
	e.mu.Unlock()
	e.onEvent(p)
}

func validateRunConfig(cfg models.RunConfig) error {
	if cfg.Keywords == "" {
		return &bot.ValidationError{Field: "keywords", Msg: "required"}
	}
	if cfg.MaxProfiles <= 0 {
		return &bot.ValidationError{Field: "max_profiles", Msg: "must be > 0"}
	}
	if cfg.MaxDuration <= 0 {
		return &bot.ValidationError{Field: "max_duration", Msg: "must be > 0"}
	}
	if cfg.ScoreThreshold < 0 || cfg.ScoreThreshold > 100 {
		return &bot.ValidationError{Field: "score_threshold", Msg: "must be 0-100"}
	}
	if cfg.MinDelay <= 0 || cfg.MaxDelay < cfg.MinDelay {
		return &bot.ValidationError{Field: "delay", Msg: "bounds must satisfy 0 < min <= max"}
	}
	return nil
}
