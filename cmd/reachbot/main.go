package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jumperz11/Linkdinscrap/internal/automation"
	"github.com/jumperz11/Linkdinscrap/internal/config"
	"github.com/jumperz11/Linkdinscrap/internal/engine"
	"github.com/jumperz11/Linkdinscrap/internal/intel"
	"github.com/jumperz11/Linkdinscrap/internal/logging"
	"github.com/jumperz11/Linkdinscrap/internal/models"
	"github.com/jumperz11/Linkdinscrap/internal/server"
	"github.com/jumperz11/Linkdinscrap/internal/store"
	"github.com/jumperz11/Linkdinscrap/internal/trigger"
)

func main() {
	// Global flags
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to config file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `reachbot - unattended LinkedIn outreach engine

Usage:
  reachbot [--config config.yaml] <command> [options]

Commands:
  login                      Ensure a logged-in session (cookies are reused)
  run [--keywords K]         Run one outreach session in the foreground
  serve                      Start the control server and trigger scheduler
  status                     Print recent runs and the next scheduled start
  analyze-target             Capture the logged-in user's profile for scoring

Examples:
  reachbot --config config.yaml login
  reachbot run --keywords "product manager saas"
  reachbot serve
`)
	}

	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log, recorder := logging.NewWithRecorder(cfg.Logging.Level, 200)
	log.Info("reachbot starting", "version", "0.1.0")
	log.Info("config loaded", "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Error("db migration failed", "err", err)
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	log.Info("executing command", "command", cmd)
	switch cmd {
	case "login":
		err = runLogin(ctx, cfg, log)
	case "run":
		err = runOnce(ctx, cfg, st, log)
	case "serve":
		err = runServe(ctx, cfg, st, log, recorder)
	case "status":
		err = runStatus(ctx, st)
	case "analyze-target":
		err = runAnalyzeTarget(ctx, cfg, st, log)
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Error("command failed", "cmd", cmd, "err", err)
		fmt.Fprintf(os.Stderr, "\n❌ Command failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "💡 Tip: Run with REACHBOT_LOG_LEVEL=debug for more details\n")
		os.Exit(1)
	}
	log.Info("command completed successfully", "cmd", cmd)
	fmt.Printf("\n✅ %s completed successfully\n", cmd)
}

func runLogin(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	sess, err := automation.NewRod(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	ok, err := sess.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in: set LINKEDIN_EMAIL and LINKEDIN_PASSWORD")
	}
	fmt.Println("Session is authenticated; cookies saved for reuse.")
	return nil
}

func runOnce(ctx context.Context, cfg *config.Config, st *store.Store, log *logging.Logger) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var keywords string
	fs.StringVar(&keywords, "keywords", cfg.Run.Keywords, "Search keywords for this session")
	if err := fs.Parse(flag.Args()[1:]); err != nil {
		return err
	}

	if !cfg.WithinActiveHours(time.Now()) {
		log.Warn("starting outside the configured active hours",
			"active_start", cfg.Pacing.ActiveStart, "active_end", cfg.Pacing.ActiveEnd)
	}

	sess, err := automation.NewRod(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	eng := engine.New(engine.Options{
		Session:      sess,
		Scorer:       intel.NewOpenAIScorer(cfg.Intel.BaseURL, cfg.Intel.Model),
		Store:        st,
		Log:          log,
		NoteTemplate: cfg.Templates.ConnectionNote,
		MaxNoteLen:   cfg.Intel.MaxMessageLen,
	})

	id, err := eng.StartRun(ctx, cfg.RunConfig(keywords))
	if err != nil {
		return err
	}
	fmt.Printf("Run %s started; Ctrl-C stops at the next profile boundary.\n", id)

	// Ctrl-C requests a graceful stop; the loop finishes the current profile.
	go func() {
		<-ctx.Done()
		eng.RequestStop()
	}()
	eng.Wait()

	run, err := st.GetRun(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s %s: visited %d, connected %d, followed %d\n",
		run.ID, run.Status, run.Visited, run.Connected, run.Followed)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, st *store.Store, log *logging.Logger, rec *logging.Recorder) error {
	sess, err := automation.NewRod(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	eng := engine.New(engine.Options{
		Session:      sess,
		Scorer:       intel.NewOpenAIScorer(cfg.Intel.BaseURL, cfg.Intel.Model),
		Store:        st,
		Log:          log,
		NoteTemplate: cfg.Templates.ConnectionNote,
		MaxNoteLen:   cfg.Intel.MaxMessageLen,
	})

	co := trigger.New(eng, cfg.RunConfig, log)
	rule, err := persistedOrConfigRule(ctx, cfg, st)
	if err != nil {
		return err
	}
	if err := co.Apply(rule); err != nil {
		return err
	}
	co.Start()
	defer co.Stop()

	srv := server.New(server.Options{
		Engine:   eng,
		Trigger:  co,
		Store:    st,
		Recorder: rec,
		Defaults: defaultsFromConfig(cfg),
		Port:     cfg.Server.Port,
		Log:      log,
	})
	if err := srv.Run(ctx); err != nil {
		return err
	}
	// An in-flight run outlives the HTTP shutdown; ask it to wind down too.
	eng.RequestStop()
	eng.Wait()
	return nil
}

func runStatus(ctx context.Context, st *store.Store) error {
	runs, err := st.RunsSince(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs in the last 7 days.")
	}
	for _, r := range runs {
		end := "-"
		if r.EndedAt != nil {
			end = r.EndedAt.Format("15:04")
		}
		fmt.Printf("%s  %-9s  %s–%s  keywords=%q visited=%d connected=%d followed=%d\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.StartedAt.Format("15:04"), end,
			r.Config.Keywords, r.Visited, r.Connected, r.Followed)
	}

	rule, err := st.GetTriggerRule(ctx)
	if err != nil {
		return err
	}
	if rule == nil {
		fmt.Println("Trigger: not configured")
		return nil
	}
	if next, ok := trigger.NextFireTime(*rule, time.Now()); ok {
		fmt.Printf("Trigger: next start %s\n", next.Format("Mon 2006-01-02 15:04"))
	} else {
		fmt.Println("Trigger: disabled")
	}
	return nil
}

func runAnalyzeTarget(ctx context.Context, cfg *config.Config, st *store.Store, log *logging.Logger) error {
	sess, err := automation.NewRod(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	ok, err := sess.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in: run `reachbot login` first")
	}

	target, err := sess.CurrentUserProfile(ctx)
	if err != nil {
		return err
	}
	if err := st.SaveTargetProfile(ctx, target); err != nil {
		return err
	}
	fmt.Printf("Target profile saved: %s — %s\n", target.Name, target.Headline)
	return nil
}

func persistedOrConfigRule(ctx context.Context, cfg *config.Config, st *store.Store) (models.TriggerRule, error) {
	if saved, err := st.GetTriggerRule(ctx); err != nil {
		return models.TriggerRule{}, err
	} else if saved != nil {
		return *saved, nil
	}
	return cfg.TriggerRule()
}

func defaultsFromConfig(cfg *config.Config) server.RunDefaults {
	return server.RunDefaults{
		Keywords:       cfg.Run.Keywords,
		ScoreThreshold: cfg.Run.ScoreThreshold,
		MaxProfiles:    cfg.Run.MaxProfiles,
		MaxDurationMin: cfg.Run.MaxDurationMinutes,
		MinDelayMs:     cfg.Pacing.MinDelayMs,
		MaxDelayMs:     cfg.Pacing.MaxDelayMs,
		EnableConnect:  cfg.Run.EnableConnect,
		EnableFollow:   cfg.Run.EnableFollow,
	}
}
