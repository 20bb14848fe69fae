package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"echopaths/internal/api"
	"echopaths/pkg/config"
	"echopaths/pkg/db"
	"echopaths/pkg/db/maintenance"
	"echopaths/pkg/llm/gemini"
	"echopaths/pkg/llm/prompts"
	"echopaths/pkg/logging"
	"echopaths/pkg/narrator"
	"echopaths/pkg/probe"
	"echopaths/pkg/request"
	"echopaths/pkg/store"
	"echopaths/pkg/story"
	"echopaths/pkg/tracker"
	"echopaths/pkg/version"
)

const defaultConfigPath = "configs/echopaths.yaml"

var (
	configPath  = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig  = flag.Bool("init-config", false, "Generate default config file and exit")
	journeyPath = flag.String("journey", "", "Start a story from a YAML journey file")
	promptsDir  = flag.String("prompts", "", "Directory with prompt template overrides")
	silent      = flag.Bool("silent", false, "Time segments instead of playing them")
)

// options are the command line settings passed to run.
type options struct {
	ConfigPath  string
	JourneyPath string
	PromptsDir  string
	Silent      bool
}

func main() {
	flag.Parse()

	// .env is optional; the environment wins.
	_ = godotenv.Load()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath:  *configPath,
		JourneyPath: *journeyPath,
		PromptsDir:  *promptsDir,
		Silent:      *silent,
	}
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Silent {
		appCfg.Audio.Backend = "silent"
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("EchoPaths Started", "version", version.Version)

	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	st := store.NewSQLiteStore(dbConn)
	defer st.Close()

	if err := maintenance.Run(ctx, dbConn, maintenance.DefaultOptions()); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	metrics, metricsHandler, shutdownMetrics, err := tracker.InitProvider()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			slog.Warn("Metrics shutdown failed", "error", err)
		}
	}()
	tr := tracker.New(metrics)

	settings := config.NewProvider(appCfg, st)

	llmClient, err := gemini.NewClient(appCfg.LLM, tr)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	promptMgr, err := prompts.NewManager(opts.PromptsDir)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	speech, err := initSpeech(appCfg, tr)
	if err != nil {
		return err
	}
	player := initPlayer(appCfg, settings.Volume(ctx))
	defer player.Shutdown()

	if err := runProbes(ctx, appCfg, llmClient, dbConn, opts.JourneyPath); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	narr := narrator.NewClient(llmClient, promptMgr, speech.Primary, narratorOptions(appCfg, speech, st, tr))
	coord := story.NewCoordinator(narr, player, coordinatorOptions(ctx, appCfg, settings, st, tr))

	srv := api.NewServer(
		appCfg.Server.Address,
		api.NewStoryHandler(coord, st, player),
		api.NewSettingsHandler(settings, st, player, speech.Primary, narr),
		api.NewStatsHandler(tr),
		metricsHandler,
		cancel,
	)
	srv.Handler = loggingMiddleware(srv.Handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return runServerLifecycle(gctx, srv) })
	if opts.JourneyPath != "" {
		g.Go(func() error {
			startJourney(gctx, coord, opts.JourneyPath)
			return nil
		})
	}
	return g.Wait()
}

func runProbes(ctx context.Context, cfg *config.Config, llmClient probe.HealthChecker, dbConn *db.DB, journey string) error {
	llmProbe := probe.LLM(llmClient)
	if os.Getenv("TEST_MODE") != "" {
		llmProbe.Critical = false
	}
	probes := []probe.Probe{
		llmProbe,
		probe.Database(dbConn),
		probe.Writable("Log Directory", filepath.Dir(cfg.Log.Server.Path)),
		probe.File("Journey File", journey),
	}
	return probe.AnalyzeResults(probe.Run(ctx, probes))
}

// startJourney starts a story from a journey file. Failures are logged;
// the server keeps running so the story can be retried over the API.
func startJourney(ctx context.Context, coord *story.Coordinator, path string) {
	j, err := loadJourney(path)
	if err != nil {
		slog.Error("Failed to load journey", "path", path, "error", err)
		return
	}
	snap, err := coord.Start(ctx, *j)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("Failed to start story", "path", path, "error", err)
		}
		return
	}
	slog.Info("Story started from journey file", "id", snap.ID, "segments", snap.TotalSegments)
}

func coordinatorOptions(ctx context.Context, cfg *config.Config, settings config.Provider, st store.StoryStore, tr *tracker.Tracker) story.Options {
	g := cfg.Generation
	return story.Options{
		Lookahead: g.Lookahead,
		Timeouts: story.Timeouts{
			Outline: g.OutlineTimeout.Std(),
			Text:    g.TextTimeout.Std(),
			Audio:   g.AudioTimeout.Std(),
		},
		Policies: story.Policies{
			Text:  retryPolicy("text", cfg.Retry.Text),
			Audio: retryPolicy("audio", cfg.Retry.Audio),
		},
		ContextChars:  g.ContextChars,
		SegmentLength: g.SegmentDuration.Std(),
		AutoPlay:      cfg.Audio.AutoPlay,
		Limiter:       request.NewLimiter(settings.MinInterval(ctx)),
		Settings:      settings,
		Archive:       st,
		Tracker:       tr,
	}
}

func narratorOptions(cfg *config.Config, speech speechProviders, cache store.CacheStore, tr *tracker.Tracker) narrator.Options {
	g := cfg.Generation
	opts := narrator.DefaultOptions()
	opts.Fallback = speech.Fallback
	opts.Backoff = request.NewProviderBackoff(cfg.Retry.Transport.BaseDelay.Std(), cfg.Retry.Transport.MaxDelay.Std())
	opts.Transport = *retryPolicy("transport", cfg.Retry.Transport)
	opts.Tracker = tr
	opts.SegmentSeconds = int(g.SegmentDuration.Std().Seconds())
	opts.WordsPerMinute = g.WordsPerMinute
	opts.PromptContextChars = g.PromptContextChars
	if cfg.TTS.Cache {
		opts.Cache = cache
	}
	return opts
}

// retryPolicy converts a config profile. Classification and retry hooks
// are attached by the consumer.
func retryPolicy(name string, p config.RetryProfile) *request.RetryPolicy {
	return &request.RetryPolicy{
		Name:        name,
		MaxAttempts: p.MaxAttempts,
		BaseDelay:   p.BaseDelay.Std(),
		MaxDelay:    p.MaxDelay.Std(),
		Jitter:      p.Jitter,
	}
}

func runServerLifecycle(ctx context.Context, srv *http.Server) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
