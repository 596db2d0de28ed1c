package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	appcfg "github.com/lysyi3m/news-sieve/app/cfg"
	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/credentials"
	"github.com/lysyi3m/news-sieve/app/delivery"
	"github.com/lysyi3m/news-sieve/app/oracle"
	"github.com/lysyi3m/news-sieve/app/pipeline"
	"github.com/lysyi3m/news-sieve/app/scheduler"
	"github.com/lysyi3m/news-sieve/app/sources"
	"github.com/lysyi3m/news-sieve/app/store"
	"github.com/lysyi3m/news-sieve/app/topics"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting News Sieve", "version", cfg.Version)

	loader := config.NewLoader(cfg.SettingsFile, cfg.SourcesDir)

	settings, err := loader.LoadSettings()
	if err != nil {
		slog.Error("Failed to load settings", "file", cfg.SettingsFile, "error", err)
		os.Exit(1)
	}

	sourceConfigs, err := loader.LoadSources()
	if err != nil {
		slog.Error("Failed to load source configurations", "dir", cfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded source configurations", "count", len(sourceConfigs))

	db, err := store.Open(cfg.StorePath, store.Retention{
		MaxAge:   time.Duration(settings.Retention.MaxAgeDays) * 24 * time.Hour,
		MaxItems: settings.Retention.MaxItems,
	})
	if err != nil {
		slog.Error("Failed to open state store", "path", cfg.StorePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	snapshot, err := db.Read()
	if err != nil {
		slog.Error("Failed to read persisted state", "error", err)
		os.Exit(1)
	}
	slog.Info("Restored persisted state", "delivered_items", len(snapshot.DeliveredItems),
		"active_topics", len(snapshot.ActiveTopics), "credentials", len(snapshot.CredentialStates))

	var oracleClient oracle.Client
	if cfg.OracleAPIKey != "" {
		oracleClient = oracle.NewHTTPClient(cfg.OracleEndpoint, cfg.OracleAPIKey, cfg.OracleModel, cfg.UserAgent)
	} else {
		slog.Warn("Oracle API key not set, evaluation stages are disabled")
	}

	var sink delivery.Sink
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sink = delivery.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	} else {
		slog.Warn("Telegram credentials not set, delivering to the log only")
		sink = delivery.NewLogSink()
	}

	httpClient := &http.Client{}

	rotator := buildRotator(sourceConfigs, snapshot, db, httpClient, cfg)

	tracker := topics.NewTracker(settings.TopicTracking, oracleClient, db)
	tracker.Restore(snapshot.ActiveTopics)

	configs := make(pipeline.SourceConfigs, len(sourceConfigs))
	for name, sc := range sourceConfigs {
		configs[name] = sc
	}

	adapters := buildAdapters(sourceConfigs, rotator, httpClient, cfg.UserAgent)

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Settings:   settings,
		Configs:    configs,
		Adapters:   adapters,
		Oracle:     oracleClient,
		Sink:       sink,
		Repo:       db,
		Rotator:    rotator,
		Tracker:    tracker,
		HTTPClient: httpClient,
		UserAgent:  cfg.UserAgent,
	})

	interval := time.Duration(settings.PollIntervalMs) * time.Millisecond
	slog.Info("Starting curation scheduler", "interval", interval, "sources", len(adapters))

	sched := scheduler.NewScheduler(orchestrator, interval)
	sched.Start()
	defer sched.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	slog.Info("Received signal, shutting down", "signal", sig.String())
}

// buildRotator pools the credential slots of all social sources into one
// rotation state machine. Returns nil when no social source is configured.
func buildRotator(configs map[string]*config.SourceConfig, snapshot *store.Snapshot,
	db *store.Store, httpClient *http.Client, cfg *appcfg.Cfg) *credentials.Rotator {

	var slots []config.CredentialConfig
	for _, sc := range configs {
		if sc.Kind == "social" {
			slots = append(slots, sc.Credentials...)
		}
	}
	if len(slots) == 0 {
		return nil
	}

	checker := sources.NewUsageClient(cfg.SocialUsageEndpoint, httpClient, cfg.UserAgent)
	return credentials.NewRotator(slots, snapshot.CredentialStates, db, checker)
}

// buildAdapters instantiates one adapter per configured source, in name
// order so batch position is stable across cycles.
func buildAdapters(configs map[string]*config.SourceConfig, rotator *credentials.Rotator,
	httpClient *http.Client, userAgent string) []pipeline.Adapter {

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	var adapters []pipeline.Adapter
	for _, name := range names {
		sc := configs[name]
		switch sc.Kind {
		case "rss":
			adapters = append(adapters, sources.NewRSS(sc, httpClient, userAgent))
		case "page":
			adapters = append(adapters, sources.NewPage(sc, httpClient, userAgent))
		case "social":
			adapters = append(adapters, sources.NewSocial(sc, rotator, httpClient, userAgent))
		default:
			slog.Warn("Unknown source kind, skipping", "source", sc.Name, "kind", sc.Kind)
		}
	}
	return adapters
}
