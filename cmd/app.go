package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/ai"
	"github.com/spigell/cv-screener/internal/ai/completion"
	"github.com/spigell/cv-screener/internal/ai/gemini"
	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/evaluation"
	"github.com/spigell/cv-screener/internal/extract"
	"github.com/spigell/cv-screener/internal/language"
	"github.com/spigell/cv-screener/internal/logger"
	"github.com/spigell/cv-screener/internal/prompts"
	"github.com/spigell/cv-screener/internal/render"
	"github.com/spigell/cv-screener/internal/screening"
	"github.com/spigell/cv-screener/internal/secrets"
	"github.com/spigell/cv-screener/internal/store"
	"github.com/spigell/cv-screener/internal/store/postgres"
	"github.com/spigell/cv-screener/internal/store/redisstore"
	"github.com/spigell/cv-screener/internal/structuring"
)

// application is what every command works with.
type application struct {
	config  *Config
	logger  *zap.Logger
	service *screening.Service
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// setup builds the logger, reads the config and wires the service. It exits
// the process on failure like the rest of the commands do.
func setup(ctx context.Context) *application {
	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		lg.Fatal("getting a config", zap.Error(err))
	}

	lg.Info("starting the cv-screener", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	lg.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	a := &application{config: config, logger: lg}
	if err := a.wire(ctx); err != nil {
		a.Close()
		lg.Fatal("building the service", zap.Error(err))
	}
	return a
}

func (a *application) wire(ctx context.Context) error {
	cfg := a.config

	generator, err := newGenerator(ctx, cfg.AI, a.logger)
	if err != nil {
		// Commands that do not structure resumes still work without a provider.
		a.logger.Warn("ai provider is not available", zap.Error(err))
		generator = nil
	}

	profiles, evaluations, postings, sessions, err := a.stores(ctx)
	if err != nil {
		return err
	}

	caches := screening.NewCaches(cfg.Cache)
	catalog, err := prompts.Load(language.Default)
	if err != nil {
		return fmt.Errorf("load prompt catalog: %w", err)
	}
	if missing := catalog.Missing(append(conversation.StepKeys(), prompts.AuxiliaryKeys()...)); len(missing) > 0 {
		a.logger.Warn("prompt catalog is incomplete, the default language is used instead", zap.Strings("missing", missing))
	}

	defaultLanguage, _ := language.ParseHint(cfg.Conversation.DefaultLanguage)
	engine := conversation.NewEngine(sessions, postings, catalog,
		conversation.Caches{Sessions: caches.Sessions, Lists: caches.Lists},
		conversation.Options{DefaultLanguage: defaultLanguage},
		a.logger.Named("conversation"),
	)

	var summarizer *evaluation.Summarizer
	if cfg.AI.Summary {
		summarizer = evaluation.NewSummarizer(generator, cfg.AI.Timeout, cfg.AI.MaxLogLength, a.logger.Named("summary"))
	}

	renderer, err := render.New(render.NewChromeBackend(cfg.Render.ChromePath), render.Options{
		Timeout: cfg.Render.Timeout,
		Paper:   render.Paper(cfg.Render.Paper),
	}, a.logger.Named("render"))
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	svc, err := screening.New(screening.Deps{
		Extractor: extract.New(extract.Options{
			Timeout:  cfg.Extract.Timeout,
			MaxBytes: cfg.Extract.MaxBytes,
		}, a.logger.Named("extract")),
		Structurer: structuring.New(generator, structuring.Options{
			Timeout:      cfg.AI.Timeout,
			MaxLogLength: cfg.AI.MaxLogLength,
		}, a.logger.Named("structuring")),
		Renderer:    renderer,
		Engine:      engine,
		Evaluator:   evaluation.NewEvaluator(summarizer, a.logger.Named("evaluation")),
		Profiles:    profiles,
		Evaluations: evaluations,
		Caches:      caches,
	}, a.logger)
	if err != nil {
		return err
	}

	a.service = svc
	return nil
}

// stores picks Postgres and Redis when configured and memory otherwise.
func (a *application) stores(ctx context.Context) (store.ProfileStore, store.EvaluationStore, store.PostingStore, store.SessionStore, error) {
	cfg := a.config.Storage
	mem := store.NewMemory()

	var (
		profiles    store.ProfileStore    = mem
		evaluations store.EvaluationStore = mem
		postings    store.PostingStore    = mem
		sessions    store.SessionStore    = mem
	)

	if cfg.PostgresURL != "" {
		pg, err := postgres.Connect(ctx, cfg.PostgresURL, a.logger.Named("postgres"))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		a.closers = append(a.closers, pg.Close)
		profiles, evaluations, postings = pg, pg, pg
	} else {
		a.logger.Warn("postgres is not configured, profiles and evaluations are kept in memory")
	}

	if cfg.RedisURL != "" {
		rs, err := redisstore.Connect(ctx, cfg.RedisURL, redisstore.Options{Retention: cfg.SessionRetention}, a.logger.Named("redis"))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = rs.Close() })
		sessions = rs
	}

	return profiles, evaluations, postings, sessions, nil
}

func newGenerator(ctx context.Context, cfg *AIConfig, lg *zap.Logger) (ai.Generator, error) {
	var (
		generator ai.Generator
		model     string
	)

	switch cfg.Provider {
	case "", "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name:   "gemini api key",
			Value:  cfg.Gemini.APIKey,
			File:   cfg.Gemini.APIKeyFile,
			EnvVar: "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		g, err := gemini.NewGenerator(ctx, gemini.Options{
			APIKey:      apiKey,
			Model:       cfg.Gemini.Model,
			MaxAttempts: cfg.MaxAttempts,
			JSON:        true,
		}, lg)
		if err != nil {
			return nil, err
		}
		generator, model = g, g.Model()
	case "completion":
		apiKey, err := secrets.Load(secrets.Source{
			Name:   "completion api key",
			Value:  cfg.Completion.APIKey,
			File:   cfg.Completion.APIKeyFile,
			EnvVar: "LLM_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.completion.api-key-file or LLM_API_KEY)", err)
		}
		c, err := completion.New(completion.Options{
			Endpoint:    cfg.Completion.Endpoint,
			APIKey:      apiKey,
			Model:       cfg.Completion.Model,
			MaxAttempts: cfg.MaxAttempts,
			JSON:        true,
		}, lg)
		if err != nil {
			return nil, err
		}
		generator, model = c, c.Model()
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	lg.Info("ai provider ready",
		zap.String(logger.FieldProvider, cfg.Provider),
		zap.String(logger.FieldModel, model),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
	)
	return ai.WithRateLimit(generator, cfg.RequestsPerMinute), nil
}
