package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/ai"
	"github.com/spigell/ats-scorer/internal/ai/gemini"
	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/cv"
	"github.com/spigell/ats-scorer/internal/events"
	"github.com/spigell/ats-scorer/internal/jobboard"
	"github.com/spigell/ats-scorer/internal/logger"
	"github.com/spigell/ats-scorer/internal/metrics"
	"github.com/spigell/ats-scorer/internal/scoring"
	"github.com/spigell/ats-scorer/internal/secrets"
	"github.com/spigell/ats-scorer/internal/storage/memory"
	"github.com/spigell/ats-scorer/internal/storage/postgres"
	"github.com/spigell/ats-scorer/internal/storage/sqlite"
)

// store is what every backend in internal/storage provides.
type store interface {
	candidates.Store
	scoring.ScoreStore
	Close() error
}

type memoryStore struct{ *memory.Store }

func (memoryStore) Close() error { return nil }

// deps holds everything a command may need. Fields a command did not ask for
// stay nil.
type deps struct {
	config     *Config
	logger     *zap.Logger
	store      store
	candidates *candidates.Service
	scoring    *scoring.Service
	metrics    *metrics.Manager
	closers    []func() error
}

type depsOptions struct {
	// evaluator builds the LLM evaluator; missing AI configuration is fatal.
	evaluator bool
	// publisher connects to AMQP when an url is configured.
	publisher bool
	metrics   bool
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func setup(ctx context.Context, opts depsOptions) *deps {
	l := newLogger()

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		l.Fatal("config is required")
	}

	d := &deps{config: config, logger: l}

	d.store, err = openStore(ctx, config.Storage, l)
	if err != nil {
		l.Fatal("opening storage", zap.Error(err), zap.String("driver", config.Storage.Driver))
	}
	d.closers = append(d.closers, d.store.Close)

	source, err := newJobBoard(config.JobBoard, l)
	if err != nil {
		l.Fatal("configuring job board", zap.Error(err))
	}
	d.candidates = candidates.NewService(d.store, source, l.Named("candidates"))

	scoringOpts := []scoring.Option{scoring.WithLogger(l.Named("scoring"))}

	if opts.metrics {
		d.metrics = metrics.NewManager()
		scoringOpts = append(scoringOpts, scoring.WithRecorder(d.metrics))
	}

	if opts.publisher && config.Events.AMQPURL != "" {
		publisher, err := events.Dial(config.Events.AMQPURL, config.Events.Exchange, l.Named("events"))
		if err != nil {
			l.Fatal("connecting to amqp", zap.Error(err))
		}
		d.closers = append(d.closers, publisher.Close)
		scoringOpts = append(scoringOpts, scoring.WithNotifier(publisher))
	}

	var evaluator scoring.Evaluator = unavailableEvaluator{}
	if opts.evaluator {
		evaluator, err = newEvaluator(ctx, config.AI, l)
		if err != nil {
			l.Fatal("configuring the ai evaluator",
				zap.Error(err),
				zap.String("hint", "set ai.gemini.api-key-file, ATS_AI_GEMINI_API_KEY or GEMINI_API_KEY and ai.gemini.model"),
			)
		}
	}

	extractor, err := newExtractor(ctx, config.CV, l)
	if err != nil {
		l.Fatal("configuring the cv extractor", zap.Error(err))
	}

	d.scoring = scoring.NewService(d.store, d.store, extractor, evaluator, scoringOpts...)
	return d
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("closing dependency", zap.Error(err))
		}
	}
	_ = d.logger.Sync()
}

func (d *deps) bulkOptions() scoring.BulkOptions {
	return scoring.BulkOptions{
		Concurrency:   d.config.Scoring.Concurrency,
		RatePerSecond: d.config.Scoring.RatePerSecond,
	}
}

func openStore(ctx context.Context, cfg *StorageConfig, l *zap.Logger) (store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		l.Warn("using in-memory storage, data is lost on exit")
		return memoryStore{memory.New()}, nil
	case "sqlite":
		return sqlite.Open(ctx, cfg.SQLitePath)
	case "postgres":
		url, err := secrets.Load(secrets.Source{
			Name:  "postgres url",
			Value: cfg.PostgresURL,
			File:  cfg.PostgresURLFile,
			Env:   "DATABASE_URL",
		})
		if err != nil {
			return nil, err
		}
		return postgres.Connect(ctx, postgres.Config{URL: url, MaxConns: cfg.MaxConns}, l.Named("postgres"))
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func newEvaluator(ctx context.Context, cfg *AIConfig, l *zap.Logger) (*ai.Evaluator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("%w: unsupported ai provider: %s", ai.ErrMissingConfiguration, cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, fmt.Errorf("%w: ai.gemini section is required", ai.ErrMissingConfiguration)
	}

	var apiKey string
	if cfg.Gemini.Backend != gemini.BackendVertexAI {
		key, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ai.ErrMissingConfiguration, err)
		}
		apiKey = key
	}

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:      apiKey,
		Model:       cfg.Gemini.Model,
		Backend:     cfg.Gemini.Backend,
		Project:     cfg.Gemini.Project,
		Location:    cfg.Gemini.Location,
		Temperature: cfg.Gemini.Temperature,
		Timeout:     cfg.Gemini.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return ai.NewEvaluator(generator, l.Named("ai"),
		ai.WithMaxCVChars(cfg.MaxCVChars),
		ai.WithMaxLogLength(cfg.Gemini.MaxLogLength),
	)
}

func newExtractor(ctx context.Context, cfg *CVConfig, l *zap.Logger) (*cv.Extractor, error) {
	opts := []cv.Option{cv.WithTimeout(cfg.Timeout), cv.WithMaxBytes(cfg.MaxBytes)}

	if s3cfg := cfg.S3; s3cfg != nil && (s3cfg.Endpoint != "" || s3cfg.AccessKey != "") {
		secret, err := secrets.Optional(secrets.Source{
			Name:  "s3 secret key",
			Value: s3cfg.SecretKey,
			File:  s3cfg.SecretKeyFile,
			Env:   "AWS_SECRET_ACCESS_KEY",
		})
		if err != nil {
			return nil, err
		}

		objects, err := cv.NewS3Objects(ctx, cv.S3Config{
			Endpoint:  s3cfg.Endpoint,
			Region:    s3cfg.Region,
			AccessKey: s3cfg.AccessKey,
			SecretKey: secret,
			PathStyle: s3cfg.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring s3: %w", err)
		}
		opts = append(opts, cv.WithObjectGetter(objects))
	}

	return cv.New(l.Named("cv"), opts...), nil
}

func newJobBoard(cfg *JobBoardConfig, l *zap.Logger) (*jobboard.Client, error) {
	token, err := secrets.Optional(secrets.Source{
		Name:  "job board token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "JOBBOARD_API_TOKEN",
	})
	if err != nil {
		return nil, err
	}

	client := jobboard.New(l.Named("jobboard"), cfg.BaseURL, token)
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	return client, nil
}

// unavailableEvaluator stands in for commands that never call the model.
type unavailableEvaluator struct{}

func (unavailableEvaluator) Evaluate(context.Context, scoring.EvaluationInput) (string, error) {
	return "", fmt.Errorf("%w: evaluator is not configured for this command", ai.ErrMissingConfiguration)
}
