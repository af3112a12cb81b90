package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contentdex/contentdex/internal/config"
	"github.com/contentdex/contentdex/internal/contentstore"
	"github.com/contentdex/contentdex/internal/domain/query"
	"github.com/contentdex/contentdex/internal/elastic"
	"github.com/contentdex/contentdex/internal/indexer"
	logpkg "github.com/contentdex/contentdex/internal/logger"
	"github.com/contentdex/contentdex/internal/mapper"
	"github.com/contentdex/contentdex/internal/metrics"
	"github.com/contentdex/contentdex/internal/results"
	"github.com/contentdex/contentdex/internal/search"
	"github.com/contentdex/contentdex/internal/statestore"
	"github.com/contentdex/contentdex/internal/tracker"
	"github.com/contentdex/contentdex/internal/translator"
)

// defaultIndexables is what a sync covers when the caller does not restrict it.
var defaultIndexables = []string{"post", "user"}

// app is the composition root shared by all subcommands.
type app struct {
	env     string
	cfg     config.Config
	log     *zap.Logger
	store   statestore.Store
	es      *elastic.Client
	content *contentstore.Memory
	mapper  *mapper.Mapper
	tracker *tracker.Tracker
	indexer *indexer.Indexer
	search  *search.Service
	closers []func()
}

// indexerOptions are the per-invocation knobs of the sync pipeline.
type indexerOptions struct {
	noBulk bool
}

func newApp(opts indexerOptions) (*app, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.RegisterSyncMetrics()

	a := &app{env: env, cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	switch cfg.State.Driver {
	case "redis":
		rs, err := statestore.NewRedisStore(statestore.RedisConfig{
			Addrs:    cfg.State.Addrs,
			Password: cfg.State.Password,
			Key:      cfg.State.Key,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create redis state store: %w", err)
		}
		a.store = rs
		a.closers = append(a.closers, rs.Close)
	default:
		a.store = statestore.NewFileStore(cfg.State.Path)
	}

	a.es = elastic.NewClient(elastic.Config{
		URL:      cfg.Elasticsearch.URL,
		Username: cfg.Elasticsearch.Username,
		Password: cfg.Elasticsearch.Password,
		Timeout:  time.Duration(cfg.Elasticsearch.TimeoutSec) * time.Second,
	})

	if cfg.Content.Path != "" {
		a.content, err = contentstore.LoadFile(cfg.Content.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		a.content = contentstore.NewMemory()
	}

	a.mapper = mapper.New()

	a.tracker = tracker.New(a.store, time.Duration(cfg.Sync.StaleAfterMin)*time.Minute, log)

	a.indexer = indexer.New(a.content, a.es, a.mapper, a.tracker, indexer.Config{
		IndexPrefix: cfg.Elasticsearch.IndexPrefix,
		MaxAttempts: cfg.Sync.MaxAttempts,
		NoBulk:      opts.noBulk,
	}, log)
	a.indexer.RegisterKillSwitch(indexer.SkipNonPublic)
	a.indexer.RegisterKillSwitch(indexer.SkipUntitled)

	a.search = search.New(
		a.es,
		translator.New(query.DefaultWeighting()),
		results.NewMapper(),
		cfg.Elasticsearch.IndexPrefix,
		log,
	)

	return a, nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
