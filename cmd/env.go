package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/enrich"
	"github.com/sells-group/lead-enrich/internal/store"
	"github.com/sells-group/lead-enrich/pkg/anthropic"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

// enrichEnv holds the initialized store, cache, clients, and orchestrator
// shared by the enrich/batch/serve commands.
type enrichEnv struct {
	Store    store.Store
	Cache    *cache.Service
	Orbis    orbis.Client
	Enricher *enrich.Enricher
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnrichment sets up the store, cache, API clients, match policy, and
// the orchestrator. Callers should defer env.Close().
func initEnrichment(ctx context.Context) (*enrichEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cacheSvc, err := initCache(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	policy, err := initPolicy()
	if err != nil {
		_ = st.Close()
		_ = cacheSvc.Close()
		return nil, err
	}

	aiClient := anthropic.NewClient(cfg.Anthropic.Key)
	orbisClient := orbis.NewClient(cfg.Orbis.Key,
		orbis.WithBaseURL(cfg.Orbis.BaseURL),
		orbis.WithRateLimit(cfg.Orbis.RPS),
	)

	researcher := enrich.NewResearcher(aiClient, enrich.ResearchConfig{
		Model:            cfg.Anthropic.Model,
		MaxTokens:        cfg.Research.MaxTokens,
		WebSearchMaxUses: cfg.Research.WebSearchMaxUses,
		Timeout:          time.Duration(cfg.Research.TimeoutSecs) * time.Second,
	})
	adjudicator := enrich.NewAdjudicator(aiClient, enrich.AdjudicatorConfig{
		Model: cfg.Anthropic.Model,
	})
	matcher := enrich.NewMatcher(orbisClient, adjudicator, policy)
	fetcher := enrich.NewDetailsFetcher(orbisClient)

	enricher := enrich.NewEnricher(researcher, matcher, fetcher, cacheSvc, policy, enrich.Options{
		LeadTimeout: time.Duration(cfg.Pipeline.LeadTimeoutSecs) * time.Second,
		MatchTTL:    time.Duration(cfg.Cache.MatchTTLHours) * time.Hour,
		DetailsTTL:  time.Duration(cfg.Cache.DetailsTTLHours) * time.Hour,
	})

	return &enrichEnv{
		Store:    st,
		Cache:    cacheSvc,
		Orbis:    orbisClient,
		Enricher: enricher,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initCache(ctx context.Context) (*cache.Service, error) {
	switch cfg.Cache.Backend {
	case "redis":
		rs, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
		if err != nil {
			return nil, err
		}
		zap.L().Info("cache: redis backend", zap.String("prefix", cfg.Cache.KeyPrefix))
		return cache.New(rs), nil
	case "memory", "":
		return cache.New(cache.NewMemory()), nil
	default:
		return nil, eris.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func initPolicy() (*enrich.MatchPolicy, error) {
	if cfg.Match.PolicyPath != "" {
		return enrich.LoadPolicy(cfg.Match.PolicyPath)
	}

	policy := enrich.DefaultPolicy()
	if cfg.Match.ScoreLimit > 0 {
		policy.ScoreLimit = cfg.Match.ScoreLimit
	}
	if cfg.Match.FetchThreshold != "" {
		policy.FetchThreshold = cfg.Match.FetchThreshold
	}
	return policy, nil
}
