package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ryanmello/lilli/internal/config"
	"github.com/ryanmello/lilli/internal/handler"
	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/internal/metrics"
	"github.com/ryanmello/lilli/internal/orchestrator"
	"github.com/ryanmello/lilli/internal/registry"
	"github.com/ryanmello/lilli/internal/shop"
	"github.com/ryanmello/lilli/internal/state"
)

// app is everything a command needs to run turns.
type app struct {
	cfg     *config.Config
	catalog *handler.Catalog
	reg     *registry.Registry
	store   state.SnapshotStore
	metrics *metrics.Metrics
	logger  *orchestrator.DebugLogger
	orch    *orchestrator.Orchestrator
	drained chan struct{}

	stopEviction context.CancelFunc
	evictDone    chan struct{}

	observerMu sync.Mutex
	observer   func(orchestrator.TurnEvent)
}

// newApp assembles the completer, handlers, store, and orchestrator from cfg.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	logger, err := orchestrator.NewDebugLogger(cfg.Log.Path)
	if err != nil {
		return nil, err
	}
	a.logger = logger

	catalog, err := loadCatalog(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.catalog = catalog

	completer, err := buildCompleter(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	completer = a.metrics.Instrument(completer)

	store, err := openStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	records, err := openShop(context.Background(), cfg, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	handlers := catalog.Build(completer, shop.Tools(records)...)
	for _, h := range handlers {
		if th, ok := h.(*handler.ToolHandler); ok {
			th.WithMaxSteps(cfg.Shop.ToolSteps).OnToolCall(a.recordToolCall)
		}
	}
	reg, err := registry.Build(handlers)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build registry: %w", err)
	}
	reg.SetDebugLog(logger.Log)
	a.reg = reg

	orch, err := orchestrator.New(
		orchestrator.RequiredConfig{Registry: reg, Completer: completer},
		orchestrator.WithWindowSize(cfg.Session.WindowSize),
		orchestrator.WithLogger(logger),
		orchestrator.WithSnapshotStore(store),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithParallelDispatch(cfg.Dispatch.Parallel),
		orchestrator.WithHandlerTimeout(cfg.Dispatch.HandlerTimeout),
		orchestrator.WithRouting(routingConfig(cfg, catalog)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orch = orch
	a.drained = make(chan struct{})
	go a.drainEvents()

	evictCtx, cancel := context.WithCancel(context.Background())
	a.stopEviction = cancel
	a.evictDone = make(chan struct{})
	go func() {
		defer close(a.evictDone)
		orch.RunEviction(evictCtx, cfg.Session.IdleTimeout, 0)
	}()
	return a, nil
}

// recordToolCall logs and counts a handler's tool call.
func (a *app) recordToolCall(name string, call handler.ToolCall) {
	a.metrics.ObserveToolCall(call.Tool, call.Err)
	if call.Err != nil {
		a.logger.Log("[tool] %s %s args=%v error=%v", name, call.Tool, call.Arguments, call.Err)
		return
	}
	a.logger.Log("[tool] %s %s args=%v", name, call.Tool, call.Arguments)
}

// drainEvents copies turn events to the debug log and the observer until
// the orchestrator is closed.
func (a *app) drainEvents() {
	defer close(a.drained)
	for ev := range a.orch.Events() {
		switch {
		case ev.Error != nil:
			a.logger.Log("[event] %s session=%s handler=%s error=%v", ev.Type, ev.SessionID, ev.Handler, ev.Error)
		case ev.Handler != "":
			a.logger.Log("[event] %s session=%s handler=%s took=%s", ev.Type, ev.SessionID, ev.Handler, ev.Duration)
		default:
			a.logger.Log("[event] %s session=%s", ev.Type, ev.SessionID)
		}

		a.observerMu.Lock()
		fn := a.observer
		a.observerMu.Unlock()
		if fn != nil {
			fn(ev)
		}
	}
}

// observe sets the function that receives every turn event. nil stops it.
func (a *app) observe(fn func(orchestrator.TurnEvent)) {
	a.observerMu.Lock()
	a.observer = fn
	a.observerMu.Unlock()
}

// Close releases everything newApp opened and writes the metrics file.
func (a *app) Close() {
	if a.stopEviction != nil {
		a.stopEviction()
		<-a.evictDone
	}
	if a.orch != nil {
		a.orch.Close()
		<-a.drained
	}
	if a.cfg.Metrics.Path != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Path); err != nil {
			log.Printf("[lilli] WARNING: failed to write metrics: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Printf("[lilli] WARNING: failed to close store: %v", err)
		}
	}
	a.logger.Close()
}

func loadCatalog(cfg *config.Config) (*handler.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return handler.DefaultCatalog()
	}
	return handler.LoadCatalog(cfg.Catalog.Path)
}

// routingConfig fills unset routing handlers from the catalog.
func routingConfig(cfg *config.Config, catalog *handler.Catalog) orchestrator.RoutingConfig {
	rc := orchestrator.RoutingConfig{
		LowConfidenceThreshold: cfg.Routing.LowConfidenceThreshold,
		FallbackConfidenceCap:  cfg.Routing.FallbackConfidenceCap,
		FallbackHandler:        cfg.Routing.FallbackHandler,
		ClarificationHandler:   cfg.Routing.ClarificationHandler,
		HistoryTurns:           cfg.Routing.HistoryTurns,
	}
	if rc.FallbackHandler == "" {
		rc.FallbackHandler = catalog.Fallback
	}
	if rc.ClarificationHandler == "" {
		rc.ClarificationHandler = catalog.Clarification
	}
	return rc
}

// buildCompleter creates the provider client and wraps it with the
// configured timeout and retries.
func buildCompleter(cfg *config.Config) (llm.Completer, error) {
	var c llm.Completer

	switch cfg.LLM.Provider {
	case config.ProviderOffline:
		return newOfflineCompleter(), nil

	case config.ProviderOpenAI:
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY or use --offline)", err)
		}
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  key,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return nil, err
		}
		c = client

	default:
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w (set ANTHROPIC_API_KEY or use --offline)", err)
		}
		client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
			Model:         anthropic.Model(cfg.LLM.Model),
			APIKey:        key,
			MaxTokens:     int64(cfg.LLM.MaxTokens),
			UseAWSBedrock: cfg.LLM.Bedrock,
			AWSRegion:     cfg.LLM.AWSRegion,
			AWSProfile:    cfg.LLM.AWSProfile,
		})
		if err != nil {
			return nil, err
		}
		c = client
	}

	if cfg.LLM.Timeout > 0 {
		c = llm.WithTimeout(c, cfg.LLM.Timeout)
	}
	return llm.WithRetry(c, cfg.LLM.Retries, cfg.LLM.RetryBase), nil
}

// openShop returns the records the lookup tools read. The SQLite store
// serves them from its own tables, seeded on first use and refreshed from
// shop.data_path when one is set; other stores fall back to memory.
func openShop(ctx context.Context, cfg *config.Config, store state.SnapshotStore) (shop.Store, error) {
	db, ok := store.(*state.DB)
	if !ok {
		ds, err := shop.LoadDataset(cfg.Shop.DataPath)
		if err != nil {
			return nil, err
		}
		return shop.NewMemoryStore(ds), nil
	}

	n, err := db.CountProducts(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && cfg.Shop.DataPath == "" {
		return db, nil
	}
	ds, err := shop.LoadDataset(cfg.Shop.DataPath)
	if err != nil {
		return nil, err
	}
	if err := db.ImportShop(ctx, ds); err != nil {
		return nil, err
	}
	return db, nil
}

func openStore(cfg *config.Config) (state.SnapshotStore, error) {
	store, err := state.NewStore(state.Config{
		Type:          state.StoreType(cfg.Store.Type),
		SQLitePath:    cfg.Store.SQLitePath,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		RedisTTL:      cfg.Store.RedisTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	return store, nil
}
