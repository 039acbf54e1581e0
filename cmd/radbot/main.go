// Package main is the entry point for radbot. A single binary runs the agent
// runtime, trigger sources, config plane, and the WebSocket gateway on top of
// shared infrastructure.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/admin"
	"github.com/radbot/radbot/internal/agent"
	"github.com/radbot/radbot/internal/common/config"
	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/credentials"
	"github.com/radbot/radbot/internal/db"
	"github.com/radbot/radbot/internal/events/bus"
	gatewayws "github.com/radbot/radbot/internal/gateway/websocket"
	"github.com/radbot/radbot/internal/llm"
	"github.com/radbot/radbot/internal/memory"
	"github.com/radbot/radbot/internal/orchestrator"
	"github.com/radbot/radbot/internal/scheduler"
	"github.com/radbot/radbot/internal/session"
	"github.com/radbot/radbot/internal/todo"
	"github.com/radbot/radbot/internal/tools"
	"github.com/radbot/radbot/internal/webhook"
)

func main() {
	// 1. Load boot configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting radbot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Event bus (in-memory by default, NATS when configured)
	var eventBus bus.EventBus
	if cfg.NATS.URL != "" {
		log.Info("Connecting to NATS...", zap.String("url", cfg.NATS.URL))
		natsEventBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		eventBus = natsEventBus
	} else {
		log.Info("Using in-memory event bus")
		eventBus = bus.NewMemoryEventBus(log)
	}
	defer eventBus.Close()

	// 4. Relational store
	pool, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err),
			zap.String("driver", cfg.Database.Driver))
	}
	defer pool.Close()
	log.Info("Database ready", zap.String("driver", cfg.Database.Driver))

	// ============================================
	// CONFIG AND CREDENTIAL PLANE
	// ============================================
	cipher, err := credentials.NewCipher(cfg.CredentialKey)
	if err != nil {
		log.Fatal("Invalid credential key", zap.Error(err))
	}
	credStore, err := credentials.NewStore(pool, cipher)
	if err != nil {
		log.Fatal("Failed to initialize credential store", zap.Error(err))
	}
	credService := credentials.NewService(credStore, log)

	configStore, err := configstore.NewStore(pool)
	if err != nil {
		log.Fatal("Failed to initialize config store", zap.Error(err))
	}
	resolver, err := configstore.NewResolver(ctx, configStore, configstore.BootLayer(cfg), credService, eventBus, log)
	if err != nil {
		log.Fatal("Failed to build config snapshot", zap.Error(err))
	}

	// ============================================
	// SEMANTIC MEMORY
	// ============================================
	var memoryAPI tools.MemoryAPI
	qdrantStore, memErr := memory.NewQdrantStore(cfg.Memory)
	if memErr == nil {
		embedder := memory.NewOllamaEmbedder(cfg.Agent.OllamaBaseURL, cfg.Memory.EmbedModel, cfg.Memory.EmbedDimension, log)
		memorySvc, err := memory.NewService(ctx, embedder, qdrantStore, log)
		if err != nil {
			memErr = err
		} else {
			memoryAPI = memorySvc
			defer qdrantStore.Close()
			log.Info("Semantic memory ready",
				zap.String("collection", cfg.Memory.Collection),
				zap.String("embed_model", cfg.Memory.EmbedModel))
		}
	}
	if memErr != nil {
		// Memory tools report the failure to the model; everything else
		// keeps working.
		log.Warn("Semantic memory unavailable", zap.Error(memErr))
		memoryAPI = unavailableMemory{err: memErr}
	}

	// ============================================
	// AGENT RUNTIME
	// ============================================
	modelResolver := llm.NewResolver(func() llm.Settings {
		snap := resolver.Snapshot()
		return llm.Settings{
			OllamaBaseURL:   snap.String("agent", "ollama_base_url", cfg.Agent.OllamaBaseURL),
			ProviderBaseURL: snap.String("agent", "provider_base_url", cfg.Agent.ProviderBaseURL),
			APIKey:          snap.String("agent", "provider_api_key", ""),
		}
	}, cfg.Agent.MaxConcurrentModelCalls, log)

	registry := tools.NewRegistry(log)
	tools.RegisterBuiltins(registry)

	sessionStore, err := session.NewStore(pool)
	if err != nil {
		log.Fatal("Failed to initialize session store", zap.Error(err))
	}
	sessionSvc := session.NewService(sessionStore, log)

	todoStore, err := todo.NewStore(pool)
	if err != nil {
		log.Fatal("Failed to initialize todo store", zap.Error(err))
	}
	todoSvc := todo.NewService(todoStore, log)

	specs, err := agent.LoadSpecs(resolver.Snapshot())
	if err != nil {
		log.Fatal("Invalid agent configuration", zap.Error(err))
	}
	runtime := agent.NewRuntime(specs, registry, modelResolver, resolver.Snapshot, memoryAPI, todoSvc, credService, log)
	log.Info("Agent runtime initialized", zap.Int("agents", len(specs)))

	// Agent section changes re-read model settings and the agent tree on the
	// next trigger.
	_, err = eventBus.Subscribe("config.changed.agent", func(ctx context.Context, event *bus.Event) error {
		modelResolver.InvalidateCache()
		specs, err := agent.LoadSpecs(resolver.Snapshot())
		if err != nil {
			log.Error("Ignoring invalid agent configuration", zap.Error(err))
			return nil
		}
		runtime.ReloadSpecs(specs)
		log.Info("Agent configuration reloaded", zap.Int("agents", len(specs)))
		return nil
	})
	if err != nil {
		log.Error("Failed to subscribe to agent config changes", zap.Error(err))
	}

	// ============================================
	// TRIGGER SOURCES
	// ============================================
	dispatcher := orchestrator.NewDispatcher(runtime, sessionSvc, eventBus, log)
	defer dispatcher.Close()

	schedStore, err := scheduler.NewStore(pool)
	if err != nil {
		log.Fatal("Failed to initialize scheduler store", zap.Error(err))
	}
	engine := scheduler.NewEngine(schedStore, todoStore, dispatcher, resolver.Snapshot, log)
	if err := engine.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler engine", zap.Error(err))
	}
	defer engine.Stop()
	schedSvc := scheduler.NewService(schedStore, engine, log)

	webhookStore, err := webhook.NewStore(pool)
	if err != nil {
		log.Fatal("Failed to initialize webhook store", zap.Error(err))
	}
	webhookSvc := webhook.NewService(webhookStore, log)
	receiver := webhook.NewReceiver(webhookStore, dispatcher, resolver.Snapshot, log)

	// ============================================
	// WEBSOCKET GATEWAY
	// ============================================
	hub := gatewayws.NewHub(eventBus, log)
	defer hub.Close()
	wsHandler := gatewayws.NewHandler(hub, sessionSvc, dispatcher, log)

	// ============================================
	// ADMIN SURFACE
	// ============================================
	checks := map[string]admin.Check{
		"ollama":   httpCheck(strings.TrimSuffix(cfg.Agent.OllamaBaseURL, "/") + "/api/version"),
		"provider": httpCheck(strings.TrimSuffix(cfg.Agent.ProviderBaseURL, "/") + "/models"),
		"bus": func(ctx context.Context) error {
			if !eventBus.IsConnected() {
				return errors.New("event bus disconnected")
			}
			return nil
		},
	}
	if memErr == nil {
		checks["qdrant"] = qdrantStore.Ping
	} else {
		initErr := memErr
		checks["qdrant"] = func(ctx context.Context) error { return initErr }
	}
	adminHandler := admin.NewHandler(cfg.AdminToken,
		credentials.NewHandler(credService, log),
		configstore.NewHandler(resolver, log),
		checks, log)

	// ============================================
	// HTTP SERVER
	// ============================================
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	session.NewHandler(sessionSvc, log).RegisterRoutes(router)
	todo.NewHandler(todoSvc, log).RegisterRoutes(router)
	scheduler.NewHandler(schedSvc, log).RegisterRoutes(router)
	webhook.NewHandler(webhookSvc, log).RegisterRoutes(router)
	receiver.RegisterRoutes(router)
	wsHandler.RegisterRoutes(router)
	adminHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "radbot"})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("Server listening",
			zap.String("addr", server.Addr),
			zap.String("websocket", "/ws/:session_id"),
			zap.String("health", "/health"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// ============================================
	// GRACEFUL SHUTDOWN
	// ============================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down radbot...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("radbot stopped")
}

// httpCheck probes a URL for reachability. Any HTTP response below 500
// counts as reachable; auth failures are a configuration problem, not an
// outage.
func httpCheck(url string) admin.Check {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("unexpected status %s", resp.Status)
		}
		return nil
	}
}

// unavailableMemory stands in for the memory service when Qdrant could not
// be reached at startup. Memory tools surface the stored error.
type unavailableMemory struct {
	err error
}

func (m unavailableMemory) Search(ctx context.Context, query, scope string, k int) ([]memory.Item, error) {
	return nil, fmt.Errorf("memory service unavailable: %w", m.err)
}

func (m unavailableMemory) Store(ctx context.Context, text, sourceAgent, memoryType string) (string, error) {
	return "", fmt.Errorf("memory service unavailable: %w", m.err)
}

// corsMiddleware allows the local UI to call the API and open WebSocket
// connections from any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version, Sec-WebSocket-Protocol")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
