package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/adapter/audio"
	"github.com/parlance-ai/parlance/internal/adapter/auth"
	"github.com/parlance-ai/parlance/internal/adapter/cache"
	"github.com/parlance-ai/parlance/internal/adapter/engine"
	"github.com/parlance-ai/parlance/internal/adapter/http/fiber/handlers"
	"github.com/parlance-ai/parlance/internal/adapter/http/fiber/middleware"
	"github.com/parlance-ai/parlance/internal/adapter/queue"
	"github.com/parlance-ai/parlance/internal/adapter/speech"
	"github.com/parlance-ai/parlance/internal/adapter/transport"
	"github.com/parlance-ai/parlance/internal/adapter/understanding"
	"github.com/parlance-ai/parlance/internal/adapter/vault"
	"github.com/parlance-ai/parlance/internal/infrastructure/workerpool"
	"github.com/parlance-ai/parlance/internal/observability/telemetry"
	"github.com/parlance-ai/parlance/internal/ports"
	"github.com/parlance-ai/parlance/internal/service/orchestrator"
	"github.com/parlance-ai/parlance/pkg/config"
)

const (
	serviceName    = "parlance-gateway"
	serviceVersion = "v1.0.0"
)

func main() {
	// 1. Initialize Logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting Parlance Gateway",
		zap.String("service", serviceName),
		zap.String("version", serviceVersion),
	)

	// 2. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(serviceName, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 4. Resolve Secrets (Vault, optional)
	jwtSecret := cfg.JWT.Secret
	if cfg.Vault.Enabled {
		secrets, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token)
		if err != nil {
			logger.Fatal("Failed to connect to Vault", zap.Error(err))
		}
		if jwtSecret == "" {
			jwtSecret, err = secrets.GetJWTVerificationKey()
			if err != nil {
				logger.Fatal("Failed to fetch JWT key from Vault", zap.Error(err))
			}
		}
	}

	// 5. Initialize Caches (key/value + streaming audio). When Redis is
	// unreachable the process still serves turns from in-memory caches,
	// losing only cross-instance context sharing.
	var kvCache ports.Cache
	var streamCache ports.StreamingAudioCache
	if redisCache, redisErr := cache.NewRedisCache(cfg.Redis.URL, logger); redisErr != nil {
		logger.Warn("Redis unavailable, falling back to in-memory caches", zap.Error(redisErr))
		kvCache = cache.NewLocalCache(time.Minute, logger)
		streamCache = cache.NewMemoryStreamingAudioCache(logger)
	} else {
		kvCache = redisCache
		streamCache, err = cache.NewRedisStreamingAudioCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Fatal("Failed to open streaming audio cache", zap.Error(err))
		}
	}
	defer kvCache.Close()
	defer streamCache.Close()

	// 6. Initialize Message Queue (turn analytics events)
	var messageQueue queue.MessageQueue
	switch cfg.Queue.Provider {
	case "nats":
		messageQueue, err = queue.NewNATSQueue(cfg.Queue.URL, logger)
	case "rabbitmq":
		messageQueue, err = queue.NewRabbitMQQueue(cfg.Queue.URL, logger)
	case "":
		logger.Info("No queue provider configured, turn events disabled")
	default:
		logger.Fatal("Unknown queue provider", zap.String("provider", cfg.Queue.Provider))
	}
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	if messageQueue != nil {
		defer messageQueue.Close()
	}

	// 7. Start the CPU Load Monitor
	loadMonitor := telemetry.NewLoadMonitor(2*time.Second, logger)
	loadMonitor.Start()
	defer loadMonitor.Stop()

	// 8. Audio Pipeline (codecs, relay worker pool, synthesis)
	relayPool := workerpool.New(cfg.Audio.RelayWorkers, logger)
	defer relayPool.Close()

	codecs := audio.NewCodecRegistry(audio.PCMCodec{}, audio.ULawCodec{}, audio.ALawCodec{})
	synthesizer := speech.NewSynthesizer(speech.Config{
		BaseURL: cfg.Speech.SynthesizerURL,
		Timeout: cfg.Speech.SynthesisTimeout,
	}, logger)
	audioPipeline := audio.NewPipeline(codecs, streamCache, relayPool, synthesizer, logger)

	// 9. Collaborator Clients (engine, understanding, recognition, auth)
	engineClient := engine.NewClient(engine.Config{
		BaseURL: cfg.Engine.URL,
		Timeout: cfg.Engine.Timeout,
	}, logger)
	understandingClient := understanding.NewClient(understanding.Config{
		BaseURL: cfg.Understanding.URL,
		Timeout: cfg.Understanding.Timeout,
	}, logger)
	recognizer := speech.NewRecognizer(speech.Config{
		BaseURL: cfg.Speech.RecognizerURL,
		Timeout: cfg.Speech.RecognizerTimeout,
	}, logger)
	verifier := auth.NewJWTVerifier(jwtSecret, logger)

	// 10. Orchestrator (the turn pipeline)
	orch := orchestrator.New(orchestrator.Deps{
		Engine:        engineClient,
		Understanding: understandingClient,
		Recognizer:    recognizer,
		Verifier:      verifier,
		Conversations: engineClient,
		Cache:         kvCache,
		Audio:         audioPipeline,
		Load:          loadMonitor,
		Queue:         messageQueue,
		Log:           logger,
	}, orchestrator.Config{
		FailFast:      cfg.Orchestrator.FailFast,
		CPULoadLimit:  cfg.Orchestrator.CPULoadLimit,
		SpeechTimeout: cfg.Orchestrator.SpeechTimeout,
		ActionWait:    cfg.Orchestrator.ActionWait,
		ContextTTL:    cfg.Orchestrator.ContextTTL,
		PageTTL:       cfg.Orchestrator.PageTTL,
	})

	// 11. Wire Protocols
	jsonProtocol := transport.NewJSONProtocol(logger)
	protocols := transport.NewRegistry(jsonProtocol, transport.NewLZ4Protocol(jsonProtocol))

	// 12. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}
	app.Use(middleware.Instrument())

	// Metrics endpoint for Prometheus
	if cfg.Prometheus.Enabled {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	// Routes
	queryHandler := handlers.NewQueryHandler(orch, protocols, logger)
	actionHandler := handlers.NewActionHandler(orch, protocols, logger)
	cacheHandler := handlers.NewCacheHandler(orch, logger)
	resetHandler := handlers.NewResetHandler(orch, logger)
	viewsHandler := handlers.NewViewsHandler(orch, logger)
	statusHandler := handlers.NewStatusHandler(protocols, serviceVersion)

	app.Post("/query", queryHandler.Submit)
	app.Get("/query", queryHandler.SubmitContextFree)
	app.Get("/action", actionHandler.Replay)
	app.Post("/action", actionHandler.ReplayWithBody)
	app.Put("/action", actionHandler.ReplayKeyValue)
	app.Get("/cache", cacheHandler.Fetch)
	app.Get("/reset", resetHandler.Reset)
	app.Post("/reset", resetHandler.Reset)
	app.Get("/views/:plugin/*", viewsHandler.Fetch)
	app.Get("/status", statusHandler.Status)
	app.Get("/robots.txt", statusHandler.Robots)
	app.Get("/", statusHandler.Home)

	// 13. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 14. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Drain in-flight turns before the caches close underneath them.
	if err := orch.Quiesce(func() error { return nil }); err != nil {
		logger.Error("Error draining turns", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}
