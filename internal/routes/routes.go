package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nexus-chain/nexus/internal/chat"
	"github.com/nexus-chain/nexus/internal/classifier"
	"github.com/nexus-chain/nexus/internal/config"
	"github.com/nexus-chain/nexus/internal/executor"
	"github.com/nexus-chain/nexus/internal/ledger"
	"github.com/nexus-chain/nexus/internal/middleware"
	"github.com/nexus-chain/nexus/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache are
// optional; Classifier overrides the configured backend when set.
type Deps struct {
	Cfg        config.Config
	DB         *pgxpool.Pool
	Cache      *redis.Client
	Logger     *slog.Logger
	Classifier classifier.Classifier
}

// Services holds the long-lived components built by Setup.
type Services struct {
	Store    *ledger.Store
	Parser   *classifier.Resilient
	Executor *executor.Executor
	Queue    *executor.Queue
	Chat     *chat.Service
}

// Close stops the executor worker.
func (s *Services) Close() {
	if s != nil && s.Queue != nil {
		s.Queue.Stop()
	}
}

// Setup builds the services, configures middlewares and registers all routes.
// The executor worker is running when Setup returns.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	svc, err := buildServices(d)
	if err != nil {
		return nil, err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(d.Logger))
	}

	RegisterHealthRoutes(app, d, svc.Parser)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.GetRequestID(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterLedgerRoutes(api, ledger.NewHandler(svc.Store))
	RegisterIntentRoutes(api, classifier.NewHandler(svc.Parser))
	RegisterExecutorRoutes(api, executor.NewHandler(svc.Executor, svc.Queue))
	RegisterChatRoutes(api, chat.NewHandler(svc.Chat),
		middleware.RateLimit(d.Cache, "chat", d.Cfg.ChatRateLimit, d.Logger),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterAdminRoutes(api, ledger.NewHandler(svc.Store), svc.Executor, middleware.AdminToken(d.Cfg.AdminTokenHash))

	return svc, nil
}

func buildServices(d Deps) (*Services, error) {
	log := d.Logger
	ctx := context.Background()

	notifiers := notification.Fanout{notification.NewLoggerNotifier(log)}
	if d.Cache != nil {
		notifiers = append(notifiers, notification.NewRedisNotifier(d.Cache, notification.DefaultChannel))
	}

	storeOpts := ledger.Options{
		Latency:     d.Cfg.LedgerLatency,
		ErrorHold:   d.Cfg.LedgerErrorHold,
		SuccessHold: d.Cfg.LedgerSuccessHold,
		Notifier:    notifiers,
		Logger:      log,
	}
	if d.DB != nil {
		journal := ledger.NewPostgresJournal(d.DB)
		if err := journal.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("prepare ledger journal: %w", err)
		}
		storeOpts.Journal = journal
	}
	store := ledger.NewStore(ledger.DefaultSeed(), storeOpts)

	backend := d.Classifier
	if backend == nil {
		if d.Cfg.GeminiAPIKey != "" {
			g, err := classifier.NewGemini(ctx, d.Cfg.GeminiAPIKey, d.Cfg.GeminiModel, log)
			if err != nil {
				return nil, err
			}
			backend = g
		} else {
			log.Warn("no Gemini API key configured, using rule-based classifier")
			backend = classifier.NewRules()
		}
	}
	resOpts := classifier.DefaultResilientOptions()
	resOpts.Timeout = d.Cfg.ClassifierTimeout
	parser := classifier.NewResilient(backend, resOpts, log)

	policy, err := executor.ParsePolicy(d.Cfg.ExecutorPolicy)
	if err != nil {
		return nil, err
	}
	exec := executor.New(store, executor.Options{
		StepDelay:    d.Cfg.ExecutorStepDelay,
		DisplayDelay: d.Cfg.ExecutorDisplayDelay,
		Policy:       policy,
		Notifier:     notifiers,
		Logger:       log,
	})
	queue := executor.NewQueue(exec, executor.DefaultQueueCapacity, notifiers, log)
	queue.Start(ctx)

	return &Services{
		Store:    store,
		Parser:   parser,
		Executor: exec,
		Queue:    queue,
		Chat:     chat.NewService(parser, queue, log),
	}, nil
}
