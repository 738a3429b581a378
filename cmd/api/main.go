package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/kafkasink"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/notify"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/redisrelay"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/internal/realtime"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

// stores backend elegido para el ledger.
type stores struct {
	txRunner  inventory.TxRunner
	positions repository.PositionRepository
	movements repository.MovementRepository
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Ledger.Store).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento del ledger")
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collectorsSet := metrics.New(reg)

	hub := realtime.NewHub(realtime.Config{
		SendBuffer:        cfg.Realtime.SendBuffer,
		WriteTimeout:      cfg.Realtime.WriteTimeout,
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Realtime.HeartbeatTimeout,
	}, realtime.WithLogger(log.Zerolog()), realtime.WithMetrics(collectorsSet))

	dispatcher := notify.NewDispatcher(
		notify.WithQueueSize(cfg.Realtime.NotifyQueueSize),
		notify.WithLogger(log.Zerolog()),
		notify.WithMetrics(collectorsSet),
	)
	dispatcher.Register("hub", hub)

	// Con Redis cada nodo publica sus cambios y recibe los del resto en su hub local.
	var relay *redisrelay.Relay
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("conexión a Redis")
		}
		relay = redisrelay.NewRelay(client, cfg.Redis.Channel, log.Component("redis_relay"))
		dispatcher.Register("redis", relay)
	}

	if cfg.Kafka.Enabled() {
		sink := kafkasink.NewSink(kafkasink.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer func() {
			if err := sink.Close(); err != nil {
				log.Error().Err(err).Msg("cerrar writer de Kafka")
			}
		}()
		dispatcher.Register("kafka", sink)
	}

	ledger := inventory.NewLedgerService(st.txRunner, st.positions, st.movements,
		inventory.WithNotifier(dispatcher),
		inventory.WithMetrics(collectorsSet),
		inventory.WithLogger(log.Zerolog()),
		inventory.WithLockTimeout(cfg.Ledger.LockTimeout),
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Stock Ledger API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "subscribers": hub.Len()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:      ledger,
		Hub:         hub,
		JWTSecret:   cfg.JWT.Secret,
		JWTRequired: cfg.JWT.Required,
		Logger:      log.Component("realtime_http"),
	})

	// El dispatcher se detiene al final para entregar lo que confirmen los requests en curso.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(cfg.HTTP.Addr())
	})
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx, hub)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Primero los suscriptores: sus handlers mantienen abiertas las conexiones que espera Shutdown.
		if err := hub.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("apagado del hub")
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("apagado del servidor")
		}
		stopDispatch()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("servicio finalizado con error")
	}
	log.Info().Msg("aplicación detenida")
}

// openStores construye el backend configurado. En postgres aplica las migraciones si LEDGER_MIGRATE.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (stores, error) {
	switch cfg.Ledger.Store {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return stores{}, err
		}
		if cfg.Ledger.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return stores{}, err
			}
			log.Info().Msg("migraciones aplicadas")
		}
		return stores{
			txRunner:  postgres.NewTxRunner(pool),
			positions: postgres.NewPositionRepository(pool),
			movements: postgres.NewMovementRepository(pool),
			close:     pool.Close,
		}, nil
	default:
		log.Warn().Msg("ledger en memoria: el estado se pierde al reiniciar")
		positions := memory.NewPositionStore()
		movements := memory.NewMovementLog()
		return stores{
			txRunner:  memory.NewTxRunner(positions, movements),
			positions: positions,
			movements: movements,
			close:     func() {},
		}, nil
	}
}
