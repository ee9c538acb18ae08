package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"order-tracking-service/internal/config"
	"order-tracking-service/internal/controller"
	"order-tracking-service/internal/metrics"
	"order-tracking-service/internal/rabbit"
	"order-tracking-service/internal/repository"
	"order-tracking-service/internal/service"
	"order-tracking-service/internal/simulator"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuración inválida", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositorio
	repo, closeRepo, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("no se pudo inicializar el almacén", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeRepo()

	// Servicios
	clk := clock.New()
	m := metrics.NewCollector()
	trackingService := service.NewTrackingService(repo, service.NewGenerator(nil), cfg.TrackingRandomAttempts, m)
	orderService := service.NewOrderService(repo, trackingService, clk, m, cfg.DisplayLocation)
	paymentService := service.NewPaymentService(repo, m)
	authService := service.NewAuthService(cfg.AuthURL)

	simOpts := []simulator.Option{
		simulator.WithClock(clk),
		simulator.WithLogger(logger.With(slog.String("component", "simulator"))),
		simulator.WithMetrics(m),
	}

	// Conexión a RabbitMQ
	if cfg.RabbitURL != "" {
		conn, err := amqp091.Dial(cfg.RabbitURL)
		if err != nil {
			logger.Error("error conectando a RabbitMQ", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer conn.Close()

		consumeCh, err := conn.Channel()
		if err != nil {
			logger.Error("error creando canal en RabbitMQ", slog.String("error", err.Error()))
			os.Exit(1)
		}
		consumer := rabbit.NewPaymentConsumer(paymentService, logger.With(slog.String("component", "rabbit")), m)
		if err := rabbit.SetupConsumers(ctx, consumeCh, consumer, logger); err != nil {
			logger.Error("error configurando consumidores", slog.String("error", err.Error()))
			os.Exit(1)
		}

		publishCh, err := conn.Channel()
		if err != nil {
			logger.Error("error creando canal de publicación", slog.String("error", err.Error()))
			os.Exit(1)
		}
		publisher, err := rabbit.SetupPublisher(publishCh)
		if err != nil {
			logger.Error("error configurando publicador", slog.String("error", err.Error()))
			os.Exit(1)
		}
		simOpts = append(simOpts, simulator.WithPublisher(publisher))
	} else {
		logger.Warn("RABBIT_URL vacío: mensajería deshabilitada")
	}

	// Simulador de entregas
	var sim *simulator.Simulator
	if cfg.SimulatorEnabled {
		sim = simulator.New(
			repo,
			trackingService,
			simulator.NewRandomDeliveryPolicy(cfg.DeliveryProbability, nil),
			simulator.Config{Interval: cfg.SimulationInterval, StaleAfter: cfg.StaleAfter},
			simOpts...,
		)
		if err := sim.Start(); err != nil {
			logger.Error("no se pudo iniciar el simulador", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sim.Stop()
	}

	// Handlers y router
	var runner controller.PassRunner
	if sim != nil {
		runner = sim
	}
	ctrl := controller.NewOrderController(orderService, paymentService, runner, logger)
	r := gin.New()
	r.Use(gin.Recovery())
	controller.RegisterRoutes(r, ctrl, authService, m)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		logger.Info("Order Tracking Service ejecutándose", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("servidor HTTP detenido", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error cerrando servidor", slog.String("error", err.Error()))
	}
}

func buildRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.OrderStore, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("STORAGE=memory: las órdenes no se persisten")
		return repository.NewMemoryOrderRepository(), func() {}, nil
	}

	// Conexión a MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}

	repo := repository.NewMongoOrderRepository(client.Database(cfg.MongoDBName))
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		closeFn()
		return nil, nil, err
	}
	logger.Info("repositorio de órdenes configurado con MongoDB", slog.String("db", cfg.MongoDBName))
	return repo, closeFn, nil
}
