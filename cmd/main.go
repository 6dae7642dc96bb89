package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-system/internal/catalog"
	"pos-system/internal/config"
	"pos-system/internal/database"
	"pos-system/internal/logger"
	"pos-system/internal/messaging"
	"pos-system/internal/order"
	"pos-system/internal/payment"
	"pos-system/internal/pricing"
	"pos-system/internal/stock"
	"pos-system/internal/worker"
)

func main() {
	var (
		mode              = flag.String("mode", "", "Service mode (order-service, checkout-worker)")
		port              = flag.Int("port", 3000, "HTTP port")
		workerName        = flag.String("worker-name", "", "Worker name (required for checkout-worker mode)")
		heartbeatInterval = flag.Int("heartbeat-interval", 30, "Heartbeat interval in seconds")
		prefetch          = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode": *mode,
		"port": *port,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	switch *mode {
	case "order-service":
		if err := runOrderService(ctx, cfg, log, *port); err != nil {
			log.Error("service_failed", "Order service failed", requestID, err, nil)
			os.Exit(1)
		}
	case "checkout-worker":
		if *workerName == "" {
			log.Error("validation_failed", "worker-name is required for checkout-worker mode", requestID, nil, nil)
			os.Exit(1)
		}
		if err := runCheckoutWorker(ctx, cfg, log, *workerName, *heartbeatInterval, *prefetch); err != nil {
			log.Error("service_failed", "Checkout worker failed", requestID, err, nil)
			os.Exit(1)
		}
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// buildService wires the pipeline against Postgres, RabbitMQ and the
// payment gateway. Both modes share the same wiring.
func buildService(db *database.DB, publisher *messaging.Publisher, cfg *config.Config, log *logger.Logger) *order.Service {
	service := order.NewService(
		order.NewPostgresRepository(db),
		catalog.NewPostgres(db),
		stock.NewPostgres(db),
		pricing.NewPostgresPromotions(db),
		payment.NewClient(cfg, log),
		publisher,
		log,
	)
	service.SetDefaults(int64(cfg.Outlet.DefaultOutletID), cfg.Outlet.DefaultCustomerType)
	return service
}

// runOrderService runs the HTTP order service
func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger, port int) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := db.RunMigrations(ctx, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	publisher := messaging.NewPublisher(conn, log)
	service := buildService(db, publisher, cfg, log)

	health := func(ctx context.Context) bool {
		return db.Ping(ctx) == nil && !conn.IsClosed()
	}
	handler := order.NewHandler(service, publisher, log, health)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.SetupRoutes(),
	}

	go func() {
		log.Info("service_started", fmt.Sprintf("Order service started on port %d", port), requestID, map[string]interface{}{
			"port": port,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", "HTTP server failed", requestID, err, nil)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

// runCheckoutWorker runs the async checkout worker
func runCheckoutWorker(ctx context.Context, cfg *config.Config, log *logger.Logger, workerName string, heartbeatInterval, prefetch int) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	publisher := messaging.NewPublisher(conn, log)
	consumer := messaging.NewConsumer(conn, log, messaging.CheckoutQueue, workerName, prefetch)
	service := buildService(db, publisher, cfg, log)

	checkout := worker.NewCheckout(workerName, time.Duration(heartbeatInterval)*time.Second,
		db, service, consumer, publisher, log)

	return checkout.Start(ctx)
}
