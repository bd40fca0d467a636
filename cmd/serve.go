package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"partsledger/internal/api"
	"partsledger/internal/app"
	"partsledger/internal/logger"
	"partsledger/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, websocket stream and optional gRPC dashboard",
	Example: `  # in-memory ledger on :8080
  partsledger serve

  # PostgreSQL with Kafka event log and gRPC dashboard
  DATABASE_URL=postgres://... KAFKA_BROKERS=localhost:9092 GRPC_PORT=50051 partsledger serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := api.NewHub()
	go hub.Run(ctx)
	publishers := services.MultiPublisher{hub}

	brokers := api.ParseKafkaBrokers(cfg.KafkaBrokers)
	if len(brokers) > 0 {
		dialer := api.CreateKafkaDialer(cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert)

		producer := api.NewKafkaEventPublisher(brokers, cfg.KafkaEventsTopic, dialer)
		defer producer.Close()
		publishers = append(publishers, producer)

		if cfg.KafkaRestockTopic != "" {
			consumer := api.NewRestockConsumer(brokers, cfg.KafkaRestockTopic, cfg.KafkaGroupID, dialer, a.Catalog)
			go consumer.Run(ctx)
		}
	}
	a.SetPublisher(publishers)

	var (
		idem  api.IdempotencyStore
		redis api.Pinger
	)
	if a.Redis != nil {
		idem = api.NewRedisIdempotencyStore(a.Redis)
		redis = a.Redis
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.RouterDeps{
		Catalog:        a.Catalog,
		Invoices:       a.Invoices,
		Dashboard:      a.Dashboard,
		Hub:            hub,
		Idempotency:    idem,
		Redis:          redis,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Version:        version,
	})

	errCh := make(chan error, 2)

	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return err
		}
		grpcServer := grpc.NewServer()
		api.RegisterDashboardServer(grpcServer, api.NewDashboardGRPCServer(a.Dashboard, a.Catalog, a.Invoices))
		go func() {
			logger.Log.Info("📡 gRPC dashboard listening", zap.String("port", cfg.GRPCPort))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		defer grpcServer.GracefulStop()
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Log.Info("🚀 Server starting",
			zap.String("port", cfg.ServerPort),
			zap.String("store", cfg.StoreDriver),
			zap.String("timezone", a.Location.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info("🛑 Shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
