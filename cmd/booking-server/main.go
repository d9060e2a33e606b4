package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"patientbooking/backend/internal/config"
	"patientbooking/backend/internal/events"
	"patientbooking/backend/internal/logging"
	"patientbooking/backend/internal/metrics"
	"patientbooking/backend/internal/service/bookings"
	"patientbooking/backend/internal/store"
	"patientbooking/backend/internal/store/memory"
	"patientbooking/backend/internal/store/postgres"
	rediscache "patientbooking/backend/internal/store/redis"
	"patientbooking/backend/internal/tracing"
	grpcTransport "patientbooking/backend/internal/transport/grpc"
	"patientbooking/backend/internal/transport/httpapi"
)

const (
	serviceName      = "booking-server"
	dbConnectTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	log = log.With(zap.String("service", serviceName))
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	log.Info("starting",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("grpc_addr", cfg.GRPCAddr()),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: serviceName,
		SampleRate:  cfg.TracingSampleRate,
	})
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector("booking", reg)

	repo, patients, ready, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []bookings.Option{
		bookings.WithLogger(log),
		bookings.WithMetrics(collector),
	}

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", zap.Error(err))
			}
		}()
		opts = append(opts, bookings.WithCache(rediscache.NewNextBookingCache(client, cfg.NextBookingTTL)))
		log.Info("next booking cache enabled", zap.String("redis_addr", cfg.RedisAddr), zap.Duration("ttl", cfg.NextBookingTTL))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("kafka publisher close failed", zap.Error(err))
			}
		}()
		opts = append(opts, bookings.WithPublisher(publisher))
		log.Info("booking events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	svc := bookings.NewService(repo, patients, opts...)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcTransport.RequestDeadline(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterBookingServiceServer(grpcServer, grpcTransport.NewBookingsServer(svc, log))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcTransport.BookingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.RouterConfig{
			Bookings: httpapi.NewBookingHandler(svc, log),
			Logger:   log,
			Metrics:  collector,
			Gatherer: reg,
			Limiter:  limiter,
			Ready:    ready,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return fmt.Errorf("grpc listen on %s: %w", cfg.GRPCAddr(), err)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info("servers started", zap.String("grpc_addr", cfg.GRPCAddr()), zap.String("http_addr", cfg.HTTPAddr))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	healthServer.Shutdown()
	shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
	return serveErr
}

// openStore returns the booking repository and patient directory for the
// configured driver along with a readiness check and a close func.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.BookingRepository, store.PatientDirectory, func(context.Context) error, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; bookings are lost on restart", zap.Int("patients", len(cfg.MemoryPatientIDs)))
		st := memory.New(cfg.MemoryPatientIDs...)
		return st, st, nil, func() {}, nil

	case config.StoreDriverPostgres:
		target := databaseTarget(cfg.DatabaseURL)
		if cfg.MigrateOnStart {
			log.Info("applying migrations", target)
			if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
				return nil, nil, nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}

		log.Info("connecting to database", target)
		connectCtx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
		defer cancel()
		db, err := postgres.Open(connectCtx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			log.Error("database connection failed", target, zap.Error(err))
			return nil, nil, nil, nil, err
		}
		closeDB := func() {
			if err := postgres.Close(db); err != nil {
				log.Warn("database close failed", zap.Error(err))
			}
		}
		return postgres.NewBookingRepo(db), postgres.NewPatientRepo(db), db.PingContext, closeDB, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func shutdown(log *zap.Logger, gs *grpc.Server, hs *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := hs.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("http graceful shutdown failed", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		gs.Stop()
	}
}

// databaseTarget names the database being used without leaking credentials.
func databaseTarget(databaseURL string) zap.Field {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return zap.String("db", "unparseable url")
	}
	return zap.Dict("db",
		zap.String("host", cmp.Or(u.Hostname(), "unknown")),
		zap.String("port", cmp.Or(u.Port(), "default")),
		zap.String("name", cmp.Or(strings.TrimPrefix(u.Path, "/"), "unknown")),
	)
}
