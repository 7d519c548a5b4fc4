package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	dbconfig "cogniview/internal/database"
	"cogniview/internal/features"
	"cogniview/internal/handler"
	"cogniview/internal/metrics"
	"cogniview/internal/repo"
	"cogniview/internal/room"
	"cogniview/internal/service"
	"cogniview/internal/utils/redis"
	"cogniview/internal/utils/sse"
	"cogniview/internal/utils/token"
	logging "cogniview/pkg/logger/pkg"
	rabbit "cogniview/pkg/rabbit/pkg"
	redispkg "cogniview/pkg/redis/pkg"
)

const consumerRetryDelay = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, room websocket, SSE feed and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	viper.SetDefault("db.driver", "mysql")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.http_port", "8080")
	viper.SetDefault("server.sse_port", "8081")
	viper.SetDefault("server.grpc_port", "9090")
}

func addr(portKey string) string {
	return net.JoinHostPort(viper.GetString("server.host"), viper.GetString(portKey))
}

func openRepository(ctx context.Context, logger *zap.Logger) (*repo.Repository, func(), error) {
	if viper.GetString("db.driver") == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return repo.NewMemory(), func() {}, nil
	}

	db, err := dbconfig.Connect(ctx, logger)
	if err != nil {
		return nil, nil, err
	}
	if viper.GetBool("db.auto_migrate") {
		if err := dbconfig.Migrate(ctx, db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return repo.New(db), func() { closeDB(db, logger) }, nil
}

func closeDB(db *sql.DB, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("can not close database", zap.Error(err))
	}
}

func openCache(logger *zap.Logger) (redis.Redis, func(), error) {
	cfg := redispkg.ReadConfig()
	if cfg == nil {
		logger.Warn("Redis is not configured, evaluation cache and redeem lock are disabled")
		return redis.Dummy(), func() {}, nil
	}
	client, err := redispkg.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return redis.New(client), func() { client.Close() }, nil
}

func serve(ctx context.Context) error {
	logger := logging.Logger(ctx)
	defer logger.Sync()

	repository, closeRepo, err := openRepository(ctx, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	cache, closeCache, err := openCache(logger)
	if err != nil {
		return err
	}
	defer closeCache()

	mq := rabbit.New(rabbit.ReadConfig())
	hub := sse.NewHub()

	geminiCfg := service.ReadGeminiConfig()
	genaiClient, err := service.NewGeminiClient(ctx, geminiCfg)
	if err != nil {
		return err
	}
	scorer, err := service.NewScorer(genaiClient, geminiCfg, logger)
	if err != nil {
		return err
	}
	issuer, err := token.NewIssuer(token.ReadConfig())
	if err != nil {
		return err
	}

	svc := features.New(features.Deps{
		Repo:    repository,
		Redis:   cache,
		Rabbit:  mq,
		Hub:     hub,
		Scorer:  scorer,
		Tokens:  issuer,
		Logger:  logger,
		Options: features.ReadOptions(),
	})

	pool := features.NewEvaluationWorkerPool(features.ReadPoolConfig(), logger)
	pool.Start(svc.EvaluationJobHandler())
	defer pool.Stop()

	rooms := room.NewManager(logger)
	sweeper := svc.NewSweeper(features.ReadSweeperConfig(), rooms.Active)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	router := gin.New()
	router.Use(gin.Recovery(), handler.RequestID(), handler.AccessLog(), metrics.Middleware())
	router.GET("/metrics", metrics.Handler())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"rooms":   rooms.Count(),
			"workers": pool.GetMetrics(),
		})
	})
	handler.New(svc).Register(router)
	handler.NewRoomHandler(
		svc,
		rooms,
		service.NewLiveEngineFactory(genaiClient, geminiCfg.LiveModel, logger),
		service.NewFaceDetector(service.ReadDetectorConfig(), logger),
		room.ReadConfig(),
		logger,
	).AllowOrigins(viper.GetStringSlice("server.allowed_origins")...).Register(router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv := &http.Server{
			Addr:        addr("server.http_port"),
			Handler:     router,
			BaseContext: func(net.Listener) context.Context { return gctx },
		}
		return serveHTTP(gctx, logger, "HTTP", srv)
	})
	g.Go(func() error {
		return runSSE(gctx, logger, addr("server.sse_port"), hub)
	})
	g.Go(func() error {
		return runGRPC(gctx, logger, addr("server.grpc_port"))
	})
	g.Go(func() error {
		consumeFinishedSessions(gctx, logger, svc, pool)
		return nil
	})
	return g.Wait()
}

// consumeFinishedSessions keeps the evaluation prewarm consumer alive across broker outages.
func consumeFinishedSessions(ctx context.Context, logger *zap.Logger, svc *features.Cogniview, pool *features.EvaluationWorkerPool) {
	for {
		err := svc.ConsumeFinishedSessions(ctx, pool)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("Session event consumer stopped, retrying",
			zap.Duration("delay", consumerRetryDelay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(consumerRetryDelay):
		}
	}
}
