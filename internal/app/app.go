package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soundroom/server/internal/controller"
	"github.com/soundroom/server/internal/repository/connection/inmemory"
	"github.com/soundroom/server/internal/repository/room/redis"
	"github.com/soundroom/server/internal/service/room"
	"github.com/soundroom/server/pkg/ctxlogger"
	"github.com/soundroom/server/pkg/redisclient"
	"github.com/soundroom/server/pkg/ytsearch"
	"github.com/soundroom/server/pkg/ytvideodata"
)

type AppConfig struct {
	Secret            string `json:"-"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	LogLevel          string `json:"log_level"`
	MembersLimit      int    `json:"members_limit"`
	QueueLimit        int    `json:"queue_limit"`
	SkipVoteThreshold int    `json:"skip_vote_threshold"`
	RedisHost         string `json:"redis_host"`
	RedisPort         int    `json:"redis_port"`
	RedisPassword     string `json:"-"`
	YoutubeApiKey     string `json:"-"`
	SearchMaxResults  int    `json:"search_max_results"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return fmt.Errorf("secret must be set")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.QueueLimit < 1 {
		return fmt.Errorf("queue limit must be greater than 0")
	}
	if cfg.SkipVoteThreshold < 1 {
		return fmt.Errorf("skip vote threshold must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)
	slog.SetDefault(logger)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := redis.NewRepo(rc, 24*14*time.Hour)
	connectionRepo := inmemory.NewRepo()
	roomService := room.NewService(roomRepo, connectionRepo, &room.Config{
		MembersLimit:      cfg.MembersLimit,
		QueueLimit:        cfg.QueueLimit,
		SkipVoteThreshold: cfg.SkipVoteThreshold,
		Secret:            cfg.Secret,
	})
	searchClient := ytsearch.NewClient(cfg.YoutubeApiKey, cfg.SearchMaxResults)
	videoDataClient := ytvideodata.NewClient()
	ctrl := controller.NewController(roomService, connectionRepo, searchClient, videoDataClient, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.Mux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
