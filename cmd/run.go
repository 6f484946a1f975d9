package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevgathuku/server/api"
	"github.com/kevgathuku/server/internal/cache"
	"github.com/kevgathuku/server/internal/config"
	"github.com/kevgathuku/server/internal/database"
	"github.com/kevgathuku/server/internal/directory"
	"github.com/kevgathuku/server/internal/events"
	"github.com/kevgathuku/server/internal/logging"
	"github.com/kevgathuku/server/internal/storage"
	"github.com/kevgathuku/server/pkg/backends"
	"github.com/kevgathuku/server/pkg/services"
	"github.com/kevgathuku/server/pkg/share"
)

func NewRun() *cobra.Command {
	var cfg config.ServerCmdConfig
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sharing server",
		Run: func(cmd *cobra.Command, args []string) {
			runApplication(cmd.Context(), &cfg)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loader.InitializeConfig(cmd); err != nil {
				return err
			}
			if err := loader.Load(&cfg); err != nil {
				return err
			}
			return config.Validate(&cfg)
		},
	}
	config.AddCommonFlags(cmd.Flags(), &cfg)
	return cmd
}

func runApplication(ctx context.Context, conf *config.ServerCmdConfig) {
	lvl, err := zapcore.ParseLevel(conf.Log.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	logging.SetConfig(&logging.Config{
		Level:       lvl,
		Development: conf.Log.Development,
		FilePath:    conf.Log.File,
	})

	lg := logging.DefaultLogger()
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(conf)
	if err != nil {
		lg.Fatal("failed to open database", zap.Error(err))
	}
	if err := database.MigrateDB(db); err != nil {
		lg.Fatal("failed to migrate database", zap.Error(err))
	}

	cacher := cache.NewCache(ctx, &conf.Cache)
	mounts := storage.NewMounts(db)
	dir := directory.NewDirectory(db, cacher)
	bus := events.NewBus(lg)

	registry := share.NewRegistry()
	if err := registry.Register("file", backends.NewFileBackend(db, mounts)); err != nil {
		lg.Fatal("backend registration failed", zap.Error(err))
	}
	if err := registry.Register("folder", backends.NewFolderBackend(db, mounts), "file"); err != nil {
		lg.Fatal("backend registration failed", zap.Error(err))
	}

	engine := share.NewEngine(share.EngineParams{
		Store:      share.NewGormStore(db),
		Registry:   registry,
		Directory:  dir,
		Mounts:     mounts,
		Bus:        bus,
		Notifier:   share.NewNotifier(&conf.Federation, lg),
		Config:     &conf.Share,
		ServerHost: conf.Federation.ServerHost,
		Logger:     lg,
	})

	shareService := services.NewShareService(engine, cacher, lg)
	router := api.NewRouter(shareService, lg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", conf.Server.Port),
		Handler:      router,
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		lg.Info("server started", zap.Int("port", conf.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
