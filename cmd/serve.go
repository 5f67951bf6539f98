package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/logger"
	"github.com/mockpanel/mockpanel/internal/server"
)

const defaultListen = ":8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mockpanel HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address, for example :8080")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	caps, model, err := newCapabilities(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building ai capabilities", zap.Error(err))
	}

	st := newStore(ctx, config.Database, logger)
	defer st.Close()

	listen := defaultListen
	if config.Server != nil && config.Server.Listen != "" {
		listen = config.Server.Listen
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           server.New(caps, st, model, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	logger.Info("starting the mockpanel api",
		zap.String("version", version),
		zap.String("listen", listen),
		zap.String("model", model),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
