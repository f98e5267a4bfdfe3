package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/culturalbot/eventbot/internal/api"
	"github.com/culturalbot/eventbot/internal/client"
	"github.com/culturalbot/eventbot/internal/config"
	"github.com/culturalbot/eventbot/internal/dedup"
	"github.com/culturalbot/eventbot/internal/events"
	"github.com/culturalbot/eventbot/internal/scheduler"
	"github.com/culturalbot/eventbot/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAll()
			if err != nil {
				return err
			}
			setupLogger(cfg.Log)
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctxOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("store unreachable, exiting", "error", err)
		return err
	}
	defer st.Close()

	wa := client.NewWhatsAppClient(cfg.WhatsApp.APIURL, cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, cfg.Server.HTTPTimeout)

	var source events.Feed = events.EmptyFeed{}
	if cfg.Contentful.Enabled {
		source = client.NewContentfulClient(
			cfg.Contentful.APIURL,
			cfg.Contentful.SpaceID,
			cfg.Contentful.Environment,
			cfg.Contentful.ContentType,
			cfg.Contentful.AccessToken,
			cfg.Server.HTTPTimeout,
		)
	} else {
		slog.Warn("contentful not configured, event listings will be empty")
	}

	loc, err := time.LoadLocation(cfg.Events.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	pipeline := events.NewPipeline(source, wa, st.media, events.Options{
		BaseURL:  cfg.Events.BaseURL,
		Max:      cfg.Events.Max,
		Location: loc,
		MediaTTL: cfg.Events.MediaTTL,
	})
	bot := service.NewBot(st.repo, wa, pipeline, dedup.NewWindow(cfg.Dedup.Capacity))

	sweeper, err := scheduler.New("media-sweep", cfg.Sweep.Interval, scheduler.MediaSweep(st.media))
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	h := api.NewHandler(bot, st.repo, sweeper, cfg.WhatsApp.VerifyToken, cfg.Admin.Token)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("eventbot listening",
			"addr", cfg.Server.Address,
			"contentful", cfg.Contentful.Enabled,
			"redis", cfg.Redis.Enabled,
			"admin", cfg.Admin.Token != "",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
		return err
	}
	return nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
