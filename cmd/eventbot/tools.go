package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/culturalbot/eventbot/internal/client"
	"github.com/culturalbot/eventbot/internal/config"
	"github.com/culturalbot/eventbot/internal/scheduler"
)

func newSweepMediaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-media",
		Short: "Remove expired media cache entries once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAll()
			if err != nil {
				return err
			}
			setupLogger(cfg.Log)

			st, err := openStore(ctxOrBackground(cmd.Context()), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			job, err := scheduler.New("media-sweep", cfg.Sweep.Interval, scheduler.MediaSweep(st.media))
			if err != nil {
				return err
			}
			return job.RunOnce(ctxOrBackground(cmd.Context()))
		},
	}
}

func newExchangeTokenCmd() *cobra.Command {
	var (
		apiURL    string
		appID     string
		appSecret string
		token     string
	)

	cmd := &cobra.Command{
		Use:   "exchange-token",
		Short: "Exchange a short-lived Meta access token for a long-lived one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if appID == "" || appSecret == "" || token == "" {
				return errors.New("--app-id, --app-secret and --token are required (or META_APP_ID, META_APP_SECRET, WHATSAPP_TOKEN)")
			}

			tok, err := client.ExchangeToken(ctxOrBackground(cmd.Context()), apiURL, appID, appSecret, token, 10*time.Second)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "access_token=%s\n", tok.AccessToken)
			if tok.ExpiresIn > 0 {
				fmt.Fprintf(out, "expires_in=%s\n", (time.Duration(tok.ExpiresIn) * time.Second).String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", envOr("WHATSAPP_API_URL", "https://graph.facebook.com/v23.0"), "Graph API base URL")
	cmd.Flags().StringVar(&appID, "app-id", os.Getenv("META_APP_ID"), "Meta app id")
	cmd.Flags().StringVar(&appSecret, "app-secret", os.Getenv("META_APP_SECRET"), "Meta app secret")
	cmd.Flags().StringVar(&token, "token", os.Getenv("WHATSAPP_TOKEN"), "Short-lived access token")

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
