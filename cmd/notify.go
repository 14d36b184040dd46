package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/notify"
)

var (
	notifyProfile string
	notifyChannel string
	notifyDigest  bool
	notifyDryRun  bool
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Deliver the top undelivered listings to a channel",
	Long:  "Selects the best candidates that have not been sent on the channel yet, pushes messages through the configured webhook, and marks each delivery on confirmed success. --digest reopens flags older than the resend window and sends one summary instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		profileKey := notifyProfile
		if profileKey == "" {
			profileKey = cfg.Profiles.Default
		}
		if _, err := e.Profiles.Resolve(profileKey); err != nil {
			return err
		}

		var transport notify.Transport
		switch {
		case notifyDryRun:
			transport = &notify.LogTransport{Out: os.Stdout}
		case cfg.Notify.WebhookURL != "":
			transport = notify.NewWebhookTransport(cfg.Notify.WebhookURL, time.Duration(cfg.Notify.TimeoutSecs)*time.Second)
		default:
			return eris.New("notify.webhook_url not configured (use --dry-run to print instead)")
		}

		n := notify.NewNotifier(e.Selector, transport, cfg.Notify.MessagesPerSecond)

		f := selectionFilter()
		f.Channel = model.Channel(notifyChannel)

		var res *notify.CycleResult
		if notifyDigest {
			resendAfter := time.Duration(cfg.Selection.ResendDays) * 24 * time.Hour
			res, err = n.Digest(ctx, e.Store, profileKey, f, resendAfter)
		} else {
			res, err = n.Cycle(ctx, profileKey, f)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	notifyCmd.Flags().StringVar(&notifyProfile, "profile", "", "buyer profile (default from config)")
	notifyCmd.Flags().StringVar(&notifyChannel, "channel", string(model.ChannelMain), "delivery channel")
	notifyCmd.Flags().BoolVar(&notifyDigest, "digest", false, "send one summary and reopen flags older than the resend window")
	notifyCmd.Flags().BoolVar(&notifyDryRun, "dry-run", false, "print messages instead of sending")
	rootCmd.AddCommand(notifyCmd)
}
