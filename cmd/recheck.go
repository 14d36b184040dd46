package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/store"
)

var recheckCmd = &cobra.Command{
	Use:   "recheck [urls.txt]",
	Short: "Re-validate stored listings, one URL per input line",
	Long:  "Looks up each listing by URL or content hash, re-runs structural and liveness validation with bounded concurrency, and persists the new validity. Listings can recover from invalid to valid when a dead URL comes back.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return eris.Wrap(err, "open url list")
			}
			defer f.Close()
			in = f
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var listings []*model.Listing
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			key := strings.TrimSpace(sc.Text())
			if key == "" {
				continue
			}
			l, err := e.Store.FindByIdentity(ctx, key)
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					zap.L().Warn("listing not in store", zap.String("key", key))
					continue
				}
				return err
			}
			listings = append(listings, l)
		}
		if err := sc.Err(); err != nil {
			return eris.Wrap(err, "scan url list")
		}
		if len(listings) == 0 {
			return eris.New("no stored listings to recheck")
		}

		e.Validator.RecheckBatch(ctx, listings, cfg.Validate.RecheckWorkers)

		var recovered, flagged int
		for _, l := range listings {
			if err := e.Store.Upsert(ctx, l); err != nil {
				return err
			}
			if l.Valid {
				recovered++
			} else {
				flagged++
			}
		}

		fmt.Printf("rechecked %d listings: %d valid, %d flagged\n", len(listings), recovered, flagged)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recheckCmd)
}
