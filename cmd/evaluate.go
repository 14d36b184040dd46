package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wohnwert/wohnwert/internal/model"
)

var evaluateProfile string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [listings.json]",
	Short: "Validate, score and persist a batch of listings",
	Long:  "Reads listings as a JSON array or NDJSON from a file or stdin, runs the evaluation pass under the chosen buyer profile, and upserts the results into the store.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return eris.Wrap(err, "open listings file")
			}
			defer f.Close()
			in = f
		}

		listings, err := readListings(in)
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			return eris.New("no listings in input")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Store.Migrate(ctx); err != nil {
			return err
		}

		profileKey := evaluateProfile
		if profileKey == "" {
			profileKey = cfg.Profiles.Default
		}

		report, err := e.Evaluator.Run(ctx, profileKey, listings)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// readListings accepts either a JSON array or newline-delimited JSON
// objects.
func readListings(r io.Reader) ([]model.Listing, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "read input")
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var listings []model.Listing
		if err := json.Unmarshal(trimmed, &listings); err != nil {
			return nil, eris.Wrap(err, "parse listings array")
		}
		return listings, nil
	}

	var listings []model.Listing
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var l model.Listing
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, eris.Wrapf(err, "parse listing on line %d", line)
		}
		listings = append(listings, l)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "scan input")
	}
	return listings, nil
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateProfile, "profile", "", "buyer profile (default from config)")
	rootCmd.AddCommand(evaluateCmd)
}
