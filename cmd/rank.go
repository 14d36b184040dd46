package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wohnwert/wohnwert/internal/vienna"
)

var (
	rankProfile  string
	rankLimit    int
	rankMinScore float64
	rankJSON     bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print the current top listings for a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		profileKey := rankProfile
		if profileKey == "" {
			profileKey = cfg.Profiles.Default
		}
		if _, err := e.Profiles.Resolve(profileKey); err != nil {
			return err
		}

		f := selectionFilter()
		if rankLimit > 0 {
			f.Limit = rankLimit
		}
		if cmd.Flags().Changed("min-score") {
			f.MinScore = rankMinScore
		}

		listings, err := e.Selector.Select(ctx, profileKey, f)
		if err != nil {
			return err
		}

		if rankJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(listings)
		}

		if len(listings) == 0 {
			fmt.Println("no listings match the current filters")
			return nil
		}

		for i, l := range listings {
			fmt.Printf("%2d. [%5.1f] %s\n", i+1, *l.Score, l.Title)
			if l.District != nil {
				fmt.Printf("      %s %s", *l.District, vienna.DistrictName(*l.District))
				if l.PriceTotal != nil {
					fmt.Printf("  € %.0f", *l.PriceTotal)
				}
				if l.AreaM2 != nil {
					fmt.Printf("  %.0f m²", *l.AreaM2)
				}
				fmt.Println()
			}
			if l.Financials != nil {
				fmt.Printf("      € %.0f/month", l.Financials.MonthlyTotal)
				if l.Financials.RequiredAnnualIncome != nil {
					fmt.Printf("  (requires € %.0f/yr income)", *l.Financials.RequiredAnnualIncome)
				}
				fmt.Println()
			}
			fmt.Printf("      %s\n", l.URL)
		}
		return nil
	},
}

func init() {
	rankCmd.Flags().StringVar(&rankProfile, "profile", "", "buyer profile (default from config)")
	rankCmd.Flags().IntVar(&rankLimit, "limit", 0, "max listings to print (default from config)")
	rankCmd.Flags().Float64Var(&rankMinScore, "min-score", 0, "score floor (default from config)")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "print raw JSON")
	rootCmd.AddCommand(rankCmd)
}
