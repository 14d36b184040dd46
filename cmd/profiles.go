package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wohnwert/wohnwert/internal/criteria"
	"github.com/wohnwert/wohnwert/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List buyer profiles and their criterion weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := criteria.LoadCatalog(cfg.Criteria.Path)
		if err != nil {
			return err
		}
		registry, err := profile.LoadRegistry(catalog, cfg.Profiles.Path)
		if err != nil {
			return err
		}

		keys := registry.Keys()
		sort.Strings(keys)

		for _, key := range keys {
			p, err := registry.Resolve(key)
			if err != nil {
				return err
			}
			fmt.Printf("%s  (%s)\n", p.Key, p.Name)
			if p.Description != "" {
				fmt.Printf("  %s\n", p.Description)
			}
			for _, name := range p.Criteria() {
				fmt.Printf("  %-26s %5.2f\n", name, p.Weights[name])
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
