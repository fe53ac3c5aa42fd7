package commands

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/paywall/pkg/config"
	svc "github.com/dmitrymomot/paywall/svc/paywall"
)

func catalogCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the offering catalog the service would start with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg svc.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			if file != "" {
				cfg.CatalogFile = file
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}
			return catalog.EncodeYAML(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file (overrides PAYWALL_CATALOG_FILE)")
	return cmd
}
