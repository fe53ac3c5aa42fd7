package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X .../commands.version=...".
var (
	version = "dev"
	commit  = "none"
)

func Execute() error {
	root := &cobra.Command{
		Use:          "paywall",
		Short:        "Subscription paywall service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), catalogCmd(), versionCmd())
	return root.ExecuteContext(context.Background())
}
