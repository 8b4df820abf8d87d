package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yankdl/yank/internal/output"
	"github.com/yankdl/yank/internal/utils"
)

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := utils.ReadDownloadList(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to read download list: %v", err))
				os.Exit(1)
			}
			if len(entries) == 0 {
				output.PrintError("No downloads found in the list")
				os.Exit(1)
			}
			// Keep the aggregate connection count across links bounded
			connectionsPerLink := connections
			maxConnections := 64
			if len(entries)*connectionsPerLink > maxConnections {
				connectionsPerLink = max(maxConnections/len(entries), 1)
			}
			for i := range entries {
				if entries[i].Connections == 0 {
					entries[i].Connections = connectionsPerLink
				}
			}
			clientConfig := buildClientConfig()
			clientConfig.HighThreadMode = connectionsPerLink > 5
			if err := runDownloads(entries, clientConfig); err != nil {
				fmt.Println()
				output.PrintError("Encountered failed operation(s)")
				os.Exit(1)
			}
		},
	}
}
