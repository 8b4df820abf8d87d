package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yankdl/yank/internal/output"
	"github.com/yankdl/yank/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [path]",
		Short: "Clean up leftover scratch directories",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 0 {
				if err := utils.CleanScratch(args[0]); err != nil {
					output.PrintError(fmt.Sprintf("Error cleaning up temporary files for %s", args[0]))
					os.Exit(1)
				}
				output.PrintSuccess("Temporary files cleaned up")
				return
			}
			removed, err := utils.CleanAllScratch(".")
			if err != nil {
				output.PrintError("Error cleaning up temporary files")
				os.Exit(1)
			}
			if removed == 0 {
				output.PrintInfo("No temporary files found")
				return
			}
			output.PrintSuccess(fmt.Sprintf("Cleaned up %d scratch directories", removed))
		},
	}
}
