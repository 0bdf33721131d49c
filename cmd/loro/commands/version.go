package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/loroworks/loro/go/cmd/loro/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.String())
		if isVerbose() {
			fmt.Printf("  go:     %s\n", runtime.Version())
			if cfg := getConfig(); cfg != nil {
				fmt.Printf("  config: %s\n", cfg.Path())
			} else {
				fmt.Println("  config: (unavailable)")
			}
		}
	},
}
