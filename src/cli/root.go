// Package cli implements the sconemap command tree: a batch driver
// that replays mmap/munmap/fork scenarios against a simulated process
// and renders the resulting address-space state.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is stamped by the build.
var Version = "dev"

var (
	jsonFlag    bool
	verboseFlag bool
)

// NewRootCmd builds the sconemap command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sconemap",
		Short:         "scone memory-mapping driver",
		Long:          "sconemap — replay mmap scenarios against a simulated scone process and inspect the region table.",
		Version:       fmt.Sprintf("sconemap v%s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag && jsonFlag {
				return fmt.Errorf("--verbose and --json are mutually exclusive")
			}
			if verboseFlag {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
			return nil
		},
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pflags := rootCmd.PersistentFlags()
	pflags.BoolVarP(&jsonFlag, "json", "j", false, "Output as JSON")
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Trace every operation to stderr")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newLayoutCmd())
	return rootCmd
}
