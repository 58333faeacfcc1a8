package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/scratchpad/cmd/config"
	"github.com/sidkik/scratchpad/cmd/files"
	"github.com/sidkik/scratchpad/cmd/reset"
	"github.com/sidkik/scratchpad/cmd/serve"
	"github.com/sidkik/scratchpad/cmd/util"
	"github.com/sidkik/scratchpad/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "SCRATCHPAD_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	var verbose bool
	rootCmd := &cobra.Command{
		Use:          "scratchpad",
		Short:        "Edit project files that survive runtime restarts",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log debug messages")

	rootCmd.AddCommand(
		configCmd.New(),
		reset.New(),
		serve.New(),
		version.New(),
	)
	rootCmd.AddCommand(files.New()...)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
