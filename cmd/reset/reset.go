package reset

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/sidkik/scratchpad/cmd/util"
	"github.com/sidkik/scratchpad/pkg/config"
	"github.com/sidkik/scratchpad/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	parseUserConfig           = config.ParseUser
)

// New creates a new `reset` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every project file",
		Long: heredoc.Doc(`
			Delete every project file from the persistent store, leaving an
			empty project. This can't be undone.`),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := run(cmd.Context()); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := parseUserConfig()
	if err != nil {
		return errors.WithContext(err, "read config")
	}

	svc, err := util.NewServices(cfg)
	if err != nil {
		return errors.WithContext(err, "create services")
	}
	defer svc.Close()

	if err := svc.Boot(ctx); err != nil {
		return err
	}

	if err := svc.Orchestrator.Reset(ctx); err != nil {
		return errors.WithContext(err, "reset")
	}
	fmt.Fprintln(stdout, "Deleted all project files.")
	return nil
}
