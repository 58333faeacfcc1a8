// Package files implements the one-shot file commands. Each command boots
// an in-memory runtime from the persistent store, performs its operation
// through the workspace, and exits.
package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sidkik/scratchpad/cmd/util"
	"github.com/sidkik/scratchpad/pkg/config"
	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/tree"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	stdin           io.Reader = os.Stdin
	parseUserConfig           = config.ParseUser
)

// New creates the file commands.
func New() []*cobra.Command {
	var filter string
	ls := &cobra.Command{
		Use:   "ls",
		Short: "Print the file tree",
		Args:  cobra.NoArgs,
		Run: runner(func(ctx context.Context, svc *util.Services, _ []string) error {
			printTree(stdout, svc.Workspace.FilteredTree(filter), 0)
			return nil
		}),
	}
	ls.Flags().StringVar(&filter, "filter", "",
		"Only show files whose name contains the given text, ignoring case.")

	var recursive bool
	rm := &cobra.Command{
		Use:   "rm PATH",
		Short: "Delete a file, or a directory with -r",
		Args:  cobra.ExactArgs(1),
		Run: runner(func(ctx context.Context, svc *util.Services, args []string) error {
			return svc.Workspace.Delete(ctx, args[0], recursive)
		}),
	}
	rm.Flags().BoolVarP(&recursive, "recursive", "r", false,
		"Delete a directory and everything in it.")

	return []*cobra.Command{
		ls,
		{
			Use:   "cat PATH",
			Short: "Print the contents of a file",
			Args:  cobra.ExactArgs(1),
			Run: runner(func(ctx context.Context, svc *util.Services, args []string) error {
				content, err := svc.Workspace.Content(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(stdout, content)
				return nil
			}),
		},
		{
			Use:   "put PATH [CONTENT|-]",
			Short: "Write a file, creating its parent directories",
			Long: "Write CONTENT to the file at PATH. If CONTENT is omitted or `-`,\n" +
				"the content is read from stdin.",
			Args: cobra.RangeArgs(1, 2),
			Run:  runner(put),
		},
		rm,
		{
			Use:   "mv OLD NEW",
			Short: "Rename a file or directory",
			Args:  cobra.ExactArgs(2),
			Run: runner(func(ctx context.Context, svc *util.Services, args []string) error {
				return svc.Workspace.Rename(ctx, args[0], args[1])
			}),
		},
		{
			Use:   "mkdir PATH",
			Short: "Create a directory and any missing parents",
			Args:  cobra.ExactArgs(1),
			Run: runner(func(ctx context.Context, svc *util.Services, args []string) error {
				return svc.Workspace.CreateDirectory(ctx, args[0])
			}),
		},
	}
}

type runFunc func(context.Context, *util.Services, []string) error

func runner(fn runFunc) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := withServices(cmd.Context(), args, fn); err != nil {
			util.HandleFatalError(err)
		}
	}
}

func withServices(ctx context.Context, args []string, fn runFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := parseUserConfig()
	if err != nil {
		return errors.WithContext(err, "read config")
	}
	cfg.Runtime = config.MemoryRuntime

	svc, err := util.NewServices(cfg)
	if err != nil {
		return errors.WithContext(err, "create services")
	}
	defer svc.Close()

	if err := svc.Boot(ctx); err != nil {
		return err
	}
	return fn(ctx, svc, args)
}

func put(ctx context.Context, svc *util.Services, args []string) error {
	var content string
	if len(args) == 2 && args[1] != "-" {
		content = args[1]
	} else {
		contentBytes, err := io.ReadAll(stdin)
		if err != nil {
			return errors.WithContext(err, "read stdin")
		}
		content = string(contentBytes)
	}

	p := runtime.Clean(args[0])
	if dir := path.Dir(p); dir != runtime.Root {
		if err := svc.Workspace.CreateDirectory(ctx, dir); err != nil {
			return errors.WithContext(err, "create parent")
		}
	}
	return svc.Workspace.Save(ctx, p, content)
}

func printTree(out io.Writer, nodes []*tree.FileNode, depth int) {
	for _, node := range nodes {
		name := node.Name
		if node.IsDir() {
			name += "/"
		}
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), name)
		printTree(out, node.Children, depth+1)
	}
}
