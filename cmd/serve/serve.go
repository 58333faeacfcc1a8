package serve

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/scratchpad/cmd/util"
	"github.com/sidkik/scratchpad/pkg/config"
	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/fswatch"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/server"
)

const bootRetryInterval = 5 * time.Second

// New creates a new `serve` command.
func New() *cobra.Command {
	var listen string
	var ephemeral bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project files over HTTP",
		Long: heredoc.Doc(`
			Boot the runtime, mount the persisted project files into it, and
			serve the file tree, file contents, and editor sessions over HTTP.

			If the runtime fails to boot, it's retried until it succeeds.
			Requests that change files fail until then.`),
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(listen, ephemeral); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "",
		"The address to listen on. Overrides the user config.")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false,
		"Keep project files in memory instead of the persistent store.")
	return cmd
}

func run(listen string, ephemeral bool) error {
	cfg, err := config.ParseUser()
	if err != nil {
		return errors.WithContext(err, "read config")
	}
	if listen == "" {
		listen = cfg.Listen
	}

	newServices := util.NewServices
	if ephemeral {
		newServices = util.NewEphemeralServices
		log.Warn("Running with an ephemeral store. Project files will be lost on exit.")
	}

	svc, err := newServices(cfg)
	if err != nil {
		return errors.WithContext(err, "create services")
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		defer util.HandlePanic()
		if bootWithRetry(ctx, svc) && cfg.Watch {
			watchRuntime(ctx, svc)
		}
	}()

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           server.New(svc.Workspace, svc.Editor, svc.Orchestrator),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to shut down HTTP server")
		}
	}()

	log.WithField("address", listen).Info("Serving project files")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WithContext(err, "serve")
	}
	return nil
}

// bootWithRetry boots the runtime, retrying until it succeeds or `ctx` is
// done. It returns whether the runtime was booted.
func bootWithRetry(ctx context.Context, svc *util.Services) bool {
	for {
		err := svc.Orchestrator.Initialize(ctx)
		if err == nil {
			return true
		}
		log.WithError(err).Errorf("Failed to boot runtime. "+
			"Will retry in %s.", bootRetryInterval)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(bootRetryInterval):
		}
	}
}

// watchRuntime refreshes the file tree whenever a directory-backed runtime
// is changed by another process, such as the user's shell.
func watchRuntime(ctx context.Context, svc *util.Services) {
	inst, err := svc.Holder.Current()
	if err != nil {
		return
	}

	dirInst, ok := inst.(runtime.DirInstance)
	if !ok {
		return
	}

	watcher, err := fswatch.Watch(dirInst.Dir(), svc.Config.WatchIgnore)
	if err != nil {
		log.WithError(err).Warn("Failed to watch runtime directory. " +
			"Changes made outside of scratchpad won't be noticed.")
		return
	}
	defer watcher.Close()

	log.WithField("dir", dirInst.Dir()).Info("Watching runtime directory for changes")
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-watcher.Changes:
			if !ok {
				return
			}
			svc.Workspace.RefreshTree(ctx)
		}
	}
}
