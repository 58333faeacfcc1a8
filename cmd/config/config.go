package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/scratchpad/cmd/util"
	"github.com/sidkik/scratchpad/pkg/config"
	"github.com/sidkik/scratchpad/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout              io.Writer = os.Stdout
	stdin               io.Reader = os.Stdin
	parseUserConfig               = config.ParseUser
	writeUserConfig               = config.WriteUser
	getWorkingDirectory           = os.Getwd
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the scratchpad user configuration",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.StorePath, "store-path", "",
		"Set the directory that project files are persisted in. "+
			"Optional: If not set, `scratchpad config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Runtime, "runtime", "",
		"Set the runtime (memory or dir). "+
			"Optional: If not set, `scratchpad config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.RuntimeDir, "runtime-dir", "",
		"Set the directory used by the dir runtime. "+
			"Optional: If not set, `scratchpad config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Listen, "listen", "",
		"Set the address that `scratchpad serve` listens on.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-store-path",
			short: "Get the directory that project files are persisted in",
			fn:    func(cfg config.User) string { return cfg.StorePath },
		},
		{
			use:   "get-runtime",
			short: "Get the configured runtime",
			fn:    func(cfg config.User) string { return cfg.Runtime },
		},
		{
			use:   "get-listen",
			short: "Get the address that `scratchpad serve` listens on",
			fn:    func(cfg config.User) string { return cfg.Listen },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

// SetupConfig writes the user config, prompting for any settings that
// weren't set in `cliOpts`.
func SetupConfig(cliOpts config.User) error {
	cfg, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeUserConfig(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func runtimeValidationFn(runtime string) (string, bool) {
	if runtime == config.MemoryRuntime || runtime == config.DirRuntime {
		return "", true
	}
	return fmt.Sprintf("The runtime must be either %q or %q.",
		config.MemoryRuntime, config.DirRuntime), false
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is. Settings that aren't prompted for keep their current
// values.
func generateConfig(cliOpts config.User) (config.User, error) {
	defaults := config.DefaultUser()
	currConfig, err := parseUserConfig()
	if err != nil {
		currConfig = defaults
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg := currConfig
	if cliOpts.Listen != "" {
		cfg.Listen = cliOpts.Listen
	}

	prompts := []prompt{
		{
			helpString: "Enter the directory to persist project files in.\n" +
				"Files in this directory survive restarts and reboots of the runtime.",
			prompt:        "Store path",
			defaultAnswer: defaults.StorePath,
			currAnswer:    currConfig.StorePath,
			field:         &cfg.StorePath,
		},
		{
			helpString: "Enter the runtime to run the project in.\n" +
				"The `memory` runtime is private to scratchpad. The `dir` runtime\n" +
				"is a directory on disk that can be shared with a shell.",
			prompt:        "Runtime",
			defaultAnswer: defaults.Runtime,
			currAnswer:    currConfig.Runtime,
			field:         &cfg.Runtime,
			validationFn:  runtimeValidationFn,
		},
	}

	fromFlags := []string{cliOpts.StorePath, cliOpts.Runtime}
	for i, prompt := range prompts {
		if fromFlags[i] != "" {
			*prompt.field = fromFlags[i]
			continue
		}

		resp, err := ask(prompt)
		if err != nil {
			return config.User{}, err
		}
		*prompt.field = resp
	}

	if msg, ok := runtimeValidationFn(cfg.Runtime); !ok {
		return config.User{}, errors.NewFriendlyError(msg)
	}

	if cfg.Runtime != config.DirRuntime {
		cfg.RuntimeDir = ""
		return cfg, nil
	}

	if cliOpts.RuntimeDir != "" {
		cfg.RuntimeDir = cliOpts.RuntimeDir
		return cfg, nil
	}

	var defaultDir string
	if wd, err := getWorkingDirectory(); err == nil {
		defaultDir = filepath.Join(wd, "scratchpad")
	} else {
		log.WithError(err).Info("Failed to guess runtime directory")
	}

	cfg.RuntimeDir, err = ask(prompt{
		helpString: "Enter the directory for the dir runtime.\n" +
			"Its contents are replaced by the project files on boot.",
		prompt:        "Runtime directory",
		defaultAnswer: defaultDir,
		currAnswer:    currConfig.RuntimeDir,
	})
	if err != nil {
		return config.User{}, err
	}
	return cfg, nil
}

func ask(prompt prompt) (resp string, err error) {
	for {
		resp, err = promptUser(prompt.helpString, prompt.prompt,
			prompt.defaultAnswer, prompt.currAnswer)
		if err != nil {
			return "", errors.WithContext(err, "read response")
		}

		if prompt.validationFn == nil {
			return resp, nil
		}

		validationErr, ok := prompt.validationFn(resp)
		if ok {
			return resp, nil
		}

		fmt.Fprintln(stdout, validationErr)
	}
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		// defaultAnswer or currAnswer exists.
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if choice == nOptions {
				// Enter manually.
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
