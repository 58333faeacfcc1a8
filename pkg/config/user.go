package config

import (
	"path/filepath"
	"time"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/scratchpad/pkg/errors"
)

const (
	// UserConfigPath is the default path to the scratchpad user config.
	UserConfigPath = "~/.scratchpad.yaml"

	// InitialUserConfigVersion is the first version of the scratchpad user
	// config. Config files that do not specify a version will default to
	// this version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the supported version of the scratchpad
	// user config of the current binary.
	SupportedUserConfigVersion = "v1alpha1"

	// MemoryRuntime boots runtimes that only exist in memory.
	MemoryRuntime = "memory"

	// DirRuntime boots runtimes backed by a directory on disk, so that they
	// can be shared with a shell.
	DirRuntime = "dir"
)

// User contains the user's scratchpad settings.
type User struct {
	Version string `json:"version,omitempty"`

	// StorePath is the directory that files are persisted in.
	StorePath string `json:"storePath"`

	// Runtime is either MemoryRuntime or DirRuntime.
	Runtime string `json:"runtime"`

	// RuntimeDir is the directory used by DirRuntime. A temporary directory
	// is used if it's empty.
	RuntimeDir string `json:"runtimeDir,omitempty"`

	Listen           string   `json:"listen"`
	TreeTimeout      Duration `json:"treeTimeout"`
	AutosaveDelay    Duration `json:"autosaveDelay"`
	ContentCacheSize int      `json:"contentCacheSize"`

	// Watch enables refreshing the file tree when a DirRuntime's directory
	// is changed by another process.
	Watch       bool     `json:"watch"`
	WatchIgnore []string `json:"watchIgnore,omitempty"`
}

func (u User) getVersion() string {
	return u.Version
}

// DefaultUser returns the settings used when there's no user config.
func DefaultUser() User {
	return User{
		Version:          SupportedUserConfigVersion,
		StorePath:        "~/.scratchpad/store",
		Runtime:          MemoryRuntime,
		Listen:           "127.0.0.1:7070",
		TreeTimeout:      Duration{15 * time.Second},
		AutosaveDelay:    Duration{time.Second},
		ContentCacheSize: 512,
		Watch:            true,
		WatchIgnore:      []string{"node_modules", ".git"},
	}
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser attempts to parse the User stored in the default path. Settings
// that aren't in the file keep their defaults. If the file doesn't exist,
// the defaults are returned.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := DefaultUser()
	config.Version = InitialUserConfigVersion
	if err := parseConfig(path, &config, SupportedUserConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			config = DefaultUser()
		} else {
			return User{}, errors.WithContext(err, "parse")
		}
	}

	if err := config.validate(); err != nil {
		return User{}, errors.WithContext(err, "validate")
	}

	for _, p := range []*string{&config.StorePath, &config.RuntimeDir} {
		*p, err = expandPath(path, *p)
		if err != nil {
			return User{}, errors.WithContext(err, "expand path")
		}
	}
	return config, nil
}

func (u User) validate() error {
	if u.Runtime != MemoryRuntime && u.Runtime != DirRuntime {
		return errors.NewFriendlyError("Unknown runtime %q. "+
			"Expected %q or %q.", u.Runtime, MemoryRuntime, DirRuntime)
	}
	if u.StorePath == "" {
		return errors.NewFriendlyError("The storePath setting is required.")
	}
	return nil
}

// expandPath expands `~`, and evaluates relative paths relative to the
// config path.
func expandPath(configPath, path string) (string, error) {
	path, err := homedirExpand(path)
	if err != nil {
		return "", err
	}

	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(configPath), path)
	}
	return path, nil
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath returns the path to the user's scratchpad configuration.
// This path is expanded, so it can be directly passed to file operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
