package config

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/scratchpad/pkg/errors"
)

const out = "/home/user/.scratchpad.yaml"

func mockUserConfig() {
	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		if strings.HasPrefix(path, "~") {
			return "/home/user" + strings.TrimPrefix(path, "~"), nil
		}
		return path, nil
	}
}

func TestParseUser(t *testing.T) {
	withOverrides := func(f func(*User)) User {
		user := DefaultUser()
		user.StorePath = "/home/user/store"
		f(&user)
		return user
	}

	tests := []struct {
		name          string
		input         string
		expConfig     User
		expError      error
		expParseError bool
	}{
		{
			name:  "Empty version defaults to the initial version",
			input: "storePath: store\nlisten: 0.0.0.0:8080\n",
			expConfig: withOverrides(func(u *User) {
				u.Listen = "0.0.0.0:8080"
			}),
		},
		{
			name: "All fields",
			input: fmt.Sprintf(`
version: %s
storePath: /var/lib/scratchpad
runtime: dir
runtimeDir: project
listen: 127.0.0.1:9000
treeTimeout: 2s
autosaveDelay: 250ms
contentCacheSize: 16
watch: false
watchIgnore: [dist]
`, SupportedUserConfigVersion),
			expConfig: User{
				Version:          SupportedUserConfigVersion,
				StorePath:        "/var/lib/scratchpad",
				Runtime:          DirRuntime,
				RuntimeDir:       "/home/user/project",
				Listen:           "127.0.0.1:9000",
				TreeTimeout:      Duration{2 * time.Second},
				AutosaveDelay:    Duration{250 * time.Millisecond},
				ContentCacheSize: 16,
				Watch:            false,
				WatchIgnore:      []string{"dist"},
			},
		},
		{
			name:  "Home directory paths",
			input: "storePath: ~/data/store\nruntime: dir\nruntimeDir: ~/project\n",
			expConfig: withOverrides(func(u *User) {
				u.StorePath = "/home/user/data/store"
				u.Runtime = DirRuntime
				u.RuntimeDir = "/home/user/project"
			}),
		},
		{
			name:  "Incorrect version",
			input: "version: incorrect_version\nextra: fields\n",
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedUserConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
		{
			name:          "Extra fields",
			input:         fmt.Sprintf("version: %s\nextra: fields\n", SupportedUserConfigVersion),
			expParseError: true,
		},
		{
			name:          "Duration without unit",
			input:         "treeTimeout: 15\n",
			expParseError: true,
		},
		{
			name:  "Unknown runtime",
			input: "runtime: docker\n",
			expError: errors.WithContext(errors.NewFriendlyError("Unknown runtime %q. "+
				"Expected %q or %q.", "docker", MemoryRuntime, DirRuntime), "validate"),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mockUserConfig()
			require.NoError(t, afero.WriteFile(fs, out, []byte(test.input), 0644))

			config, err := ParseUser()
			if test.expParseError {
				assert.IsType(t, errors.FriendlyError{}, errors.RootCause(err))
				return
			}

			assert.Equal(t, test.expError, err)
			if test.expError == nil {
				assert.Equal(t, test.expConfig, config)
			}
		})
	}
}

func TestParseMissingUser(t *testing.T) {
	mockUserConfig()

	config, err := ParseUser()
	require.NoError(t, err)

	exp := DefaultUser()
	exp.StorePath = "/home/user/.scratchpad/store"
	assert.Equal(t, exp, config)
}

func TestParseWrittenUser(t *testing.T) {
	mockUserConfig()

	user := DefaultUser()
	user.Version = ""
	user.StorePath = "/tmp/store"
	user.Runtime = DirRuntime
	user.RuntimeDir = "/tmp/project"
	user.AutosaveDelay = Duration{3 * time.Second}

	// Write the user to disk, and assert that we get the same user config when
	// we parse it.
	assert.NoError(t, WriteUser(user))

	parsed, err := ParseUser()
	assert.NoError(t, err)

	user.Version = SupportedUserConfigVersion
	assert.Equal(t, user, parsed)
}
