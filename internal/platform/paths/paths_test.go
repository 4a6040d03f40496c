package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDataRoot(t *testing.T) {
	os.Unsetenv(dataDirEnv)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, DefaultDataDirName), ResolveDataRoot())

	os.Setenv(dataDirEnv, "/custom/data")
	defer os.Unsetenv(dataDirEnv)
	assert.Equal(t, "/custom/data", ResolveDataRoot())
}

func TestResolveSubPaths(t *testing.T) {
	os.Setenv(dataDirEnv, "/custom/data")
	defer os.Unsetenv(dataDirEnv)

	assert.Equal(t, "/custom/data/config.yaml", ResolveConfigPath(""))
	assert.Equal(t, "/explicit.yaml", ResolveConfigPath("/explicit.yaml"))
	assert.Equal(t, "/custom/data/rules.yaml", ResolveRulesPath(""))
	assert.Equal(t, "/custom/data/memory.md", ResolveMemoryPath(""))
}

func TestSafeJoin(t *testing.T) {
	base := "/data/physical-mcp"

	cases := []struct {
		name     string
		elements []string
		valid    bool
	}{
		{"normal", []string{"logs", "app.log"}, true},
		{"parent", []string{"..", "other"}, false},
		{"nested_parent", []string{"logs", "..", "..", "secrets"}, false},
		{"absolute", []string{"/etc/passwd"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := SafeJoin(base, tc.elements...)
			if tc.valid {
				assert.NoError(t, err)
				assert.Contains(t, res, base)
			} else {
				if assert.Error(t, err) {
					assert.Contains(t, err.Error(), "traversal")
				}
			}
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	tmpRoot := filepath.Join(os.TempDir(), "physical_mcp_test_data")
	os.Setenv(dataDirEnv, tmpRoot)
	defer os.Unsetenv(dataDirEnv)
	defer os.RemoveAll(tmpRoot)

	require := assert.New(t)
	require.NoError(EnsureDirs())

	for _, sub := range []string{"logs", "cache"} {
		_, err := os.Stat(filepath.Join(tmpRoot, sub))
		require.NoError(err, "subdirectory %s should exist", sub)
	}
}
