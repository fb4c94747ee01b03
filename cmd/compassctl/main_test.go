package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/planpulse/compass-api/pkg/config"
	"github.com/planpulse/compass-api/pkg/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testApp() *app {
	return &app{
		cfg:    &config.Config{APIMasterSecret: "master", JWTSecret: "jwt"},
		logger: zap.NewNop(),
		store:  mapping.NewStore(mapping.NewMemoryBackend(), nil),
	}
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	out, err := run(t, testApp(), "keygen", "alice")
	require.NoError(t, err)
	assert.Regexp(t, `alice\.[0-9a-f]{64}`, out)

	a := testApp()
	a.cfg.APIMasterSecret = ""
	_, err = run(t, a, "keygen", "alice")
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.csv")
	require.NoError(t, os.WriteFile(path, []byte("Role,Rate Type,Hourly Rate\nDeveloper,hourly,50\nDeveloper,hourly,55\n"), 0o600))

	out, err := run(t, testApp(), "import", "roles", path)
	require.NoError(t, err)

	var summary struct {
		Imported int `json:"imported"`
		Failed   int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Failed)

	_, err = run(t, testApp(), "import", "widgets", path)
	assert.Error(t, err)
}

func TestSuggest(t *testing.T) {
	out, err := run(t, testApp(), "suggest", "Sprint 3", "1", "2", "3", "4")
	require.NoError(t, err)
	assert.Equal(t, "Sprint 3 -> 3\n", out)

	out, err = run(t, testApp(), "suggest", "unknown-value", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "no suggestion")
}

func TestMappingsListAndClear(t *testing.T) {
	a := testApp()
	a.store.SaveValueMapping("people", "team", "FE", "Frontend")
	a.store.SaveValueMapping("allocations", "iteration", "S1", "1")

	out, err := run(t, a, "mappings", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "allocations\titeration\tS1\t1", lines[0])

	out, err = run(t, a, "mappings", "list", "--type", "people")
	require.NoError(t, err)
	assert.Equal(t, "people\tteam\tFE\tFrontend\n", out)

	_, err = run(t, a, "mappings", "clear", "--field", "team")
	assert.Error(t, err)

	out, err = run(t, a, "mappings", "clear", "--type", "people")
	require.NoError(t, err)
	assert.Equal(t, "removed 1 mappings (people)\n", out)
	assert.Equal(t, 1, a.store.Len())
}
