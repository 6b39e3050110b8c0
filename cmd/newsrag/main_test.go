package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/newsrag/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "newsrag.yaml")
	body := fmt.Sprintf(`database:
  path: %s
  articles_path: %s
assets:
  dir: %s
logging:
  level: warn
`, filepath.Join(dir, "vectors"), filepath.Join(dir, "articles.db"), filepath.Join(dir, "images"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run(append([]string{"newsrag"}, args...))
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error", ""} {
		assert.NoError(t, setupLogger(level), level)
	}
	err := setupLogger("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInvalidLogLevelFlag(t *testing.T) {
	_, err := runApp(t, "--config", writeConfig(t), "--log-level", "loud", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runApp(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "stats")
	assert.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	out, err := runApp(t, "--config", writeConfig(t), "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Articles:       0")
	assert.Contains(t, out, "text records:")
	assert.Contains(t, out, "image records:")
}

func TestQueryCommand(t *testing.T) {
	cfgPath := writeConfig(t)

	t.Run("question is required", func(t *testing.T) {
		_, err := runApp(t, "--config", cfgPath, "query")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question is required")
	})

	t.Run("empty store has no context", func(t *testing.T) {
		out, err := runApp(t, "--config", cfgPath, "query", "what", "happened?")
		require.NoError(t, err)
		assert.Contains(t, out, search.NoContextMessage)
		assert.NotContains(t, out, "Sources:")
	})

	t.Run("invalid modality", func(t *testing.T) {
		_, err := runApp(t, "--config", cfgPath, "query", "--modality", "audio", "q")
		assert.Error(t, err)
	})
}

func TestCommandFlags(t *testing.T) {
	app := newApp()
	names := map[string]*cli.Command{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = cmd
	}
	for _, name := range []string{"scrape", "build-db", "serve-ui", "query", "stats"} {
		assert.Contains(t, names, name)
	}

	var progress *cli.BoolFlag
	for _, flag := range names["build-db"].Flags {
		if f, ok := flag.(*cli.BoolFlag); ok && f.Name == "progress" {
			progress = f
		}
	}
	require.NotNil(t, progress)
	assert.True(t, progress.Value)
}
