package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/ui"
)

type result struct {
	code   int
	stdout string
	stderr string
}

// env gives each test its own working directory, config home and store.
type env struct {
	t    *testing.T
	dir  string
	args []string
}

func newEnv(t *testing.T, driver string) *env {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, k := range []string{"TADA_STORE", "TADA_PATH", "TADA_THEME", "TADA_GROUP", "TADA_LOG_LEVEL", "TADA_LOG_FORMAT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Cleanup(func() { ui.SetColorForcing(false, false); ui.SetTheme("classic") })

	file := "todos.json"
	if driver == "sqlite" {
		file = "todos.db"
	}
	return &env{
		t:    t,
		dir:  dir,
		args: []string{"--store", driver, "--path", filepath.Join(dir, file), "--theme", "mono", "--no-color"},
	}
}

func (e *env) run(args ...string) result {
	e.t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), append(append([]string{}, e.args...), args...), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func (e *env) export(args ...string) []model.Item {
	e.t.Helper()
	r := e.run(append([]string{"export"}, args...)...)
	require.Equal(e.t, 0, r.code, r.stderr)
	var items []model.Item
	require.NoError(e.t, json.Unmarshal([]byte(r.stdout), &items))
	return items
}

func titles(items []model.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "todo", cmd.Use)

	for _, name := range []string{"add", "ls", "done", "rm", "export", "tui"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"config", "store", "path", "theme", "log-level", "no-color", "group"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestNoArgsPrintsHelp(t *testing.T) {
	e := newEnv(t, "json")
	r := e.run()
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stdout, "Usage:")
}

func TestUnknownCommand(t *testing.T) {
	e := newEnv(t, "json")
	r := e.run("frobnicate")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, "unknown command")
}

func TestAddListToggleRemove(t *testing.T) {
	for _, driver := range []string{"json", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			e := newEnv(t, driver)

			r := e.run("add", "Buy", "milk")
			require.Equal(t, 0, r.code, r.stderr)
			assert.Equal(t, "x added\n", r.stdout)

			require.Equal(t, 0, e.run("add", "Call client").code)

			items := e.export()
			require.Len(t, items, 2)
			assert.ElementsMatch(t, []string{"Buy milk", "Call client"}, titles(items))

			r = e.run("ls")
			require.Equal(t, 0, r.code, r.stderr)
			assert.Contains(t, r.stdout, "Todos  x 0  - 2  Total 2")
			assert.Contains(t, r.stdout, " 1. [ ] "+items[0].Title)
			assert.Contains(t, r.stdout, " 2. [ ] "+items[1].Title)

			r = e.run("done", "2")
			require.Equal(t, 0, r.code, r.stderr)
			assert.Contains(t, r.stdout, "done: "+items[1].Title)

			after := e.export()
			assert.False(t, after[0].IsChecked)
			assert.True(t, after[1].IsChecked)

			r = e.run("rm", items[0].ID.String())
			require.Equal(t, 0, r.code, r.stderr)
			assert.Contains(t, r.stdout, "removed: "+items[0].Title)

			left := e.export()
			require.Len(t, left, 1)
			assert.Equal(t, items[1].ID, left[0].ID)
		})
	}
}

func TestAddEmptyTitle(t *testing.T) {
	e := newEnv(t, "json")

	r := e.run("add", "   ")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, "add: empty title")

	r = e.run("add")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, "usage: todo add")
}

func TestRefErrors(t *testing.T) {
	e := newEnv(t, "json")
	require.Equal(t, 0, e.run("add", "only").code)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"index too large", []string{"done", "5"}, "index out of range: have 1, got 5"},
		{"index zero", []string{"rm", "0"}, "index out of range"},
		{"garbage", []string{"rm", "abc"}, "not an index or id"},
		{"unknown id", []string{"done", "6f1c1a8e-2b9d-4c1e-9a53-0c3b2f6d7e10"}, "no item with id"},
		{"missing arg", []string{"done"}, "usage: todo done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.run(tt.args...)
			assert.Equal(t, 2, r.code)
			assert.Contains(t, r.stderr, tt.want)
		})
	}

	r := e.run("done", "5")
	assert.Contains(t, r.stderr, "Hint: run `todo ls`")
}

func TestFilteredIndexes(t *testing.T) {
	e := newEnv(t, "json")
	require.Equal(t, 0, e.run("add", "Crème brûlée").code)
	require.Equal(t, 0, e.run("add", "Buy milk").code)

	r := e.run("ls", "--filter", "CREME")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Crème brûlée")
	assert.NotContains(t, r.stdout, "Buy milk")
	assert.Contains(t, r.stdout, "filter: CREME")

	r = e.run("done", "--filter", "creme", "1")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "done: Crème brûlée")

	filtered := e.export("--filter", "creme")
	require.Len(t, filtered, 1)
	assert.True(t, filtered[0].IsChecked)
}

func TestListGrouped(t *testing.T) {
	e := newEnv(t, "json")
	require.Equal(t, 0, e.run("add", "a").code)

	r := e.run("--group", "ls")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Pending")
	assert.Contains(t, r.stdout, "Done")
	assert.Contains(t, r.stdout, "(none)")
}

func TestListEmpty(t *testing.T) {
	e := newEnv(t, "json")
	r := e.run("ls")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "no items")
	_, err := os.Stat(filepath.Join(e.dir, "todos.json"))
	assert.True(t, os.IsNotExist(err), "listing must not create the store file")
}

func TestExportYAML(t *testing.T) {
	e := newEnv(t, "json")
	require.Equal(t, 0, e.run("add", "Water plants").code)

	r := e.run("export", "--format", "yaml")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "title: Water plants")
	assert.Contains(t, r.stdout, "is_checked: false")

	var items []model.Item
	require.NoError(t, yaml.Unmarshal([]byte(r.stdout), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Water plants", items[0].Title)

	r = e.run("export", "--format", "xml")
	assert.Equal(t, 2, r.code)
}

func TestInvalidConfigIsUsageError(t *testing.T) {
	e := newEnv(t, "json")
	r := e.run("--theme", "solarized", "ls")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, "invalid theme")
}

func TestFlagsOverrideInvalidEnvironment(t *testing.T) {
	e := newEnv(t, "json")
	t.Setenv("TADA_STORE", "bogus")
	t.Setenv("TADA_THEME", "solarized")

	r := e.run("ls")
	assert.Equal(t, 0, r.code, r.stderr)

	var out, errOut bytes.Buffer
	code := Execute(context.Background(), []string{"ls"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "invalid store driver")
}

func TestCorruptStoreIsRuntimeError(t *testing.T) {
	e := newEnv(t, "json")
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "todos.json"), []byte("oops"), 0o644))

	r := e.run("ls")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "json unmarshal")
}

func TestDebugLogging(t *testing.T) {
	e := newEnv(t, "json")
	r := e.run("--log-level", "debug", "add", "logged")
	require.Equal(t, 0, r.code)
	assert.True(t, strings.Contains(r.stderr, "item created"), r.stderr)
}
