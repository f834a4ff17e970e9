package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Little-Star888/agenttask/internal/engine"
	"github.com/Little-Star888/agenttask/internal/model"
	"github.com/Little-Star888/agenttask/internal/store"
)

const greetYAML = `name: greet
config:
  description: says hello
  steps:
    - type: set
      config:
        value: "hello ${name}"
      responseVariable: greeting
    - type: expr
      config:
        expression: "count * 2"
      responseVariable: doubled
`

func useTempDB(t *testing.T) {
	t.Helper()
	t.Setenv("AGENTTASK_STORE", "sqlite")
	t.Setenv("AGENTTASK_DB_PATH", filepath.Join(t.TempDir(), "tasks.db"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func importTask(t *testing.T, content string) string {
	t.Helper()
	out, err := execute(t, "tasks", "import", writeFile(t, "task.yaml", content))
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.Len(t, id, 26)
	return id
}

func TestImportListExport(t *testing.T) {
	useTempDB(t)
	id := importTask(t, greetYAML)

	out, err := execute(t, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "greet")

	out, err = execute(t, "tasks", "export", id)
	require.NoError(t, err)

	var doc taskFile
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "greet", doc.Name)
	assert.Equal(t, "says hello", doc.Config.Description)
	require.Len(t, doc.Config.Steps, 2)
	assert.Equal(t, "hello ${name}", doc.Config.Steps[0].Config["value"])
	assert.Equal(t, "doubled", doc.Config.Steps[1].ResponseVariable)
}

func TestImportWithIDOverwrites(t *testing.T) {
	useTempDB(t)
	id := importTask(t, greetYAML)

	path := writeFile(t, "renamed.yaml", strings.Replace(greetYAML, "name: greet", "name: renamed", 1))
	out, err := execute(t, "tasks", "import", path, "--id", id)
	require.NoError(t, err)
	assert.Equal(t, id, strings.TrimSpace(out))

	out, err = execute(t, "tasks", "get", id)
	require.NoError(t, err)
	var task model.Task
	require.NoError(t, json.Unmarshal([]byte(out), &task))
	assert.Equal(t, "renamed", task.Name)
}

func TestImportRejectsUnknownStepType(t *testing.T) {
	useTempDB(t)
	path := writeFile(t, "bad.yaml", "name: bad\nconfig:\n  steps:\n    - type: teleport\n")

	_, err := execute(t, "tasks", "import", path)
	require.Error(t, err)
	assert.True(t, model.IsDefinitionError(err), "got %v", err)
}

func TestRunPrintsResult(t *testing.T) {
	useTempDB(t)
	id := importTask(t, greetYAML)

	out, err := execute(t, "run", id, "--var", "name=ada", "--var", "count=21")
	require.NoError(t, err)

	var res model.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "hello ada", res.Variables["greeting"])
	assert.Equal(t, float64(42), res.Variables["doubled"])
}

func TestRunStepFailure(t *testing.T) {
	useTempDB(t)
	id := importTask(t, "name: broken\nconfig:\n  steps:\n    - type: fail\n      config:\n        message: nope\n")

	out, err := execute(t, "run", id)
	var se *engine.StepError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, 0, se.Index)

	var res model.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, model.RunFailed, res.Status)
	assert.Equal(t, model.ReasonStepFailed, res.Reason)
}

func TestDeleteTask(t *testing.T) {
	useTempDB(t)
	id := importTask(t, greetYAML)

	out, err := execute(t, "tasks", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = execute(t, "tasks", "get", id)
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func TestInvalidStoreFlag(t *testing.T) {
	useTempDB(t)
	_, err := execute(t, "tasks", "list", "--store", "floppy")
	require.Error(t, err)
}
