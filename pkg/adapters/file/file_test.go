package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/phasewise/pkg/adapters/file"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/ports"
	contract "github.com/aretw0/phasewise/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const graphYAML = `
name: file-graph
entry: start
completion: end
phases:
  - id: start
    requirements:
      - name: mood
        required: true
        schema: string
  - id: end
edges:
  - from: start
    to: end
`

const graphJSON = `{
  "name": "json-graph",
  "entry": "start",
  "completion": "end",
  "phases": [
    {"id": "start", "requirements": [{"name": "level", "required": true, "schema": {"type": "int", "minimum": 0, "maximum": 10}}]},
    {"id": "end"}
  ],
  "edges": [{"from": "start", "to": "end"}]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSource_YAMLContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	writeFile(t, path, graphYAML)
	contract.GraphSourceContractTest(t, file.NewSource(path), []string{"start", "end"})
}

func TestSource_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	writeFile(t, path, graphJSON)

	def, err := file.NewSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "json-graph", def.Name)
	require.Len(t, def.Phases[0].Requirements, 1)
	assert.Equal(t, "integer", string(def.Phases[0].Requirements[0].Schema.Type))
}

func TestSource_MissingFile(t *testing.T) {
	_, err := file.NewSource(filepath.Join(t.TempDir(), "nope.yaml")).Load(context.Background())
	assert.Error(t, err)
}

func TestSource_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	writeFile(t, path, graphYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := file.NewSource(path, file.WithDebounce(20*time.Millisecond))
	ch, err := source.Watch(ctx)
	require.NoError(t, err)

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1")
	writeFile(t, path, graphYAML+"description: changed\n")

	select {
	case _, ok := <-ch:
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a reload signal")
	}

	def, err := source.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "changed", def.Description)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.NewStore(t.TempDir()))
}

func TestStore_RejectsPathSessionIDs(t *testing.T) {
	store := file.NewStore(t.TempDir())
	err := store.Save(context.Background(), "../escape", domain.NewSession("x", "g", time.Now()))
	assert.Error(t, err)
}
