package respool_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPoolFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	contents := `
resource_pool:
  - id: node-a
    cpus: [{id: "0", slots: 4}, {id: "1", slots: 4}]
    gpus: [{id: "0", slots: 2}]
  - id: node-b
    cpus: [{id: "0", slots: 8}]
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	pool, err := respool.LoadPoolFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.NodeCount())
	assert.Equal(t, 16, pool.TotalSlots(respool.CPUType))
	assert.Equal(t, 2, pool.TotalSlots(respool.GPUType))
}
