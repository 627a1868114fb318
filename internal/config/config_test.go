package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().World, cfg.World)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `world:
  seed: 777
  load_radius: 4
  unload_radius: 6
mesh:
  lod_distance_bands: [2, 4]
  per_lod_face_budget: [8000, 4000, 2000]
server:
  metrics_port: 9200
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(777), cfg.World.Seed)
	assert.Equal(t, 4, cfg.World.LoadRadius)
	assert.Equal(t, []int{2, 4}, cfg.Mesh.DistanceBands)
	assert.Equal(t, 9200, cfg.Server.GetMetricsPort())

	// Незатронутые поля остаются дефолтными
	assert.Equal(t, Default().World.ChunkSize, cfg.World.ChunkSize)
}

func TestValidateHysteresis(t *testing.T) {
	cfg := Default()
	cfg.World.UnloadRadius = cfg.World.LoadRadius
	assert.Error(t, cfg.Validate(), "радиус удержания обязан быть больше радиуса загрузки")
}

func TestValidateChunkSizePowerOfTwo(t *testing.T) {
	cfg := Default()
	cfg.World.ChunkSize = 15
	assert.Error(t, cfg.Validate())
}

func TestValidateCapacityCoversLoadZone(t *testing.T) {
	cfg := Default()
	cfg.World.MaxChunks = 10
	assert.Error(t, cfg.Validate(), "ёмкость меньше зоны загрузки недопустима")
}

func TestValidateBandsAscending(t *testing.T) {
	cfg := Default()
	cfg.Mesh.DistanceBands = []int{3, 3, 5}
	assert.Error(t, cfg.Validate())
}

func TestValidateBudgetsCoverBands(t *testing.T) {
	cfg := Default()
	cfg.Mesh.DistanceBands = []int{2, 4, 6}
	cfg.Mesh.FaceBudgets = []int{1000, 500}
	assert.Error(t, cfg.Validate())

	cfg.Mesh.FaceBudgets = []int{1000, 500, 0, 100}
	assert.Error(t, cfg.Validate(), "нулевой бюджет недопустим")
}

func TestMetricsPortEnvFallback(t *testing.T) {
	cfg := Default()
	require.Equal(t, 0, cfg.Server.MetricsPort)

	t.Setenv("VOXEL_METRICS_PORT", "9999")
	assert.Equal(t, 9999, cfg.Server.GetMetricsPort())

	t.Setenv("VOXEL_METRICS_PORT", "")
	assert.Equal(t, 2112, cfg.Server.GetMetricsPort())
}
