package block

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	RegisterDefaults()
	os.Exit(m.Run())
}

func TestTransparency(t *testing.T) {
	assert.True(t, IsTransparent(AirBlockID), "воздух всегда прозрачен")
	assert.True(t, IsTransparent(WaterBlockID))
	assert.True(t, IsTransparent(LeavesBlockID))
	assert.False(t, IsTransparent(StoneBlockID))
	assert.False(t, IsTransparent(GrassBlockID))

	// Незарегистрированный ID прозрачен: лучше лишняя грань, чем дыра
	assert.True(t, IsTransparent(BlockID(9999)))
}

func TestSolidity(t *testing.T) {
	assert.False(t, IsSolid(AirBlockID))
	assert.False(t, IsSolid(WaterBlockID))
	assert.True(t, IsSolid(StoneBlockID))
	assert.True(t, IsSolid(WoodBlockID))
	assert.False(t, IsSolid(BlockID(9999)))
}

func TestRegisterOverrides(t *testing.T) {
	Register(Def{ID: BlockID(200), Name: "obsidian", Hardness: 50})
	def, ok := Get(BlockID(200))
	require.True(t, ok)
	assert.Equal(t, "obsidian", def.Name)

	Register(Def{ID: BlockID(200), Name: "bedrock", Hardness: 100})
	def, _ = Get(BlockID(200))
	assert.Equal(t, "bedrock", def.Name, "повторная регистрация перезаписывает")
}

func TestLoadYAMLBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.yml")
	data := `blocks:
  - id: 150
    name: marble
    transparent: false
    hardness: 2.5
  - id: 0
    name: fake-air
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	require.NoError(t, LoadYAMLBlocks(path))

	def, ok := Get(BlockID(150))
	require.True(t, ok)
	assert.Equal(t, "marble", def.Name)
	assert.Equal(t, 2.5, def.Hardness)

	// Воздух не регистрируется даже из YAML
	_, ok = Get(AirBlockID)
	assert.False(t, ok)
}

func TestLoadYAMLBlocksMissingFile(t *testing.T) {
	err := LoadYAMLBlocks(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
