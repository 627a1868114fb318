package gen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
)

func mustGenerate(t *testing.T, g *Generator, coord world.ChunkCoord) *world.Chunk {
	t.Helper()
	chunk, err := g.Generate(context.Background(), coord)
	require.NoError(t, err)
	require.Equal(t, world.StateReady, chunk.State())
	return chunk
}

// sameBlocks сравнивает два чанка по всему объёму
func sameBlocks(a, b *world.Chunk) bool {
	if a.BlockCount() != b.BlockCount() {
		return false
	}
	for y := 0; y < a.Height; y++ {
		for z := 0; z < a.Size; z++ {
			for x := 0; x < a.Size; x++ {
				p := vec.Vec3{X: x, Y: y, Z: z}
				if a.BlockAt(p) != b.BlockAt(p) {
					return false
				}
			}
		}
	}
	return true
}

func TestGenerateDeterministic(t *testing.T) {
	coord := world.ChunkCoord{X: 0, Z: 0}

	a := mustGenerate(t, NewGenerator(42, DefaultParams()), coord)
	b := mustGenerate(t, NewGenerator(42, DefaultParams()), coord)

	assert.True(t, sameBlocks(a, b),
		"одинаковая пара (сид, координата) обязана давать идентичный чанк")
	assert.Greater(t, a.BlockCount(), 0)
}

func TestGenerateIndependentOfOrder(t *testing.T) {
	// Чанк (3,7) совпадает независимо от того, какие чанки сгенерированы до него
	coord := world.ChunkCoord{X: 3, Z: 7}

	g1 := NewGenerator(42, DefaultParams())
	a := mustGenerate(t, g1, coord)

	g2 := NewGenerator(42, DefaultParams())
	mustGenerate(t, g2, world.ChunkCoord{X: 0, Z: 0})
	mustGenerate(t, g2, world.ChunkCoord{X: -5, Z: 2})
	b := mustGenerate(t, g2, coord)

	assert.True(t, sameBlocks(a, b))
}

func TestGenerateSeedsDiffer(t *testing.T) {
	coord := world.ChunkCoord{}
	a := mustGenerate(t, NewGenerator(1, DefaultParams()), coord)
	b := mustGenerate(t, NewGenerator(2, DefaultParams()), coord)
	assert.False(t, sameBlocks(a, b), "разные сиды обязаны давать разный ландшафт")
}

func TestSurfaceHeightBounds(t *testing.T) {
	g := NewGenerator(42, DefaultParams())
	p := g.Params()

	for i := -200; i < 200; i += 7 {
		h := g.SurfaceHeight(i, -i)
		assert.GreaterOrEqual(t, h, 1)
		assert.LessOrEqual(t, h, p.Height-2)
	}
}

func TestGenerateSurfaceIsGrass(t *testing.T) {
	g := NewGenerator(42, DefaultParams())
	chunk := mustGenerate(t, g, world.ChunkCoord{X: 1, Z: -2})

	for z := 0; z < chunk.Size; z++ {
		for x := 0; x < chunk.Size; x++ {
			surface := g.SurfaceHeight(chunk.Coords.X*chunk.Size+x, chunk.Coords.Z*chunk.Size+z)
			got := chunk.BlockAt(vec.Vec3{X: x, Y: surface, Z: z})
			// Поверхность не вырезается пещерами, поэтому всегда трава
			assert.Equal(t, block.GrassBlockID, got,
				"колонка (%d,%d): на высоте %d ожидалась трава", x, z, surface)
		}
	}
}

func TestGenerateBlockCap(t *testing.T) {
	params := DefaultParams()
	params.MaxBlocksPerChunk = 100

	g := NewGenerator(42, params)
	chunk := mustGenerate(t, g, world.ChunkCoord{})
	assert.LessOrEqual(t, chunk.BlockCount(), 100)
}

func TestDefaultParamsBoundBlockCount(t *testing.T) {
	params := DefaultParams()
	require.Positive(t, params.MaxBlocksPerChunk, "потолок блоков включён по умолчанию")

	// Обычный рельеф в потолок не упирается: трава на поверхности уцелела
	g := NewGenerator(7, params)
	for _, coord := range []world.ChunkCoord{{X: 0, Z: 0}, {X: 3, Z: -2}, {X: -11, Z: 40}} {
		chunk := mustGenerate(t, g, coord)
		assert.LessOrEqual(t, chunk.BlockCount(), params.MaxBlocksPerChunk)
		surface := g.SurfaceHeight(coord.X*chunk.Size, coord.Z*chunk.Size)
		assert.Equal(t, block.GrassBlockID, chunk.BlockAt(vec.Vec3{X: 0, Y: surface, Z: 0}))
	}
}

func TestGenerateDegradedHalvesCap(t *testing.T) {
	params := DefaultParams()
	params.MaxBlocksPerChunk = 200

	g := NewGenerator(42, params)
	chunk, err := g.GenerateDegraded(context.Background(), world.ChunkCoord{})
	require.NoError(t, err)
	assert.LessOrEqual(t, chunk.BlockCount(), 100)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGenerator(42, DefaultParams())
	_, err := g.Generate(ctx, world.ChunkCoord{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateSeaLevelWater(t *testing.T) {
	params := DefaultParams()
	params.BaseHeight = 20
	params.HeightAmplitude = 0 // Плоский рельеф на высоте 20
	params.SeaLevel = 30

	g := NewGenerator(42, params)
	chunk := mustGenerate(t, g, world.ChunkCoord{})

	for z := 0; z < chunk.Size; z++ {
		for x := 0; x < chunk.Size; x++ {
			assert.Equal(t, block.GrassBlockID, chunk.BlockAt(vec.Vec3{X: x, Y: 20, Z: z}))
			for y := 21; y <= 30; y++ {
				assert.Equal(t, block.WaterBlockID, chunk.BlockAt(vec.Vec3{X: x, Y: y, Z: z}),
					"ниже уровня моря ожидалась вода")
			}
			assert.Equal(t, block.AirBlockID, chunk.BlockAt(vec.Vec3{X: x, Y: 31, Z: z}),
				"над уровнем моря воздух, деревья под водой не растут")
		}
	}
}

func TestGenerateBlocksAboveBottom(t *testing.T) {
	g := NewGenerator(42, DefaultParams())
	chunk := mustGenerate(t, g, world.ChunkCoord{})

	// Нижние два слоя никогда не вырезаются пещерами
	for z := 0; z < chunk.Size; z++ {
		for x := 0; x < chunk.Size; x++ {
			assert.Equal(t, block.StoneBlockID, chunk.BlockAt(vec.Vec3{X: x, Y: 0, Z: z}))
			assert.Equal(t, block.StoneBlockID, chunk.BlockAt(vec.Vec3{X: x, Y: 1, Z: z}))
		}
	}
}
