package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// fakeMesh реализует Mesh для тестов хранилища
type fakeMesh struct {
	faces    int
	disposed bool
}

func (m *fakeMesh) FaceCount() int { return m.faces }
func (m *fakeMesh) Dispose()       { m.disposed = true }

func newReadyChunk(coord ChunkCoord) *Chunk {
	c := NewChunk(coord, 16, 128)
	c.SetState(StateReady)
	return c
}

func TestStorePutGet(t *testing.T) {
	cs := NewChunkStore()
	coord := ChunkCoord{X: 1, Z: 2}

	assert.True(t, cs.Put(coord, newReadyChunk(coord)))
	assert.Equal(t, 1, cs.Len())

	got, ok := cs.Get(coord)
	require.True(t, ok)
	assert.Equal(t, coord, got.Coords)

	_, ok = cs.Get(ChunkCoord{X: 9, Z: 9})
	assert.False(t, ok)
}

func TestStoreFirstWriteWins(t *testing.T) {
	cs := NewChunkStore()
	coord := ChunkCoord{}

	first := newReadyChunk(coord)
	second := newReadyChunk(coord)

	assert.True(t, cs.Put(coord, first))
	assert.False(t, cs.Put(coord, second), "повторная вставка не замещает чанк")

	got, _ := cs.Peek(coord)
	assert.Same(t, first, got)
}

func TestEvictBeyond(t *testing.T) {
	cs := NewChunkStore()
	center := ChunkCoord{}

	// Квадрат 5x5 вокруг центра
	for dx := -2; dx <= 2; dx++ {
		for dz := -2; dz <= 2; dz++ {
			coord := ChunkCoord{X: dx, Z: dz}
			cs.Put(coord, newReadyChunk(coord))
		}
	}
	require.Equal(t, 25, cs.Len())

	// Радиус 1 оставляет квадрат 3x3; угловые (расстояние 2) уходят
	evicted := cs.EvictBeyond(center, 1)
	assert.Equal(t, 16, evicted)
	assert.Equal(t, 9, cs.Len())

	for _, coord := range cs.Coords() {
		assert.LessOrEqual(t, coord.ChebyshevTo(center), 1)
	}
}

func TestEvictBeyondSetsStateAndDisposesMeshes(t *testing.T) {
	cs := NewChunkStore()
	far := ChunkCoord{X: 10, Z: 10}

	chunk := newReadyChunk(far)
	m := &fakeMesh{faces: 42}
	chunk.StoreMesh(0, m)
	cs.Put(far, chunk)

	var freedCoord ChunkCoord
	var freedFaces int
	cs.SetEvictFunc(func(coord ChunkCoord, faces int) {
		freedCoord = coord
		freedFaces = faces
	})

	evicted := cs.EvictBeyond(ChunkCoord{}, 2)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, StateEvicted, chunk.State())
	assert.True(t, m.disposed)
	assert.Equal(t, far, freedCoord)
	assert.Equal(t, 42, freedFaces)
}

func TestEvictToCapacityFarthestFirst(t *testing.T) {
	cs := NewChunkStore()
	center := ChunkCoord{}

	coords := []ChunkCoord{
		{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 3, Z: 0}, {X: 0, Z: 5},
	}
	for _, c := range coords {
		cs.Put(c, newReadyChunk(c))
	}

	evicted := cs.EvictToCapacity(2, center)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 2, cs.Len())

	// Остаются два ближайших
	assert.True(t, cs.Contains(ChunkCoord{X: 0, Z: 0}))
	assert.True(t, cs.Contains(ChunkCoord{X: 1, Z: 0}))
}

func TestEvictToCapacityLRUTieBreak(t *testing.T) {
	cs := NewChunkStore()
	center := ChunkCoord{}

	// Два чанка на одинаковом расстоянии
	a := ChunkCoord{X: 2, Z: 0}
	b := ChunkCoord{X: 0, Z: 2}
	cs.Put(a, newReadyChunk(a))
	cs.Put(b, newReadyChunk(b))
	cs.Put(center, newReadyChunk(center))

	// Обновляем метку доступа только у a
	_, ok := cs.Get(a)
	require.True(t, ok)

	evicted := cs.EvictToCapacity(2, center)
	assert.Equal(t, 1, evicted)
	assert.True(t, cs.Contains(a), "недавно запрошенный чанк переживает застойный")
	assert.False(t, cs.Contains(b))
}

func TestEvictToCapacityNoop(t *testing.T) {
	cs := NewChunkStore()
	cs.Put(ChunkCoord{}, newReadyChunk(ChunkCoord{}))
	assert.Equal(t, 0, cs.EvictToCapacity(10, ChunkCoord{}))
	assert.Equal(t, 1, cs.Len())
}

func TestChunkSparseBlocks(t *testing.T) {
	c := NewChunk(ChunkCoord{}, 16, 128)

	pos := vec.Vec3{X: 1, Y: 10, Z: 3}
	c.SetBlock(pos, block.StoneBlockID)
	assert.Equal(t, block.StoneBlockID, c.BlockAt(pos))
	assert.Equal(t, 1, c.BlockCount())

	// Запись воздуха освобождает ячейку
	c.SetBlock(pos, block.AirBlockID)
	assert.Equal(t, block.AirBlockID, c.BlockAt(pos))
	assert.Equal(t, 0, c.BlockCount())

	// Вне заполненных ячеек — воздух
	assert.Equal(t, block.AirBlockID, c.BlockAt(vec.Vec3{X: 5, Y: 5, Z: 5}))
}

func TestChunkMeshCache(t *testing.T) {
	c := NewChunk(ChunkCoord{}, 16, 128)

	m0 := &fakeMesh{faces: 10}
	m1 := &fakeMesh{faces: 4}
	c.StoreMesh(0, m0)
	c.StoreMesh(1, m1)

	got, ok := c.CachedMesh(0)
	require.True(t, ok)
	assert.Equal(t, 10, got.FaceCount())
	assert.Equal(t, 14, c.CachedFaces())

	// Замена меша у того же LOD уничтожает старый
	repl := &fakeMesh{faces: 6}
	c.StoreMesh(0, repl)
	assert.True(t, m0.disposed)
	assert.Equal(t, 10, c.CachedFaces())

	freed := c.DisposeMeshes()
	assert.Equal(t, 10, freed)
	assert.True(t, m1.disposed)
	_, ok = c.CachedMesh(1)
	assert.False(t, ok)
}
