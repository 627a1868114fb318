package world

import (
	"sync"
	"sync/atomic"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// ChunkCoord идентифицирует горизонтальный слот чанка в мире.
// Чанк покрывает Size x Size x Height вокселей.
type ChunkCoord = vec.Vec2

// ChunkState описывает стадию жизненного цикла чанка
type ChunkState int32

const (
	StateRequested  ChunkState = iota // Координата принята планировщиком
	StateGenerating                   // Задача генерации выдана воркеру
	StateReady                        // Блоки построены, чанк неизменяем
	StateEvicted                      // Удалён из хранилища, меши уничтожены
)

// String возвращает строковое представление состояния
func (s ChunkState) String() string {
	switch s {
	case StateRequested:
		return "Requested"
	case StateGenerating:
		return "Generating"
	case StateReady:
		return "Ready"
	case StateEvicted:
		return "Evicted"
	default:
		return "Unknown"
	}
}

// Mesh — кэшируемый результат построения меша для одного LOD.
// Хранилище уничтожает меши при выгрузке чанка, не зная их устройства.
type Mesh interface {
	FaceCount() int
	Dispose()
}

// Chunk владеет разреженной коллекцией блоков одного слота мира.
// Воздух никогда не материализуется: отсутствие записи означает AirBlockID.
//
// Блоки заполняются единственным воркером генерации; после перехода в
// StateReady чанк неизменяем, и читатели могут держать ссылку без блокировок.
type Chunk struct {
	Coords ChunkCoord
	Size   int // Горизонтальный размер (обычно 16)
	Height int // Высота мира в блоках

	blocks map[vec.Vec3]block.BlockID

	state atomic.Int32

	meshMu sync.Mutex
	meshes map[uint8]Mesh
}

// NewChunk создаёт пустой чанк в состоянии Requested
func NewChunk(coords ChunkCoord, size, height int) *Chunk {
	c := &Chunk{
		Coords: coords,
		Size:   size,
		Height: height,
		blocks: make(map[vec.Vec3]block.BlockID),
		meshes: make(map[uint8]Mesh),
	}
	c.state.Store(int32(StateRequested))
	return c
}

// State возвращает текущее состояние чанка
func (c *Chunk) State() ChunkState {
	return ChunkState(c.state.Load())
}

// SetState переводит чанк в указанное состояние
func (c *Chunk) SetState(s ChunkState) {
	c.state.Store(int32(s))
}

// SetBlock устанавливает блок по локальным координатам.
// Установка воздуха удаляет запись (разреженное хранение).
// Вызывается только во время генерации, до перехода в StateReady.
func (c *Chunk) SetBlock(local vec.Vec3, id block.BlockID) {
	if id == block.AirBlockID {
		delete(c.blocks, local)
		return
	}
	c.blocks[local] = id
}

// BlockAt возвращает ID блока по локальным координатам.
// Отсутствие записи означает воздух.
func (c *Chunk) BlockAt(local vec.Vec3) block.BlockID {
	if id, ok := c.blocks[local]; ok {
		return id
	}
	return block.AirBlockID
}

// InBounds проверяет, что локальные координаты лежат внутри чанка
func (c *Chunk) InBounds(local vec.Vec3) bool {
	return local.X >= 0 && local.X < c.Size &&
		local.Z >= 0 && local.Z < c.Size &&
		local.Y >= 0 && local.Y < c.Height
}

// BlockCount возвращает число материализованных (не воздушных) блоков
func (c *Chunk) BlockCount() int {
	return len(c.blocks)
}

// IsSolidLocal отвечает на запрос занятости по локальным координатам
func (c *Chunk) IsSolidLocal(local vec.Vec3) bool {
	return block.IsSolid(c.BlockAt(local))
}

// StoreMesh кэширует построенный меш для уровня детализации
func (c *Chunk) StoreMesh(lod uint8, m Mesh) {
	c.meshMu.Lock()
	defer c.meshMu.Unlock()

	if old, ok := c.meshes[lod]; ok {
		old.Dispose()
	}
	c.meshes[lod] = m
}

// CachedMesh возвращает кэшированный меш уровня, если он есть
func (c *Chunk) CachedMesh(lod uint8) (Mesh, bool) {
	c.meshMu.Lock()
	defer c.meshMu.Unlock()

	m, ok := c.meshes[lod]
	return m, ok
}

// CachedFaces возвращает суммарное число граней во всех кэшированных мешах.
// Используется монитором бюджета как счётчик геометрии.
func (c *Chunk) CachedFaces() int {
	c.meshMu.Lock()
	defer c.meshMu.Unlock()

	total := 0
	for _, m := range c.meshes {
		total += m.FaceCount()
	}
	return total
}

// DisposeMeshes уничтожает все кэшированные меши и возвращает число
// освобождённых граней. Вызывается хранилищем при выгрузке чанка.
func (c *Chunk) DisposeMeshes() int {
	c.meshMu.Lock()
	defer c.meshMu.Unlock()

	freed := 0
	for lod, m := range c.meshes {
		freed += m.FaceCount()
		m.Dispose()
		delete(c.meshes, lod)
	}
	return freed
}
