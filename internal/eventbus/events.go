package eventbus

import (
	"time"

	"github.com/google/uuid"

	"github.com/annel0/voxel-stream/internal/vec"
)

// Типы событий потокового движка
const (
	TypeChunkMeshReady  = "ChunkMeshReady"
	TypeChunkEvicted    = "ChunkEvicted"
	TypePressureChanged = "PressureChanged"
)

// ChunkMeshReadyEvent публикуется, когда меш чанка готов к отрисовке
type ChunkMeshReadyEvent struct {
	Coord     vec.Vec2
	LOD       uint8
	FaceCount int
	Truncated bool
}

// ChunkEvictedEvent публикуется при выгрузке чанка из кэша
type ChunkEvictedEvent struct {
	Coord      vec.Vec2
	FreedFaces int
}

// PressureChangedEvent публикуется при смене уровня ресурсного давления
type PressureChangedEvent struct {
	Tier string
}

func newEnvelope(source, evType string, priority int, payload any) *Envelope {
	return &Envelope{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: evType,
		Priority:  priority,
		Payload:   payload,
	}
}

// NewChunkMeshReady создаёт событие готовности меша
func NewChunkMeshReady(source string, coord vec.Vec2, lod uint8, faces int, truncated bool) *Envelope {
	return newEnvelope(source, TypeChunkMeshReady, 3, ChunkMeshReadyEvent{
		Coord:     coord,
		LOD:       lod,
		FaceCount: faces,
		Truncated: truncated,
	})
}

// NewChunkEvicted создаёт событие выгрузки чанка
func NewChunkEvicted(source string, coord vec.Vec2, freedFaces int) *Envelope {
	return newEnvelope(source, TypeChunkEvicted, 2, ChunkEvictedEvent{
		Coord:      coord,
		FreedFaces: freedFaces,
	})
}

// NewPressureChanged создаёт событие смены уровня давления.
// Высокий приоритет: такие события не должны теряться при заполненном буфере.
func NewPressureChanged(source, tier string) *Envelope {
	return newEnvelope(source, TypePressureChanged, 7, PressureChangedEvent{Tier: tier})
}
