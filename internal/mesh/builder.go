package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// Углы квадов единичного куба для шести направлений в порядке vec.Axis6
// (+X, -X, +Y, -Y, +Z, -Z). Обход углов против часовой стрелки при
// взгляде снаружи.
var faceCorners = [6][4]mgl32.Vec3{
	{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}, // +X
	{{0, 0, 1}, {0, 1, 1}, {0, 1, 0}, {0, 0, 0}}, // -X
	{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}, // +Y
	{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}, // -Y
	{{1, 0, 1}, {1, 1, 1}, {0, 1, 1}, {0, 0, 1}}, // +Z
	{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}, // -Z
}

var faceUVs = [4][2]float32{{0, 0}, {0, 1}, {1, 1}, {1, 0}}

// Builder строит меши чанков с учётом уровня детализации и бюджета граней.
// Чистая функция данных чанка: без разделяемого состояния, результаты
// можно безопасно мемоизировать.
type Builder struct {
	budgets []int // Потолок граней на каждый LOD; индекс — ранг уровня
}

// NewBuilder создаёт построитель с бюджетами граней на уровень
func NewBuilder(perLODFaceBudget []int) *Builder {
	return &Builder{budgets: append([]int(nil), perLODFaceBudget...)}
}

// Levels возвращает число уровней детализации
func (b *Builder) Levels() int {
	return len(b.budgets)
}

// Budget возвращает бюджет граней уровня
func (b *Builder) Budget(lod uint8) int {
	if int(lod) >= len(b.budgets) {
		return 0
	}
	return b.budgets[lod]
}

// Build преобразует блоки чанка в меш уровня lod.
//
// Для lod > 0 применяется шаговая выборка: остаётся каждый 2^lod-й блок
// по каждой оси, квады растягиваются до размера шага. Это приближение,
// а не настоящее упрощение меша.
//
// Для каждого оставленного блока проверяются шесть соседей по осям;
// квад эмитируется, когда сосед отсутствует или прозрачен. Внутренние
// грани не эмитируются никогда. Обход блоков фиксирован (y, затем z,
// затем x по возрастанию); при достижении бюджета уровня оставшиеся
// блоки пропускаются — результат детерминирован для одинаковых входов.
func (b *Builder) Build(chunk *world.Chunk, lod uint8) (*Data, error) {
	if int(lod) >= len(b.budgets) {
		return nil, fmt.Errorf("неизвестный уровень детализации %d (настроено %d)", lod, len(b.budgets))
	}

	budget := b.budgets[lod]
	stride := 1 << lod

	data := &Data{LOD: lod}
	faces := 0

	for y := 0; y < chunk.Height; y += stride {
		for z := 0; z < chunk.Size; z += stride {
			for x := 0; x < chunk.Size; x += stride {
				local := vec.Vec3{X: x, Y: y, Z: z}
				id := chunk.BlockAt(local)
				if id == block.AirBlockID {
					continue
				}

				for dir, axis := range vec.Axis6 {
					neighbor := vec.Vec3{
						X: x + axis.X*stride,
						Y: y + axis.Y*stride,
						Z: z + axis.Z*stride,
					}
					if !exposed(chunk, neighbor) {
						continue
					}

					if faces >= budget {
						data.Truncated = true
						logging.LogMeshTruncation(chunk.Coords.X, chunk.Coords.Z, lod, budget)
						return data, nil
					}

					emitQuad(data, local, dir, stride, id)
					faces++
				}
			}
		}
	}

	return data, nil
}

// exposed возвращает true, когда сосед не заслоняет грань:
// за границей чанка, воздух или прозрачный блок
func exposed(chunk *world.Chunk, neighbor vec.Vec3) bool {
	if !chunk.InBounds(neighbor) {
		// Межчанковые грани считаются видимыми: построитель зависит
		// только от данных своего чанка
		return true
	}
	return block.IsTransparent(chunk.BlockAt(neighbor))
}

// emitQuad добавляет четыре вершины и два треугольника одной грани
func emitQuad(data *Data, local vec.Vec3, dir, stride int, id block.BlockID) {
	base := mgl32.Vec3{float32(local.X), float32(local.Y), float32(local.Z)}
	size := float32(stride)

	start := uint32(len(data.Positions) / 3)
	for i, corner := range faceCorners[dir] {
		p := base.Add(corner.Mul(size))
		data.Positions = append(data.Positions, p.X(), p.Y(), p.Z())
		data.UVs = append(data.UVs, faceUVs[i][0], faceUVs[i][1])
	}

	data.Indices = append(data.Indices,
		start, start+1, start+2,
		start+2, start+3, start,
	)
	data.BlockTags = append(data.BlockTags, uint16(id))
}
