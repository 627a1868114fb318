package gen

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/noise"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// Сдвиги сида для независимых полей шума
const (
	heightSeedOffset = 0
	caveSeedOffset   = 300
	treeSeedOffset   = 600
)

// Params — конфигурация генератора ландшафта.
// Один набор параметров заменяет россыпь вариантов генератора:
// вся настройка рельефа, пещер и растительности собрана здесь.
type Params struct {
	Size              int     `yaml:"chunk_size"`           // Горизонтальный размер чанка
	Height            int     `yaml:"world_height"`         // Высота мира в блоках
	BaseHeight        int     `yaml:"base_height"`          // Средний уровень поверхности
	HeightAmplitude   float64 `yaml:"height_amplitude"`     // Размах рельефа в блоках
	HeightScale       float64 `yaml:"height_scale"`         // Масштаб шума высот
	Octaves           int     `yaml:"octaves"`              // Октавы фрактального шума
	Persistence       float64 `yaml:"persistence"`          // Затухание октав
	DirtDepth         int     `yaml:"dirt_depth"`           // Толщина слоя земли под травой
	CaveThreshold     float64 `yaml:"cave_threshold"`       // Порог вырезания пещер, 0 — пещеры выключены
	CaveScale         float64 `yaml:"cave_scale"`           // Масштаб шума пещер
	TreeThreshold     float64 `yaml:"tree_threshold"`       // Порог редкости деревьев, 0 — деревья выключены
	TreeScale         float64 `yaml:"tree_scale"`           // Масштаб шума растительности
	SeaLevel          int     `yaml:"sea_level"`            // Уровень воды; 0 — водоёмы выключены
	MaxBlocksPerChunk int     `yaml:"max_blocks_per_chunk"` // Потолок не-воздушных блоков, 0 — без потолка
}

// DefaultParams возвращает параметры по умолчанию для чанка 16x16
func DefaultParams() Params {
	return Params{
		Size:              16,
		Height:            128,
		BaseHeight:        48,
		HeightAmplitude:   24,
		HeightScale:       0.01,
		Octaves:           4,
		Persistence:       0.5,
		DirtDepth:         3,
		CaveThreshold:     0.55,
		CaveScale:         0.06,
		TreeThreshold:     0.62,
		TreeScale:         0.15,
		SeaLevel:          30,
		MaxBlocksPerChunk: 24576, // 3/4 объёма чанка 16x16x128; обычный рельеф заметно ниже
	}
}

// Generator строит воксельную сетку чанка из сэмплов полей шума.
// Чистая функция сида и координаты: никакого разделяемого изменяемого
// состояния, безопасен для параллельного запуска на разных координатах.
type Generator struct {
	seed   int64
	params Params

	heightField *noise.Field
	caveField   *noise.Field
	treeField   *noise.Field
}

// NewGenerator создаёт генератор для указанного сида
func NewGenerator(seed int64, params Params) *Generator {
	base := noise.NewField(seed)
	return &Generator{
		seed:        seed,
		params:      params,
		heightField: base.Derive(heightSeedOffset),
		caveField:   base.Derive(caveSeedOffset),
		treeField:   base.Derive(treeSeedOffset),
	}
}

// Seed возвращает мировой сид генератора
func (g *Generator) Seed() int64 {
	return g.seed
}

// Params возвращает параметры генератора
func (g *Generator) Params() Params {
	return g.params
}

// Generate строит чанк по его координатам.
// Для одинаковой пары (сид, координата) результат всегда побайтово идентичен.
func (g *Generator) Generate(ctx context.Context, coord world.ChunkCoord) (*world.Chunk, error) {
	return g.generate(ctx, coord, g.params.MaxBlocksPerChunk)
}

// GenerateDegraded строит чанк с вдвое уменьшенным потолком блоков.
// Применяется при повторе после превышения временного бюджета генерации.
func (g *Generator) GenerateDegraded(ctx context.Context, coord world.ChunkCoord) (*world.Chunk, error) {
	cap := g.params.MaxBlocksPerChunk
	if cap <= 0 {
		// Без настроенного потолка деградируем до половины объёма чанка
		cap = g.params.Size * g.params.Size * g.params.Height / 2
	} else {
		cap /= 2
	}
	return g.generate(ctx, coord, cap)
}

// SurfaceHeight возвращает высоту поверхности для глобальной колонки (x, z)
func (g *Generator) SurfaceHeight(x, z int) int {
	v := g.heightField.Fractal(
		float64(x)*g.params.HeightScale,
		float64(z)*g.params.HeightScale,
		g.params.Octaves,
		g.params.Persistence,
	)
	h := g.params.BaseHeight + int(v*g.params.HeightAmplitude)
	if h < 1 {
		h = 1
	}
	if h > g.params.Height-2 {
		h = g.params.Height - 2
	}
	return h
}

// generate — общий путь генерации с явным потолком блоков
func (g *Generator) generate(ctx context.Context, coord world.ChunkCoord, maxBlocks int) (*world.Chunk, error) {
	chunk := world.NewChunk(coord, g.params.Size, g.params.Height)
	chunk.SetState(world.StateGenerating)

	// Локальный ГСЧ с уникальным сидом чанка: детерминизм высоты деревьев
	// не зависит от порядка генерации чанков
	chunkSeed := g.seed + int64(coord.X)*31 + int64(coord.Z)*17
	rng := rand.New(rand.NewSource(chunkSeed))

	baseX := coord.X * g.params.Size
	baseZ := coord.Z * g.params.Size

	placed := 0
	truncated := false

	// Фиксированный порядок обхода колонок (z, затем x): при достижении
	// потолка блоков обрыв всегда случается в одном и том же месте
columns:
	for z := 0; z < g.params.Size; z++ {
		// Проверка дедлайна раз на ряд колонок, чтобы не сэмплировать ctx
		// на каждом блоке
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("генерация чанка %v прервана: %w", coord, err)
		}

		for x := 0; x < g.params.Size; x++ {
			globalX := baseX + x
			globalZ := baseZ + z

			surface := g.SurfaceHeight(globalX, globalZ)

			n := g.fillColumn(chunk, x, z, globalX, globalZ, surface, maxBlocks-placed)
			placed += n
			if maxBlocks > 0 && placed >= maxBlocks {
				truncated = true
				break columns
			}

			// Низины ниже уровня моря заполняются водой
			n = g.fillWater(chunk, x, z, surface, maxBlocks-placed)
			placed += n
			if maxBlocks > 0 && placed >= maxBlocks {
				truncated = true
				break columns
			}

			// Деревья ставим после заполнения колонки: нужен травяной верх
			if g.params.TreeThreshold > 0 {
				n = g.placeTree(chunk, x, z, globalX, globalZ, surface, rng, maxBlocks-placed)
				placed += n
				if maxBlocks > 0 && placed >= maxBlocks {
					truncated = true
					break columns
				}
			}
		}
	}

	if truncated {
		// Документированный обрыв, ограничивающий стоимость меша ниже по
		// конвейеру; не ошибка
		logging.Debug("Чанк %v обрезан на потолке блоков: %d", coord, maxBlocks)
	}

	chunk.SetState(world.StateReady)
	return chunk, nil
}

// fillColumn заполняет одну вертикальную колонку блоками по глубине от
// поверхности: трава на поверхности, земля под ней, ниже камень.
// Возвращает число размещённых блоков; останавливается при остатке бюджета 0.
func (g *Generator) fillColumn(chunk *world.Chunk, x, z, globalX, globalZ, surface, budget int) int {
	placed := 0
	for y := 0; y <= surface; y++ {
		if budget > 0 && placed >= budget {
			return placed
		}

		if g.carveCave(globalX, y, globalZ, surface) {
			continue
		}

		var id block.BlockID
		switch {
		case y == surface:
			id = block.GrassBlockID
		case surface-y <= g.params.DirtDepth:
			id = block.DirtBlockID
		default:
			id = block.StoneBlockID
		}

		chunk.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, id)
		placed++
	}
	return placed
}

// fillWater заливает колонку водой от поверхности до уровня моря.
// Возвращает число размещённых блоков.
func (g *Generator) fillWater(chunk *world.Chunk, x, z, surface, budget int) int {
	if g.params.SeaLevel <= 0 || surface >= g.params.SeaLevel {
		return 0
	}

	placed := 0
	for y := surface + 1; y <= g.params.SeaLevel && y < g.params.Height; y++ {
		if budget > 0 && placed >= budget {
			return placed
		}
		chunk.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.WaterBlockID)
		placed++
	}
	return placed
}

// carveCave решает, вырезан ли блок пещерой.
// Порог растёт к поверхности: у верхних слоёв пещеры сходят на нет,
// чтобы не дырявить рельеф.
func (g *Generator) carveCave(globalX, y, globalZ, surface int) bool {
	if g.params.CaveThreshold <= 0 {
		return false
	}
	depth := surface - y
	if depth < 3 || y < 2 {
		// Поверхностная корка и дно мира не вырезаются
		return false
	}

	n := g.caveField.Sample3(
		float64(globalX)*g.params.CaveScale,
		float64(y)*g.params.CaveScale,
		float64(globalZ)*g.params.CaveScale,
	)

	threshold := g.params.CaveThreshold
	if depth < 8 {
		// Плавное сужение пещер в пяти блоках под коркой
		threshold += 0.3 * float64(8-depth) / 8.0
	}
	return n > threshold
}

// placeTree ставит дерево на колонку, если поле растительности превышает
// порог редкости: ствол 3-5 блоков и компактная крона листвы.
// Возвращает число размещённых блоков.
func (g *Generator) placeTree(chunk *world.Chunk, x, z, globalX, globalZ, surface int, rng *rand.Rand, budget int) int {
	v := g.treeField.Sample(
		float64(globalX)*g.params.TreeScale,
		float64(globalZ)*g.params.TreeScale,
	)
	if v < g.params.TreeThreshold {
		return 0
	}

	// Под водой деревья не растут
	if g.params.SeaLevel > 0 && surface < g.params.SeaLevel {
		return 0
	}

	// Деревья растут только на траве
	if chunk.BlockAt(vec.Vec3{X: x, Y: surface, Z: z}) != block.GrassBlockID {
		return 0
	}

	trunkHeight := 3 + rng.Intn(3)
	top := surface + trunkHeight
	if top+2 >= g.params.Height {
		return 0
	}

	placed := 0
	place := func(local vec.Vec3, id block.BlockID) bool {
		if budget > 0 && placed >= budget {
			return false
		}
		if !chunk.InBounds(local) {
			return true
		}
		if chunk.BlockAt(local) != block.AirBlockID {
			return true
		}
		chunk.SetBlock(local, id)
		placed++
		return true
	}

	// Ствол
	for y := surface + 1; y <= top; y++ {
		if !place(vec.Vec3{X: x, Y: y, Z: z}, block.WoodBlockID) {
			return placed
		}
	}

	// Крона: куб 3x3 на двух верхних уровнях ствола плюс блок над верхушкой
	for dy := 0; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dz == 0 && dy == 0 {
					continue // Здесь ствол
				}
				if !place(vec.Vec3{X: x + dx, Y: top + dy, Z: z + dz}, block.LeavesBlockID) {
					return placed
				}
			}
		}
	}
	place(vec.Vec3{X: x, Y: top + 2, Z: z}, block.LeavesBlockID)

	return placed
}
