package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Параметры шума Перлина: сглаживание, частота, число внутренних октав.
// Подобраны для плавного рельефа на масштабах чанка 16x16.
const (
	alpha = 2.0
	beta  = 2.0
	n     = int32(3)
)

// Field — детерминированный сэмплер скалярного шума.
// Таблица перестановок строится один раз из сида при создании; после этого
// Field неизменяем и безопасен для конкурентного чтения из любых горутин.
type Field struct {
	seed int64
	p    *perlin.Perlin
}

// NewField создаёт поле шума для указанного сида
func NewField(seed int64) *Field {
	return &Field{
		seed: seed,
		p:    perlin.NewPerlin(alpha, beta, n, seed),
	}
}

// Derive создаёт независимое поле со сдвинутым сидом.
// Так из одного мирового сида получаются поля высот, пещер и растительности.
func (f *Field) Derive(offset int64) *Field {
	return NewField(f.seed + offset)
}

// Seed возвращает сид, из которого построено поле
func (f *Field) Seed() int64 {
	return f.seed
}

// Sample возвращает значение шума в точке (x, y), диапазон [-1, 1]
func (f *Field) Sample(x, y float64) float64 {
	return clamp(f.p.Noise2D(x, y))
}

// Sample3 возвращает значение трехмерного шума в точке (x, y, z), диапазон [-1, 1].
// Используется для вырезания пещер.
func (f *Field) Sample3(x, y, z float64) float64 {
	return clamp(f.p.Noise3D(x, y, z))
}

// Fractal суммирует octaves октав шума с затуханием persistence и
// нормализует результат обратно в [-1, 1]
func (f *Field) Fractal(x, y float64, octaves int, persistence float64) float64 {
	if octaves < 1 {
		octaves = 1
	}

	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxAmplitude := 0.0

	for i := 0; i < octaves; i++ {
		total += f.p.Noise2D(x*frequency, y*frequency) * amplitude
		maxAmplitude += amplitude
		amplitude *= persistence
		frequency *= 2.0
	}

	return clamp(total / maxAmplitude)
}

// clamp прижимает значение к [-1, 1]: go-perlin может слегка выходить
// за границы на краях ячеек решётки
func clamp(v float64) float64 {
	return math.Max(-1.0, math.Min(1.0, v))
}
