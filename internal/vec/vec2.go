package vec

import "math"

// Vec2 представляет 2D координаты в горизонтальной плоскости мира (X, Z)
type Vec2 struct {
	X, Z int
}

// ToChunkCoords преобразует глобальные координаты блока в координаты чанка
// (размер чанка 16 — степень двойки, поэтому сдвиг)
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> 4, Z: v.Z >> 4}
}

// LocalInChunk возвращает локальные координаты внутри чанка 16x16
func (v Vec2) LocalInChunk() Vec2 {
	return Vec2{X: v.X & 0xF, Z: v.Z & 0xF}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Z: v.Z - other.Z}
}

// DistanceTo вычисляет евклидово расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dz*dz)
}

// ChebyshevTo вычисляет расстояние Чебышёва (max(|dx|,|dz|)) до другой точки.
// Единая метрика для всех решений о загрузке и выгрузке чанков.
func (v Vec2) ChebyshevTo(other Vec2) int {
	dx := absInt(v.X - other.X)
	dz := absInt(v.Z - other.Z)
	if dx > dz {
		return dx
	}
	return dz
}

// Less задаёт лексикографический порядок (сначала X, затем Z).
// Стабильный tie-break при сортировке координат с равным расстоянием.
func (v Vec2) Less(other Vec2) bool {
	if v.X != other.X {
		return v.X < other.X
	}
	return v.Z < other.Z
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
