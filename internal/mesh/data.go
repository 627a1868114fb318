package mesh

// Data — готовый к загрузке в GPU меш одного чанка на одном уровне
// детализации. Вершины интерливингом не пакуются: позиции, индексы и
// UV лежат отдельными массивами, по четыре вершины и две треугольные
// грани на квад.
type Data struct {
	Positions []float32 // Тройки (x, y, z) в локальных координатах чанка
	Indices   []uint32  // Шесть индексов на квад
	UVs       []float32 // Пары (u, v), по квадрату [0,1] на квад
	BlockTags []uint16  // ID типа блока на каждый квад (выбор материала)

	LOD       uint8
	Truncated bool // Достигнут бюджет граней уровня
}

// FaceCount возвращает число эмитированных квадов
func (d *Data) FaceCount() int {
	return len(d.Indices) / 6
}

// VertexCount возвращает число вершин
func (d *Data) VertexCount() int {
	return len(d.Positions) / 3
}

// TriangleCount возвращает число треугольников
func (d *Data) TriangleCount() int {
	return len(d.Indices) / 3
}

// Dispose освобождает массивы меша.
// Хранилище вызывает это при выгрузке чанка.
func (d *Data) Dispose() {
	d.Positions = nil
	d.Indices = nil
	d.UVs = nil
	d.BlockTags = nil
}
