package logging

// Помощники для журнала конвейера стриминга чанков.

// LogChunkDispatch логирует выдачу задачи генерации воркеру
func LogChunkDispatch(cx, cz int, dist int) {
	Debug("Генерация чанка (%d,%d), расстояние %d", cx, cz, dist)
}

// LogChunkReady логирует завершение генерации чанка
func LogChunkReady(cx, cz int, blocks int) {
	Debug("Чанк (%d,%d) готов: %d блоков", cx, cz, blocks)
}

// LogEviction логирует выгрузку чанков
func LogEviction(count int, cx, cz, radius int) {
	if count > 0 {
		Debug("Выгружено %d чанков за радиусом %d от (%d,%d)", count, radius, cx, cz)
	}
}

// LogMeshReady логирует построение меша чанка
func LogMeshReady(cx, cz int, lod uint8, faces int) {
	Debug("Меш чанка (%d,%d) LOD %d: %d граней", cx, cz, lod, faces)
}

// LogChunkEvicted логирует выгрузку одного чанка с освобождёнными гранями
func LogChunkEvicted(cx, cz, freedFaces int) {
	Trace("Чанк (%d,%d) выгружен, освобождено %d граней", cx, cz, freedFaces)
}

// LogMeshTruncation логирует обрезку меша по бюджету граней.
// Политика деградации, а не ошибка, поэтому низкий уровень.
func LogMeshTruncation(cx, cz int, lod uint8, budget int) {
	Trace("Меш чанка (%d,%d) LOD %d обрезан на бюджете %d граней", cx, cz, lod, budget)
}

// LogGenerationFailure логирует сбой генерации с номером попытки
func LogGenerationFailure(cx, cz int, attempt int, err error) {
	Warn("Сбой генерации чанка (%d,%d), попытка %d: %v", cx, cz, attempt, err)
}

// LogPressureChange логирует смену уровня давления ресурсов
func LogPressureChange(from, to string) {
	Info("Давление ресурсов: %s -> %s", from, to)
}
