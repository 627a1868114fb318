package world

import (
	"sort"
	"sync"
)

// EvictFunc уведомляет внешнего подписчика (рендер) о выгрузке чанка,
// чтобы тот освободил GPU-ресурсы. Вызывается после уничтожения мешей.
type EvictFunc func(coord ChunkCoord, freedFaces int)

// storeEntry связывает чанк с меткой последнего доступа
type storeEntry struct {
	chunk      *Chunk
	lastAccess uint64
}

// ChunkStore — ограниченное хранилище чанков с выгрузкой по расстоянию.
// Единственная разделяемая изменяемая структура движка: чтения конкурентны,
// вставки и выгрузки сериализуются мьютексом. Выгрузка — атомарная замена
// с уничтожением, а не изменение на месте: читатель, получивший Ready-чанк,
// никогда не увидит частично разрушенное состояние.
type ChunkStore struct {
	mu      sync.RWMutex
	chunks  map[ChunkCoord]*storeEntry
	clock   uint64 // Монотонный счётчик доступов для LRU tie-break
	onEvict EvictFunc
}

// NewChunkStore создаёт пустое хранилище
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[ChunkCoord]*storeEntry),
	}
}

// SetEvictFunc устанавливает подписчика на события выгрузки.
// Должен вызываться до начала работы планировщика.
func (cs *ChunkStore) SetEvictFunc(fn EvictFunc) {
	cs.mu.Lock()
	cs.onEvict = fn
	cs.mu.Unlock()
}

// Get возвращает чанк по координате и обновляет метку доступа
func (cs *ChunkStore) Get(coord ChunkCoord) (*Chunk, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry, ok := cs.chunks[coord]
	if !ok {
		return nil, false
	}
	cs.clock++
	entry.lastAccess = cs.clock
	return entry.chunk, true
}

// Peek возвращает чанк, не обновляя метку доступа
func (cs *ChunkStore) Peek(coord ChunkCoord) (*Chunk, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, ok := cs.chunks[coord]
	if !ok {
		return nil, false
	}
	return entry.chunk, true
}

// Contains проверяет наличие координаты без обновления метки доступа
func (cs *ChunkStore) Contains(coord ChunkCoord) bool {
	cs.mu.RLock()
	_, ok := cs.chunks[coord]
	cs.mu.RUnlock()
	return ok
}

// Put добавляет готовый чанк в хранилище.
// Если координата уже занята, существующий чанк сохраняется:
// воркеры производят только новые неизменяемые значения, и первый
// результат для координаты выигрывает.
func (cs *ChunkStore) Put(coord ChunkCoord, chunk *Chunk) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.chunks[coord]; ok {
		return false
	}
	cs.clock++
	cs.chunks[coord] = &storeEntry{chunk: chunk, lastAccess: cs.clock}
	return true
}

// Len возвращает число чанков в хранилище
func (cs *ChunkStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.chunks)
}

// Coords возвращает срез всех координат хранилища
func (cs *ChunkStore) Coords() []ChunkCoord {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	coords := make([]ChunkCoord, 0, len(cs.chunks))
	for coord := range cs.chunks {
		coords = append(coords, coord)
	}
	return coords
}

// EvictBeyond выгружает все чанки с расстоянием Чебышёва от center
// строго больше radius. Возвращает число выгруженных чанков.
func (cs *ChunkStore) EvictBeyond(center ChunkCoord, radius int) int {
	cs.mu.Lock()
	var victims []ChunkCoord
	for coord := range cs.chunks {
		if coord.ChebyshevTo(center) > radius {
			victims = append(victims, coord)
		}
	}
	removed := cs.removeLocked(victims)
	fn := cs.onEvict
	cs.mu.Unlock()

	return disposeRemoved(removed, fn)
}

// EvictToCapacity выгружает чанки, пока размер хранилища не станет
// ≤ maxCount. Первыми уходят самые дальние от center; при равном
// расстоянии — дольше всего не запрашивавшиеся.
func (cs *ChunkStore) EvictToCapacity(maxCount int, center ChunkCoord) int {
	if maxCount < 0 {
		maxCount = 0
	}

	cs.mu.Lock()
	excess := len(cs.chunks) - maxCount
	if excess <= 0 {
		cs.mu.Unlock()
		return 0
	}

	type candidate struct {
		coord      ChunkCoord
		dist       int
		lastAccess uint64
	}
	candidates := make([]candidate, 0, len(cs.chunks))
	for coord, entry := range cs.chunks {
		candidates = append(candidates, candidate{
			coord:      coord,
			dist:       coord.ChebyshevTo(center),
			lastAccess: entry.lastAccess,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist > candidates[j].dist
		}
		return candidates[i].lastAccess < candidates[j].lastAccess
	})

	victims := make([]ChunkCoord, 0, excess)
	for i := 0; i < excess; i++ {
		victims = append(victims, candidates[i].coord)
	}
	removed := cs.removeLocked(victims)
	fn := cs.onEvict
	cs.mu.Unlock()

	return disposeRemoved(removed, fn)
}

// removeLocked удаляет перечисленные координаты из карты. Вызывается под mu;
// уничтожение мешей и уведомления выполняются уже после снятия блокировки,
// чтобы подписчик мог обращаться к хранилищу.
func (cs *ChunkStore) removeLocked(victims []ChunkCoord) []*Chunk {
	removed := make([]*Chunk, 0, len(victims))
	for _, coord := range victims {
		entry, ok := cs.chunks[coord]
		if !ok {
			continue
		}
		delete(cs.chunks, coord)
		removed = append(removed, entry.chunk)
	}
	return removed
}

// disposeRemoved завершает выгрузку: перевод в Evicted, уничтожение мешей,
// уведомление подписчика
func disposeRemoved(removed []*Chunk, fn EvictFunc) int {
	for _, chunk := range removed {
		chunk.SetState(StateEvicted)
		freed := chunk.DisposeMeshes()
		if fn != nil {
			fn(chunk.Coords, freed)
		}
	}
	return len(removed)
}
