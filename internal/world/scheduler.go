package world

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/voxel-stream/internal/budget"
	"github.com/annel0/voxel-stream/internal/logging"
)

// Generator производит чанки по координатам.
// Реализация обязана быть чистой и реентерабельной: планировщик запускает
// её параллельно для разных координат.
type Generator interface {
	Generate(ctx context.Context, coord ChunkCoord) (*Chunk, error)
	// GenerateDegraded строит чанк с уменьшенным целевым объёмом.
	// Вызывается при повторе после превышения временного бюджета.
	GenerateDegraded(ctx context.Context, coord ChunkCoord) (*Chunk, error)
}

// SchedulerConfig — параметры планировщика загрузки
type SchedulerConfig struct {
	ChunkSize    int // Размер чанка для заглушек
	WorldHeight  int // Высота мира для заглушек
	LoadRadius   int // Радиус загрузки в чанках
	UnloadRadius int // Радиус удержания; строго больше LoadRadius (гистерезис)
	MaxChunks    int // Потолок хранилища

	Workers         int           // Размер пула воркеров; 0 — синхронный режим
	DispatchPerTick int           // Лимит выдач за один тик
	MaxAttempts     int           // Попытки генерации до заглушки
	TimeBudget      time.Duration // Потолок времени одной генерации
}

// loadState — машина состояний координаты: Requested -> Generating ->
// Ready | Failed(attempt) -> Requested. Ready и Evicted живут в хранилище,
// здесь только незавершённые координаты.
type loadState struct {
	state         ChunkState
	attempts      int
	degraded      bool   // Следующая попытка с уменьшенным целевым объёмом
	nextRetryTick uint64 // Тик, раньше которого повтор не выдаётся
}

type genJob struct {
	coord    ChunkCoord
	degraded bool
}

type genResult struct {
	coord ChunkCoord
	chunk *Chunk
	err   error
}

// ReadyFunc вызывается на тике планировщика для каждого чанка,
// попавшего в хранилище
type ReadyFunc func(coord ChunkCoord, chunk *Chunk)

// GenObserveFunc получает длительность каждой генерации, включая сбойные.
// Вызывается из воркеров, реализация обязана быть потокобезопасной.
type GenObserveFunc func(d time.Duration)

// SchedulerStats — счётчики планировщика за время работы
type SchedulerStats struct {
	Pending      int    // Координаты в ожидании или в работе
	InFlight     int    // Выданные воркерам задачи
	Dispatched   uint64 // Всего выдано задач
	Completed    uint64 // Успешных генераций
	Failed       uint64 // Сбоев генерации
	DroppedStale uint64 // Отброшено устаревших координат
	Discarded    uint64 // Готовых чанков, пришедших после выхода из радиуса
	Placeholders uint64 // Пустых заглушек после исчерпания попыток
	Evicted      uint64 // Выгружено чанков
}

// LoadScheduler вычисляет требуемые координаты вокруг фокальной точки,
// упорядочивает и выдаёт генерацию пулу воркеров, выгружает устаревшие
// чанки. Update вызывается один раз за тик с одного потока; воркеры
// никогда не трогают хранилище сами — результаты возвращаются каналом
// и применяются на тике.
type LoadScheduler struct {
	store *ChunkStore
	gen   Generator
	cfg   SchedulerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	jobs    chan genJob
	results chan genResult

	pending  map[ChunkCoord]*loadState
	inFlight int
	tick     uint64
	focal    ChunkCoord

	pressure            budget.Tier // Читается/пишется только с учётом pressureMu
	pressureMu          sync.Mutex
	onReady             ReadyFunc
	onGenerated         GenObserveFunc
	onCapacityExhausted func()

	stats SchedulerStats
}

// NewLoadScheduler создаёт планировщик и запускает пул воркеров
func NewLoadScheduler(store *ChunkStore, gen Generator, cfg SchedulerConfig) *LoadScheduler {
	if cfg.DispatchPerTick <= 0 {
		cfg.DispatchPerTick = 8
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = 250 * time.Millisecond
	}
	if cfg.UnloadRadius <= cfg.LoadRadius {
		cfg.UnloadRadius = cfg.LoadRadius + 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	ls := &LoadScheduler{
		store:    store,
		gen:      gen,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(chan genJob, cfg.Workers*2+1),
		results:  make(chan genResult, cfg.Workers*2+1),
		pending:  make(map[ChunkCoord]*loadState),
		pressure: budget.TierLow,
	}

	for i := 0; i < cfg.Workers; i++ {
		ls.wg.Add(1)
		go ls.worker()
	}

	return ls
}

// Stop останавливает воркеров. Уже выданные задачи довырабатываются.
func (ls *LoadScheduler) Stop() {
	ls.cancel()
	close(ls.jobs)
	ls.wg.Wait()
}

// SetReadyFunc устанавливает обработчик готовых чанков.
// Вызывается до первого Update.
func (ls *LoadScheduler) SetReadyFunc(fn ReadyFunc) {
	ls.onReady = fn
}

// SetGenObserveFunc устанавливает наблюдателя длительности генерации.
// Вызывается до первого Update.
func (ls *LoadScheduler) SetGenObserveFunc(fn GenObserveFunc) {
	ls.onGenerated = fn
}

// SetCapacityExhaustedFunc устанавливает обработчик исчерпания ёмкости.
// Монитор бюджета в ответ ужесточает давление.
func (ls *LoadScheduler) SetCapacityExhaustedFunc(fn func()) {
	ls.onCapacityExhausted = fn
}

// OnPressureChange реализует budget.PressureSubscriber.
// При эскалации немедленно выгружает чанки за ужатым радиусом;
// уменьшение радиуса и параллелизма подхватывается следующим Update.
func (ls *LoadScheduler) OnPressureChange(tier budget.Tier) {
	ls.pressureMu.Lock()
	prev := ls.pressure
	ls.pressure = tier
	focal := ls.focal
	ls.pressureMu.Unlock()

	if tier > prev {
		_, unload := ls.effectiveRadii(tier)
		ls.store.EvictBeyond(focal, unload)
	}
}

// Stats возвращает снимок счётчиков
func (ls *LoadScheduler) Stats() SchedulerStats {
	s := ls.stats
	s.Pending = len(ls.pending)
	s.InFlight = ls.inFlight
	return s
}

// effectiveRadii возвращает радиусы загрузки и удержания с поправкой на
// давление ресурсов. Гистерезис unload > load сохраняется на любом уровне.
func (ls *LoadScheduler) effectiveRadii(tier budget.Tier) (load, unload int) {
	load = ls.cfg.LoadRadius - tier.RadiusPenalty()
	if load < 1 {
		load = 1
	}
	unload = ls.cfg.UnloadRadius - tier.RadiusPenalty()
	if unload <= load {
		unload = load + 1
	}
	return load, unload
}

// effectiveWorkers возвращает параллелизм с поправкой на давление
func (ls *LoadScheduler) effectiveWorkers(tier budget.Tier) int {
	w := ls.cfg.Workers
	switch tier {
	case budget.TierHigh:
		w /= 2
	case budget.TierCritical:
		w = 1
	}
	if w < 1 && ls.cfg.Workers > 0 {
		w = 1
	}
	return w
}

// Update выполняет один квант планирования вокруг фокальной точки.
// Вызывается из цикла тиков хоста; никогда не блокируется на генерации.
func (ls *LoadScheduler) Update(focal ChunkCoord) {
	ls.tick++

	ls.pressureMu.Lock()
	ls.focal = focal
	tier := ls.pressure
	ls.pressureMu.Unlock()

	loadRadius, unloadRadius := ls.effectiveRadii(tier)

	// 1. Применяем завершённые генерации
	ls.drainResults(focal, unloadRadius)

	// 2. Отбрасываем устаревшие невыданные координаты: фокус ушёл,
	//    генерировать их уже незачем
	for coord, st := range ls.pending {
		if st.state == StateRequested && coord.ChebyshevTo(focal) > loadRadius {
			delete(ls.pending, coord)
			ls.stats.DroppedStale++
		}
	}

	// 3. Регистрируем недостающие координаты в радиусе загрузки
	for dx := -loadRadius; dx <= loadRadius; dx++ {
		for dz := -loadRadius; dz <= loadRadius; dz++ {
			coord := ChunkCoord{X: focal.X + dx, Z: focal.Z + dz}
			if ls.store.Contains(coord) {
				continue
			}
			if _, ok := ls.pending[coord]; ok {
				continue
			}
			ls.pending[coord] = &loadState{state: StateRequested}
		}
	}

	// 4. Выдаём задачи по возрастанию расстояния
	ls.dispatch(focal, loadRadius, tier)

	// 5. Выгрузка: сначала за радиусом удержания, затем до ёмкости
	evicted := ls.store.EvictBeyond(focal, unloadRadius)
	evicted += ls.store.EvictToCapacity(ls.cfg.MaxChunks, focal)
	ls.stats.Evicted += uint64(evicted)
	logging.LogEviction(evicted, focal.X, focal.Z, unloadRadius)

	// Ёмкость исчерпана даже на минимальном радиусе — эскалация монитору
	if ls.store.Len() >= ls.cfg.MaxChunks && loadRadius <= 1 {
		if ls.onCapacityExhausted != nil {
			ls.onCapacityExhausted()
		}
	}
}

// drainResults применяет все накопленные результаты воркеров
func (ls *LoadScheduler) drainResults(focal ChunkCoord, unloadRadius int) {
	for {
		select {
		case res := <-ls.results:
			ls.applyResult(res, focal, unloadRadius)
		default:
			return
		}
	}
}

// applyResult обрабатывает один результат генерации
func (ls *LoadScheduler) applyResult(res genResult, focal ChunkCoord, unloadRadius int) {
	ls.inFlight--

	st, ok := ls.pending[res.coord]
	if !ok {
		// Координата уже отброшена; поздний результат игнорируется
		ls.stats.Discarded++
		return
	}

	if res.err != nil {
		ls.stats.Failed++
		st.attempts++
		logging.LogGenerationFailure(res.coord.X, res.coord.Z, st.attempts, res.err)

		if st.attempts >= ls.cfg.MaxAttempts {
			// Мир остаётся проходимым: пустая заглушка вместо дыры
			placeholder := NewChunk(res.coord, ls.cfg.ChunkSize, ls.cfg.WorldHeight)
			placeholder.SetState(StateReady)
			ls.store.Put(res.coord, placeholder)
			delete(ls.pending, res.coord)
			ls.stats.Placeholders++
			if ls.onReady != nil {
				ls.onReady(res.coord, placeholder)
			}
			return
		}

		// Возврат в Requested с экспоненциальной паузой; после таймаута
		// следующая попытка идёт с уменьшенным целевым объёмом
		st.state = StateRequested
		st.degraded = true
		st.nextRetryTick = ls.tick + (1 << uint(st.attempts))
		return
	}

	// Устаревший результат: фокус ушёл, чанк больше не нужен.
	// Ожидаемая ситуация под нагрузкой, отбрасываем молча.
	if res.coord.ChebyshevTo(focal) > unloadRadius {
		delete(ls.pending, res.coord)
		ls.stats.Discarded++
		return
	}

	ls.store.Put(res.coord, res.chunk)
	delete(ls.pending, res.coord)
	ls.stats.Completed++
	logging.LogChunkReady(res.coord.X, res.coord.Z, res.chunk.BlockCount())

	if ls.onReady != nil {
		ls.onReady(res.coord, res.chunk)
	}
}

// dispatch выдаёт готовые к запуску координаты воркерам.
// Порядок не убывает по расстоянию; равные расстояния упорядочены
// лексикографически, поэтому выдача детерминирована.
func (ls *LoadScheduler) dispatch(focal ChunkCoord, loadRadius int, tier budget.Tier) {
	type candidate struct {
		coord ChunkCoord
		dist  int
	}

	candidates := make([]candidate, 0, len(ls.pending))
	for coord, st := range ls.pending {
		if st.state != StateRequested {
			continue
		}
		if st.nextRetryTick > ls.tick {
			continue
		}
		dist := coord.ChebyshevTo(focal)
		if dist > loadRadius {
			continue
		}
		candidates = append(candidates, candidate{coord: coord, dist: dist})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].coord.Less(candidates[j].coord)
	})

	if ls.cfg.Workers == 0 {
		// Без пула: одна генерация за квант планирования на вызывающем потоке
		if len(candidates) > 0 {
			c := candidates[0]
			st := ls.pending[c.coord]
			st.state = StateGenerating
			ls.inFlight++
			ls.stats.Dispatched++
			logging.LogChunkDispatch(c.coord.X, c.coord.Z, c.dist)
			ls.applyResult(ls.runJob(genJob{coord: c.coord, degraded: st.degraded}), focal, ls.cfg.UnloadRadius)
		}
		return
	}

	maxInFlight := ls.effectiveWorkers(tier)
	dispatched := 0
	for _, c := range candidates {
		if dispatched >= ls.cfg.DispatchPerTick || ls.inFlight >= maxInFlight {
			break
		}
		st := ls.pending[c.coord]
		st.state = StateGenerating

		select {
		case ls.jobs <- genJob{coord: c.coord, degraded: st.degraded}:
			ls.inFlight++
			dispatched++
			ls.stats.Dispatched++
			logging.LogChunkDispatch(c.coord.X, c.coord.Z, c.dist)
		default:
			// Очередь воркеров заполнена, координата подождёт следующего тика
			st.state = StateRequested
			return
		}
	}
}

// worker выполняет задачи генерации по одной, до полного завершения каждой
func (ls *LoadScheduler) worker() {
	defer ls.wg.Done()

	for job := range ls.jobs {
		res := ls.runJob(job)
		select {
		case ls.results <- res:
		case <-ls.ctx.Done():
			return
		}
	}
}

// runJob выполняет одну генерацию с временным бюджетом и трассировкой.
// Паника внутри генератора превращается в ошибку: сбой одной координаты
// никогда не роняет цикл тиков.
func (ls *LoadScheduler) runJob(job genJob) (res genResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = genResult{coord: job.coord, err: fmt.Errorf("паника генерации: %v", r)}
		}
		if ls.onGenerated != nil {
			ls.onGenerated(time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(ls.ctx, ls.cfg.TimeBudget)
	defer cancel()

	tracer := otel.Tracer("voxel-stream/scheduler")
	ctx, span := tracer.Start(ctx, "chunk.generate")
	span.SetAttributes(
		attribute.Int("chunk.x", job.coord.X),
		attribute.Int("chunk.z", job.coord.Z),
		attribute.Bool("chunk.degraded", job.degraded),
	)
	defer span.End()

	var chunk *Chunk
	var err error
	if job.degraded {
		chunk, err = ls.gen.GenerateDegraded(ctx, job.coord)
	} else {
		chunk, err = ls.gen.Generate(ctx, job.coord)
	}

	return genResult{coord: job.coord, chunk: chunk, err: err}
}
