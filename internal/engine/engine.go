package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/voxel-stream/internal/budget"
	"github.com/annel0/voxel-stream/internal/config"
	"github.com/annel0/voxel-stream/internal/eventbus"
	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/mesh"
	"github.com/annel0/voxel-stream/internal/metrics"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/gen"
)

const sourceName = "engine"

// Engine — фасад потокового движка: связывает генератор, кэш чанков,
// планировщик загрузки, мешер и монитор ресурсного давления.
// Потребители (рендер, физика) работают только через Engine и шину событий.
type Engine struct {
	cfg        *config.Config
	store      *world.ChunkStore
	generator  *gen.Generator
	scheduler  *world.LoadScheduler
	builder    *mesh.Builder
	monitor    *budget.Monitor
	bus        eventbus.EventBus
	collectors *metrics.Collectors

	focal       atomic.Value // world.ChunkCoord
	cachedFaces atomic.Int64

	// Последние виденные значения счётчиков планировщика; Tick добавляет
	// в Prometheus только прирост. Читаются и пишутся с потока тиков.
	lastFailed       uint64
	lastPlaceholders uint64

	cancel context.CancelFunc
}

// NewEngine собирает движок из конфигурации. Metrics и bus опциональны (nil допустим).
func NewEngine(cfg *config.Config, bus eventbus.EventBus, collectors *metrics.Collectors) *Engine {
	e := &Engine{
		cfg:        cfg,
		store:      world.NewChunkStore(),
		generator:  gen.NewGenerator(cfg.World.Seed, cfg.Generator),
		builder:    mesh.NewBuilder(cfg.Mesh.FaceBudgets),
		monitor:    budget.NewMonitor(cfg.Budget, 0),
		bus:        bus,
		collectors: collectors,
	}
	e.focal.Store(world.ChunkCoord{})

	e.scheduler = world.NewLoadScheduler(e.store, e.generator, world.SchedulerConfig{
		ChunkSize:       cfg.World.ChunkSize,
		WorldHeight:     cfg.World.WorldHeight,
		LoadRadius:      cfg.World.LoadRadius,
		UnloadRadius:    cfg.World.UnloadRadius,
		MaxChunks:       cfg.World.MaxChunks,
		Workers:         cfg.World.Workers,
		DispatchPerTick: cfg.World.DispatchPerTick,
		MaxAttempts:     cfg.World.MaxAttempts,
		TimeBudget:      time.Duration(cfg.World.GenTimeBudgetMS) * time.Millisecond,
	})

	e.store.SetEvictFunc(e.onEvict)
	e.scheduler.SetReadyFunc(e.onChunkReady)
	if collectors != nil {
		e.scheduler.SetGenObserveFunc(collectors.ObserveGeneration)
	}
	e.scheduler.SetCapacityExhaustedFunc(e.monitor.ForceEscalate)
	e.monitor.Subscribe(e.scheduler)
	e.monitor.Subscribe(e)

	return e
}

// Start запускает фоновый монитор давления
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	go e.monitor.Run(ctx, time.Second)
	logging.Info("Движок запущен: seed=%d, радиус загрузки=%d, лимит кэша=%d чанков",
		e.cfg.World.Seed, e.cfg.World.LoadRadius, e.cfg.World.MaxChunks)
}

// Stop останавливает планировщик и монитор
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.scheduler.Stop()
	logging.Info("Движок остановлен")
}

// Tick продвигает движок на один кадр: планирует загрузку вокруг фокальной
// точки, выгружает дальние чанки и обновляет счётчики монитора.
func (e *Engine) Tick(focal world.ChunkCoord) {
	e.focal.Store(focal)
	e.scheduler.Update(focal)

	stats := e.scheduler.Stats()
	counters := budget.Counters{
		ResidentChunks: e.store.Len(),
		CachedFaces:    int(e.cachedFaces.Load()),
		QueueDepth:     stats.Pending + stats.InFlight,
	}
	e.monitor.SetCounters(counters)

	if e.collectors != nil {
		e.collectors.ChunksResident.Set(float64(counters.ResidentChunks))
		e.collectors.CachedFaces.Set(float64(counters.CachedFaces))
		e.collectors.QueueDepth.Set(float64(counters.QueueDepth))
		e.collectors.PressureTier.Set(float64(e.monitor.Tier()))

		if d := stats.Failed - e.lastFailed; d > 0 {
			e.collectors.GenFailures.Add(float64(d))
		}
		if d := stats.Placeholders - e.lastPlaceholders; d > 0 {
			e.collectors.Placeholders.Add(float64(d))
		}
		e.lastFailed = stats.Failed
		e.lastPlaceholders = stats.Placeholders
	}
}

// Store возвращает кэш чанков (для тестов и отладочных инструментов)
func (e *Engine) Store() *world.ChunkStore { return e.store }

// Scheduler возвращает планировщик загрузки
func (e *Engine) Scheduler() *world.LoadScheduler { return e.scheduler }

// Monitor возвращает монитор ресурсного давления
func (e *Engine) Monitor() *budget.Monitor { return e.monitor }

// PressureTier возвращает текущий уровень давления
func (e *Engine) PressureTier() budget.Tier { return e.monitor.Tier() }

// chunkCoordOf переводит мировые координаты блока в координаты чанка
func (e *Engine) chunkCoordOf(x, z int) world.ChunkCoord {
	size := e.cfg.World.ChunkSize
	return world.ChunkCoord{
		X: floorDiv(x, size),
		Z: floorDiv(z, size),
	}
}

// IsSolid сообщает занятость блока в мировых координатах.
// Блоки незагруженных чанков считаются сплошными: физика не должна
// пропускать сущность в ещё не сгенерированный мир.
func (e *Engine) IsSolid(p vec.Vec3) bool {
	if p.Y < 0 {
		return true
	}
	if p.Y >= e.cfg.World.WorldHeight {
		return false
	}
	chunk, ok := e.store.Peek(e.chunkCoordOf(p.X, p.Z))
	if !ok || chunk.State() != world.StateReady {
		return true
	}
	size := e.cfg.World.ChunkSize
	local := vec.Vec3{
		X: mod(p.X, size),
		Y: p.Y,
		Z: mod(p.Z, size),
	}
	return chunk.IsSolidLocal(local)
}

// LODFor выбирает уровень детализации по расстоянию Чебышёва от фокальной
// точки с учётом смещения от уровня давления.
func (e *Engine) LODFor(coord world.ChunkCoord) uint8 {
	focal := e.focal.Load().(world.ChunkCoord)
	dist := coord.ChebyshevTo(focal)

	lod := len(e.cfg.Mesh.DistanceBands)
	for i, band := range e.cfg.Mesh.DistanceBands {
		if dist < band {
			lod = i
			break
		}
	}

	lod += e.monitor.Tier().LODBias()
	if max := e.builder.Levels() - 1; lod > max {
		lod = max
	}
	return uint8(lod)
}

// onChunkReady вызывается планировщиком, когда чанк сгенерирован и помещён в
// кэш. Здесь строится меш выбранного LOD и публикуется событие готовности.
func (e *Engine) onChunkReady(coord world.ChunkCoord, chunk *world.Chunk) {
	lod := e.LODFor(coord)

	_, span := otel.Tracer("voxel-stream/engine").Start(context.Background(), "chunk.mesh")
	span.SetAttributes(
		attribute.Int("chunk.x", coord.X),
		attribute.Int("chunk.z", coord.Z),
		attribute.Int("mesh.lod", int(lod)),
	)
	data, err := e.builder.Build(chunk, lod)
	span.End()
	if err != nil {
		logging.Error("Меш чанка (%d,%d) LOD %d не построен: %v", coord.X, coord.Z, lod, err)
		return
	}

	chunk.StoreMesh(lod, data)
	e.cachedFaces.Add(int64(data.FaceCount()))

	if e.collectors != nil {
		e.collectors.FacesEmitted.Add(float64(data.FaceCount()))
		if data.Truncated {
			e.collectors.MeshTruncations.Inc()
		}
	}
	logging.LogMeshReady(coord.X, coord.Z, lod, data.FaceCount())

	if e.bus != nil {
		ev := eventbus.NewChunkMeshReady(sourceName, coord, lod, data.FaceCount(), data.Truncated)
		_ = e.bus.Publish(context.Background(), ev)
	}
}

// onEvict вызывается кэшем после выгрузки чанка
func (e *Engine) onEvict(coord world.ChunkCoord, freedFaces int) {
	e.cachedFaces.Add(-int64(freedFaces))

	if e.collectors != nil {
		e.collectors.Evictions.Inc()
	}
	logging.LogChunkEvicted(coord.X, coord.Z, freedFaces)

	if e.bus != nil {
		_ = e.bus.Publish(context.Background(), eventbus.NewChunkEvicted(sourceName, coord, freedFaces))
	}
}

// OnPressureChange реализует budget.PressureSubscriber: движок публикует
// смену уровня давления в шину для внешних потребителей.
func (e *Engine) OnPressureChange(tier budget.Tier) {
	if e.collectors != nil {
		e.collectors.PressureTier.Set(float64(tier))
	}
	if e.bus != nil {
		_ = e.bus.Publish(context.Background(), eventbus.NewPressureChanged(sourceName, tier.String()))
	}
}

// floorDiv — целочисленное деление с округлением вниз (для отрицательных координат)
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod — неотрицательный остаток
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
