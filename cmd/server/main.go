package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxel-stream/internal/config"
	"github.com/annel0/voxel-stream/internal/engine"
	"github.com/annel0/voxel-stream/internal/eventbus"
	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/metrics"
	"github.com/annel0/voxel-stream/internal/observability"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (или ENV VOXEL_CONFIG)")
	seed := flag.Int64("seed", 0, "Seed мира (перекрывает конфигурацию, 0 = из конфига)")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🧊 Запуск сервера потоковой загрузки чанков...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка загрузки конфигурации: %v", err)
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	logging.Info("📡 Конфигурация: seed=%d, чанк=%d, радиусы=%d/%d, кэш=%d",
		cfg.World.Seed, cfg.World.ChunkSize,
		cfg.World.LoadRadius, cfg.World.UnloadRadius, cfg.World.MaxChunks)

	// === ИНИЦИАЛИЗАЦИЯ КОМПОНЕНТОВ ===

	// Регистрируем блоки: встроенные плюс YAML-описания (если заданы)
	block.RegisterDefaults()
	if cfg.BlockDefs != "" {
		if err := block.LoadYAMLBlocks(cfg.BlockDefs); err != nil && !os.IsNotExist(err) {
			logging.Error("Ошибка загрузки YAML-блоков: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Телеметрия (best-effort: без коллектора движок работает как обычно)
	shutdownTelemetry, err := observability.InitTelemetry(ctx, "voxel-stream", cfg.Server.OTLPEndpoint)
	if err != nil {
		logging.Error("OpenTelemetry не инициализирован: %v", err)
		shutdownTelemetry = nil
	}

	// Prometheus метрики
	collectors := metrics.New()
	metrics.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))

	// Шина событий
	bus := eventbus.NewMemoryBus(cfg.World.EventBusCapacity)
	defer bus.Close()
	subscribeDebugLogger(ctx, bus)

	// Движок
	eng := engine.NewEngine(cfg, bus, collectors)
	eng.Start(ctx)
	defer eng.Stop()

	logging.Info("✅ Все компоненты запущены")
	logging.Info("   📈 Prometheus: http://localhost:%d/metrics", cfg.Server.GetMetricsPort())

	// === ГЛАВНЫЙ ЦИКЛ ===
	// Фокальная точка медленно движется по миру, имитируя наблюдателя.
	// Реальный клиент подставляет сюда позицию камеры.
	go runTickLoop(ctx, eng)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	cancel()
	if shutdownTelemetry != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logging.Error("Ошибка остановки телеметрии: %v", err)
		}
	}
	logging.Info("✅ Сервер остановлен")
}

// runTickLoop крутит движок на 60 тиках в секунду.
// Наблюдатель делает шаг на восток каждые 2 секунды, чтобы конвейер
// загрузки и выгрузки был виден в метриках даже без клиента.
func runTickLoop(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	focal := world.ChunkCoord{}
	var tick uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			if tick%120 == 0 {
				focal.X++
			}
			eng.Tick(focal)
		}
	}
}

// subscribeDebugLogger пишет события шины в журнал
func subscribeDebugLogger(ctx context.Context, bus eventbus.EventBus) {
	_, err := bus.Subscribe(ctx, eventbus.Filter{}, func(_ context.Context, ev *eventbus.Envelope) {
		switch p := ev.Payload.(type) {
		case eventbus.ChunkMeshReadyEvent:
			logging.Trace("Событие %s: чанк (%d,%d) LOD %d, %d граней",
				ev.EventType, p.Coord.X, p.Coord.Z, p.LOD, p.FaceCount)
		case eventbus.PressureChangedEvent:
			logging.Info("Событие %s: уровень %s", ev.EventType, p.Tier)
		default:
			logging.Trace("Событие %s от %s", ev.EventType, ev.Source)
		}
	})
	if err != nil {
		logging.Error("Подписка на шину не удалась: %v", err)
	}
}
