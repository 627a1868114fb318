package budget

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/annel0/voxel-stream/internal/logging"
)

// PressureSubscriber получает уведомления о смене уровня давления.
// Типизированный интерфейс вместо широковещательных колбэков: каждый
// подписчик сам решает, как деградировать.
type PressureSubscriber interface {
	OnPressureChange(tier Tier)
}

// Thresholds — пороги классификации давления.
// Счётчики геометрии в гранях, память в мегабайтах.
type Thresholds struct {
	FacesWarning   int     `yaml:"faces_warning"`
	FacesDanger    int     `yaml:"faces_danger"`
	FacesCritical  int     `yaml:"faces_critical"`
	MemoryMBWarn   float64 `yaml:"memory_mb_warning"`
	MemoryMBDanger float64 `yaml:"memory_mb_danger"`
	MemoryMBCrit   float64 `yaml:"memory_mb_critical"`
}

// DefaultThresholds возвращает пороги по умолчанию
func DefaultThresholds() Thresholds {
	return Thresholds{
		FacesWarning:   400_000,
		FacesDanger:    800_000,
		FacesCritical:  1_200_000,
		MemoryMBWarn:   512,
		MemoryMBDanger: 1024,
		MemoryMBCrit:   1536,
	}
}

// Counters — агрегированные счётчики ресурсов движка,
// обновляемые из цикла тиков
type Counters struct {
	ResidentChunks int // Чанков в хранилище
	CachedFaces    int // Граней в кэшированных мешах
	QueueDepth     int // Координат в ожидании генерации
}

// Monitor периодически сравнивает счётчики движка и показатели процесса
// с порогами и классифицирует давление. Эскалация мгновенная,
// снижение — только после выдержанного окна затишья, чтобы радиус
// загрузки не осциллировал на границе порога.
type Monitor struct {
	thresholds Thresholds
	cooldown   time.Duration

	mu          sync.Mutex
	counters    Counters
	tier        Tier
	calmSince   time.Time // Начало текущего окна затишья; нулевое — окна нет
	forcedUntil time.Time // Принудительная эскалация (исчерпание ёмкости)
	subscribers []PressureSubscriber

	proc    *process.Process
	lastCPU float64 // Последний замер CPU процесса, проценты

	// Деградированный режим для хоста: выставляется только при
	// устойчивом Critical
	degraded bool
}

// NewMonitor создаёт монитор с указанными порогами и окном снижения
func NewMonitor(thresholds Thresholds, cooldown time.Duration) *Monitor {
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}

	m := &Monitor{
		thresholds: thresholds,
		cooldown:   cooldown,
		tier:       TierLow,
	}

	// Показатели процесса best-effort: без них монитор работает
	// только по счётчикам движка
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	}

	return m
}

// Subscribe добавляет подписчика на смену уровня давления
func (m *Monitor) Subscribe(sub PressureSubscriber) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, sub)
	m.mu.Unlock()
}

// Tier возвращает текущий уровень давления
func (m *Monitor) Tier() Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tier
}

// Degraded сообщает хосту, что движок в деградированном режиме
// (устойчивый Critical)
func (m *Monitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// SetCounters обновляет счётчики движка
func (m *Monitor) SetCounters(c Counters) {
	m.mu.Lock()
	m.counters = c
	m.mu.Unlock()
}

// ForceEscalate принудительно поднимает давление минимум до High.
// Вызывается планировщиком при исчерпании ёмкости хранилища.
func (m *Monitor) ForceEscalate() {
	m.mu.Lock()
	m.forcedUntil = time.Now().Add(m.cooldown)
	m.mu.Unlock()
	m.Sample()
}

// Run запускает цикл измерений; interval — период выборки
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}

// CPUPercent возвращает последний замер загрузки CPU процессом.
// Наблюдаемый показатель для хоста и метрик; в классификации давления
// не участвует.
func (m *Monitor) CPUPercent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCPU
}

// Sample выполняет одно измерение и при необходимости меняет уровень
func (m *Monitor) Sample() {
	memMB := m.memoryMB()

	var cpu float64
	if m.proc != nil {
		if v, err := m.proc.CPUPercent(); err == nil {
			cpu = v
		}
	}

	m.mu.Lock()
	m.lastCPU = cpu
	measured := m.classify(m.counters, memMB)

	if !m.forcedUntil.IsZero() {
		if time.Now().Before(m.forcedUntil) {
			if measured < TierHigh {
				measured = TierHigh
			}
		} else {
			m.forcedUntil = time.Time{}
		}
	}

	prev := m.tier
	next := prev

	switch {
	case measured > prev:
		// Эскалация мгновенная
		next = measured
		m.calmSince = time.Time{}
	case measured < prev:
		// Снижение только после выдержанного окна затишья
		now := time.Now()
		if m.calmSince.IsZero() {
			m.calmSince = now
		} else if now.Sub(m.calmSince) >= m.cooldown {
			next = prev - 1 // Ступенчатое снижение, по уровню за окно
			m.calmSince = now
		}
	default:
		m.calmSince = time.Time{}
	}

	m.tier = next
	m.degraded = next == TierCritical
	subs := append([]PressureSubscriber(nil), m.subscribers...)
	m.mu.Unlock()

	if next != prev {
		logging.LogPressureChange(prev.String(), next.String())
		for _, sub := range subs {
			sub.OnPressureChange(next)
		}
	}
}

// classify сопоставляет счётчики с порогами; берётся максимум по осям
func (m *Monitor) classify(c Counters, memMB float64) Tier {
	tier := TierLow

	faceTier := TierLow
	switch {
	case m.thresholds.FacesCritical > 0 && c.CachedFaces >= m.thresholds.FacesCritical:
		faceTier = TierCritical
	case m.thresholds.FacesDanger > 0 && c.CachedFaces >= m.thresholds.FacesDanger:
		faceTier = TierHigh
	case m.thresholds.FacesWarning > 0 && c.CachedFaces >= m.thresholds.FacesWarning:
		faceTier = TierMedium
	}
	if faceTier > tier {
		tier = faceTier
	}

	memTier := TierLow
	switch {
	case m.thresholds.MemoryMBCrit > 0 && memMB >= m.thresholds.MemoryMBCrit:
		memTier = TierCritical
	case m.thresholds.MemoryMBDanger > 0 && memMB >= m.thresholds.MemoryMBDanger:
		memTier = TierHigh
	case m.thresholds.MemoryMBWarn > 0 && memMB >= m.thresholds.MemoryMBWarn:
		memTier = TierMedium
	}
	if memTier > tier {
		tier = memTier
	}

	return tier
}

// memoryMB возвращает занятую процессом память в мегабайтах.
// Сначала RSS через gopsutil, при недоступности — счётчики рантайма.
func (m *Monitor) memoryMB() float64 {
	if m.proc != nil {
		if mi, err := m.proc.MemoryInfo(); err == nil && mi != nil {
			return float64(mi.RSS) / 1024 / 1024
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.Alloc) / 1024 / 1024
}
