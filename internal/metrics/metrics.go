package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/voxel-stream/internal/logging"
)

// Collectors инкапсулирует Prometheus-метрики потокового движка.
// Экспортер не делает предположений о конкретных компонентах –
// значения в него заталкивают владельцы данных (Engine, Scheduler, Monitor).
type Collectors struct {
	ChunksResident  prometheus.Gauge
	CachedFaces     prometheus.Gauge
	QueueDepth      prometheus.Gauge
	PressureTier    prometheus.Gauge
	GenDuration     prometheus.Histogram
	GenFailures     prometheus.Counter
	Evictions       prometheus.Counter
	FacesEmitted    prometheus.Counter
	MeshTruncations prometheus.Counter
	Placeholders    prometheus.Counter
}

// New создаёт и регистрирует метрики в глобальном регистре Prometheus.
func New() *Collectors {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry создаёт метрики и регистрирует их в указанном регистре.
// Тесты передают собственный prometheus.NewRegistry, чтобы не конфликтовать
// с глобальным.
func NewWithRegistry(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ChunksResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "chunks_resident",
			Help:      "Количество чанков, находящихся в кэше.",
		}),
		CachedFaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "mesh_faces_cached",
			Help:      "Суммарное число граней во всех закэшированных мешах.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "generation_queue_depth",
			Help:      "Глубина очереди генерации (ожидающие + в работе).",
		}),
		PressureTier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "pressure_tier",
			Help:      "Текущий уровень ресурсного давления (0=Low … 3=Critical).",
		}),
		GenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Name:      "generation_duration_seconds",
			Help:      "Длительность генерации одного чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		GenFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "generation_failures_total",
			Help:      "Неудачных попыток генерации (таймауты, паники).",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "evictions_total",
			Help:      "Чанков, выгруженных из кэша.",
		}),
		FacesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "mesh_faces_emitted_total",
			Help:      "Суммарное число граней, построенных мешером.",
		}),
		MeshTruncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "mesh_budget_truncations_total",
			Help:      "Мешей, обрезанных по бюджету граней.",
		}),
		Placeholders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "placeholder_chunks_total",
			Help:      "Чанков, заменённых пустой заглушкой после исчерпания попыток.",
		}),
	}

	reg.MustRegister(
		c.ChunksResident, c.CachedFaces, c.QueueDepth, c.PressureTier,
		c.GenDuration, c.GenFailures, c.Evictions,
		c.FacesEmitted, c.MeshTruncations, c.Placeholders,
	)
	return c
}

// ObserveGeneration фиксирует длительность генерации чанка
func (c *Collectors) ObserveGeneration(d time.Duration) {
	c.GenDuration.Observe(d.Seconds())
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: HTTP-сервер стартует в отдельной горутине.
func StartHTTP(addr string) {
	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
}
