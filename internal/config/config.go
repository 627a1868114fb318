package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/annel0/voxel-stream/internal/budget"
	"github.com/annel0/voxel-stream/internal/world/gen"
)

// Config корневая структура конфигурации движка.

type Config struct {
	World     WorldConfig       `yaml:"world"`
	Generator gen.Params        `yaml:"generator"`
	Mesh      MeshConfig        `yaml:"mesh"`
	Budget    budget.Thresholds `yaml:"budget"`
	Server    ServerConfig      `yaml:"server"`
	BlockDefs string            `yaml:"block_defs"` // Путь к YAML с определениями блоков (опционально)
}

type WorldConfig struct {
	Seed             int64 `yaml:"seed"`
	ChunkSize        int   `yaml:"chunk_size"`
	WorldHeight      int   `yaml:"world_height"`
	LoadRadius       int   `yaml:"load_radius"`
	UnloadRadius     int   `yaml:"unload_radius"`
	MaxChunks        int   `yaml:"max_chunks_in_store"`
	Workers          int   `yaml:"worker_pool_size"`
	DispatchPerTick  int   `yaml:"dispatch_per_tick"`
	MaxAttempts      int   `yaml:"max_attempts"`
	GenTimeBudgetMS  int   `yaml:"generation_time_budget_ms"`
	EventBusCapacity int   `yaml:"eventbus_capacity"`
}

type MeshConfig struct {
	// Границы LOD-зон в чанках (Chebyshev): расстояние < Bands[i] → LOD i
	DistanceBands []int `yaml:"lod_distance_bands"`
	// Бюджет граней на меш по уровням LOD
	FaceBudgets []int `yaml:"per_lod_face_budget"`
}

type ServerConfig struct {
	MetricsPort  int    `yaml:"metrics_port"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// GetMetricsPort возвращает порт Prometheus с приоритетом config -> env -> default
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "VOXEL_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:             1,
			ChunkSize:        16,
			WorldHeight:      128,
			LoadRadius:       6,
			UnloadRadius:     8,
			MaxChunks:        256,
			Workers:          4,
			DispatchPerTick:  8,
			MaxAttempts:      3,
			GenTimeBudgetMS:  250,
			EventBusCapacity: 1024,
		},
		Generator: gen.DefaultParams(),
		Mesh: MeshConfig{
			DistanceBands: []int{3, 5, 7},
			FaceBudgets:   []int{12288, 6144, 3072, 1536},
		},
		Budget: budget.DefaultThresholds(),
	}
}

// Load читает YAML файл конфигурации поверх дефолтов.
// Если path == "", пытается прочитать из ENV VOXEL_CONFIG или возвращает дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	w := &c.World
	if w.ChunkSize <= 0 || w.ChunkSize&(w.ChunkSize-1) != 0 {
		return fmt.Errorf("chunk_size должен быть степенью двойки, получено %d", w.ChunkSize)
	}
	if w.WorldHeight <= 0 {
		return fmt.Errorf("world_height должен быть > 0, получено %d", w.WorldHeight)
	}
	if w.LoadRadius < 1 {
		return fmt.Errorf("load_radius должен быть >= 1, получено %d", w.LoadRadius)
	}
	if w.UnloadRadius <= w.LoadRadius {
		return fmt.Errorf("unload_radius (%d) должен быть строго больше load_radius (%d)",
			w.UnloadRadius, w.LoadRadius)
	}
	if w.MaxChunks < (2*w.LoadRadius+1)*(2*w.LoadRadius+1) {
		return fmt.Errorf("max_chunks_in_store (%d) меньше зоны загрузки (%d чанков)",
			w.MaxChunks, (2*w.LoadRadius+1)*(2*w.LoadRadius+1))
	}
	if w.Workers < 0 {
		return fmt.Errorf("worker_pool_size не может быть отрицательным")
	}
	for i := 1; i < len(c.Mesh.DistanceBands); i++ {
		if c.Mesh.DistanceBands[i] <= c.Mesh.DistanceBands[i-1] {
			return fmt.Errorf("lod_distance_bands должны строго возрастать: %v", c.Mesh.DistanceBands)
		}
	}
	if len(c.Mesh.FaceBudgets) == 0 {
		return fmt.Errorf("per_lod_face_budget не может быть пустым")
	}
	for i, b := range c.Mesh.FaceBudgets {
		if b <= 0 {
			return fmt.Errorf("per_lod_face_budget[%d] должен быть > 0, получено %d", i, b)
		}
	}
	if len(c.Mesh.FaceBudgets) < len(c.Mesh.DistanceBands)+1 {
		return fmt.Errorf("per_lod_face_budget должен покрывать %d уровней LOD",
			len(c.Mesh.DistanceBands)+1)
	}
	return nil
}
