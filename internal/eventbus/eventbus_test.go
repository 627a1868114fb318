package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-stream/internal/vec"
)

// collect подписывается и собирает события в срез
func collect(t *testing.T, bus EventBus, f Filter) (*sync.Mutex, *[]*Envelope, Subscription) {
	t.Helper()
	var mu sync.Mutex
	events := make([]*Envelope, 0)
	sub, err := bus.Subscribe(context.Background(), f, func(_ context.Context, ev *Envelope) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	require.NoError(t, err)
	return &mu, &events, sub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("условие не выполнилось за отведённое время")
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	mu, events, _ := collect(t, bus, Filter{})

	ev := NewChunkMeshReady("engine", vec.Vec2{X: 1, Z: 2}, 0, 64, false)
	require.NoError(t, bus.Publish(context.Background(), ev))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 1
	})

	mu.Lock()
	got := (*events)[0]
	mu.Unlock()

	assert.Equal(t, TypeChunkMeshReady, got.EventType)
	assert.NotEmpty(t, got.ID)
	payload, ok := got.Payload.(ChunkMeshReadyEvent)
	require.True(t, ok)
	assert.Equal(t, vec.Vec2{X: 1, Z: 2}, payload.Coord)
	assert.Equal(t, 64, payload.FaceCount)
}

func TestFilterByType(t *testing.T) {
	bus := NewMemoryBus(16)
	mu, events, _ := collect(t, bus, Filter{Types: []string{TypeChunkEvicted}})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewChunkMeshReady("engine", vec.Vec2{}, 0, 1, false)))
	require.NoError(t, bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{X: 5, Z: 5}, 10)))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, TypeChunkEvicted, (*events)[0].EventType)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus(16)
	mu, events, sub := collect(t, bus, Filter{})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{}, 1)))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 1
	})

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{}, 2)))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, *events, 1, "после отписки события не доставляются")
}

func TestLowPriorityDroppedWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)

	// Подписчик намертво блокирует цикл доставки
	release := make(chan struct{})
	_, err := bus.Subscribe(context.Background(), Filter{}, func(_ context.Context, _ *Envelope) {
		<-release
	})
	require.NoError(t, err)
	defer close(release)

	ctx := context.Background()
	// Первое событие уходит обработчику и застревает там
	require.NoError(t, bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{X: 0}, 0)))
	waitFor(t, func() bool { return bus.Metrics().InFlight == 0 })

	// Второе занимает единственный слот буфера, третье дропается
	require.NoError(t, bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{X: 1}, 0)))
	require.NoError(t, bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{X: 2}, 0)))

	stats := bus.Metrics()
	assert.Equal(t, uint64(1), stats.Dropped, "низкоприоритетные события дропаются при переполнении")
	assert.Equal(t, uint64(2), stats.Published)
}

func TestStatsCountPublished(t *testing.T) {
	bus := NewMemoryBus(64)
	mu, events, _ := collect(t, bus, Filter{})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, NewPressureChanged("monitor", "High")))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 5
	})

	stats := bus.Metrics()
	assert.Equal(t, uint64(5), stats.Published)
	assert.Equal(t, uint64(5), stats.Consumed)
}

func TestCloseStopsBus(t *testing.T) {
	bus := NewMemoryBus(8)
	mu, events, _ := collect(t, bus, Filter{})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{}, 1)))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 1
	})

	require.NoError(t, bus.Close())
	assert.NoError(t, bus.Close(), "повторный Close безопасен")

	err := bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{}, 2))
	assert.ErrorIs(t, err, ErrBusClosed)

	// Высокоприоритетная публикация после Close тоже отклоняется, не виснет
	err = bus.Publish(ctx, NewPressureChanged("monitor", "High"))
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestCloseDrainsBuffer(t *testing.T) {
	bus := NewMemoryBus(8)
	mu, events, _ := collect(t, bus, Filter{})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, NewChunkEvicted("engine", vec.Vec2{X: i}, 0)))
	}
	require.NoError(t, bus.Close())

	// Накопленные до Close события дорассылаются
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 5
	})
}
