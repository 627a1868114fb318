package logging

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir переводит тест во временный каталог: логгеры создают
// файлы в logs относительно рабочей директории
func inTempDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestSetLogLevel(t *testing.T) {
	inTempDir(t)

	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	logger, err := lm.GetLogger("world")
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, lm.SetLogLevel("world", ERROR, WARN))
	assert.Equal(t, ERROR, logger.minConsoleLevel)
	assert.Equal(t, WARN, logger.minFileLevel)

	assert.Error(t, lm.SetLogLevel("нет-такого", INFO, INFO))
}

func TestSetLogLevelConcurrent(t *testing.T) {
	inTempDir(t)

	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	_, err := lm.GetLogger("scheduler")
	require.NoError(t, err)
	defer lm.CloseAll()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = lm.SetLogLevel("scheduler", LogLevel(n%5), LogLevel(j%5))
				_, _ = lm.GetLogger("scheduler")
			}
		}(i)
	}
	wg.Wait()
}
