package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncAndGet(t *testing.T) {
	Reset()

	Inc("test_counter")
	Inc("test_counter")
	Add("test_counter", 3)

	assert.Equal(t, int64(5), Get("test_counter"))
	assert.Equal(t, int64(0), Get("unknown_counter"))
}

func TestSnapshot(t *testing.T) {
	Reset()

	Inc(OracleFailures)
	Add(VectorDegraded, 2)

	snap := Snapshot()
	assert.Equal(t, int64(1), snap[OracleFailures])
	assert.Equal(t, int64(2), snap[VectorDegraded])
}

func TestConcurrentInc(t *testing.T) {
	Reset()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Inc("concurrent")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5000), Get("concurrent"))
}
