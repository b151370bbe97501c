package biz

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()
	counters := map[string]*int{"a": new(int), "b": new(int)}

	var wg sync.WaitGroup
	for i := range 100 {
		key := "a"
		if i%2 == 1 {
			key = "b"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()
			*counters[key]++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, *counters["a"])
	assert.Equal(t, 50, *counters["b"])
	assert.Zero(t, locks.size())
}
