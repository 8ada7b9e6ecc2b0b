package service

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWalletLocksMutualExclusion(t *testing.T) {
	locks := newWalletLocks()
	id := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(id)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestReservations(t *testing.T) {
	r := newReservations()
	w1, w2 := uuid.New(), uuid.New()

	assert.True(t, r.reserve("req-1", w1, 100))
	assert.True(t, r.reserve("req-2", w1, 50))
	assert.True(t, r.reserve("req-3", w2, 30))
	assert.Equal(t, int64(150), r.held(w1))
	assert.Equal(t, int64(30), r.held(w2))

	// Duplicate reserve for the same request is a no-op and reports that it
	// did not create the hold.
	assert.False(t, r.reserve("req-1", w1, 100))
	assert.Equal(t, int64(150), r.held(w1))

	r.release("req-1")
	assert.Equal(t, int64(50), r.held(w1))

	// Release is idempotent.
	r.release("req-1")
	r.release("never-reserved")
	assert.Equal(t, int64(50), r.held(w1))

	r.release("req-2")
	assert.Zero(t, r.held(w1))
	assert.Equal(t, int64(30), r.held(w2))
}
