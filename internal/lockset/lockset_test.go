package lockset

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithLockExcludesConcurrentAccess(t *testing.T) {
	km := New()
	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.WithLock("AAPL", func() {
				cur := atomic.LoadInt64(&counter)
				atomic.StoreInt64(&counter, cur+1)
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), counter)
}

func TestDifferentKeysDoNotBlockEachOther(t *testing.T) {
	km := New()
	km.Lock("AAPL")
	defer km.Unlock("AAPL")

	done := make(chan struct{})
	go func() {
		km.WithLock("MSFT", func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected MSFT lock to be independent of AAPL lock")
	}
}

func TestLockMultiCanonicalOrdering(t *testing.T) {
	km := New()

	release1 := km.LockMulti("zzz", "aaa")
	acquired := make(chan struct{}, 1)
	go func() {
		release2 := km.LockMulti("aaa", "zzz")
		acquired <- struct{}{}
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquirer should have blocked behind the first")
	default:
	}

	release1()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquirer should have proceeded after release1")
	}
}

func TestLockMultiDeduplicatesKeys(t *testing.T) {
	km := New()
	release := km.LockMulti("AAPL", "AAPL", "AAPL")
	release()
}
