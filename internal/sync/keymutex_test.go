package sync

import (
	"sync"
	"testing"
)

func TestKeyMutexSerializesSameKey(t *testing.T) {
	km := newKeyMutex()
	const workers = 16
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("contact:42")
			defer km.Unlock("contact:42")
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("expected %d serialized increments, got %d", workers, counter)
	}
}

func TestKeyMutexIndependentKeys(t *testing.T) {
	km := newKeyMutex()
	km.Lock("contact:1")
	// A different key must not block.
	done := make(chan struct{})
	go func() {
		km.Lock("contact:2")
		km.Unlock("contact:2")
		close(done)
	}()
	<-done
	km.Unlock("contact:1")
}

func TestKeyMutexCleansUpEntries(t *testing.T) {
	km := newKeyMutex()
	km.Lock("a")
	km.Unlock("a")
	km.Lock("b")
	km.Unlock("b")

	km.mu.Lock()
	n := len(km.locks)
	km.mu.Unlock()
	if n != 0 {
		t.Errorf("expected released keys to be removed, %d entries remain", n)
	}
}
