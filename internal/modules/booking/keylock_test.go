package booking

import (
	"sync"
	"testing"
)

func TestKeyLocker_SerializesSameKey(t *testing.T) {
	k := newKeyLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("space:a")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if k.size() != 0 {
		t.Errorf("size = %d after all unlocks, want 0", k.size())
	}
}

func TestKeyLocker_IndependentKeys(t *testing.T) {
	k := newKeyLocker()
	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()
	<-done
	unlockA()
}
