package compress

import "testing"

func TestHotPageCachePutAndAcquire(t *testing.T) {
	c := newHotPageCache(2)
	c.put(1, []byte("one"))
	data, ok := c.acquire(1)
	if !ok || string(data) != "one" {
		t.Fatalf("acquire(1) = %q, %v", data, ok)
	}
	c.release(1)
	hits, misses, size, _ := c.stats()
	if hits != 1 || misses != 0 || size != 1 {
		t.Errorf("stats = hits:%d misses:%d size:%d, want 1,0,1", hits, misses, size)
	}
}

func TestHotPageCacheMiss(t *testing.T) {
	c := newHotPageCache(2)
	if _, ok := c.acquire(99); ok {
		t.Errorf("expected miss for unknown page")
	}
	_, misses, _, _ := c.stats()
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}

func TestHotPageCacheEvictsLRU(t *testing.T) {
	c := newHotPageCache(2)
	c.put(1, []byte("a"))
	c.put(2, []byte("b"))
	c.put(3, []byte("c")) // évince 1, la moins récemment utilisée
	if _, ok := c.acquire(1); ok {
		t.Errorf("expected page 1 to be evicted")
	} else {
		c.release(1)
	}
	if data, ok := c.acquire(2); !ok || string(data) != "b" {
		t.Errorf("expected page 2 to survive eviction, got %q, %v", data, ok)
	}
	c.release(2)
}

func TestHotPageCachePinnedSurvivesEviction(t *testing.T) {
	c := newHotPageCache(1)
	c.put(1, []byte("a"))
	if _, ok := c.acquire(1); !ok {
		t.Fatalf("acquire(1) failed")
	}
	// la page 1 est épinglée (refs=1) ; un put ne doit pas l'évincer.
	c.put(2, []byte("b"))
	if _, ok := c.acquire(1); !ok {
		t.Errorf("pinned page 1 was evicted while still held")
	}
}

func TestHotPageCacheInvalidate(t *testing.T) {
	c := newHotPageCache(4)
	c.put(5, []byte("stale"))
	c.invalidate(5)
	if _, ok := c.acquire(5); ok {
		t.Errorf("expected page 5 to be gone after invalidate")
	}
}

func TestWorkerPoolSubmit(t *testing.T) {
	p := newWorkerPool(2)
	defer p.close()

	result := <-p.submit(7, []byte("hello"), func(in []byte) ([]byte, error) {
		out := make([]byte, len(in))
		copy(out, in)
		return out, nil
	})
	if result.err != nil {
		t.Fatalf("submit: %v", result.err)
	}
	if string(result.output) != "hello" {
		t.Errorf("output = %q, want hello", result.output)
	}
}

func TestWorkerPoolRejectsAfterClose(t *testing.T) {
	p := newWorkerPool(1)
	p.close()
	result := <-p.submit(1, nil, func(in []byte) ([]byte, error) { return in, nil })
	if result.err == nil {
		t.Errorf("expected an error submitting to a closed pool")
	}
}
