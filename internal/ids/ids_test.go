package ids

import (
	"sort"
	"sync"
	"testing"
)

func TestNewUniqueAndSortable(t *testing.T) {
	const n = 1000
	seen := make(map[string]bool, n)
	generated := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("id %q has length %d, want 26", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
		generated = append(generated, id)
	}
	if !sort.StringsAreSorted(generated) {
		t.Fatal("ids generated in sequence must sort in order")
	}
}

func TestNewConcurrent(t *testing.T) {
	const workers, perWorker = 8, 200
	var (
		mu  sync.Mutex
		all = make(map[string]bool, workers*perWorker)
		wg  sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, New())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if all[id] {
					t.Errorf("duplicate id %q across goroutines", id)
				}
				all[id] = true
			}
		}()
	}
	wg.Wait()
}
