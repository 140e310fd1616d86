package db

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
)

func TestSharedBuildsSinglePool(t *testing.T) {
	t.Cleanup(CloseShared)
	path := filepath.Join(t.TempDir(), "shared.db")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		pools = make(map[*sql.DB]bool)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			database, err := Shared(path, 4)
			if err != nil {
				t.Errorf("Shared failed: %v", err)
				return
			}
			mu.Lock()
			pools[database] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(pools) != 1 {
		t.Fatalf("Expected one shared pool, got %d", len(pools))
	}
}
