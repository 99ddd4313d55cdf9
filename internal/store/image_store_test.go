package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/user/book-archiver/internal/domain"
	"github.com/user/book-archiver/internal/storage"
)

const testKey = "bookImages_https://read.example.com/?asin=B0TEST"

// flakyRepo wraps a MemoryStore and fails selected operations.
type flakyRepo struct {
	*storage.MemoryStore
	failGet, failSet, failRemove bool
	sets                         int
}

func (r *flakyRepo) GetItem(ctx context.Context, key string) (string, bool, error) {
	if r.failGet {
		return "", false, errors.New("backend down")
	}
	return r.MemoryStore.GetItem(ctx, key)
}

func (r *flakyRepo) SetItem(ctx context.Context, key, value string) error {
	r.sets++
	if r.failSet {
		return errors.New("backend down")
	}
	return r.MemoryStore.SetItem(ctx, key, value)
}

func (r *flakyRepo) RemoveItem(ctx context.Context, key string) error {
	if r.failRemove {
		return errors.New("backend down")
	}
	return r.MemoryStore.RemoveItem(ctx, key)
}

func newRepo() *flakyRepo {
	return &flakyRepo{MemoryStore: storage.NewMemoryStore()}
}

func page(data string, w, h int) domain.CapturedPage {
	return domain.CapturedPage{EncodedImage: "data:image/jpeg;base64," + data, Width: w, Height: h}
}

func TestStorageKey(t *testing.T) {
	a := StorageKey(DefaultKeyPrefix, "https://read.example.com/?asin=A")
	b := StorageKey(DefaultKeyPrefix, "https://read.example.com/?asin=B")
	if a != "bookImages_https://read.example.com/?asin=A" {
		t.Errorf("StorageKey = %q", a)
	}
	if a == b {
		t.Error("different addresses produced the same key")
	}
}

func TestLoad_FailsSoft(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(r *flakyRepo)
	}{
		{name: "missing entry", setup: func(r *flakyRepo) {}},
		{name: "malformed json", setup: func(r *flakyRepo) { r.MemoryStore.SetItem(ctx, testKey, "{not json") }},
		{name: "wrong shape", setup: func(r *flakyRepo) { r.MemoryStore.SetItem(ctx, testKey, `{"dataUrl":"x"}`) }},
		{name: "null", setup: func(r *flakyRepo) { r.MemoryStore.SetItem(ctx, testKey, `null`) }},
		{name: "backend error", setup: func(r *flakyRepo) { r.failGet = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo()
			tt.setup(repo)
			s := Load(ctx, repo, testKey, zaptest.NewLogger(t))
			if s.Len() != 0 {
				t.Errorf("Len = %d, want 0", s.Len())
			}
		})
	}
}

func TestAppend_Deduplicates(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	s := Load(ctx, repo, testKey, zaptest.NewLogger(t))

	inserted, err := s.Append(ctx, page("AAAA", 800, 1200))
	if err != nil || !inserted {
		t.Fatalf("first Append = %v, %v; want true, nil", inserted, err)
	}
	inserted, err = s.Append(ctx, page("AAAA", 800, 1200))
	if err != nil || inserted {
		t.Fatalf("second Append = %v, %v; want false, nil", inserted, err)
	}
	// Same content with different dimensions is still a duplicate.
	inserted, _ = s.Append(ctx, page("AAAA", 1, 1))
	if inserted {
		t.Error("Append with identical content but other dimensions inserted")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if repo.sets != 1 {
		t.Errorf("persisted %d times, want 1 (only on insertion)", repo.sets)
	}
}

func TestAppend_PersistsEveryInsertion(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	s := Load(ctx, repo, testKey, nil)

	for i, data := range []string{"A", "B", "C"} {
		if _, err := s.Append(ctx, page(data, 10, 20)); err != nil {
			t.Fatalf("Append: %v", err)
		}
		raw, found, _ := repo.GetItem(ctx, testKey)
		if !found {
			t.Fatal("nothing persisted")
		}
		stored, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if len(stored) != i+1 {
			t.Errorf("after %d appends persisted %d pages", i+1, len(stored))
		}
	}
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	s := Load(ctx, repo, testKey, nil)

	want := []domain.CapturedPage{page("B", 800, 1600), page("A", 800, 1200), page("C", 640, 480)}
	for _, p := range want {
		s.Append(ctx, p)
	}
	if err := s.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reloaded := Load(ctx, repo, testKey, nil)
	if got := reloaded.Pages(); !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded pages = %+v, want %+v", got, want)
	}
}

func TestLoad_CollapsesStoredDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	raw, _ := Encode([]domain.CapturedPage{page("A", 1, 1), page("B", 1, 1), page("A", 1, 1)})
	repo.SetItem(ctx, testKey, raw)

	s := Load(ctx, repo, testKey, nil)
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestAppend_PersistFailureKeepsPage(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	s := Load(ctx, repo, testKey, nil)
	repo.failSet = true

	inserted, err := s.Append(ctx, page("A", 1, 1))
	if !inserted || err == nil {
		t.Fatalf("Append = %v, %v; want true and an error", inserted, err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	repo.failSet = false
	if err := s.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if Load(ctx, repo, testKey, nil).Len() != 1 {
		t.Error("page not persisted after recovery")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()

	t.Run("non-empty", func(t *testing.T) {
		repo := newRepo()
		s := Load(ctx, repo, testKey, nil)
		s.Append(ctx, page("A", 1, 1))

		if err := s.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("Len = %d, want 0", s.Len())
		}
		if _, found, _ := repo.GetItem(ctx, testKey); found {
			t.Error("persisted entry still present")
		}
		// Content cleared from the dedup index too.
		if inserted, _ := s.Append(ctx, page("A", 1, 1)); !inserted {
			t.Error("Append after Clear was treated as duplicate")
		}
	})

	t.Run("already empty", func(t *testing.T) {
		repo := newRepo()
		s := Load(ctx, repo, testKey, nil)
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("Len = %d, want 0", s.Len())
		}
	})

	t.Run("backend failure still empties memory", func(t *testing.T) {
		repo := newRepo()
		s := Load(ctx, repo, testKey, nil)
		s.Append(ctx, page("A", 1, 1))
		repo.failRemove = true

		if err := s.Clear(ctx); err == nil {
			t.Error("expected error")
		}
		if s.Len() != 0 {
			t.Errorf("Len = %d, want 0", s.Len())
		}
	})
}

func TestAppend_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := Load(ctx, storage.NewMemoryStore(), testKey, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Two goroutines per content value.
			s.Append(ctx, page(string(rune('a'+i%25)), 1, 1))
		}(i)
	}
	wg.Wait()

	if s.Len() != 25 {
		t.Errorf("Len = %d, want 25", s.Len())
	}
}
