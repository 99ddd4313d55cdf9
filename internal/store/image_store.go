// Package store implements the ordered, content-deduplicated sequence of
// captured page images and its write-through mirror in a key/value backend.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/domain"
	"github.com/user/book-archiver/internal/repository"
	"github.com/user/book-archiver/pkg/utils"
)

// DefaultKeyPrefix is the storage key prefix used by the browser userscript.
const DefaultKeyPrefix = "bookImages_"

// StorageKey derives the persistence key for a document address.
// Different addresses never share a key.
func StorageKey(prefix, address string) string {
	return prefix + address
}

// ImageStore is the in-memory page sequence for one storage key. Every
// mutation is immediately persisted in full; there is no write buffering.
// It is safe for concurrent use.
type ImageStore struct {
	repo   repository.KeyValueRepository
	key    string
	logger *zap.Logger

	mu    sync.Mutex
	pages []domain.CapturedPage
	index map[[sha256.Size]byte][]int // content digest -> positions in pages
}

// Load reads the persisted sequence for key. It never fails: a missing entry,
// an unreachable backend or malformed data all yield an empty store.
func Load(ctx context.Context, repo repository.KeyValueRepository, key string, logger *zap.Logger) *ImageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ImageStore{
		repo:   repo,
		key:    key,
		logger: logger,
		index:  make(map[[sha256.Size]byte][]int),
	}

	raw, found, err := repo.GetItem(ctx, key)
	if err != nil {
		logger.Warn("could not read stored pages, starting empty", zap.String("key", key), zap.Error(err))
		return s
	}
	if !found {
		return s
	}

	pages, err := Decode(raw)
	if err != nil {
		logger.Warn("stored pages are malformed, starting empty", zap.String("key", key), zap.Error(err))
		return s
	}
	for _, p := range pages {
		// Older stores may contain duplicates; keep the first occurrence.
		s.insertLocked(p)
	}
	logger.Info("loaded stored pages", zap.String("key", key), zap.Int("pages", len(s.pages)))
	return s
}

// Key returns the storage key this store persists under.
func (s *ImageStore) Key() string {
	return s.key
}

// Append adds page at the end unless a page with identical encoded content is
// already stored. It reports whether an insertion happened. An insertion is
// persisted immediately; if that write fails the error is returned but the
// page stays in memory and is written with the next successful persist.
func (s *ImageStore) Append(ctx context.Context, page domain.CapturedPage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.insertLocked(page) {
		return false, nil
	}
	if err := s.persistLocked(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Persist writes the full current sequence under the store key.
func (s *ImageStore) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Clear removes the persisted entry and empties the sequence. The in-memory
// sequence is emptied even when the backend removal fails.
func (s *ImageStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages = nil
	s.index = make(map[[sha256.Size]byte][]int)

	if err := s.repo.RemoveItem(ctx, s.key); err != nil {
		return fmt.Errorf("store: remove %q: %w", s.key, err)
	}
	return nil
}

// Pages returns a copy of the sequence in insertion order.
func (s *ImageStore) Pages() []domain.CapturedPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CapturedPage, len(s.pages))
	copy(out, s.pages)
	return out
}

// Len returns the number of stored pages.
func (s *ImageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

func (s *ImageStore) insertLocked(page domain.CapturedPage) bool {
	digest := utils.HashContent(page.EncodedImage)
	for _, i := range s.index[digest] {
		if s.pages[i].EncodedImage == page.EncodedImage {
			return false
		}
	}
	s.index[digest] = append(s.index[digest], len(s.pages))
	s.pages = append(s.pages, page)
	return true
}

func (s *ImageStore) persistLocked(ctx context.Context) error {
	raw, err := Encode(s.pages)
	if err != nil {
		return err
	}
	if err := s.repo.SetItem(ctx, s.key, raw); err != nil {
		return fmt.Errorf("store: persist %q: %w", s.key, err)
	}
	return nil
}

// Encode serializes pages as the JSON array stored in the backend.
func Encode(pages []domain.CapturedPage) (string, error) {
	if pages == nil {
		pages = []domain.CapturedPage{}
	}
	b, err := json.Marshal(pages)
	if err != nil {
		return "", fmt.Errorf("store: encode: %w", err)
	}
	return string(b), nil
}

// Decode parses a stored JSON array of pages.
func Decode(raw string) ([]domain.CapturedPage, error) {
	var pages []domain.CapturedPage
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		return nil, fmt.Errorf("store: decode: %w", err)
	}
	return pages, nil
}
