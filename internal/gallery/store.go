// Package gallery keeps the bounded, newest-first history of generated images.
package gallery

import (
	"sync"

	"github.com/five82/sdpanel/internal/params"
)

// MaxLimit is the most images a gallery ever holds.
const MaxLimit = 100

// DefaultLimit is the number of images retained before the oldest are evicted.
const DefaultLimit = MaxLimit

// Store is the sole owner of Image lifetimes. All mutation is serialized.
type Store struct {
	mu     sync.RWMutex
	limit  int
	images []Image
}

// New returns an empty store holding at most limit images. A non-positive
// limit uses DefaultLimit; anything above MaxLimit is capped.
func New(limit int) *Store {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return &Store{limit: limit}
}

// Add prepends a batch as one block, keeping the batch's own order, then
// evicts the oldest entries beyond the limit. It returns the ids evicted.
func (s *Store) Add(images ...Image) []string {
	if len(images) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Image, 0, len(images)+len(s.images))
	for _, img := range images {
		next = append(next, img.clone())
	}
	next = append(next, s.images...)

	var evicted []string
	if len(next) > s.limit {
		for _, img := range next[s.limit:] {
			evicted = append(evicted, img.ID)
		}
		next = next[:s.limit:s.limit]
	}
	s.images = next
	return evicted
}

// Remove deletes the image with id. It reports whether anything was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, img := range s.images {
		if img.ID == id {
			s.images = append(s.images[:i:i], s.images[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = nil
}

// Replace swaps in a full list, newest first, truncated to the limit. Used
// when restoring persisted state.
func (s *Store) Replace(images []Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(images) > s.limit {
		images = images[:s.limit]
	}
	next := make([]Image, len(images))
	for i, img := range images {
		next[i] = img.clone()
	}
	s.images = next
}

// ReuseParams returns the parameters an image was generated with.
func (s *Store) ReuseParams(id string) (params.Generation, bool) {
	img, ok := s.Get(id)
	if !ok {
		return params.Generation{}, false
	}
	return img.Params, true
}

// Get returns a copy of the image with id.
func (s *Store) Get(id string) (Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, img := range s.images {
		if img.ID == id {
			return img.clone(), true
		}
	}
	return Image{}, false
}

// List returns every image, newest first. The slice is a copy but image
// data is shared with the store and must be treated as read-only.
func (s *Store) List() []Image {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.images) == 0 {
		return nil
	}
	out := make([]Image, len(s.images))
	copy(out, s.images)
	return out
}

// IDs returns the ids of every image, newest first.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.images))
	for i, img := range s.images {
		ids[i] = img.ID
	}
	return ids
}

// Len returns the number of images held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// Limit returns the configured capacity.
func (s *Store) Limit() int {
	return s.limit
}
