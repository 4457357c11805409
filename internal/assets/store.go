// Package assets exports the binary resources referenced by chapters into a
// shared, content-addressed directory and rewrites image references to it.
package assets

import (
	"sort"
	"sync"
)

// Asset is one physical file under the assets directory.
type Asset struct {
	ContentID string `json:"content_id"`
	Path      string `json:"path"` // relative to the output root, slash separated
	MIMEType  string `json:"mime_type"`
	Size      int64  `json:"size"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Chapters  []int  `json:"chapters"`
}

// Missing records a resource that could not be exported.
type Missing struct {
	ResourceID  string `json:"resource_id"`
	Placeholder string `json:"placeholder"`
	Chapter     int    `json:"chapter"`
	Reason      string `json:"reason"`
}

// Store is the run-scoped map from content hash to exported asset. It is
// the only state shared between concurrently processed chapters.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*Asset
	missing []Missing
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Asset)}
}

// LoadOrStore returns the asset registered for contentID or, on first
// encounter, registers the one returned by create. create runs at most once
// per content id while the store is locked, so a payload is written once no
// matter how many chapters reference it. loaded reports whether an existing
// asset was returned.
func (s *Store) LoadOrStore(contentID string, create func() (*Asset, error)) (a *Asset, loaded bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[contentID]; ok {
		return a, true, nil
	}
	a, err = create()
	if err != nil {
		return nil, false, err
	}
	s.byID[contentID] = a
	return a, false, nil
}

// Reference records that chapter ordinal uses the asset.
func (s *Store) Reference(contentID string, ordinal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[contentID]
	if !ok {
		return
	}
	i := sort.SearchInts(a.Chapters, ordinal)
	if i < len(a.Chapters) && a.Chapters[i] == ordinal {
		return
	}
	a.Chapters = append(a.Chapters, 0)
	copy(a.Chapters[i+1:], a.Chapters[i:])
	a.Chapters[i] = ordinal
}

// AddMissing records a resource replaced by a placeholder.
func (s *Store) AddMissing(m Missing) {
	s.mu.Lock()
	s.missing = append(s.missing, m)
	s.mu.Unlock()
}

// Assets returns copies of all exported assets ordered by path.
func (s *Store) Assets() []Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Asset, 0, len(s.byID))
	for _, a := range s.byID {
		c := *a
		c.Chapters = append([]int(nil), a.Chapters...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Missing returns the placeholder records ordered by chapter and resource id.
func (s *Store) Missing() []Missing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Missing(nil), s.missing...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chapter != out[j].Chapter {
			return out[i].Chapter < out[j].Chapter
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	return out
}

// Map returns content id to asset path for every exported asset.
func (s *Store) Map() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]string, len(s.byID))
	for id, a := range s.byID {
		m[id] = a.Path
	}
	return m
}

// Len returns the number of exported assets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
