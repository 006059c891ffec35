package jellyfin

import "sync"

// MetadataStore maps playback URLs to the metadata they were resolved from.
// Entries live for the life of the process; playback URLs embed a token, so
// they go stale on their own.
type MetadataStore struct {
	mu   sync.RWMutex
	data map[string]TrackMetadata
}

func NewMetadataStore() *MetadataStore {
	return &MetadataStore{data: make(map[string]TrackMetadata)}
}

// Put stores m under url, replacing any previous entry.
func (s *MetadataStore) Put(url string, m TrackMetadata) {
	s.mu.Lock()
	s.data[url] = m
	s.mu.Unlock()
}

func (s *MetadataStore) Get(url string) (TrackMetadata, bool) {
	s.mu.RLock()
	m, ok := s.data[url]
	s.mu.RUnlock()
	return m, ok
}

func (s *MetadataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
