package jellyfin

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataStore(t *testing.T) {
	s := NewMetadataStore()

	_, ok := s.Get("http://jf/Audio/missing/stream")
	assert.False(t, ok)

	first := TrackMetadata{ID: "a", Title: "First"}
	s.Put("u", first)
	got, ok := s.Get("u")
	require.True(t, ok)
	assert.Equal(t, first, got)

	second := TrackMetadata{ID: "a", Title: "Second"}
	s.Put("u", second)
	got, ok = s.Get("u")
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.Equal(t, 1, s.Len())
}

func TestMetadataStoreConcurrent(t *testing.T) {
	s := NewMetadataStore()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("w%d-%d", w, i)
				s.Put(key, TrackMetadata{ID: key})
				_, _ = s.Get(fmt.Sprintf("w%d-%d", (w+1)%8, i))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 8*200, s.Len())
	got, ok := s.Get("w3-150")
	require.True(t, ok)
	assert.Equal(t, "w3-150", got.ID)
}
