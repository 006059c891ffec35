package jellyfin

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jellylink/jellylink/internal/config"
	"github.com/jellylink/jellylink/internal/jellyfin"
	"github.com/jellylink/jellylink/internal/jellyfin/jellyfintest"
	"github.com/jellylink/jellylink/internal/logging"
	"github.com/jellylink/jellylink/internal/provider"
)

func newSource(t *testing.T, cfg config.JellyfinConfig) (*SourceManager, *jellyfin.MetadataStore) {
	t.Helper()
	store := jellyfin.NewMetadataStore()
	client := jellyfin.NewClient(cfg, logging.Discard())
	m := New(client, store, logging.Discard())
	t.Cleanup(m.Shutdown)
	return m, store
}

func serverConfig(baseURL string) config.JellyfinConfig {
	cfg := config.Default().Jellyfin
	cfg.BaseURL = baseURL
	cfg.Username = "bot"
	cfg.Password = "secret"
	return cfg
}

func load(t *testing.T, m *SourceManager, identifier string) provider.AudioItem {
	t.Helper()
	item, err := m.LoadItem(context.Background(), provider.AudioReference{Identifier: identifier})
	require.NoError(t, err)
	return item
}

func TestLoadItemEndToEnd(t *testing.T) {
	srv := jellyfintest.NewServer()
	defer srv.Close()
	srv.SetItems(map[string]any{
		"Id":           "abc",
		"Name":         "Moonlight Sonata",
		"AlbumArtist":  "Beethoven",
		"RunTimeTicks": int64(90000000000),
	})

	cfg := serverConfig(srv.URL)
	cfg.AudioQuality = "MEDIUM"
	m, store := newSource(t, cfg)

	item := load(t, m, "jfsearch:moonlight sonata")
	require.NotNil(t, item)

	track, ok := item.(*Track)
	require.True(t, ok)
	info := track.Info()

	wantURL := srv.URL + "/Audio/abc/stream?audioBitRate=192000&audioCodec=mp3&api_key=tok-1"
	assert.Equal(t, provider.TrackInfo{
		Title:      "Moonlight Sonata",
		Author:     "Beethoven",
		Length:     9_000_000,
		Identifier: "abc",
		IsStream:   false,
		URI:        wantURL,
		ArtworkURL: srv.URL + "/Items/abc/Images/Primary",
	}, info)
	assert.Equal(t, "moonlight sonata", srv.LastQuery().Get("SearchTerm"))

	stored, ok := store.Get(wantURL)
	require.True(t, ok)
	assert.Equal(t, "abc", stored.ID)
	assert.Equal(t, wantURL, track.StreamInfo().URL)
	assert.Equal(t, "jellyfin", track.SourceName())
}

func TestLoadItemPrefixIsCaseInsensitive(t *testing.T) {
	srv := jellyfintest.NewServer()
	defer srv.Close()
	srv.SetItems(map[string]any{"Id": "abc"})

	m, _ := newSource(t, serverConfig(srv.URL))

	item := load(t, m, "JFSearch:   spaced out  ")
	require.NotNil(t, item)
	assert.Equal(t, "spaced out", srv.LastQuery().Get("SearchTerm"))
}

func TestLoadItemIgnoresForeignIdentifiers(t *testing.T) {
	srv := jellyfintest.NewServer()
	defer srv.Close()
	srv.SetItems(map[string]any{"Id": "abc"})

	m, _ := newSource(t, serverConfig(srv.URL))

	for _, id := range []string{"ytsearch:moonlight", "https://example.com/a.mp3", "jfsearch", "", "jf:moonlight"} {
		assert.Nil(t, load(t, m, id), id)
	}
	assert.Equal(t, 0, srv.AuthCalls())
	assert.Equal(t, 0, srv.SearchCalls())
}

func TestLoadItemEmptyQuery(t *testing.T) {
	srv := jellyfintest.NewServer()
	defer srv.Close()

	m, _ := newSource(t, serverConfig(srv.URL))

	assert.Nil(t, load(t, m, "jfsearch:   "))
	assert.Equal(t, 0, srv.AuthCalls())
}

func TestLoadItemDeclinesWithoutCredentials(t *testing.T) {
	srv := jellyfintest.NewServer()
	defer srv.Close()

	cfg := serverConfig(srv.URL)
	cfg.Password = ""
	m, _ := newSource(t, cfg)

	assert.Nil(t, load(t, m, "jfsearch:anything"))
	assert.Equal(t, 0, srv.AuthCalls())
}

func TestLoadItemNoMatch(t *testing.T) {
	srv := jellyfintest.NewServer()
	defer srv.Close()

	m, store := newSource(t, serverConfig(srv.URL))

	assert.Nil(t, load(t, m, "jfsearch:nothing here"))
	assert.Equal(t, 1, srv.SearchCalls())
	assert.Equal(t, 0, store.Len())
}

func TestLoadItemUnknownFields(t *testing.T) {
	srv := jellyfintest.NewServer()
	defer srv.Close()
	srv.SetItems(map[string]any{"Id": "xyz", "ImageTags": map[string]any{"Primary": "t1"}})

	m, _ := newSource(t, serverConfig(srv.URL))

	item := load(t, m, "jfsearch:xyz")
	require.NotNil(t, item)
	info := item.Info()
	assert.Equal(t, "Unknown", info.Title)
	assert.Equal(t, "Unknown", info.Author)
	assert.Equal(t, provider.UnknownLength, info.Length)
	assert.Equal(t, srv.URL+"/Audio/xyz/stream?static=true&api_key=tok-1", info.URI)
	assert.Equal(t, srv.URL+"/Items/xyz/Images/Primary?tag=t1", info.ArtworkURL)
}

func TestEncodeDecodeTrack(t *testing.T) {
	m, _ := newSource(t, serverConfig("http://jf"))
	info := provider.TrackInfo{Title: "T", Author: "A", Length: 1000, Identifier: "abc", URI: "http://jf/Audio/abc/stream?static=true&api_key=k"}
	track := newTrack(info, m)

	assert.True(t, m.IsTrackEncodable(track))

	var buf bytes.Buffer
	require.NoError(t, m.EncodeTrack(track, &buf))
	assert.Zero(t, buf.Len())

	decoded, err := m.DecodeTrack(info, &buf)
	require.NoError(t, err)
	assert.Equal(t, info, decoded.Info())

	clone := decoded.MakeShallowClone()
	assert.Equal(t, info, clone.Info())
	assert.NotSame(t, decoded, clone)
}

type foreignTrack struct{ provider.AudioTrack }

func (foreignTrack) SourceName() string { return "youtube" }

func TestEncodeForeignTrack(t *testing.T) {
	m, _ := newSource(t, serverConfig("http://jf"))
	err := m.EncodeTrack(foreignTrack{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, provider.ErrForeignTrack)
}

type countingClient struct {
	Client
	closes int
}

func (c *countingClient) Close() error {
	c.closes++
	return nil
}

func TestShutdownClosesClientOnce(t *testing.T) {
	client := &countingClient{}
	m := New(client, jellyfin.NewMetadataStore(), logging.Discard())

	m.Shutdown()
	m.Shutdown()
	assert.Equal(t, 1, client.closes)
}

func TestHandles(t *testing.T) {
	assert.True(t, Handles("jfsearch:x"))
	assert.True(t, Handles("JFSEARCH:"))
	assert.False(t, Handles("jfsearc"))
	assert.False(t, Handles(" jfsearch:x"))
}
