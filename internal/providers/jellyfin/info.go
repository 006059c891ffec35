package jellyfin

import (
	"strings"

	"github.com/jellylink/jellylink/internal/jellyfin"
	"github.com/jellylink/jellylink/internal/provider"
)

// PluginInfo attaches the stored Jellyfin metadata to tracks the host
// serialises.
type PluginInfo struct {
	store   *jellyfin.MetadataStore
	baseURL string
}

func NewPluginInfo(store *jellyfin.MetadataStore, baseURL string) *PluginInfo {
	return &PluginInfo{store: store, baseURL: strings.TrimRight(baseURL, "/")}
}

// Len reports how many resolved tracks are held for lookup.
func (p *PluginInfo) Len() int { return p.store.Len() }

// ModifyAudioTrackPluginInfo returns nil for tracks that did not come from
// this server or were never resolved here.
func (p *PluginInfo) ModifyAudioTrackPluginInfo(track provider.AudioTrack) map[string]any {
	if track == nil {
		return nil
	}
	return p.Lookup(track.Info().URI)
}

// Lookup returns the descriptive fields stored for a playback URL.
func (p *PluginInfo) Lookup(uri string) map[string]any {
	if uri == "" || p.baseURL == "" || !strings.HasPrefix(uri, p.baseURL) {
		return nil
	}
	meta, ok := p.store.Get(uri)
	if !ok {
		return nil
	}

	fields := map[string]any{"jellyfinId": meta.ID}
	if meta.Title != "" {
		fields["jellyfinTitle"] = meta.Title
	}
	if meta.Artist != "" {
		fields["jellyfinArtist"] = meta.Artist
	}
	if meta.Album != "" {
		fields["jellyfinAlbum"] = meta.Album
	}
	if meta.LengthMs != nil {
		fields["jellyfinLengthMs"] = *meta.LengthMs
	}
	if meta.ArtworkURL != "" {
		fields["jellyfinArtworkUrl"] = meta.ArtworkURL
	}
	return fields
}
