package jellyfin

import "github.com/jellylink/jellylink/internal/provider"

// Track is a resolved Jellyfin item. The host streams Info().URI and
// detects the container itself.
type Track struct {
	info   provider.TrackInfo
	source *SourceManager
}

func newTrack(info provider.TrackInfo, source *SourceManager) *Track {
	return &Track{info: info, source: source}
}

func (t *Track) Info() provider.TrackInfo { return t.info }
func (t *Track) SourceName() string       { return sourceName }

func (t *Track) StreamInfo() provider.StreamInfo {
	return provider.StreamInfo{URL: t.info.URI}
}

func (t *Track) MakeShallowClone() provider.AudioTrack {
	return newTrack(t.info, t.source)
}
