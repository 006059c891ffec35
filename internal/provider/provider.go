package provider

import (
	"context"
	"io"
	"math"
)

// UnknownLength is the TrackInfo.Length reported when the source does not
// know how long a track is.
const UnknownLength int64 = math.MaxInt64

// AudioReference is the raw identifier the host asks a source to load.
type AudioReference struct {
	Identifier string
	Title      string
}

// TrackInfo is the descriptor the host's playback pipeline consumes.
type TrackInfo struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	Identifier string `json:"identifier"`
	IsStream   bool   `json:"isStream"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
}

// StreamInfo tells the host where to fetch the track's bytes.
type StreamInfo struct {
	URL string
}

// AudioItem is anything a source can return from LoadItem. Only tracks are
// produced today.
type AudioItem interface {
	Info() TrackInfo
}

// AudioTrack is a playable item. Decoding the stream and detecting its
// container is the host's job.
type AudioTrack interface {
	AudioItem
	SourceName() string
	StreamInfo() StreamInfo
	MakeShallowClone() AudioTrack
}

// SourceManager is the capability set the host requires from a source.
type SourceManager interface {
	SourceName() string

	// LoadItem returns (nil, nil) when the reference is not handled or
	// could not be resolved.
	LoadItem(ctx context.Context, ref AudioReference) (AudioItem, error)

	IsTrackEncodable(track AudioTrack) bool
	EncodeTrack(track AudioTrack, w io.Writer) error
	DecodeTrack(info TrackInfo, r io.Reader) (AudioTrack, error)

	Shutdown()
}

// PluginInfoModifier lets a source attach extra fields to a track the host
// is about to serialise. A nil map means nothing to add.
type PluginInfoModifier interface {
	ModifyAudioTrackPluginInfo(track AudioTrack) map[string]any
}
