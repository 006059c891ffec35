// Package jellyfin adapts the Jellyfin client to the host's source contract.
// It resolves "jfsearch:<query>" identifiers and holds no business logic of
// its own.
package jellyfin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jellylink/jellylink/internal/jellyfin"
	"github.com/jellylink/jellylink/internal/provider"
)

const (
	sourceName   = "jellyfin"
	searchPrefix = "jfsearch:"
	unknown      = "Unknown"
)

// Client is the part of *jellyfin.Client the resolver needs.
type Client interface {
	EnsureAuthenticated(ctx context.Context) bool
	SearchFirstAudioItem(ctx context.Context, query string) (*jellyfin.TrackMetadata, bool)
	BuildPlaybackURL(itemID string) string
	Close() error
}

// SourceManager implements provider.SourceManager for Jellyfin searches.
type SourceManager struct {
	client Client
	store  *jellyfin.MetadataStore
	log    *slog.Logger

	shutdownOnce sync.Once
}

var _ provider.SourceManager = (*SourceManager)(nil)

func New(client Client, store *jellyfin.MetadataStore, logger *slog.Logger) *SourceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceManager{client: client, store: store, log: logger}
}

func (m *SourceManager) SourceName() string { return sourceName }

// Handles reports whether identifier carries the jfsearch: prefix.
func Handles(identifier string) bool {
	return len(identifier) >= len(searchPrefix) &&
		strings.EqualFold(identifier[:len(searchPrefix)], searchPrefix)
}

// LoadItem resolves a jfsearch: identifier to a track. Identifiers without
// the prefix, empty queries, auth problems and empty searches all yield
// (nil, nil) so the host can try other sources.
func (m *SourceManager) LoadItem(ctx context.Context, ref provider.AudioReference) (provider.AudioItem, error) {
	identifier := ref.Identifier
	if !Handles(identifier) {
		return nil, nil
	}
	m.log.Info("jellyfin source handling identifier", slog.String("identifier", identifier))

	query := strings.TrimSpace(identifier[len(searchPrefix):])
	if query == "" {
		return nil, nil
	}

	if !m.client.EnsureAuthenticated(ctx) {
		m.log.Error("jellyfin authentication failed, check base_url, username and password in the jellyfin config")
		return nil, nil
	}

	item, ok := m.client.SearchFirstAudioItem(ctx, query)
	if !ok {
		m.log.Warn("no jellyfin results", slog.String("query", query))
		return nil, nil
	}

	title := orUnknown(item.Title)
	artist := orUnknown(item.Artist)
	m.log.Info("jellyfin found track",
		slog.String("artist", artist),
		slog.String("title", title),
		slog.String("id", item.ID))

	playbackURL := m.client.BuildPlaybackURL(item.ID)
	m.store.Put(playbackURL, *item)

	length := provider.UnknownLength
	if item.LengthMs != nil {
		length = *item.LengthMs
	}

	return newTrack(provider.TrackInfo{
		Title:      title,
		Author:     artist,
		Length:     length,
		Identifier: item.ID,
		IsStream:   false,
		URI:        playbackURL,
		ArtworkURL: item.ArtworkURL,
	}, m), nil
}

func (m *SourceManager) IsTrackEncodable(track provider.AudioTrack) bool { return true }

// EncodeTrack writes nothing: TrackInfo already carries everything needed to
// rebuild a track.
func (m *SourceManager) EncodeTrack(track provider.AudioTrack, w io.Writer) error {
	if track.SourceName() != sourceName {
		return fmt.Errorf("encode %s track: %w", track.SourceName(), provider.ErrForeignTrack)
	}
	return nil
}

func (m *SourceManager) DecodeTrack(info provider.TrackInfo, r io.Reader) (provider.AudioTrack, error) {
	return newTrack(info, m), nil
}

// Shutdown releases the client's connections. Later calls do nothing.
func (m *SourceManager) Shutdown() {
	m.shutdownOnce.Do(func() {
		if err := m.client.Close(); err != nil {
			m.log.Warn("close jellyfin client", slog.Any("err", err))
		}
	})
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
