// Package jellyfin talks to a Jellyfin server: it logs in, keeps the access
// token fresh, searches the audio catalog and builds playback URLs.
package jellyfin

// TrackMetadata is what the resolver knows about a single Jellyfin audio
// item. Empty strings mean the server did not send the field.
type TrackMetadata struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	LengthMs   *int64
	ArtworkURL string
}

// AuthResult is the useful part of an AuthenticateByName response.
type AuthResult struct {
	AccessToken string
	UserID      string
}
