package jellyfin

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// ticksPerMillisecond converts Jellyfin RunTimeTicks (100ns units) to ms.
const ticksPerMillisecond = 10_000

// Parser turns Jellyfin JSON payloads into AuthResult and TrackMetadata.
// It holds no state besides its logger.
type Parser struct {
	log *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{log: logger}
}

// ParseAuthResponse extracts AccessToken and User.Id from an
// AuthenticateByName body. Both must be JSON strings.
func (p *Parser) ParseAuthResponse(body []byte) (AuthResult, bool) {
	root, err := decodeObject(body)
	if err != nil {
		p.log.Error("jellyfin auth response is not a JSON object", slog.Any("err", err))
		return AuthResult{}, false
	}

	token, tokenOK := stringField(root, "AccessToken")
	userID, userOK := stringField(objectField(root, "User"), "Id")
	if !tokenOK || !userOK {
		p.log.Error("jellyfin auth response missing AccessToken or User.Id")
		return AuthResult{}, false
	}
	return AuthResult{AccessToken: token, UserID: userID}, true
}

// ParseFirstAudioItem converts the first element of the Items array. Later
// items are ignored. baseURL is only used to build the artwork URL.
func (p *Parser) ParseFirstAudioItem(body []byte, baseURL string) (*TrackMetadata, bool) {
	root, err := decodeObject(body)
	if err != nil {
		p.log.Error("jellyfin search response is not a JSON object", slog.Any("err", err))
		return nil, false
	}

	items, _ := root["Items"].([]any)
	if len(items) == 0 {
		return nil, false
	}
	item, ok := items[0].(map[string]any)
	if !ok {
		return nil, false
	}
	return p.parseAudioItem(item, baseURL)
}

func (p *Parser) parseAudioItem(item map[string]any, baseURL string) (*TrackMetadata, bool) {
	id, ok := scalarField(item, "Id")
	if !ok {
		return nil, false
	}

	m := &TrackMetadata{ID: id}
	m.Title, _ = scalarField(item, "Name")
	m.Album, _ = scalarField(item, "Album")

	if artist, ok := scalarField(item, "AlbumArtist"); ok {
		m.Artist = artist
	} else if artists, _ := item["Artists"].([]any); len(artists) > 0 {
		m.Artist, _ = scalarString(artists[0])
	}

	if ticks, ok := int64Field(item, "RunTimeTicks"); ok {
		ms := ticks / ticksPerMillisecond
		m.LengthMs = &ms
	}

	imageTag, hasTag := scalarField(objectField(item, "ImageTags"), "Primary")
	m.ArtworkURL = strings.TrimRight(baseURL, "/") + "/Items/" + id + "/Images/Primary"
	if hasTag {
		m.ArtworkURL += "?tag=" + imageTag
	}
	p.log.Debug("jellyfin artwork url", slog.String("url", m.ArtworkURL), slog.String("tag", imageTag))

	return m, true
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return root, nil
}

func objectField(m map[string]any, key string) map[string]any {
	obj, _ := m[key].(map[string]any)
	return obj
}

func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// scalarField reads any JSON primitive as text. Item fields are lenient
// about type; auth fields use stringField.
func scalarField(m map[string]any, key string) (string, bool) {
	return scalarString(m[key])
}

func scalarString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func int64Field(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
