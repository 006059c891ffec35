package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jellylink/jellylink/internal/config"
)

const (
	clientName    = "Jellylink"
	deviceName    = "Lavalink"
	clientVersion = "0.1.0"

	errorBodyPreview = 500
	debugBodyPreview = 2000
)

// Transcoding bitrates in bits per second.
const (
	bitrateHigh   = 320_000
	bitrateMedium = 192_000
	bitrateLow    = 128_000
	kbpsToBps     = 1000
)

var (
	errNoToken = errors.New("jellyfin: no access token")
	errClosed  = errors.New("jellyfin: client closed")
)

// credential is replaced as a whole, never edited in place.
type credential struct {
	accessToken string
	userID      string
	obtainedAt  time.Time
}

type authRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type response struct {
	status int
	body   []byte
}

// Client handles all HTTP communication with the Jellyfin server: login,
// token refresh and invalidation, searches with a single retry on 401, and
// playback URL construction. It is safe for concurrent use.
type Client struct {
	cfg       config.JellyfinConfig
	parser    *Parser
	log       *slog.Logger
	transport *http.Transport
	http      *http.Client

	cred  atomic.Pointer[credential]
	auth  singleflight.Group
	now   func() time.Time
	newID func() string

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewClient builds a Client for cfg. The Client owns its HTTP transport and
// releases it in Close.
func NewClient(cfg config.JellyfinConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		cfg:       cfg,
		parser:    NewParser(logger),
		log:       logger,
		transport: transport,
		http:      &http.Client{Transport: transport, Timeout: cfg.RequestTimeout()},
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// BaseURL returns the configured server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

// Token returns the current access token, or "" when there is none.
func (c *Client) Token() string {
	if cur := c.cred.Load(); cur != nil {
		return cur.accessToken
	}
	return ""
}

// UserID returns the id of the logged in user, or "" when there is none.
func (c *Client) UserID() string {
	if cur := c.cred.Load(); cur != nil {
		return cur.userID
	}
	return ""
}

// EnsureAuthenticated makes sure a valid access token is available,
// logging in if needed. It returns false without any network I/O when the
// base URL, username or password is blank.
func (c *Client) EnsureAuthenticated(ctx context.Context) bool {
	if cur := c.cred.Load(); cur != nil {
		if !c.expired(cur) {
			return true
		}
		c.log.Info("jellyfin access token expired, re-authenticating",
			slog.Int("refresh_minutes", c.cfg.TokenRefreshMinutes))
		c.dropCredential(cur)
	}

	if !c.cfg.HasCredentials() {
		return false
	}

	// The login is shared by every caller that arrives while it runs, so it
	// must not die with the first caller's context. Each caller still stops
	// waiting when its own context ends.
	ch := c.auth.DoChan("authenticate", func() (any, error) {
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RequestTimeout())
		defer cancel()
		return c.authenticate(loginCtx), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		c.log.Warn("gave up waiting for jellyfin login", slog.Any("err", ctx.Err()))
		return false
	}
}

// InvalidateToken drops the current credential so the next call logs in
// again.
func (c *Client) InvalidateToken() {
	c.log.Info("invalidating jellyfin access token")
	c.cred.Store(nil)
}

// dropCredential clears cur only if it is still the current credential, so
// a token stored by a concurrent login survives.
func (c *Client) dropCredential(cur *credential) bool {
	return c.cred.CompareAndSwap(cur, nil)
}

// IsTokenExpired reports whether the current token is older than the
// refresh interval. Always false when refresh is disabled.
func (c *Client) IsTokenExpired() bool {
	return c.expired(c.cred.Load())
}

func (c *Client) expired(cur *credential) bool {
	refresh := c.cfg.TokenRefreshMinutes
	if refresh <= 0 {
		return false
	}
	if cur == nil {
		return true
	}
	return c.now().After(cur.obtainedAt.Add(time.Duration(refresh) * time.Minute))
}

func (c *Client) authenticate(ctx context.Context) bool {
	if c.closed.Load() {
		c.log.Warn("jellyfin client is closed, not authenticating")
		return false
	}

	body, err := json.Marshal(authRequest{Username: c.cfg.Username, Pw: c.cfg.Password})
	if err != nil {
		c.log.Error("encode jellyfin auth request", slog.Any("err", err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/Users/AuthenticateByName", bytes.NewReader(body))
	if err != nil {
		c.log.Error("build jellyfin auth request", slog.Any("err", err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emby-Authorization", c.authorizationHeader())

	resp, err := c.do(req)
	if err != nil {
		c.log.Error("jellyfin auth request failed", slog.Any("err", err))
		return false
	}
	if !isSuccess(resp.status) {
		c.log.Error("jellyfin auth failed",
			slog.Int("status", resp.status),
			slog.String("body", preview(resp.body, errorBodyPreview)))
		return false
	}

	result, ok := c.parser.ParseAuthResponse(resp.body)
	if !ok {
		return false
	}

	c.cred.Store(&credential{
		accessToken: result.AccessToken,
		userID:      result.UserID,
		obtainedAt:  c.now(),
	})
	c.log.Info("authenticated with jellyfin", slog.String("user_id", result.UserID))
	return true
}

func (c *Client) authorizationHeader() string {
	return fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		clientName, deviceName, c.newID(), clientVersion)
}

// SearchFirstAudioItem searches the catalog for audio items matching query
// and returns the first hit. A 401 triggers one re-login and one retry.
func (c *Client) SearchFirstAudioItem(ctx context.Context, query string) (*TrackMetadata, bool) {
	reqURL := c.searchURL(query)

	resp, ok := c.getWithRetry(ctx, reqURL)
	if !ok {
		return nil, false
	}
	if !isSuccess(resp.status) {
		c.log.Error("jellyfin search failed",
			slog.Int("status", resp.status),
			slog.String("body", preview(resp.body, errorBodyPreview)))
		return nil, false
	}

	c.log.Debug("jellyfin search response", slog.String("body", preview(resp.body, debugBodyPreview)))
	return c.parser.ParseFirstAudioItem(resp.body, c.cfg.BaseURL)
}

func (c *Client) searchURL(query string) string {
	var b strings.Builder
	b.WriteString(c.BaseURL())
	b.WriteString("/Items?SearchTerm=")
	b.WriteString(url.QueryEscape(query))
	b.WriteString("&IncludeItemTypes=Audio&Recursive=true&Limit=")
	b.WriteString(strconv.Itoa(c.cfg.SearchLimit))
	b.WriteString("&Fields=Artists,AlbumArtist,MediaSources,ImageTags")
	return b.String()
}

// getWithRetry issues a GET and, on exactly one 401, invalidates the token,
// logs in again and retries once. Whatever the second attempt returns is
// final.
func (c *Client) getWithRetry(ctx context.Context, reqURL string) (response, bool) {
	resp, used, err := c.get(ctx, reqURL)
	if err != nil {
		c.log.Error("jellyfin request failed", slog.Any("err", err))
		return response{}, false
	}
	if resp.status != http.StatusUnauthorized {
		return resp, true
	}

	c.log.Warn("jellyfin returned 401, token may have been revoked, re-authenticating")
	if !c.dropCredential(used) {
		c.log.Debug("jellyfin token already replaced by a concurrent login")
	}
	if !c.EnsureAuthenticated(ctx) {
		c.log.Error("jellyfin re-authentication failed after 401")
		return response{}, false
	}

	resp, _, err = c.get(ctx, reqURL)
	if err != nil {
		c.log.Error("jellyfin retry request failed", slog.Any("err", err))
		return response{}, false
	}
	return resp, true
}

// get sends an authenticated GET and returns the credential it used.
func (c *Client) get(ctx context.Context, reqURL string) (response, *credential, error) {
	cur := c.cred.Load()
	if cur == nil || cur.accessToken == "" {
		return response{}, nil, errNoToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return response{}, cur, err
	}
	req.Header.Set("X-Emby-Token", cur.accessToken)
	resp, err := c.do(req)
	return resp, cur, err
}

func (c *Client) do(req *http.Request) (response, error) {
	if c.closed.Load() {
		return response{}, errClosed
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response body: %w", err)
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// BuildPlaybackURL returns the stream URL for itemID using the configured
// quality and codec. The current token is copied into the URL; later token
// changes do not affect URLs already handed out.
func (c *Client) BuildPlaybackURL(itemID string) string {
	base := c.BaseURL()
	token := c.Token()
	quality := strings.ToUpper(strings.TrimSpace(c.cfg.AudioQuality))

	if quality == "ORIGINAL" {
		return base + "/Audio/" + itemID + "/stream?static=true&api_key=" + token
	}

	codec := strings.TrimSpace(c.cfg.AudioCodec)
	if codec == "" {
		codec = "mp3"
	}
	return fmt.Sprintf("%s/Audio/%s/stream?audioBitRate=%d&audioCodec=%s&api_key=%s",
		base, itemID, bitrateFor(quality), codec, token)
}

func bitrateFor(quality string) int {
	switch quality {
	case "HIGH":
		return bitrateHigh
	case "MEDIUM":
		return bitrateMedium
	case "LOW":
		return bitrateLow
	}
	if kbps, err := strconv.Atoi(quality); err == nil {
		return kbps * kbpsToBps
	}
	return bitrateHigh
}

// Close releases pooled connections. It is safe to call more than once;
// requests made afterwards fail.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.transport.CloseIdleConnections()
		c.log.Debug("jellyfin client closed")
	})
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func preview(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return strings.ToValidUTF8(string(body), "")
}
