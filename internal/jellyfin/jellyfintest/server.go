// Package jellyfintest provides an in-process fake of the two Jellyfin
// endpoints jellylink uses.
package jellyfintest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// Server is a fake Jellyfin. Each successful login issues a new token
// ("tok-1", "tok-2", ...). Issued tokens stay valid until Revoke.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	items           []map[string]any
	authStatus      int
	searchStatus    int
	rejectAllTokens bool

	issued       int
	validTokens  map[string]bool
	authCalls    int
	searchCalls  int
	authBodies   []map[string]string
	authHeaders  []string
	searchTokens []string
	lastQuery    url.Values
}

func NewServer() *Server {
	s := &Server{validTokens: make(map[string]bool)}
	mux := http.NewServeMux()
	mux.HandleFunc("/Users/AuthenticateByName", s.handleAuth)
	mux.HandleFunc("/Items", s.handleItems)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authCalls++
	s.authHeaders = append(s.authHeaders, r.Header.Get("X-Emby-Authorization"))

	if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	raw, _ := io.ReadAll(r.Body)
	var body map[string]string
	if err := json.Unmarshal(raw, &body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	s.authBodies = append(s.authBodies, body)

	if s.authStatus != 0 && s.authStatus != http.StatusOK {
		http.Error(w, "auth rejected", s.authStatus)
		return
	}

	s.issued++
	token := fmt.Sprintf("tok-%d", s.issued)
	s.validTokens[token] = true
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"AccessToken": token,
		"User":        map[string]any{"Id": "user-1", "Name": body["Username"]},
		"ServerId":    "fake",
	})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchCalls++
	token := r.Header.Get("X-Emby-Token")
	s.searchTokens = append(s.searchTokens, token)
	s.lastQuery = r.URL.Query()

	if s.rejectAllTokens || !s.validTokens[token] {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.searchStatus != 0 && s.searchStatus != http.StatusOK {
		http.Error(w, "search failed", s.searchStatus)
		return
	}

	items := s.items
	if items == nil {
		items = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"Items":            items,
		"TotalRecordCount": len(items),
	})
}

// Revoke invalidates every token issued so far.
func (s *Server) Revoke() {
	s.mu.Lock()
	s.validTokens = make(map[string]bool)
	s.mu.Unlock()
}

// SetAuthStatus makes logins answer with status instead of 200.
func (s *Server) SetAuthStatus(status int) {
	s.mu.Lock()
	s.authStatus = status
	s.mu.Unlock()
}

// SetSearchStatus makes authorised searches answer with status instead of 200.
func (s *Server) SetSearchStatus(status int) {
	s.mu.Lock()
	s.searchStatus = status
	s.mu.Unlock()
}

// SetRejectAllTokens makes every search answer 401.
func (s *Server) SetRejectAllTokens(reject bool) {
	s.mu.Lock()
	s.rejectAllTokens = reject
	s.mu.Unlock()
}

func (s *Server) AuthCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls
}

func (s *Server) SearchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls
}

// AuthBodies returns the decoded login bodies in arrival order.
func (s *Server) AuthBodies() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.authBodies...)
}

func (s *Server) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authHeaders...)
}

// SearchTokens returns the X-Emby-Token of every search in arrival order.
func (s *Server) SearchTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searchTokens...)
}

func (s *Server) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// SetItems replaces the search result list.
func (s *Server) SetItems(items ...map[string]any) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}
