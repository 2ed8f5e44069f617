package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

// tokenServer fakes the authority's token endpoint.
type tokenServer struct {
	*httptest.Server
	mu    sync.Mutex
	forms []url.Values
}

func newTokenServer(t *testing.T) *tokenServer {
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/common/oauth2/token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		writeToken := func(access, refresh string) {
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  access,
				"token_type":    "Bearer",
				"expires_in":    3600,
				"refresh_token": refresh,
			})
		}
		switch r.PostForm.Get("grant_type") {
		case "refresh_token":
			switch r.PostForm.Get("refresh_token") {
			case "good":
				writeToken("refreshed", "good-2")
			case "revoked":
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token expired"}`))
			default:
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
			}
		case "authorization_code":
			if r.PostForm.Get("code") != "the-code" || r.PostForm.Get("code_verifier") == "" ||
				r.PostForm.Get("resource") != testResource || r.PostForm.Get("client_id") != "client-1" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_request"}`))
				return
			}
			writeToken("interactive", "fresh-refresh")
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unsupported_grant_type"}`))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) calls() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.forms)
}

// redirectPrompter plays the browser: it follows the sign-in URL straight
// back to the loopback redirect with the given query.
type redirectPrompter struct {
	t      *testing.T
	query  func(state string) url.Values
	pasted chan string
	seen   chan *url.URL
}

func (p *redirectPrompter) ShowAuthURL(authURL string) {
	u, err := url.Parse(authURL)
	if err != nil {
		p.t.Errorf("bad auth URL: %v", err)
		return
	}
	if p.seen != nil {
		p.seen <- u
	}
	if p.query == nil {
		return
	}
	q := u.Query()
	target := q.Get("redirect_uri") + "?" + p.query(q.Get("state")).Encode()
	go func() {
		resp, err := http.Get(target)
		if err == nil {
			resp.Body.Close()
		}
	}()
}

func (p *redirectPrompter) Pasted() <-chan string { return p.pasted }

func newTestBroker(ts *tokenServer, cache TokenCache, p Prompter) *OAuthBroker {
	return &OAuthBroker{
		Cache:      cache,
		Prompter:   p,
		HTTPClient: ts.Client(),
	}
}

func testRequest(t *testing.T, b *OAuthBroker, authority string, prompt PromptType) TokenRequest {
	t.Helper()
	p, err := b.FindAccountProvider(context.Background(), authority)
	if err != nil {
		t.Fatalf("FindAccountProvider: %v", err)
	}
	return TokenRequest{
		Provider: p,
		ClientID: "client-1",
		Prompt:   prompt,
		Properties: map[string]string{
			PropAuthority: authority,
			PropResource:  testResource,
		},
	}
}

func TestFindAccountProvider(t *testing.T) {
	b := &OAuthBroker{Tenant: "contoso"}
	p, err := b.FindAccountProvider(context.Background(), "https://login.windows.net/")
	if err != nil {
		t.Fatalf("FindAccountProvider: %v", err)
	}
	if p.Endpoint.AuthURL != "https://login.windows.net/contoso/oauth2/authorize" {
		t.Errorf("AuthURL = %q", p.Endpoint.AuthURL)
	}
	if p.Endpoint.TokenURL != "https://login.windows.net/contoso/oauth2/token" {
		t.Errorf("TokenURL = %q", p.Endpoint.TokenURL)
	}
	if _, err := b.FindAccountProvider(context.Background(), "login.windows.net"); err == nil {
		t.Error("relative authority should fail")
	}
}

func TestGetTokenSilently(t *testing.T) {
	ts := newTokenServer(t)
	tests := []struct {
		name       string
		cached     *oauth2.Token
		wantStatus Status
		wantToken  string
		wantCached string // access token left in the cache, "" for none
		wantCalls  int
	}{
		{
			name:       "nothing cached",
			wantStatus: StatusUserInteractionRequired,
		},
		{
			name:       "valid cached token",
			cached:     &oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)},
			wantStatus: StatusSuccess,
			wantToken:  "cached",
			wantCached: "cached",
		},
		{
			name:       "expired without refresh token",
			cached:     &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)},
			wantStatus: StatusUserInteractionRequired,
			wantCached: "old",
		},
		{
			name:       "expired and refreshed",
			cached:     &oauth2.Token{AccessToken: "old", RefreshToken: "good", Expiry: time.Now().Add(-time.Hour)},
			wantStatus: StatusSuccess,
			wantToken:  "refreshed",
			wantCached: "refreshed",
			wantCalls:  1,
		},
		{
			name:       "refresh revoked",
			cached:     &oauth2.Token{AccessToken: "old", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour)},
			wantStatus: StatusUserInteractionRequired,
			wantCalls:  1,
		},
		{
			name:       "token endpoint broken",
			cached:     &oauth2.Token{AccessToken: "old", RefreshToken: "other", Expiry: time.Now().Add(-time.Hour)},
			wantStatus: StatusProviderError,
			wantCached: "old",
			wantCalls:  1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := ts.calls()
			cache := NewFileCache(filepath.Join(t.TempDir(), "token.json"))
			if tc.cached != nil {
				if err := cache.Save(tc.cached); err != nil {
					t.Fatal(err)
				}
			}
			b := newTestBroker(ts, cache, nil)
			res := b.GetTokenSilently(context.Background(), testRequest(t, b, ts.URL, PromptDefault))
			if res.Status != tc.wantStatus {
				t.Fatalf("status = %v (err %v); want %v", res.Status, res.Err, tc.wantStatus)
			}
			if tc.wantToken != "" && (len(res.Tokens) == 0 || res.Tokens[0] != tc.wantToken) {
				t.Fatalf("tokens = %v; want %q", res.Tokens, tc.wantToken)
			}
			if got := ts.calls() - before; got != tc.wantCalls {
				t.Fatalf("token endpoint calls = %d; want %d", got, tc.wantCalls)
			}
			got, err := cache.Load()
			switch {
			case tc.wantCached == "":
				if !errors.Is(err, ErrTokenNotCached) {
					t.Fatalf("cache should be empty, got %v, %v", got, err)
				}
			case err != nil:
				t.Fatalf("cache Load: %v", err)
			case got.AccessToken != tc.wantCached:
				t.Fatalf("cached token = %q; want %q", got.AccessToken, tc.wantCached)
			}
		})
	}
}

func TestRequestToken_LoopbackRedirect(t *testing.T) {
	ts := newTokenServer(t)
	cache := NewKeyringCache(keyring.NewArrayKeyring(nil), "token")
	seen := make(chan *url.URL, 1)
	p := &redirectPrompter{
		t:    t,
		seen: seen,
		query: func(state string) url.Values {
			return url.Values{"code": {"the-code"}, "state": {state}}
		},
	}
	b := newTestBroker(ts, cache, p)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := b.RequestToken(ctx, testRequest(t, b, ts.URL, PromptForceAuthentication))
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, err = %v", res.Status, res.Err)
	}
	if res.Tokens[0] != "interactive" {
		t.Fatalf("token = %q", res.Tokens[0])
	}

	u := <-seen
	q := u.Query()
	if q.Get("prompt") != "login" || q.Get("resource") != testResource {
		t.Errorf("auth URL query = %v", q)
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		t.Errorf("auth URL missing PKCE: %v", q)
	}
	if q.Get("client_id") != "client-1" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}

	cached, err := cache.Load()
	if err != nil {
		t.Fatalf("cache Load: %v", err)
	}
	if cached.RefreshToken != "fresh-refresh" {
		t.Fatalf("cached refresh token = %q", cached.RefreshToken)
	}
}

func TestRequestToken_PastedRedirectURL(t *testing.T) {
	ts := newTokenServer(t)
	pasted := make(chan string, 1)
	seen := make(chan *url.URL, 1)
	p := &redirectPrompter{t: t, pasted: pasted, seen: seen}
	b := newTestBroker(ts, NewFileCache(filepath.Join(t.TempDir(), "token.json")), p)

	go func() {
		u := <-seen
		pasted <- "http://127.0.0.1:1/?code=the-code&state=" + url.QueryEscape(u.Query().Get("state"))
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := b.RequestToken(ctx, testRequest(t, b, ts.URL, PromptForceAuthentication))
	if res.Status != StatusSuccess || res.Tokens[0] != "interactive" {
		t.Fatalf("status = %v, tokens = %v, err = %v", res.Status, res.Tokens, res.Err)
	}
}

func TestRequestToken_StateMismatch(t *testing.T) {
	ts := newTokenServer(t)
	p := &redirectPrompter{
		t: t,
		query: func(string) url.Values {
			return url.Values{"code": {"the-code"}, "state": {"forged"}}
		},
	}
	b := newTestBroker(ts, NewFileCache(filepath.Join(t.TempDir(), "token.json")), p)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := b.RequestToken(ctx, testRequest(t, b, ts.URL, PromptForceAuthentication))
	if res.Status != StatusProviderError || !errors.Is(res.Err, errStateMismatch) {
		t.Fatalf("status = %v, err = %v; want state mismatch", res.Status, res.Err)
	}
	if ts.calls() != 0 {
		t.Fatalf("token endpoint should not be called")
	}
}

func TestRequestToken_AccessDeniedIsCancel(t *testing.T) {
	ts := newTokenServer(t)
	p := &redirectPrompter{
		t: t,
		query: func(string) url.Values {
			return url.Values{"error": {"access_denied"}}
		},
	}
	b := newTestBroker(ts, NewFileCache(filepath.Join(t.TempDir(), "token.json")), p)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := b.RequestToken(ctx, testRequest(t, b, ts.URL, PromptForceAuthentication))
	if res.Status != StatusUserCancel {
		t.Fatalf("status = %v, err = %v; want user cancel", res.Status, res.Err)
	}
}

func TestRequestToken_ContextCancelled(t *testing.T) {
	ts := newTokenServer(t)
	seen := make(chan *url.URL, 1)
	b := newTestBroker(ts, NewFileCache(filepath.Join(t.TempDir(), "token.json")), &redirectPrompter{t: t, seen: seen})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-seen
		cancel()
	}()
	res := b.RequestToken(ctx, testRequest(t, b, ts.URL, PromptForceAuthentication))
	if res.Status != StatusUserCancel || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("status = %v, err = %v; want cancel", res.Status, res.Err)
	}
}

func TestRequestToken_NoPrompter(t *testing.T) {
	ts := newTokenServer(t)
	b := newTestBroker(ts, NewFileCache(filepath.Join(t.TempDir(), "token.json")), nil)
	res := b.RequestToken(context.Background(), testRequest(t, b, ts.URL, PromptForceAuthentication))
	if res.Status != StatusProviderError {
		t.Fatalf("status = %v", res.Status)
	}
}

func TestCodeFromInput(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"abc", "abc", false},
		{"  abc  ", "abc", false},
		{"http://127.0.0.1:5000/?code=xyz&state=s1", "xyz", false},
		{"http://127.0.0.1:5000/?code=xyz", "xyz", false},
		{"http://127.0.0.1:5000/?code=xyz&state=other", "", true},
		{"https://example.com/?foo=bar", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := codeFromInput(tc.in, "s1")
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("codeFromInput(%q) = %q, %v; want %q, err=%v", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}
