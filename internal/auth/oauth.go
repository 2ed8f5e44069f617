package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Error codes from the token endpoint that mean the cached grant is no
// longer usable and the user has to sign in again.
var interactionRequiredCodes = map[string]bool{
	"invalid_grant":        true,
	"interaction_required": true,
	"login_required":       true,
	"consent_required":     true,
}

var errStateMismatch = errors.New("sign-in redirect state mismatch")

// OAuthBroker is a Broker speaking the OAuth 2.0 authorization-code flow to
// an Azure AD style authority ({authority}/{tenant}/oauth2/...).
//
// Silent requests use the cached grant, refreshing it when expired.
// Interactive requests run a loopback redirect server and also accept a
// pasted code through the Prompter.
type OAuthBroker struct {
	Tenant       string
	ClientSecret string
	// RedirectPort is the loopback port; 0 picks a free one.
	RedirectPort int
	Cache        TokenCache
	Prompter     Prompter
	// OpenBrowser, if set, is called with the sign-in URL. Errors are only
	// logged since the Prompter shows the URL anyway.
	OpenBrowser func(string) error
	// HTTPClient is used for token endpoint calls when non-nil.
	HTTPClient *http.Client
	Log        *logrus.Entry
}

func (b *OAuthBroker) FindAccountProvider(ctx context.Context, authority string) (*Provider, error) {
	u, err := url.Parse(strings.TrimRight(authority, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse authority: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("authority %q is not an absolute http(s) URL", authority)
	}
	tenant := b.Tenant
	if tenant == "" {
		tenant = "common"
	}
	base := u.String() + "/" + url.PathEscape(tenant) + "/oauth2"
	return &Provider{
		Authority: u.String(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/authorize",
			TokenURL:  base + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

func (b *OAuthBroker) GetTokenSilently(ctx context.Context, req TokenRequest) TokenResult {
	if req.Provider == nil {
		return TokenResult{Status: StatusProviderError, Err: errors.New("no account provider")}
	}
	log := b.logger()

	tok, err := b.Cache.Load()
	if errors.Is(err, ErrTokenNotCached) {
		return TokenResult{Status: StatusUserInteractionRequired, Err: err}
	}
	if err != nil {
		log.WithError(err).Warn("unreadable token cache, clearing")
		_ = b.Cache.Clear()
		return TokenResult{Status: StatusUserInteractionRequired, Err: err}
	}
	if tok.Valid() {
		return success(tok)
	}
	if tok.RefreshToken == "" {
		return TokenResult{Status: StatusUserInteractionRequired, Err: errors.New("cached token expired without refresh token")}
	}

	fresh, err := b.oauthConfig(req, "").TokenSource(b.httpContext(ctx), tok).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && interactionRequiredCodes[re.ErrorCode] {
			log.WithField("code", re.ErrorCode).Info("refresh token rejected")
			_ = b.Cache.Clear()
			return TokenResult{Status: StatusUserInteractionRequired, Err: err}
		}
		return TokenResult{Status: StatusProviderError, Err: fmt.Errorf("refresh token: %w", err)}
	}
	if err := b.Cache.Save(fresh); err != nil {
		log.WithError(err).Warn("could not cache refreshed token")
	}
	return success(fresh)
}

type callbackResult struct {
	code   string
	err    error
	denied bool
}

func (b *OAuthBroker) RequestToken(ctx context.Context, req TokenRequest) TokenResult {
	if req.Provider == nil {
		return TokenResult{Status: StatusProviderError, Err: errors.New("no account provider")}
	}
	if b.Prompter == nil {
		return TokenResult{Status: StatusProviderError, Err: errors.New("interactive sign-in is not available")}
	}
	log := b.logger()

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", b.RedirectPort))
	if err != nil {
		return TokenResult{Status: StatusProviderError, Err: fmt.Errorf("listen on loopback: %w", err)}
	}
	port := ln.Addr().(*net.TCPAddr).Port
	redirect := fmt.Sprintf("http://127.0.0.1:%d/", port)

	state, err := randomState()
	if err != nil {
		ln.Close()
		return TokenResult{Status: StatusProviderError, Err: err}
	}
	verifier := oauth2.GenerateVerifier()
	cfg := b.oauthConfig(req, redirect)
	resource := req.Properties[PropResource]

	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam("resource", resource))
	}
	if req.Prompt == PromptForceAuthentication {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "login"))
	}
	authURL := cfg.AuthCodeURL(state, opts...)

	resCh := make(chan callbackResult, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           callbackHandler(state, resCh),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	b.Prompter.ShowAuthURL(authURL)
	if b.OpenBrowser != nil {
		if err := b.OpenBrowser(authURL); err != nil {
			log.WithError(err).Debug("could not open browser")
		}
	}
	log.WithField("redirect", redirect).Info("waiting for sign-in")

	// Wait for the loopback redirect, manual paste, or cancellation.
	var code string
	select {
	case <-ctx.Done():
		return TokenResult{Status: StatusUserCancel, Err: ctx.Err()}
	case r := <-resCh:
		if r.err != nil {
			status := StatusProviderError
			if r.denied {
				status = StatusUserCancel
			}
			return TokenResult{Status: status, Err: r.err}
		}
		code = r.code
	case input, ok := <-b.Prompter.Pasted():
		if !ok {
			return TokenResult{Status: StatusUserCancel, Err: errors.New("sign-in prompt closed")}
		}
		code, err = codeFromInput(input, state)
		if err != nil {
			return TokenResult{Status: StatusProviderError, Err: err}
		}
	}

	exchangeOpts := []oauth2.AuthCodeOption{oauth2.VerifierOption(verifier)}
	if resource != "" {
		exchangeOpts = append(exchangeOpts, oauth2.SetAuthURLParam("resource", resource))
	}
	tok, err := cfg.Exchange(b.httpContext(ctx), code, exchangeOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return TokenResult{Status: StatusUserCancel, Err: ctx.Err()}
		}
		return TokenResult{Status: StatusProviderError, Err: fmt.Errorf("token exchange: %w", err)}
	}
	if err := b.Cache.Save(tok); err != nil {
		log.WithError(err).Warn("could not cache token")
	}
	return success(tok)
}

func callbackHandler(state string, resCh chan<- callbackResult) http.Handler {
	send := func(r callbackResult) {
		select {
		case resCh <- r:
		default:
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Sign-in failed: "+e, http.StatusBadRequest)
			send(callbackResult{
				err:    fmt.Errorf("authorization failed: %s: %s", e, q.Get("error_description")),
				denied: e == "access_denied",
			})
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			send(callbackResult{err: errStateMismatch})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Sign-in complete. You can close this window.")
		send(callbackResult{code: code})
	})
}

// codeFromInput accepts either a bare authorization code or the full
// redirect URL the browser ended up on.
func codeFromInput(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if s := q.Get("state"); s != "" && s != state {
		return "", errStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}

func (b *OAuthBroker) oauthConfig(req TokenRequest, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: b.ClientSecret,
		Endpoint:     req.Provider.Endpoint,
		RedirectURL:  redirect,
	}
}

func (b *OAuthBroker) httpContext(ctx context.Context) context.Context {
	if b.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
	}
	return ctx
}

func (b *OAuthBroker) logger() *logrus.Entry {
	if b.Log != nil {
		return b.Log
	}
	return logrus.NewEntry(logrus.StandardLogger()).WithField("pkg", "auth")
}

func success(tok *oauth2.Token) TokenResult {
	return TokenResult{Status: StatusSuccess, Tokens: []string{tok.AccessToken}}
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
