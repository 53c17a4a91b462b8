package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the platform's OAuth token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access (client credentials) token.
// Tokens are refreshed one minute before they expire.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client

	once sync.Once
	src  oauth2.TokenSource
}

func (ts *TokenSource) init() {
	cfg := clientcredentials.Config{
		ClientID:     ts.ClientID,
		ClientSecret: ts.ClientSecret,
		TokenURL:     ts.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	// the oauth2 package reads its HTTP client from the context the source is built with
	base := context.Background()
	if ts.HTTPClient != nil {
		base = context.WithValue(base, oauth2.HTTPClient, ts.HTTPClient)
	}
	ts.src = oauth2.ReuseTokenSourceWithExpiry(nil, cfg.TokenSource(base), 60*time.Second)
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ts.once.Do(ts.init)
	tok, err := ts.src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
