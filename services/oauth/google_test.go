package oauthsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/acadamier/backend/core"
)

func newTestProvider(t *testing.T) *GoogleProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"sub":"1234","email":"ada@example.com","email_verified":true,"name":"Ada Lovelace"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGoogleProvider(&core.Config{Google: core.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3000/auth/google/callback",
	}})
	p.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	p.userInfoURL = srv.URL + "/userinfo"
	return p
}

func TestGoogleAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider(&core.Config{Google: core.GoogleConfig{ClientID: "client-id", RedirectURL: "http://cb"}})
	u, err := url.Parse(p.AuthCodeURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Equal(t, "xyz", u.Query().Get("state"))
	assert.Equal(t, "http://cb", u.Query().Get("redirect_uri"))
}

func TestGoogleProfile(t *testing.T) {
	p := newTestProvider(t)

	profile, err := p.Profile(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "1234", profile.Subject)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "Ada Lovelace", profile.Name)

	_, err = p.Profile(context.Background(), "bad-code")
	assert.ErrorContains(t, err, "exchanging code")
}
