package oauthsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/user"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider signs users in with their Google account, through the authorization code flow.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// googleUserInfo is the OpenID Connect userinfo payload returned by Google.
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func NewGoogleProvider(conf *core.Config) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (g *GoogleProvider) Name() string {
	return "google"
}

// AuthCodeURL returns the URL of Google's consent page.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Profile exchanges the authorization code and fetches the identity of the Google user.
func (g *GoogleProvider) Profile(ctx context.Context, code string) (user.ExternalProfile, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return user.ExternalProfile{}, errors.Wrap(err, "exchanging code")
	}

	resp, err := g.config.Client(ctx, token).Get(g.userInfoURL)
	if err != nil {
		return user.ExternalProfile{}, errors.Wrap(err, "getting google user info")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return user.ExternalProfile{}, errors.Wrap(err, "reading google user info")
	}
	if resp.StatusCode != http.StatusOK {
		return user.ExternalProfile{}, fmt.Errorf("google user info: status %d: %s", resp.StatusCode, body)
	}

	var info googleUserInfo
	if err = json.Unmarshal(body, &info); err != nil {
		return user.ExternalProfile{}, errors.Wrap(err, "decoding google user info")
	}
	return user.ExternalProfile{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}
