package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	FullName      string
	FirstName     string
	LastName      string
	Picture       string
}

// IdentityVerifier exchanges a provider token for the identity it belongs to.
type IdentityVerifier interface {
	Verify(ctx context.Context, oauthToken string) (*ExternalIdentity, error)
}

type GoogleIdentityVerifier struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func NewGoogleIdentityVerifier(clientID, clientSecret, userInfoURL string, httpClient *http.Client) *GoogleIdentityVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleIdentityVerifier{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
	}
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

func (v *GoogleIdentityVerifier) Verify(ctx context.Context, oauthToken string) (*ExternalIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	client := v.oauthConfig.Client(ctx, &oauth2.Token{AccessToken: oauthToken, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch google userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("google userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode google userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("google userinfo missing subject")
	}
	first, last := info.GivenName, info.FamilyName
	if first == "" && info.Name != "" {
		parts := strings.SplitN(info.Name, " ", 2)
		first = parts[0]
		if len(parts) > 1 {
			last = parts[1]
		}
	}
	return &ExternalIdentity{
		Subject:       info.Sub,
		Email:         strings.TrimSpace(info.Email),
		EmailVerified: info.EmailVerified,
		FullName:      info.Name,
		FirstName:     first,
		LastName:      last,
		Picture:       info.Picture,
	}, nil
}
