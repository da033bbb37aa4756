package slackapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type AuthTestResult struct {
	TeamID string
	UserID string
	BotID  string
	Team   string
	User   string
}

type authTestResponse struct {
	apiEnvelope
	TeamID string `json:"team_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	BotID  string `json:"bot_id,omitempty"`
	Team   string `json:"team,omitempty"`
	User   string `json:"user,omitempty"`
}

// AuthTest verifies the token and identifies the workspace and bot user.
func (c *Client) AuthTest(ctx context.Context) (AuthTestResult, error) {
	var out authTestResponse
	if err := c.callJSON(ctx, "auth.test", nil, &out); err != nil {
		return AuthTestResult{}, err
	}
	return AuthTestResult{
		TeamID: strings.TrimSpace(out.TeamID),
		UserID: strings.TrimSpace(out.UserID),
		BotID:  strings.TrimSpace(out.BotID),
		Team:   strings.TrimSpace(out.Team),
		User:   strings.TrimSpace(out.User),
	}, nil
}

type OAuthAccess struct {
	TeamID          string
	AuthedUserID    string
	AuthedUserToken string
	BotToken        string
}

type oauthAccessResponse struct {
	apiEnvelope
	AccessToken string `json:"access_token,omitempty"`
	Team        struct {
		ID string `json:"id,omitempty"`
	} `json:"team,omitempty"`
	AuthedUser struct {
		ID          string `json:"id,omitempty"`
		AccessToken string `json:"access_token,omitempty"`
	} `json:"authed_user,omitempty"`
}

// ExchangeOAuthCode trades an OAuth v2 authorization code for workspace and
// user tokens. oauth.v2.access authenticates with client credentials in the
// form body, not a bearer token, so any client instance may call it.
func (c *Client) ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (OAuthAccess, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	code = strings.TrimSpace(code)
	if clientID == "" || clientSecret == "" {
		return OAuthAccess{}, fmt.Errorf("slack client credentials are required")
	}
	if code == "" {
		return OAuthAccess{}, fmt.Errorf("authorization code is required")
	}
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("client_secret", clientSecret)
	params.Set("code", code)
	if redirectURI = strings.TrimSpace(redirectURI); redirectURI != "" {
		params.Set("redirect_uri", redirectURI)
	}
	var out oauthAccessResponse
	if err := c.callForm(ctx, "oauth.v2.access", params, &out); err != nil {
		return OAuthAccess{}, err
	}
	return OAuthAccess{
		TeamID:          strings.TrimSpace(out.Team.ID),
		AuthedUserID:    strings.TrimSpace(out.AuthedUser.ID),
		AuthedUserToken: strings.TrimSpace(out.AuthedUser.AccessToken),
		BotToken:        strings.TrimSpace(out.AccessToken),
	}, nil
}
