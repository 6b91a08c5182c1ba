// Package spotify resolves user display names through the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrMissingCredentials is returned when the client id or secret is empty.
var ErrMissingCredentials = errors.New("missing Spotify client id or secret")

// Credentials are the application's client-credentials grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client wraps the Spotify API client.
type Client struct {
	api *spotify.Client
}

// New creates a Client around an already authenticated API client.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// NewWithCredentials authenticates with the client-credentials flow, which
// is enough to read public profiles.
func NewWithCredentials(ctx context.Context, creds Credentials) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	conf := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return New(spotify.New(conf.Client(ctx))), nil
}

// DisplayName returns the public display name for username. It returns nil
// when the user does not exist or has no display name.
func (c *Client) DisplayName(ctx context.Context, username string) (*string, error) {
	user, err := c.api.GetUsersPublicProfile(ctx, spotify.ID(username))
	if err != nil {
		var apiErr spotify.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting public profile: %w", err)
	}

	if user.DisplayName == "" {
		return nil, nil
	}
	name := user.DisplayName
	return &name, nil
}
