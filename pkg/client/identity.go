package client

import (
	"context"
	"fmt"
	"net/http"
)

// IdentityClient talks to the external identity provider. Token issuance
// and format are entirely the provider's business; this service only
// exchanges a bearer token for a user id.
type IdentityClient struct {
	httpClient *HttpClient
}

func NewIdentityClient(baseURL string) *IdentityClient {
	return &IdentityClient{
		httpClient: NewHttpClient(baseURL),
	}
}

type resolveResponse struct {
	UserID string `json:"user_id"`
}

func (c *IdentityClient) ResolveUser(ctx context.Context, token string) (string, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/resolve", map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return "", fmt.Errorf("identity lookup failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var body resolveResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return "", fmt.Errorf("failed to decode identity response: %w", err)
	}
	if body.UserID == "" {
		return "", fmt.Errorf("identity provider returned empty user id")
	}

	return body.UserID, nil
}
