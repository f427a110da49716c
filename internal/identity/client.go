package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the identity API's email/password endpoints. Tokens are
// issued and verified remotely; this client never inspects them.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type sessionResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/accounts:signInWithPassword", email, password)
}

// SignUp creates a new account and returns its session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/accounts:signUp", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*User, error) {
	body, err := json.Marshal(credentialsRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	url := c.baseURL + path + "?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("auth error %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("auth error %d: %s", resp.StatusCode, string(data))
	}

	var session sessionResponse
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &User{
		ID:    session.LocalID,
		Email: session.Email,
		Token: session.IDToken,
	}, nil
}
