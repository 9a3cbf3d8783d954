package whisker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"seattlehumus/internal/litter"
	logx "seattlehumus/pkg/logx"
)

// Client logs in to the Whisker cloud and opens sessions.
type Client struct {
	cfg   Config
	creds Credentials
	log   logx.Logger
}

func New(cfg Config, creds Credentials, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg.withDefaults(), creds: creds, log: log}
}

// Connect logs in and loads the account's robots.
func (c *Client) Connect(ctx context.Context) (litter.Session, error) {
	if strings.TrimSpace(c.creds.Username) == "" || c.creds.Password == "" {
		return nil, fmt.Errorf("%w: missing username or password", ErrAuth)
	}
	tok, err := c.initiateAuth(ctx, "USER_PASSWORD_AUTH", map[string]string{
		"USERNAME": c.creds.Username,
		"PASSWORD": c.creds.Password,
	})
	if err != nil {
		return nil, err
	}
	userID, err := userIDFromToken(tok.IDToken)
	if err != nil {
		return nil, err
	}

	s := &Session{
		client: c,
		userID: userID,
		tok:    tok,
		expiry: expiryOf(tok),
	}
	if err := s.loadRobots(ctx); err != nil {
		return nil, err
	}
	c.log.Info("whisker session opened", logx.Int("robots", len(s.robots)))
	return s, nil
}

// refresh exchanges a refresh token for new access/id tokens.
// Cognito does not rotate the refresh token here, so the old one is kept.
func (c *Client) refresh(ctx context.Context, old tokens) (tokens, error) {
	if old.RefreshToken == "" {
		return tokens{}, ErrUnauthorized
	}
	tok, err := c.initiateAuth(ctx, "REFRESH_TOKEN_AUTH", map[string]string{
		"REFRESH_TOKEN": old.RefreshToken,
	})
	if err != nil {
		return tokens{}, fmt.Errorf("%w: refresh: %v", ErrUnauthorized, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = old.RefreshToken
	}
	return tok, nil
}

func (c *Client) initiateAuth(ctx context.Context, flow string, params map[string]string) (tokens, error) {
	body, err := json.Marshal(map[string]any{
		"AuthFlow":       flow,
		"ClientId":       c.cfg.ClientID,
		"AuthParameters": params,
	})
	if err != nil {
		return tokens{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return tokens{}, err
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", "AWSCognitoIdentityProviderService.InitiateAuth")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return tokens{}, fmt.Errorf("whisker auth: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Type    string `json:"__type"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return tokens{}, fmt.Errorf("%w: %s %s", ErrAuth, e.Type, e.Message)
		}
		return tokens{}, fmt.Errorf("whisker auth: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		AuthenticationResult tokens `json:"AuthenticationResult"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return tokens{}, fmt.Errorf("whisker auth: decode: %w", err)
	}
	if out.AuthenticationResult.IDToken == "" {
		return tokens{}, fmt.Errorf("%w: no id token in response", ErrAuth)
	}
	return out.AuthenticationResult, nil
}

// userIDFromToken reads the "mid" claim of the Cognito id token.
// The signature is not checked: the token came straight from Cognito over TLS
// and is only used to address our own account.
func userIDFromToken(idToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("%w: parse id token: %v", ErrAuth, err)
	}
	mid, _ := claims["mid"].(string)
	if mid == "" {
		return "", fmt.Errorf("%w: id token has no user id", ErrAuth)
	}
	return mid, nil
}

func expiryOf(tok tokens) time.Time {
	if tok.ExpiresIn <= 0 {
		return time.Time{}
	}
	// Refresh a minute early.
	return time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
}
