package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// appAuth mints the GitHub App credentials: a short-lived RS256 JWT signed
// with the App private key, exchanged for per-installation access tokens.
type appAuth struct {
	appID int64
	key   *rsa.PrivateKey
}

func newAppAuth(appID int64, privateKeyPath string) (*appAuth, error) {
	pem, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read app private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}
	return &appAuth{appID: appID, key: key}, nil
}

// appJWT returns a signed App JWT. The issued-at claim is backdated 60
// seconds to absorb clock drift between us and GitHub.
func (a *appAuth) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    fmt.Sprintf("%d", a.appID),
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}
	return signed, nil
}

type installationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// installationToken exchanges the App JWT for an installation access token.
func (a *appAuth) installationToken(ctx context.Context, httpc *http.Client, apiURL string, installationID int64) (string, error) {
	appJWT, err := a.appJWT()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", apiURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	res, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("request installation token: %w", err)
	}
	defer res.Body.Close() // nolint: errcheck

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", &UpstreamError{
			StatusCode: res.StatusCode,
			Method:     http.MethodPost,
			Path:       url,
			Message:    string(body),
		}
	}

	var tok installationToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decode installation token: %w", err)
	}
	return tok.Token, nil
}
