// Package auth provides the credential used for upstream GitHub calls.
// The process holds exactly one credential: either a static bearer token
// or a GitHub App installation token minted on demand.
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the bearer credential for one upstream call. An empty
// token with a nil error means the process is unconfigured; the call proceeds
// unauthenticated and fails upstream.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticTokenSource struct {
	token string
}

// Static returns a TokenSource that always yields the given token.
func Static(token string) TokenSource {
	return &staticTokenSource{token: token}
}

func (s *staticTokenSource) Token(_ context.Context) (string, error) {
	return s.token, nil
}

// AppTokenSource exchanges a GitHub App JWT for an installation token and
// caches it until shortly before expiry.
type AppTokenSource struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	apiBase        string
	httpClient     *http.Client

	mu    sync.Mutex
	token string
	expAt time.Time
}

func NewApp(appID, installationID int64, keyPath, apiBase string) (*AppTokenSource, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", keyPath)
	}

	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &AppTokenSource{
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		apiBase:        apiBase,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	pkcs8Key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

// SECURITY: JWT signed with RS256 per GitHub App spec.
// 10 min expiry; refreshed with 1 min safety buffer.
func (a *AppTokenSource) makeJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(a.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(a.privateKey)
}

type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type installationInfo struct {
	ID int64 `json:"id"`
}

func (a *AppTokenSource) ensureInstallationID(ctx context.Context) error {
	if a.installationID != 0 {
		return nil
	}

	jwtStr, err := a.makeJWT()
	if err != nil {
		return fmt.Errorf("sign JWT: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBase+"/app/installations?per_page=100", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+jwtStr)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discover installation id: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discover installation id HTTP %d: %s", resp.StatusCode, body)
	}

	var installations []installationInfo
	if err := json.NewDecoder(resp.Body).Decode(&installations); err != nil {
		return fmt.Errorf("decode installations response: %w", err)
	}

	if len(installations) == 0 {
		return fmt.Errorf("no installation found for this GitHub App")
	}
	if len(installations) > 1 {
		return fmt.Errorf("multiple installations found (%d), set GITHUB_INSTALLATION_ID explicitly", len(installations))
	}

	a.installationID = installations[0].ID
	return nil
}

func (a *AppTokenSource) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureInstallationID(ctx); err != nil {
		return "", err
	}

	if a.token != "" && time.Now().Before(a.expAt.Add(-time.Minute)) {
		return a.token, nil
	}

	jwtStr, err := a.makeJWT()
	if err != nil {
		return "", fmt.Errorf("sign JWT: %w", err)
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.apiBase, a.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+jwtStr)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("installation token HTTP %d: %s", resp.StatusCode, body)
	}

	var tok installationTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	a.token = tok.Token
	a.expAt = tok.ExpiresAt
	return a.token, nil
}
