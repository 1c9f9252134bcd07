package servimed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// expirySkew is subtracted from a credential lifetime so tokens are not used
// right at the edge of expiry.
const expirySkew = 30 * time.Second

// AuthConfig holds the identity endpoint settings.
type AuthConfig struct {
	BaseURL       string
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	GrantType     string
	Scope         string
	Timeout       time.Duration
	CacheEnabled  bool
	CacheTTL      time.Duration
}

// Authenticator exchanges a username and password for a bearer credential
// using the OAuth2 password grant. Successful exchanges are cached per username
// until the credential or the cache entry expires.
type Authenticator struct {
	client *http.Client
	cfg    AuthConfig
	logger *slog.Logger
	cache  *credentialCache
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(cfg AuthConfig, client *http.Client, logger *slog.Logger) *Authenticator {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GrantType == "" {
		cfg.GrantType = "password"
	}

	a := &Authenticator{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "credential_verifier"),
		now:    time.Now,
	}
	if cfg.CacheEnabled && cfg.CacheTTL > 0 {
		a.cache = newCredentialCache(cfg.CacheTTL)
	}
	return a
}

// Authenticate returns a bearer credential for the given user. Every failure
// wraps domain.ErrAuthentication.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*domain.BearerCredential, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrAuthentication)
	}

	now := a.now()
	if cred, ok := a.cache.get(username, password, now); ok {
		a.logger.DebugContext(ctx, "using cached credential", "expires_at", cred.ExpiresAt)
		return cred, nil
	}

	cred, err := a.requestToken(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}

	a.cache.put(username, password, cred, now)
	a.logger.InfoContext(ctx, "credential obtained",
		"token_type", cred.TokenType,
		"expires_in", cred.ExpiresIn)

	return cred, nil
}

// Invalidate drops any cached credential for username, e.g. after an upstream
// rejected it.
func (a *Authenticator) Invalidate(username string) {
	a.cache.delete(username)
}

func (a *Authenticator) requestToken(ctx context.Context, username, password string) (*domain.BearerCredential, error) {
	ctx, cancel := callTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", a.cfg.GrantType)
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", a.cfg.Scope)
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + a.cfg.TokenEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := send(a.client, req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError("token endpoint", resp)
	}

	var cred domain.BearerCredential
	if err := json.Unmarshal(resp.Body, &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := cred.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	issued := a.now()
	cred.IssuedAt = issued
	cred.ExpiresAt = issued.Add(time.Duration(cred.ExpiresIn) * time.Second)
	if exp, ok := jwtExpiry(cred.AccessToken); ok && exp.Before(cred.ExpiresAt) {
		cred.ExpiresAt = exp
	}

	return &cred, nil
}

// jwtExpiry reads the exp claim of a JWT access token without verifying its
// signature. Opaque tokens report ok=false.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

type cacheEntry struct {
	passwordHash []byte
	credential   domain.BearerCredential
	storedAt     time.Time
}

// credentialCache keeps credentials keyed by username. Only a bcrypt hash of
// the password is retained; a hit requires the presented password to match.
// A nil cache is valid and always misses.
type credentialCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newCredentialCache(ttl time.Duration) *credentialCache {
	return &credentialCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *credentialCache) get(username, password string, now time.Time) (*domain.BearerCredential, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	entry, ok := c.entries[username]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	if now.Sub(entry.storedAt) >= c.ttl || entry.credential.Expired(now.Add(expirySkew)) {
		c.delete(username)
		return nil, false
	}

	if err := bcrypt.CompareHashAndPassword(entry.passwordHash, []byte(password)); err != nil {
		return nil, false
	}

	cred := entry.credential
	return &cred, true
}

func (c *credentialCache) put(username, password string, cred *domain.BearerCredential, now time.Time) {
	if c == nil || cred == nil {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		// Passwords bcrypt cannot hash are simply not cached.
		if !errors.Is(err, bcrypt.ErrPasswordTooLong) {
			slog.Default().Warn("failed to hash password for credential cache", "error", err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[username] = cacheEntry{passwordHash: hash, credential: *cred, storedAt: now}
}

func (c *credentialCache) delete(username string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, username)
}
