// Package auth verifies access tokens issued by the external OIDC provider.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"epatra/pkg/types"

	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

var (
	ErrNoToken      = errors.New("no access token")
	ErrInvalidToken = errors.New("invalid access token")
)

// KeySource returns the current signing keys for a JWKS URL. *jwk.Cache
// satisfies it.
type KeySource interface {
	Lookup(ctx context.Context, u string) (jwk.Set, error)
}

// NewJWKSCache registers url with a refreshing cache.
func NewJWKSCache(ctx context.Context, url string) (*jwk.Cache, error) {
	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jwk cache: %w", err)
	}

	if err := cache.Register(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to register %s with jwk cache: %w", url, err)
	}

	return cache, nil
}

type Verifier struct {
	keys       KeySource
	jwksURL    string
	issuer     string
	audience   string
	rolesClaim string

	cookieName string
	cookie     *securecookie.SecureCookie
}

func NewVerifier(keys KeySource, config *types.Config) *Verifier {
	hashKey, _ := base64.StdEncoding.DecodeString(config.CookieHashKey)
	blockKey, _ := base64.StdEncoding.DecodeString(config.CookieBlockKey)

	v := &Verifier{
		keys:       keys,
		jwksURL:    config.JWKSURL(),
		issuer:     config.OIDCIssuerURL,
		audience:   config.OIDCAudience,
		rolesClaim: config.OIDCRolesClaim,
		cookieName: config.CookieName,
	}
	if len(hashKey) > 0 {
		v.cookie = securecookie.New(hashKey, blockKey)
	}
	if v.rolesClaim == "" {
		v.rolesClaim = "roles"
	}

	return v
}

// TokenFromRequest prefers an Authorization bearer token and falls back to the
// encrypted session cookie written by the login flow.
func (v *Verifier) TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
		}
		return strings.TrimSpace(token), nil
	}

	if v.cookie == nil {
		return "", ErrNoToken
	}

	cookie, err := r.Cookie(v.cookieName)
	if err != nil {
		return "", ErrNoToken
	}

	var accessToken string
	if err := v.cookie.Decode(v.cookieName, cookie.Value, &accessToken); err != nil {
		return "", fmt.Errorf("%w: failed to decrypt session cookie", ErrInvalidToken)
	}

	return accessToken, nil
}

// EncodeSession produces the session cookie value for an access token.
func (v *Verifier) EncodeSession(accessToken string) (string, error) {
	if v.cookie == nil {
		return "", errors.New("session cookie keys are not configured")
	}
	return v.cookie.Encode(v.cookieName, accessToken)
}

func (v *Verifier) Verify(ctx context.Context, raw string) (*types.Principal, error) {
	set, err := v.keys.Lookup(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	options := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(30 * time.Second),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, ok := token.Subject()
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: no subject claim", ErrInvalidToken)
	}

	principal := &types.Principal{UserID: userID, Roles: []string{}}

	var email string
	if err := token.Get("email", &email); err == nil {
		principal.Email = email
	}

	principal.Roles = v.roles(token)

	return principal, nil
}

// roles reads the configured claim. A dotted claim such as
// realm_access.roles walks into nested objects.
func (v *Verifier) roles(token jwt.Token) []string {
	path := strings.Split(v.rolesClaim, ".")

	var value any
	if err := token.Get(path[0], &value); err != nil {
		return []string{}
	}

	for _, key := range path[1:] {
		obj, ok := value.(map[string]any)
		if !ok {
			return []string{}
		}
		value = obj[key]
	}

	return toStrings(value)
}

func toStrings(value any) []string {
	out := []string{}
	switch t := value.(type) {
	case string:
		for _, role := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, role)
		}
	case []string:
		out = append(out, t...)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
