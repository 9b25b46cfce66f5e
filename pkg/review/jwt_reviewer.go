package review

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ReviewerHeader is the fallback header consulted when no usable bearer token
// is present. Deployments behind an authenticating proxy set it per request.
const ReviewerHeader = "X-Reviewer"

// ReviewerExtractor resolves the reviewer identity of an HTTP request. An
// empty return means the request carries no identity.
type ReviewerExtractor func(r *http.Request) string

// JWTReviewerConfig configures the JWT-based reviewer extractor.
type JWTReviewerConfig struct {
	// IdentityClaim is the JWT claim path containing the reviewer's id.
	// Supports dot-notation for nested claims (e.g., "identity.username").
	// Default: "preferred_username", falling back to "sub".
	IdentityClaim string

	// PublicKeyPath is the path to the PEM-encoded RSA public key for RS256
	// verification. If empty, tokens are parsed but NOT verified (suitable
	// for dev/testing with trusted proxies).
	PublicKeyPath string

	// Issuer is the expected token issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected token audience (aud claim). If empty, audience is not validated.
	Audience string

	// Logger for debugging. If nil, uses slog.Default().
	Logger *slog.Logger
}

// HeaderReviewerExtractor reads the reviewer id from the ReviewerHeader.
func HeaderReviewerExtractor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ReviewerHeader))
}

// NewJWTReviewerExtractor returns a ReviewerExtractor that resolves the
// reviewer id from a JWT bearer token, falling back to the ReviewerHeader when
// the request carries no usable token. With a PublicKeyPath the token is
// RS256-verified; without one it is decoded unverified, which is only safe
// when an authenticating proxy ahead of the server already checked it.
func NewJWTReviewerExtractor(cfg JWTReviewerConfig) (ReviewerExtractor, error) {
	if cfg.IdentityClaim == "" {
		cfg.IdentityClaim = "preferred_username"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var publicKey *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		key, err := loadRSAPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		publicKey = key
		cfg.Logger.Info("reviewer tokens verified with RS256", "keyPath", cfg.PublicKeyPath)
	} else {
		cfg.Logger.Warn("no reviewer token key configured, tokens are decoded unverified")
	}

	return func(r *http.Request) string {
		token := extractBearerToken(r)
		if token == "" {
			return HeaderReviewerExtractor(r)
		}

		claims, err := parseJWTClaims(token, publicKey, cfg)
		if err != nil {
			cfg.Logger.Debug("reviewer token rejected, using header identity", "error", err)
			return HeaderReviewerExtractor(r)
		}

		if id := claimString(claims, cfg.IdentityClaim); id != "" {
			return id
		}
		return claimString(claims, "sub")
	}, nil
}

// loadRSAPublicKey reads a PEM-encoded RSA public key for token verification.
func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reviewer token key %s: %w", path, err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse reviewer token key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("reviewer token key is %T, want RSA", parsed)
	}
	return key, nil
}

// extractBearerToken pulls the token out of an "Authorization: Bearer"
// header, or returns "" when the header is absent or not a bearer scheme.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// parseJWTClaims decodes the token's claims, verifying the RS256 signature
// when a key is present and honoring the configured issuer/audience checks.
func parseJWTClaims(tokenString string, publicKey *rsa.PublicKey, cfg JWTReviewerConfig) (jwt.MapClaims, error) {
	var parserOpts []jwt.ParserOption
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}

	var token *jwt.Token
	var err error
	if publicKey != nil {
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return publicKey, nil
		}, parserOpts...)
	} else {
		parser := jwt.NewParser(parserOpts...)
		token, _, err = parser.ParseUnverified(tokenString, jwt.MapClaims{})
	}
	if err != nil {
		return nil, fmt.Errorf("parse reviewer token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	return claims, nil
}

// claimString walks a dot-notation claim path and returns its string value,
// or "" when the path is absent or not a string.
func claimString(claims jwt.MapClaims, claimPath string) string {
	parts := strings.Split(claimPath, ".")
	var current interface{} = map[string]interface{}(claims)

	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = m[part]
		if !ok {
			return ""
		}
	}

	if strVal, ok := current.(string); ok {
		return strings.TrimSpace(strVal)
	}
	return ""
}
