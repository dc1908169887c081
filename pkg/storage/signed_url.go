package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Claims is the content of a download token.
type Claims struct {
	Scope     string
	Subject   string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner issues and verifies expiring HMAC download tokens. The scope
// binds a token to one kind of artifact, so a receipt token cannot fetch a report.
type SignedURLSigner struct {
	scope  string
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer for scope. A non-positive ttl defaults to one day.
func NewSignedURLSigner(scope, secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{scope: scope, secret: []byte(secret), ttl: ttl}
}

// TTL is the lifetime of freshly issued tokens.
func (s *SignedURLSigner) TTL() time.Duration {
	return s.ttl
}

// Generate returns a token for subject (a job or payment id) pointing at relPath.
func (s *SignedURLSigner) Generate(subject, relPath string) (string, time.Time, error) {
	if subject == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("subject and path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedSubject := base64.RawURLEncoding.EncodeToString([]byte(subject))
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	signature := s.sign(encodedSubject, exp, encodedPath)
	return strings.Join([]string{encodedSubject, exp, encodedPath, signature}, "."), expiresAt, nil
}

// Parse verifies token and returns its claims. allowExpired skips the expiry
// check; cleanup uses it to locate files behind stale links.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Claims{}, fmt.Errorf("invalid token format")
	}
	encodedSubject, exp, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(encodedSubject, exp, encodedPath)), []byte(signature)) {
		return Claims{}, fmt.Errorf("invalid token signature")
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid token expiry")
	}
	subject, err := base64.RawURLEncoding.DecodeString(encodedSubject)
	if err != nil {
		return Claims{}, fmt.Errorf("decode subject: %w", err)
	}
	path, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return Claims{}, fmt.Errorf("decode path: %w", err)
	}

	claims := Claims{Scope: s.scope, Subject: string(subject), Path: string(path), ExpiresAt: time.Unix(expUnix, 0)}
	if !allowExpired && time.Now().After(claims.ExpiresAt) {
		return Claims{}, fmt.Errorf("token expired")
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(subject, exp, path string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(s.scope + "|" + subject + "|" + exp + "|" + path))
	return hex.EncodeToString(mac.Sum(nil))
}
