package tcauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HMACTokenProvider derives tokens locally from the account secret. A token
// is the base64url claims string "appID:subject:expiresUnix" joined by a dot
// with the base64url HMAC-SHA256 of those claims under the secret key.
type HMACTokenProvider struct {
	// Now overrides the clock used for the expiry claim. Defaults to
	// time.Now.
	Now func() time.Time
}

// Token implements TokenProvider.
func (p HMACTokenProvider) Token(appID int64, secretKey, subject string, validity time.Duration) (string, error) {
	if secretKey == "" {
		return "", fmt.Errorf("tcauth: empty secret key")
	}
	if subject == "" {
		return "", fmt.Errorf("tcauth: empty subject")
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	claims := fmt.Sprintf("%d:%s:%d", appID, subject, now().Add(validity).Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(claims)) + "." + signClaims(secretKey, claims), nil
}

// ParseToken extracts the claims from a token without verifying its
// signature.
func ParseToken(tok string) (appID int64, subject string, expires time.Time, err error) {
	claims, _, err := splitToken(tok)
	if err != nil {
		return 0, "", time.Time{}, err
	}
	return parseClaims(claims)
}

// VerifyToken checks the token signature against the secret key and rejects
// expired tokens.
func VerifyToken(secretKey, tok string) error {
	claims, sig, err := splitToken(tok)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(signClaims(secretKey, claims)), []byte(sig)) {
		return fmt.Errorf("tcauth: token signature mismatch")
	}
	_, _, expires, err := parseClaims(claims)
	if err != nil {
		return err
	}
	if time.Now().After(expires) {
		return fmt.Errorf("tcauth: token expired at %s", expires.UTC().Format(time.RFC3339))
	}
	return nil
}

func signClaims(secretKey, claims string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(claims))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func splitToken(tok string) (claims, sig string, err error) {
	i := strings.LastIndexByte(tok, '.')
	if i < 0 {
		return "", "", fmt.Errorf("tcauth: malformed token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok[:i])
	if err != nil {
		return "", "", fmt.Errorf("tcauth: malformed token claims: %w", err)
	}
	return string(raw), tok[i+1:], nil
}

func parseClaims(claims string) (int64, string, time.Time, error) {
	// The subject may itself contain colons; the app id and expiry never do.
	first := strings.IndexByte(claims, ':')
	last := strings.LastIndexByte(claims, ':')
	if first < 0 || last <= first {
		return 0, "", time.Time{}, fmt.Errorf("tcauth: malformed token claims")
	}
	appID, err := strconv.ParseInt(claims[:first], 10, 64)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("tcauth: malformed app id claim: %w", err)
	}
	exp, err := strconv.ParseInt(claims[last+1:], 10, 64)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("tcauth: malformed expiry claim: %w", err)
	}
	return appID, claims[first+1 : last], time.Unix(exp, 0), nil
}
