// Package tcauth holds the account credential and the token derivation used
// by the recognition clients.
package tcauth

import (
	"sync"
	"time"
)

// TokenValidity is the fixed validity window for derived tokens.
const TokenValidity = 24 * time.Hour

// TokenProvider produces an authentication token from an application id, the
// account secret, and a subject identifier. Tokens must be deterministic for
// a given subject and point in time so that concurrent derivation is benign.
type TokenProvider interface {
	Token(appID int64, secretKey, subject string, validity time.Duration) (string, error)
}

// Credential is the immutable account identity plus a lazily derived
// authentication token. A Credential may be shared by any number of
// sessions; the token is derived at most once and reused for the
// credential's lifetime.
type Credential struct {
	AccountID int64
	AppID     int64

	secretKey string

	mu    sync.Mutex
	token string
}

// NewCredential builds a credential. The secret key is read-only after
// construction and is never transmitted.
func NewCredential(accountID, appID int64, secretKey string) *Credential {
	return &Credential{
		AccountID: accountID,
		AppID:     appID,
		secretKey: secretKey,
	}
}

// SetToken installs an externally issued token. Only the first explicit set
// takes effect; later calls and lazy derivation never overwrite it.
func (c *Credential) SetToken(tok string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		c.token = tok
	}
}

// Token returns the cached token, deriving it through p on first use. The
// derivation runs under the credential lock so concurrent sessions sharing
// the credential trigger exactly one provider call.
func (c *Credential) Token(p TokenProvider, subject string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	tok, err := p.Token(c.AppID, c.secretKey, subject, TokenValidity)
	if err != nil {
		return "", err
	}
	c.token = tok
	return tok, nil
}
