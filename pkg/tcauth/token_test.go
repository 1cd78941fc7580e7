package tcauth

import (
	"strings"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestHMACTokenProvider_Deterministic(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	prov := HMACTokenProvider{Now: fixedClock(at)}

	first, err := prov.Token(2017, "secret", "voice-1", TokenValidity)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	second, err := prov.Token(2017, "secret", "voice-1", TokenValidity)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if first != second {
		t.Errorf("tokens differ under a fixed clock: %q vs %q", first, second)
	}
}

func TestHMACTokenProvider_ParseRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	prov := HMACTokenProvider{Now: fixedClock(at)}

	tok, err := prov.Token(2017, "secret", "voice-1", TokenValidity)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	appID, subject, expires, err := ParseToken(tok)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if appID != 2017 {
		t.Errorf("appID = %d, want 2017", appID)
	}
	if subject != "voice-1" {
		t.Errorf("subject = %q, want %q", subject, "voice-1")
	}
	if want := at.Add(TokenValidity); !expires.Equal(want) {
		t.Errorf("expires = %v, want %v", expires, want)
	}
}

func TestVerifyToken(t *testing.T) {
	prov := HMACTokenProvider{}
	tok, err := prov.Token(2017, "secret", "voice-1", TokenValidity)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if err := VerifyToken("secret", tok); err != nil {
		t.Errorf("VerifyToken() with the right secret failed: %v", err)
	}
	if err := VerifyToken("other-secret", tok); err == nil {
		t.Error("VerifyToken() with the wrong secret succeeded")
	}
	if err := VerifyToken("secret", tok+"x"); err == nil {
		t.Error("VerifyToken() with a tampered signature succeeded")
	}
	if err := VerifyToken("secret", "not-a-token"); err == nil {
		t.Error("VerifyToken() with garbage succeeded")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	prov := HMACTokenProvider{Now: fixedClock(time.Now().Add(-2 * TokenValidity))}
	tok, err := prov.Token(2017, "secret", "voice-1", TokenValidity)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	err = VerifyToken("secret", tok)
	if err == nil {
		t.Fatal("VerifyToken() accepted an expired token")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("error = %v, want mention of expiry", err)
	}
}

func TestHMACTokenProvider_RejectsEmptyInputs(t *testing.T) {
	prov := HMACTokenProvider{}
	if _, err := prov.Token(2017, "", "voice-1", TokenValidity); err == nil {
		t.Error("Token() with empty secret succeeded")
	}
	if _, err := prov.Token(2017, "secret", "", TokenValidity); err == nil {
		t.Error("Token() with empty subject succeeded")
	}
}

func TestParseToken_SubjectWithColons(t *testing.T) {
	prov := HMACTokenProvider{}
	tok, err := prov.Token(2017, "secret", "tenant:7:voice", TokenValidity)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	_, subject, _, err := ParseToken(tok)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if subject != "tenant:7:voice" {
		t.Errorf("subject = %q, want %q", subject, "tenant:7:voice")
	}
}
