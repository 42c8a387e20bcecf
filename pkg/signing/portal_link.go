package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for malformed or tampered tokens.
	ErrInvalidToken = errors.New("invalid portal token")
	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("portal token expired")
)

// PortalLinkSigner issues and validates tokens binding a building to a QR portal link.
type PortalLinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewPortalLinkSigner constructs a signer with the provided secret and TTL.
func NewPortalLinkSigner(secret string, ttl time.Duration) *PortalLinkSigner {
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &PortalLinkSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token of the form buildingID.expiry.signature.
func (s *PortalLinkSigner) Generate(buildingID string) (string, time.Time, error) {
	if buildingID == "" {
		return "", time.Time{}, fmt.Errorf("buildingID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{buildingID, ts, s.sign(buildingID, ts)}, "."), expiresAt, nil
}

// Verify checks the token signature and expiry and returns the embedded building ID.
func (s *PortalLinkSigner) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", ErrInvalidToken
	}
	buildingID, ts, signature := parts[0], parts[1], parts[2]

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.sign(buildingID, ts)), []byte(signature)) {
		return "", ErrInvalidToken
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", ErrExpiredToken
	}
	return buildingID, nil
}

func (s *PortalLinkSigner) sign(buildingID, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(buildingID + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
