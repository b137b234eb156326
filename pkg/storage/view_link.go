package storage

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

// ErrLinkExpired is returned by Parse for a well-formed but stale link.
var ErrLinkExpired = errors.New("storage: view link expired")

// ViewLink is the decoded content of a signed view token.
type ViewLink struct {
	FileID    string
	UserID    string
	ExpiresAt time.Time
}

// ViewLinkSigner issues short-lived HMAC tokens that let a browser open a
// stored payload without sending an Authorization header.
type ViewLinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewViewLinkSigner constructs a signer with the provided secret and TTL.
func NewViewLinkSigner(secret string, ttl time.Duration) *ViewLinkSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ViewLinkSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token bound to the file and the requesting user.
func (s *ViewLinkSigner) Generate(fileID, userID string) (string, time.Time, error) {
	if fileID == "" || userID == "" {
		return "", time.Time{}, fmt.Errorf("fileID and userID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{fileID, userID, exp, s.sign(fileID, userID, exp)}, ".")
	return token, expiresAt, nil
}

// Parse validates the signature and expiry of token.
func (s *ViewLinkSigner) Parse(token string) (*ViewLink, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid link format")
	}
	fileID, userID, exp, signature := parts[0], parts[1], parts[2], parts[3]
	if !hmac.Equal([]byte(s.sign(fileID, userID, exp)), []byte(signature)) {
		return nil, fmt.Errorf("invalid link signature")
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid link expiry")
	}
	link := &ViewLink{FileID: fileID, UserID: userID, ExpiresAt: time.Unix(expUnix, 0).UTC()}
	if s.now().After(link.ExpiresAt) {
		return nil, ErrLinkExpired
	}
	return link, nil
}

func (s *ViewLinkSigner) sign(fileID, userID, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileID + "|" + userID + "|" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}
