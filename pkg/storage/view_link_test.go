package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestViewLinkSignerRoundTrip(t *testing.T) {
	signer := NewViewLinkSigner("secret", time.Minute)
	token, expiresAt, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)

	link, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "file-1", link.FileID)
	require.Equal(t, "user-1", link.UserID)
	require.Equal(t, expiresAt, link.ExpiresAt)
}

func TestViewLinkSignerRejectsTampering(t *testing.T) {
	signer := NewViewLinkSigner("secret", time.Minute)
	token, _, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)

	_, err = signer.Parse("file-2" + token[len("file-1"):])
	require.Error(t, err)

	_, err = NewViewLinkSigner("other", time.Minute).Parse(token)
	require.Error(t, err)
}

func TestViewLinkSignerExpired(t *testing.T) {
	signer := NewViewLinkSigner("secret", time.Minute)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrLinkExpired)
}
