package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("receipt", "secret", time.Hour)
	token, expiresAt, err := signer.Generate("42", "Asha Rao_JR KG_2024-01-15.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "receipt", claims.Scope)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, "Asha Rao_JR KG_2024-01-15.pdf", claims.Path)
	require.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("report", "secret", time.Millisecond)
	token, _, err := signer.Generate("job-1", "history.csv")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, err = signer.Parse(token, false)
	require.Error(t, err)

	claims, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "history.csv", claims.Path)
}

func TestSignedURLSignerRejectsOtherScope(t *testing.T) {
	receipts := NewSignedURLSigner("receipt", "secret", time.Hour)
	reports := NewSignedURLSigner("report", "secret", time.Hour)

	token, _, err := receipts.Generate("7", "file.pdf")
	require.NoError(t, err)

	_, err = reports.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("report", "secret", time.Hour)
	token, _, err := signer.Generate("job-1", "a.csv")
	require.NoError(t, err)

	_, err = signer.Parse(token+"0", false)
	require.Error(t, err)
	_, err = signer.Parse("not-a-token", false)
	require.Error(t, err)
}
