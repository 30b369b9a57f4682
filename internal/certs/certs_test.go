package certs

import (
	"crypto/x509"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_EnsureIssuesOnce(t *testing.T) {
	s := NewStore(t.TempDir())

	first, err := s.Ensure()
	require.NoError(t, err)
	require.FileExists(t, s.CertFile())
	require.FileExists(t, s.KeyFile())

	info, err := os.Stat(s.KeyFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := s.Ensure()
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0])

	leaf, err := x509.ParseCertificate(second.Certificate[0])
	require.NoError(t, err)
	assert.NoError(t, leaf.VerifyHostname("localhost"))
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
}

func TestStore_RenewsNearExpiry(t *testing.T) {
	s := NewStore(t.TempDir())
	s.validFor = 24 * time.Hour

	first, err := s.Ensure()
	require.NoError(t, err)

	second, err := s.Ensure()
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificate[0], second.Certificate[0])
}

func TestStore_ReplacesCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, os.WriteFile(s.CertFile(), []byte("garbage"), 0o600))
	require.NoError(t, os.WriteFile(s.KeyFile(), []byte("garbage"), 0o600))

	cert, err := s.Ensure()
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}

func TestStore_TLSConfig(t *testing.T) {
	cfg, err := NewStore(t.TempDir()).TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.NotZero(t, cfg.MinVersion)
}

func TestStore_UnwritableDirectory(t *testing.T) {
	file := t.TempDir() + "/not-a-dir"
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := NewStore(file + "/certs").Ensure()
	assert.Error(t, err)
}
