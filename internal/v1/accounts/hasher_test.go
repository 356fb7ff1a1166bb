package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher()

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, h.Verify("correct horse battery staple", hash))
	assert.False(t, h.Verify("correct horse battery stable", hash))
	assert.False(t, h.Verify("", hash))
}

func TestBcryptHasher_UniqueSalts(t *testing.T) {
	h := NewBcryptHasher()

	h1, err := h.Hash("samepassword")
	require.NoError(t, err)
	h2, err := h.Hash("samepassword")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "each hash gets its own salt")
}
