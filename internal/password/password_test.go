package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Tests use the minimum cost so hashing stays fast.

func TestHasher_HashAndVerify(t *testing.T) {
	hasher := NewHasher(WithCost(bcrypt.MinCost))

	digest, err := hasher.Hash("Abcdef1!")
	require.NoError(t, err)
	require.NotEmpty(t, digest)

	assert.True(t, hasher.Verify("Abcdef1!", digest))
	assert.False(t, hasher.Verify("Abcdef1?", digest))
	assert.False(t, hasher.Verify("", digest))
}

func TestHasher_SaltUniqueness(t *testing.T) {
	hasher := NewHasher(WithCost(bcrypt.MinCost))

	first, err := hasher.Hash("Abcdef1!")
	require.NoError(t, err)
	second, err := hasher.Hash("Abcdef1!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("Abcdef1!", first))
	assert.True(t, hasher.Verify("Abcdef1!", second))
}

func TestHasher_DigestEmbedsMetadata(t *testing.T) {
	hasher := NewHasher(WithCost(bcrypt.MinCost))

	digest, err := hasher.Hash("Abcdef1!")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.True(t, strings.HasPrefix(digest, "$2"))
}

func TestHasher_TooLongPassword(t *testing.T) {
	hasher := NewHasher(WithCost(bcrypt.MinCost))

	_, err := hasher.Hash(strings.Repeat("a", 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestHasher_VerifyGarbageDigest(t *testing.T) {
	hasher := NewHasher()

	assert.False(t, hasher.Verify("Abcdef1!", "not-a-digest"))
	assert.False(t, hasher.Verify("Abcdef1!", ""))
}

func TestWithCost_OutOfRangeIgnored(t *testing.T) {
	hasher := NewHasher(WithCost(999))
	assert.Equal(t, DefaultCost, hasher.cost)

	hasher = NewHasher(WithCost(-1))
	assert.Equal(t, DefaultCost, hasher.cost)
}

func TestDefaultCost(t *testing.T) {
	assert.Equal(t, 12, NewHasher().cost)
}
