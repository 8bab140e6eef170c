package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify_RoundTrips(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, Verify("correct horse battery staple", hash))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	hash, err := Hash("the-real-secret")
	require.NoError(t, err)

	assert.Error(t, Verify("not-the-real-secret", hash))
}

func TestHash_ProducesDistinctHashesForSameInput(t *testing.T) {
	a, err := Hash("same-secret")
	require.NoError(t, err)
	b, err := Hash("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "bcrypt salts each hash independently")
	assert.NoError(t, Verify("same-secret", a))
	assert.NoError(t, Verify("same-secret", b))
}
