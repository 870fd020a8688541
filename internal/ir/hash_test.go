package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"n":24}`)
	assert.NotEqual(t, hashWithDomain(DomainInput, data), hashWithDomain(DomainPlan, data))
	assert.Len(t, hashWithDomain(DomainInput, data), 64)
}

func TestInputDigestIgnoresFormatting(t *testing.T) {
	a, err := InputDigest([]byte(`{"a":10,"b":20,"operation":"add"}`))
	require.NoError(t, err)
	b, err := InputDigest([]byte("{\n  \"operation\": \"add\",\n  \"b\": 20,\n  \"a\": 10\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := InputDigest([]byte(`{"a":10,"b":21,"operation":"add"}`))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestInputDigestRejectsInvalidJSON(t *testing.T) {
	_, err := InputDigest([]byte(`{"n":`))
	require.Error(t, err)
}

func TestCommitsDigest(t *testing.T) {
	a, err := CommitsDigest(Ints(24, 6773, 3754))
	require.NoError(t, err)
	b, err := CommitsDigest(Ints(24, 6773, 3754))
	require.NoError(t, err)
	c, err := CommitsDigest(Ints(24, 6773, 3755))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
