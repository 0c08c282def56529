package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeychainRoundTrip(t *testing.T) {
	keyring.MockInit()
	k := NewKeychain()

	value, err := k.Secret("LLM_KEY")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, k.StoreSecret("LLM_KEY", "sk-123"))
	value, err = k.Secret("LLM_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-123", value)

	require.NoError(t, k.StoreSecret("LLM_KEY", ""))
	value, err = k.Secret("LLM_KEY")
	require.NoError(t, err)
	assert.Empty(t, value)

	assert.NoError(t, k.DeleteSecret("never-stored"))
}
