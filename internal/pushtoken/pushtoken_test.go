package pushtoken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueThenVerifySucceeds(t *testing.T) {
	m := NewManager("test-signing-key")
	token, err := m.Issue("cam1")
	require.NoError(t, err)
	assert.NoError(t, m.Verify(token, "cam1"))
}

func TestVerifyFailsForWrongCamera(t *testing.T) {
	m := NewManager("test-signing-key")
	token, err := m.Issue("cam1")
	require.NoError(t, err)
	assert.ErrorIs(t, m.Verify(token, "cam2"), ErrInvalidToken)
}

func TestVerifyFailsForWrongKey(t *testing.T) {
	m1 := NewManager("key-one")
	m2 := NewManager("key-two")
	token, err := m1.Issue("cam1")
	require.NoError(t, err)
	assert.ErrorIs(t, m2.Verify(token, "cam1"), ErrInvalidToken)
}

func TestVerifyFailsForGarbageToken(t *testing.T) {
	m := NewManager("test-signing-key")
	assert.ErrorIs(t, m.Verify("not-a-jwt", "cam1"), ErrInvalidToken)
}
