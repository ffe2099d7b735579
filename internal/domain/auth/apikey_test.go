package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockKeys struct {
	byHash map[string]*APIKeyInfo
	err    error
}

func (m *mockKeys) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.byHash[hash]
	if !ok {
		return nil, ErrUnauthorized
	}
	return info, nil
}

func TestAuthenticator(t *testing.T) {
	pepper := []byte("pepper")
	hash := HashKey(pepper, "secret")
	keys := &mockKeys{byHash: map[string]*APIKeyInfo{
		hash:       {ID: "k1", KeyHash: hash, UserID: "u1", Scopes: []string{ScopeShop}},
		"tampered": {ID: "k2", KeyHash: "zz", UserID: "u2"},
	}}
	a := NewAuthenticator(keys, pepper)

	info, err := a.Authenticate(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", info.UserID)
	assert.True(t, info.HasScope(ScopeShop))
	assert.False(t, info.HasScope(ScopeAdmin))

	_, err = a.Authenticate(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = a.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticatorLookupFailure(t *testing.T) {
	down := errors.New("connection refused")
	a := NewAuthenticator(&mockKeys{err: down}, []byte("pepper"))

	_, err := a.Authenticate(context.Background(), "secret")
	require.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), &APIKeyInfo{UserID: "u1"})
	info, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", info.UserID)
}
