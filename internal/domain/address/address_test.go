package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sqshop/internal/domain/validate"
)

type mockRepo struct {
	saved  *Address
	stored map[string]*Address
}

func (m *mockRepo) Save(_ context.Context, a *Address) error {
	m.saved = a
	return nil
}

func (m *mockRepo) Get(_ context.Context, userID, id string) (*Address, error) {
	a, ok := m.stored[id]
	if !ok || a.UserID != userID {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) List(_ context.Context, _ string) ([]Address, error) { return nil, nil }

func (m *mockRepo) Delete(_ context.Context, _, _ string) error { return nil }

func TestAddress_Validate(t *testing.T) {
	tests := []struct {
		name      string
		addr      Address
		wantField string
	}{
		{name: "shipping", addr: Address{Street: "1 Main St", Country: "NL", Type: Shipping}},
		{name: "billing", addr: Address{Street: "1 Main St", Country: "NL", Type: Billing}},
		{name: "blank street", addr: Address{Street: "  ", Country: "NL", Type: Shipping}, wantField: "street_address"},
		{name: "missing country", addr: Address{Street: "1 Main St", Type: Shipping}, wantField: "country"},
		{name: "unknown type", addr: Address{Street: "1 Main St", Country: "NL", Type: "X"}, wantField: "address_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.addr.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var verr *validate.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestService_UpdateForeignAddress(t *testing.T) {
	repo := &mockRepo{stored: map[string]*Address{
		"a1": {ID: "a1", UserID: "alice"},
	}}
	svc := NewService(repo)

	err := svc.Update(context.Background(), &Address{
		ID: "a1", UserID: "mallory", Street: "x", Country: "y", Type: Billing,
	})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, repo.saved)
}

func TestService_Create(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	a := &Address{UserID: "alice", Street: "1 Main St", Country: "NL", Type: Shipping, Default: true}
	require.NoError(t, svc.Create(context.Background(), a))
	assert.NotEmpty(t, a.ID)
	assert.Same(t, a, repo.saved)
}
