package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Bank_Support ")
	require.NoError(t, err)
	require.Equal(t, BankSupport, k)

	_, err = ParseKind("weather")
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = ParseKind("")
	require.ErrorIs(t, err, ErrUnknownKind)
}

type otherKindAgent struct{ *BankSupportAgent }

func (otherKindAgent) Kind() Kind { return Kind("weather") }

func TestNewRegistry(t *testing.T) {
	bank := NewBankSupportAgent(nil, "fake", "m", nil)

	reg, err := NewRegistry(bank)
	require.NoError(t, err)
	a, err := reg.Resolve(BankSupport)
	require.NoError(t, err)
	require.Same(t, bank, a)

	_, err = reg.Resolve(Kind("weather"))
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = NewRegistry()
	require.ErrorContains(t, err, "no agent configured")

	_, err = NewRegistry(bank, bank)
	require.ErrorContains(t, err, "duplicate")

	_, err = NewRegistry(bank, otherKindAgent{bank})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestCustomerIDFromUser(t *testing.T) {
	id := uuid.MustParse("0000ffff-0000-4000-8000-000000000000")
	require.Equal(t, int64(0xffff%10000), CustomerIDFromUser(id))

	id = uuid.MustParse("ffffffff-0000-4000-8000-000000000000")
	require.Equal(t, int64(0xffffffff%10000), CustomerIDFromUser(id))
}

func TestSimulatedBank(t *testing.T) {
	ctx := context.Background()
	b := NewSimulatedBank()

	withPending, err := b.Balance(ctx, 1, true)
	require.NoError(t, err)
	settled, err := b.Balance(ctx, 1, false)
	require.NoError(t, err)
	require.InDelta(t, 1123.45, withPending, 1e-9)
	require.InDelta(t, 1234.56, settled, 1e-9)

	txs, err := b.RecentTransactions(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	txs, err = b.RecentTransactions(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, txs, 5)

	require.False(t, b.Blocked(1))
	ok, err := b.BlockCard(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, b.Blocked(1))
}
