package invoicing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/infrastructure/memstore"
)

func TestService_SeedMembers(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedMembers(t, store, &membership.Member{Name: "Alice", MemberType: regular(), AnnualDues: usd(100)})

	svc := newTestService(t, store)
	result, err := svc.SeedMembers(ctx, []*membership.Member{
		{Name: "Alice", AnnualDues: usd(999)},
		{Name: "Bob", MemberType: regular(), AnnualDues: usd(50), OpenInvoice: invoiceRef("stale")},
		{Name: "Bob", AnnualDues: usd(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{Created: 1, Skipped: 2}, result)

	members, err := store.Members().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "100", members[0].AnnualDues.String(), "existing member untouched")
	assert.Equal(t, "Bob", members[1].Name)
	assert.False(t, members[1].HasOpenInvoice())

	again, err := svc.SeedMembers(ctx, []*membership.Member{{Name: "Bob"}})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 2, store.MutationCalls(memstore.MembersTable, "create"), "nothing new means no store call")
}
