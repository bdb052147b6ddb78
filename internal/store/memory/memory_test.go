package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/retailpos-backend/internal/store"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

func TestExecuteRollsBackOnError(t *testing.T) {
	st := New()
	branch := st.AddBranch(database.Branch{Name: "Main", Code: "MAIN", IsActive: true})
	product := st.AddProduct(database.Product{Name: "Beans", SKU: "B-1", IsActive: true})
	st.AddInventory(database.Inventory{ProductID: product.ID, BranchID: branch.ID, CurrentStock: 10})

	boom := errors.New("boom")
	err := st.Execute(context.Background(), func(r store.Repos) error {
		require.NoError(t, r.Inventory().Debit(context.Background(), product.ID, branch.ID, 4))

		// The staged debit is visible inside the unit of work.
		inv, err := r.Inventory().Find(context.Background(), product.ID, branch.ID)
		require.NoError(t, err)
		require.Equal(t, 6, inv.CurrentStock)

		return boom
	})
	require.ErrorIs(t, err, boom)

	// The failed unit of work left nothing behind.
	assert.Equal(t, 10, st.StockOf(product.ID, branch.ID))
}

func TestExecuteRejectsCancelledContext(t *testing.T) {
	st := New()
	branch := st.AddBranch(database.Branch{Name: "Main", Code: "MAIN", IsActive: true})
	product := st.AddProduct(database.Product{Name: "Beans", SKU: "B-1", IsActive: true})
	st.AddInventory(database.Inventory{ProductID: product.ID, BranchID: branch.ID, CurrentStock: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := st.Execute(ctx, func(r store.Repos) error {
		ran = true
		return r.Inventory().Debit(context.Background(), product.ID, branch.ID, 4)
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran, "unit of work must not run under a cancelled context")
	assert.Equal(t, 10, st.StockOf(product.ID, branch.ID))
}

func TestExecuteCommitsOnSuccess(t *testing.T) {
	st := New()
	branch := st.AddBranch(database.Branch{Name: "Main", Code: "MAIN", IsActive: true})
	product := st.AddProduct(database.Product{Name: "Beans", SKU: "B-1", IsActive: true})
	st.AddInventory(database.Inventory{ProductID: product.ID, BranchID: branch.ID, CurrentStock: 10})

	err := st.Execute(context.Background(), func(r store.Repos) error {
		return r.Inventory().Debit(context.Background(), product.ID, branch.ID, 4)
	})
	require.NoError(t, err)
	assert.Equal(t, 6, st.StockOf(product.ID, branch.ID))
}

func TestDebitGuardsAgainstNegativeStock(t *testing.T) {
	st := New()
	branch := st.AddBranch(database.Branch{Name: "Main", Code: "MAIN", IsActive: true})
	product := st.AddProduct(database.Product{Name: "Beans", SKU: "B-1", IsActive: true})
	st.AddInventory(database.Inventory{ProductID: product.ID, BranchID: branch.ID, CurrentStock: 3})

	err := st.Inventory().Debit(context.Background(), product.ID, branch.ID, 5)
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 3, st.StockOf(product.ID, branch.ID))

	err = st.Inventory().Debit(context.Background(), product.ID, branch.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, st.StockOf(product.ID, branch.ID))
}

func TestCreateSaleRejectsDuplicateReference(t *testing.T) {
	st := New()
	branch := st.AddBranch(database.Branch{Name: "Main", Code: "MAIN", IsActive: true})
	userID := branch.ID // any uuid works for the row itself

	first := &database.Sale{
		BranchID:             branch.ID,
		UserID:               userID,
		TransactionReference: "TXN-20260831-deadbeef",
		Status:               database.SaleStatusCompleted,
	}
	require.NoError(t, st.Sales().Create(context.Background(), first))

	dup := &database.Sale{
		BranchID:             branch.ID,
		UserID:               userID,
		TransactionReference: "TXN-20260831-deadbeef",
		Status:               database.SaleStatusCompleted,
	}
	err := st.Sales().Create(context.Background(), dup)
	require.ErrorIs(t, err, store.ErrDuplicateReference)
	assert.Equal(t, 1, st.SaleCount())
}

func TestMarkCancelledIsOneWay(t *testing.T) {
	st := New()
	branch := st.AddBranch(database.Branch{Name: "Main", Code: "MAIN", IsActive: true})

	sale := &database.Sale{
		BranchID:             branch.ID,
		UserID:               branch.ID,
		TransactionReference: "TXN-20260831-0000aaaa",
		Status:               database.SaleStatusCompleted,
	}
	require.NoError(t, st.Sales().Create(context.Background(), sale))

	require.NoError(t, st.Sales().MarkCancelled(context.Background(), sale.ID))

	got, err := st.Sales().FindByID(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SaleStatusCancelled, got.Status)

	// A second MarkCancelled finds no completed row to flip.
	err = st.Sales().MarkCancelled(context.Background(), sale.ID)
	require.Error(t, err)
}
