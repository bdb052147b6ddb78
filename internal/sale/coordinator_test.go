package sale

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/retailpos-backend/internal/pricing"
	"github.com/retailcore/retailpos-backend/internal/store/memory"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

type fixture struct {
	store   *memory.Store
	coord   *Coordinator
	branch  database.Branch
	cashier database.User
	manager database.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.New()
	branch := st.AddBranch(database.Branch{Name: "Main Street", Code: "MAIN", IsActive: true})
	branchID := branch.ID
	cashier := st.AddUser(database.User{Name: "Casey", Email: "casey@example.com", Role: "cashier", BranchID: &branchID, IsActive: true})
	manager := st.AddUser(database.User{Name: "Morgan", Email: "morgan@example.com", Role: "manager", BranchID: &branchID, IsActive: true})

	return &fixture{
		store:   st,
		coord:   NewCoordinator(st, pricing.New(decimal.NewFromFloat(0.16)), nil),
		branch:  branch,
		cashier: cashier,
		manager: manager,
	}
}

func (f *fixture) addProduct(t *testing.T, name, sku string, price float64, stock int) database.Product {
	t.Helper()
	p := f.store.AddProduct(database.Product{
		Name:     name,
		SKU:      sku,
		Price:    decimal.NewFromFloat(price),
		IsActive: true,
	})
	f.store.AddInventory(database.Inventory{
		ProductID:    p.ID,
		BranchID:     f.branch.ID,
		CurrentStock: stock,
		MinimumStock: 2,
	})
	return p
}

func TestCreateSaleComputesTotalsAndDebitsStock(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)

	created, err := f.coord.Create(context.Background(), CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(400).Equal(created.Subtotal), "subtotal = %s", created.Subtotal)
	assert.True(t, decimal.NewFromInt(64).Equal(created.TaxAmount), "tax = %s", created.TaxAmount)
	assert.True(t, decimal.NewFromInt(464).Equal(created.TotalAmount), "total = %s", created.TotalAmount)
	assert.Equal(t, database.SaleStatusCompleted, created.Status)
	assert.Regexp(t, `^TXN-\d{8}-[0-9a-f]{8}$`, created.TransactionReference)
	assert.Equal(t, "cash", created.PaymentMethod)
	require.Len(t, created.Items, 1)
	assert.Equal(t, "Espresso Beans", created.Items[0].ProductName)
	assert.Equal(t, "EB-001", created.Items[0].ProductSKU)

	assert.Equal(t, 6, f.store.StockOf(product.ID, f.branch.ID))
}

func TestCreateSaleAppliesDiscountBeforeTax(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Cold Brew", "CB-001", 100, 10)

	created, err := f.coord.Create(context.Background(), CreateInput{
		BranchID:       f.branch.ID,
		UserID:         f.cashier.ID,
		DiscountAmount: decimal.NewFromInt(50),
		Items:          []ItemInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	// tax on (400 - 50), then total = 350 + tax
	assert.True(t, decimal.NewFromInt(56).Equal(created.TaxAmount), "tax = %s", created.TaxAmount)
	assert.True(t, decimal.NewFromInt(406).Equal(created.TotalAmount), "total = %s", created.TotalAmount)
}

func TestCreateSaleWalkInHasNoPayment(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Paper Cups", "PC-012", 6.25, 100)

	_, err := f.coord.Create(context.Background(), CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.PaymentCount())
}

func TestCreateSaleWithCustomerRecordsPayment(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Paper Cups", "PC-012", 6.25, 100)
	customer := f.store.AddCustomer(database.Customer{Name: "Dana"})

	created, err := f.coord.Create(context.Background(), CreateInput{
		BranchID:      f.branch.ID,
		UserID:        f.cashier.ID,
		CustomerID:    &customer.ID,
		PaymentMethod: "card",
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "card", created.PaymentMethod)
	require.NotNil(t, created.Customer)
	assert.Equal(t, "Dana", created.Customer.Name)

	payments := f.store.PaymentsOf(created.ID)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(created.TotalAmount),
		"payment %s should mirror sale total %s", payments[0].Amount, created.TotalAmount)
	assert.Equal(t, created.TransactionReference, payments[0].TransactionReference)
	assert.Equal(t, "card", payments[0].Method)
}

func TestCreateSaleCancelledContextLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Paper Cups", "PC-012", 6.25, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.coord.Create(ctx, CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, f.store.StockOf(product.ID, f.branch.ID))
	assert.Equal(t, 0, f.store.SaleCount())
	assert.Equal(t, 0, f.store.PaymentCount())
}

func TestCreateSaleInsufficientStockRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	first := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)
	second := f.addProduct(t, "Cold Brew", "CB-001", 50, 3)

	_, err := f.coord.Create(context.Background(), CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items: []ItemInput{
			{ProductID: first.ID, Quantity: 4},
			{ProductID: second.ID, Quantity: 5},
		},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Cold Brew", stockErr.ProductName)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	// The first line's debit must not survive the failed unit of work.
	assert.Equal(t, 10, f.store.StockOf(first.ID, f.branch.ID))
	assert.Equal(t, 3, f.store.StockOf(second.ID, f.branch.ID))
	assert.Equal(t, 0, f.store.SaleCount())
	assert.Equal(t, 0, f.store.PaymentCount())
}

func TestCreateSaleMissingInventoryRecordReportsZeroAvailable(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct(database.Product{
		Name:     "Unstocked",
		SKU:      "UN-001",
		Price:    decimal.NewFromInt(10),
		IsActive: true,
	})

	_, err := f.coord.Create(context.Background(), CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 1}},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
}

func TestCreateSaleValidation(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing branch", CreateInput{UserID: f.cashier.ID, Items: []ItemInput{{ProductID: product.ID, Quantity: 1}}}},
		{"missing user", CreateInput{BranchID: f.branch.ID, Items: []ItemInput{{ProductID: product.ID, Quantity: 1}}}},
		{"no items", CreateInput{BranchID: f.branch.ID, UserID: f.cashier.ID}},
		{"zero quantity", CreateInput{BranchID: f.branch.ID, UserID: f.cashier.ID, Items: []ItemInput{{ProductID: product.ID, Quantity: 0}}}},
		{"negative discount", CreateInput{BranchID: f.branch.ID, UserID: f.cashier.ID, DiscountAmount: decimal.NewFromInt(-1), Items: []ItemInput{{ProductID: product.ID, Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.coord.Create(context.Background(), tc.in)
			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, 10, f.store.StockOf(product.ID, f.branch.ID))
		})
	}
}

func TestCreateSaleDiscountExceedingSubtotalRejected(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)

	_, err := f.coord.Create(context.Background(), CreateInput{
		BranchID:       f.branch.ID,
		UserID:         f.cashier.ID,
		DiscountAmount: decimal.NewFromInt(500),
		Items:          []ItemInput{{ProductID: product.ID, Quantity: 4}},
	})

	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 10, f.store.StockOf(product.ID, f.branch.ID))
}

func TestCreateSaleUnknownReferences(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)
	missing := uuid.New()

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.coord.Create(context.Background(), CreateInput{
			BranchID: f.branch.ID,
			UserID:   missing,
			Items:    []ItemInput{{ProductID: product.ID, Quantity: 1}},
		})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "user", nf.Entity)
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := f.coord.Create(context.Background(), CreateInput{
			BranchID:   f.branch.ID,
			UserID:     f.cashier.ID,
			CustomerID: &missing,
			Items:      []ItemInput{{ProductID: product.ID, Quantity: 1}},
		})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "customer", nf.Entity)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.coord.Create(context.Background(), CreateInput{
			BranchID: f.branch.ID,
			UserID:   f.cashier.ID,
			Items:    []ItemInput{{ProductID: missing, Quantity: 1}},
		})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "product", nf.Entity)
	})

	assert.Equal(t, 10, f.store.StockOf(product.ID, f.branch.ID))
	assert.Equal(t, 0, f.store.SaleCount())
}

func TestPriceOverridePolicy(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 20)
	override := decimal.NewFromInt(80)

	t.Run("manager override honored", func(t *testing.T) {
		created, err := f.coord.Create(context.Background(), CreateInput{
			BranchID:  f.branch.ID,
			UserID:    f.manager.ID,
			ActorRole: "manager",
			Items:     []ItemInput{{ProductID: product.ID, Quantity: 1, UnitPrice: &override}},
		})
		require.NoError(t, err)
		assert.True(t, override.Equal(created.Items[0].UnitPrice), "unit price = %s", created.Items[0].UnitPrice)
	})

	t.Run("cashier override ignored", func(t *testing.T) {
		created, err := f.coord.Create(context.Background(), CreateInput{
			BranchID:  f.branch.ID,
			UserID:    f.cashier.ID,
			ActorRole: "cashier",
			Items:     []ItemInput{{ProductID: product.ID, Quantity: 1, UnitPrice: &override}},
		})
		require.NoError(t, err)
		assert.True(t, product.Price.Equal(created.Items[0].UnitPrice), "unit price = %s", created.Items[0].UnitPrice)
	})
}

func TestCancelRestoresStockExactlyOnce(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)
	ctx := context.Background()

	first, err := f.coord.Create(ctx, CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 6, f.store.StockOf(product.ID, f.branch.ID))

	// A sale for more than the remaining stock must fail and report what is
	// actually left.
	_, err = f.coord.Create(ctx, CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 8}},
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Available)

	cancelled, err := f.coord.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SaleStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.store.StockOf(product.ID, f.branch.ID))

	// Cancelling again must not credit stock a second time.
	_, err = f.coord.Cancel(ctx, first.ID)
	require.True(t, errors.Is(err, ErrAlreadyCancelled))
	assert.Equal(t, 10, f.store.StockOf(product.ID, f.branch.ID))
}

func TestCancelUnknownSale(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Cancel(context.Background(), uuid.New())
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "sale", nf.Entity)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.coord.Create(ctx, CreateInput{
				BranchID: f.branch.ID,
				UserID:   f.cashier.ID,
				Items:    []ItemInput{{ProductID: product.ID, Quantity: 6}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			var stockErr *InsufficientStockError
			require.ErrorAs(t, err, &stockErr)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, f.store.StockOf(product.ID, f.branch.ID))
}
