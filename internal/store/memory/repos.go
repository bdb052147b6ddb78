package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/retailcore/retailpos-backend/internal/store"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

// The functions below implement the repository operations against a bare
// *state. The locked* and state* wrappers at the bottom adapt them to the
// auto-commit and in-transaction access paths.

func findActiveUser(st *state, id uuid.UUID) (*database.User, error) {
	u, ok := st.users[id]
	if !ok || !u.IsActive {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func findActiveBranch(st *state, id uuid.UUID) (*database.Branch, error) {
	b, ok := st.branches[id]
	if !ok || !b.IsActive {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func findCustomer(st *state, id uuid.UUID) (*database.Customer, error) {
	c, ok := st.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func findActiveProduct(st *state, id uuid.UUID) (*database.Product, error) {
	p, ok := st.products[id]
	if !ok || !p.IsActive {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func findInventory(st *state, productID, branchID uuid.UUID) (*database.Inventory, error) {
	inv, ok := st.inventory[invKey{productID, branchID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func debitInventory(st *state, productID, branchID uuid.UUID, quantity int) error {
	key := invKey{productID, branchID}
	inv, ok := st.inventory[key]
	if !ok {
		return store.ErrNotFound
	}
	if inv.CurrentStock < quantity {
		return store.ErrInsufficientStock
	}
	inv.CurrentStock -= quantity
	st.inventory[key] = inv
	return nil
}

func creditInventory(st *state, productID, branchID uuid.UUID, quantity int) error {
	key := invKey{productID, branchID}
	inv, ok := st.inventory[key]
	if !ok {
		return store.ErrNotFound
	}
	inv.CurrentStock += quantity
	st.inventory[key] = inv
	return nil
}

func createSale(st *state, sale *database.Sale) error {
	for _, existing := range st.sales {
		if existing.TransactionReference == sale.TransactionReference {
			return store.ErrDuplicateReference
		}
	}
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now()
	}
	for i := range sale.Items {
		if sale.Items[i].ID == uuid.Nil {
			sale.Items[i].ID = uuid.New()
		}
		sale.Items[i].SaleID = sale.ID
	}
	stored := *sale
	stored.Items = make([]database.SaleItem, len(sale.Items))
	copy(stored.Items, sale.Items)
	st.sales[sale.ID] = stored
	return nil
}

// expandSale attaches the associated entities the SQL store would Preload.
func expandSale(st *state, sale database.Sale) database.Sale {
	if sale.CustomerID != nil {
		if c, ok := st.customers[*sale.CustomerID]; ok {
			sale.Customer = &c
		}
	}
	if u, ok := st.users[sale.UserID]; ok {
		sale.User = u
	}
	if b, ok := st.branches[sale.BranchID]; ok {
		sale.Branch = b
	}
	items := make([]database.SaleItem, len(sale.Items))
	copy(items, sale.Items)
	for i := range items {
		if p, ok := st.products[items[i].ProductID]; ok {
			items[i].Product = p
		}
	}
	sale.Items = items
	return sale
}

func findSale(st *state, id uuid.UUID) (*database.Sale, error) {
	sale, ok := st.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	expanded := expandSale(st, sale)
	return &expanded, nil
}

func listSales(st *state, filter store.SaleFilter) ([]database.Sale, int64, error) {
	matched := make([]database.Sale, 0, len(st.sales))
	for _, sale := range st.sales {
		if filter.BranchID != nil && sale.BranchID != *filter.BranchID {
			continue
		}
		if filter.UserID != nil && sale.UserID != *filter.UserID {
			continue
		}
		if filter.CustomerID != nil && (sale.CustomerID == nil || *sale.CustomerID != *filter.CustomerID) {
			continue
		}
		if filter.PaymentMethod != "" && sale.PaymentMethod != filter.PaymentMethod {
			continue
		}
		if filter.DateFrom != nil && sale.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && sale.CreatedAt.After(*filter.DateTo) {
			continue
		}
		matched = append(matched, expandSale(st, sale))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []database.Sale{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func updateSaleFields(st *state, id uuid.UUID, update store.SaleUpdate) error {
	sale, ok := st.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	if update.ClearCustomer {
		sale.CustomerID = nil
	} else if update.CustomerID != nil {
		customerID := *update.CustomerID
		sale.CustomerID = &customerID
	}
	if update.PaymentMethod != nil {
		sale.PaymentMethod = *update.PaymentMethod
	}
	if update.Status != nil {
		sale.Status = *update.Status
	}
	sale.UpdatedAt = time.Now()
	st.sales[id] = sale
	return nil
}

func markSaleCancelled(st *state, id uuid.UUID) error {
	sale, ok := st.sales[id]
	if !ok || sale.Status != database.SaleStatusCompleted {
		return store.ErrNotFound
	}
	sale.Status = database.SaleStatusCancelled
	sale.UpdatedAt = time.Now()
	st.sales[id] = sale
	return nil
}

func createPayment(st *state, payment *database.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	st.payments = append(st.payments, *payment)
	return nil
}

// In-transaction repositories (lock already held by Execute).

type stateUserRepo struct{ st *state }

func (r stateUserRepo) FindActive(_ context.Context, id uuid.UUID) (*database.User, error) {
	return findActiveUser(r.st, id)
}

type stateBranchRepo struct{ st *state }

func (r stateBranchRepo) FindActive(_ context.Context, id uuid.UUID) (*database.Branch, error) {
	return findActiveBranch(r.st, id)
}

type stateCustomerRepo struct{ st *state }

func (r stateCustomerRepo) Find(_ context.Context, id uuid.UUID) (*database.Customer, error) {
	return findCustomer(r.st, id)
}

type stateProductRepo struct{ st *state }

func (r stateProductRepo) FindActive(_ context.Context, id uuid.UUID) (*database.Product, error) {
	return findActiveProduct(r.st, id)
}

type stateInventoryRepo struct{ st *state }

func (r stateInventoryRepo) Find(_ context.Context, productID, branchID uuid.UUID) (*database.Inventory, error) {
	return findInventory(r.st, productID, branchID)
}

func (r stateInventoryRepo) FindForUpdate(_ context.Context, productID, branchID uuid.UUID) (*database.Inventory, error) {
	return findInventory(r.st, productID, branchID)
}

func (r stateInventoryRepo) Debit(_ context.Context, productID, branchID uuid.UUID, quantity int) error {
	return debitInventory(r.st, productID, branchID, quantity)
}

func (r stateInventoryRepo) Credit(_ context.Context, productID, branchID uuid.UUID, quantity int) error {
	return creditInventory(r.st, productID, branchID, quantity)
}

type stateSaleRepo struct{ st *state }

func (r stateSaleRepo) Create(_ context.Context, sale *database.Sale) error {
	return createSale(r.st, sale)
}

func (r stateSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*database.Sale, error) {
	return findSale(r.st, id)
}

func (r stateSaleRepo) FindForUpdate(_ context.Context, id uuid.UUID) (*database.Sale, error) {
	return findSale(r.st, id)
}

func (r stateSaleRepo) List(_ context.Context, filter store.SaleFilter) ([]database.Sale, int64, error) {
	return listSales(r.st, filter)
}

func (r stateSaleRepo) UpdateFields(_ context.Context, id uuid.UUID, update store.SaleUpdate) error {
	return updateSaleFields(r.st, id, update)
}

func (r stateSaleRepo) MarkCancelled(_ context.Context, id uuid.UUID) error {
	return markSaleCancelled(r.st, id)
}

type statePaymentRepo struct{ st *state }

func (r statePaymentRepo) Create(_ context.Context, payment *database.Payment) error {
	return createPayment(r.st, payment)
}

// Auto-commit repositories (each call takes the store lock).

type lockedUserRepo struct{ s *Store }

func (r lockedUserRepo) FindActive(_ context.Context, id uuid.UUID) (*database.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return findActiveUser(r.s.st, id)
}

type lockedBranchRepo struct{ s *Store }

func (r lockedBranchRepo) FindActive(_ context.Context, id uuid.UUID) (*database.Branch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return findActiveBranch(r.s.st, id)
}

type lockedCustomerRepo struct{ s *Store }

func (r lockedCustomerRepo) Find(_ context.Context, id uuid.UUID) (*database.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return findCustomer(r.s.st, id)
}

type lockedProductRepo struct{ s *Store }

func (r lockedProductRepo) FindActive(_ context.Context, id uuid.UUID) (*database.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return findActiveProduct(r.s.st, id)
}

type lockedInventoryRepo struct{ s *Store }

func (r lockedInventoryRepo) Find(_ context.Context, productID, branchID uuid.UUID) (*database.Inventory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return findInventory(r.s.st, productID, branchID)
}

func (r lockedInventoryRepo) FindForUpdate(_ context.Context, productID, branchID uuid.UUID) (*database.Inventory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return findInventory(r.s.st, productID, branchID)
}

func (r lockedInventoryRepo) Debit(_ context.Context, productID, branchID uuid.UUID, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return debitInventory(r.s.st, productID, branchID, quantity)
}

func (r lockedInventoryRepo) Credit(_ context.Context, productID, branchID uuid.UUID, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return creditInventory(r.s.st, productID, branchID, quantity)
}

type lockedSaleRepo struct{ s *Store }

func (r lockedSaleRepo) Create(_ context.Context, sale *database.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return createSale(r.s.st, sale)
}

func (r lockedSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*database.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return findSale(r.s.st, id)
}

func (r lockedSaleRepo) FindForUpdate(_ context.Context, id uuid.UUID) (*database.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return findSale(r.s.st, id)
}

func (r lockedSaleRepo) List(_ context.Context, filter store.SaleFilter) ([]database.Sale, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return listSales(r.s.st, filter)
}

func (r lockedSaleRepo) UpdateFields(_ context.Context, id uuid.UUID, update store.SaleUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return updateSaleFields(r.s.st, id, update)
}

func (r lockedSaleRepo) MarkCancelled(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return markSaleCancelled(r.s.st, id)
}

type lockedPaymentRepo struct{ s *Store }

func (r lockedPaymentRepo) Create(_ context.Context, payment *database.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return createPayment(r.s.st, payment)
}
