// Package memory is an in-memory store implementation used by tests and by
// local development without PostgreSQL. Execute applies the unit of work to a
// staged copy of the state and swaps it in only on success, mirroring the
// commit/rollback behavior of the SQL store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retailcore/retailpos-backend/internal/store"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

type invKey struct {
	productID uuid.UUID
	branchID  uuid.UUID
}

type state struct {
	users     map[uuid.UUID]database.User
	branches  map[uuid.UUID]database.Branch
	customers map[uuid.UUID]database.Customer
	products  map[uuid.UUID]database.Product
	inventory map[invKey]database.Inventory
	sales     map[uuid.UUID]database.Sale
	payments  []database.Payment
}

func newState() *state {
	return &state{
		users:     make(map[uuid.UUID]database.User),
		branches:  make(map[uuid.UUID]database.Branch),
		customers: make(map[uuid.UUID]database.Customer),
		products:  make(map[uuid.UUID]database.Product),
		inventory: make(map[invKey]database.Inventory),
		sales:     make(map[uuid.UUID]database.Sale),
	}
}

func (st *state) clone() *state {
	next := &state{
		users:     make(map[uuid.UUID]database.User, len(st.users)),
		branches:  make(map[uuid.UUID]database.Branch, len(st.branches)),
		customers: make(map[uuid.UUID]database.Customer, len(st.customers)),
		products:  make(map[uuid.UUID]database.Product, len(st.products)),
		inventory: make(map[invKey]database.Inventory, len(st.inventory)),
		sales:     make(map[uuid.UUID]database.Sale, len(st.sales)),
		payments:  make([]database.Payment, len(st.payments)),
	}
	for k, v := range st.users {
		next.users[k] = v
	}
	for k, v := range st.branches {
		next.branches[k] = v
	}
	for k, v := range st.customers {
		next.customers[k] = v
	}
	for k, v := range st.products {
		next.products[k] = v
	}
	for k, v := range st.inventory {
		next.inventory[k] = v
	}
	for k, v := range st.sales {
		items := make([]database.SaleItem, len(v.Items))
		copy(items, v.Items)
		v.Items = items
		next.sales[k] = v
	}
	copy(next.payments, st.payments)
	return next
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Execute stages the unit of work on a copy of the state; the copy replaces
// the live state only when fn succeeds.
func (s *Store) Execute(ctx context.Context, fn func(r store.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.st.clone()
	if err := fn(stateRepos{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

var _ store.Store = (*Store)(nil)

func (s *Store) Users() store.UserRepository          { return lockedRepos{s}.Users() }
func (s *Store) Branches() store.BranchRepository     { return lockedRepos{s}.Branches() }
func (s *Store) Customers() store.CustomerRepository  { return lockedRepos{s}.Customers() }
func (s *Store) Products() store.ProductRepository    { return lockedRepos{s}.Products() }
func (s *Store) Inventory() store.InventoryRepository { return lockedRepos{s}.Inventory() }
func (s *Store) Sales() store.SaleRepository          { return lockedRepos{s}.Sales() }
func (s *Store) Payments() store.PaymentRepository    { return lockedRepos{s}.Payments() }

// Seeding helpers for tests and dev mode.

func (s *Store) AddBranch(b database.Branch) database.Branch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	s.st.branches[b.ID] = b
	return b
}

func (s *Store) AddUser(u database.User) database.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	s.st.users[u.ID] = u
	return u
}

func (s *Store) AddCustomer(c database.Customer) database.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	s.st.customers[c.ID] = c
	return c
}

func (s *Store) AddProduct(p database.Product) database.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	s.st.products[p.ID] = p
	return p
}

func (s *Store) AddInventory(inv database.Inventory) database.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	s.st.inventory[invKey{inv.ProductID, inv.BranchID}] = inv
	return inv
}

// StockOf reports the current stock for one (product, branch) pair.
func (s *Store) StockOf(productID, branchID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.inventory[invKey{productID, branchID}].CurrentStock
}

// PaymentCount reports how many payment rows exist.
func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.payments)
}

// PaymentsOf returns the payment rows recorded for one sale.
func (s *Store) PaymentsOf(saleID uuid.UUID) []database.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Payment
	for _, p := range s.st.payments {
		if p.SaleID == saleID {
			out = append(out, p)
		}
	}
	return out
}

// SaleCount reports how many sales exist.
func (s *Store) SaleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.sales)
}

// lockedRepos serves auto-commit access: every call takes the store lock.
type lockedRepos struct {
	s *Store
}

func (l lockedRepos) Users() store.UserRepository          { return lockedUserRepo(l) }
func (l lockedRepos) Branches() store.BranchRepository     { return lockedBranchRepo(l) }
func (l lockedRepos) Customers() store.CustomerRepository  { return lockedCustomerRepo(l) }
func (l lockedRepos) Products() store.ProductRepository    { return lockedProductRepo(l) }
func (l lockedRepos) Inventory() store.InventoryRepository { return lockedInventoryRepo(l) }
func (l lockedRepos) Sales() store.SaleRepository          { return lockedSaleRepo(l) }
func (l lockedRepos) Payments() store.PaymentRepository    { return lockedPaymentRepo(l) }

// stateRepos serves calls inside Execute, where the lock is already held.
type stateRepos struct {
	st *state
}

func (r stateRepos) Users() store.UserRepository          { return stateUserRepo(r) }
func (r stateRepos) Branches() store.BranchRepository     { return stateBranchRepo(r) }
func (r stateRepos) Customers() store.CustomerRepository  { return stateCustomerRepo(r) }
func (r stateRepos) Products() store.ProductRepository    { return stateProductRepo(r) }
func (r stateRepos) Inventory() store.InventoryRepository { return stateInventoryRepo(r) }
func (r stateRepos) Sales() store.SaleRepository          { return stateSaleRepo(r) }
func (r stateRepos) Payments() store.PaymentRepository    { return statePaymentRepo(r) }
