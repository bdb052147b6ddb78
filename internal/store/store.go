// Package store defines the persistence boundary for the sale core. All
// writes that must commit or roll back together run inside a TxScope; the
// inventory repository is the only component allowed to touch current_stock.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/retailcore/retailpos-backend/pkg/database"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrDuplicateReference = errors.New("duplicate transaction reference")
)

// SaleFilter narrows and paginates sale listings.
type SaleFilter struct {
	Page          int
	Limit         int
	BranchID      *uuid.UUID
	UserID        *uuid.UUID
	CustomerID    *uuid.UUID
	PaymentMethod string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// SaleUpdate carries the fields PUT /api/sales/:id may change. Pricing and
// inventory are never re-run through this path.
type SaleUpdate struct {
	CustomerID    *uuid.UUID
	ClearCustomer bool
	PaymentMethod *string
	Status        *string
}

type UserRepository interface {
	FindActive(ctx context.Context, id uuid.UUID) (*database.User, error)
}

type BranchRepository interface {
	FindActive(ctx context.Context, id uuid.UUID) (*database.Branch, error)
}

type CustomerRepository interface {
	Find(ctx context.Context, id uuid.UUID) (*database.Customer, error)
}

type ProductRepository interface {
	FindActive(ctx context.Context, id uuid.UUID) (*database.Product, error)
}

// InventoryRepository is the stock ledger for (product, branch) records.
type InventoryRepository interface {
	Find(ctx context.Context, productID, branchID uuid.UUID) (*database.Inventory, error)
	// FindForUpdate locks the row for the remainder of the unit of work.
	FindForUpdate(ctx context.Context, productID, branchID uuid.UUID) (*database.Inventory, error)
	// Debit decrements current_stock as one conditional statement; it returns
	// ErrInsufficientStock when the decrement would drive the stock negative.
	Debit(ctx context.Context, productID, branchID uuid.UUID, quantity int) error
	// Credit increments current_stock. It never fails on quantity grounds.
	Credit(ctx context.Context, productID, branchID uuid.UUID, quantity int) error
}

type SaleRepository interface {
	// Create persists the sale with its items. A unique-constraint hit on
	// transaction_reference is reported as ErrDuplicateReference.
	Create(ctx context.Context, sale *database.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*database.Sale, error)
	// FindForUpdate loads the sale and its items with the sale row locked.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*database.Sale, error)
	List(ctx context.Context, filter SaleFilter) ([]database.Sale, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, update SaleUpdate) error
	MarkCancelled(ctx context.Context, id uuid.UUID) error
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *database.Payment) error
}

// Repos bundles the repositories sharing one persistence context.
type Repos interface {
	Users() UserRepository
	Branches() BranchRepository
	Customers() CustomerRepository
	Products() ProductRepository
	Inventory() InventoryRepository
	Sales() SaleRepository
	Payments() PaymentRepository
}

// TxScope executes a function within one atomic unit of work. If fn returns
// an error the unit of work rolls back and nothing it wrote is visible;
// otherwise every write commits together.
type TxScope interface {
	Execute(ctx context.Context, fn func(r Repos) error) error
}

// Store is the full persistence surface: direct (auto-commit) repository
// access for the read path plus transactional execution for mutations.
type Store interface {
	Repos
	TxScope
}
