// Package gormstore implements the store interfaces on PostgreSQL via GORM.
// Stock mutations are single conditional statements executed under row locks,
// so two concurrent sales can never both pass the stock check.
package gormstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/retailcore/retailpos-backend/internal/store"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

type Store struct {
	repos
}

func New(db *gorm.DB) *Store {
	return &Store{repos: repos{db: db}}
}

// Execute runs fn inside one database transaction. GORM commits when fn
// returns nil and rolls back otherwise, including on panic.
func (s *Store) Execute(ctx context.Context, fn func(r store.Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repos{db: tx})
	})
}

var _ store.Store = (*Store)(nil)

type repos struct {
	db *gorm.DB
}

func (r repos) Users() store.UserRepository          { return userRepo(r) }
func (r repos) Branches() store.BranchRepository     { return branchRepo(r) }
func (r repos) Customers() store.CustomerRepository  { return customerRepo(r) }
func (r repos) Products() store.ProductRepository    { return productRepo(r) }
func (r repos) Inventory() store.InventoryRepository { return inventoryRepo(r) }
func (r repos) Sales() store.SaleRepository          { return saleRepo(r) }
func (r repos) Payments() store.PaymentRepository    { return paymentRepo(r) }

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

type userRepo struct {
	db *gorm.DB
}

func (r userRepo) FindActive(ctx context.Context, id uuid.UUID) (*database.User, error) {
	var user database.User
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

type branchRepo struct {
	db *gorm.DB
}

func (r branchRepo) FindActive(ctx context.Context, id uuid.UUID) (*database.Branch, error) {
	var branch database.Branch
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&branch).Error; err != nil {
		return nil, translate(err)
	}
	return &branch, nil
}

type customerRepo struct {
	db *gorm.DB
}

func (r customerRepo) Find(ctx context.Context, id uuid.UUID) (*database.Customer, error) {
	var customer database.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

type productRepo struct {
	db *gorm.DB
}

func (r productRepo) FindActive(ctx context.Context, id uuid.UUID) (*database.Product, error) {
	var product database.Product
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

type inventoryRepo struct {
	db *gorm.DB
}

func (r inventoryRepo) Find(ctx context.Context, productID, branchID uuid.UUID) (*database.Inventory, error) {
	var inv database.Inventory
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&inv).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (r inventoryRepo) FindForUpdate(ctx context.Context, productID, branchID uuid.UUID) (*database.Inventory, error) {
	var inv database.Inventory
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&inv).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// Debit is a single check-and-decrement statement: the WHERE clause carries
// the non-negative floor, and an unmatched row means the stock was too low.
func (r inventoryRepo) Debit(ctx context.Context, productID, branchID uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&database.Inventory{}).
		Where("product_id = ? AND branch_id = ? AND current_stock >= ?", productID, branchID, quantity).
		UpdateColumn("current_stock", gorm.Expr("current_stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&database.Inventory{}).
			Where("product_id = ? AND branch_id = ?", productID, branchID).
			Count(&count)
		if count == 0 {
			return store.ErrNotFound
		}
		return store.ErrInsufficientStock
	}
	return nil
}

func (r inventoryRepo) Credit(ctx context.Context, productID, branchID uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&database.Inventory{}).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		UpdateColumn("current_stock", gorm.Expr("current_stock + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type saleRepo struct {
	db *gorm.DB
}

func (r saleRepo) Create(ctx context.Context, sale *database.Sale) error {
	if err := r.db.WithContext(ctx).Create(sale).Error; err != nil {
		if isDuplicateReference(err) {
			return store.ErrDuplicateReference
		}
		return err
	}
	return nil
}

// isDuplicateReference reports whether err is a unique-constraint violation
// on the transaction reference column.
func isDuplicateReference(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return strings.Contains(pgErr.ConstraintName, "transaction_reference")
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func (r saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*database.Sale, error) {
	var sale database.Sale
	if err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("User").
		Preload("Branch").
		Preload("Items").
		Preload("Items.Product").
		Where("id = ?", id).
		First(&sale).Error; err != nil {
		return nil, translate(err)
	}
	return &sale, nil
}

func (r saleRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*database.Sale, error) {
	var sale database.Sale
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sale).Error; err != nil {
		return nil, translate(err)
	}
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", id).
		Find(&sale.Items).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r saleRepo) List(ctx context.Context, filter store.SaleFilter) ([]database.Sale, int64, error) {
	query := r.db.WithContext(ctx).Model(&database.Sale{})

	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	var sales []database.Sale
	if err := query.
		Preload("Customer").
		Preload("User").
		Preload("Branch").
		Preload("Items").
		Preload("Items.Product").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&sales).Error; err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

func (r saleRepo) UpdateFields(ctx context.Context, id uuid.UUID, update store.SaleUpdate) error {
	fields := map[string]interface{}{}
	if update.ClearCustomer {
		fields["customer_id"] = nil
	} else if update.CustomerID != nil {
		fields["customer_id"] = *update.CustomerID
	}
	if update.PaymentMethod != nil {
		fields["payment_method"] = *update.PaymentMethod
	}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if len(fields) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&database.Sale{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r saleRepo) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&database.Sale{}).
		Where("id = ? AND status = ?", id, database.SaleStatusCompleted).
		Update("status", database.SaleStatusCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type paymentRepo struct {
	db *gorm.DB
}

func (r paymentRepo) Create(ctx context.Context, payment *database.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}
