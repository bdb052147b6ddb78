package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model for all entities
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Branch represents a store location
type Branch struct {
	BaseModel
	Name     string `gorm:"not null" json:"name"`
	Code     string `gorm:"uniqueIndex;not null" json:"code"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// User represents a system user
type User struct {
	BaseModel
	BranchID     *uuid.UUID `gorm:"type:uuid" json:"branch_id"` // nil for owner/admin (all-branch access)
	Branch       *Branch    `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	GoogleID     string     `gorm:"index" json:"-"`
	PasswordHash string     `json:"-"` // Optional for OAuth users
	Name         string     `gorm:"not null" json:"name"`
	Role         string     `gorm:"default:'cashier'" json:"role"` // owner, admin, manager, cashier
	IsActive     bool       `gorm:"default:true" json:"is_active"`
}

// Customer represents a buyer; sales without a customer are walk-in sales
type Customer struct {
	BaseModel
	Name    string `gorm:"not null" json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Product represents a sellable item
type Product struct {
	BaseModel
	Name     string          `gorm:"not null" json:"name"`
	SKU      string          `gorm:"uniqueIndex;not null" json:"sku"`
	Price    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Cost     decimal.Decimal `gorm:"type:numeric(12,2)" json:"cost"`
	TaxRate  decimal.Decimal `gorm:"type:numeric(5,4);default:0" json:"tax_rate"`
	IsActive bool            `gorm:"default:true" json:"is_active"`
}

// Inventory holds the available quantity of one product at one branch.
// CurrentStock is mutated only through the ledger debit/credit operations.
type Inventory struct {
	BaseModel
	ProductID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_product_branch" json:"product_id"`
	Product       Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	BranchID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_product_branch" json:"branch_id"`
	Branch        Branch    `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	CurrentStock  int       `gorm:"not null;default:0;check:current_stock >= 0" json:"current_stock"`
	ReservedStock int       `gorm:"not null;default:0" json:"reserved_stock"`
	MinimumStock  int       `gorm:"default:0" json:"minimum_stock"`
	MaximumStock  int       `gorm:"default:0" json:"maximum_stock"`
}

// Sale represents one sale transaction
type Sale struct {
	BaseModel
	CustomerID           *uuid.UUID      `gorm:"type:uuid" json:"customer_id"`
	Customer             *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	BranchID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"branch_id"`
	Branch               Branch          `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	UserID               uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User                 User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items                []SaleItem      `gorm:"foreignKey:SaleID" json:"items"`
	Subtotal             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DiscountAmount       decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"discount_amount"`
	TaxAmount            decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"tax_amount"`
	TotalAmount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	PaymentMethod        string          `gorm:"default:'cash'" json:"payment_method"` // cash, card, transfer, qris
	TransactionReference string          `gorm:"uniqueIndex;not null" json:"transaction_reference"`
	Status               string          `gorm:"default:'completed'" json:"status"` // completed, cancelled
}

// SaleItem is one line within a sale. Product name, SKU, and unit price are
// snapshotted at sale time so later catalog edits do not rewrite history.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Product     Product         `gorm:"foreignKey:ProductID" json:"product"`
	ProductName string          `gorm:"not null" json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Discount    decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"discount"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
}

// Payment is created alongside a sale when a customer is attached
type Payment struct {
	BaseModel
	SaleID               uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	TransactionReference string          `gorm:"not null;index" json:"transaction_reference"`
	Amount               decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method               string          `json:"method"`
	Status               string          `gorm:"default:'paid'" json:"status"`
}

// ActivityLog tracks staff actions for audit trail
type ActivityLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID" json:"user"`
	BranchID   *uuid.UUID `gorm:"type:uuid;index" json:"branch_id"`
	Action     string     `gorm:"not null" json:"action"` // login, sale, cancel_sale, stock_adjust, price_override, etc.
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `gorm:"type:uuid" json:"entity_id"`
	Details    string     `gorm:"type:text" json:"details"`
	IPAddress  string     `json:"ip_address"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Sale status values
const (
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Branch{},
		&User{},
		&Customer{},
		&Product{},
		&Inventory{},
		&Sale{},
		&SaleItem{},
		&Payment{},
		&ActivityLog{},
	)
}
