package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailcore/retailpos-backend/internal/pricing"
	"github.com/retailcore/retailpos-backend/internal/store"
	"github.com/retailcore/retailpos-backend/internal/txref"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

// maxReferenceAttempts bounds regeneration when a transaction reference
// collides with an existing one.
const maxReferenceAttempts = 3

// Coordinator runs sale creation and cancellation as single units of work:
// validation, pricing, inventory debits, and row inserts either all commit
// or all roll back.
type Coordinator struct {
	store  store.Store
	calc   pricing.Calculator
	logger *zap.Logger
}

func NewCoordinator(st store.Store, calc pricing.Calculator, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{store: st, calc: calc, logger: logger}
}

// ItemInput is one requested line. UnitPrice, when set, asks for a manual
// price override; the catalog price is authoritative otherwise.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice *decimal.Decimal
}

// CreateInput carries everything needed to create one sale.
type CreateInput struct {
	BranchID       uuid.UUID
	UserID         uuid.UUID
	CustomerID     *uuid.UUID
	PaymentMethod  string
	DiscountAmount decimal.Decimal
	Items          []ItemInput
	// ActorRole decides whether a manual unit price override is honored.
	ActorRole string
}

func canOverridePrice(role string) bool {
	switch role {
	case "owner", "admin", "manager":
		return true
	}
	return false
}

func (in CreateInput) validate() error {
	if in.BranchID == uuid.Nil {
		return &InvalidInputError{Reason: "branch_id is required"}
	}
	if in.UserID == uuid.Nil {
		return &InvalidInputError{Reason: "user_id is required"}
	}
	if len(in.Items) == 0 {
		return &InvalidInputError{Reason: "items must not be empty"}
	}
	for i, item := range in.Items {
		if item.ProductID == uuid.Nil {
			return &InvalidInputError{Reason: fmt.Sprintf("items[%d]: product_id is required", i)}
		}
		if item.Quantity <= 0 {
			return &InvalidInputError{Reason: fmt.Sprintf("items[%d]: quantity must be positive", i)}
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return &InvalidInputError{Reason: fmt.Sprintf("items[%d]: unit_price must not be negative", i)}
		}
	}
	if in.DiscountAmount.IsNegative() {
		return &InvalidInputError{Reason: "discount_amount must not be negative"}
	}
	return nil
}

// Create processes a new sale. On any failure past validation the entire unit
// of work rolls back: no sale, no lines, no inventory mutation, no payment.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (*database.Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "cash"
	}

	var saleID uuid.UUID
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		reference := txref.New(time.Now())

		err := c.store.Execute(ctx, func(r store.Repos) error {
			id, err := c.createInScope(ctx, r, in, reference)
			if err != nil {
				return err
			}
			saleID = id
			return nil
		})
		if errors.Is(err, store.ErrDuplicateReference) {
			c.logger.Warn("transaction reference collision, regenerating",
				zap.String("reference", reference),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		c.logger.Info("sale created",
			zap.String("sale_id", saleID.String()),
			zap.String("reference", reference),
			zap.String("branch_id", in.BranchID.String()))
		return c.store.Sales().FindByID(ctx, saleID)
	}

	return nil, fmt.Errorf("could not allocate a unique transaction reference after %d attempts", maxReferenceAttempts)
}

func (c *Coordinator) createInScope(ctx context.Context, r store.Repos, in CreateInput, reference string) (uuid.UUID, error) {
	// Existence checks first; nothing is written until they all pass.
	user, err := r.Users().FindActive(ctx, in.UserID)
	if err != nil {
		return uuid.Nil, notFound(err, "user")
	}
	if _, err := r.Branches().FindActive(ctx, in.BranchID); err != nil {
		return uuid.Nil, notFound(err, "branch")
	}
	if in.CustomerID != nil {
		if _, err := r.Customers().Find(ctx, *in.CustomerID); err != nil {
			return uuid.Nil, notFound(err, "customer")
		}
	}

	type pricedLine struct {
		item database.SaleItem
	}
	lines := make([]pricedLine, 0, len(in.Items))
	subtotal := decimal.Zero

	for _, item := range in.Items {
		product, err := r.Products().FindActive(ctx, item.ProductID)
		if err != nil {
			return uuid.Nil, notFound(err, "product")
		}

		// Lock the inventory row for the remainder of the unit of work so the
		// stock check and the decrement below are one serialized step.
		inv, err := r.Inventory().FindForUpdate(ctx, item.ProductID, in.BranchID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return uuid.Nil, &InsufficientStockError{ProductName: product.Name, Requested: item.Quantity, Available: 0}
			}
			return uuid.Nil, err
		}
		if inv.CurrentStock < item.Quantity {
			return uuid.Nil, &InsufficientStockError{
				ProductName: product.Name,
				Requested:   item.Quantity,
				Available:   inv.CurrentStock,
			}
		}

		unitPrice := product.Price
		if item.UnitPrice != nil && canOverridePrice(in.ActorRole) {
			unitPrice = *item.UnitPrice
			c.logger.Info("manual price override applied",
				zap.String("user_id", user.ID.String()),
				zap.String("product_id", product.ID.String()),
				zap.String("catalog_price", product.Price.String()),
				zap.String("override_price", unitPrice.String()))
		}

		lineSubtotal := c.calc.Line(item.Quantity, unitPrice)
		subtotal = subtotal.Add(lineSubtotal)

		lines = append(lines, pricedLine{item: database.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    lineSubtotal,
			Discount:    decimal.Zero,
			Total:       lineSubtotal,
		}})
	}

	if in.DiscountAmount.GreaterThan(subtotal) {
		return uuid.Nil, &InvalidInputError{Reason: "discount_amount exceeds subtotal"}
	}
	tax, total := c.calc.Totals(subtotal, in.DiscountAmount)

	// Debit after every line passed validation so a failing line never leaves
	// earlier decrements behind (the rollback covers the race-window case).
	for i, line := range lines {
		if err := r.Inventory().Debit(ctx, line.item.ProductID, in.BranchID, line.item.Quantity); err != nil {
			if errors.Is(err, store.ErrInsufficientStock) {
				return uuid.Nil, &InsufficientStockError{
					ProductName: line.item.ProductName,
					Requested:   line.item.Quantity,
					Available:   stockNow(ctx, r, line.item.ProductID, in.BranchID),
				}
			}
			return uuid.Nil, fmt.Errorf("debit stock for item %d: %w", i, err)
		}
	}

	items := make([]database.SaleItem, len(lines))
	for i, line := range lines {
		items[i] = line.item
	}
	record := &database.Sale{
		CustomerID:           in.CustomerID,
		BranchID:             in.BranchID,
		UserID:               in.UserID,
		Items:                items,
		Subtotal:             subtotal,
		DiscountAmount:       in.DiscountAmount,
		TaxAmount:            tax,
		TotalAmount:          total,
		PaymentMethod:        in.PaymentMethod,
		TransactionReference: reference,
		Status:               database.SaleStatusCompleted,
	}
	if err := r.Sales().Create(ctx, record); err != nil {
		return uuid.Nil, err
	}

	if in.CustomerID != nil {
		payment := &database.Payment{
			SaleID:               record.ID,
			TransactionReference: reference,
			Amount:               total,
			Method:               in.PaymentMethod,
			Status:               "paid",
		}
		if err := r.Payments().Create(ctx, payment); err != nil {
			return uuid.Nil, fmt.Errorf("create payment: %w", err)
		}
	}

	return record.ID, nil
}

// Cancel reverses the inventory effect of a completed sale and flips its
// status, all in one unit of work. A second cancel is rejected without
// touching inventory.
func (c *Coordinator) Cancel(ctx context.Context, saleID uuid.UUID) (*database.Sale, error) {
	err := c.store.Execute(ctx, func(r store.Repos) error {
		record, err := r.Sales().FindForUpdate(ctx, saleID)
		if err != nil {
			return notFound(err, "sale")
		}
		if record.Status == database.SaleStatusCancelled {
			return ErrAlreadyCancelled
		}

		for _, item := range record.Items {
			if err := r.Inventory().Credit(ctx, item.ProductID, record.BranchID, item.Quantity); err != nil {
				return fmt.Errorf("credit stock for %s: %w", item.ProductName, err)
			}
		}

		return r.Sales().MarkCancelled(ctx, saleID)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("sale cancelled", zap.String("sale_id", saleID.String()))
	return c.store.Sales().FindByID(ctx, saleID)
}

func notFound(err error, entity string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Entity: entity}
	}
	return err
}

func stockNow(ctx context.Context, r store.Repos, productID, branchID uuid.UUID) int {
	inv, err := r.Inventory().Find(ctx, productID, branchID)
	if err != nil {
		return 0
	}
	return inv.CurrentStock
}
