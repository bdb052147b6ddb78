package inventory

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailcore/retailpos-backend/internal/store"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

type Handler struct {
	db    *gorm.DB
	store store.Store
}

func NewHandler(db *gorm.DB, st store.Store) *Handler {
	return &Handler{db: db, store: st}
}

type InventoryItem struct {
	ProductID    uuid.UUID       `json:"product_id"`
	BranchID     uuid.UUID       `json:"branch_id"`
	ProductName  string          `json:"product_name"`
	SKU          string          `json:"sku"`
	BranchName   string          `json:"branch_name"`
	CurrentStock int             `json:"current_stock"`
	MinimumStock int             `json:"minimum_stock"`
	Cost         decimal.Decimal `json:"cost"`
	StockValue   decimal.Decimal `json:"stock_value"`
	Status       string          `json:"status"` // ok, low, out
}

type InventorySummary struct {
	TotalItems      int             `json:"total_items"`
	TotalStockValue decimal.Decimal `json:"total_stock_value"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
}

func stockStatus(current, minimum int) string {
	switch {
	case current <= 0:
		return "out"
	case current < minimum:
		return "low"
	default:
		return "ok"
	}
}

func (h *Handler) scopedQuery(c *gin.Context) (*gorm.DB, bool) {
	q := h.db.Model(&database.Inventory{})
	role := c.GetString("role")
	if role == "owner" || role == "admin" {
		if raw := c.Query("branch_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, false
			}
			q = q.Where("branch_id = ?", id)
		}
		return q, true
	}
	if id, err := uuid.Parse(c.GetString("branch_id")); err == nil && id != uuid.Nil {
		return q.Where("branch_id = ?", id), true
	}
	// A non-privileged caller without a branch claim sees nothing.
	return nil, false
}

// GetInventory returns stock levels per product and branch.
func (h *Handler) GetInventory(c *gin.Context) {
	q, ok := h.scopedQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch scope"})
		return
	}
	filter := c.Query("filter") // all, low, out

	var records []database.Inventory
	q.Preload("Product").Preload("Branch").
		Joins("JOIN products ON products.id = inventories.product_id").
		Where("products.is_active = ?", true).
		Order("products.name ASC").
		Find(&records)

	items := make([]InventoryItem, 0, len(records))
	for _, rec := range records {
		status := stockStatus(rec.CurrentStock, rec.MinimumStock)
		if filter == "low" && status != "low" {
			continue
		}
		if filter == "out" && status != "out" {
			continue
		}

		items = append(items, InventoryItem{
			ProductID:    rec.ProductID,
			BranchID:     rec.BranchID,
			ProductName:  rec.Product.Name,
			SKU:          rec.Product.SKU,
			BranchName:   rec.Branch.Name,
			CurrentStock: rec.CurrentStock,
			MinimumStock: rec.MinimumStock,
			Cost:         rec.Product.Cost,
			StockValue:   rec.Product.Cost.Mul(decimal.NewFromInt(int64(rec.CurrentStock))),
			Status:       status,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetSummary returns aggregate stock counts and valuation.
func (h *Handler) GetSummary(c *gin.Context) {
	q, ok := h.scopedQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch scope"})
		return
	}

	var summary InventorySummary

	var records []database.Inventory
	q.Preload("Product").Find(&records)

	total := decimal.Zero
	for _, rec := range records {
		summary.TotalItems++
		total = total.Add(rec.Product.Cost.Mul(decimal.NewFromInt(int64(rec.CurrentStock))))
		switch stockStatus(rec.CurrentStock, rec.MinimumStock) {
		case "low":
			summary.LowStockCount++
		case "out":
			summary.OutOfStockCount++
		}
	}
	summary.TotalStockValue = total

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

type AdjustStockRequest struct {
	BranchID uuid.UUID `json:"branch_id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required"` // can be negative
	Note     string    `json:"note"`
}

// AdjustStock applies a manual stock correction for a product at a branch.
// Negative adjustments use the same guarded decrement as sales, so stock
// never drops below zero.
func (h *Handler) AdjustStock(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := c.GetString("role")
	if role != "owner" && role != "admin" {
		own, err := uuid.Parse(c.GetString("branch_id"))
		if err != nil || own == uuid.Nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "no branch assigned"})
			return
		}
		if own != req.BranchID {
			c.JSON(http.StatusForbidden, gin.H{"error": "cannot adjust stock for another branch"})
			return
		}
	}

	ctx := c.Request.Context()
	if req.Quantity >= 0 {
		err = h.store.Inventory().Credit(ctx, productID, req.BranchID, req.Quantity)
	} else {
		err = h.store.Inventory().Debit(ctx, productID, req.BranchID, -req.Quantity)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "inventory record not found"})
		return
	case errors.Is(err, store.ErrInsufficientStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": "stock cannot go below zero"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to adjust stock"})
		return
	}

	record, err := h.store.Inventory().Find(ctx, productID, req.BranchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load inventory"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

// GetAlerts returns inventory records that need restocking attention.
func (h *Handler) GetAlerts(c *gin.Context) {
	q, ok := h.scopedQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch scope"})
		return
	}

	var lowStock []database.Inventory
	q.Session(&gorm.Session{}).
		Preload("Product").Preload("Branch").
		Where("current_stock > 0 AND current_stock < minimum_stock").
		Order("current_stock ASC").
		Limit(10).
		Find(&lowStock)

	var outOfStock []database.Inventory
	q.Session(&gorm.Session{}).
		Preload("Product").Preload("Branch").
		Where("current_stock <= 0").
		Limit(10).
		Find(&outOfStock)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"low_stock":    lowStock,
			"out_of_stock": outOfStock,
		},
	})
}
