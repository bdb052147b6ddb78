package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailcore/retailpos-backend/pkg/cache"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

const statsTTL = 60 * time.Second

type Handler struct {
	db    *gorm.DB
	cache cache.StatsCache
}

func NewHandler(db *gorm.DB, statsCache cache.StatsCache) *Handler {
	if statsCache == nil {
		statsCache = cache.NoopStatsCache{}
	}
	return &Handler{db: db, cache: statsCache}
}

type DashboardStats struct {
	TodaySales        decimal.Decimal `json:"today_sales"`
	TodayTransactions int             `json:"today_transactions"`
	TodayItemsSold    int             `json:"today_items_sold"`
	WeekSales         decimal.Decimal `json:"week_sales"`
	WeekTransactions  int             `json:"week_transactions"`
	MonthSales        decimal.Decimal `json:"month_sales"`
	MonthTransactions int             `json:"month_transactions"`
	TotalProducts     int             `json:"total_products"`
	LowStockItems     int             `json:"low_stock_items"`
}

type TopProduct struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	TotalQty    int             `json:"total_qty"`
	TotalSales  decimal.Decimal `json:"total_sales"`
}

// branchScope resolves which branch the caller may see. Owners and admins may
// ask for any branch via ?branch_id=; everyone else is pinned to their own.
func branchScope(c *gin.Context) (*uuid.UUID, bool) {
	role := c.GetString("role")
	if role == "owner" || role == "admin" {
		if raw := c.Query("branch_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, false
			}
			return &id, true
		}
		return nil, true
	}
	if id, err := uuid.Parse(c.GetString("branch_id")); err == nil && id != uuid.Nil {
		return &id, true
	}
	// A non-privileged caller without a branch claim sees nothing.
	return nil, false
}

func scopeKey(branchID *uuid.UUID) string {
	if branchID == nil {
		return "dashboard:stats:all"
	}
	return "dashboard:stats:" + branchID.String()
}

// GetStats returns sales statistics for today, the trailing week and the
// current month, plus product and low-stock counts.
func (h *Handler) GetStats(c *gin.Context) {
	branchID, ok := branchScope(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch scope"})
		return
	}

	key := scopeKey(branchID)
	if cached, found, err := h.cache.Get(c.Request.Context(), key); err == nil && found {
		var stats DashboardStats
		if json.Unmarshal(cached, &stats) == nil {
			c.JSON(http.StatusOK, gin.H{"data": stats})
			return
		}
	}

	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := todayStart.AddDate(0, 0, -7)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var stats DashboardStats
	stats.TodaySales, stats.TodayTransactions = h.salesSince(branchID, todayStart)
	stats.WeekSales, stats.WeekTransactions = h.salesSince(branchID, weekStart)
	stats.MonthSales, stats.MonthTransactions = h.salesSince(branchID, monthStart)

	itemsQ := h.db.Model(&database.SaleItem{}).
		Joins("JOIN sales ON sale_items.sale_id = sales.id").
		Where("sales.created_at >= ? AND sales.status = ?", todayStart, database.SaleStatusCompleted)
	if branchID != nil {
		itemsQ = itemsQ.Where("sales.branch_id = ?", *branchID)
	}
	itemsQ.Select("COALESCE(SUM(sale_items.quantity), 0)").Scan(&stats.TodayItemsSold)

	var totalProducts int64
	h.db.Model(&database.Product{}).Where("is_active = ?", true).Count(&totalProducts)
	stats.TotalProducts = int(totalProducts)

	var lowStock int64
	lowQ := h.db.Model(&database.Inventory{}).Where("current_stock < minimum_stock")
	if branchID != nil {
		lowQ = lowQ.Where("branch_id = ?", *branchID)
	}
	lowQ.Count(&lowStock)
	stats.LowStockItems = int(lowStock)

	if payload, err := json.Marshal(stats); err == nil {
		_ = h.cache.Set(c.Request.Context(), key, payload, statsTTL)
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (h *Handler) salesSince(branchID *uuid.UUID, since time.Time) (decimal.Decimal, int) {
	var result struct {
		Total decimal.Decimal
		Count int
	}
	q := h.db.Model(&database.Sale{}).
		Select("COALESCE(SUM(total_amount), 0) as total, COUNT(*) as count").
		Where("created_at >= ? AND status = ?", since, database.SaleStatusCompleted)
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	q.Scan(&result)
	return result.Total, result.Count
}

// GetTopProducts returns the five best selling products this month.
func (h *Handler) GetTopProducts(c *gin.Context) {
	branchID, ok := branchScope(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch scope"})
		return
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var topProducts []TopProduct
	q := h.db.Model(&database.SaleItem{}).
		Select("sale_items.product_id, sale_items.product_name, SUM(sale_items.quantity) as total_qty, SUM(sale_items.subtotal) as total_sales").
		Joins("JOIN sales ON sale_items.sale_id = sales.id").
		Where("sales.created_at >= ? AND sales.status = ?", monthStart, database.SaleStatusCompleted)
	if branchID != nil {
		q = q.Where("sales.branch_id = ?", *branchID)
	}
	q.Group("sale_items.product_id, sale_items.product_name").
		Order("total_qty DESC").
		Limit(5).
		Scan(&topProducts)

	c.JSON(http.StatusOK, gin.H{"data": topProducts})
}

// GetRecentSales returns the five latest sales in scope.
func (h *Handler) GetRecentSales(c *gin.Context) {
	branchID, ok := branchScope(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch scope"})
		return
	}

	var sales []database.Sale
	q := h.db.Preload("Items").Preload("Customer").Order("created_at DESC").Limit(5)
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	q.Find(&sales)

	c.JSON(http.StatusOK, gin.H{"data": sales})
}
