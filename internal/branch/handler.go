package branch

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailcore/retailpos-backend/pkg/activitylog"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		db:     db,
		logger: activitylog.NewLogger(db),
	}
}

type BranchRequest struct {
	Name    string `json:"name" binding:"required"`
	Code    string `json:"code" binding:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// List returns all branches
func (h *Handler) List(c *gin.Context) {
	var branches []database.Branch
	if err := h.db.Order("created_at ASC").Find(&branches).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch branches"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": branches})
}

// Create adds a new branch
func (h *Handler) Create(c *gin.Context) {
	var req BranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	branch := database.Branch{
		Name:     req.Name,
		Code:     req.Code,
		Address:  req.Address,
		Phone:    req.Phone,
		IsActive: true,
	}

	if err := h.db.Create(&branch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create branch"})
		return
	}

	h.logger.LogCreate(c, "branch", branch.ID, map[string]interface{}{
		"name": branch.Name,
		"code": branch.Code,
	})

	c.JSON(http.StatusCreated, gin.H{"data": branch})
}

// Get returns a single branch
func (h *Handler) Get(c *gin.Context) {
	var branch database.Branch
	if err := h.db.First(&branch, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "branch not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": branch})
}

// Update modifies a branch
func (h *Handler) Update(c *gin.Context) {
	var branch database.Branch
	if err := h.db.First(&branch, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "branch not found"})
		return
	}

	oldValues := map[string]interface{}{
		"name":    branch.Name,
		"code":    branch.Code,
		"address": branch.Address,
		"phone":   branch.Phone,
	}

	var req BranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	branch.Name = req.Name
	branch.Code = req.Code
	branch.Address = req.Address
	branch.Phone = req.Phone

	if err := h.db.Save(&branch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update branch"})
		return
	}

	h.logger.LogUpdate(c, "branch", branch.ID, oldValues, map[string]interface{}{
		"name":    branch.Name,
		"code":    branch.Code,
		"address": branch.Address,
		"phone":   branch.Phone,
	})

	c.JSON(http.StatusOK, gin.H{"data": branch})
}

// Delete removes a branch. The last branch cannot be deleted.
func (h *Handler) Delete(c *gin.Context) {
	var count int64
	h.db.Model(&database.Branch{}).Count(&count)
	if count <= 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete the only branch"})
		return
	}

	var branch database.Branch
	if err := h.db.First(&branch, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "branch not found"})
		return
	}

	if err := h.db.Delete(&branch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete branch"})
		return
	}

	h.logger.LogDelete(c, "branch", branch.ID, map[string]interface{}{
		"name": branch.Name,
		"code": branch.Code,
	})

	c.JSON(http.StatusOK, gin.H{"message": "branch deleted"})
}

// GetStats returns today's and this month's sales for one branch.
func (h *Handler) GetStats(c *gin.Context) {
	branchID := c.Param("id")

	var todaySales decimal.Decimal
	h.db.Model(&database.Sale{}).
		Where("branch_id = ? AND status = ? AND DATE(created_at) = CURRENT_DATE", branchID, database.SaleStatusCompleted).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&todaySales)

	var todayCount int64
	h.db.Model(&database.Sale{}).
		Where("branch_id = ? AND status = ? AND DATE(created_at) = CURRENT_DATE", branchID, database.SaleStatusCompleted).
		Count(&todayCount)

	var monthSales decimal.Decimal
	h.db.Model(&database.Sale{}).
		Where("branch_id = ? AND status = ? AND DATE_TRUNC('month', created_at) = DATE_TRUNC('month', CURRENT_DATE)",
			branchID, database.SaleStatusCompleted).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&monthSales)

	c.JSON(http.StatusOK, gin.H{
		"branch_id":        branchID,
		"today_sales":      todaySales,
		"today_sale_count": todayCount,
		"month_sales":      monthSales,
	})
}
