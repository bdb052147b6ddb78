package customer

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

type CustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// List returns customers, optionally filtered by a search term.
func (h *Handler) List(c *gin.Context) {
	query := h.db.Model(&database.Customer{})
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR phone ILIKE ? OR email ILIKE ?", like, like, like)
	}

	var customers []database.Customer
	if err := query.Order("name ASC").Find(&customers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch customers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": customers})
}

// Create adds a new customer
func (h *Handler) Create(c *gin.Context) {
	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer := database.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	}

	if err := h.db.Create(&customer).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create customer"})
		return
	}

	h.logger.LogCreate(c, "customer", customer.ID, map[string]interface{}{
		"name":  customer.Name,
		"phone": customer.Phone,
		"email": customer.Email,
	})

	c.JSON(http.StatusCreated, gin.H{"data": customer})
}

// Get returns a single customer
func (h *Handler) Get(c *gin.Context) {
	var customer database.Customer
	if err := h.db.First(&customer, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": customer})
}

// Update modifies a customer
func (h *Handler) Update(c *gin.Context) {
	var customer database.Customer
	if err := h.db.First(&customer, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
		return
	}

	oldValues := map[string]interface{}{
		"name":    customer.Name,
		"phone":   customer.Phone,
		"email":   customer.Email,
		"address": customer.Address,
	}

	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer.Name = req.Name
	customer.Phone = req.Phone
	customer.Email = req.Email
	customer.Address = req.Address

	if err := h.db.Save(&customer).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update customer"})
		return
	}

	h.logger.LogUpdate(c, "customer", customer.ID, oldValues, map[string]interface{}{
		"name":    customer.Name,
		"phone":   customer.Phone,
		"email":   customer.Email,
		"address": customer.Address,
	})

	c.JSON(http.StatusOK, gin.H{"data": customer})
}

// Delete soft-deletes a customer
func (h *Handler) Delete(c *gin.Context) {
	var customer database.Customer
	if err := h.db.First(&customer, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
		return
	}

	if err := h.db.Delete(&customer).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete customer"})
		return
	}

	h.logger.LogDelete(c, "customer", customer.ID, map[string]interface{}{
		"name":  customer.Name,
		"phone": customer.Phone,
	})

	c.JSON(http.StatusOK, gin.H{"message": "customer deleted"})
}

// GetStats returns purchase statistics for one customer.
func (h *Handler) GetStats(c *gin.Context) {
	var stats struct {
		TotalSales int64           `json:"total_sales"`
		TotalSpent decimal.Decimal `json:"total_spent"`
	}

	h.db.Model(&database.Sale{}).
		Select("COUNT(*) as total_sales, COALESCE(SUM(total_amount), 0) as total_spent").
		Where("customer_id = ? AND status = ?", c.Param("id"), database.SaleStatusCompleted).
		Scan(&stats)

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
