package product

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

type ProductRequest struct {
	Name    string          `json:"name" binding:"required"`
	SKU     string          `json:"sku" binding:"required"`
	Price   decimal.Decimal `json:"price"`
	Cost    decimal.Decimal `json:"cost"`
	TaxRate decimal.Decimal `json:"tax_rate"`
}

func (r *ProductRequest) validate() string {
	if r.Price.IsNegative() {
		return "price cannot be negative"
	}
	if r.Cost.IsNegative() {
		return "cost cannot be negative"
	}
	if r.TaxRate.IsNegative() {
		return "tax_rate cannot be negative"
	}
	return ""
}

// List returns products, optionally filtered by a search term or active flag.
func (h *Handler) List(c *gin.Context) {
	query := h.db.Model(&database.Product{})

	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR sku ILIKE ?", like, like)
	}
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var products []database.Product
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products})
}

// Create adds a new product
func (h *Handler) Create(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	product := database.Product{
		Name:     req.Name,
		SKU:      req.SKU,
		Price:    req.Price,
		Cost:     req.Cost,
		TaxRate:  req.TaxRate,
		IsActive: true,
	}

	if err := h.db.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create product"})
		return
	}

	h.logger.LogCreate(c, "product", product.ID, map[string]interface{}{
		"name":  product.Name,
		"price": product.Price,
		"sku":   product.SKU,
	})

	c.JSON(http.StatusCreated, gin.H{"data": product})
}

// Get returns a single product
func (h *Handler) Get(c *gin.Context) {
	var product database.Product
	if err := h.db.First(&product, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Update modifies a product
func (h *Handler) Update(c *gin.Context) {
	var product database.Product
	if err := h.db.First(&product, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	oldValues := map[string]interface{}{
		"name":  product.Name,
		"price": product.Price,
		"cost":  product.Cost,
		"sku":   product.SKU,
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	product.Name = req.Name
	product.SKU = req.SKU
	product.Price = req.Price
	product.Cost = req.Cost
	product.TaxRate = req.TaxRate

	if err := h.db.Save(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update product"})
		return
	}

	h.logger.LogUpdate(c, "product", product.ID, oldValues, map[string]interface{}{
		"name":  product.Name,
		"price": product.Price,
		"cost":  product.Cost,
		"sku":   product.SKU,
	})

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Delete soft-deletes a product
func (h *Handler) Delete(c *gin.Context) {
	var product database.Product
	if err := h.db.First(&product, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	if err := h.db.Delete(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete product"})
		return
	}

	h.logger.LogDelete(c, "product", product.ID, map[string]interface{}{
		"name": product.Name,
		"sku":  product.SKU,
	})

	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}

// ToggleActive toggles a product's is_active status
func (h *Handler) ToggleActive(c *gin.Context) {
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var product database.Product
	if err := h.db.First(&product, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	product.IsActive = req.IsActive
	if err := h.db.Save(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update product"})
		return
	}

	h.logger.LogToggle(c, "product", product.ID, product.IsActive, product.Name)

	c.JSON(http.StatusOK, gin.H{"data": product})
}
