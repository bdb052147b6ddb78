package sale

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailcore/retailpos-backend/internal/store"
	"github.com/retailcore/retailpos-backend/pkg/activitylog"
	"github.com/retailcore/retailpos-backend/pkg/database"
)

type Handler struct {
	coordinator *Coordinator
	store       store.Store
	audit       *activitylog.Logger
}

func NewHandler(coordinator *Coordinator, st store.Store, audit *activitylog.Logger) *Handler {
	return &Handler{coordinator: coordinator, store: st, audit: audit}
}

type CreateItemRequest struct {
	ProductID uuid.UUID        `json:"product_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type CreateSaleRequest struct {
	CustomerID     *uuid.UUID          `json:"customer_id"`
	UserID         *uuid.UUID          `json:"user_id"`
	BranchID       uuid.UUID           `json:"branch_id" binding:"required"`
	PaymentMethod  string              `json:"payment_method"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	Items          []CreateItemRequest `json:"items" binding:"required,min=1,dive"`
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// Create processes a new sale transaction
func (h *Handler) Create(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	actorID, _ := uuid.Parse(c.GetString("user_id"))
	userID := actorID
	if req.UserID != nil {
		userID = *req.UserID
	}

	items := make([]ItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = ItemInput{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}

	created, err := h.coordinator.Create(c.Request.Context(), CreateInput{
		BranchID:       req.BranchID,
		UserID:         userID,
		CustomerID:     req.CustomerID,
		PaymentMethod:  req.PaymentMethod,
		DiscountAmount: req.DiscountAmount,
		Items:          items,
		ActorRole:      c.GetString("role"),
	})
	if err != nil {
		if IsClientError(err) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, "failed to create sale")
		return
	}

	h.audit.LogActivity(c, "sale", "sale", &created.ID, map[string]interface{}{
		"reference": created.TransactionReference,
		"total":     created.TotalAmount,
	})

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": created})
}

// List returns paginated, filtered sales. Cashiers and managers only see
// their own branch; owners and admins see everything.
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := store.SaleFilter{
		Page:          page,
		Limit:         limit,
		PaymentMethod: c.Query("payment_method"),
	}
	if v := c.Query("branch_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.BranchID = &id
		}
	}
	if v := c.Query("user_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.UserID = &id
		}
	}
	if v := c.Query("customer_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.CustomerID = &id
		}
	}
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end := t.Add(24*time.Hour - time.Nanosecond)
			filter.DateTo = &end
		}
	}

	// Branch scoping: non-privileged roles are pinned to their own branch
	// regardless of the requested filter.
	scope, scoped, err := callerBranchScope(c)
	if err != nil {
		fail(c, http.StatusForbidden, "no branch assigned")
		return
	}
	if scoped {
		filter.BranchID = &scope
	}

	sales, total, err := h.store.Sales().List(c.Request.Context(), filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to fetch sales")
		return
	}

	pages := int(math.Ceil(float64(total) / float64(limit)))
	c.JSON(http.StatusOK, gin.H{
		"data": sales,
		"pagination": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
			"pages": pages,
		},
	})
}

// Get returns a single expanded sale
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid sale id")
		return
	}

	record, err := h.store.Sales().FindByID(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, "sale not found")
		return
	}

	scope, scoped, err := callerBranchScope(c)
	if err != nil {
		fail(c, http.StatusForbidden, "no branch assigned")
		return
	}
	if scoped && record.BranchID != scope {
		fail(c, http.StatusForbidden, "sale belongs to another branch")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

type UpdateSaleRequest struct {
	CustomerID    *string `json:"customer_id"` // "null" detaches the customer
	PaymentMethod *string `json:"payment_method"`
	Status        *string `json:"status"`
}

// Update changes a limited set of sale fields. Pricing and inventory are
// never re-run here; cancellation goes through DELETE.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid sale id")
		return
	}

	var req UpdateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	current, err := h.store.Sales().FindByID(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, "sale not found")
		return
	}
	scope, scoped, err := callerBranchScope(c)
	if err != nil {
		fail(c, http.StatusForbidden, "no branch assigned")
		return
	}
	if scoped && current.BranchID != scope {
		fail(c, http.StatusForbidden, "sale belongs to another branch")
		return
	}

	if req.Status != nil {
		if *req.Status != database.SaleStatusCompleted && *req.Status != database.SaleStatusCancelled {
			fail(c, http.StatusBadRequest, "invalid status")
			return
		}
		// Status is one-way: a cancelled sale never goes back to completed.
		if current.Status == database.SaleStatusCancelled && *req.Status == database.SaleStatusCompleted {
			fail(c, http.StatusBadRequest, "cancelled sale cannot be reopened")
			return
		}
	}
	update := store.SaleUpdate{
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
	}
	if req.CustomerID != nil {
		if *req.CustomerID == "null" || *req.CustomerID == "" {
			update.ClearCustomer = true
		} else {
			cid, err := uuid.Parse(*req.CustomerID)
			if err != nil {
				fail(c, http.StatusBadRequest, "invalid customer id")
				return
			}
			if _, err := h.store.Customers().Find(c.Request.Context(), cid); err != nil {
				fail(c, http.StatusBadRequest, "customer not found")
				return
			}
			update.CustomerID = &cid
		}
	}
	if err := h.store.Sales().UpdateFields(c.Request.Context(), id, update); err != nil {
		fail(c, http.StatusInternalServerError, "failed to update sale")
		return
	}

	updated, err := h.store.Sales().FindByID(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to reload sale")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// Cancel reverses the sale's inventory effect and marks it cancelled
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid sale id")
		return
	}

	scope, scoped, err := callerBranchScope(c)
	if err != nil {
		fail(c, http.StatusForbidden, "no branch assigned")
		return
	}
	if scoped {
		record, err := h.store.Sales().FindByID(c.Request.Context(), id)
		if err != nil {
			fail(c, http.StatusNotFound, "sale not found")
			return
		}
		if record.BranchID != scope {
			fail(c, http.StatusForbidden, "sale belongs to another branch")
			return
		}
	}

	cancelled, err := h.coordinator.Cancel(c.Request.Context(), id)
	if err != nil {
		var notFoundErr *NotFoundError
		switch {
		case errors.As(err, &notFoundErr):
			fail(c, http.StatusNotFound, err.Error())
		case IsClientError(err):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, "failed to cancel sale")
		}
		return
	}

	h.audit.LogActivity(c, "cancel_sale", "sale", &id, map[string]interface{}{
		"reference": cancelled.TransactionReference,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cancelled})
}

var errNoBranch = errors.New("caller has no branch assigned")

// callerBranchScope returns the branch the caller is restricted to, if any.
// Owners and admins are unscoped; every other role must carry a valid branch
// claim or the request is rejected.
func callerBranchScope(c *gin.Context) (uuid.UUID, bool, error) {
	role := c.GetString("role")
	if role == "owner" || role == "admin" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(c.GetString("branch_id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false, errNoBranch
	}
	return id, true, nil
}
