package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
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

type CreateStaffInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=admin manager cashier"`
	BranchID string `json:"branch_id"` // Optional, empty means all-branch access
}

type UpdateStaffInput struct {
	Name     string `json:"name"`
	Role     string `json:"role" binding:"omitempty,oneof=admin manager cashier"`
	BranchID string `json:"branch_id"` // "null" clears the assignment
	IsActive *bool  `json:"is_active"`
}

// ListStaff returns all staff members
func (h *Handler) ListStaff(c *gin.Context) {
	var staff []database.User
	if err := h.db.Preload("Branch").
		Where("role != 'owner'").
		Order("created_at DESC").
		Find(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch staff"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": staff})
}

// CreateStaff adds a new staff member
func (h *Handler) CreateStaff(c *gin.Context) {
	var input CreateStaffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing database.User
	if h.db.Where("email = ?", input.Email).First(&existing).Error == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	var branchID *uuid.UUID
	if input.BranchID != "" {
		parsed, err := uuid.Parse(input.BranchID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch_id"})
			return
		}
		var branch database.Branch
		if err := h.db.First(&branch, "id = ?", parsed).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "branch not found"})
			return
		}
		branchID = &parsed
	}

	staff := database.User{
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Name:         input.Name,
		Role:         input.Role,
		BranchID:     branchID,
		IsActive:     true,
	}

	if err := h.db.Create(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create staff"})
		return
	}

	h.logger.LogCreate(c, "staff", staff.ID, map[string]interface{}{
		"name":  staff.Name,
		"email": staff.Email,
		"role":  staff.Role,
	})

	c.JSON(http.StatusCreated, gin.H{"data": staff})
}

// UpdateStaff modifies staff details
func (h *Handler) UpdateStaff(c *gin.Context) {
	var staff database.User
	if err := h.db.First(&staff, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "staff not found"})
		return
	}

	if staff.Role == "owner" {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot edit owner account"})
		return
	}

	oldValues := map[string]interface{}{
		"name":      staff.Name,
		"role":      staff.Role,
		"is_active": staff.IsActive,
	}

	var input UpdateStaffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Name != "" {
		staff.Name = input.Name
	}
	if input.Role != "" {
		staff.Role = input.Role
	}
	if input.BranchID != "" {
		if input.BranchID == "null" {
			staff.BranchID = nil
		} else {
			parsed, err := uuid.Parse(input.BranchID)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch_id"})
				return
			}
			staff.BranchID = &parsed
		}
	}
	if input.IsActive != nil {
		staff.IsActive = *input.IsActive
	}

	if err := h.db.Save(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update staff"})
		return
	}

	h.logger.LogUpdate(c, "staff", staff.ID, oldValues, map[string]interface{}{
		"name":      staff.Name,
		"role":      staff.Role,
		"is_active": staff.IsActive,
	})

	c.JSON(http.StatusOK, gin.H{"data": staff})
}

// DeleteStaff removes a staff member (owner only)
func (h *Handler) DeleteStaff(c *gin.Context) {
	var staff database.User
	if err := h.db.First(&staff, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "staff not found"})
		return
	}

	if staff.Role == "owner" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete owner account"})
		return
	}

	if err := h.db.Delete(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete staff"})
		return
	}

	h.logger.LogDelete(c, "staff", staff.ID, map[string]interface{}{
		"name":  staff.Name,
		"email": staff.Email,
		"role":  staff.Role,
	})

	c.JSON(http.StatusOK, gin.H{"message": "staff deleted"})
}

// GetActivityLogs retrieves the most recent audit entries
func (h *Handler) GetActivityLogs(c *gin.Context) {
	var logs []database.ActivityLog
	if err := h.db.Preload("User").
		Order("created_at DESC").
		Limit(100).
		Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch activity logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
