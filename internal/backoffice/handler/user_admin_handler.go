package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/repository"
	"github.com/vitrino/marketplace/internal/service"
)

// UserAdminHandler serves /admin/users endpoints.
type UserAdminHandler struct {
	userRepo *repository.UserRepository
	ledger   *service.LedgerService
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(userRepo *repository.UserRepository, ledger *service.LedgerService) *UserAdminHandler {
	return &UserAdminHandler{userRepo: userRepo, ledger: ledger}
}

// List godoc
// GET /admin/users?page=1&limit=50
func (h *UserAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	users, err := h.userRepo.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, users, len(users), page, limit)
}

// Detail godoc
// GET /admin/users/:id
func (h *UserAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}

	ctx := c.Request.Context()
	u, err := h.userRepo.GetByID(ctx, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	wallet, err := h.ledger.GetWalletByOwner(ctx, id)
	if err != nil && !domain.IsNotFound(err) {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"user":   u,
		"wallet": wallet,
	})
}

// Suspend godoc
// POST /admin/users/:id/suspend
func (h *UserAdminHandler) Suspend(c *gin.Context) {
	h.setActive(c, false, "suspended")
}

// Activate godoc
// POST /admin/users/:id/activate
func (h *UserAdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true, "active")
}

func (h *UserAdminHandler) setActive(c *gin.Context, active bool, label string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	if err := h.userRepo.SetActive(c.Request.Context(), id, active); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": id, "status": label})
}

// SetRole godoc
// POST /admin/users/:id/role
// Body: {"role":"finance"}
func (h *UserAdminHandler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	role := domain.UserRole(body.Role)
	switch role {
	case domain.RoleCustomer, domain.RoleOwner, domain.RoleAdmin, domain.RoleFinance, domain.RoleReadOnly:
	default:
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "unknown role")
		return
	}

	if err := h.userRepo.SetRole(c.Request.Context(), id, role); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": id, "role": role})
}
