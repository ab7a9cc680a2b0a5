package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/service"
)

// ApprovalHandler serves the /admin/approvals review queue.
type ApprovalHandler struct {
	approvalSvc *service.ApprovalService
}

// NewApprovalHandler creates an ApprovalHandler.
func NewApprovalHandler(approvalSvc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalSvc: approvalSvc}
}

// ListPending godoc
// GET /admin/approvals?kind=publication&page=1&limit=50
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	kind := domain.ApprovalKind(c.Query("kind"))
	page, limit := adminPagination(c)

	reqs, err := h.approvalSvc.ListPending(c.Request.Context(), kind, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, reqs, len(reqs), page, limit)
}

// Detail godoc
// GET /admin/approvals/:id
func (h *ApprovalHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid approval id")
		return
	}
	req, err := h.approvalSvc.Get(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, req)
}

// Approve godoc
// POST /admin/approvals/:id/approve
// Body: {"response":"looks good"}
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, true)
}

// Reject godoc
// POST /admin/approvals/:id/reject
// Body: {"response":"product photos missing"}
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, false)
}

// decide applies a staff decision. The implied market transition and the
// decision row commit together; a second decision on the same request gets
// 409.
func (h *ApprovalHandler) decide(c *gin.Context, approved bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid approval id")
		return
	}
	var body struct {
		Response string `json:"response"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	err = h.approvalSvc.Decide(c.Request.Context(), id, adminUserID(c), approved, body.Response)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	status := domain.ApprovalRejected
	if approved {
		status = domain.ApprovalApproved
	}
	respondSuccess(c, http.StatusOK, gin.H{"approval_id": id, "status": status})
}
