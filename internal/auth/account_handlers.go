package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/audit"
	"github.com/noah-isme/toko-storefront/internal/common"
)

// AccountHandler serves /api/v1/admin/accounts. Mutations are audited
// without the password fields.
type AccountHandler struct {
	Accounts *AccountService
	Audit    *audit.Service
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// List handles GET /admin/accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := ParseAccountQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, err := h.Accounts.List(r.Context(), q)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       page.Items,
		"roles":      h.Accounts.Roles(),
		"pagination": page.Pagination,
	})
}

// Roles handles GET /admin/accounts/roles.
func (h *AccountHandler) Roles(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Accounts.Roles()})
}

// Get handles GET /admin/accounts/{id}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.Accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": user})
}

// Create handles POST /admin/accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AccountInput
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	user, err := h.Accounts.Create(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.record(r, "account.create", user.ID, http.StatusCreated, map[string]any{"email": user.Email, "role": user.Role})
	common.JSON(w, http.StatusCreated, map[string]any{"data": user})
}

// Update handles PATCH /admin/accounts/{id}.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req AccountUpdate
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	user, err := h.Accounts.Update(r.Context(), callerID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.record(r, "account.update", user.ID, http.StatusOK, map[string]any{
		"email":           user.Email,
		"role":            user.Role,
		"passwordChanged": req.Password != "",
	})
	common.JSON(w, http.StatusOK, map[string]any{"data": user})
}

// ChangeStatus handles PATCH /admin/accounts/{id}/status.
func (h *AccountHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	user, err := h.Accounts.SetStatus(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.record(r, "account.status", user.ID, http.StatusOK, map[string]any{"status": user.Status})
	common.JSON(w, http.StatusOK, map[string]any{"data": user})
}

func (h *AccountHandler) record(r *http.Request, action, resourceID string, status int, meta map[string]any) {
	// The account change has committed; a failed audit write does not undo it.
	_ = h.Audit.Record(r.Context(), r, audit.Entry{
		Actor:        audit.ActorFromRequest(r),
		Action:       action,
		ResourceType: "account",
		ResourceID:   resourceID,
		Status:       status,
		Metadata:     meta,
	})
}

func callerID(r *http.Request) string {
	id, _ := common.UserID(r.Context())
	return id
}
