package catalog

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/audit"
	"github.com/noah-isme/toko-storefront/internal/common"
)

// AdminHandler exposes the catalog back-office under /api/v1/admin.
// Every successful mutation is written to the audit log.
type AdminHandler struct {
	Service *AdminService
	Audit   *audit.Service
}

// List handles GET /admin/products.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	pq, err := ParseAdminListParams(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Service.List(r.Context(), pq)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Items, "pagination": result.Pagination})
}

// Trash handles GET /admin/products/trash.
func (h *AdminHandler) Trash(w http.ResponseWriter, r *http.Request) {
	pq, err := ParseAdminListParams(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Service.Trash(r.Context(), pq)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Items, "pagination": result.Pagination})
}

// Detail handles GET /admin/products/{id}.
func (h *AdminHandler) Detail(w http.ResponseWriter, r *http.Request) {
	item, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

// Create handles POST /admin/products.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := common.DecodeAndValidate(r, &in); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.Service.Create(r.Context(), actorID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.record(r, "product.create", item.ID, http.StatusCreated, map[string]any{"slug": item.Slug})
	common.JSON(w, http.StatusCreated, map[string]any{"data": item})
}

// Update handles PUT /admin/products/{id}.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := common.DecodeAndValidate(r, &in); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	item, err := h.Service.Update(r.Context(), actorID(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.record(r, "product.update", id, http.StatusOK, nil)
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

// ChangeStatus handles PATCH /admin/products/{id}/status/{status}.
func (h *AdminHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := strings.TrimSpace(chi.URLParam(r, "status"))
	if status != "active" && status != "inactive" {
		writeError(w, badRequest("status", "status must be active or inactive", nil))
		return
	}
	if err := h.Service.ChangeStatus(r.Context(), actorID(r), id, status); err != nil {
		writeError(w, err)
		return
	}
	h.record(r, "product.status", id, http.StatusOK, map[string]any{"status": status})
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id, "status": status}})
}

// ChangeMulti handles PATCH /admin/products/change-multi.
func (h *AdminHandler) ChangeMulti(w http.ResponseWriter, r *http.Request) {
	var action BulkAction
	if err := common.DecodeAndValidate(r, &action); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Service.ChangeMulti(r.Context(), actorID(r), action); err != nil {
		writeError(w, err)
		return
	}
	h.record(r, "product.bulk."+action.Type, strings.Join(action.IDs, ","), http.StatusOK, map[string]any{"count": len(action.IDs)})
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"type": action.Type, "count": len(action.IDs)}})
}

// Delete handles DELETE /admin/products/{id}. The product is soft-deleted.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), actorID(r), id); err != nil {
		writeError(w, err)
		return
	}
	h.record(r, "product.delete", id, http.StatusNoContent, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Restore handles PATCH /admin/products/{id}/restore.
func (h *AdminHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.Restore(r.Context(), actorID(r), id); err != nil {
		writeError(w, err)
		return
	}
	h.record(r, "product.restore", id, http.StatusOK, nil)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id}})
}

// Categories handles GET /admin/categories.
func (h *AdminHandler) Categories(w http.ResponseWriter, r *http.Request) {
	tree, err := h.Service.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tree})
}

// CreateCategory handles POST /admin/categories.
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := common.DecodeAndValidate(r, &in); err != nil {
		writeError(w, err)
		return
	}
	node, err := h.Service.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.record(r, "category.create", node.ID, http.StatusCreated, map[string]any{"slug": node.Slug})
	common.JSON(w, http.StatusCreated, map[string]any{"data": node})
}

func (h *AdminHandler) record(r *http.Request, action, resourceID string, status int, meta map[string]any) {
	resource := "product"
	if strings.HasPrefix(action, "category.") {
		resource = "category"
	}
	// Audit failures never fail the mutation that already committed.
	_ = h.Audit.Record(r.Context(), r, audit.Entry{
		Actor:        audit.ActorFromRequest(r),
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		Status:       status,
		Metadata:     meta,
	})
}

func actorID(r *http.Request) string {
	id, _ := common.UserID(r.Context())
	return id
}
