package audit

import (
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
)

// Handler exposes the admin audit log listing.
type Handler struct {
	Store Store
}

// List returns a page of audit logs, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50, 200)
	p := common.NewPagination(page, perPage, 0)

	rows, err := h.Store.ListAuditLogs(r.Context(), db.ListAuditLogsParams{Limit: int32(perPage), Offset: int32(p.Offset())})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "page": page, "perPage": perPage})
}
