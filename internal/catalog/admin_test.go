package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/audit"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
)

type recordingInvalidator struct{ ids []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...string) {
	r.ids = append(r.ids, ids...)
}

type auditStore struct{ actions []string }

func (a *auditStore) InsertAuditLog(_ context.Context, arg db.InsertAuditLogParams) (db.InsertAuditLogRow, error) {
	a.actions = append(a.actions, arg.Action)
	return db.InsertAuditLogRow{}, nil
}

func (a *auditStore) ListAuditLogs(context.Context, db.ListAuditLogsParams) ([]db.AuditLog, error) {
	return nil, nil
}

func newAdmin(t *testing.T) (*catalog.AdminHandler, *fakeCatalogQueries, *recordingInvalidator, *auditStore) {
	t.Helper()
	queries := newFakeCatalogQueries(t)
	inv := &recordingInvalidator{}
	store := &auditStore{}
	h := &catalog.AdminHandler{
		Service: &catalog.AdminService{Queries: queries, Lookup: inv},
		Audit:   &audit.Service{Store: store, Enabled: true},
	}
	return h, queries, inv, store
}

func adminRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := common.WithUserID(req.Context(), uuid.NewString())
	ctx = common.WithRole(ctx, "admin")
	return req.WithContext(ctx)
}

func TestAdminCreateProduct(t *testing.T) {
	h, queries, _, store := newAdmin(t)

	rec := httptest.NewRecorder()
	h.Create(rec, adminRequest(http.MethodPost, "/api/v1/admin/products", `{"title":"Jaket Denim","price":400000,"discountPercentage":25,"stock":5}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp productDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "jaket-denim", resp.Data.Slug)
	require.Equal(t, int64(300000), *resp.Data.NewPrice)
	require.Equal(t, int32(5), resp.Data.Position, "position appends after the current maximum")
	require.Equal(t, []string{"product.create"}, store.actions)
	require.True(t, queries.bySlug("jaket-denim").CreatedBy.Valid)
}

func TestAdminCreateRejectsDiscountOutOfRange(t *testing.T) {
	h, _, _, store := newAdmin(t)
	rec := httptest.NewRecorder()
	h.Create(rec, adminRequest(http.MethodPost, "/api/v1/admin/products", `{"title":"Bad","price":1000,"discountPercentage":120}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "discountPercentage")
	require.Empty(t, store.actions)
}

func TestAdminStatusDeleteRestore(t *testing.T) {
	h, queries, inv, store := newAdmin(t)
	id := db.UUIDString(queries.bySlug("kaos-hitam").ID)

	req := withURLParam(withURLParam(adminRequest(http.MethodPatch, "/api/v1/admin/products/"+id+"/status/inactive", ""), "id", id), "status", "inactive")
	rec := httptest.NewRecorder()
	h.ChangeStatus(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "inactive", queries.bySlug("kaos-hitam").Status)

	rec = httptest.NewRecorder()
	h.Delete(rec, withURLParam(adminRequest(http.MethodDelete, "/api/v1/admin/products/"+id, ""), "id", id))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, queries.bySlug("kaos-hitam").Deleted)

	rec = httptest.NewRecorder()
	h.Trash(rec, adminRequest(http.MethodGet, "/api/v1/admin/products/trash", ""))
	var trash productsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trash))
	require.Len(t, trash.Data, 1)

	rec = httptest.NewRecorder()
	h.Delete(rec, withURLParam(adminRequest(http.MethodDelete, "/api/v1/admin/products/"+id, ""), "id", id))
	require.Equal(t, http.StatusNotFound, rec.Code, "deleting twice finds nothing to delete")

	rec = httptest.NewRecorder()
	h.Restore(rec, withURLParam(adminRequest(http.MethodPatch, "/api/v1/admin/products/"+id+"/restore", ""), "id", id))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, queries.bySlug("kaos-hitam").Deleted)

	require.Equal(t, []string{id, id, id}, inv.ids)
	require.Equal(t, []string{"product.status", "product.delete", "product.restore"}, store.actions)
}

func TestAdminChangeMulti(t *testing.T) {
	h, queries, _, _ := newAdmin(t)
	a := db.UUIDString(queries.bySlug("kaos-hitam").ID)
	b := db.UUIDString(queries.bySlug("sepatu-putih").ID)

	rec := httptest.NewRecorder()
	h.ChangeMulti(rec, adminRequest(http.MethodPatch, "/api/v1/admin/products/change-multi",
		`{"type":"change-position","ids":["`+a+`","`+b+`"],"positions":[10,20]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int32(10), queries.bySlug("kaos-hitam").Position)
	require.Equal(t, int32(20), queries.bySlug("sepatu-putih").Position)

	rec = httptest.NewRecorder()
	h.ChangeMulti(rec, adminRequest(http.MethodPatch, "/api/v1/admin/products/change-multi",
		`{"type":"change-position","ids":["`+a+`"],"positions":[]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ChangeMulti(rec, adminRequest(http.MethodPatch, "/api/v1/admin/products/change-multi",
		`{"type":"explode","ids":["`+a+`"]}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	h.ChangeMulti(rec, adminRequest(http.MethodPatch, "/api/v1/admin/products/change-multi",
		`{"type":"delete-all","ids":["`+a+`","`+b+`"]}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, queries.bySlug("sepatu-putih").Deleted)
}

func TestAdminUpdateMissingProduct(t *testing.T) {
	svc := &catalog.AdminService{Queries: newFakeCatalogQueries(t)}
	_, err := svc.Update(context.Background(), "", uuid.NewString(), catalog.ProductInput{Title: "Ghost"})
	require.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestAdminCategories(t *testing.T) {
	h, _, _, store := newAdmin(t)
	rec := httptest.NewRecorder()
	h.CreateCategory(rec, adminRequest(http.MethodPost, "/api/v1/admin/categories", `{"name":"Aksesoris Pria"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"aksesoris-pria"`)

	rec = httptest.NewRecorder()
	h.Categories(rec, adminRequest(http.MethodGet, "/api/v1/admin/categories", ""))
	var resp categoriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3, "inactive categories are listed for admins")
	require.Equal(t, []string{"category.create"}, store.actions)
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "kaos-polos-xl", catalog.Slugify("  Kaos Polos -- XL!! "))
	require.Equal(t, "", catalog.Slugify("!!!"))
}
