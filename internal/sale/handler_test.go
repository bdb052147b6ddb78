package sale

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/retailpos-backend/pkg/database"
)

type identity struct {
	userID   uuid.UUID
	branchID uuid.UUID
	role     string
}

// testRouter wires the sale routes behind a stub auth middleware that injects
// the caller identity the way the JWT middleware does.
func testRouter(f *fixture, id identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", id.userID.String())
		c.Set("branch_id", id.branchID.String())
		c.Set("role", id.role)
		c.Next()
	})

	h := NewHandler(f.coord, f.store, nil)
	r.POST("/api/sales", h.Create)
	r.GET("/api/sales", h.List)
	r.GET("/api/sales/:id", h.Get)
	r.PUT("/api/sales/:id", h.Update)
	r.DELETE("/api/sales/:id", h.Cancel)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func (f *fixture) cashierIdentity() identity {
	return identity{userID: f.cashier.ID, branchID: f.branch.ID, role: "cashier"}
}

func TestHandlerCreateSale(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)
	r := testRouter(f, f.cashierIdentity())

	body := fmt.Sprintf(`{"branch_id":%q,"items":[{"product_id":%q,"quantity":4}]}`, f.branch.ID, product.ID)
	w, resp := doJSON(t, r, http.MethodPost, "/api/sales", body)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, resp["success"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "464", data["total_amount"])
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, 6, f.store.StockOf(product.ID, f.branch.ID))
}

func TestHandlerCreateSaleInsufficientStock(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 3)
	r := testRouter(f, f.cashierIdentity())

	body := fmt.Sprintf(`{"branch_id":%q,"items":[{"product_id":%q,"quantity":5}]}`, f.branch.ID, product.ID)
	w, resp := doJSON(t, r, http.MethodPost, "/api/sales", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["message"], "insufficient stock")
	assert.Equal(t, 3, f.store.StockOf(product.ID, f.branch.ID))
}

func TestHandlerCreateSaleMalformedBody(t *testing.T) {
	f := newFixture(t)
	r := testRouter(f, f.cashierIdentity())

	w, resp := doJSON(t, r, http.MethodPost, "/api/sales", `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
}

func TestHandlerListScopesAndPaginates(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 100)

	other := f.store.AddBranch(database.Branch{Name: "Harbor", Code: "HARB", IsActive: true})
	otherID := other.ID
	otherUser := f.store.AddUser(database.User{Name: "Riley", Email: "riley@example.com", Role: "cashier", BranchID: &otherID, IsActive: true})
	f.store.AddInventory(database.Inventory{ProductID: product.ID, BranchID: other.ID, CurrentStock: 50})

	mustCreate := func(branchID, userID uuid.UUID) {
		_, err := f.coord.Create(context.Background(), CreateInput{
			BranchID: branchID,
			UserID:   userID,
			Items:    []ItemInput{{ProductID: product.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		mustCreate(f.branch.ID, f.cashier.ID)
	}
	mustCreate(other.ID, otherUser.ID)

	t.Run("cashier pinned to own branch", func(t *testing.T) {
		r := testRouter(f, f.cashierIdentity())
		w, resp := doJSON(t, r, http.MethodGet, "/api/sales?page=1&limit=2", "")
		require.Equal(t, http.StatusOK, w.Code)

		pagination := resp["pagination"].(map[string]interface{})
		assert.Equal(t, float64(3), pagination["total"])
		assert.Equal(t, float64(2), pagination["pages"])
		assert.Len(t, resp["data"], 2)
	})

	t.Run("owner sees all branches", func(t *testing.T) {
		owner := f.store.AddUser(database.User{Name: "Ola", Email: "ola@example.com", Role: "owner", IsActive: true})
		r := testRouter(f, identity{userID: owner.ID, role: "owner"})
		w, resp := doJSON(t, r, http.MethodGet, "/api/sales?limit=10", "")
		require.Equal(t, http.StatusOK, w.Code)

		pagination := resp["pagination"].(map[string]interface{})
		assert.Equal(t, float64(4), pagination["total"])
	})

	t.Run("cashier without branch claim is rejected", func(t *testing.T) {
		stray := f.store.AddUser(database.User{Name: "Sam", Email: "sam@example.com", Role: "cashier", IsActive: true})
		r := testRouter(f, identity{userID: stray.ID, role: "cashier"})
		w, resp := doJSON(t, r, http.MethodGet, "/api/sales", "")
		require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
		assert.Equal(t, false, resp["success"])
	})
}

func TestHandlerGetSale(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)

	created, err := f.coord.Create(context.Background(), CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	r := testRouter(f, f.cashierIdentity())

	t.Run("found", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodGet, "/api/sales/"+created.ID.String(), "")
		require.Equal(t, http.StatusOK, w.Code)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, created.TransactionReference, data["transaction_reference"])
	})

	t.Run("invalid id", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodGet, "/api/sales/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodGet, "/api/sales/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("other branch forbidden", func(t *testing.T) {
		other := f.store.AddBranch(database.Branch{Name: "Harbor", Code: "HARB", IsActive: true})
		strangerRouter := testRouter(f, identity{userID: f.cashier.ID, branchID: other.ID, role: "cashier"})
		w, _ := doJSON(t, strangerRouter, http.MethodGet, "/api/sales/"+created.ID.String(), "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandlerUpdateSale(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)
	customer := f.store.AddCustomer(database.Customer{Name: "Dana"})

	created, err := f.coord.Create(context.Background(), CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	r := testRouter(f, f.cashierIdentity())
	path := "/api/sales/" + created.ID.String()

	t.Run("attach customer and payment method", func(t *testing.T) {
		body := fmt.Sprintf(`{"customer_id":%q,"payment_method":"card"}`, customer.ID)
		w, resp := doJSON(t, r, http.MethodPut, path, body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "card", data["payment_method"])
		assert.Equal(t, customer.ID.String(), data["customer_id"])
	})

	t.Run("detach customer", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPut, path, `{"customer_id":"null"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := resp["data"].(map[string]interface{})
		assert.Nil(t, data["customer_id"])
	})

	t.Run("malformed customer id rejected", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, path, `{"customer_id":"not-a-uuid"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown customer rejected", func(t *testing.T) {
		body := fmt.Sprintf(`{"customer_id":%q}`, uuid.New())
		w, _ := doJSON(t, r, http.MethodPut, path, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, path, `{"status":"pending"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cancelled sale cannot be reopened", func(t *testing.T) {
		_, err := f.coord.Cancel(context.Background(), created.ID)
		require.NoError(t, err)

		w, resp := doJSON(t, r, http.MethodPut, path, `{"status":"completed"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, resp["message"], "cannot be reopened")
	})
}

func TestHandlerCancelSale(t *testing.T) {
	f := newFixture(t)
	product := f.addProduct(t, "Espresso Beans", "EB-001", 100, 10)

	created, err := f.coord.Create(context.Background(), CreateInput{
		BranchID: f.branch.ID,
		UserID:   f.cashier.ID,
		Items:    []ItemInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 6, f.store.StockOf(product.ID, f.branch.ID))

	r := testRouter(f, f.cashierIdentity())
	path := "/api/sales/" + created.ID.String()

	w, resp := doJSON(t, r, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, resp["success"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "cancelled", data["status"])
	assert.Equal(t, 10, f.store.StockOf(product.ID, f.branch.ID))

	// Second cancel is a client error and leaves stock alone.
	w, _ = doJSON(t, r, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 10, f.store.StockOf(product.ID, f.branch.ID))

	w, _ = doJSON(t, r, http.MethodDelete, "/api/sales/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
