package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featureID(t *testing.T, a *app, name string) uint {
	t.Helper()
	var f models.Feature
	require.NoError(t, a.db.Where("name = ?", name).First(&f).Error)
	return f.ID
}

func featureNames(v any) []string {
	var names []string
	list, _ := v.([]any)
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			names = append(names, fmt.Sprint(m["name"]))
		}
	}
	return names
}

func TestClients_CRUD(t *testing.T) {
	a := newApp(t, db.ProfileSales)
	dark := featureID(t, a, "Dark Mode")
	offline := featureID(t, a, "Offline Support")

	body := decode[obj](t, a.do(http.MethodPost, "/clients", obj{"name": "Acme"}), http.StatusBadRequest)
	assert.Contains(t, body["message"], "mobile_number")

	created := decode[obj](t, a.do(http.MethodPost, "/clients", obj{
		"name": "Acme", "mobile_number": "+923001234567", "country": "PK", "city": "Lahore",
		"feature_ids": []uint{offline, dark},
	}), http.StatusCreated)
	cid := id(t, created)
	assert.Equal(t, []string{"Dark Mode", "Offline Support"}, featureNames(created["features"]))

	body = decode[obj](t, a.do(http.MethodPost, "/clients", obj{
		"name": "Bad", "mobile_number": "1", "feature_ids": []uint{9999},
	}), http.StatusBadRequest)
	assert.Contains(t, body["message"], "9999")

	// PATCH keeps omitted fields and features.
	patched := decode[obj](t, a.do(http.MethodPatch, fmt.Sprintf("/clients/%d", cid), obj{"city": "Karachi"}), http.StatusOK)
	assert.Equal(t, "Karachi", patched["city"])
	assert.Equal(t, "Acme", patched["name"])
	assert.Len(t, patched["features"], 2)

	// An empty list clears the features.
	put := decode[obj](t, a.do(http.MethodPut, fmt.Sprintf("/clients/%d", cid), obj{
		"name": "Acme", "mobile_number": "+923001234567", "feature_ids": []uint{},
	}), http.StatusOK)
	assert.Empty(t, put["features"])

	list := decode[[]obj](t, a.do(http.MethodGet, "/clients?search=acm", nil), http.StatusOK)
	require.Len(t, list, 1)

	viewer := a.as("viewer@example.com", db.ProfileViewer)
	decode[obj](t, viewer.do(http.MethodDelete, fmt.Sprintf("/clients/%d", cid), nil), http.StatusForbidden)
	rec := a.do(http.MethodDelete, fmt.Sprintf("/clients/%d", cid), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	decode[obj](t, a.do(http.MethodGet, fmt.Sprintf("/clients/%d", cid), nil), http.StatusNotFound)
}

func TestClients_InvalidID(t *testing.T) {
	a := newApp(t, db.ProfileSales)
	body := decode[obj](t, a.do(http.MethodGet, "/clients/abc", nil), http.StatusBadRequest)
	assert.Contains(t, body["message"], "invalid id")
}

func TestRelationships(t *testing.T) {
	a := newApp(t, db.ProfileSales)
	client := decode[obj](t, a.do(http.MethodPost, "/clients", obj{"name": "Globex", "mobile_number": "1"}), http.StatusCreated)
	cid := id(t, client)

	decode[obj](t, a.do(http.MethodPost, "/relationships", obj{
		"client_id": cid, "care_of": "someone",
	}), http.StatusBadRequest)

	rel := decode[obj](t, a.do(http.MethodPost, "/relationships", obj{
		"client_id": cid, "products": []string{"ERP"}, "meeting_date": "2030-02-01",
		"status": "confirmed", "care_of": "hisaan", "short_note": "intro call",
	}), http.StatusCreated)
	assert.Equal(t, "Globex", rel["client_name"])
	assert.Equal(t, "2030-02-01", rel["meeting_date"])

	list := decode[[]obj](t, a.do(http.MethodGet, fmt.Sprintf("/relationships?client_id=%d&care_of=hisaan", cid), nil), http.StatusOK)
	assert.Len(t, list, 1)
	list = decode[[]obj](t, a.do(http.MethodGet, "/relationships?care_of=nasscript", nil), http.StatusOK)
	assert.Empty(t, list)
}

func TestCatalog(t *testing.T) {
	a := newApp(t, db.ProfileAdmin)
	features := decode[[]obj](t, a.do(http.MethodGet, "/features", nil), http.StatusOK)
	assert.Len(t, features, 6)

	f := decode[obj](t, a.do(http.MethodPost, "/features", obj{"name": "Chat"}), http.StatusCreated)
	decode[obj](t, a.do(http.MethodPost, "/features", obj{"name": "Chat"}), http.StatusConflict)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, fmt.Sprintf("/features/%d", id(t, f)), nil).Code)

	p := decode[obj](t, a.do(http.MethodPost, "/products", obj{"name": "Website", "sku": "WEB-1", "unit_price": 1000.125}), http.StatusCreated)
	assert.Equal(t, 1000.13, p["unit_price"])
}
