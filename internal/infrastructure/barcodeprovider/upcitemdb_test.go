package barcodeprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wooerp/internal/domain/barcode"
)

func createMockUPCItemDBServer(t *testing.T, key string, handler http.HandlerFunc) *UPCItemDB {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewUPCItemDB(server.Client(), server.URL, key)
}

func TestNewUPCItemDB_Endpoint(t *testing.T) {
	assert.Equal(t, UPCItemDBTrialURL, NewUPCItemDB(nil, "", "").baseURL)
	assert.Equal(t, UPCItemDBPaidURL, NewUPCItemDB(nil, "", "secret").baseURL)
}

func TestUPCItemDB_Search(t *testing.T) {
	t.Run("maps first item", func(t *testing.T) {
		provider := createMockUPCItemDBServer(t, "", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/lookup", r.URL.Path)
			assert.Equal(t, "0885909950805", r.URL.Query().Get("upc"))
			assert.Empty(t, r.Header.Get("user_key"))
			_, _ = w.Write([]byte(`{"code":"OK","total":1,"items":[{
				"title":"Apple iPhone 6",
				"description":"Smartphone",
				"brand":"Apple",
				"category":"Electronics > Communications > Telephony > Mobile Phones",
				"images":["https://img/1.jpg","https://img/2.jpg"],
				"lowest_recorded_price":"",
				"highest_recorded_price":199.99
			}]}`))
		})

		result := provider.Search(context.Background(), "0885909950805")
		require.Equal(t, barcode.ResultOk, result.Kind)

		c := result.Candidate
		assert.Equal(t, "Apple iPhone 6", c.Title)
		assert.Equal(t, "Apple", c.Brand)
		assert.Equal(t, "Mobile Phones", c.SuggestedCategory)
		assert.Len(t, c.Images, 2)
		require.NotNil(t, c.SuggestedPrice)
		assert.Equal(t, "199.99", c.SuggestedPrice.String())
		assert.Equal(t, UPCItemDBName, c.Source)
	})

	t.Run("sends key headers", func(t *testing.T) {
		provider := createMockUPCItemDBServer(t, "secret", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("user_key"))
			assert.Equal(t, "3scale", r.Header.Get("key_type"))
			_, _ = w.Write([]byte(`{"code":"OK","total":0,"items":[]}`))
		})
		result := provider.Search(context.Background(), "0885909950805")
		assert.Equal(t, barcode.ResultNotFound, result.Kind)
	})

	t.Run("rate limit is an error result", func(t *testing.T) {
		provider := createMockUPCItemDBServer(t, "", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"TOO_FAST","message":"slow down"}`))
		})
		result := provider.Search(context.Background(), "0885909950805")
		assert.Equal(t, barcode.ResultErr, result.Kind)
	})

	t.Run("404 is not found", func(t *testing.T) {
		provider := createMockUPCItemDBServer(t, "", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		result := provider.Search(context.Background(), "0885909950805")
		assert.Equal(t, barcode.ResultNotFound, result.Kind)
	})

	t.Run("api error code is an error result", func(t *testing.T) {
		provider := createMockUPCItemDBServer(t, "", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":"INVALID_UPC","total":0,"items":[]}`))
		})
		result := provider.Search(context.Background(), "123")
		assert.Equal(t, barcode.ResultErr, result.Kind)
	})
}
