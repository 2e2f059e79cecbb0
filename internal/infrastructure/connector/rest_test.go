package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petshop/backend/internal/domain/sync"
)

func newFeedSource(t *testing.T, config string) *sync.Source {
	t.Helper()
	source, err := sync.NewSource(
		uuid.New(),
		"test feed",
		sync.SourceTypeSupplierFeed,
		sync.ConnectorTypeREST,
		json.RawMessage(config),
		sync.SyncModeManual,
		"",
		nil,
	)
	require.NoError(t, err)
	return source
}

func TestRESTConnector_Fetch(t *testing.T) {
	connector := NewRESTConnector(zap.NewNop())

	t.Run("pages through the feed", func(t *testing.T) {
		var requests []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests = append(requests, r.URL.RawQuery)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("cursor") == "" {
				fmt.Fprint(w, `{
					"items": [{"external_id":"ext-1","name":"Dog Food","price_cents":4999,"stock":10,"active":true}],
					"next_cursor": "page-2",
					"has_more": true
				}`)
				return
			}
			assert.Equal(t, "page-2", r.URL.Query().Get("cursor"))
			fmt.Fprint(w, `{
				"items": [{"external_id":"ext-2","barcode":"4006381333931","name":"Cat Litter","price_cents":1299,"active":false}],
				"has_more": false
			}`)
		}))
		defer server.Close()

		source := newFeedSource(t, fmt.Sprintf(`{"base_url":%q,"api_key":"secret"}`, server.URL))

		first, err := connector.Fetch(context.Background(), source, sync.FetchRequest{PageSize: 1})
		require.NoError(t, err)
		require.Len(t, first.Records, 1)
		assert.Equal(t, "ext-1", first.Records[0].ExternalID)
		assert.Equal(t, int64(4999), first.Records[0].PriceCents)
		assert.True(t, first.Records[0].Active)
		assert.NotEmpty(t, first.Records[0].Raw)
		assert.True(t, first.HasMore)

		second, err := connector.Fetch(context.Background(), source, sync.FetchRequest{Cursor: first.NextCursor, PageSize: 1})
		require.NoError(t, err)
		require.Len(t, second.Records, 1)
		assert.Equal(t, "4006381333931", second.Records[0].Barcode)
		assert.False(t, second.Records[0].Active)
		assert.False(t, second.HasMore)
		assert.Empty(t, second.NextCursor)

		assert.Len(t, requests, 2)
	})

	t.Run("passes the incremental watermark", func(t *testing.T) {
		var gotSince string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSince = r.URL.Query().Get("updated_since")
			fmt.Fprint(w, `{"items":[],"has_more":false}`)
		}))
		defer server.Close()

		source := newFeedSource(t, fmt.Sprintf(`{"base_url":%q}`, server.URL))
		since := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

		_, err := connector.Fetch(context.Background(), source, sync.FetchRequest{UpdatedSince: &since, PageSize: 50})
		require.NoError(t, err)
		assert.Equal(t, "2026-08-30T12:00:00Z", gotSince)
	})

	t.Run("server errors are transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		source := newFeedSource(t, fmt.Sprintf(`{"base_url":%q}`, server.URL))

		_, err := connector.Fetch(context.Background(), source, sync.FetchRequest{PageSize: 1})
		require.Error(t, err)
		assert.True(t, sync.IsTransient(err))
	})

	t.Run("auth failures are permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		source := newFeedSource(t, fmt.Sprintf(`{"base_url":%q}`, server.URL))

		_, err := connector.Fetch(context.Background(), source, sync.FetchRequest{PageSize: 1})
		require.Error(t, err)
		assert.False(t, sync.IsTransient(err))
	})

	t.Run("rate limiting is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		source := newFeedSource(t, fmt.Sprintf(`{"base_url":%q}`, server.URL))

		_, err := connector.Fetch(context.Background(), source, sync.FetchRequest{PageSize: 1})
		require.Error(t, err)
		assert.True(t, sync.IsTransient(err))
	})

	t.Run("malformed response is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `not json`)
		}))
		defer server.Close()

		source := newFeedSource(t, fmt.Sprintf(`{"base_url":%q}`, server.URL))

		_, err := connector.Fetch(context.Background(), source, sync.FetchRequest{PageSize: 1})
		require.Error(t, err)
		assert.False(t, sync.IsTransient(err))
	})

	t.Run("unreachable host is transient", func(t *testing.T) {
		source := newFeedSource(t, `{"base_url":"http://127.0.0.1:1","timeout_seconds":1}`)

		_, err := connector.Fetch(context.Background(), source, sync.FetchRequest{PageSize: 1})
		require.Error(t, err)
		assert.True(t, sync.IsTransient(err))
	})
}

func TestRESTConnector_TestConnection(t *testing.T) {
	connector := NewRESTConnector(zap.NewNop())

	t.Run("reports sample count", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("page_size"))
			fmt.Fprint(w, `{"items":[{"external_id":"ext-1","name":"Dog Food","price_cents":4999}],"has_more":true}`)
		}))
		defer server.Close()

		source := newFeedSource(t, fmt.Sprintf(`{"base_url":%q}`, server.URL))

		result, err := connector.TestConnection(context.Background(), source)
		require.NoError(t, err)
		assert.Equal(t, 1, result.SampleCount)
	})

	t.Run("surfaces fetch failures", func(t *testing.T) {
		source := newFeedSource(t, `{"base_url":"http://127.0.0.1:1","timeout_seconds":1}`)

		_, err := connector.TestConnection(context.Background(), source)
		assert.Error(t, err)
	})
}
