package servimed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

func newTestRegistry(baseURL string) *OrderRegistry {
	return NewOrderRegistry(OrderRegistryConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Retry:   fastRetry(),
	}, nil, testLogger())
}

func testItems() []domain.OrderItem {
	return []domain.OrderItem{
		{GTIN: "7891234567890", Codigo: "A1", Quantidade: 2},
		{GTIN: "7890000000002", Codigo: "B2", Quantidade: 1},
	}
}

func TestOrderRegistry_Create(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pedido", r.URL.Path)

		var body struct {
			Itens []domain.OrderItem `json:"itens"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Itens, 2)
		assert.Equal(t, "A1", body.Itens[0].Codigo)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42,"codigo_fornecedor":null,"status":"pendente","itens":[]}`))
	})

	order, err := newTestRegistry(srv.URL).Create(context.Background(), testItems())
	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)
	assert.Nil(t, order.CodigoFornecedor)
	require.NotNil(t, order.Status)
	assert.Equal(t, "pendente", *order.Status)
}

func TestOrderRegistry_CreateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
	}{
		{"ok instead of created", http.StatusOK, `{"id":1}`, 1},
		{"validation error", http.StatusUnprocessableEntity, `{"detail":"bad"}`, 1},
		{"missing id", http.StatusCreated, `{"status":"x"}`, 1},
		{"server error retried", http.StatusInternalServerError, `oops`, 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls int32
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			order, err := newTestRegistry(srv.URL).Create(context.Background(), testItems())
			require.Error(t, err)
			assert.Nil(t, order)
			assert.ErrorIs(t, err, domain.ErrOrderRegistration)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestOrderRegistry_MarkProcessed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/pedido/42", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "processado", body["status"])
		assert.Equal(t, "SERVIMED_001", body["codigo_fornecedor"])

		_, _ = w.Write([]byte(`{"id":42,"status":"processado"}`))
	})

	err := newTestRegistry(srv.URL+"/").MarkProcessed(context.Background(), 42, "SERVIMED_001")
	require.NoError(t, err)
}

func TestOrderRegistry_MarkProcessedFailure(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := newTestRegistry(srv.URL).MarkProcessed(context.Background(), 42, "SERVIMED_001")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDelivery)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "updates are not retried")
}
