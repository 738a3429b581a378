package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/internal/realtime"
)

type testEnv struct {
	app    *fiber.App
	ledger *inventory.LedgerService
	hub    *realtime.Hub
}

// gatedTxRunner una vez armado, la siguiente unidad de trabajo espera a release (con los bloqueos tomados).
type gatedTxRunner struct {
	inner   inventory.TxRunner
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r *gatedTxRunner) Run(ctx context.Context, fn func(context.Context, repository.PositionRepository, repository.MovementRepository) error) error {
	if r.armed.CompareAndSwap(true, false) {
		close(r.entered)
		<-r.release
	}
	return r.inner.Run(ctx, fn)
}

func newTestEnv(t *testing.T, opts ...inventory.Option) *testEnv {
	t.Helper()
	return newGatedTestEnv(t, nil, opts...)
}

func newGatedTestEnv(t *testing.T, gate *gatedTxRunner, opts ...inventory.Option) *testEnv {
	t.Helper()
	positions := memory.NewPositionStore()
	movements := memory.NewMovementLog()
	var runner inventory.TxRunner = memory.NewTxRunner(positions, movements)
	if gate != nil {
		gate.inner = runner
		runner = gate
	}
	ledger := inventory.NewLedgerService(runner, positions, movements, opts...)
	hub := realtime.NewHub(realtime.Config{HeartbeatInterval: time.Hour})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Ledger:    ledger,
		Hub:       hub,
		JWTSecret: testJWTSecret,
		Logger:    zerolog.Nop(),
	})
	return &testEnv{app: app, ledger: ledger, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestInventoryHandler_ReceiptIssueAndPosition(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/inventory/movements", map[string]any{
		"type": "receipt", "item_id": "SKU-1", "warehouse_id": "W1", "quantity": 100, "unit_cost": "12.50",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "RECEIPT", body["type"])
	assert.Equal(t, "W1", body["destination_warehouse_id"])
	assert.Equal(t, testUserID, body["user_id"])
	assert.Equal(t, "12.5", body["unit_cost"])

	status, body = env.do(t, http.MethodPost, "/api/inventory/issues", map[string]any{
		"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 30,
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(-30), body["signed_delta"])

	status, body = env.do(t, http.MethodGet, "/api/inventory/positions/SKU-1/W1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(70), body["quantity"])
}

func TestInventoryHandler_InsufficientStockReturns409(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/inventory/receipts", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 30})

	status, body := env.do(t, http.MethodPost, "/api/inventory/issues", map[string]any{
		"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 50,
	})
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	assert.Equal(t, float64(30), body["available"])
	assert.Equal(t, float64(50), body["requested"])
	assert.Equal(t, float64(20), body["shortfall"])

	_, body = env.do(t, http.MethodGet, "/api/inventory/positions/SKU-1/W1", nil)
	assert.Equal(t, float64(30), body["quantity"])
}

func TestInventoryHandler_TransferAndPositionsAcrossWarehouses(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/inventory/receipts", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 40})

	status, body := env.do(t, http.MethodPost, "/api/inventory/transfers", map[string]any{
		"item_id": "SKU-1", "source_warehouse_id": "W1", "destination_warehouse_id": "W2", "quantity": 15,
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = env.do(t, http.MethodGet, "/api/inventory/positions/SKU-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(40), body["total"])
	positions, ok := body["positions"].([]any)
	require.True(t, ok)
	require.Len(t, positions, 2)
	assert.Equal(t, "W1", positions[0].(map[string]any)["warehouse_id"])
	assert.Equal(t, float64(25), positions[0].(map[string]any)["quantity"])
	assert.Equal(t, float64(15), positions[1].(map[string]any)["quantity"])
}

func TestInventoryHandler_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]struct {
		target string
		body   map[string]any
	}{
		"cantidad cero":        {"/api/inventory/receipts", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 0}},
		"tipo desconocido":     {"/api/inventory/movements", map[string]any{"type": "LOAN", "item_id": "SKU-1", "warehouse_id": "W1", "quantity": 1}},
		"tipo contra ruta":     {"/api/inventory/issues", map[string]any{"type": "RECEIPT", "item_id": "SKU-1", "warehouse_id": "W1", "quantity": 1}},
		"misma bodega":         {"/api/inventory/transfers", map[string]any{"item_id": "SKU-1", "source_warehouse_id": "W1", "destination_warehouse_id": "W1", "quantity": 1}},
		"ajuste cero":          {"/api/inventory/adjustments", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 0}},
		"costo en una salida":  {"/api/inventory/issues", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 1, "unit_cost": "3"}},
		"sin item":             {"/api/inventory/receipts", map[string]any{"warehouse_id": "W1", "quantity": 1}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, tc.target, tc.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION", body["code"])
		})
	}
}

func TestInventoryHandler_ValidationNamesField(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodPost, "/api/inventory/transfers", map[string]any{"item_id": "SKU-1", "source_warehouse_id": "W1", "quantity": 1})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "destination_warehouse_id", body["field"])
	assert.NotContains(t, body, "retryable")
}

func TestInventoryHandler_QuantityOverflowIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ledger.Adjust(context.Background(), "SKU-1", "W1", math.MaxInt64, entity.MovementOptions{})
	require.NoError(t, err)

	status, body := env.do(t, http.MethodPost, "/api/inventory/receipts", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body["code"])
	assert.Equal(t, "quantity", body["field"])
}

func TestInventoryHandler_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/inventory/movements", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInventoryHandler_MovementsHistoryAndAudit(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/inventory/receipts", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 10})
	env.do(t, http.MethodPost, "/api/inventory/adjustments", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": -4, "notes": "conteo físico"})
	env.do(t, http.MethodPost, "/api/inventory/receipts", map[string]any{"item_id": "SKU-2", "warehouse_id": "W2", "quantity": 5})

	status, body := env.do(t, http.MethodGet, "/api/inventory/movements?item_id=SKU-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["total"])
	movs := body["movements"].([]any)
	assert.Equal(t, "RECEIPT", movs[0].(map[string]any)["type"])
	assert.Equal(t, "ADJUSTMENT", movs[1].(map[string]any)["type"])
	assert.Equal(t, float64(-4), movs[1].(map[string]any)["signed_delta"])

	status, body = env.do(t, http.MethodGet, "/api/inventory/movements?warehouse_id=W2", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	from := url.QueryEscape(time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano))
	to := url.QueryEscape(time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano))
	status, body = env.do(t, http.MethodGet, "/api/inventory/movements?from="+from+"&to="+to, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["total"])

	status, body = env.do(t, http.MethodGet, "/api/inventory/movements", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = env.do(t, http.MethodGet, "/api/inventory/movements?item_id=SKU-1&from=ayer", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodGet, "/api/inventory/positions/SKU-1/W1/audit", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["consistent"])
	assert.Equal(t, float64(6), body["replayed"])
	assert.Equal(t, float64(2), body["movements"])
}

func TestInventoryHandler_LockTimeoutReturns503(t *testing.T) {
	gate := &gatedTxRunner{entered: make(chan struct{}), release: make(chan struct{})}
	env := newGatedTestEnv(t, gate, inventory.WithLockTimeout(50*time.Millisecond))
	env.do(t, http.MethodPost, "/api/inventory/receipts", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 10})

	gate.armed.Store(true)
	holder := make(chan error, 1)
	go func() {
		_, err := env.ledger.RecordIssue(context.Background(), "SKU-1", "W1", 2, entity.MovementOptions{})
		holder <- err
	}()
	<-gate.entered

	status, body := env.do(t, http.MethodPost, "/api/inventory/issues", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 1})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "LOCK_TIMEOUT", body["code"])
	assert.Equal(t, true, body["retryable"])

	close(gate.release)
	require.NoError(t, <-holder)
	qty, err := env.ledger.GetPosition(context.Background(), "SKU-1", "W1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), qty, "el request con timeout no aplicó nada")
}

func TestRealtimeRoute_RequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/ws/stock?warehouse_id=W1", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
	assert.Equal(t, "UPGRADE_REQUIRED", body["code"])
}

func TestInventoryHandler_Valuation(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/inventory/receipts", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 10, "unit_cost": "10"})
	env.do(t, http.MethodPost, "/api/inventory/receipts", map[string]any{"item_id": "SKU-1", "warehouse_id": "W1", "quantity": 5, "unit_cost": "16"})

	status, body := env.do(t, http.MethodGet, "/api/inventory/positions/SKU-1/W1/valuation", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(15), body["quantity"])
	assert.Equal(t, "12", body["average_cost"])
	assert.Equal(t, "180", body["total_value"])
}
