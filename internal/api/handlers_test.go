package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastly/ordercore/internal/checkout"
	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/session"
)

var (
	testNow     = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	windowStart = testNow.Add(-time.Hour)
	windowEnd   = testNow.Add(time.Hour)
)

type fakeCatalog struct {
	variants   map[string]catalog.Variant
	promotions map[string]catalog.Promotion
	vouchers   map[string]catalog.Voucher
}

func (f *fakeCatalog) GetVariant(_ context.Context, ref string) (*catalog.Variant, error) {
	if v, ok := f.variants[ref]; ok {
		return &v, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) GetPromotion(_ context.Context, ref string) (*catalog.Promotion, error) {
	if p, ok := f.promotions[ref]; ok {
		return &p, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) GetVoucher(_ context.Context, ref string) (*catalog.Voucher, error) {
	if v, ok := f.vouchers[ref]; ok {
		return &v, nil
	}
	return nil, catalog.ErrNotFound
}

type memCommitStore struct {
	mu        sync.Mutex
	committed map[string]*checkout.Committed
	latest    map[string]*checkout.Committed
}

func newMemCommitStore() *memCommitStore {
	return &memCommitStore{
		committed: make(map[string]*checkout.Committed),
		latest:    make(map[string]*checkout.Committed),
	}
}

func (m *memCommitStore) Insert(_ context.Context, c *checkout.Committed) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%d", c.OrderID, c.EditSeq)
	if _, ok := m.committed[key]; ok {
		return false, nil
	}
	m.committed[key] = c
	m.latest[c.OrderID] = c
	return true, nil
}

func (m *memCommitStore) Latest(_ context.Context, orderID string) (*checkout.Committed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.latest[orderID]
	if !ok {
		return nil, checkout.ErrNotCommitted
	}
	return c, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memCommitStore) {
	t.Helper()

	cat := &fakeCatalog{
		variants: map[string]catalog.Variant{
			"espresso": {Ref: "espresso", Name: "Espresso", UnitPrice: decimal.NewFromInt(100_000)},
			"latte":    {Ref: "latte", Name: "Latte", UnitPrice: decimal.NewFromInt(45_000)},
		},
		promotions: map[string]catalog.Promotion{
			"p10k": {
				Ref:        "p10k",
				ProductRef: "espresso",
				Value:      decimal.NewFromInt(10_000),
				ValidFrom:  &windowStart,
				ValidTo:    &windowEnd,
			},
		},
		vouchers: map[string]catalog.Voucher{
			"fix50": {
				Ref:           "fix50",
				Type:          catalog.VoucherFixedValue,
				Value:         decimal.NewFromInt(50_000),
				MinOrderValue: decimal.NewFromInt(150_000),
				ValidFrom:     &windowStart,
				ValidTo:       &windowEnd,
			},
			"bankonly": {
				Ref:                   "bankonly",
				Type:                  catalog.VoucherPercentOrder,
				Value:                 decimal.NewFromInt(10),
				AllowedPaymentMethods: []catalog.PaymentMethod{catalog.PaymentBankTransfer},
				ValidFrom:             &windowStart,
				ValidTo:               &windowEnd,
			},
		},
	}

	store := newMemCommitStore()
	srv := NewServer(cat, session.NewStore(), checkout.NewService(store, nil), nil)
	srv.now = func() time.Time { return testNow }

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func createDraft(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders", map[string]any{
		"order_type":     "dine_in",
		"payment_method": "bank_transfer",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "EMPTY", body["state"])
	return body["order_id"].(string)
}

func addEspresso(t *testing.T, ts *httptest.Server, orderID string, qty int) map[string]any {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/lines", map[string]any{
		"variant_ref": "espresso",
		"quantity":    qty,
	})
	require.Equal(t, http.StatusOK, status)
	return body
}

func firstLineID(t *testing.T, body map[string]any) string {
	t.Helper()
	lines := body["lines"].([]any)
	require.NotEmpty(t, lines)
	return lines[0].(map[string]any)["id"].(string)
}

func TestCreateOrder_Validation(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders", map[string]any{
		"order_type": "drive_through",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", body["code"])
}

func TestAddLine_DraftsAndPrices(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)

	body := addEspresso(t, ts, orderID, 2)
	assert.Equal(t, "DRAFTING", body["state"])

	pricing := body["pricing"].(map[string]any)
	assert.Equal(t, "200000", pricing["grand_total"])
}

func TestAddLine_UnknownVariant(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/lines", map[string]any{
		"variant_ref": "ghost",
		"quantity":    1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "VARIANT_NOT_FOUND", body["code"])
}

func TestUnknownOrder(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ORDER_NOT_FOUND", body["code"])
}

func TestPromotionAttach_Reprices(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	body := addEspresso(t, ts, orderID, 2)
	lineID := firstLineID(t, body)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/lines/"+lineID+"/promotion", map[string]any{
		"promotion_ref": "p10k",
	})
	require.Equal(t, http.StatusOK, status)

	pricing := body["pricing"].(map[string]any)
	assert.Equal(t, "20000", pricing["promotion_total"])
	assert.Equal(t, "180000", pricing["grand_total"])
}

func TestPromotionAttach_WrongProductRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/lines", map[string]any{
		"variant_ref": "latte",
		"quantity":    1,
	})
	require.Equal(t, http.StatusOK, status)
	lineID := firstLineID(t, body)

	status, body = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/lines/"+lineID+"/promotion", map[string]any{
		"promotion_ref": "p10k",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "PROMOTION_REJECTED", body["code"])
}

func TestVoucherAttach_AndDiscount(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	addEspresso(t, ts, orderID, 2)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher", map[string]any{
		"voucher_ref": "fix50",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "fix50", body["voucher_ref"])

	pricing := body["pricing"].(map[string]any)
	assert.Equal(t, "50000", pricing["voucher_discount"])
	assert.Equal(t, "150000", pricing["grand_total"])
}

func TestVoucherAttach_MinOrderRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	addEspresso(t, ts, orderID, 1)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher", map[string]any{
		"voucher_ref": "fix50",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "MIN_ORDER_VALUE_NOT_MET", body["code"])
}

func TestVoucherAttach_SecondVoucherConflicts(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	addEspresso(t, ts, orderID, 2)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher", map[string]any{
		"voucher_ref": "fix50",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher", map[string]any{
		"voucher_ref": "bankonly",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "VOUCHER_ALREADY_ATTACHED", body["code"])
}

func TestInvalidatingEdit_StagesConflict(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	body := addEspresso(t, ts, orderID, 2)
	lineID := firstLineID(t, body)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher", map[string]any{
		"voucher_ref": "fix50",
	})
	require.Equal(t, http.StatusOK, status)

	// Dropping to one espresso goes under the 150k minimum.
	status, body = doJSON(t, http.MethodPatch, ts.URL+"/orders/"+orderID+"/lines/"+lineID, map[string]any{
		"quantity": 1,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "VOUCHER_CONFLICT", body["state"])

	conflict := body["conflict"].(map[string]any)
	assert.Equal(t, "fix50", conflict["voucher_ref"])
	assert.Equal(t, "MIN_ORDER_VALUE_NOT_MET", conflict["reason"])

	// Committed pricing is untouched while the decision is pending.
	pricing := body["pricing"].(map[string]any)
	assert.Equal(t, "150000", pricing["grand_total"])

	// Further edits are blocked until the decision resolves.
	status, body = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/lines", map[string]any{
		"variant_ref": "latte",
		"quantity":    1,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DECISION_PENDING", body["code"])
}

func TestVoucherDecision_ConfirmRemoval(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	body := addEspresso(t, ts, orderID, 2)
	lineID := firstLineID(t, body)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher", map[string]any{
		"voucher_ref": "fix50",
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, http.MethodPatch, ts.URL+"/orders/"+orderID+"/lines/"+lineID, map[string]any{
		"quantity": 1,
	})
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher/decision", map[string]any{
		"action": "confirm_removal",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "DRAFTING", body["state"])
	assert.Nil(t, body["voucher_ref"])
	assert.Nil(t, body["conflict"])

	pricing := body["pricing"].(map[string]any)
	assert.Equal(t, "100000", pricing["grand_total"])
}

func TestVoucherDecision_CancelEdit(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	body := addEspresso(t, ts, orderID, 2)
	lineID := firstLineID(t, body)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher", map[string]any{
		"voucher_ref": "fix50",
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, http.MethodPatch, ts.URL+"/orders/"+orderID+"/lines/"+lineID, map[string]any{
		"quantity": 1,
	})
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher/decision", map[string]any{
		"action": "cancel_edit",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "DRAFTING", body["state"])
	assert.Equal(t, "fix50", body["voucher_ref"])

	lines := body["lines"].([]any)
	assert.Equal(t, float64(2), lines[0].(map[string]any)["quantity"])
}

func TestCheckout_IdempotentOnRetry(t *testing.T) {
	ts, store := newTestServer(t)
	orderID := createDraft(t, ts)
	addEspresso(t, ts, orderID, 2)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/checkout", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CHECKED_OUT", body["state"])
	assert.Len(t, store.committed, 1)

	// A retry after the order closed is a conflict, not a second commit.
	status, body = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/checkout", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ORDER_CLOSED", body["code"])
	assert.Len(t, store.committed, 1)
}

func TestCheckout_EmptyOrder(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/checkout", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "EMPTY_ORDER", body["code"])
}

func TestAmend_ReopensCommittedOrder(t *testing.T) {
	ts, store := newTestServer(t)
	orderID := createDraft(t, ts)
	body := addEspresso(t, ts, orderID, 2)
	lineID := firstLineID(t, body)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/checkout", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/amendments", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AMENDING", body["state"])

	// Commit the amended revision under a new edit sequence.
	status, _ = doJSON(t, http.MethodPatch, ts.URL+"/orders/"+orderID+"/lines/"+lineID, map[string]any{
		"quantity": 3,
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/checkout", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, store.committed, 2)
}

func TestAmend_NotCommitted(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/amendments", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ORDER_NOT_COMMITTED", body["code"])
}

func TestAmend_RemovingLastLineCancels(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	body := addEspresso(t, ts, orderID, 2)
	lineID := firstLineID(t, body)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/checkout", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/amendments", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, http.MethodDelete, ts.URL+"/orders/"+orderID+"/lines/"+lineID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CANCELLED", body["state"])
	assert.Equal(t, true, body["order_cancelled"])
}

func TestCancelOrder(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	addEspresso(t, ts, orderID, 1)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/cancel", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CANCELLED", body["state"])

	status, body = doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/lines", map[string]any{
		"variant_ref": "espresso",
		"quantity":    1,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ORDER_CLOSED", body["code"])
}

func TestSetPaymentMethod_VoucherConflict(t *testing.T) {
	ts, _ := newTestServer(t)
	orderID := createDraft(t, ts)
	addEspresso(t, ts, orderID, 2)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/orders/"+orderID+"/voucher", map[string]any{
		"voucher_ref": "bankonly",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, http.MethodPut, ts.URL+"/orders/"+orderID+"/payment-method", map[string]any{
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "VOUCHER_CONFLICT", body["state"])

	conflict := body["conflict"].(map[string]any)
	assert.Equal(t, "PAYMENT_METHOD_NOT_ALLOWED", conflict["reason"])
}
