package checkout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/order"
	"github.com/feastly/ordercore/internal/domain/pricing"
)

type mockStore struct {
	committed map[string]*Committed // keyed by orderID:editSeq
	latest    map[string]*Committed
	insertErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		committed: make(map[string]*Committed),
		latest:    make(map[string]*Committed),
	}
}

func (m *mockStore) key(orderID string, seq uint64) string {
	return fmt.Sprintf("%s:%d", orderID, seq)
}

func (m *mockStore) Insert(_ context.Context, c *Committed) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	k := m.key(c.OrderID, c.EditSeq)
	if _, ok := m.committed[k]; ok {
		return false, nil
	}
	m.committed[k] = c
	m.latest[c.OrderID] = c
	return true, nil
}

func (m *mockStore) Latest(_ context.Context, orderID string) (*Committed, error) {
	c, ok := m.latest[orderID]
	if !ok {
		return nil, ErrNotCommitted
	}
	return c, nil
}

type mockNotifier struct {
	events []*Committed
	err    error
}

func (m *mockNotifier) OrderCommitted(_ context.Context, c *Committed) error {
	m.events = append(m.events, c)
	return m.err
}

func testSnapshot() (order.Snapshot, pricing.Result) {
	snap := order.Snapshot{
		ID:   "ord-1",
		Type: order.TypeDineIn,
		Lines: []order.Line{
			{ID: "l1", VariantRef: "espresso", Quantity: 2, UnitPrice: decimal.NewFromInt(100_000)},
		},
		PaymentMethod: catalog.PaymentBankTransfer,
		EditSeq:       4,
	}
	res := pricing.Result{
		PreVoucherSubtotal: decimal.NewFromInt(200_000),
		Voucher:            pricing.VoucherResult{Valid: true, Discount: decimal.NewFromInt(50_000)},
		GrandTotal:         decimal.NewFromInt(150_000),
	}
	return snap, res
}

func TestSubmit_CommitsOnce(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	svc := NewService(store, notifier)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	snap, res := testSnapshot()

	first, err := svc.Submit(context.Background(), snap, res)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", first.OrderID)
	assert.True(t, decimal.NewFromInt(150_000).Equal(first.Total))
	assert.Len(t, notifier.events, 1)

	// A retry of the same logical submission is a no-op returning the
	// original commitment and publishing no second event.
	second, err := svc.Submit(context.Background(), snap, res)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, notifier.events, 1)
	assert.Len(t, store.committed, 1)
}

func TestSubmit_NewEditSeqCommitsAgain(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)
	snap, res := testSnapshot()

	_, err := svc.Submit(context.Background(), snap, res)
	require.NoError(t, err)

	snap.EditSeq = 5
	_, err = svc.Submit(context.Background(), snap, res)
	require.NoError(t, err)
	assert.Len(t, store.committed, 2)
}

func TestSubmit_EmptyOrder(t *testing.T) {
	svc := NewService(newMockStore(), nil)
	snap, res := testSnapshot()
	snap.Lines = nil

	_, err := svc.Submit(context.Background(), snap, res)
	assert.ErrorIs(t, err, order.ErrEmptyOrder)
}

func TestSubmit_StoreError(t *testing.T) {
	store := newMockStore()
	store.insertErr = errors.New("db down")
	svc := NewService(store, nil)
	snap, res := testSnapshot()

	_, err := svc.Submit(context.Background(), snap, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit order")
}

func TestSubmit_NotifierFailureDoesNotFailCommit(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{err: errors.New("queue down")}
	svc := NewService(store, notifier)
	snap, res := testSnapshot()

	c, err := svc.Submit(context.Background(), snap, res)
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Len(t, store.committed, 1)
}
