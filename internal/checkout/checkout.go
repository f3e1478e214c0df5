// Package checkout hands finished orders to the commitment collaborator.
// Submissions are idempotent: the idempotency key is the order ID combined
// with the aggregate's edit sequence number, so a network retry of the same
// logical submission returns the already-committed order instead of
// committing twice.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/order"
)

// ErrNotCommitted is returned when no committed order exists for an ID.
var ErrNotCommitted = errors.New("checkout: order not committed")

// Committed is an order accepted by the commitment store.
type Committed struct {
	OrderID       string
	EditSeq       uint64
	Type          order.Type
	Lines         []order.Line
	VoucherRef    string
	PaymentMethod catalog.PaymentMethod
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CommittedAt   time.Time
}

// Store persists committed orders. Insert must be idempotent on
// (OrderID, EditSeq): it reports false without error when that submission
// was already committed.
type Store interface {
	Insert(ctx context.Context, c *Committed) (inserted bool, err error)
	// Latest returns the most recent committed revision of an order.
	Latest(ctx context.Context, orderID string) (*Committed, error)
}

// Notifier publishes committed-order events for back-office consumers
// (receipt printing, kitchen displays). Delivery itself is out of scope here.
type Notifier interface {
	OrderCommitted(ctx context.Context, c *Committed) error
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) OrderCommitted(context.Context, *Committed) error { return nil }
