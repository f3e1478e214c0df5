package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/feastly/ordercore/internal/domain/order"
	"github.com/feastly/ordercore/internal/domain/pricing"
)

// Service encapsulates order submission.
type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

// NewService creates a checkout Service. A nil notifier disables event
// publishing.
func NewService(store Store, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{store: store, notifier: notifier, now: time.Now}
}

// Submit commits an order snapshot with its final pricing. Re-submitting the
// same snapshot (same order ID and edit sequence) is a no-op that returns the
// original commitment, so racing retries commit at most once.
func (s *Service) Submit(ctx context.Context, snap order.Snapshot, res pricing.Result) (*Committed, error) {
	if len(snap.Lines) == 0 {
		return nil, order.ErrEmptyOrder
	}

	c := &Committed{
		OrderID:       snap.ID,
		EditSeq:       snap.EditSeq,
		Type:          snap.Type,
		Lines:         snap.Lines,
		VoucherRef:    snap.VoucherRef,
		PaymentMethod: snap.PaymentMethod,
		Subtotal:      res.PreVoucherSubtotal,
		Discount:      res.Voucher.Discount,
		Total:         res.GrandTotal,
		CommittedAt:   s.now(),
	}

	inserted, err := s.store.Insert(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "commit order")
	}
	if !inserted {
		existing, err := s.store.Latest(ctx, snap.ID)
		if err != nil {
			return nil, errors.Wrap(err, "load committed order")
		}
		return existing, nil
	}

	// Event publishing is best-effort: the order is committed either way.
	if err := s.notifier.OrderCommitted(ctx, c); err != nil {
		zctx.From(ctx).Warn("Committed-order event not published",
			zap.String("order_id", c.OrderID), zap.Error(err))
	}

	return c, nil
}

// Latest returns the most recent committed revision of an order, e.g. to
// reopen it for amendment.
func (s *Service) Latest(ctx context.Context, orderID string) (*Committed, error) {
	return s.store.Latest(ctx, orderID)
}
