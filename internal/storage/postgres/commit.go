package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feastly/ordercore/internal/checkout"
	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/order"
)

var _ checkout.Store = (*CommitStore)(nil)

// CommitStore implements checkout.Store backed by PostgreSQL. Idempotency is
// enforced by the (order_id, edit_seq) primary key: a duplicate submission
// conflicts and reports inserted=false instead of committing twice.
type CommitStore struct {
	pool *pgxpool.Pool
}

// NewCommitStore returns a CommitStore that uses the given pool.
func NewCommitStore(pool *pgxpool.Pool) *CommitStore {
	return &CommitStore{pool: pool}
}

// Insert persists a committed order. The order lines are serialized to JSON
// for storage in the JSONB column.
func (s *CommitStore) Insert(ctx context.Context, c *checkout.Committed) (bool, error) {
	linesJSON, err := json.Marshal(c.Lines)
	if err != nil {
		return false, errors.Wrap(err, "marshaling order lines")
	}

	const query = `
		INSERT INTO committed_orders (
			order_id, edit_seq, order_type, lines, voucher_ref,
			payment_method, subtotal, discount, total, committed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id, edit_seq) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		c.OrderID,
		int64(c.EditSeq),
		string(c.Type),
		linesJSON,
		c.VoucherRef,
		string(c.PaymentMethod),
		c.Subtotal,
		c.Discount,
		c.Total,
		c.CommittedAt,
	)
	if err != nil {
		return false, errors.Wrapf(err, "committing order %q", c.OrderID)
	}

	return tag.RowsAffected() > 0, nil
}

// Latest returns the most recent committed revision of an order.
// Returns checkout.ErrNotCommitted when no revision exists.
func (s *CommitStore) Latest(ctx context.Context, orderID string) (*checkout.Committed, error) {
	const query = `
		SELECT order_id, edit_seq, order_type, lines, voucher_ref,
		       payment_method, subtotal, discount, total, committed_at
		FROM committed_orders
		WHERE order_id = $1
		ORDER BY edit_seq DESC
		LIMIT 1`

	var (
		c         checkout.Committed
		editSeq   int64
		orderType string
		method    string
		linesJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, orderID).Scan(
		&c.OrderID, &editSeq, &orderType, &linesJSON, &c.VoucherRef,
		&method, &c.Subtotal, &c.Discount, &c.Total, &c.CommittedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrNotCommitted
		}
		return nil, errors.Wrapf(err, "loading committed order %q", orderID)
	}

	c.EditSeq = uint64(editSeq)
	c.Type = order.Type(orderType)
	c.PaymentMethod = catalog.PaymentMethod(method)
	if err := json.Unmarshal(linesJSON, &c.Lines); err != nil {
		return nil, errors.Wrap(err, "unmarshaling order lines")
	}

	return &c, nil
}
