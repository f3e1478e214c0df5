package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feastly/ordercore/internal/domain/catalog"
)

var _ catalog.Provider = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Provider backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetVariant looks up a variant's current base price by ref.
// Returns catalog.ErrNotFound when no such variant exists.
func (r *CatalogRepository) GetVariant(ctx context.Context, ref string) (*catalog.Variant, error) {
	const query = `SELECT ref, name, unit_price FROM variants WHERE ref = $1`

	var v catalog.Variant
	err := r.pool.QueryRow(ctx, query, ref).Scan(&v.Ref, &v.Name, &v.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding variant %q", ref)
	}
	return &v, nil
}

// GetPromotion looks up a line-level promotion by ref.
// Returns catalog.ErrNotFound when no such promotion exists.
func (r *CatalogRepository) GetPromotion(ctx context.Context, ref string) (*catalog.Promotion, error) {
	const query = `
		SELECT ref, product_ref, value, valid_from, valid_to
		FROM promotions WHERE ref = $1`

	var (
		p        catalog.Promotion
		from, to *time.Time
	)
	err := r.pool.QueryRow(ctx, query, ref).Scan(&p.Ref, &p.ProductRef, &p.Value, &from, &to)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding promotion %q", ref)
	}
	p.ValidFrom = from
	p.ValidTo = to
	return &p, nil
}

// GetVoucher looks up an order-level voucher by ref.
// Returns catalog.ErrNotFound when no such voucher exists.
func (r *CatalogRepository) GetVoucher(ctx context.Context, ref string) (*catalog.Voucher, error) {
	const query = `
		SELECT ref, type, value, min_order_value,
		       allowed_payment_methods, applicable_product_refs,
		       valid_from, valid_to
		FROM vouchers WHERE ref = $1`

	var (
		v        catalog.Voucher
		vtype    string
		methods  []string
		from, to *time.Time
	)
	err := r.pool.QueryRow(ctx, query, ref).Scan(
		&v.Ref, &vtype, &v.Value, &v.MinOrderValue,
		&methods, &v.ApplicableProductRefs,
		&from, &to,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding voucher %q", ref)
	}

	v.Type = catalog.VoucherType(vtype)
	v.AllowedPaymentMethods = make([]catalog.PaymentMethod, len(methods))
	for i, m := range methods {
		v.AllowedPaymentMethods[i] = catalog.PaymentMethod(m)
	}
	v.ValidFrom = from
	v.ValidTo = to
	return &v, nil
}
