package catalog

import "context"

// Facts is an immutable snapshot of the catalog data needed to price one
// order. A promotion or voucher whose lookup failed is simply absent from the
// snapshot; resolvers treat an absent fact as discount-invalid rather than
// assuming validity or blocking on a retry.
type Facts struct {
	promotions map[string]Promotion
	vouchers   map[string]Voucher
}

// NewFacts builds a snapshot from already-fetched facts.
func NewFacts(promotions []Promotion, vouchers []Voucher) Facts {
	f := Facts{
		promotions: make(map[string]Promotion, len(promotions)),
		vouchers:   make(map[string]Voucher, len(vouchers)),
	}
	for _, p := range promotions {
		f.promotions[p.Ref] = p
	}
	for _, v := range vouchers {
		f.vouchers[v.Ref] = v
	}
	return f
}

// Promotion returns the promotion fact for ref, if present in the snapshot.
func (f Facts) Promotion(ref string) (Promotion, bool) {
	p, ok := f.promotions[ref]
	return p, ok
}

// Voucher returns the voucher fact for ref, if present in the snapshot.
func (f Facts) Voucher(ref string) (Voucher, bool) {
	v, ok := f.vouchers[ref]
	return v, ok
}

// Load gathers the facts for the given promotion and voucher refs into a
// snapshot. Failed or missing lookups leave the corresponding fact out of the
// snapshot instead of failing the whole load: no discount is ever assumed
// valid by default, and a degraded snapshot keeps repricing non-blocking.
func Load(ctx context.Context, p Provider, promotionRefs []string, voucherRefs []string) Facts {
	f := Facts{
		promotions: make(map[string]Promotion, len(promotionRefs)),
		vouchers:   make(map[string]Voucher, len(voucherRefs)),
	}
	for _, ref := range promotionRefs {
		if ref == "" {
			continue
		}
		if _, ok := f.promotions[ref]; ok {
			continue
		}
		promo, err := p.GetPromotion(ctx, ref)
		if err != nil || promo == nil {
			continue
		}
		f.promotions[ref] = *promo
	}
	for _, ref := range voucherRefs {
		if ref == "" {
			continue
		}
		if _, ok := f.vouchers[ref]; ok {
			continue
		}
		v, err := p.GetVoucher(ctx, ref)
		if err != nil || v == nil {
			continue
		}
		f.vouchers[ref] = *v
	}
	return f
}
