package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feastly/ordercore/internal/domain/catalog"
)

// LineDiscount resolves the per-unit discount for a single line from its
// attached promotion. It returns zero when the line has no promotion, the
// promotion fact is absent from the snapshot, the promotion is outside its
// validity window, or the promotion is scoped to a different product. The
// discount is capped at the line's unit price so a promotion can never make
// a line negative.
func LineDiscount(line Line, facts catalog.Facts, now time.Time) decimal.Decimal {
	if line.PromotionRef == "" {
		return decimal.Zero
	}
	promo, ok := facts.Promotion(line.PromotionRef)
	if !ok {
		return decimal.Zero
	}
	if !promo.ActiveAt(now) {
		return decimal.Zero
	}
	if promo.ProductRef != "" && promo.ProductRef != line.VariantRef {
		return decimal.Zero
	}
	return decimal.Min(promo.Value, line.UnitPrice)
}
