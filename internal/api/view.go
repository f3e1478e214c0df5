package api

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/feastly/ordercore/internal/domain/order"
	"github.com/feastly/ordercore/internal/domain/pricing"
)

// orderView is the wire representation of an order edit session. It is built
// under the session lock and encoded after the lock is released.
type orderView struct {
	OrderID        string
	State          string
	OrderType      string
	PaymentMethod  string
	VoucherRef     string
	EditSeq        uint64
	Lines          []lineView
	Pricing        pricingView
	Conflict       *conflictView
	OrderCancelled bool
}

type lineView struct {
	ID                string
	VariantRef        string
	Quantity          int
	UnitPrice         string
	PromotionRef      string
	PromotionDiscount string
	Note              string
	Subtotal          string
}

type pricingView struct {
	PromotionTotal     string
	PreVoucherSubtotal string
	VoucherValid       bool
	VoucherReason      string
	VoucherDiscount    string
	GrandTotal         string
}

type conflictView struct {
	VoucherRef string
	Reason     string
	Message    string
}

// newOrderView captures the aggregate's current state. Must be called while
// holding the session lock.
func newOrderView(agg *order.Aggregate) orderView {
	res := agg.Pricing()

	subtotals := make(map[string]pricing.LineSubtotal, len(res.LineSubtotals))
	for _, ls := range res.LineSubtotals {
		subtotals[ls.LineID] = ls
	}

	v := orderView{
		OrderID:       agg.ID(),
		State:         string(agg.State()),
		OrderType:     string(agg.OrderType()),
		PaymentMethod: string(agg.PaymentMethod()),
		VoucherRef:    agg.VoucherRef(),
		EditSeq:       agg.EditSeq(),
		Pricing: pricingView{
			PromotionTotal:     res.PromotionTotal.String(),
			PreVoucherSubtotal: res.PreVoucherSubtotal.String(),
			VoucherValid:       res.Voucher.Valid,
			VoucherReason:      string(res.Voucher.Reason),
			VoucherDiscount:    res.Voucher.Discount.String(),
			GrandTotal:         res.GrandTotal.String(),
		},
	}

	for _, l := range agg.Lines() {
		lv := lineView{
			ID:                l.ID,
			VariantRef:        l.VariantRef,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice.String(),
			PromotionRef:      l.PromotionRef,
			PromotionDiscount: l.PromotionDiscount.String(),
			Note:              l.Note,
		}
		if ls, ok := subtotals[l.ID]; ok {
			lv.Subtotal = ls.Subtotal.String()
		}
		v.Lines = append(v.Lines, lv)
	}

	if c := agg.PendingConflict(); c != nil {
		v.Conflict = &conflictView{
			VoucherRef: c.VoucherRef,
			Reason:     string(c.Reason),
			Message:    c.Reason.Message(),
		}
	}

	return v
}

func (v orderView) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { e.Str(v.OrderID) })
		e.Field("state", func(e *jx.Encoder) { e.Str(v.State) })
		e.Field("order_type", func(e *jx.Encoder) { e.Str(v.OrderType) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(v.PaymentMethod) })
		if v.VoucherRef != "" {
			e.Field("voucher_ref", func(e *jx.Encoder) { e.Str(v.VoucherRef) })
		}
		e.Field("edit_seq", func(e *jx.Encoder) { e.UInt64(v.EditSeq) })

		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range v.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
						e.Field("variant_ref", func(e *jx.Encoder) { e.Str(l.VariantRef) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("unit_price", func(e *jx.Encoder) { e.Str(l.UnitPrice) })
						if l.PromotionRef != "" {
							e.Field("promotion_ref", func(e *jx.Encoder) { e.Str(l.PromotionRef) })
							e.Field("promotion_discount", func(e *jx.Encoder) { e.Str(l.PromotionDiscount) })
						}
						if l.Note != "" {
							e.Field("note", func(e *jx.Encoder) { e.Str(l.Note) })
						}
						e.Field("subtotal", func(e *jx.Encoder) { e.Str(l.Subtotal) })
					})
				}
			})
		})

		e.Field("pricing", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("promotion_total", func(e *jx.Encoder) { e.Str(v.Pricing.PromotionTotal) })
				e.Field("pre_voucher_subtotal", func(e *jx.Encoder) { e.Str(v.Pricing.PreVoucherSubtotal) })
				e.Field("voucher_valid", func(e *jx.Encoder) { e.Bool(v.Pricing.VoucherValid) })
				if v.Pricing.VoucherReason != "" {
					e.Field("voucher_reason", func(e *jx.Encoder) { e.Str(v.Pricing.VoucherReason) })
				}
				e.Field("voucher_discount", func(e *jx.Encoder) { e.Str(v.Pricing.VoucherDiscount) })
				e.Field("grand_total", func(e *jx.Encoder) { e.Str(v.Pricing.GrandTotal) })
			})
		})

		if v.Conflict != nil {
			e.Field("conflict", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("voucher_ref", func(e *jx.Encoder) { e.Str(v.Conflict.VoucherRef) })
					e.Field("reason", func(e *jx.Encoder) { e.Str(v.Conflict.Reason) })
					e.Field("message", func(e *jx.Encoder) { e.Str(v.Conflict.Message) })
				})
			})
		}

		if v.OrderCancelled {
			e.Field("order_cancelled", func(e *jx.Encoder) { e.Bool(true) })
		}
	})
}

// writeView encodes the view and writes it with the given status code.
func writeView(w http.ResponseWriter, status int, v orderView) {
	var e jx.Encoder
	v.encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
