package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/pricing"
)

// guard rejects mutations in terminal states and while a voucher decision
// is pending.
func (a *Aggregate) guard() error {
	if a.state.Terminal() {
		return ErrOrderClosed
	}
	if a.staged != nil {
		return ErrDecisionPending
	}
	return nil
}

// apply prices a candidate mutation and either commits it or stages it for a
// user decision when it would invalidate the attached voucher. Repricing is
// from scratch on every call; stale pricing is never surfaced.
func (a *Aggregate) apply(candLines []Line, candMethod catalog.PaymentMethod, facts catalog.Facts, now time.Time) (Outcome, error) {
	res := pricing.Price(a.pricingLines(candLines), a.voucherRef, candMethod, facts, now)

	if a.voucherRef != "" && !res.Voucher.Valid {
		a.staged = &stagedEdit{
			lines:         candLines,
			paymentMethod: candMethod,
			result:        res,
			prior:         a.state,
		}
		a.state = StateVoucherConflict
		return Outcome{
			State:    a.state,
			Pricing:  a.lastPricing,
			Conflict: &Conflict{VoucherRef: a.voucherRef, Reason: res.Voucher.Reason},
		}, nil
	}

	a.lines = candLines
	a.paymentMethod = candMethod
	a.commitPricing(res)
	a.editSeq++

	switch {
	case a.state == StateEmpty && len(a.lines) > 0:
		a.state = StateDrafting
	case a.state == StateDrafting && len(a.lines) == 0:
		a.state = StateEmpty
	}

	return Outcome{State: a.state, Pricing: res}, nil
}

// AddLine adds a product variant to the order, snapshotting its unit price.
func (a *Aggregate) AddLine(variant catalog.Variant, quantity int, note string, facts catalog.Facts, now time.Time) (Outcome, error) {
	if err := a.guard(); err != nil {
		return Outcome{}, err
	}
	if quantity < 1 {
		return Outcome{}, &InvalidQuantityError{VariantRef: variant.Ref}
	}

	cand := a.Lines()
	cand = append(cand, Line{
		ID:         uuid.New().String(),
		VariantRef: variant.Ref,
		Quantity:   quantity,
		UnitPrice:  variant.UnitPrice,
		Note:       note,
	})
	return a.apply(cand, a.paymentMethod, facts, now)
}

// RemoveLine removes a line. Under amendment, removing the last remaining
// line cancels the whole order instead of leaving an empty committed order
// behind; the caller must route the user away from the editing view.
func (a *Aggregate) RemoveLine(lineID string, facts catalog.Facts, now time.Time) (Outcome, error) {
	if err := a.guard(); err != nil {
		return Outcome{}, err
	}
	idx := a.lineIndex(lineID)
	if idx < 0 {
		return Outcome{}, &LineNotFoundError{LineID: lineID}
	}

	if a.state == StateAmending && len(a.lines) == 1 {
		a.state = StateCancelled
		a.staged = nil
		return Outcome{State: a.state, Pricing: a.lastPricing, OrderCancelled: true}, nil
	}

	cand := a.Lines()
	cand = append(cand[:idx], cand[idx+1:]...)
	return a.apply(cand, a.paymentMethod, facts, now)
}

// SetQuantity changes a line's quantity.
func (a *Aggregate) SetQuantity(lineID string, quantity int, facts catalog.Facts, now time.Time) (Outcome, error) {
	if err := a.guard(); err != nil {
		return Outcome{}, err
	}
	idx := a.lineIndex(lineID)
	if idx < 0 {
		return Outcome{}, &LineNotFoundError{LineID: lineID}
	}
	if quantity < 1 {
		return Outcome{}, &InvalidQuantityError{VariantRef: a.lines[idx].VariantRef}
	}

	cand := a.Lines()
	cand[idx].Quantity = quantity
	return a.apply(cand, a.paymentMethod, facts, now)
}

// AttachPromotion binds a line-level promotion to a line. The attach is an
// explicit user action and is validated eagerly: an unknown, expired, or
// wrong-product promotion is rejected with the concrete reason instead of
// resolving to a silent zero discount later.
func (a *Aggregate) AttachPromotion(lineID, promotionRef string, facts catalog.Facts, now time.Time) (Outcome, error) {
	if err := a.guard(); err != nil {
		return Outcome{}, err
	}
	idx := a.lineIndex(lineID)
	if idx < 0 {
		return Outcome{}, &LineNotFoundError{LineID: lineID}
	}

	promo, ok := facts.Promotion(promotionRef)
	if !ok {
		return Outcome{}, &PromotionRejectedError{Ref: promotionRef, Why: "promotion could not be verified against the catalog"}
	}
	if !promo.ActiveAt(now) {
		return Outcome{}, &PromotionRejectedError{Ref: promotionRef, Why: "promotion is outside its validity window"}
	}
	if promo.ProductRef != "" && promo.ProductRef != a.lines[idx].VariantRef {
		return Outcome{}, &PromotionRejectedError{Ref: promotionRef, Why: "promotion does not apply to this product"}
	}

	cand := a.Lines()
	cand[idx].PromotionRef = promotionRef
	return a.apply(cand, a.paymentMethod, facts, now)
}

// DetachPromotion clears a line's promotion; its discount recomputes to zero
// on the pricing pass.
func (a *Aggregate) DetachPromotion(lineID string, facts catalog.Facts, now time.Time) (Outcome, error) {
	if err := a.guard(); err != nil {
		return Outcome{}, err
	}
	idx := a.lineIndex(lineID)
	if idx < 0 {
		return Outcome{}, &LineNotFoundError{LineID: lineID}
	}

	cand := a.Lines()
	cand[idx].PromotionRef = ""
	cand[idx].PromotionDiscount = decimal.Zero
	return a.apply(cand, a.paymentMethod, facts, now)
}

// SetPaymentMethod changes the payment method. A change that the attached
// voucher does not allow is staged for a user decision like any other
// invalidating mutation.
func (a *Aggregate) SetPaymentMethod(method catalog.PaymentMethod, facts catalog.Facts, now time.Time) (Outcome, error) {
	if err := a.guard(); err != nil {
		return Outcome{}, err
	}
	return a.apply(a.Lines(), method, facts, now)
}

// AttachVoucher attaches an order-level voucher. At most one voucher may be
// attached at a time: attaching while one is present fails with
// ErrVoucherAlreadyAttached without mutating state. An invalid voucher is
// rejected outright with the violated invariant, never attached and then
// invalidated.
func (a *Aggregate) AttachVoucher(voucherRef string, facts catalog.Facts, now time.Time) (Outcome, error) {
	if err := a.guard(); err != nil {
		return Outcome{}, err
	}
	if a.voucherRef != "" {
		return Outcome{}, ErrVoucherAlreadyAttached
	}

	res := pricing.Price(a.pricingLines(a.lines), voucherRef, a.paymentMethod, facts, now)
	if !res.Voucher.Valid {
		return Outcome{}, &VoucherRejectedError{Ref: voucherRef, Reason: res.Voucher.Reason}
	}

	a.voucherRef = voucherRef
	if v, ok := facts.Voucher(voucherRef); ok {
		a.paymentRestricted = v.RestrictsPayment()
	}
	a.commitPricing(res)
	a.editSeq++
	return Outcome{State: a.state, Pricing: res}, nil
}

// DetachVoucher removes the attached voucher on explicit user request.
func (a *Aggregate) DetachVoucher(facts catalog.Facts, now time.Time) (Outcome, error) {
	if err := a.guard(); err != nil {
		return Outcome{}, err
	}
	if a.voucherRef == "" {
		return Outcome{}, ErrNoVoucherAttached
	}

	a.dropVoucher()
	res := pricing.Price(a.pricingLines(a.lines), "", a.paymentMethod, facts, now)
	a.commitPricing(res)
	a.editSeq++
	return Outcome{State: a.state, Pricing: res}, nil
}

// ConfirmVoucherRemoval resolves a pending conflict by applying the staged
// edit and detaching the voucher. When the voucher had restricted the
// payment method, the method falls back to the default and the payment
// observer is notified.
func (a *Aggregate) ConfirmVoucherRemoval(facts catalog.Facts, now time.Time) (Outcome, error) {
	if a.state.Terminal() {
		return Outcome{}, ErrOrderClosed
	}
	if a.staged == nil {
		return Outcome{}, ErrNoDecisionPending
	}

	staged := a.staged
	a.staged = nil
	a.state = staged.prior
	a.lines = staged.lines
	a.paymentMethod = staged.paymentMethod
	a.dropVoucher()

	res := pricing.Price(a.pricingLines(a.lines), "", a.paymentMethod, facts, now)
	a.commitPricing(res)
	a.editSeq++

	switch {
	case a.state == StateEmpty && len(a.lines) > 0:
		a.state = StateDrafting
	case a.state == StateDrafting && len(a.lines) == 0:
		a.state = StateEmpty
	}

	return Outcome{State: a.state, Pricing: res}, nil
}

// CancelPendingEdit resolves a pending conflict by discarding the staged
// edit, keeping the voucher and the pre-edit state untouched.
func (a *Aggregate) CancelPendingEdit() (Outcome, error) {
	if a.state.Terminal() {
		return Outcome{}, ErrOrderClosed
	}
	if a.staged == nil {
		return Outcome{}, ErrNoDecisionPending
	}

	a.state = a.staged.prior
	a.staged = nil
	return Outcome{State: a.state, Pricing: a.lastPricing}, nil
}

// Reprice recomputes pricing over the committed state without mutating it.
// Calling Reprice on a closed order is structural misuse.
func (a *Aggregate) Reprice(facts catalog.Facts, now time.Time) (pricing.Result, error) {
	if a.state.Terminal() {
		return pricing.Result{}, ErrOrderClosed
	}
	res := pricing.Price(a.pricingLines(a.lines), a.voucherRef, a.paymentMethod, facts, now)
	a.commitPricing(res)
	return res, nil
}

// Checkoutable reports whether the order can be handed to the commitment
// collaborator right now.
func (a *Aggregate) Checkoutable() error {
	if a.state.Terminal() {
		return ErrOrderClosed
	}
	if a.staged != nil {
		return ErrDecisionPending
	}
	if len(a.lines) == 0 {
		return ErrEmptyOrder
	}
	return nil
}

// MarkCheckedOut transitions to the terminal checked-out state after the
// commitment collaborator accepted the order.
func (a *Aggregate) MarkCheckedOut() error {
	if err := a.Checkoutable(); err != nil {
		return err
	}
	a.state = StateCheckedOut
	return nil
}

// Cancel transitions to the terminal cancelled state.
func (a *Aggregate) Cancel() error {
	if a.state.Terminal() {
		return ErrOrderClosed
	}
	a.staged = nil
	a.state = StateCancelled
	return nil
}

// dropVoucher clears the voucher and applies the payment-method fallback
// when the voucher had constrained the method choice.
func (a *Aggregate) dropVoucher() {
	a.voucherRef = ""
	if a.paymentRestricted {
		a.paymentRestricted = false
		if a.paymentMethod != catalog.DefaultPaymentMethod {
			a.paymentMethod = catalog.DefaultPaymentMethod
			a.observer.PaymentMethodForced(a.id, a.paymentMethod)
		}
	}
}

func (a *Aggregate) lineIndex(lineID string) int {
	for i, l := range a.lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}
