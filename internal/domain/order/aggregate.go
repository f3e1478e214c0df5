package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/pricing"
)

// Aggregate is the single mutable object an order edit session works on.
// It assumes single-writer semantics: one client session edits one aggregate
// at a time, so no internal locking is needed. All mutations are synchronous
// and non-blocking; catalog facts arrive pre-fetched in a Facts snapshot.
type Aggregate struct {
	id            string
	orderType     Type
	state         State
	lines         []Line
	voucherRef    string
	paymentMethod catalog.PaymentMethod
	// paymentRestricted remembers that the attached voucher constrains the
	// payment method, so detaching it falls back to the default method.
	paymentRestricted bool
	editSeq           uint64
	lastPricing       pricing.Result
	staged            *stagedEdit
	observer          PaymentObserver
}

// stagedEdit holds a mutation that was priced but not applied because it
// would invalidate the attached voucher.
type stagedEdit struct {
	lines         []Line
	paymentMethod catalog.PaymentMethod
	result        pricing.Result
	prior         State
}

// New creates an empty draft aggregate. The aggregate starts in StateEmpty
// and enters StateDrafting when the first line is added.
func New(orderType Type, method catalog.PaymentMethod, obs PaymentObserver) *Aggregate {
	if obs == nil {
		obs = NopObserver{}
	}
	if method == "" {
		method = catalog.DefaultPaymentMethod
	}
	return &Aggregate{
		id:            uuid.New().String(),
		orderType:     orderType,
		state:         StateEmpty,
		paymentMethod: method,
		observer:      obs,
	}
}

// Amend reopens a committed order for in-place edits. The aggregate is
// repriced immediately: a voucher that went invalid since the order was
// committed (expired, catalog drift) surfaces as a pending decision instead
// of being silently dropped.
func Amend(snap Snapshot, obs PaymentObserver, facts catalog.Facts, now time.Time) *Aggregate {
	if obs == nil {
		obs = NopObserver{}
	}
	a := &Aggregate{
		id:            snap.ID,
		orderType:     snap.Type,
		state:         StateAmending,
		lines:         append([]Line(nil), snap.Lines...),
		voucherRef:    snap.VoucherRef,
		paymentMethod: snap.PaymentMethod,
		editSeq:       snap.EditSeq,
		observer:      obs,
	}
	if v, ok := facts.Voucher(a.voucherRef); ok {
		a.paymentRestricted = v.RestrictsPayment()
	}

	res := pricing.Price(a.pricingLines(a.lines), a.voucherRef, a.paymentMethod, facts, now)
	if a.voucherRef != "" && !res.Voucher.Valid {
		// Stage a no-op edit so the user decides about the stale voucher.
		a.staged = &stagedEdit{
			lines:         append([]Line(nil), a.lines...),
			paymentMethod: a.paymentMethod,
			result:        res,
			prior:         StateAmending,
		}
		a.state = StateVoucherConflict
		return a
	}
	a.commitPricing(res)
	return a
}

// ID returns the stable aggregate identity.
func (a *Aggregate) ID() string { return a.id }

// State returns the current lifecycle state.
func (a *Aggregate) State() State { return a.state }

// OrderType returns the fulfilment type.
func (a *Aggregate) OrderType() Type { return a.orderType }

// VoucherRef returns the attached voucher ref, or "" when none is attached.
func (a *Aggregate) VoucherRef() string { return a.voucherRef }

// PaymentMethod returns the currently selected payment method.
func (a *Aggregate) PaymentMethod() catalog.PaymentMethod { return a.paymentMethod }

// EditSeq returns the monotonically increasing edit sequence number. It is
// combined with the order ID as the checkout idempotency key.
func (a *Aggregate) EditSeq() uint64 { return a.editSeq }

// Lines returns a copy of the current committed lines in insertion order.
func (a *Aggregate) Lines() []Line {
	return append([]Line(nil), a.lines...)
}

// Pricing returns the result of the last pricing pass over committed state.
func (a *Aggregate) Pricing() pricing.Result { return a.lastPricing }

// PendingConflict returns the conflict awaiting a user decision, or nil.
func (a *Aggregate) PendingConflict() *Conflict {
	if a.staged == nil {
		return nil
	}
	return &Conflict{VoucherRef: a.voucherRef, Reason: a.staged.result.Voucher.Reason}
}

// Snapshot returns the persistence view of the committed state.
func (a *Aggregate) Snapshot() Snapshot {
	return Snapshot{
		ID:            a.id,
		Type:          a.orderType,
		Lines:         a.Lines(),
		VoucherRef:    a.voucherRef,
		PaymentMethod: a.paymentMethod,
		EditSeq:       a.editSeq,
	}
}

func (a *Aggregate) pricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{
			ID:           l.ID,
			VariantRef:   l.VariantRef,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			PromotionRef: l.PromotionRef,
		}
	}
	return out
}

// commitPricing stores the pricing result and refreshes the derived
// per-line promotion discounts.
func (a *Aggregate) commitPricing(res pricing.Result) {
	byLine := make(map[string]pricing.LineSubtotal, len(res.LineSubtotals))
	for _, ls := range res.LineSubtotals {
		byLine[ls.LineID] = ls
	}
	for i := range a.lines {
		if ls, ok := byLine[a.lines[i].ID]; ok {
			a.lines[i].PromotionDiscount = ls.PromotionDiscount
		}
	}
	a.lastPricing = res
}
