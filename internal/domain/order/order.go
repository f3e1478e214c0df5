// Package order implements the order aggregate and its flow state machine:
// a draft cart assembled line by line, repriced after every mutation, with an
// explicit user decision required before an invalidated voucher is dropped.
package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/pricing"
)

// State is the lifecycle state of an order aggregate.
type State string

const (
	// StateEmpty: no lines yet, or all lines removed from a draft.
	StateEmpty State = "EMPTY"
	// StateDrafting: the cart is being assembled or edited.
	StateDrafting State = "DRAFTING"
	// StateVoucherConflict: a staged edit would invalidate the attached
	// voucher; the user must confirm voucher removal or cancel the edit.
	// The voucher is never silently dropped.
	StateVoucherConflict State = "VOUCHER_CONFLICT"
	// StateAmending: an already-committed order reopened for in-place edits.
	StateAmending State = "AMENDING"
	// StateCheckedOut: handed to the payment collaborator. Terminal.
	StateCheckedOut State = "CHECKED_OUT"
	// StateCancelled: abandoned or cancelled. Terminal.
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further mutation is permitted.
func (s State) Terminal() bool {
	return s == StateCheckedOut || s == StateCancelled
}

// Type distinguishes how the order is fulfilled.
type Type string

const (
	TypeDineIn   Type = "dine_in"
	TypeTakeOut  Type = "take_out"
	TypeDelivery Type = "delivery"
)

// Hard errors for structural misuse. Voucher validation failures are not
// errors; they are recoverable facts carried in the pricing result.
var (
	ErrOrderClosed            = errors.New("order is closed, no further mutation is permitted")
	ErrVoucherAlreadyAttached = errors.New("a voucher is already attached to this order")
	ErrNoVoucherAttached      = errors.New("no voucher is attached to this order")
	ErrDecisionPending        = errors.New("a voucher decision is pending, resolve it first")
	ErrNoDecisionPending      = errors.New("no voucher decision is pending")
	ErrEmptyOrder             = errors.New("order has no lines")
)

// LineNotFoundError indicates a mutation referenced an unknown line.
type LineNotFoundError struct {
	LineID string
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("line %s not found", e.LineID)
}

// InvalidQuantityError indicates a non-positive quantity.
type InvalidQuantityError struct {
	VariantRef string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for %s", e.VariantRef)
}

// VoucherRejectedError indicates an explicit voucher attach failed
// validation. The attach is rejected outright rather than attached and later
// invalidated; Reason names the violated invariant.
type VoucherRejectedError struct {
	Ref    string
	Reason pricing.InvalidReason
}

func (e *VoucherRejectedError) Error() string {
	return fmt.Sprintf("voucher %s rejected: %s", e.Ref, e.Reason.Message())
}

// PromotionRejectedError indicates an explicit promotion attach failed
// validation.
type PromotionRejectedError struct {
	Ref string
	Why string
}

func (e *PromotionRejectedError) Error() string {
	return fmt.Sprintf("promotion %s rejected: %s", e.Ref, e.Why)
}

// Line is one product variant in the order. UnitPrice is snapshotted when
// the line is added and never changes afterwards. PromotionDiscount is
// derived on every pricing pass and always satisfies
// 0 <= PromotionDiscount <= UnitPrice.
type Line struct {
	ID                string
	VariantRef        string
	Quantity          int
	UnitPrice         decimal.Decimal
	PromotionRef      string
	PromotionDiscount decimal.Decimal
	Note              string
}

// PaymentObserver is notified when a voucher detach forces the payment
// method back to the default, so the UI can reflect the change without the
// user re-navigating.
type PaymentObserver interface {
	PaymentMethodForced(orderID string, method catalog.PaymentMethod)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) PaymentMethodForced(string, catalog.PaymentMethod) {}

// Conflict describes why a staged edit put the order into
// StateVoucherConflict.
type Conflict struct {
	VoucherRef string
	Reason     pricing.InvalidReason
}

// Outcome is the result of a successful order operation.
type Outcome struct {
	State   State
	Pricing pricing.Result
	// Conflict is set when the operation was staged rather than applied
	// because it would invalidate the attached voucher.
	Conflict *Conflict
	// OrderCancelled is set when removing the last line of an order under
	// amendment cancelled the whole order.
	OrderCancelled bool
}

// Snapshot is the persistence/commitment view of an aggregate.
type Snapshot struct {
	ID            string
	Type          Type
	Lines         []Line
	VoucherRef    string
	PaymentMethod catalog.PaymentMethod
	EditSeq       uint64
}
