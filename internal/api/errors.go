package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/feastly/ordercore/internal/checkout"
	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/order"
	"github.com/feastly/ordercore/internal/session"
)

// writeError emits the uniform error envelope: {"code": ..., "message": ...}.
func writeError(w http.ResponseWriter, status int, code, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// respondError maps domain errors to HTTP statuses and stable error codes.
// Voucher and promotion rejections carry the violated invariant as the code
// so clients can branch without parsing messages.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		lineNotFound *order.LineNotFoundError
		badQuantity  *order.InvalidQuantityError
		voucherRej   *order.VoucherRejectedError
		promoRej     *order.PromotionRejectedError
	)

	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
	case errors.Is(err, checkout.ErrNotCommitted):
		writeError(w, http.StatusNotFound, "ORDER_NOT_COMMITTED", "order has no committed revision")
	case errors.As(err, &lineNotFound):
		writeError(w, http.StatusNotFound, "LINE_NOT_FOUND", lineNotFound.Error())

	case errors.Is(err, order.ErrOrderClosed):
		writeError(w, http.StatusConflict, "ORDER_CLOSED", err.Error())
	case errors.Is(err, order.ErrVoucherAlreadyAttached):
		writeError(w, http.StatusConflict, "VOUCHER_ALREADY_ATTACHED", err.Error())
	case errors.Is(err, order.ErrDecisionPending):
		writeError(w, http.StatusConflict, "DECISION_PENDING", err.Error())
	case errors.Is(err, order.ErrNoDecisionPending):
		writeError(w, http.StatusConflict, "NO_DECISION_PENDING", err.Error())
	case errors.Is(err, order.ErrNoVoucherAttached):
		writeError(w, http.StatusConflict, "NO_VOUCHER_ATTACHED", err.Error())

	case errors.Is(err, order.ErrEmptyOrder):
		writeError(w, http.StatusUnprocessableEntity, "EMPTY_ORDER", err.Error())
	case errors.As(err, &badQuantity):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_QUANTITY", badQuantity.Error())
	case errors.As(err, &voucherRej):
		writeError(w, http.StatusUnprocessableEntity, string(voucherRej.Reason), voucherRej.Reason.Message())
	case errors.As(err, &promoRej):
		writeError(w, http.StatusUnprocessableEntity, "PROMOTION_REJECTED", promoRej.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "VARIANT_NOT_FOUND", "product variant not found")

	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// respondBadRequest covers body parse and validation failures.
func respondBadRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
}
