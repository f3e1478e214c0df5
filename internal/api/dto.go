package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
)

type createOrderRequest struct {
	OrderType     string `json:"order_type" validate:"required,oneof=dine_in take_out delivery"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer card"`
}

type addLineRequest struct {
	VariantRef string `json:"variant_ref" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
	Note       string `json:"note" validate:"max=500"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type attachPromotionRequest struct {
	PromotionRef string `json:"promotion_ref" validate:"required"`
}

type attachVoucherRequest struct {
	VoucherRef string `json:"voucher_ref" validate:"required"`
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash bank_transfer card"`
}

const (
	decisionConfirmRemoval = "confirm_removal"
	decisionCancelEdit     = "cancel_edit"
)

type voucherDecisionRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm_removal cancel_edit"`
}

// decode parses the JSON body into dst and runs struct validation.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "parse request body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return errors.Wrap(err, "validate request")
	}
	return nil
}
