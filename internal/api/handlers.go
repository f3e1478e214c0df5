package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/order"
)

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}

	agg := order.New(order.Type(req.OrderType), catalog.PaymentMethod(req.PaymentMethod), s.observer)
	s.sessions.Put(agg)
	writeView(w, http.StatusCreated, newOrderView(agg))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	var view orderView
	err := s.sessions.With(chi.URLParam(r, "orderID"), func(agg *order.Aggregate) error {
		view = newOrderView(agg)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

func (s *Server) addLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}

	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		variant, err := s.catalog.GetVariant(r.Context(), req.VariantRef)
		if err != nil {
			return order.Outcome{}, err
		}
		facts := s.loadFacts(r, agg.Lines(), nil, []string{agg.VoucherRef()})
		return agg.AddLine(*variant, req.Quantity, req.Note, facts, s.now())
	})
}

func (s *Server) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	lineID := chi.URLParam(r, "lineID")

	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		facts := s.loadFacts(r, agg.Lines(), nil, []string{agg.VoucherRef()})
		return agg.SetQuantity(lineID, req.Quantity, facts, s.now())
	})
}

func (s *Server) removeLine(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")

	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		facts := s.loadFacts(r, agg.Lines(), nil, []string{agg.VoucherRef()})
		return agg.RemoveLine(lineID, facts, s.now())
	})
}

func (s *Server) attachPromotion(w http.ResponseWriter, r *http.Request) {
	var req attachPromotionRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	lineID := chi.URLParam(r, "lineID")

	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		facts := s.loadFacts(r, agg.Lines(), []string{req.PromotionRef}, []string{agg.VoucherRef()})
		return agg.AttachPromotion(lineID, req.PromotionRef, facts, s.now())
	})
}

func (s *Server) detachPromotion(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")

	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		facts := s.loadFacts(r, agg.Lines(), nil, []string{agg.VoucherRef()})
		return agg.DetachPromotion(lineID, facts, s.now())
	})
}

func (s *Server) attachVoucher(w http.ResponseWriter, r *http.Request) {
	var req attachVoucherRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}

	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		facts := s.loadFacts(r, agg.Lines(), nil, []string{req.VoucherRef})
		return agg.AttachVoucher(req.VoucherRef, facts, s.now())
	})
}

func (s *Server) detachVoucher(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		facts := s.loadFacts(r, agg.Lines(), nil, nil)
		return agg.DetachVoucher(facts, s.now())
	})
}

func (s *Server) voucherDecision(w http.ResponseWriter, r *http.Request) {
	var req voucherDecisionRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}

	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		switch req.Action {
		case decisionConfirmRemoval:
			facts := s.loadFacts(r, agg.Lines(), nil, nil)
			return agg.ConfirmVoucherRemoval(facts, s.now())
		default:
			return agg.CancelPendingEdit()
		}
	})
}

func (s *Server) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := s.decode(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}

	s.mutate(w, r, func(agg *order.Aggregate) (order.Outcome, error) {
		facts := s.loadFacts(r, agg.Lines(), nil, []string{agg.VoucherRef()})
		return agg.SetPaymentMethod(catalog.PaymentMethod(req.PaymentMethod), facts, s.now())
	})
}

// checkoutOrder commits the order through the checkout service. Committing is
// idempotent on (order ID, edit sequence): a retried checkout returns the
// original commitment instead of double-committing.
func (s *Server) checkoutOrder(w http.ResponseWriter, r *http.Request) {
	var view orderView
	err := s.sessions.With(chi.URLParam(r, "orderID"), func(agg *order.Aggregate) error {
		if err := agg.Checkoutable(); err != nil {
			return err
		}

		facts := s.loadFacts(r, agg.Lines(), nil, []string{agg.VoucherRef()})
		res, err := agg.Reprice(facts, s.now())
		if err != nil {
			return err
		}
		// A voucher that went invalid between the last edit and checkout needs
		// an explicit decision; it is never dropped on the way out the door.
		if agg.VoucherRef() != "" && !res.Voucher.Valid {
			return &order.VoucherRejectedError{Ref: agg.VoucherRef(), Reason: res.Voucher.Reason}
		}

		if _, err := s.checkout.Submit(r.Context(), agg.Snapshot(), res); err != nil {
			return err
		}
		if err := agg.MarkCheckedOut(); err != nil {
			return err
		}
		view = newOrderView(agg)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// amendOrder reopens the latest committed revision for in-place edits.
func (s *Server) amendOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	committed, err := s.checkout.Latest(r.Context(), orderID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	snap := order.Snapshot{
		ID:            committed.OrderID,
		Type:          committed.Type,
		Lines:         committed.Lines,
		VoucherRef:    committed.VoucherRef,
		PaymentMethod: committed.PaymentMethod,
		EditSeq:       committed.EditSeq,
	}
	facts := s.loadFacts(r, snap.Lines, nil, []string{snap.VoucherRef})
	agg := order.Amend(snap, s.observer, facts, s.now())
	s.sessions.Put(agg)
	writeView(w, http.StatusOK, newOrderView(agg))
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var view orderView
	err := s.sessions.With(chi.URLParam(r, "orderID"), func(agg *order.Aggregate) error {
		if err := agg.Cancel(); err != nil {
			return err
		}
		view = newOrderView(agg)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// mutate runs one aggregate operation under the per-order session lock and
// responds with the repriced order view.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(agg *order.Aggregate) (order.Outcome, error)) {
	var view orderView
	err := s.sessions.With(chi.URLParam(r, "orderID"), func(agg *order.Aggregate) error {
		out, err := op(agg)
		if err != nil {
			return err
		}
		view = newOrderView(agg)
		view.OrderCancelled = out.OrderCancelled
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}
