// Package api exposes the order edit session over HTTP. Handlers load a
// catalog facts snapshot, run one aggregate operation under the per-order
// session lock, and return the repriced order view.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/feastly/ordercore/internal/checkout"
	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/order"
	"github.com/feastly/ordercore/internal/session"
)

// Server holds the dependencies for the order API.
type Server struct {
	catalog  catalog.Provider
	sessions *session.Store
	checkout *checkout.Service
	observer order.PaymentObserver
	validate *validator.Validate
	now      func() time.Time
}

// NewServer constructs a Server. The observer is attached to every aggregate
// so payment-method fallbacks reach the UI layer.
func NewServer(provider catalog.Provider, sessions *session.Store, checkoutSvc *checkout.Service, observer order.PaymentObserver) *Server {
	if observer == nil {
		observer = order.NopObserver{}
	}
	return &Server{
		catalog:  provider,
		sessions: sessions,
		checkout: checkoutSvc,
		observer: observer,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Routes returns the chi router for the order API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.createOrder)

		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", s.getOrder)
			r.Post("/cancel", s.cancelOrder)
			r.Post("/checkout", s.checkoutOrder)
			r.Post("/amendments", s.amendOrder)
			r.Put("/payment-method", s.setPaymentMethod)

			r.Post("/lines", s.addLine)
			r.Route("/lines/{lineID}", func(r chi.Router) {
				r.Patch("/", s.setQuantity)
				r.Delete("/", s.removeLine)
				r.Post("/promotion", s.attachPromotion)
				r.Delete("/promotion", s.detachPromotion)
			})

			r.Post("/voucher", s.attachVoucher)
			r.Delete("/voucher", s.detachVoucher)
			r.Post("/voucher/decision", s.voucherDecision)
		})
	})

	return r
}

// loadFacts gathers the facts snapshot for one pricing pass: every promotion
// ref on the lines plus any attached or about-to-be-attached voucher refs.
// Failed lookups degrade to an absent fact; they never block repricing.
func (s *Server) loadFacts(r *http.Request, lines []order.Line, extraPromotions []string, voucherRefs []string) catalog.Facts {
	promoRefs := make([]string, 0, len(lines)+len(extraPromotions))
	for _, l := range lines {
		promoRefs = append(promoRefs, l.PromotionRef)
	}
	promoRefs = append(promoRefs, extraPromotions...)
	return catalog.Load(r.Context(), s.catalog, promoRefs, voucherRefs)
}
