package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/database"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/metrics"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/session"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/store"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index", nil)
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about", nil)
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	products, err := store.ListProducts(r.Context(), s.db)
	if err != nil {
		s.logg.Error(r.Context(), "catalog.list_failed", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	s.render(w, r, http.StatusOK, "store", map[string]any{"products": products})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, ok := productIDParam(r)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "product not found")
		return
	}
	user := IdentityFromContext(ctx)

	if _, err := store.AddCartItem(ctx, s.db, user.ID, productID); err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			s.respondError(w, r, http.StatusNotFound, "product not found")
			return
		}
		if errors.Is(err, database.ErrUserNotFound) {
			sess := sessionFromContext(ctx)
			sess.Logout()
			sess.AddFlash(session.FlashInfo, "Please log in to access this page.")
			s.redirect(w, r, "/login")
			return
		}
		s.logg.Error(ctx, "cart.add_failed", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	sessionFromContext(ctx).AddFlash(session.FlashSuccess, "Item added to cart!")
	s.redirect(w, r, "/store")
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := IdentityFromContext(ctx)

	cart, err := store.GetCart(ctx, s.db, user.ID)
	if err != nil {
		s.logg.Error(ctx, "cart.view_failed", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	s.render(w, r, http.StatusOK, "cart", cart)
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, ok := productIDParam(r)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "product not found")
		return
	}
	user := IdentityFromContext(ctx)

	removed, err := store.RemoveCartItem(ctx, s.db, user.ID, productID)
	if err != nil {
		s.logg.Error(ctx, "cart.remove_failed", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	if removed {
		sessionFromContext(ctx).AddFlash(session.FlashInfo, "Item removed from cart!")
	}
	s.redirect(w, r, "/cart")
}

func (s *Server) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := IdentityFromContext(ctx)
	sess := sessionFromContext(ctx)

	order, err := store.Checkout(ctx, s.db, user.ID)
	switch {
	case err == nil:
		s.metrics.IncCheckout(metrics.OutcomeSuccess)
		ctx = s.logg.WithField(ctx, "order_id", order.ID)
		s.logg.Info(ctx, "checkout.completed")
		sess.AddFlash(session.FlashSuccess, fmt.Sprintf("Order #%d confirmed successfully!", order.ID))
		s.redirect(w, r, "/orders")
	case errors.Is(err, database.ErrEmptyCart):
		s.metrics.IncCheckout(metrics.OutcomeEmpty)
		sess.AddFlash(session.FlashWarning, "Your cart is empty")
		s.redirect(w, r, "/store")
	default:
		s.metrics.IncCheckout(metrics.OutcomeFailure)
		s.logg.Error(ctx, "checkout.failed", err)
		sess.AddFlash(session.FlashDanger, "We could not place your order. Please try again.")
		s.redirect(w, r, "/cart")
	}
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := IdentityFromContext(ctx)

	orders, err := store.ListOrders(ctx, s.db, user.ID)
	if err != nil {
		s.logg.Error(ctx, "orders.list_failed", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	s.render(w, r, http.StatusOK, "orders", map[string]any{"orders": orders})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	report := make(map[string]string, len(s.healthChecks))
	for name, check := range s.healthChecks {
		if err := check(r.Context()); err != nil {
			s.logg.Error(r.Context(), "health."+name+"_failed", err)
			report[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}
	s.respondJSON(w, r, status, report)
}

func productIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
