package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

// ----- Handler: GET /drivers/offers -----

func (handler *DriverHTTPHandler) handleActiveOffers(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.ActiveOffers(ctxWithTimeout, claims.Subject)
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	type listResponse struct {
		Offers []ports.OfferView `json:"offers"`
	}
	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, listResponse{Offers: res})
}

// ----- Handler: POST /drivers/offers/{offer_id}/accept -----

func (handler *DriverHTTPHandler) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}
	offerID := r.PathValue("offer_id")

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.AcceptOffer(ctxWithTimeout, claims.Subject, offerID)
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(handler.logger.WithRideID(ctxWithTimeout, res.Ride.ID), w, http.StatusOK, res)
}
