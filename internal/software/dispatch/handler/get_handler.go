package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

// ----- Handler: GET /rides/{ride_id} -----

func (handler *DispatchHTTPHandler) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}
	rideID := r.PathValue("ride_id")
	ctx = handler.logger.WithRideID(ctx, rideID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.GetRide(ctxWithTimeout, claims.Subject, rideID)
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- Handler: GET /rides -----

func (handler *DispatchHTTPHandler) handleListRides(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.ListMyRides(ctxWithTimeout, claims.Subject)
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	type listResponse struct {
		Rides []ports.RideView `json:"rides"`
	}
	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, listResponse{Rides: res})
}
