package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ride-dispatch/internal/general/jwt"
)

// ----- Handler: POST /rides/{ride_id}/cancel -----

func (handler *DispatchHTTPHandler) handleCancelRide(w http.ResponseWriter, r *http.Request) {
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

	res, err := handler.svc.CancelRide(ctxWithTimeout, claims.Subject, rideID)
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
