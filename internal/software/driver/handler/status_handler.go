package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

type updateRideStatusRequest struct {
	Status string `json:"status"`
}

// ----- Handler: POST /drivers/rides/{ride_id}/status -----

func (handler *DriverHTTPHandler) handleUpdateRideStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req updateRideStatusRequest
	if err := handler.decodeJSON(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}
	rideID := r.PathValue("ride_id")
	ctx = handler.logger.WithRideID(ctx, rideID)

	status, err := ride.ParseStatus(req.Status)
	if err != nil {
		handler.faultError(ctx, w, err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.UpdateRideStatus(ctxWithTimeout, ports.UpdateRideStatusInput{
		DriverID:  claims.Subject,
		RideID:    rideID,
		NewStatus: status,
	})
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
