package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type createRideRequest struct {
	PickupAddress  string   `json:"pickup_address"`
	PickupLat      *float64 `json:"pickup_lat"`
	PickupLng      *float64 `json:"pickup_lng"`
	DropoffAddress string   `json:"dropoff_address"`
	DropoffLat     *float64 `json:"dropoff_lat"`
	DropoffLng     *float64 `json:"dropoff_lng"`
}

// ----- Handler: POST /rides -----

func (handler *DispatchHTTPHandler) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req createRideRequest
	if err := handler.decodeJSON(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	in := ports.CreateRideInput{
		PassengerID:    strings.TrimSpace(claims.Subject),
		PickupAddress:  strings.TrimSpace(req.PickupAddress),
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		DropoffAddress: strings.TrimSpace(req.DropoffAddress),
		DropoffLat:     req.DropoffLat,
		DropoffLng:     req.DropoffLng,
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.CreateRide(ctxWithTimeout, in)
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(handler.logger.WithRideID(ctxWithTimeout, res.ID), w, http.StatusCreated, res)
}
