package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

// setAvailabilityRequest accepts either the explicit availability value or
// the is_online shorthand.
type setAvailabilityRequest struct {
	Availability *string `json:"availability"`
	IsOnline     *bool   `json:"is_online"`
}

// ----- Handler: POST /drivers/availability -----

func (handler *DriverHTTPHandler) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req setAvailabilityRequest
	if err := handler.decodeJSON(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	in := ports.SetAvailabilityInput{DriverID: claims.Subject, IsOnline: req.IsOnline}
	if req.Availability != nil {
		a, err := driver.ParseAvailability(*req.Availability)
		if err != nil {
			handler.faultError(ctx, w, err)
			return
		}
		in.Availability = &a
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.SetAvailability(ctxWithTimeout, in)
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
