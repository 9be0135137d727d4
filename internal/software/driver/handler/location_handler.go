package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ride-dispatch/internal/general/jwt"
)

type setLocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// ----- Handler: POST /drivers/location -----

func (handler *DriverHTTPHandler) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req setLocationRequest
	if err := handler.decodeJSON(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "lat and lng are required", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.SetLocation(ctxWithTimeout, claims.Subject, *req.Lat, *req.Lng)
	if err != nil {
		handler.faultError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
