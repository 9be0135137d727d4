// Package handler adapts HTTP requests to the driver-facing service.
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/websocket"
	"ride-dispatch/internal/ports"
)

// DriverHTTPHandler adapts HTTP requests to the DriverService.
type DriverHTTPHandler struct {
	svc       ports.DriverService
	logger    *logger.Logger
	auth      *jwt.Manager
	websocket *websocket.WebSocket
}

// NewDriverHTTPHandler wires an HTTP handler around the DriverService.
func NewDriverHTTPHandler(
	svc ports.DriverService,
	log *logger.Logger,
	auth *jwt.Manager,
	ws *websocket.WebSocket,
) *DriverHTTPHandler {
	return &DriverHTTPHandler{svc: svc, logger: log, auth: auth, websocket: ws}
}

// RegisterRoutes mounts driver endpoints on the provided mux.
func (handler *DriverHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	driverOnly := jwt.AuthMiddlewareFunc(handler.auth, jwt.RoleDriver)

	mux.HandleFunc("POST /drivers/availability", driverOnly(handler.handleSetAvailability))
	mux.HandleFunc("POST /drivers/location", driverOnly(handler.handleSetLocation))
	mux.HandleFunc("GET /drivers/offers", driverOnly(handler.handleActiveOffers))
	mux.HandleFunc("POST /drivers/offers/{offer_id}/accept", driverOnly(handler.handleAcceptOffer))
	mux.HandleFunc("POST /drivers/rides/{ride_id}/status", driverOnly(handler.handleUpdateRideStatus))
	mux.HandleFunc("GET /drivers/rides", driverOnly(handler.handleListRides))

	// the WebSocket endpoint authenticates on its own (token query param)
	mux.HandleFunc("GET /ws/driver", handler.websocket.ConnectDriver)
}

// ----- shared helpers -----

func (handler *DriverHTTPHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return errors.New("Content-Type must be application/json")
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON: " + err.Error())
	}
	return nil
}

func (handler *DriverHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	buf := []byte("{}")
	if data != nil {
		var err error
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (handler *DriverHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

func (handler *DriverHTTPHandler) faultError(ctx context.Context, w http.ResponseWriter, err error) {
	var status int
	switch fault.KindOf(err) {
	case fault.KindInvalidArgument:
		status = http.StatusBadRequest
	case fault.KindUnauthorized:
		status = http.StatusUnauthorized
	case fault.KindForbidden:
		status = http.StatusForbidden
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	handler.httpError(ctx, w, status, msg, err)
}

func (handler *DriverHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		var b [12]byte
		_, _ = rand.Read(b[:])
		reqID = hex.EncodeToString(b[:])
	}
	return handler.logger.WithRequestID(ctx, reqID)
}
