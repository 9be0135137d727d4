// Package handler adapts HTTP requests to the passenger-facing dispatch
// service.
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/websocket"
	"ride-dispatch/internal/ports"
)

// DispatchHTTPHandler adapts HTTP requests to the DispatchService.
type DispatchHTTPHandler struct {
	svc       ports.DispatchService
	logger    *logger.Logger
	auth      *jwt.Manager
	websocket *websocket.WebSocket
}

// NewDispatchHTTPHandler wires an HTTP handler around the DispatchService.
func NewDispatchHTTPHandler(
	svc ports.DispatchService,
	log *logger.Logger,
	auth *jwt.Manager,
	ws *websocket.WebSocket,
) *DispatchHTTPHandler {
	return &DispatchHTTPHandler{svc: svc, logger: log, auth: auth, websocket: ws}
}

// RegisterRoutes mounts passenger endpoints on the provided mux.
func (handler *DispatchHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	passengerOnly := jwt.AuthMiddlewareFunc(handler.auth, jwt.RolePassenger)

	mux.HandleFunc("POST /rides", passengerOnly(handler.handleCreateRide))
	mux.HandleFunc("GET /rides", passengerOnly(handler.handleListRides))
	mux.HandleFunc("GET /rides/{ride_id}", passengerOnly(handler.handleGetRide))
	mux.HandleFunc("POST /rides/{ride_id}/cancel", passengerOnly(handler.handleCancelRide))

	// the WebSocket endpoint authenticates on its own (token query param)
	mux.HandleFunc("GET /ws/passenger", handler.websocket.ConnectPassenger)

	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

// ----- token issuing (development convenience, mirrors the auth service) -----

type tokenRequest struct {
	UserID string   `json:"user_id"`
	Role   jwt.Role `json:"role"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      jwt.Role  `json:"role"`
}

func (handler *DispatchHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req tokenRequest
	if err := handler.decodeJSON(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	token, claims, err := handler.auth.IssueUserToken(req.UserID, req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "failed to generate token", err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, tokenResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      req.Role,
	})
}

// ----- shared helpers -----

// decodeJSON enforces content type, bounds the body and decodes strictly.
func (handler *DispatchHTTPHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
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

// jsonResponse encodes to a buffer first so the status can still change on
// encode failure.
func (handler *DispatchHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
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

// httpError sends a JSON error response with a message.
func (handler *DispatchHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
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

// faultError maps a service error to its HTTP status.
func (handler *DispatchHTTPHandler) faultError(ctx context.Context, w http.ResponseWriter, err error) {
	status := httpStatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	handler.httpError(ctx, w, status, msg, err)
}

func httpStatusOf(err error) int {
	switch fault.KindOf(err) {
	case fault.KindInvalidArgument:
		return http.StatusBadRequest
	case fault.KindUnauthorized:
		return http.StatusUnauthorized
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *DispatchHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
