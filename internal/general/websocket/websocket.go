// Package websocket pushes dispatch events to connected drivers and
// passengers. Connections are push-only: inbound frames are read solely to
// detect closure and keep the connection alive.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	wsReadDeadline   = 60 * time.Second
	wsPingInterval   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocket handles WebSocket connections with JWT auth.
type WebSocket struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	writeLocks sync.Map // key: *websocket.Conn -> *sync.Mutex
	drivers    sync.Map // key: driverID(string) -> *websocket.Conn
	passengers sync.Map // key: passengerID(string) -> *websocket.Conn
}

// NewWebSocket creates a WebSocket handler with JWT auth.
func NewWebSocket(log *logger.Logger, jwtMgr *jwt.Manager) *WebSocket {
	return &WebSocket{logger: log, jwtMgr: jwtMgr}
}

// ConnectDriver upgrades a driver connection. The token travels in the
// Authorization header or the token query parameter.
func (ws *WebSocket) ConnectDriver(w http.ResponseWriter, r *http.Request) {
	ws.connect(w, r, jwt.RoleDriver, &ws.drivers)
}

// ConnectPassenger upgrades a passenger connection.
func (ws *WebSocket) ConnectPassenger(w http.ResponseWriter, r *http.Request) {
	ws.connect(w, r, jwt.RolePassenger, &ws.passengers)
}

func (ws *WebSocket) connect(w http.ResponseWriter, r *http.Request, role jwt.Role, registry *sync.Map) {
	raw, err := jwt.FromAuthorization(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := ws.jwtMgr.ParseAndValidate(raw)
	if err != nil {
		ws.logger.Error(r.Context(), "ws_auth_failed", "WebSocket authentication failed", err, nil)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := jwt.RoleAllowed(claims, role); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	subject := claims.Subject

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer ws.writeLocks.Delete(conn)

	conn.SetReadLimit(1 << 20) // 1 MiB
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	ws.logger.Info(r.Context(), "ws_connected", "WebSocket connected",
		map[string]any{"subject": subject, "role": string(role)})

	// replacing an existing connection for the same subject is allowed;
	// the old socket times out on its own deadline
	registry.Store(subject, conn)
	defer func() {
		// only remove the registration if it still points at this socket
		if cur, ok := registry.Load(subject); ok && cur == conn {
			registry.Delete(subject)
		}
	}()

	stopPing := make(chan struct{})
	defer close(stopPing)
	go ws.pingLoop(conn, stopPing)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.logger.Error(r.Context(), "ws_unexpected_close", "Connection closed unexpectedly", err,
					map[string]any{"subject": subject})
			} else {
				ws.logger.Info(r.Context(), "ws_connection_closed", "Connection closed",
					map[string]any{"subject": subject})
				ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			return
		}
		// inbound frames are ignored; the read keeps the deadline fresh
	}
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			mu := ws.lockOf(conn)
			mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			mu.Unlock()
			if err != nil {
				// close the socket to unblock the reader
				_ = conn.Close()
				return
			}
		}
	}
}
