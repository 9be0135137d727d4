package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SendToDriver pushes a JSON message to a connected driver.
func (ws *WebSocket) SendToDriver(driverID string, msg any) error {
	return ws.send(&ws.drivers, driverID, msg)
}

// SendToPassenger pushes a JSON message to a connected passenger.
func (ws *WebSocket) SendToPassenger(passengerID string, msg any) error {
	return ws.send(&ws.passengers, passengerID, msg)
}

func (ws *WebSocket) send(registry *sync.Map, subject string, msg any) error {
	v, ok := registry.Load(subject)
	if !ok {
		return fmt.Errorf("%s not connected", subject)
	}
	conn := v.(*websocket.Conn)

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ws message: %w", err)
	}
	return ws.wsWriteMessage(conn, websocket.TextMessage, payload)
}

// wsWriteMessage sets a short write deadline and writes a message.
func (ws *WebSocket) wsWriteMessage(conn *websocket.Conn, mt int, payload []byte) error {
	mu := ws.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(mt, payload)
}

// wsWriteClose sends a close control frame with the given code and reason.
func (ws *WebSocket) wsWriteClose(conn *websocket.Conn, code int, reason string) {
	mu := ws.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}

// lockOf returns the writer mutex for a specific connection.
func (ws *WebSocket) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := ws.writeLocks.Load(conn); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := ws.writeLocks.LoadOrStore(conn, mu)
	return actual.(*sync.Mutex)
}
