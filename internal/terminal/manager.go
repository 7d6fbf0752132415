// Package terminal provides the interactive chat surfaces: a WebSocket
// handler for browsers and a line-oriented loop for the command line.
package terminal

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// SessionManager tracks open chat sockets by connection id.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]*websocket.Conn),
	}
}

// GetActive returns the connection registered under connID.
func (m *SessionManager) GetActive(connID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[connID]
}

// Count returns the number of open connections.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register adds a connection. A different connection already holding connID
// is closed.
func (m *SessionManager) Register(connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.active[connID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[connID] = conn
	slog.Info("Chat socket registered", "conn_id", connID)
}

// Unregister removes conn if it is still the one registered under connID.
func (m *SessionManager) Unregister(connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[connID]; exists && current == conn {
		delete(m.active, connID)
		slog.Info("Chat socket unregistered", "conn_id", connID)
	}
}

// CloseAll terminates every open connection, used on server shutdown.
func (m *SessionManager) CloseAll(reason string) {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[string]*websocket.Conn)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Close(websocket.StatusGoingAway, reason)
			slog.Info("Chat socket closed", "conn_id", id)
		}()
	}
	wg.Wait()
}
