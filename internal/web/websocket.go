package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"propmarket.dapp/pmc/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStatusWS streams status messages, oldest first, starting with the
// last 50.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reader goroutine notices client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	initial := s.logger.GetRecent(50)
	for i := len(initial) - 1; i >= 0; i-- {
		if err := conn.WriteJSON(initial[i]); err != nil {
			return
		}
	}

	var last time.Time
	if len(initial) > 0 {
		last = initial[0].Timestamp
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			var fresh []logger.Message
			for _, msg := range s.logger.GetRecent(20) {
				if msg.Timestamp.After(last) {
					fresh = append(fresh, msg)
				}
			}
			for i := len(fresh) - 1; i >= 0; i-- {
				if err := conn.WriteJSON(fresh[i]); err != nil {
					return
				}
				last = fresh[i].Timestamp
			}
		}
	}
}
