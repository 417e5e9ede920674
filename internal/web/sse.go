package web

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// sseBroker manages SSE connections for broadcasting market updates
type sseBroker struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func newSSEBroker() *sseBroker {
	return &sseBroker{
		clients: make(map[chan []byte]struct{}),
	}
}

func (b *sseBroker) register(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
}

func (b *sseBroker) unregister(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
	close(client)
}

func (b *sseBroker) broadcast(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- data:
		default:
			// Client is slow/blocked, skip
		}
	}
}

// watchMarketUpdates re-renders the market fragment whenever the session
// signals a change and pushes it to every SSE client.
func (s *Server) watchMarketUpdates(ctx context.Context) {
	updates := s.market.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			data, err := s.renderMarketFragment()
			if err != nil {
				s.log.Error("render market fragment", "error", err)
				continue
			}
			s.sseBroker.broadcast(data)
		}
	}
}

// renderMarketFragment renders the market lists and the account badge as one
// datastar event.
func (s *Server) renderMarketFragment() ([]byte, error) {
	p := s.page()
	var buf bytes.Buffer
	if err := s.templates.Fragment(&buf, "market-view", p); err != nil {
		return nil, err
	}
	if err := s.templates.Fragment(&buf, "account-badge", p); err != nil {
		return nil, err
	}
	return formatSSEEvent(buf.String()), nil
}

// formatSSEEvent wraps HTML in a datastar-merge-fragments event. Elements are
// merged by id.
func formatSSEEvent(htmlContent string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: datastar-merge-fragments\n")
	for _, line := range strings.Split(htmlContent, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fmt.Fprintf(&buf, "data: fragments %s\n", line)
	}
	fmt.Fprintf(&buf, "\n")
	return buf.Bytes()
}

func (s *Server) writeEventStreamHeaders(w http.ResponseWriter) {
	s.setCacheHeaders(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering
}

func (s *Server) handleMarketStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	s.writeEventStreamHeaders(w)

	clientChan := make(chan []byte, 10)
	s.sseBroker.register(clientChan)
	defer s.sseBroker.unregister(clientChan)

	s.log.Debug("SSE client connected")
	defer s.log.Debug("SSE client disconnected")

	// Send initial state immediately
	if initial, err := s.renderMarketFragment(); err == nil {
		w.Write(initial)
		flusher.Flush()
	}

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-clientChan:
			w.Write(data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}
