// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/eventbus"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
)

const (
	eventBacklog   = 64
	eventKeepalive = 15 * time.Second
)

// handleEvents streams player events as server-sent events. The optional
// "names" query parameter is a comma separated filter. Events are dropped
// for clients that fall behind.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	names := eventbus.Names()
	if q := r.URL.Query().Get("names"); q != "" {
		names = names[:0:0]
		for _, n := range strings.Split(q, ",") {
			name := eventbus.Name(strings.TrimSpace(n))
			if err := eventbus.Validate(name); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			names = append(names, name)
		}
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	bus := s.player.Bus()
	ch := make(chan eventbus.Event, eventBacklog)
	subs := make([]eventbus.Subscription, 0, len(names))
	for _, name := range names {
		subs = append(subs, bus.On(name, func(ev eventbus.Event) {
			select {
			case ch <- ev:
			default:
				logger.Debug().Str(log.FieldEvent, "api.event_dropped").Str("name", string(ev.Name)).Msg("slow event stream client")
			}
		}))
	}
	defer func() {
		for _, sub := range subs {
			bus.Off(sub)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(eventKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-ch:
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				logger.Warn().Err(err).Str("name", string(ev.Name)).Msg("event payload not encodable")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
