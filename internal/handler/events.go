package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/chat-server-go/internal/errors"
	"github.com/openclaw/chat-server-go/internal/httputil"
	"github.com/openclaw/chat-server-go/internal/sse"
)

// Subscriber hands out per-user event streams; *sse.Broker implements it.
type Subscriber interface {
	Subscribe(userID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

type EventsHandler struct {
	broker    Subscriber
	heartbeat time.Duration
}

func NewEventsHandler(broker Subscriber) *EventsHandler {
	return &EventsHandler{
		broker:    broker,
		heartbeat: sse.HeartbeatInterval,
	}
}

// GET /api/v1/chat/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteErrorWithStatus(w, http.StatusInternalServerError, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(userID)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("userId", userID).Msg("sse connection established")

	ctx := r.Context()

	if err := h.sendEvent(w, flusher, sse.EventConnected, map[string]any{
		"user_id": userID,
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("userId", userID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("userId", userID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Str("userId", userID).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("userId", userID).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
