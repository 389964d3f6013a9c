package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mechatbot/mechatbot/chat"
	"github.com/mechatbot/mechatbot/engine"
)

type askRequest struct {
	Question string      `json:"question"`
	History  []chat.Turn `json:"history"`
	Filter   struct {
		CreatedBy    string `json:"createdBy"`
		InstanceName string `json:"instanceName"`
	} `json:"filter"`
	TopK int `json:"topK,omitempty"`
}

// ask streams the answer pipeline as server-sent events. Validation failures
// are rejected with a JSON body before the stream starts; failures after
// that arrive as error events on the stream itself.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, statusBadRequest.withMessage("malformed request body"))
		return
	}

	events, err := s.engine.Ask(r.Context(), &engine.AskRequest{
		Question:     req.Question,
		History:      req.History,
		CreatedBy:    req.Filter.CreatedBy,
		InstanceName: req.Filter.InstanceName,
		TopK:         req.TopK,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeStatus(w, statusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("failed to encode stream event", "err", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
			// Client went away; the request context cancellation stops the
			// producer.
			return
		}
		flusher.Flush()
	}
}
