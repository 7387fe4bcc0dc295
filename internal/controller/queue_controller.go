// internal/controller/queue_controller.go
package controller

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/internal/queue"
)

// QueueController exposes direct queue operations for operational debugging.
type QueueController struct {
	Queue  queue.Queue
	Logger *slog.Logger
}

func (c *QueueController) PostMessage(w http.ResponseWriter, r *http.Request) {
	var job model.DispatchJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if job.ChannelID == "" || job.RecipientID == "" || job.TemplateID == "" {
		http.Error(w, "channel_id, recipient_id and template_id are required", http.StatusBadRequest)
		return
	}

	if err := c.Queue.Enqueue(r.Context(), job); err != nil {
		c.Logger.Error("failed to enqueue message", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"queued": true})
}

func (c *QueueController) Status(w http.ResponseWriter, r *http.Request) {
	status, err := c.Queue.Status(r.Context())
	if err != nil {
		c.Logger.Error("failed to read queue status", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (c *QueueController) Clear(w http.ResponseWriter, r *http.Request) {
	if err := c.Queue.Drain(r.Context()); err != nil {
		c.Logger.Error("failed to drain queue", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"drained": true})
}
