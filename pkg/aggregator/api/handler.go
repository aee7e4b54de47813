package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Agentopians/WeAi/internal/metric"
	"github.com/Agentopians/WeAi/pkg/aggregator"
	"github.com/Agentopians/WeAi/pkg/common/types"
)

const maxBodyBytes = 64 << 10

type Aggregator interface {
	SubmitAttestation(ctx context.Context, att types.Attestation) error
	TaskStatus(taskIndex uint32) (aggregator.TaskSnapshot, error)
}

type Publisher interface {
	PublishTask(ctx context.Context, prompt string, thresholdPercent uint32) (uint32, error)
}

type Config struct {
	Aggregator Aggregator
	// Publisher is optional. Without it the publish route is not served.
	Publisher               Publisher
	DefaultThresholdPercent uint32
}

// Handler handles HTTP requests
type Handler struct {
	aggregator       Aggregator
	publisher        Publisher
	defaultThreshold uint32
}

// user publish request params
type PublishTaskParams struct {
	Prompt           string `json:"prompt"`
	ThresholdPercent uint32 `json:"threshold_percent,omitempty"`
}

type PublishTaskResponse struct {
	TaskIndex uint32 `json:"task_index"`
	Status    string `json:"status"`
}

// NewHandler creates a new handler
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("[API] Aggregator not initialized")
	}
	if cfg.DefaultThresholdPercent > 100 {
		return nil, fmt.Errorf("[API] default threshold %d out of range", cfg.DefaultThresholdPercent)
	}
	return &Handler{
		aggregator:       cfg.Aggregator,
		publisher:        cfg.Publisher,
		defaultThreshold: cfg.DefaultThresholdPercent,
	}, nil
}

// SubmitSignature accepts one operator attestation.
func (h *Handler) SubmitSignature(w http.ResponseWriter, r *http.Request) {
	var req types.SignatureRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		metric.RecordAttestation("malformed")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	att, err := req.Attestation()
	if err != nil {
		metric.RecordAttestation("malformed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.aggregator.SubmitAttestation(r.Context(), att); err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Uint32("task_index", att.TaskIndex).Msg("[API] Failed to submit attestation")
			writeError(w, status, "Internal server error")
			return
		}
		log.Debug().Err(err).
			Uint32("task_index", att.TaskIndex).
			Stringer("operator_id", att.OperatorID).
			Int("status", status).
			Msg("[API] Attestation rejected")
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, types.SignatureResponse{Success: true})
}

// PublishTask creates a new task on chain and registers it with the
// aggregator.
func (h *Handler) PublishTask(w http.ResponseWriter, r *http.Request) {
	var params PublishTaskParams
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(params.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if params.ThresholdPercent == 0 {
		params.ThresholdPercent = h.defaultThreshold
	}
	if params.ThresholdPercent == 0 || params.ThresholdPercent > 100 {
		writeError(w, http.StatusBadRequest, "threshold_percent must be between 1 and 100")
		return
	}

	taskIndex, err := h.publisher.PublishTask(r.Context(), params.Prompt, params.ThresholdPercent)
	if err != nil {
		log.Printf("[API] Failed to publish task: %v", err)
		metric.RecordError("publish")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to publish task: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, PublishTaskResponse{TaskIndex: taskIndex, Status: string(types.TaskStatusOpen)})
}

// GetTaskStatus returns the aggregation progress of a task.
func (h *Handler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "taskIndex")
	idx, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid task index %q", raw))
		return
	}

	snap, err := h.aggregator.TaskStatus(uint32(idx))
	if err != nil {
		if errors.Is(err, aggregator.ErrUnknownTask) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
