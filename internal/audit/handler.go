package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore/internal/platform/httpx"
)

// Handler exposes the audit timeline.
type Handler struct {
	logger   *slog.Logger
	recorder *Recorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, recorder *Recorder) *Handler {
	return &Handler{logger: logger, recorder: recorder}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRecent)
}

type entryResponse struct {
	ID       string         `json:"id"`
	ActorID  int64          `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

func (h *Handler) listRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.recorder.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list audit entries", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryResponse{
			ID:       entry.ID.String(),
			ActorID:  entry.ActorID,
			Action:   entry.Action,
			Entity:   entry.Entity,
			EntityID: entry.EntityID,
			Meta:     entry.Meta,
			At:       entry.At,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}
