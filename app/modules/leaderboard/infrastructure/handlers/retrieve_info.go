package leaderboardhandlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	leaderboardservice "github.com/thpsrun/website-sub000/app/modules/leaderboard/application"
	"github.com/thpsrun/website-sub000/app/observability/attr"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *LeaderboardHandlers) HandleRunHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "runID")

	res, err := h.service.GetRunHistory(ctx, runID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Run history lookup failed", attr.String("run_id", runID), attr.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if res.IsFailure() {
		h.writeError(w, r, http.StatusNotFound, (*res.Failure).Error())
		return
	}
	h.writeJSON(w, r, http.StatusOK, res.Success)
}

func (h *LeaderboardHandlers) HandleRunHistoryChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "runID")

	png, err := h.service.RunHistoryChart(ctx, runID)
	if err != nil {
		if errors.Is(err, leaderboardservice.ErrRunNotFound) {
			h.writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		h.logger.ErrorContext(ctx, "Run history chart failed", attr.String("run_id", runID), attr.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *LeaderboardHandlers) HandleListLeaderboards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	game := r.URL.Query().Get("game")

	res, err := h.service.ListLeaderboards(ctx, game)
	if err != nil {
		h.logger.ErrorContext(ctx, "Leaderboard listing failed", attr.String("game", game), attr.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if res.IsFailure() {
		h.writeError(w, r, http.StatusNotFound, (*res.Failure).Error())
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"leaderboards": *res.Success})
}

func (h *LeaderboardHandlers) HandleExportGame(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	game := chi.URLParam(r, "game")

	// Buffered so a failure can still become a proper error response.
	var buf bytes.Buffer
	if err := h.service.ExportGameHistory(ctx, game, &buf); err != nil {
		if errors.Is(err, leaderboardservice.ErrGameNotFound) {
			h.writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		h.logger.ErrorContext(ctx, "Export failed", attr.String("game", game), attr.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", game+"-run-history.xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
