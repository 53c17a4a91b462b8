package server

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/vod-tender/archive/telemetry"
	"github.com/onnwee/vod-tender/archive/vod"
)

// HandleCron runs one bulk verification pass and returns its report.
func (h *Handlers) HandleCron(w http.ResponseWriter, r *http.Request) {
	kind := vod.VerifyKind(r.PathValue("kind"))
	if kind != vod.VerifyDeleted && kind != vod.VerifyMuted {
		writeError(w, http.StatusNotFound, "unknown cron job")
		return
	}
	if h.job == nil {
		writeError(w, http.StatusServiceUnavailable, "verification not configured")
		return
	}
	log := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "cron"), slog.String("kind", string(kind)))
	report, err := h.job.Run(r.Context(), kind)
	if err != nil {
		log.Error("cron run failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info("cron run finished", slog.Int("checked", report.Checked), slog.Int("failed", report.Failed), slog.Int("flagged", len(report.Flagged)))
	writeJSON(w, http.StatusOK, report)
}
