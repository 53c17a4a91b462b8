package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/onnwee/vod-tender/archive/db"
	"github.com/onnwee/vod-tender/archive/vod"
)

// locate finds the description for basename: a resident record first, then the root
// and its immediate subdirectories.
func (h *Handlers) locate(basename string) (string, bool) {
	if rec := h.registry.Get(basename); rec != nil {
		return rec.Filename, true
	}
	name := basename + ".json"
	if _, err := os.Stat(filepath.Join(h.root, name)); err == nil {
		return filepath.Join(h.root, name), true
	}
	matches, _ := filepath.Glob(filepath.Join(h.root, "*", name))
	if len(matches) > 0 {
		return matches[0], true
	}
	return "", false
}

func validBasename(b string) bool {
	return b != "" && b != "." && b != ".." && !strings.ContainsAny(b, `/\`)
}

// HandleVod returns the API view of one record, loading it if needed.
func (h *Handlers) HandleVod(w http.ResponseWriter, r *http.Request) {
	basename := r.PathValue("basename")
	if !validBasename(basename) {
		writeError(w, http.StatusBadRequest, "invalid basename")
		return
	}
	path, ok := h.locate(basename)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	rec, err := h.registry.Load(r.Context(), path)
	switch {
	case errors.Is(err, vod.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case errors.Is(err, vod.ErrEmpty), errors.Is(err, vod.ErrMalformed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.log.Error("load vod", slog.String("basename", basename), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}
	rec.Lock()
	view := rec.APIView()
	rec.Unlock()
	writeJSON(w, http.StatusOK, view)
}

// HandleVodsList pages through the Postgres index.
func (h *Handlers) HandleVodsList(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "index disabled")
		return
	}
	q := r.URL.Query()
	f := db.ListFilter{
		StreamerLogin: q.Get("streamer"),
		ExistStatus:   vod.ExistStatus(parseIntQuery(r, "exist_status", 0)),
		MuteStatus:    vod.MuteStatus(parseIntQuery(r, "mute_status", 0)),
		Limit:         parseIntQuery(r, "limit", 50),
		Offset:        parseIntQuery(r, "offset", 0),
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	items, err := h.index.List(r.Context(), f)
	if err != nil {
		h.log.Error("list vods", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if items == nil {
		items = []vod.Summary{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleDebugVods lists the resident records and the download slot usage.
func (h *Handlers) HandleDebugVods(w http.ResponseWriter, r *http.Request) {
	recs := h.registry.Records()
	out := make([]vod.Summary, 0, len(recs))
	for _, rec := range recs {
		rec.Lock()
		out = append(out, rec.Summary())
		rec.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"records": out,
		"downloads": map[string]int{
			"active": vod.GetActiveDownloads(),
			"max":    vod.GetMaxConcurrentDownloads(),
		},
	})
}
