package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"extinguisher_map/internal/config"
	"extinguisher_map/internal/dataset"
	"extinguisher_map/internal/events"
	"extinguisher_map/internal/export"
	"extinguisher_map/internal/floorplan"
	"extinguisher_map/internal/metrics"
	"extinguisher_map/internal/qrlabel"
	"extinguisher_map/internal/queue"
	"extinguisher_map/internal/state"
	"extinguisher_map/internal/store"
)

const (
	defaultLoadsLimit   = 20
	maxLoadsLimit       = 200
	defaultOverlayWidth = 1024
)

// ReloadFunc queues a dataset reload and reports the job id.
type ReloadFunc func(trigger string) (jobID string, ok bool)

// Deps are the components the router reads from.
type Deps struct {
	Config  config.Config
	State   *state.State
	Store   *store.Store
	Queue   *queue.Queue
	Metrics *metrics.Metrics
	Bus     *events.Bus
	Plan    *floorplan.Plan
	Reload  ReloadFunc
	Logger  *zap.Logger
}

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	Deps
}

func NewRouter(d Deps) *Router {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Router{Deps: d}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dataset", r.dataset)
	mux.HandleFunc("GET /api/extinguishers", r.extinguishers)
	mux.HandleFunc("GET /api/extinguishers/{id}", r.extinguisher)
	mux.HandleFunc("GET /api/extinguishers/{id}/qr.png", r.qr)
	mux.HandleFunc("GET /api/search", r.search)
	mux.HandleFunc("GET /api/stats", r.stats)
	mux.HandleFunc("GET /api/buildings", r.buildings)
	mux.HandleFunc("GET /api/buildings/{id}", r.building)
	mux.HandleFunc("GET /api/markers", r.markers)
	mux.HandleFunc("GET /api/floorplan", r.floorplan)
	mux.HandleFunc("GET /api/floorplan/overlay.png", r.overlay)
	mux.HandleFunc("GET /api/export/{format}", r.export)

	mux.HandleFunc("GET /ops/health", r.health)
	mux.HandleFunc("GET /ops/status", r.status)
	mux.HandleFunc("GET /ops/loads", r.loads)
	mux.HandleFunc("POST /ops/reload", r.reload)
	mux.HandleFunc("GET /ops/events", r.events)
}

func (r *Router) snapshot() *dataset.Snapshot {
	if r.State == nil {
		return dataset.Empty()
	}
	return r.State.Snapshot()
}

func (r *Router) dataset(w http.ResponseWriter, req *http.Request) {
	snap := r.snapshot()
	r.respondJSON(w, map[string]any{
		"buildings":     snap.Buildings,
		"extinguishers": snap.Extinguishers,
		"source":        snap.Source,
		"loaded_at":     snap.LoadedAt,
	})
}

func (r *Router) extinguishers(w http.ResponseWriter, req *http.Request) {
	snap := r.snapshot()
	raw := req.URL.Query().Get("building")
	if raw == "" {
		r.respondJSON(w, snap.Extinguishers)
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "building must be an integer", http.StatusBadRequest)
		return
	}
	r.respondJSON(w, snap.ByBuilding(id))
}

func (r *Router) extinguisher(w http.ResponseWriter, req *http.Request) {
	ext, ok := r.snapshot().FindByID(req.PathValue("id"))
	if !ok {
		http.NotFound(w, req)
		return
	}
	r.respondJSON(w, ext)
}

func (r *Router) qr(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if _, ok := r.snapshot().FindByID(id); !ok {
		http.NotFound(w, req)
		return
	}
	size, _ := strconv.Atoi(req.URL.Query().Get("size"))
	body, err := qrlabel.PNG(r.Config.PublicBaseURL, id, size)
	if errors.Is(err, qrlabel.ErrNoBaseURL) {
		body, err = qrlabel.PNG("http://"+req.Host, id, size)
	}
	if err != nil {
		r.Logger.Error("render qr label", zap.String("id", id), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(body)
}

func (r *Router) search(w http.ResponseWriter, req *http.Request) {
	results, active := r.snapshot().Search(req.URL.Query().Get("q"))
	if !active {
		r.respondJSON(w, map[string]any{"active": false})
		return
	}
	r.respondJSON(w, map[string]any{"active": true, "results": results})
}

func (r *Router) stats(w http.ResponseWriter, req *http.Request) {
	snap := r.snapshot()
	raw := req.URL.Query().Get("building")
	if raw == "" {
		r.respondJSON(w, snap.StatusCounts())
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "building must be an integer", http.StatusBadRequest)
		return
	}
	r.respondJSON(w, dataset.CountStatuses(snap.ByBuilding(id)))
}

func (r *Router) buildings(w http.ResponseWriter, req *http.Request) {
	r.respondJSON(w, r.snapshot().BuildingSummaries())
}

func (r *Router) building(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.Atoi(req.PathValue("id"))
	if err != nil {
		http.NotFound(w, req)
		return
	}
	summary, ok := r.snapshot().BuildingSummary(id)
	if !ok {
		http.NotFound(w, req)
		return
	}
	r.respondJSON(w, summary)
}

func (r *Router) mapper() floorplan.Mapper {
	if r.Plan != nil {
		return r.Plan.Mapper()
	}
	return floorplan.NewMapper(r.Config.MapWidth, r.Config.MapHeight)
}

func (r *Router) markers(w http.ResponseWriter, req *http.Request) {
	m := r.mapper()
	snap := r.snapshot()
	payload := map[string]any{
		"markers": floorplan.Markers(snap.Extinguishers, m),
		"bounds":  m.Bounds(),
		"width":   m.Width,
		"height":  m.Height,
	}
	if center, ok := dataset.BoundingCenter(snap.Extinguishers); ok {
		payload["center"] = m.ToSurface(center.X, center.Y)
	}
	r.respondJSON(w, payload)
}

func (r *Router) floorplan(w http.ResponseWriter, req *http.Request) {
	if r.Plan == nil {
		http.NotFound(w, req)
		return
	}
	http.ServeFile(w, req, r.Plan.Path())
}

func (r *Router) overlay(w http.ResponseWriter, req *http.Request) {
	if r.Plan == nil {
		http.NotFound(w, req)
		return
	}
	width := defaultOverlayWidth
	if raw := req.URL.Query().Get("width"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "width must be a positive integer", http.StatusBadRequest)
			return
		}
		width = v
	}
	markers := floorplan.Markers(r.snapshot().Extinguishers, r.Plan.Mapper())
	var buf bytes.Buffer
	if err := r.Plan.WriteOverlay(&buf, markers, width); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, req)
			return
		}
		r.Logger.Error("render overlay", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (r *Router) export(w http.ResponseWriter, req *http.Request) {
	format := req.PathValue("format")
	ct, ok := export.ContentType(format)
	if !ok {
		http.NotFound(w, req)
		return
	}
	now := config.Now()
	var buf bytes.Buffer
	if err := export.Write(&buf, format, r.snapshot(), now); err != nil {
		r.Logger.Error("export failed", zap.String("format", format), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(format, now)))
	_, _ = w.Write(buf.Bytes())
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if r.Store == nil {
		http.Error(w, "store not configured", http.StatusServiceUnavailable)
		return
	}
	if err := r.Store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	snap := r.snapshot()
	payload := map[string]any{
		"dataset": map[string]any{
			"source":        snap.Source,
			"loaded_at":     snap.LoadedAt,
			"buildings":     len(snap.Buildings),
			"extinguishers": len(snap.Extinguishers),
			"counts":        snap.StatusCounts(),
		},
		"metrics": r.Metrics.Snapshot(),
	}
	if r.State != nil {
		if run, ok := r.State.LastRun(); ok {
			payload["last_load"] = run
		}
	}
	if r.Queue != nil {
		payload["queue"] = r.Queue.Stats()
	}
	if r.Bus != nil {
		payload["event_subscribers"] = r.Bus.Subscribers()
	}
	r.respondJSON(w, payload)
}

func (r *Router) loads(w http.ResponseWriter, req *http.Request) {
	if r.Store == nil {
		r.respondJSON(w, []store.LoadRun{})
		return
	}
	limit := defaultLoadsLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = min(v, maxLoadsLimit)
		}
	}
	list, err := r.Store.ListLoads(req.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	r.respondJSON(w, list)
}

func (r *Router) reload(w http.ResponseWriter, req *http.Request) {
	if r.Reload == nil {
		http.Error(w, "reload not available", http.StatusServiceUnavailable)
		return
	}
	jobID, ok := r.Reload("manual")
	if !ok {
		http.Error(w, "reload queue full", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]any{"job_id": jobID, "status": "queued"}); err != nil {
		r.Logger.Warn("write json", zap.Error(err))
	}
}

func (r *Router) events(w http.ResponseWriter, req *http.Request) {
	if r.Bus == nil {
		http.Error(w, "events not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := r.Bus.Subscribe()
	defer r.Bus.Unsubscribe(sub)

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-keepalive.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case ev, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: reload\nid: %s\ndata: %s\n\n", ev.LoadID, data)
			flusher.Flush()
		}
	}
}

func (r *Router) respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.Logger.Warn("write json", zap.Error(err))
	}
}
