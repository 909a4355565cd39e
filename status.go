package main

import (
	"encoding/json"
	"net/http"

	"coco-annotator/internal/metrics"
	"coco-annotator/internal/session"
	"coco-annotator/ui/canvas"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// sessionStatus is the body of GET /status.
type sessionStatus struct {
	Session  string `json:"session"`
	ImageID  int    `json:"imageId"`
	Modified bool   `json:"modified"`
	Saving   bool   `json:"saving"`
	Tool     string `json:"tool"`
	UndoSize int    `json:"undoSize"`
}

// newStatusRouter serves metrics, a liveness probe and a session summary.
func newStatusRouter(collector *metrics.Collector, s *session.Session, loop *canvas.Loop, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", collector.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		var st sessionStatus
		loop.Do(func() {
			st = sessionStatus{
				Session:  s.ID(),
				ImageID:  s.ImageID(),
				Modified: s.Modified(),
				Saving:   s.Saving(),
				Tool:     string(s.ActiveTool()),
				UndoSize: s.UndoStash().Len(),
			}
		})
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st); err != nil {
			logger.Warn("encode status", zap.Error(err))
		}
	})
	return r
}
