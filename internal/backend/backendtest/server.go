// Package backendtest runs an in-memory fake of the dataset backend for tests
// and offline development.
package backendtest

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"coco-annotator/internal/backend"
	"coco-annotator/internal/tools"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ImageRecord is one image the fake serves.
type ImageRecord struct {
	Image      backend.Image
	Categories []backend.Category
	// Pixels is served by GET /image/{id}; a blank image of the record size
	// is generated when nil.
	Pixels image.Image
}

// Server is the fake backend. Its exported fields may be changed between
// requests under Lock.
type Server struct {
	sync.Mutex

	Images map[int]*ImageRecord
	// Saved holds the raw bodies of every POST /annotator/data.
	Saved []json.RawMessage
	// DextrRings is returned by the dextr endpoint under the misspelled key.
	DextrRings    [][]float64
	DextrRequests []tools.DextrRequest
	Copies        []CopyCall
	Deleted       []int
	RequestIDs    []string
	// FailWith makes every API call answer with this status when non-zero.
	FailWith int
	// SaveGate blocks save requests until it is closed or receives.
	SaveGate chan struct{}

	nextAnnotationID int
	srv              *httptest.Server
}

// CopyCall records one copy-annotations request.
type CopyCall struct {
	Source, Target int
	CategoryIDs    []int
}

// New starts a fake server.
func New() *Server {
	s := &Server{Images: make(map[int]*ImageRecord), nextAnnotationID: 1000}
	s.srv = httptest.NewServer(s.Router())
	return s
}

// URL returns the API base URL.
func (s *Server) URL() string { return s.srv.URL }

// Client returns an HTTP client for the server.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// AddImage registers an image record.
func (s *Server) AddImage(rec *ImageRecord) {
	s.Lock()
	defer s.Unlock()
	s.Images[rec.Image.ID] = rec
}

// Router returns the routes of the fake.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Get("/annotator/data/{imageID}", s.getData)
	r.Post("/annotator/data", s.saveData)
	r.Post("/annotation/", s.createAnnotation)
	r.Delete("/annotation/{annotationID}", s.deleteAnnotation)
	r.Post("/model/dextr/{imageID}", s.dextr)
	r.Post("/image/copy/{source}/{target}/annotations", s.copyAnnotations)
	r.Get("/image/{imageID}", s.imageFile)
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		s.RequestIDs = append(s.RequestIDs, r.Header.Get(backend.RequestIDHeader))
		fail := s.FailWith
		s.Unlock()
		if fail != 0 {
			http.Error(w, http.StatusText(fail), fail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func intParam(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	return v, err == nil
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "imageID")
	if !ok {
		http.Error(w, "bad image id", http.StatusBadRequest)
		return
	}
	s.Lock()
	rec, found := s.Images[id]
	var resp backend.DataResponse
	if found {
		resp = backend.DataResponse{
			Categories: rec.Categories,
			Dataset:    json.RawMessage(`{"id":1,"name":"fake"}`),
			Image:      rec.Image,
		}
	}
	s.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) saveData(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Lock()
	gate := s.SaveGate
	s.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	s.Lock()
	s.Saved = append(s.Saved, body)
	s.Unlock()
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) createAnnotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageID    int `json:"image_id"`
		CategoryID int `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Lock()
	defer s.Unlock()
	rec, ok := s.Images[req.ImageID]
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.nextAnnotationID++
	a := backend.Annotation{ID: s.nextAnnotationID, ImageID: req.ImageID, CategoryID: req.CategoryID, Segmentation: [][]float64{}}
	for i := range rec.Categories {
		if rec.Categories[i].ID == req.CategoryID {
			rec.Categories[i].Annotations = append(rec.Categories[i].Annotations, a)
		}
	}
	writeJSON(w, a)
}

func (s *Server) deleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "annotationID")
	if !ok {
		http.Error(w, "bad annotation id", http.StatusBadRequest)
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Deleted = append(s.Deleted, id)
	for _, rec := range s.Images {
		for ci := range rec.Categories {
			anns := rec.Categories[ci].Annotations[:0]
			for _, a := range rec.Categories[ci].Annotations {
				if a.ID != id {
					anns = append(anns, a)
				}
			}
			rec.Categories[ci].Annotations = anns
		}
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) dextr(w http.ResponseWriter, r *http.Request) {
	var req tools.DextrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Lock()
	s.DextrRequests = append(s.DextrRequests, req)
	rings := s.DextrRings
	s.Unlock()
	writeJSON(w, map[string]any{"segmentaiton": rings})
}

func (s *Server) copyAnnotations(w http.ResponseWriter, r *http.Request) {
	src, ok1 := intParam(r, "source")
	dst, ok2 := intParam(r, "target")
	if !ok1 || !ok2 {
		http.Error(w, "bad image id", http.StatusBadRequest)
		return
	}
	var req struct {
		CategoryIDs []int `json:"category_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Copies = append(s.Copies, CopyCall{Source: src, Target: dst, CategoryIDs: req.CategoryIDs})

	from, okFrom := s.Images[src]
	to, okTo := s.Images[dst]
	if !okFrom || !okTo {
		http.NotFound(w, r)
		return
	}
	wanted := make(map[int]bool, len(req.CategoryIDs))
	for _, id := range req.CategoryIDs {
		wanted[id] = true
	}
	for _, fc := range from.Categories {
		if len(wanted) > 0 && !wanted[fc.ID] {
			continue
		}
		for ti := range to.Categories {
			if to.Categories[ti].ID != fc.ID {
				continue
			}
			for _, a := range fc.Annotations {
				s.nextAnnotationID++
				a.ID = s.nextAnnotationID
				a.ImageID = dst
				to.Categories[ti].Annotations = append(to.Categories[ti].Annotations, a)
			}
		}
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) imageFile(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "imageID")
	if !ok {
		http.Error(w, "bad image id", http.StatusBadRequest)
		return
	}
	s.Lock()
	rec, found := s.Images[id]
	s.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}
	img := rec.Pixels
	if img == nil {
		blank := image.NewRGBA(image.Rect(0, 0, rec.Image.Width, rec.Image.Height))
		for i := range blank.Pix {
			blank.Pix[i] = 0xff
		}
		img = blank
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// SquareImage returns a white image of the given size with a red square at
// (x0, y0)-(x1, y1).
func SquareImage(w, h, x0, y0, x1, y1 int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				c = color.RGBA{R: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// SavedCount returns the number of completed saves.
func (s *Server) SavedCount() int {
	s.Lock()
	defer s.Unlock()
	return len(s.Saved)
}
