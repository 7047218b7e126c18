// Package stub serves a fake analysis backend that honors the client's HTTP
// contract. It is meant for local development and tests, not analysis.
//
// Like the real backend it keeps the most recent upload as the active
// dataset, so prompts without a file are answered from earlier data.
package stub

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/raphaelgruber/analyst-go/internal/client"
	"github.com/raphaelgruber/analyst-go/internal/router"
)

const maxUploadBytes = 32 << 20

// Request records one analyze call as received.
type Request struct {
	Prompt       string
	AgentType    string
	HasAgentType bool
	Filename     string
}

type dataset struct {
	name    string
	columns []string
	rows    int
	size    int
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	mu        sync.Mutex
	logger    *slog.Logger
	data      *dataset
	artifacts map[string][]byte
	received  []Request
	seq       int
	failNext  int
}

// New creates an empty stub backend.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger, artifacts: make(map[string][]byte)}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.HandleFunc("/analyze", s.analyze).Methods(http.MethodPost)
	r.HandleFunc("/download/{filename}", s.download).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)
	return r
}

// FailNext makes the next analyze call answer with status.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = status
}

// Received returns the analyze calls seen so far, oldest first.
func (s *Server) Received() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.received...)
}

// analyzeResponse mirrors the backend payload, nulls included.
type analyzeResponse struct {
	Response      string         `json:"response"`
	Images        []client.Image `json:"images"`
	ImagePaths    []string       `json:"image_paths"`
	PDFPath       *string        `json:"pdf_path"`
	PPTPath       *string        `json:"ppt_path"`
	DashboardPath *string        `json:"dashboard_path"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := Request{Prompt: r.FormValue("prompt")}
	if vals, ok := r.MultipartForm.Value["agent_type"]; ok && len(vals) > 0 {
		req.AgentType, req.HasAgentType = vals[0], true
	}

	var upload *dataset
	if f, hdr, err := r.FormFile("file"); err == nil {
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "Error processing file: "+err.Error(), http.StatusInternalServerError)
			return
		}
		req.Filename = hdr.Filename
		upload = parseDataset(hdr.Filename, content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, req)

	if s.failNext != 0 {
		status := s.failNext
		s.failNext = 0
		http.Error(w, "Analysis failed: injected failure", status)
		return
	}

	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusUnprocessableEntity)
		return
	}

	kind, err := client.ParseAgentKind(req.AgentType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if upload != nil {
		s.data = upload
	}
	var resp analyzeResponse
	switch {
	case s.data != nil:
		resp = s.respond(downloadBase(r), router.Resolve(kind, req.Prompt), req.Prompt)
	case isTextDeckRequest(req.Prompt):
		resp = s.respondTextDeck(downloadBase(r), req.Prompt)
	default:
		http.Error(w, "No data loaded. Please upload a file first, or provide text content to create a PPT.", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// respond fabricates the artifacts for kind. Caller must hold s.mu.
func (s *Server) respond(base string, kind client.AgentKind, prompt string) analyzeResponse {
	s.seq++
	d := s.data
	summary := fmt.Sprintf("Dataset %s has %d rows and %d columns (%s).",
		d.name, d.rows, len(d.columns), strings.Join(d.columns, ", "))

	resp := analyzeResponse{Images: []client.Image{}, ImagePaths: []string{}}
	publish := func(name string, body []byte) string {
		s.artifacts[name] = body
		return base + name
	}

	switch kind {
	case client.AgentPDF:
		loc := publish(fmt.Sprintf("report_%d.pdf", s.seq), fakePDF(prompt))
		resp.PDFPath = &loc
		resp.Response = summary + " I generated a PDF report for you."
	case client.AgentPPT:
		loc := publish(fmt.Sprintf("presentation_%d.pptx", s.seq), []byte("PK\x03\x04stub-pptx"))
		resp.PPTPath = &loc
		resp.Response = summary + " I created a PowerPoint presentation for you."
	case client.AgentDashboard:
		loc := publish(fmt.Sprintf("dashboard_%d.html", s.seq),
			[]byte("<!doctype html><title>Dashboard</title><h1>"+d.name+"</h1>"))
		resp.DashboardPath = &loc
		resp.Response = summary + " Your interactive dashboard is ready."
	default:
		loc := publish(fmt.Sprintf("chart_%d.png", s.seq), fakePNG)
		resp.Images = append(resp.Images, client.Image{
			URL:         loc,
			Title:       "Overview",
			Description: "Row count per column",
		})
		resp.ImagePaths = append(resp.ImagePaths, loc)
		resp.Response = summary + " Here is an overview chart."
	}
	return resp
}

// Without a dataset, a long enough prompt asking for slides is turned into
// a deck from the prompt text alone.
const minTextDeckPrompt = 100

var deckKeywords = []string{"ppt", "presentation", "powerpoint", "slides"}

func isTextDeckRequest(prompt string) bool {
	if len(prompt) <= minTextDeckPrompt {
		return false
	}
	lower := strings.ToLower(prompt)
	for _, kw := range deckKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// deckTitle takes the text after the first "title:", "about:" or "on:"
// marker, checked in that order, capped at 60 characters.
func deckTitle(prompt string) string {
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	for _, marker := range []string{"title:", "about:", "on:"} {
		for _, line := range lines {
			i := strings.Index(strings.ToLower(line), marker)
			if i < 0 {
				continue
			}
			title := strings.TrimSpace(line[i+len(marker):])
			if len(title) > 60 {
				title = title[:60]
			}
			return title
		}
	}
	return "Presentation"
}

// respondTextDeck builds a deck without a dataset. Caller must hold s.mu.
func (s *Server) respondTextDeck(base, prompt string) analyzeResponse {
	s.seq++
	name := fmt.Sprintf("presentation_%d.pptx", s.seq)
	s.artifacts[name] = []byte("PK\x03\x04stub-pptx")
	loc := base + name
	title := deckTitle(prompt)
	return analyzeResponse{
		Response:   fmt.Sprintf("I have created a PowerPoint presentation titled '%s' for you.", title),
		ImagePaths: []string{},
		PPTPath:    &loc,
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	s.mu.Lock()
	body, ok := s.artifacts[name]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(body))
}

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 100 * time.Millisecond

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs every request with its status and timing.
// Server errors log at ERROR, client errors and slow requests at WARN.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", duration.Milliseconds(),
		}

		switch {
		case rec.status >= 500:
			s.logger.Error("request failed", attrs...)
		case rec.status >= 400:
			s.logger.Warn("request rejected", attrs...)
		case duration > slowRequestThreshold:
			s.logger.Warn("slow request", attrs...)
		default:
			s.logger.Debug("request completed", attrs...)
		}
	})
}

func downloadBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/download/"
}

// parseDataset reads the CSV header and counts rows; other formats only
// report their size.
func parseDataset(name string, content []byte) *dataset {
	d := &dataset{name: name, size: len(content)}

	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".csv" && ext != ".txt" {
		return d
	}

	cr := csv.NewReader(bytes.NewReader(content))
	if ext == ".txt" && bytes.Contains(content, []byte("\t")) {
		cr.Comma = '\t'
	}
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil || len(records) == 0 {
		return d
	}
	d.columns = records[0]
	d.rows = len(records) - 1
	return d
}

func fakePDF(title string) []byte {
	return []byte("%PDF-1.4\n% stub report: " + title + "\n%%EOF\n")
}

// fakePNG is a 1x1 transparent PNG.
var fakePNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
