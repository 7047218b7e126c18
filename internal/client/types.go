package client

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// =============================================================================
// AGENT KINDS
// =============================================================================

// AgentKind selects which backend capability services a request.
type AgentKind string

const (
	AgentAuto         AgentKind = "auto"
	AgentDataAnalysis AgentKind = "data_analysis"
	AgentPDF          AgentKind = "pdf"
	AgentPPT          AgentKind = "ppt"
	AgentDashboard    AgentKind = "dashboard"
)

// AgentKinds lists every kind in display order.
var AgentKinds = []AgentKind{AgentAuto, AgentDataAnalysis, AgentPDF, AgentPPT, AgentDashboard}

// ParseAgentKind accepts a kind name; the empty string means auto.
func ParseAgentKind(s string) (AgentKind, error) {
	k := AgentKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return AgentAuto, nil
	}
	if !slices.Contains(AgentKinds, k) {
		return "", fmt.Errorf("%w: %q (want one of auto, data_analysis, pdf, ppt, dashboard)", ErrUnknownAgent, s)
	}
	return k, nil
}

// Label is the human-readable agent name.
func (k AgentKind) Label() string {
	switch k {
	case AgentDataAnalysis:
		return "Data Analysis & Visualization Agent"
	case AgentPDF:
		return "PDF Report Agent"
	case AgentPPT:
		return "PowerPoint Presentation Agent"
	case AgentDashboard:
		return "Interactive Dashboard Agent"
	default:
		return "Auto-detect"
	}
}

// =============================================================================
// RESULTS
// =============================================================================

// Image is one generated chart.
type Image struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AnalysisResult is the backend's answer to an analyze request.
// Only Response is always present.
type AnalysisResult struct {
	Response      string   `json:"response"`
	Images        []Image  `json:"images,omitempty"`
	ImagePaths    []string `json:"image_paths,omitempty"`
	PDFPath       *string  `json:"pdf_path,omitempty"`
	PPTPath       *string  `json:"ppt_path,omitempty"`
	DashboardPath *string  `json:"dashboard_path,omitempty"`
}

// PDF returns the PDF artifact location, if the response carries one.
func (r *AnalysisResult) PDF() (string, bool) { return present(r.PDFPath) }

// PPT returns the slide deck location, if the response carries one.
func (r *AnalysisResult) PPT() (string, bool) { return present(r.PPTPath) }

// Dashboard returns the dashboard location, if the response carries one.
func (r *AnalysisResult) Dashboard() (string, bool) { return present(r.DashboardPath) }

func present(p *string) (string, bool) {
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

// =============================================================================
// UPLOADS
// =============================================================================

// SupportedExtensions are the tabular formats the backend loader reads.
var SupportedExtensions = []string{".csv", ".xlsx", ".xls", ".txt"}

// Upload is a file staged for the next analyze request.
type Upload struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// NewUpload stages the file at path after checking it exists and has a
// supported extension.
func NewUpload(path string) (*Upload, error) {
	name := filepath.Base(path)
	if err := checkExtension(name); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("stage upload: %s is a directory", path)
	}

	return &Upload{
		Name: name,
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// NewUploadBytes stages in-memory content under name.
func NewUploadBytes(name string, data []byte) (*Upload, error) {
	if err := checkExtension(name); err != nil {
		return nil, err
	}
	return &Upload{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}, nil
}

// Open returns a fresh reader over the staged content.
func (u *Upload) Open() (io.ReadCloser, error) {
	return u.open()
}

func checkExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(SupportedExtensions, ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFile, name)
	}
	return nil
}
