package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/files"
	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/metadata"
	"github.com/oukeidos/mqcomet/internal/pipeline"
	"github.com/oukeidos/mqcomet/internal/report"
	"github.com/oukeidos/mqcomet/internal/xliff"
)

const (
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	previewRows  = 20
	previewChars = 200
	formMemory   = 32 << 20
)

type formValues struct {
	Backend       string
	Model         string
	BatchSize     int
	MaxSegments   int
	ReferenceFree bool
}

type previewRow struct {
	ID       string
	Provider string
	Source   string
	MT       string
	Ref      string
	Score    string
}

type resultView struct {
	FileName     string
	LanguagePair string
	Stats        xliff.Stats
	Rows         int
	Summary      report.Summary
	Preview      []previewRow
	DownloadName string
	DownloadURI  template.URL
}

type pageData struct {
	Backends    []string
	Models      []metadata.Model
	Form        formValues
	Error       string
	Result      *resultView
	MaxUploadMB int64
	MinBatch    int
	MaxBatch    int
	SegmentCap  int
}

var templateFuncs = template.FuncMap{
	"score": report.FormatScore,
}

func (s *Server) defaultForm() formValues {
	d := s.opts.Defaults
	batch := d.BatchSize
	if batch <= 0 {
		batch = 4
	}
	return formValues{
		Backend:       d.Backend,
		Model:         d.Model,
		BatchSize:     batch,
		MaxSegments:   d.MaxSegments,
		ReferenceFree: d.ReferenceFree,
	}
}

func (s *Server) newPage(form formValues) pageData {
	return pageData{
		Backends:    metadata.Backends(),
		Models:      metadata.Models,
		Form:        form,
		MaxUploadMB: s.opts.MaxUploadBytes >> 20,
		MinBatch:    pipeline.MinBatchSize,
		MaxBatch:    pipeline.MaxBatchSize,
		SegmentCap:  s.opts.Defaults.MaxSegments,
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.newPage(s.defaultForm()))
}

func (s *Server) handleEvaluateForm(w http.ResponseWriter, r *http.Request) {
	form := s.defaultForm()
	res, name, err := s.evaluateUpload(w, r, &form)
	data := s.newPage(form)
	if err != nil {
		s.logFailure(r, err)
		data.Error = apperrors.PublicMessage(err)
		s.render(w, statusFor(err), data)
		return
	}
	data.Result = newResultView(name, res)
	s.render(w, http.StatusOK, data)
}

func (s *Server) handleEvaluateAPI(w http.ResponseWriter, r *http.Request) {
	form := s.defaultForm()
	res, name, err := s.evaluateUpload(w, r, &form)
	if err != nil {
		s.logFailure(r, err)
		kind, _ := apperrors.KindOf(err)
		writeJSON(w, statusFor(err), map[string]string{
			"error": apperrors.PublicMessage(err),
			"kind":  string(kind),
		})
		return
	}
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(name)))
	w.Header().Set("X-Source-Language", res.Languages.Source)
	w.Header().Set("X-Target-Language", res.Languages.Target)
	w.Header().Set("X-Rows", strconv.Itoa(len(res.Units)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// evaluateUpload reads the multipart form into form and runs the pipeline
// on the uploaded document. The returned name is the upload's base name.
func (s *Server) evaluateUpload(w http.ResponseWriter, r *http.Request, form *formValues) (*pipeline.Result, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", apperrors.New(apperrors.KindValidation, fmt.Sprintf("The upload exceeds the %d MB limit.", s.opts.MaxUploadBytes>>20), err)
		}
		return nil, "", apperrors.New(apperrors.KindValidation, fmt.Sprintf("The form could not be read (uploads are limited to %d MB).", s.opts.MaxUploadBytes>>20), err)
	}
	defer r.MultipartForm.RemoveAll()

	readForm(r, form)

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", apperrors.InputNotFound("Choose a .mqxliff, .xliff or .xlf file to upload.", err)
	}
	defer file.Close()
	name := uploadName(header)
	if !xliff.HasKnownExtension(name) {
		logger.Warn("Upload does not have a memoQ bilingual extension; trying anyway", "file", name)
	}

	doc, err := xliff.Parse(name, file)
	if err != nil {
		return nil, name, err
	}

	// The endpoint comes from the operator's config only. Another backend
	// uses its built-in endpoint.
	cfg := s.opts.Defaults
	if form.Backend != cfg.Backend {
		cfg.Endpoint = ""
	}
	cfg.Backend = form.Backend
	cfg.Model = form.Model
	cfg.BatchSize = form.BatchSize
	cfg.MaxSegments = form.MaxSegments
	cfg.ReferenceFree = form.ReferenceFree
	cfg.Credentials.Explicit = r.FormValue("token")
	cfg.Credentials.Prompt = nil

	res, err := evaluate(r.Context(), cfg, doc)
	if err != nil {
		return nil, name, err
	}
	return res, name, nil
}

// readForm overrides defaults with whatever the form supplied. Unparseable
// numbers keep the default; the pipeline clamps the rest. A configured
// segment cap is a ceiling the form can only lower.
func readForm(r *http.Request, form *formValues) {
	segmentCap := form.MaxSegments
	if v := strings.TrimSpace(r.FormValue("backend")); v != "" {
		if v != form.Backend {
			form.Model = ""
		}
		form.Backend = v
	}
	if v := strings.TrimSpace(r.FormValue("model")); v != "" {
		form.Model = v
	}
	if n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("batch_size"))); err == nil {
		form.BatchSize, _ = pipeline.ClampBatchSize(n)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("max_segments"))); err == nil && n >= 0 {
		if segmentCap > 0 && (n == 0 || n > segmentCap) {
			n = segmentCap
		}
		form.MaxSegments = n
	}
	if r.Form.Has("reference_free") {
		form.ReferenceFree = r.FormValue("reference_free") != "" && r.FormValue("reference_free") != "false"
	}
}

func uploadName(h *multipart.FileHeader) string {
	name := filepath.Base(strings.ReplaceAll(h.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.mqxliff"
	}
	return name
}

func downloadName(uploaded string) string {
	return filepath.Base(files.OutputPath(uploaded, files.ReportSuffix, ".xlsx"))
}

func newResultView(name string, res *pipeline.Result) *resultView {
	v := &resultView{
		FileName:     name,
		LanguagePair: res.LanguagePair(),
		Stats:        res.Stats,
		Rows:         len(res.Units),
		Summary:      res.Summary,
		DownloadName: downloadName(name),
		DownloadURI:  template.URL("data:" + xlsxMIME + ";base64," + base64.StdEncoding.EncodeToString(res.Data)),
	}
	for i, u := range res.Units {
		if i == previewRows {
			break
		}
		row := previewRow{
			ID:       u.ID,
			Provider: u.MTProvider,
			Source:   report.TruncateGraphemes(u.Source, previewChars, "…"),
			MT:       report.TruncateGraphemes(u.Hypothesis, previewChars, "…"),
			Ref:      report.TruncateGraphemes(u.Reference, previewChars, "…"),
		}
		if i < len(res.Scores) {
			row.Score = report.FormatScore(res.Scores[i])
		}
		v.Preview = append(v.Preview, row)
	}
	return v
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		logger.Error("Failed to render page", "error", err)
	}
}

func (s *Server) logFailure(r *http.Request, err error) {
	kind, _ := apperrors.KindOf(err)
	logger.Warn("Evaluation failed", "req_id", middleware.GetReqID(r.Context()), "kind", string(kind), "error", err)
}

// statusFor maps an error kind to the HTTP status the client sees.
func statusFor(err error) int {
	kind, ok := apperrors.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case apperrors.KindInputNotFound, apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindMalformedDocument:
		return http.StatusUnprocessableEntity
	case apperrors.KindScoringUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.KindRateLimit:
		return http.StatusTooManyRequests
	case apperrors.KindAuth, apperrors.KindTransient, apperrors.KindBadRequest:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
