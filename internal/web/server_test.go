package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/auth"
	"github.com/oukeidos/mqcomet/internal/pipeline"
	"github.com/oukeidos/mqcomet/internal/report"
	"github.com/oukeidos/mqcomet/internal/xliff"
)

const sampleDoc = `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2" xmlns="urn:oasis:names:tc:xliff:document:1.2" xmlns:mq="MQXliff">
<file source-language="en-US" target-language="fr-FR"><body>
<trans-unit id="1" mq:status="ManuallyConfirmed">
  <source>Hello</source><target>Bonjour</target>
  <mq:insertedmatch matchtype="1" source="MT / EngineA"><target>Salut</target></mq:insertedmatch>
</trans-unit>
<trans-unit id="2" mq:status="ManuallyConfirmed">
  <source>SECRET_SEGMENT_TEXT</source><target>Secret</target>
  <mq:insertedmatch matchtype="1" source="MT / EngineA"><target>Secret MT</target></mq:insertedmatch>
</trans-unit>
</body></file></xliff>`

func newTestServer(t *testing.T, maxUpload int64) *httptest.Server {
	t.Helper()
	s, err := New(Options{
		Defaults: pipeline.Config{
			Backend:     "static",
			StaticScore: 0.5,
			BatchSize:   4,
			Credentials: auth.Chain{Sources: []string{auth.SourceExplicit}},
		},
		MaxUploadBytes: maxUpload,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, url string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" || resp.Header.Get("X-Request-Id") == "" {
		t.Errorf("missing security or request id headers: %v", resp.Header)
	}
}

func TestForm_Get(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{`type="password"`, `name="batch_size"`, `value="4"`, `max="64"`, "Unbabel/wmt22-comet-da"} {
		if !strings.Contains(page, want) {
			t.Errorf("form page missing %q", want)
		}
	}
}

func TestForm_PostShowsResult(t *testing.T) {
	srv := newTestServer(t, 0)
	body, ct := multipartBody(t, "job.mqxliff", sampleDoc, map[string]string{"batch_size": "2"})

	resp, data := post(t, srv.URL+"/", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
	}
	page := string(data)
	for _, want := range []string{
		"job.mqxliff",
		"French",
		"extracted rows: 2",
		"mean 0.5000",
		`download="job_comet_scores.xlsx"`,
		`href="data:application/vnd.openxmlformats-officedocument.spreadsheetml.sheet;base64,`,
		"MT / EngineA",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("result page missing %q", want)
		}
	}
}

func TestForm_PostErrorShowsPublicMessage(t *testing.T) {
	srv := newTestServer(t, 0)
	body, ct := multipartBody(t, "broken.mqxliff", "<xliff><file>", nil)

	resp, data := post(t, srv.URL+"/", body, ct)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), `class="error"`) {
		t.Fatalf("error not rendered: %s", data)
	}
}

func TestAPI_ReturnsWorkbook(t *testing.T) {
	srv := newTestServer(t, 0)
	body, ct := multipartBody(t, `C:\jobs\job.mqxliff`, sampleDoc, map[string]string{"max_segments": "1"})

	resp, data := post(t, srv.URL+"/api/evaluate", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
	}
	if resp.Header.Get("Content-Type") != xlsxMIME {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="job_comet_scores.xlsx"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if resp.Header.Get("X-Target-Language") != "fr-FR" {
		t.Errorf("X-Target-Language = %q", resp.Header.Get("X-Target-Language"))
	}
	if resp.Header.Get("X-Rows") != "1" {
		t.Errorf("X-Rows = %q", resp.Header.Get("X-Rows"))
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("response is not xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(report.SheetScores)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][8] != "0.5" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestAPI_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		status   int
		kind     apperrors.Kind
	}{
		{"no file", "", "", nil, http.StatusBadRequest, apperrors.KindInputNotFound},
		{"empty file", "job.mqxliff", "", nil, http.StatusBadRequest, apperrors.KindInputNotFound},
		{"malformed", "job.mqxliff", "<xliff>", nil, http.StatusUnprocessableEntity, apperrors.KindMalformedDocument},
		{"missing key", "job.mqxliff", sampleDoc, map[string]string{"backend": "gemini"}, http.StatusServiceUnavailable, apperrors.KindScoringUnavailable},
		{"unknown backend", "job.mqxliff", sampleDoc, map[string]string{"backend": "bleu"}, http.StatusBadRequest, apperrors.KindValidation},
	}
	srv := newTestServer(t, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.filename, tt.content, tt.fields)
			resp, data := post(t, srv.URL+"/api/evaluate", body, ct)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, data)
			}
			var got map[string]string
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("error body is not JSON: %s", data)
			}
			if got["kind"] != string(tt.kind) || got["error"] == "" {
				t.Fatalf("unexpected error body %v", got)
			}
			if strings.Contains(string(data), "SECRET_SEGMENT_TEXT") {
				t.Fatalf("segment text leaked into error body")
			}
		})
	}
}

func TestAPI_UploadLimit(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	big := strings.Repeat("x", 3<<19)
	body, ct := multipartBody(t, "job.mqxliff", big, nil)

	resp, data := post(t, srv.URL+"/api/evaluate", body, ct)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(data), "limit") {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
	}
}

func TestAPI_FormOverridesReachPipeline(t *testing.T) {
	var seen pipeline.Config
	prev := evaluate
	evaluate = func(ctx context.Context, cfg pipeline.Config, doc *xliff.Document) (*pipeline.Result, error) {
		seen = cfg
		return pipeline.Evaluate(ctx, cfg, doc)
	}
	t.Cleanup(func() { evaluate = prev })

	srv := newTestServer(t, 0)
	body, ct := multipartBody(t, "job.mqxliff", sampleDoc, map[string]string{
		"batch_size":     "500",
		"token":          "sk-formtoken1234567",
		"reference_free": "true",
	})
	resp, data := post(t, srv.URL+"/api/evaluate", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	if seen.BatchSize != pipeline.MaxBatchSize {
		t.Errorf("batch size = %d, want clamp to %d", seen.BatchSize, pipeline.MaxBatchSize)
	}
	if seen.Credentials.Explicit != "sk-formtoken1234567" || seen.Credentials.Prompt != nil {
		t.Errorf("credentials not passed as explicit source: %+v", seen.Credentials)
	}
	if !seen.ReferenceFree {
		t.Errorf("reference_free not applied")
	}
}

func TestAPI_EndpointIsNotFormControlled(t *testing.T) {
	var hits []string
	rogue := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"scores":[0.9,0.9]}`)
	}))
	t.Cleanup(rogue.Close)
	configured := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"scores":[0.7,0.7]}`)
	}))
	t.Cleanup(configured.Close)

	t.Setenv("HF_TOKEN", "hf_stored_secret_value")
	s, err := New(Options{
		Defaults: pipeline.Config{
			Backend:     "comet",
			Endpoint:    configured.URL,
			BatchSize:   4,
			Credentials: auth.Chain{Sources: []string{auth.SourceExplicit, auth.SourceEnv}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	body, ct := multipartBody(t, "job.mqxliff", sampleDoc, map[string]string{
		"backend":  "comet",
		"endpoint": rogue.URL,
	})
	resp, data := post(t, srv.URL+"/api/evaluate", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	if len(hits) != 0 {
		t.Fatalf("form endpoint was called with Authorization %q", hits)
	}
}

func TestAPI_BackendSwitchDropsConfiguredEndpoint(t *testing.T) {
	var seen pipeline.Config
	prev := evaluate
	evaluate = func(ctx context.Context, cfg pipeline.Config, doc *xliff.Document) (*pipeline.Result, error) {
		seen = cfg
		return &pipeline.Result{Data: []byte("PK")}, nil
	}
	t.Cleanup(func() { evaluate = prev })

	s, err := New(Options{
		Defaults: pipeline.Config{
			Backend:     "comet",
			Endpoint:    "http://127.0.0.1:9999/score",
			Credentials: auth.Chain{Sources: []string{auth.SourceExplicit}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	body, ct := multipartBody(t, "job.mqxliff", sampleDoc, map[string]string{"backend": "openai"})
	if resp, data := post(t, srv.URL+"/api/evaluate", body, ct); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	if seen.Backend != "openai" || seen.Endpoint != "" {
		t.Fatalf("backend = %q, endpoint = %q", seen.Backend, seen.Endpoint)
	}
}

func TestAPI_SegmentCapIsCeiling(t *testing.T) {
	var seen pipeline.Config
	prev := evaluate
	evaluate = func(ctx context.Context, cfg pipeline.Config, doc *xliff.Document) (*pipeline.Result, error) {
		seen = cfg
		return &pipeline.Result{Data: []byte("PK")}, nil
	}
	t.Cleanup(func() { evaluate = prev })

	s, err := New(Options{
		Defaults: pipeline.Config{
			Backend:     "static",
			MaxSegments: 5,
			Credentials: auth.Chain{Sources: []string{auth.SourceExplicit}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	tests := []struct {
		value string
		want  int
	}{
		{"0", 5},
		{"100", 5},
		{"3", 3},
		{"", 5},
	}
	for _, tt := range tests {
		t.Run("max_segments="+tt.value, func(t *testing.T) {
			body, ct := multipartBody(t, "job.mqxliff", sampleDoc, map[string]string{"max_segments": tt.value})
			if resp, data := post(t, srv.URL+"/api/evaluate", body, ct); resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d (%s)", resp.StatusCode, data)
			}
			if seen.MaxSegments != tt.want {
				t.Fatalf("max segments = %d, want %d", seen.MaxSegments, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperrors.Kind
		want int
	}{
		{apperrors.KindRateLimit, http.StatusTooManyRequests},
		{apperrors.KindAuth, http.StatusBadGateway},
		{apperrors.KindTransient, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(apperrors.New(tt.kind, "", nil)); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if got := statusFor(io.EOF); got != http.StatusInternalServerError {
		t.Errorf("statusFor(plain) = %d", got)
	}
}

func TestNewResultView_PreviewLimit(t *testing.T) {
	res := &pipeline.Result{Data: []byte("PK")}
	for i := 0; i < 30; i++ {
		res.Units = append(res.Units, xliff.Unit{ID: "x", Source: strings.Repeat("s", 500)})
		res.Scores = append(res.Scores, 0.1)
	}
	v := newResultView("a.mqxliff", res)
	if len(v.Preview) != previewRows {
		t.Fatalf("preview rows = %d", len(v.Preview))
	}
	if got := []rune(v.Preview[0].Source); len(got) != previewChars {
		t.Fatalf("preview source length = %d", len(got))
	}
	if v.Preview[0].Score != "0.1000" {
		t.Fatalf("preview score = %q", v.Preview[0].Score)
	}
}
