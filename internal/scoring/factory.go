package scoring

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/auth"
	"github.com/oukeidos/mqcomet/internal/gemini"
	"github.com/oukeidos/mqcomet/internal/metadata"
	"github.com/oukeidos/mqcomet/internal/openai"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Model    string
	Endpoint string
	// Credential is the resolved token or API key, possibly empty.
	Credential     string
	SourceLanguage string
	TargetLanguage string
	ReferenceFree  bool
	StaticScore    float64
	HTTPClient     *http.Client
}

// CredentialFor reports which service backend draws its credential from and
// whether scoring is impossible without one. ok is false for backends that
// use no credential at all.
func CredentialFor(backend string) (svc auth.Service, required bool, ok bool) {
	switch backend {
	case metadata.BackendComet:
		return auth.ServiceHF, false, true
	case metadata.BackendGemini:
		return auth.ServiceGemini, true, true
	case metadata.BackendOpenAI:
		return auth.ServiceOpenAI, true, true
	default:
		return "", false, false
	}
}

// Stubbed in tests.
var newGeminiJudge = func(ctx context.Context, apiKey, model string) (gemini.Judge, error) {
	return gemini.NewClient(ctx, apiKey, model)
}

// New builds the scorer for opts.Backend. A backend that requires a
// credential fails with ScoringUnavailable when opts.Credential is empty.
func New(ctx context.Context, opts Options) (Scorer, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	model := opts.Model
	if model == "" {
		model = metadata.DefaultModel(backend)
	}

	if svc, required, _ := CredentialFor(backend); required && strings.TrimSpace(opts.Credential) == "" {
		return nil, apperrors.ScoringUnavailable(
			fmt.Sprintf("Scoring is unavailable: no %s credential found (set %s or run `mqcomet env setup --service %s`).", svc.DisplayName(), svc.EnvVar(), svc),
			fmt.Errorf("%s backend requires %s", backend, svc.EnvVar()),
		)
	}

	switch backend {
	case metadata.BackendComet:
		endpoint := opts.Endpoint
		if endpoint == "" {
			endpoint = DefaultCometEndpoint
		}
		return &Comet{
			Endpoint:      endpoint,
			Model:         model,
			Token:         opts.Credential,
			ReferenceFree: opts.ReferenceFree,
			Client:        opts.HTTPClient,
		}, nil
	case metadata.BackendGemini:
		judge, err := newGeminiJudge(ctx, opts.Credential, model)
		if err != nil {
			return nil, apperrors.New(apperrors.KindBadRequest, "Failed to create the Gemini client.", err)
		}
		g := NewGemini(judge)
		g.SourceLanguage, g.TargetLanguage, g.ReferenceFree = opts.SourceLanguage, opts.TargetLanguage, opts.ReferenceFree
		return g, nil
	case metadata.BackendOpenAI:
		return &OpenAI{
			Client:         openai.NewClient(opts.Credential, model).WithBaseURL(opts.Endpoint),
			SourceLanguage: opts.SourceLanguage,
			TargetLanguage: opts.TargetLanguage,
			ReferenceFree:  opts.ReferenceFree,
		}, nil
	case metadata.BackendStatic:
		return Static{Value: opts.StaticScore}, nil
	default:
		return nil, apperrors.New(
			apperrors.KindValidation,
			fmt.Sprintf("Unknown scoring backend %q (use one of %s).", opts.Backend, strings.Join(metadata.Backends(), ", ")),
			nil,
		)
	}
}
