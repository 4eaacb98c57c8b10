package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/httpclient"
)

// DefaultCometEndpoint is a locally hosted COMET inference server.
const DefaultCometEndpoint = "http://127.0.0.1:8000/score"

// Comet calls a hosted COMET model: a Hugging Face Inference Endpoint or any
// server speaking the same JSON shape.
type Comet struct {
	Endpoint string
	Model    string
	// Token is sent as a bearer token when set. Public endpoints need none.
	Token string
	// ReferenceFree drops "ref" from every input, for QE models.
	ReferenceFree bool
	Client        *http.Client
}

type cometInput struct {
	Src string `json:"src"`
	MT  string `json:"mt"`
	Ref string `json:"ref,omitempty"`
}

type cometParameters struct {
	Model     string `json:"model,omitempty"`
	BatchSize int    `json:"batch_size"`
}

type cometRequest struct {
	Inputs     []cometInput    `json:"inputs"`
	Parameters cometParameters `json:"parameters"`
}

type cometResponse struct {
	Scores      []float64 `json:"scores"`
	SystemScore *float64  `json:"system_score,omitempty"`
}

func (c *Comet) Score(ctx context.Context, triples []Triple, batchSize int) ([]float64, error) {
	if strings.TrimSpace(c.Endpoint) == "" {
		return nil, apperrors.ScoringUnavailable("No COMET endpoint configured.", fmt.Errorf("comet endpoint is empty"))
	}
	return scoreBatches(ctx, "comet", triples, batchSize, func(ctx context.Context, batch []Triple) ([]float64, error) {
		return c.scoreBatch(ctx, batch, batchSize)
	})
}

func (c *Comet) scoreBatch(ctx context.Context, batch []Triple, batchSize int) ([]float64, error) {
	req := cometRequest{
		Inputs:     make([]cometInput, len(batch)),
		Parameters: cometParameters{Model: c.Model, BatchSize: batchSize},
	}
	for i, t := range batch {
		req.Inputs[i] = cometInput{Src: t.Source, MT: t.Hypothesis}
		if !c.ReferenceFree {
			req.Inputs[i].Ref = t.Reference
		}
	}

	headers := map[string]string{}
	if c.Token != "" {
		headers["Authorization"] = "Bearer " + c.Token
	}

	body, resp, err := httpclient.PostJSON(ctx, c.Client, c.Endpoint, req, headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.New(
			apperrors.KindTransient,
			"COMET endpoint request failed due to a temporary network/runtime error.",
			fmt.Errorf("request failed: %w", err),
		)
	}
	if resp.StatusCode/100 != 2 {
		return nil, classifyCometStatus(resp.StatusCode, resp.Status, c.Token != "")
	}
	return decodeCometScores(body)
}

// decodeCometScores accepts {"scores":[...]} or a bare JSON array.
func decodeCometScores(body []byte) ([]float64, error) {
	var obj cometResponse
	if err := json.Unmarshal(body, &obj); err == nil && obj.Scores != nil {
		return obj.Scores, nil
	}
	var arr []float64
	if err := json.Unmarshal(body, &arr); err != nil {
		return nil, apperrors.New(
			apperrors.KindValidation,
			"COMET endpoint response format was invalid.",
			fmt.Errorf("failed to decode scores: %w", err),
		)
	}
	return arr, nil
}

func classifyCometStatus(statusCode int, status string, hasToken bool) error {
	cause := fmt.Errorf("comet endpoint status=%s", status)
	switch {
	case (statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden) && !hasToken:
		return apperrors.ScoringUnavailable(
			fmt.Sprintf("COMET endpoint requires a token (%d): set HF_TOKEN or enter a token.", statusCode),
			cause,
		)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return apperrors.New(
			apperrors.KindAuth,
			fmt.Sprintf("COMET endpoint rejected the token (%d): please verify HF_TOKEN and its permissions.", statusCode),
			cause,
		)
	case statusCode == http.StatusTooManyRequests:
		return apperrors.New(apperrors.KindRateLimit, "COMET endpoint rate limit exceeded (429): please try again later.", cause)
	case statusCode == http.StatusServiceUnavailable:
		return apperrors.New(apperrors.KindTransient, "COMET endpoint is unavailable or still loading the model (503): please retry shortly.", cause)
	case statusCode >= 500:
		return apperrors.New(apperrors.KindTransient, fmt.Sprintf("COMET endpoint server error (%d): please try again later.", statusCode), cause)
	case statusCode == http.StatusNotFound:
		return apperrors.New(apperrors.KindBadRequest, "COMET endpoint not found (404): check the endpoint URL.", cause)
	default:
		return apperrors.New(apperrors.KindBadRequest, fmt.Sprintf("COMET endpoint error (%d).", statusCode), cause)
	}
}
