package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"google.golang.org/api/googleapi"
)

// classifyJudgeError maps a failed scoring call on model to an apperrors
// kind. A canceled context is returned unchanged so the run stops quietly.
func classifyJudgeError(model string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	wrapped := fmt.Errorf("gemini judge %s: %w", model, err)

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return apperrors.New(apperrors.KindTransient, "The Gemini judge could not be reached. Please retry.", wrapped)
	}

	code := gerr.Code
	switch {
	case code == http.StatusBadRequest && invalidAPIKey(gerr):
		// Gemini reports a bad key as 400 INVALID_ARGUMENT.
		return apperrors.New(apperrors.KindAuth, "The Gemini API key was rejected: check GEMINI_API_KEY or the stored key.", wrapped)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.New(apperrors.KindAuth, fmt.Sprintf("The Gemini judge refused the credential (%d).", code), wrapped)
	case code == http.StatusNotFound:
		return apperrors.New(apperrors.KindBadRequest, fmt.Sprintf("Judge model %q was not found or is not available to this key.", model), wrapped)
	case code == http.StatusTooManyRequests:
		return apperrors.New(apperrors.KindRateLimit, "The Gemini judge is rate limited (429). Lower the batch size or try again later.", wrapped)
	case code >= 500:
		return apperrors.New(apperrors.KindTransient, fmt.Sprintf("The Gemini judge had a temporary error (%d). Please retry.", code), wrapped)
	default:
		return apperrors.New(apperrors.KindBadRequest, fmt.Sprintf("The Gemini judge rejected the scoring request (%d).", code), wrapped)
	}
}

func invalidAPIKey(gerr *googleapi.Error) bool {
	for _, s := range []string{gerr.Message, gerr.Body} {
		if strings.Contains(s, "API_KEY_INVALID") || strings.Contains(s, "API key not valid") {
			return true
		}
	}
	for _, item := range gerr.Errors {
		if item.Reason == "API_KEY_INVALID" {
			return true
		}
	}
	return false
}
