package pipeline

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/auth"
	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/metadata"
	"github.com/oukeidos/mqcomet/internal/report"
)

// Config holds everything one reporting run needs. The CLI and the web
// server fill it from their own inputs.
type Config struct {
	// IO Paths
	InputPath  string
	OutputPath string // Optional: derived from InputPath when empty

	// Scoring
	Backend       string
	Model         string
	Endpoint      string
	BatchSize     int
	MaxSegments   int // 0 means no cap
	ScoreColumn   string
	ReferenceFree bool
	StaticScore   float64 // static backend only
	HTTPClient    *http.Client

	// Credentials is consulted only for backends that use a credential.
	Credentials auth.Chain

	// Flags
	Overwrite bool // If true, replace an existing output without asking

	// OnConfirmOverwrite is called when the output file exists and Overwrite
	// is false. Returning false writes to a sibling path instead.
	OnConfirmOverwrite func(path string) (bool, error)
}

const (
	MinBatchSize = 1
	MaxBatchSize = 64
)

func ClampBatchSize(value int) (int, bool) {
	if value < MinBatchSize {
		return MinBatchSize, true
	}
	if value > MaxBatchSize {
		return MaxBatchSize, true
	}
	return value, false
}

// Normalize applies safe bounds to config values and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = metadata.BackendComet
	}
	if c.Model == "" {
		c.Model = metadata.DefaultModel(c.Backend)
	}
	if c.ScoreColumn == "" {
		c.ScoreColumn = report.DefaultScoreColumn
	}
	if clamped, changed := ClampBatchSize(c.BatchSize); changed {
		notes = append(notes, fmt.Sprintf("batch-size clamped from %d to %d (range %d-%d)", c.BatchSize, clamped, MinBatchSize, MaxBatchSize))
		c.BatchSize = clamped
	}
	if c.MaxSegments < 0 {
		notes = append(notes, fmt.Sprintf("max-segments %d ignored (must be 0 or greater)", c.MaxSegments))
		c.MaxSegments = 0
	}
	if !c.ReferenceFree && metadata.IsReferenceFree(c.Model) {
		notes = append(notes, fmt.Sprintf("model %s is reference-free; references will not be sent", c.Model))
		c.ReferenceFree = true
	}
	return c, notes
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if !metadata.IsBackend(c.Backend) {
		return fmt.Errorf("unknown backend %q (use one of %s)", c.Backend, strings.Join(metadata.Backends(), ", "))
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batchSize must be greater than 0, got %d", c.BatchSize)
	}
	if err := auth.ValidateSources(c.Credentials.Sources); err != nil {
		return err
	}
	return nil
}

// prepare normalizes, logs adjustments and validates.
func prepare(cfg Config) (Config, error) {
	cfg, notes := cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, apperrors.New(apperrors.KindValidation, fmt.Sprintf("Invalid configuration: %v.", err), fmt.Errorf("invalid configuration: %w", err))
	}
	return cfg, nil
}
