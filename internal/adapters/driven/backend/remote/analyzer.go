// Package remote provides a ModalityAnalyzer that posts payloads to an
// HTTP analysis service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
	"github.com/custodia-labs/sizhen/internal/logger"
	"github.com/custodia-labs/sizhen/internal/resilience"
)

// Ensure Analyzer implements the interface.
var _ driven.ModalityAnalyzer = (*Analyzer)(nil)

// Default configuration values.
const (
	DefaultTimeout           = 60 * time.Second
	DefaultRequestsPerSecond = 5.0
	DefaultBurst             = 10

	// maxErrorBody bounds how much of an error response is quoted.
	maxErrorBody = 512
)

// Config holds configuration for one remote analysis back-end.
type Config struct {
	// Modality is the channel this back-end serves (required).
	Modality domain.Modality

	// BaseURL is the service root; requests go to {BaseURL}/v1/analyze/{kind} (required).
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds a single HTTP exchange (default: 60s).
	// The coordinator's per-modality timeout normally fires first.
	Timeout time.Duration

	RequestsPerSecond float64
	Burst             int
}

// Analyzer calls a remote analysis service over JSON/HTTP.
type Analyzer struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	modality domain.Modality
	limiter  *RateLimiter
}

// analyzeRequest is the POST body sent to the back-end.
type analyzeRequest struct {
	UserID             string            `json:"user_id"`
	Kind               domain.DetailKind `json:"kind"`
	ContentType        string            `json:"content_type,omitempty"`
	Data               []byte            `json:"data,omitempty"`
	Fields             map[string]string `json:"fields,omitempty"`
	ApplyPreprocessing bool              `json:"apply_preprocessing"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// analyzeResponse is the back-end reply.
type analyzeResponse struct {
	AnalysisID string                   `json:"analysis_id"`
	Summary    string                   `json:"summary"`
	Confidence float64                  `json:"confidence"`
	Features   []domain.AnalysisFeature `json:"features"`
	Detail     domain.ModalityDetail    `json:"detail"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnalyzer creates a remote analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if !cfg.Modality.IsValid() {
		return nil, fmt.Errorf("%w: modality %q", domain.ErrUnsupportedType, cfg.Modality)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s back-end URL is required", domain.ErrBackendNotConfigured, cfg.Modality)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	return &Analyzer{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		modality: cfg.Modality,
		limiter:  NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}, nil
}

// Modality returns the channel this analyzer serves.
func (a *Analyzer) Modality() domain.Modality {
	return a.modality
}

// Analyze posts one payload to the back-end.
// Client errors other than 429 are marked permanent so they are not retried.
func (a *Analyzer) Analyze(
	ctx context.Context,
	payload domain.ModalityPayload,
	userID string,
	applyPreprocessing bool,
	metadata map[string]string,
) (*domain.AnalysisResult, error) {
	kind := payload.Kind
	if kind == "" {
		kind = domain.DefaultDetailKind(a.modality)
	}
	if kind.Modality() != a.modality {
		return nil, resilience.Permanent(fmt.Errorf("%w: %s payload sent to %s back-end",
			domain.ErrInvalidInput, kind, a.modality))
	}

	body, err := json.Marshal(analyzeRequest{
		UserID:             userID,
		Kind:               kind,
		ContentType:        payload.ContentType,
		Data:               payload.Data,
		Fields:             payload.Fields,
		ApplyPreprocessing: applyPreprocessing,
		Metadata:           metadata,
	})
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/analyze/"+string(kind), bytes.NewReader(body))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := a.checkStatus(resp, data); err != nil {
		return nil, err
	}

	var decoded analyzeResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%s back-end error: %s", a.modality, decoded.Error.Message)
	}

	detail := decoded.Detail
	if detail.Kind == "" {
		detail.Kind = kind
	}

	logger.Debug("%s back-end returned %d features (analysis %s)", a.modality, len(decoded.Features), decoded.AnalysisID)

	return &domain.AnalysisResult{
		AnalysisID: decoded.AnalysisID,
		Modality:   a.modality,
		Summary:    decoded.Summary,
		Confidence: decoded.Confidence,
		Features:   decoded.Features,
		Detail:     detail,
	}, nil
}

// checkStatus maps non-2xx responses to errors.
func (a *Analyzer) checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet := string(body)
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody]
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		a.limiter.RecordRateLimitError(parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
		return fmt.Errorf("%w: %s back-end", domain.ErrRateLimited, a.modality)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resilience.Permanent(&StatusError{Modality: a.modality, Code: resp.StatusCode, Body: snippet})
	default:
		return &StatusError{Modality: a.modality, Code: resp.StatusCode, Body: snippet}
	}
}

// StatusError reports an unexpected HTTP status from a back-end.
type StatusError struct {
	Modality domain.Modality
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s back-end error (status %d): %s", e.Modality, e.Code, e.Body)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		return at.Sub(now)
	}
	return 0
}
