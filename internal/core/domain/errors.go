package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// It is the only error GenerateReport returns for a caller fault.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown algorithm, method or backend.
	ErrUnsupportedType = errors.New("unsupported type")

	// Diagnosis Errors.

	// ErrModalityUnavailable indicates a back-end call failed or timed out after retries.
	ErrModalityUnavailable = errors.New("modality unavailable")

	// ErrInsufficientEvidence indicates fewer modalities than required produced findings.
	ErrInsufficientEvidence = errors.New("insufficient evidence")

	// ErrFusionFailed indicates the fusion stage could not produce a result.
	ErrFusionFailed = errors.New("fusion failed")

	// ErrReasoningFailed indicates the reasoning stage could not produce a result.
	ErrReasoningFailed = errors.New("reasoning failed")

	// Backend Errors.

	// ErrBackendNotConfigured indicates no analyzer is registered for a modality.
	ErrBackendNotConfigured = errors.New("backend not configured")

	// ErrRateLimited indicates the back-end rejected the call for rate reasons.
	ErrRateLimited = errors.New("rate limited")
)
