package domain

import (
	"fmt"
	"time"
)

// DiagnosisStatus is the lifecycle state of a diagnosis session.
type DiagnosisStatus string

// Session states. DONE, INSUFFICIENT_DATA and FAILED are terminal.
const (
	StatusPending          DiagnosisStatus = "PENDING"
	StatusFusing           DiagnosisStatus = "FUSING"
	StatusReasoning        DiagnosisStatus = "REASONING"
	StatusDone             DiagnosisStatus = "DONE"
	StatusInsufficientData DiagnosisStatus = "INSUFFICIENT_DATA"
	StatusFailed           DiagnosisStatus = "FAILED"
)

// IsTerminal returns true if no further transitions are expected.
func (s DiagnosisStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusInsufficientData || s == StatusFailed
}

// String returns the string representation.
func (s DiagnosisStatus) String() string {
	return string(s)
}

// Progress shares. Included modalities split modalityShare equally.
const (
	modalityShare  = 0.6
	fusionShare    = 0.2
	reasoningShare = 0.2
)

// Status messages shared by the coordinator and stores.
const (
	MessageWaiting           = "waiting for diagnosis data"
	MessageNoServices        = "no diagnosis services executed"
	MessageInsufficientData  = "insufficient diagnosis data for full differentiation"
	MessageNeedTwoModalities = "need at least %d diagnostic methods with usable results"
	MessageFusing            = "fusing diagnostic findings"
	MessageReasoning         = "differentiating syndromes"
	MessageDone              = "diagnosis complete"
	MessageFusionDegraded    = "processing degraded: fusion unavailable"
	MessageReasoningDegraded = "processing degraded: reasoning unavailable"
	MessageCancelled         = "diagnosis cancelled"
)

// DiagnosisProgress tracks one (user, session) through the pipeline.
type DiagnosisProgress struct {
	UserID             string          `json:"user_id"`
	SessionID          string          `json:"session_id"`
	Status             DiagnosisStatus `json:"status"`
	Expected           []Modality      `json:"expected,omitempty"`
	LookCompleted      bool            `json:"look_completed"`
	ListenCompleted    bool            `json:"listen_completed"`
	InquiryCompleted   bool            `json:"inquiry_completed"`
	PalpationCompleted bool            `json:"palpation_completed"`
	FusionCompleted    bool            `json:"fusion_completed"`
	ReasoningCompleted bool            `json:"reasoning_completed"`
	OverallProgress    float64         `json:"overall_progress"`
	StatusMessage      string          `json:"status_message"`
	LastUpdated        time.Time       `json:"last_updated"`
}

// NewDiagnosisProgress returns a zero-progress record for a session.
func NewDiagnosisProgress(userID, sessionID string) *DiagnosisProgress {
	return &DiagnosisProgress{
		UserID:        userID,
		SessionID:     sessionID,
		Status:        StatusPending,
		StatusMessage: MessageWaiting,
		LastUpdated:   time.Now(),
	}
}

// SessionKey returns the store key for a (user, session) pair.
func SessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// ModalityCompleted reports whether a modality finished successfully.
func (p *DiagnosisProgress) ModalityCompleted(m Modality) bool {
	switch m {
	case ModalityLook:
		return p.LookCompleted
	case ModalityListen:
		return p.ListenCompleted
	case ModalityInquiry:
		return p.InquiryCompleted
	case ModalityPalpation:
		return p.PalpationCompleted
	default:
		return false
	}
}

// MarkModality records a modality as completed.
func (p *DiagnosisProgress) MarkModality(m Modality) {
	switch m {
	case ModalityLook:
		p.LookCompleted = true
	case ModalityListen:
		p.ListenCompleted = true
	case ModalityInquiry:
		p.InquiryCompleted = true
	case ModalityPalpation:
		p.PalpationCompleted = true
	}
}

// Reset clears stage flags so a session can be diagnosed again.
func (p *DiagnosisProgress) Reset(expected []Modality) {
	userID, sessionID := p.UserID, p.SessionID
	*p = *NewDiagnosisProgress(userID, sessionID)
	p.Expected = append([]Modality(nil), expected...)
}

// Transition moves the record to a new status and recomputes progress.
func (p *DiagnosisProgress) Transition(status DiagnosisStatus, message string) {
	p.Status = status
	p.StatusMessage = message
	p.Recalculate()
}

// Recalculate derives OverallProgress from the stage flags.
// Terminal statuses other than FAILED report full progress.
func (p *DiagnosisProgress) Recalculate() {
	p.LastUpdated = time.Now()
	if p.Status == StatusDone || p.Status == StatusInsufficientData {
		p.OverallProgress = 1.0
		return
	}

	var progress float64
	if n := len(p.Expected); n > 0 {
		done := 0
		for _, m := range p.Expected {
			if p.ModalityCompleted(m) {
				done++
			}
		}
		progress += modalityShare * float64(done) / float64(n)
	}
	if p.FusionCompleted {
		progress += fusionShare
	}
	if p.ReasoningCompleted {
		progress += reasoningShare
	}
	p.OverallProgress = clampUnit(progress)
}

// DiagnosisRequest asks for one end-to-end diagnosis.
type DiagnosisRequest struct {
	UserID             string                       `json:"user_id"`
	SessionID          string                       `json:"session_id"`
	Include            map[Modality]bool            `json:"include"`
	Payloads           map[Modality]ModalityPayload `json:"payloads"`
	ApplyPreprocessing bool                         `json:"apply_preprocessing,omitempty"`
	Metadata           map[string]string            `json:"metadata,omitempty"`
	Algorithm          FusionAlgorithm              `json:"algorithm,omitempty"`
}

// RequestedModalities returns, in canonical order, every modality that is
// both flagged as included and carries data.
func (r DiagnosisRequest) RequestedModalities() []Modality {
	var out []Modality
	for _, m := range AllModalities() {
		if !r.Include[m] {
			continue
		}
		if p, ok := r.Payloads[m]; ok && p.HasData() {
			out = append(out, m)
		}
	}
	return out
}

// Validate checks the request shape. Every failure wraps ErrInvalidInput.
func (r DiagnosisRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if r.SessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	for m := range r.Include {
		if !m.IsValid() {
			return fmt.Errorf("%w: unknown modality %q", ErrInvalidInput, m)
		}
	}
	for m, p := range r.Payloads {
		if !m.IsValid() {
			return fmt.Errorf("%w: unknown modality %q", ErrInvalidInput, m)
		}
		if p.Kind != "" && p.Kind.Modality() != m {
			return fmt.Errorf("%w: payload kind %q does not belong to %s", ErrInvalidInput, p.Kind, m)
		}
	}
	if r.Algorithm != "" && !r.Algorithm.IsValid() {
		return fmt.Errorf("%w: unknown fusion algorithm %q", ErrInvalidInput, r.Algorithm)
	}
	if len(r.RequestedModalities()) == 0 {
		return fmt.Errorf("%w: no modality is included with data", ErrInvalidInput)
	}
	return nil
}

// DiagnosisReport is the terminal artifact of a diagnosis request.
type DiagnosisReport struct {
	ID                string                       `json:"id"`
	UserID            string                       `json:"user_id"`
	SessionID         string                       `json:"session_id"`
	Status            DiagnosisStatus              `json:"status"`
	StatusMessage     string                       `json:"status_message"`
	ModalityResults   map[Modality]*AnalysisResult `json:"modality_results,omitempty"`
	ModalityErrors    map[Modality]string          `json:"modality_errors,omitempty"`
	SkippedModalities []Modality                   `json:"skipped_modalities,omitempty"`
	Fusion            *FusionResult                `json:"fusion,omitempty"`
	Syndromes         []SyndromeCandidate          `json:"syndromes"`
	Constitution      *ConstitutionAssessment      `json:"constitution,omitempty"`
	CoreMechanism     string                       `json:"core_mechanism,omitempty"`
	Summary           string                       `json:"summary"`
	Recommendations   []string                     `json:"recommendations,omitempty"`
	Confidence        float64                      `json:"confidence"`
	CreatedAt         time.Time                    `json:"created_at"`
	Duration          time.Duration                `json:"duration"`
}

// clampUnit limits v to [0, 1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampConfidence limits a confidence value to [0, 1].
func ClampConfidence(v float64) float64 {
	return clampUnit(v)
}
