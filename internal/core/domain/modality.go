package domain

// Modality identifies one of the four diagnostic channels.
type Modality string

// Available modalities.
const (
	// ModalityLook is visual inspection (tongue, face, body).
	ModalityLook Modality = "look"

	// ModalityListen is audio and olfactory inspection (voice, breathing, cough).
	ModalityListen Modality = "listen"

	// ModalityInquiry is the reported symptoms and history interview.
	ModalityInquiry Modality = "inquiry"

	// ModalityPalpation is touch and pulse taking.
	ModalityPalpation Modality = "palpation"
)

// AllModalities returns the modalities in canonical order.
func AllModalities() []Modality {
	return []Modality{ModalityLook, ModalityListen, ModalityInquiry, ModalityPalpation}
}

// IsValid returns true if the modality is recognised.
func (m Modality) IsValid() bool {
	switch m {
	case ModalityLook, ModalityListen, ModalityInquiry, ModalityPalpation:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m Modality) String() string {
	return string(m)
}

// Description returns a human-readable description of the modality.
func (m Modality) Description() string {
	switch m {
	case ModalityLook:
		return "Look (visual inspection)"
	case ModalityListen:
		return "Listen (voice and breathing)"
	case ModalityInquiry:
		return "Inquiry (reported symptoms)"
	case ModalityPalpation:
		return "Palpation (pulse and touch)"
	default:
		return unknownDescription
	}
}

// ModalityFinding is one discrete, confidence-scored observation.
// Weight is the only field fusion may rescale, and it does so on copies.
type ModalityFinding struct {
	Name       string   `json:"name"`
	Value      float64  `json:"value"`
	Confidence float64  `json:"confidence"`
	Category   string   `json:"category,omitempty"`
	Modality   Modality `json:"modality"`
	Weight     float64  `json:"weight"`
}

// AnalysisFeature is a single feature reported by a back-end.
type AnalysisFeature struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category,omitempty"`
}

// AnalysisResult is a back-end response normalised by its adapter.
type AnalysisResult struct {
	AnalysisID string            `json:"analysis_id"`
	Modality   Modality          `json:"modality"`
	Summary    string            `json:"summary,omitempty"`
	Confidence float64           `json:"confidence"`
	Features   []AnalysisFeature `json:"features"`
	Detail     ModalityDetail    `json:"detail"`
}

// Findings converts the result's features into findings tagged with the
// result's modality. Weights are left at zero for fusion to assign.
func (r AnalysisResult) Findings() []ModalityFinding {
	findings := make([]ModalityFinding, 0, len(r.Features))
	for _, f := range r.Features {
		findings = append(findings, ModalityFinding{
			Name:       f.Name,
			Value:      f.Value,
			Confidence: f.Confidence,
			Category:   f.Category,
			Modality:   r.Modality,
		})
	}
	return findings
}

// IsUsable returns true if the result carries at least one feature.
func (r *AnalysisResult) IsUsable() bool {
	return r != nil && len(r.Features) > 0
}

// DetailKind tags which typed detail a ModalityDetail carries.
type DetailKind string

// Available detail kinds.
const (
	DetailTongue    DetailKind = "tongue"
	DetailFace      DetailKind = "face"
	DetailBody      DetailKind = "body"
	DetailVoice     DetailKind = "voice"
	DetailBreathing DetailKind = "breathing"
	DetailCough     DetailKind = "cough"
	DetailInterview DetailKind = "interview"
	DetailPulse     DetailKind = "pulse"
)

// Modality returns the modality that produces this kind of detail.
func (k DetailKind) Modality() Modality {
	switch k {
	case DetailTongue, DetailFace, DetailBody:
		return ModalityLook
	case DetailVoice, DetailBreathing, DetailCough:
		return ModalityListen
	case DetailInterview:
		return ModalityInquiry
	case DetailPulse:
		return ModalityPalpation
	default:
		return ""
	}
}

// IsValid returns true if the detail kind is recognised.
func (k DetailKind) IsValid() bool {
	return k.Modality() != ""
}

// DefaultDetailKind returns the kind used when a payload does not name one.
func DefaultDetailKind(m Modality) DetailKind {
	switch m {
	case ModalityLook:
		return DetailTongue
	case ModalityListen:
		return DetailVoice
	case ModalityInquiry:
		return DetailInterview
	case ModalityPalpation:
		return DetailPulse
	default:
		return ""
	}
}

// ModalityDetail is the modality-specific part of an AnalysisResult.
// Exactly one of the typed fields matching Kind is set.
type ModalityDetail struct {
	Kind      DetailKind       `json:"kind"`
	Tongue    *TongueDetail    `json:"tongue,omitempty"`
	Visual    *VisualDetail    `json:"visual,omitempty"`
	Sound     *SoundDetail     `json:"sound,omitempty"`
	Interview *InterviewDetail `json:"interview,omitempty"`
	Pulse     *PulseDetail     `json:"pulse,omitempty"`
}

// TongueDetail describes a tongue image analysis.
type TongueDetail struct {
	Color   string `json:"color,omitempty"`
	Coating string `json:"coating,omitempty"`
	Shape   string `json:"shape,omitempty"`
	Cracks  bool   `json:"cracks,omitempty"`
}

// VisualDetail describes a face or body analysis.
type VisualDetail struct {
	Complexion string            `json:"complexion,omitempty"`
	Regions    map[string]string `json:"regions,omitempty"`
}

// SoundDetail describes a voice, breathing or cough analysis.
type SoundDetail struct {
	Quality  string  `json:"quality,omitempty"`
	PitchHz  float64 `json:"pitch_hz,omitempty"`
	VolumeDB float64 `json:"volume_db,omitempty"`
	Rhythm   string  `json:"rhythm,omitempty"`
}

// InterviewDetail describes the inquiry interview.
type InterviewDetail struct {
	ChiefComplaint string   `json:"chief_complaint,omitempty"`
	Symptoms       []string `json:"symptoms,omitempty"`
	DurationDays   int      `json:"duration_days,omitempty"`
}

// PulseDetail describes a pulse reading.
type PulseDetail struct {
	Rate      int               `json:"rate,omitempty"`
	Rhythm    string            `json:"rhythm,omitempty"`
	Positions map[string]string `json:"positions,omitempty"`
}

// ModalityPayload is the caller-supplied input for one back-end call.
type ModalityPayload struct {
	// Kind selects the sub-type (e.g. tongue vs face for look).
	Kind DetailKind `json:"kind,omitempty"`

	// ContentType describes Data (e.g. image/jpeg, application/json).
	ContentType string `json:"content_type,omitempty"`

	// Data is the raw modality input.
	Data []byte `json:"data,omitempty"`

	// Fields carries structured inputs such as questionnaire answers.
	Fields map[string]string `json:"fields,omitempty"`
}

// HasData returns true if the payload carries anything to analyse.
func (p ModalityPayload) HasData() bool {
	return len(p.Data) > 0 || len(p.Fields) > 0
}
