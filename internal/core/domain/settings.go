package domain

import "time"

const unknownDescription = "Unknown"

// CoordinationMode defines how the coordinator schedules modality calls.
type CoordinationMode string

// Available coordination modes.
const (
	// CoordinationParallel launches every included modality at once.
	CoordinationParallel CoordinationMode = "parallel"

	// CoordinationSequential calls one modality at a time.
	CoordinationSequential CoordinationMode = "sequential"
)

// IsValid returns true if the coordination mode is recognised.
func (m CoordinationMode) IsValid() bool {
	return m == CoordinationParallel || m == CoordinationSequential
}

// String returns the string representation.
func (m CoordinationMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m CoordinationMode) Description() string {
	switch m {
	case CoordinationParallel:
		return "Parallel (all modalities at once)"
	case CoordinationSequential:
		return "Sequential (one modality at a time)"
	default:
		return unknownDescription
	}
}

// BackendDriver selects how modality back-ends are reached.
type BackendDriver string

// Available back-end drivers.
const (
	// BackendLocal reads pre-scored features from the payload itself.
	BackendLocal BackendDriver = "local"

	// BackendHTTP posts payloads to remote analysis services.
	BackendHTTP BackendDriver = "http"
)

// IsValid returns true if the driver is recognised.
func (d BackendDriver) IsValid() bool {
	return d == BackendLocal || d == BackendHTTP
}

// String returns the string representation.
func (d BackendDriver) String() string {
	return string(d)
}

// Description returns a human-readable description of the driver.
func (d BackendDriver) Description() string {
	switch d {
	case BackendLocal:
		return "Local (pre-scored payloads)"
	case BackendHTTP:
		return "HTTP (remote analysis services)"
	default:
		return unknownDescription
	}
}

// StorageBackend selects where diagnosis reports are kept.
type StorageBackend string

// Available report storage backends.
const (
	StorageMemory StorageBackend = "memory"
	StorageSQLite StorageBackend = "sqlite"
	StorageMongo  StorageBackend = "mongo"
)

// IsValid returns true if the storage backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageMemory, StorageSQLite, StorageMongo:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b StorageBackend) Description() string {
	switch b {
	case StorageMemory:
		return "Memory (lost on exit)"
	case StorageSQLite:
		return "SQLite (local file)"
	case StorageMongo:
		return "MongoDB (shared)"
	default:
		return unknownDescription
	}
}

// ProgressBackend selects where session progress is kept.
type ProgressBackend string

// Available progress backends.
const (
	ProgressMemory ProgressBackend = "memory"
	ProgressSQLite ProgressBackend = "sqlite"
	ProgressRedis  ProgressBackend = "redis"
)

// IsValid returns true if the progress backend is recognised.
func (b ProgressBackend) IsValid() bool {
	switch b {
	case ProgressMemory, ProgressSQLite, ProgressRedis:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b ProgressBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b ProgressBackend) Description() string {
	switch b {
	case ProgressMemory:
		return "Memory (single process)"
	case ProgressSQLite:
		return "SQLite (local file)"
	case ProgressRedis:
		return "Redis (shared)"
	default:
		return unknownDescription
	}
}

// FusionSettings holds fusion engine configuration.
// The tuning constants are empirical and kept configurable.
type FusionSettings struct {
	// Algorithm is used when a request does not name one.
	Algorithm FusionAlgorithm `validate:"oneof=weighted attention ensemble cross_modal"`

	// ConfidenceThreshold drops findings below it during extraction.
	ConfidenceThreshold float64 `validate:"gte=0,lte=1"`

	// MinScore is the candidate score floor.
	MinScore float64 `validate:"gte=0"`

	// Per-modality prior weights.
	LookWeight      float64 `validate:"gt=0"`
	ListenWeight    float64 `validate:"gt=0"`
	InquiryWeight   float64 `validate:"gt=0"`
	PalpationWeight float64 `validate:"gt=0"`

	// Weight adjustment.
	HighConfidence         float64 `validate:"gte=0,lte=1"`
	LowConfidence          float64 `validate:"gte=0,lte=1"`
	HighConfidenceBoost    float64 `validate:"gt=0"`
	LowConfidencePenalty   float64 `validate:"gt=0"`
	SparsePenalty          float64 `validate:"gt=0"`
	MinFindingsPerModality int     `validate:"gte=0"`

	// Algorithm-specific constants.
	KeyFeatureBoost      float64 `validate:"gt=0"`
	EnsembleGlobalWeight float64 `validate:"gt=0"`
	EnsembleVoteBoost    float64 `validate:"gte=0"`
	EnsembleMaxVotes     int     `validate:"gte=1"`
	CrossModalBoost      float64 `validate:"gte=0,lte=1"`
	ConflictPenalty      float64 `validate:"gte=0,lte=1"`

	// SupportingLimit caps supporting findings per candidate.
	SupportingLimit int `validate:"gte=1"`
}

// Priors returns the configured prior weight of every modality.
func (f FusionSettings) Priors() map[Modality]float64 {
	return map[Modality]float64{
		ModalityLook:      f.LookWeight,
		ModalityListen:    f.ListenWeight,
		ModalityInquiry:   f.InquiryWeight,
		ModalityPalpation: f.PalpationWeight,
	}
}

// ReasoningSettings holds differentiation engine configuration.
type ReasoningSettings struct {
	// Methods lists the enabled differentiation methods.
	Methods []DifferentiationMethod `validate:"min=1,dive,oneof=eight_principles zang_fu qi_blood_fluid meridian six_meridians triple_energizer wei_qi_ying_blood"`

	// ConfidenceThreshold is the per-method confidence floor.
	ConfidenceThreshold float64 `validate:"gte=0,lte=1"`

	// MinScore is the per-method score floor.
	MinScore float64 `validate:"gte=0"`

	// OpposingPenalty is subtracted from a syndrome's confidence when it
	// displaces an opposing one.
	OpposingPenalty float64 `validate:"gte=0,lte=1"`

	ConstitutionFloor             float64 `validate:"gte=0,lte=1"`
	DefaultConstitutionConfidence float64 `validate:"gte=0,lte=1"`

	MechanismCount int `validate:"gte=1"`
	EvidenceLimit  int `validate:"gte=1"`
}

// ModalitySettings holds per-modality coordinator configuration.
type ModalitySettings struct {
	Enabled bool
	Timeout time.Duration `validate:"gt=0"`
}

// BreakerSettings configures every circuit breaker.
type BreakerSettings struct {
	FailureThreshold int           `validate:"gte=1"`
	CoolDown         time.Duration `validate:"gt=0"`
}

// RetrySettings configures one retry policy.
type RetrySettings struct {
	MaxAttempts       int           `validate:"gte=1"`
	BackoffBase       time.Duration `validate:"gte=0"`
	BackoffMultiplier float64       `validate:"gte=1"`
	MaxBackoff        time.Duration `validate:"gte=0"`
}

// CoordinatorSettings holds diagnosis coordinator configuration.
type CoordinatorSettings struct {
	Mode CoordinationMode `validate:"oneof=parallel sequential"`

	// MinModalities is the number of usable results fusion needs.
	MinModalities int `validate:"gte=1,lte=4"`

	Look      ModalitySettings
	Listen    ModalitySettings
	Inquiry   ModalitySettings
	Palpation ModalitySettings

	Breaker BreakerSettings

	// Retry wraps modality calls; LongRetry wraps fusion and reasoning.
	Retry     RetrySettings
	LongRetry RetrySettings
}

// Modality returns the settings for one modality.
func (c CoordinatorSettings) Modality(m Modality) ModalitySettings {
	switch m {
	case ModalityLook:
		return c.Look
	case ModalityListen:
		return c.Listen
	case ModalityInquiry:
		return c.Inquiry
	case ModalityPalpation:
		return c.Palpation
	default:
		return ModalitySettings{}
	}
}

// BackendSettings holds modality back-end configuration.
type BackendSettings struct {
	Driver BackendDriver `validate:"oneof=local http"`

	LookURL      string `validate:"required_if=Driver http,omitempty,url"`
	ListenURL    string `validate:"required_if=Driver http,omitempty,url"`
	InquiryURL   string `validate:"required_if=Driver http,omitempty,url"`
	PalpationURL string `validate:"required_if=Driver http,omitempty,url"`

	// APIKey is sent as a bearer token when set.
	APIKey string

	// RequestsPerSecond throttles each HTTP back-end.
	RequestsPerSecond float64 `validate:"gt=0"`
	Burst             int     `validate:"gte=1"`
}

// URL returns the base URL of a modality's back-end.
func (b BackendSettings) URL(m Modality) string {
	switch m {
	case ModalityLook:
		return b.LookURL
	case ModalityListen:
		return b.ListenURL
	case ModalityInquiry:
		return b.InquiryURL
	case ModalityPalpation:
		return b.PalpationURL
	default:
		return ""
	}
}

// StorageSettings holds report storage configuration.
type StorageSettings struct {
	Backend StorageBackend `validate:"oneof=memory sqlite mongo"`

	// Dir holds the SQLite database. Empty means the config directory.
	Dir string

	MongoURI      string `validate:"required_if=Backend mongo"`
	MongoDatabase string `validate:"required_if=Backend mongo"`
}

// ProgressSettings holds progress storage configuration.
type ProgressSettings struct {
	Backend ProgressBackend `validate:"oneof=memory sqlite redis"`

	RedisAddr     string `validate:"required_if=Backend redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	// TTL expires redis records. Zero keeps them.
	TTL time.Duration `validate:"gte=0"`
}

// KnowledgeSettings holds knowledge-base configuration.
type KnowledgeSettings struct {
	// Path points at a TOML knowledge base. Empty uses the built-in one.
	Path string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Fusion      FusionSettings
	Reasoning   ReasoningSettings
	Coordinator CoordinatorSettings
	Backends    BackendSettings
	Storage     StorageSettings
	Progress    ProgressSettings
	Knowledge   KnowledgeSettings
	Narrator    NarratorSettings
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Fusion: FusionSettings{
			Algorithm:              FusionWeighted,
			ConfidenceThreshold:    0.6,
			MinScore:               0.5,
			LookWeight:             1.0,
			ListenWeight:           1.0,
			InquiryWeight:          1.5,
			PalpationWeight:        1.2,
			HighConfidence:         0.8,
			LowConfidence:          0.5,
			HighConfidenceBoost:    1.2,
			LowConfidencePenalty:   0.8,
			SparsePenalty:          0.7,
			MinFindingsPerModality: 2,
			KeyFeatureBoost:        1.5,
			EnsembleGlobalWeight:   2.0,
			EnsembleVoteBoost:      0.2,
			EnsembleMaxVotes:       3,
			CrossModalBoost:        0.5,
			ConflictPenalty:        0.2,
			SupportingLimit:        5,
		},
		Reasoning: ReasoningSettings{
			Methods:                       DefaultDifferentiationMethods(),
			ConfidenceThreshold:           0.6,
			MinScore:                      0.5,
			OpposingPenalty:               0.1,
			ConstitutionFloor:             0.3,
			DefaultConstitutionConfidence: 0.4,
			MechanismCount:                3,
			EvidenceLimit:                 5,
		},
		Coordinator: CoordinatorSettings{
			Mode:          CoordinationParallel,
			MinModalities: 2,
			Look:          ModalitySettings{Enabled: true, Timeout: 30 * time.Second},
			Listen:        ModalitySettings{Enabled: true, Timeout: 45 * time.Second},
			Inquiry:       ModalitySettings{Enabled: true, Timeout: 10 * time.Second},
			Palpation:     ModalitySettings{Enabled: true, Timeout: 20 * time.Second},
			Breaker: BreakerSettings{
				FailureThreshold: 3,
				CoolDown:         30 * time.Second,
			},
			Retry: RetrySettings{
				MaxAttempts:       3,
				BackoffBase:       200 * time.Millisecond,
				BackoffMultiplier: 2.0,
				MaxBackoff:        5 * time.Second,
			},
			LongRetry: RetrySettings{
				MaxAttempts:       2,
				BackoffBase:       2 * time.Second,
				BackoffMultiplier: 3.0,
				MaxBackoff:        30 * time.Second,
			},
		},
		Backends: BackendSettings{
			Driver:            BackendLocal,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Storage: StorageSettings{
			Backend:       StorageSQLite,
			MongoDatabase: "sizhen",
		},
		Progress: ProgressSettings{
			Backend:   ProgressSQLite,
			RedisAddr: "localhost:6379",
			TTL:       24 * time.Hour,
		},
		Narrator: NarratorSettings{
			Timeout:   30 * time.Second,
			MaxTokens: 300,
		},
	}
}

// AllCoordinationModes returns all available coordination modes.
func AllCoordinationModes() []CoordinationMode {
	return []CoordinationMode{CoordinationParallel, CoordinationSequential}
}

// AllStorageBackends returns all available report storage backends.
func AllStorageBackends() []StorageBackend {
	return []StorageBackend{StorageMemory, StorageSQLite, StorageMongo}
}

// AllProgressBackends returns all available progress backends.
func AllProgressBackends() []ProgressBackend {
	return []ProgressBackend{ProgressMemory, ProgressSQLite, ProgressRedis}
}
