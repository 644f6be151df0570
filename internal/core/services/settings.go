package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// settingKind selects how a key's value is parsed and stored.
type settingKind int

const (
	kindString settingKind = iota
	kindFloat
	kindInt
	kindBool
	kindDuration
	kindList
)

// setting binds one dot-notation config key to a field of AppSettings.
type setting struct {
	key    string
	kind   settingKind
	secret bool
	valid  func(v string) bool
	getStr func(s *domain.AppSettings) string
	setStr func(s *domain.AppSettings, v string)
	flt    func(s *domain.AppSettings) *float64
	num    func(s *domain.AppSettings) *int
	flag   func(s *domain.AppSettings) *bool
	dur    func(s *domain.AppSettings) *time.Duration
	list   func(s *domain.AppSettings) *[]domain.DifferentiationMethod
}

func stringSetting[T ~string](key string, field func(s *domain.AppSettings) *T) setting {
	return setting{
		key:    key,
		kind:   kindString,
		getStr: func(s *domain.AppSettings) string { return string(*field(s)) },
		setStr: func(s *domain.AppSettings, v string) { *field(s) = T(v) },
	}
}

// enumSetting is a string setting whose stored value must name a known constant.
func enumSetting[T interface {
	~string
	IsValid() bool
}](key string, field func(s *domain.AppSettings) *T) setting {
	st := stringSetting(key, field)
	st.valid = func(v string) bool { return T(v).IsValid() }
	return st
}

func floatSetting(key string, field func(s *domain.AppSettings) *float64) setting {
	return setting{key: key, kind: kindFloat, flt: field}
}

func intSetting(key string, field func(s *domain.AppSettings) *int) setting {
	return setting{key: key, kind: kindInt, num: field}
}

func boolSetting(key string, field func(s *domain.AppSettings) *bool) setting {
	return setting{key: key, kind: kindBool, flag: field}
}

func durationSetting(key string, field func(s *domain.AppSettings) *time.Duration) setting {
	return setting{key: key, kind: kindDuration, dur: field}
}

func secretSetting(key string, field func(s *domain.AppSettings) *string) setting {
	st := stringSetting(key, field)
	st.secret = true
	return st
}

// modalitySettings returns the enabled/timeout keys of one modality.
func modalitySettings(m domain.Modality, field func(s *domain.AppSettings) *domain.ModalitySettings) []setting {
	prefix := "coordinator." + m.String()
	return []setting{
		boolSetting(prefix+".enabled", func(s *domain.AppSettings) *bool { return &field(s).Enabled }),
		durationSetting(prefix+".timeout", func(s *domain.AppSettings) *time.Duration { return &field(s).Timeout }),
	}
}

// retrySettings returns the keys of one retry policy.
func retrySettings(prefix string, field func(s *domain.AppSettings) *domain.RetrySettings) []setting {
	return []setting{
		intSetting(prefix+".max_attempts", func(s *domain.AppSettings) *int { return &field(s).MaxAttempts }),
		durationSetting(prefix+".backoff_base", func(s *domain.AppSettings) *time.Duration { return &field(s).BackoffBase }),
		floatSetting(prefix+".backoff_multiplier", func(s *domain.AppSettings) *float64 { return &field(s).BackoffMultiplier }),
		durationSetting(prefix+".max_backoff", func(s *domain.AppSettings) *time.Duration { return &field(s).MaxBackoff }),
	}
}

// settingsTable lists every supported key in display order.
func settingsTable() []setting {
	table := []setting{
		enumSetting("fusion.algorithm", func(s *domain.AppSettings) *domain.FusionAlgorithm { return &s.Fusion.Algorithm }),
		floatSetting("fusion.confidence_threshold", func(s *domain.AppSettings) *float64 { return &s.Fusion.ConfidenceThreshold }),
		floatSetting("fusion.min_score", func(s *domain.AppSettings) *float64 { return &s.Fusion.MinScore }),
		floatSetting("fusion.weights.look", func(s *domain.AppSettings) *float64 { return &s.Fusion.LookWeight }),
		floatSetting("fusion.weights.listen", func(s *domain.AppSettings) *float64 { return &s.Fusion.ListenWeight }),
		floatSetting("fusion.weights.inquiry", func(s *domain.AppSettings) *float64 { return &s.Fusion.InquiryWeight }),
		floatSetting("fusion.weights.palpation", func(s *domain.AppSettings) *float64 { return &s.Fusion.PalpationWeight }),
		floatSetting("fusion.high_confidence", func(s *domain.AppSettings) *float64 { return &s.Fusion.HighConfidence }),
		floatSetting("fusion.low_confidence", func(s *domain.AppSettings) *float64 { return &s.Fusion.LowConfidence }),
		floatSetting("fusion.high_confidence_boost", func(s *domain.AppSettings) *float64 { return &s.Fusion.HighConfidenceBoost }),
		floatSetting("fusion.low_confidence_penalty", func(s *domain.AppSettings) *float64 { return &s.Fusion.LowConfidencePenalty }),
		floatSetting("fusion.sparse_penalty", func(s *domain.AppSettings) *float64 { return &s.Fusion.SparsePenalty }),
		intSetting("fusion.min_findings_per_modality", func(s *domain.AppSettings) *int { return &s.Fusion.MinFindingsPerModality }),
		floatSetting("fusion.key_feature_boost", func(s *domain.AppSettings) *float64 { return &s.Fusion.KeyFeatureBoost }),
		floatSetting("fusion.ensemble.global_weight", func(s *domain.AppSettings) *float64 { return &s.Fusion.EnsembleGlobalWeight }),
		floatSetting("fusion.ensemble.vote_boost", func(s *domain.AppSettings) *float64 { return &s.Fusion.EnsembleVoteBoost }),
		intSetting("fusion.ensemble.max_votes", func(s *domain.AppSettings) *int { return &s.Fusion.EnsembleMaxVotes }),
		floatSetting("fusion.cross_modal.boost", func(s *domain.AppSettings) *float64 { return &s.Fusion.CrossModalBoost }),
		floatSetting("fusion.cross_modal.conflict_penalty", func(s *domain.AppSettings) *float64 { return &s.Fusion.ConflictPenalty }),
		intSetting("fusion.supporting_limit", func(s *domain.AppSettings) *int { return &s.Fusion.SupportingLimit }),

		{key: "reasoning.methods", kind: kindList, list: func(s *domain.AppSettings) *[]domain.DifferentiationMethod {
			return &s.Reasoning.Methods
		}},
		floatSetting("reasoning.confidence_threshold", func(s *domain.AppSettings) *float64 { return &s.Reasoning.ConfidenceThreshold }),
		floatSetting("reasoning.min_score", func(s *domain.AppSettings) *float64 { return &s.Reasoning.MinScore }),
		floatSetting("reasoning.opposing_penalty", func(s *domain.AppSettings) *float64 { return &s.Reasoning.OpposingPenalty }),
		floatSetting("reasoning.constitution_floor", func(s *domain.AppSettings) *float64 { return &s.Reasoning.ConstitutionFloor }),
		floatSetting("reasoning.default_constitution_confidence", func(s *domain.AppSettings) *float64 {
			return &s.Reasoning.DefaultConstitutionConfidence
		}),
		intSetting("reasoning.mechanism_count", func(s *domain.AppSettings) *int { return &s.Reasoning.MechanismCount }),
		intSetting("reasoning.evidence_limit", func(s *domain.AppSettings) *int { return &s.Reasoning.EvidenceLimit }),

		enumSetting("coordinator.mode", func(s *domain.AppSettings) *domain.CoordinationMode { return &s.Coordinator.Mode }),
		intSetting("coordinator.min_modalities", func(s *domain.AppSettings) *int { return &s.Coordinator.MinModalities }),
	}
	table = append(table, modalitySettings(domain.ModalityLook, func(s *domain.AppSettings) *domain.ModalitySettings { return &s.Coordinator.Look })...)
	table = append(table, modalitySettings(domain.ModalityListen, func(s *domain.AppSettings) *domain.ModalitySettings { return &s.Coordinator.Listen })...)
	table = append(table, modalitySettings(domain.ModalityInquiry, func(s *domain.AppSettings) *domain.ModalitySettings { return &s.Coordinator.Inquiry })...)
	table = append(table, modalitySettings(domain.ModalityPalpation, func(s *domain.AppSettings) *domain.ModalitySettings {
		return &s.Coordinator.Palpation
	})...)
	table = append(table,
		intSetting("coordinator.breaker.failure_threshold", func(s *domain.AppSettings) *int { return &s.Coordinator.Breaker.FailureThreshold }),
		durationSetting("coordinator.breaker.cool_down", func(s *domain.AppSettings) *time.Duration { return &s.Coordinator.Breaker.CoolDown }),
	)
	table = append(table, retrySettings("coordinator.retry", func(s *domain.AppSettings) *domain.RetrySettings { return &s.Coordinator.Retry })...)
	table = append(table, retrySettings("coordinator.long_retry", func(s *domain.AppSettings) *domain.RetrySettings {
		return &s.Coordinator.LongRetry
	})...)
	table = append(table,
		enumSetting("backends.driver", func(s *domain.AppSettings) *domain.BackendDriver { return &s.Backends.Driver }),
		stringSetting("backends.look_url", func(s *domain.AppSettings) *string { return &s.Backends.LookURL }),
		stringSetting("backends.listen_url", func(s *domain.AppSettings) *string { return &s.Backends.ListenURL }),
		stringSetting("backends.inquiry_url", func(s *domain.AppSettings) *string { return &s.Backends.InquiryURL }),
		stringSetting("backends.palpation_url", func(s *domain.AppSettings) *string { return &s.Backends.PalpationURL }),
		secretSetting("backends.api_key", func(s *domain.AppSettings) *string { return &s.Backends.APIKey }),
		floatSetting("backends.requests_per_second", func(s *domain.AppSettings) *float64 { return &s.Backends.RequestsPerSecond }),
		intSetting("backends.burst", func(s *domain.AppSettings) *int { return &s.Backends.Burst }),

		enumSetting("storage.backend", func(s *domain.AppSettings) *domain.StorageBackend { return &s.Storage.Backend }),
		stringSetting("storage.dir", func(s *domain.AppSettings) *string { return &s.Storage.Dir }),
		secretSetting("storage.mongo_uri", func(s *domain.AppSettings) *string { return &s.Storage.MongoURI }),
		stringSetting("storage.mongo_database", func(s *domain.AppSettings) *string { return &s.Storage.MongoDatabase }),

		enumSetting("progress.backend", func(s *domain.AppSettings) *domain.ProgressBackend { return &s.Progress.Backend }),
		stringSetting("progress.redis_addr", func(s *domain.AppSettings) *string { return &s.Progress.RedisAddr }),
		secretSetting("progress.redis_password", func(s *domain.AppSettings) *string { return &s.Progress.RedisPassword }),
		intSetting("progress.redis_db", func(s *domain.AppSettings) *int { return &s.Progress.RedisDB }),
		durationSetting("progress.ttl", func(s *domain.AppSettings) *time.Duration { return &s.Progress.TTL }),

		stringSetting("knowledge.path", func(s *domain.AppSettings) *string { return &s.Knowledge.Path }),

		enumSetting("narrator.provider", func(s *domain.AppSettings) *domain.AIProvider { return &s.Narrator.Provider }),
		stringSetting("narrator.model", func(s *domain.AppSettings) *string { return &s.Narrator.Model }),
		stringSetting("narrator.base_url", func(s *domain.AppSettings) *string { return &s.Narrator.BaseURL }),
		secretSetting("narrator.api_key", func(s *domain.AppSettings) *string { return &s.Narrator.APIKey }),
		durationSetting("narrator.timeout", func(s *domain.AppSettings) *time.Duration { return &s.Narrator.Timeout }),
		intSetting("narrator.max_tokens", func(s *domain.AppSettings) *int { return &s.Narrator.MaxTokens }),
	)
	return table
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	validate    *validator.Validate
	table       []setting
	index       map[string]int
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	table := settingsTable()
	index := make(map[string]int, len(table))
	for i, st := range table {
		index[st.key] = i
	}
	return &SettingsService{
		configStore: configStore,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		table:       table,
		index:       index,
	}
}

// Get retrieves current application settings. Keys missing from the
// config file, or holding unparseable values, keep their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	for _, st := range s.table {
		if _, exists := s.configStore.Get(st.key); !exists {
			continue
		}
		s.read(&settings, st)
	}
	return &settings, nil
}

// Save validates and persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := s.Validate(settings); err != nil {
		return err
	}
	for _, st := range s.table {
		value, empty := st.value(settings)
		if st.secret && empty {
			continue
		}
		if err := s.configStore.Set(st.key, value); err != nil {
			return fmt.Errorf("save %s: %w", st.key, err)
		}
	}
	return nil
}

// Set parses and stores one key after validating the resulting settings.
func (s *SettingsService) Set(key, value string) error {
	i, ok := s.index[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	st := s.table[i]

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := st.parse(settings, value); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if err := s.Validate(settings); err != nil {
		return err
	}

	stored, _ := st.value(settings)
	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns every supported key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(s.table))
	for i, st := range s.table {
		keys[i] = st.key
	}
	return keys
}

// IsSecret reports whether a key holds a credential that should be masked.
func (s *SettingsService) IsSecret(key string) bool {
	i, ok := s.index[key]
	return ok && s.table[i].secret
}

// Display returns the current value of key formatted for output.
func (s *SettingsService) Display(settings *domain.AppSettings, key string) string {
	i, ok := s.index[key]
	if !ok {
		return ""
	}
	value, _ := s.table[i].value(settings)
	if list, ok := value.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprint(value)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Validate checks settings against their struct constraints.
// Failures wrap domain.ErrInvalidInput.
func (s *SettingsService) Validate(settings *domain.AppSettings) error {
	err := s.validate.Struct(settings)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

// read copies a stored value into settings, ignoring malformed values.
func (s *SettingsService) read(settings *domain.AppSettings, st setting) {
	switch st.kind {
	case kindString:
		v := s.configStore.GetString(st.key)
		if v != "" && (st.valid == nil || st.valid(v)) {
			st.setStr(settings, v)
		}
	case kindFloat:
		*st.flt(settings) = s.configStore.GetFloat(st.key)
	case kindInt:
		*st.num(settings) = s.configStore.GetInt(st.key)
	case kindBool:
		*st.flag(settings) = s.configStore.GetBool(st.key)
	case kindDuration:
		if d, err := time.ParseDuration(s.configStore.GetString(st.key)); err == nil {
			*st.dur(settings) = d
		}
	case kindList:
		var methods []domain.DifferentiationMethod
		for _, m := range s.configStore.GetStringSlice(st.key) {
			if method := domain.DifferentiationMethod(m); method.IsValid() {
				methods = append(methods, method)
			}
		}
		if len(methods) > 0 {
			*st.list(settings) = methods
		}
	}
}

// value returns the storable form of the setting and whether it is empty.
func (st setting) value(settings *domain.AppSettings) (any, bool) {
	switch st.kind {
	case kindFloat:
		return *st.flt(settings), false
	case kindInt:
		return *st.num(settings), false
	case kindBool:
		return *st.flag(settings), false
	case kindDuration:
		return st.dur(settings).String(), false
	case kindList:
		methods := *st.list(settings)
		out := make([]string, len(methods))
		for i, m := range methods {
			out[i] = m.String()
		}
		return out, len(out) == 0
	default:
		v := st.getStr(settings)
		return v, v == ""
	}
}

// parse sets the field from its command-line string form.
func (st setting) parse(settings *domain.AppSettings, raw string) error {
	raw = strings.TrimSpace(raw)
	switch st.kind {
	case kindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*st.flt(settings) = v
	case kindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*st.num(settings) = v
	case kindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*st.flag(settings) = v
	case kindDuration:
		v, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*st.dur(settings) = v
	case kindList:
		var methods []domain.DifferentiationMethod
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				methods = append(methods, domain.DifferentiationMethod(part))
			}
		}
		*st.list(settings) = methods
	default:
		st.setStr(settings, raw)
	}
	return nil
}
