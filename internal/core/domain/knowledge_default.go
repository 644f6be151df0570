package domain

import "sync"

// Built-in syndrome names referenced elsewhere in the codebase.
const (
	SyndromeColdPattern       = "cold-pattern"
	SyndromeHeatPattern       = "heat-pattern"
	SyndromeDeficiencyPattern = "deficiency-pattern"
	SyndromeExcessPattern     = "excess-pattern"
	SyndromeQiDeficiency      = "qi-deficiency"
	SyndromeBloodStasis       = "blood-stasis"
)

// DefaultKnowledgeBase returns the built-in knowledge base.
// It is built once on first use and shared by reference.
var DefaultKnowledgeBase = sync.OnceValue(func() *KnowledgeBase {
	kb, err := NewKnowledgeBase(
		DefaultSyndromes(),
		DefaultConstitutions(),
		DefaultKeyFeatures(),
		DefaultCoherentPairs(),
		DefaultCorrelations(),
	)
	if err != nil {
		panic("domain: invalid built-in knowledge base: " + err.Error())
	}
	return kb
})

func pf(name string, weight float64) PatternFeature {
	return PatternFeature{Name: name, Weight: weight}
}

// DefaultSyndromes returns the built-in syndrome table.
func DefaultSyndromes() []SyndromeDefinition {
	return []SyndromeDefinition{
		// Eight principles.
		{
			Name:     SyndromeColdPattern,
			Category: CategoryEightPrinciples,
			Features: []PatternFeature{
				pf("aversion_to_cold", 1.3), pf("cold_limbs", 1.2), pf("pale_complexion", 1.0),
				pf("pale_tongue", 1.0), pf("white_coating", 1.0), pf("deep_tight_pulse", 1.2),
			},
			Mechanism:           "insufficient yang qi or invasion of pathogenic cold",
			Opposing:            []string{SyndromeHeatPattern},
			Related:             []string{SyndromeDeficiencyPattern},
			TreatmentPrinciples: []string{"warm yang and dispel cold"},
		},
		{
			Name:     SyndromeHeatPattern,
			Category: CategoryEightPrinciples,
			Features: []PatternFeature{
				pf("fever", 1.3), pf("thirst", 1.1), pf("red_complexion", 1.0),
				pf("red_tongue", 1.2), pf("yellow_coating", 1.1), pf("rapid_pulse", 1.2),
			},
			Mechanism:           "exuberant yang heat or invasion of pathogenic heat",
			Opposing:            []string{SyndromeColdPattern},
			Related:             []string{SyndromeExcessPattern},
			TreatmentPrinciples: []string{"clear heat and purge fire"},
		},
		{
			Name:     SyndromeDeficiencyPattern,
			Category: CategoryEightPrinciples,
			Features: []PatternFeature{
				pf("fatigue", 1.0), pf("low_voice", 1.0), pf("pale_tongue", 1.0),
				pf("pale_complexion", 1.0), pf("weak_pulse", 1.2),
			},
			Mechanism:           "insufficiency of healthy qi",
			Opposing:            []string{SyndromeExcessPattern},
			Related:             []string{SyndromeColdPattern},
			TreatmentPrinciples: []string{"tonify and support healthy qi"},
		},
		{
			Name:     SyndromeExcessPattern,
			Category: CategoryEightPrinciples,
			Features: []PatternFeature{
				pf("distension", 1.1), pf("pain_worse_with_pressure", 1.2), pf("irritability", 1.0),
				pf("thick_coating", 1.0), pf("forceful_pulse", 1.2),
			},
			Mechanism:           "exuberant pathogenic qi",
			Opposing:            []string{SyndromeDeficiencyPattern},
			Related:             []string{SyndromeHeatPattern},
			TreatmentPrinciples: []string{"expel pathogens"},
		},

		// Viscera and bowels.
		{
			Name:     "liver-qi-stagnation",
			Category: CategoryVisceraBowel,
			Features: []PatternFeature{
				pf("hypochondriac_distension", 1.5), pf("low_mood", 1.2), pf("frequent_sighing", 1.0),
				pf("red_tongue_edges", 1.0), pf("wiry_pulse", 1.3),
			},
			Mechanism:           "liver fails to course qi, qi movement stagnates",
			Related:             []string{SyndromeExcessPattern, "qi-stagnation"},
			TreatmentPrinciples: []string{"soothe the liver and regulate qi"},
		},
		{
			Name:     "liver-yang-rising",
			Category: CategoryVisceraBowel,
			Features: []PatternFeature{
				pf("headache", 1.1), pf("dizziness", 1.2), pf("irritability", 1.0),
				pf("red_complexion", 1.0), pf("red_tongue", 1.0), pf("wiry_forceful_pulse", 1.3),
			},
			Mechanism:           "liver yin insufficient, liver yang ascends",
			Related:             []string{SyndromeHeatPattern},
			TreatmentPrinciples: []string{"calm the liver and subdue yang"},
		},
		{
			Name:     "spleen-qi-deficiency",
			Category: CategoryVisceraBowel,
			Features: []PatternFeature{
				pf("poor_appetite", 1.3), pf("abdominal_distension", 1.1), pf("loose_stool", 1.2),
				pf("fatigue", 1.0), pf("swollen_pale_tongue", 1.1), pf("slow_weak_pulse", 1.0),
			},
			Mechanism:           "spleen fails in transportation and transformation",
			Related:             []string{SyndromeDeficiencyPattern, SyndromeQiDeficiency},
			TreatmentPrinciples: []string{"strengthen the spleen and replenish qi"},
		},
		{
			Name:     "spleen-stomach-damp-heat",
			Category: CategoryVisceraBowel,
			Features: []PatternFeature{
				pf("yellow_greasy_coating", 1.5), pf("bitter_taste", 1.2), pf("dry_mouth", 1.0),
				pf("abdominal_pain", 1.0), pf("slippery_rapid_pulse", 1.0),
			},
			Mechanism:           "damp heat accumulates in the spleen and stomach",
			Related:             []string{SyndromeHeatPattern, SyndromeExcessPattern},
			TreatmentPrinciples: []string{"clear heat and resolve dampness"},
		},
		{
			Name:     "heart-qi-deficiency",
			Category: CategoryVisceraBowel,
			Features: []PatternFeature{
				pf("palpitations", 1.3), pf("shortness_of_breath", 1.1), pf("spontaneous_sweating", 1.0),
				pf("pale_complexion", 1.0), pf("pale_tongue", 1.0), pf("thready_weak_pulse", 1.1),
			},
			Mechanism:           "heart qi insufficient",
			Related:             []string{SyndromeDeficiencyPattern, SyndromeQiDeficiency},
			TreatmentPrinciples: []string{"replenish qi and nourish the heart"},
		},
		{
			Name:     "heart-spleen-deficiency",
			Category: CategoryVisceraBowel,
			Features: []PatternFeature{
				pf("palpitations", 1.2), pf("pale_tongue", 1.0), pf("fatigue", 1.1), pf("thready_weak_pulse", 1.0),
			},
			Mechanism:           "heart blood and spleen qi both deficient",
			Related:             []string{"qi-blood-deficiency"},
			TreatmentPrinciples: []string{"tonify the heart and spleen"},
		},
		{
			Name:     "lung-yin-deficiency",
			Category: CategoryVisceraBowel,
			Features: []PatternFeature{
				pf("dry_cough", 1.4), pf("hoarse_voice", 1.3), pf("red_tongue_scant_coating", 1.2), pf("thready_rapid_pulse", 1.0),
			},
			Mechanism:           "lung yin depleted, deficient heat arises internally",
			Related:             []string{"fluid-deficiency"},
			TreatmentPrinciples: []string{"nourish yin and moisten the lung"},
		},
		{
			Name:     "kidney-yang-deficiency",
			Category: CategoryVisceraBowel,
			Features: []PatternFeature{
				pf("sore_lower_back_knees", 1.5), pf("aversion_to_cold", 1.3), pf("swollen_pale_tongue", 1.2), pf("deep_thready_pulse", 1.4),
			},
			Mechanism:           "kidney yang declines, warming function fails",
			Related:             []string{SyndromeColdPattern, SyndromeDeficiencyPattern},
			TreatmentPrinciples: []string{"warm and tonify kidney yang"},
		},

		// Qi, blood and body fluids.
		{
			Name:     SyndromeQiDeficiency,
			Category: CategoryQiBloodFluid,
			Features: []PatternFeature{
				pf("fatigue", 1.3), pf("shortness_of_breath", 1.2), pf("spontaneous_sweating", 1.0), pf("weak_pulse", 1.0),
			},
			Mechanism:           "insufficient production or excessive consumption of qi",
			Related:             []string{SyndromeDeficiencyPattern},
			TreatmentPrinciples: []string{"tonify qi"},
		},
		{
			Name:     "qi-stagnation",
			Category: CategoryQiBloodFluid,
			Features: []PatternFeature{
				pf("distending_pain", 1.2), pf("wandering_pain", 1.0), pf("low_mood", 1.1), pf("wiry_pulse", 1.2),
			},
			Mechanism:           "qi movement obstructed",
			Related:             []string{SyndromeExcessPattern, "liver-qi-stagnation"},
			TreatmentPrinciples: []string{"regulate qi"},
		},
		{
			Name:     "blood-deficiency",
			Category: CategoryQiBloodFluid,
			Features: []PatternFeature{
				pf("sallow_complexion", 1.3), pf("pale_lips_nails", 1.2), pf("dizziness", 1.0),
				pf("palpitations", 1.0), pf("pale_tongue", 1.0), pf("thready_pulse", 1.1),
			},
			Mechanism:           "insufficient production or excessive consumption of blood",
			Related:             []string{SyndromeDeficiencyPattern},
			TreatmentPrinciples: []string{"nourish blood"},
		},
		{
			Name:     SyndromeBloodStasis,
			Category: CategoryQiBloodFluid,
			Features: []PatternFeature{
				pf("stabbing_pain", 1.2), pf("purple_tongue", 1.4), pf("dark_complexion", 1.1),
				pf("choppy_pulse", 1.3), pf("knotted_pulse", 1.0),
			},
			Mechanism:           "blood flow impeded",
			Related:             []string{SyndromeExcessPattern, "qi-stagnation"},
			TreatmentPrinciples: []string{"activate blood and resolve stasis"},
		},
		{
			Name:     "fluid-deficiency",
			Category: CategoryQiBloodFluid,
			Features: []PatternFeature{
				pf("dry_mouth", 1.0), pf("dry_skin", 1.1), pf("dry_stool", 1.1), pf("dry_tongue", 1.2), pf("thready_rapid_pulse", 1.0),
			},
			Mechanism:           "body fluids insufficient",
			Related:             []string{SyndromeDeficiencyPattern, SyndromeHeatPattern},
			TreatmentPrinciples: []string{"promote fluids and moisten dryness"},
		},
		{
			Name:     "qi-blood-deficiency",
			Category: CategoryQiBloodFluid,
			Features: []PatternFeature{
				pf("pale_complexion", 1.4), pf("fatigue", 1.3), pf("palpitations", 1.0), pf("thready_weak_pulse", 1.2),
			},
			Mechanism:           "qi and blood both depleted",
			Related:             []string{SyndromeQiDeficiency, "blood-deficiency"},
			TreatmentPrinciples: []string{"tonify qi and nourish blood"},
		},

		// Meridians and collaterals.
		{
			Name:     "stomach-meridian-heat",
			Category: CategoryMeridian,
			Features: []PatternFeature{
				pf("gum_swelling", 1.3), pf("frontal_headache", 1.1), pf("bad_breath", 1.0), pf("rapid_pulse", 1.0),
			},
			Mechanism:           "heat flares along the stomach meridian",
			Related:             []string{SyndromeHeatPattern},
			TreatmentPrinciples: []string{"clear stomach heat"},
		},
		{
			Name:     "liver-meridian-stagnation",
			Category: CategoryMeridian,
			Features: []PatternFeature{
				pf("hypochondriac_distension", 1.2), pf("breast_distension", 1.2), pf("wiry_pulse", 1.0),
			},
			Mechanism:           "qi obstructed along the liver meridian",
			Related:             []string{"liver-qi-stagnation"},
			TreatmentPrinciples: []string{"unblock the liver meridian"},
		},

		// Six meridians.
		{
			Name:     "taiyang-wind-cold",
			Category: CategorySixMeridians,
			Features: []PatternFeature{
				pf("aversion_to_cold", 1.2), pf("fever", 1.0), pf("headache", 1.0),
				pf("stiff_neck", 1.3), pf("floating_tight_pulse", 1.4),
			},
			Mechanism:           "wind cold fetters the taiyang exterior",
			Related:             []string{SyndromeColdPattern},
			TreatmentPrinciples: []string{"release the exterior with acrid warmth"},
		},
		{
			Name:     "shaoyang-pattern",
			Category: CategorySixMeridians,
			Features: []PatternFeature{
				pf("alternating_chills_fever", 1.5), pf("bitter_taste", 1.1), pf("hypochondriac_distension", 1.0), pf("wiry_pulse", 1.0),
			},
			Mechanism:           "pathogen lodged half exterior half interior",
			Related:             []string{"liver-qi-stagnation"},
			TreatmentPrinciples: []string{"harmonise shaoyang"},
		},

		// Triple energizer.
		{
			Name:     "upper-jiao-damp-heat",
			Category: CategoryTripleEnergizer,
			Features: []PatternFeature{
				pf("chest_oppression", 1.3), pf("fever", 1.0), pf("heavy_body", 1.1),
				pf("white_greasy_coating", 1.2), pf("soggy_pulse", 1.0),
			},
			Mechanism:           "damp heat obstructs the upper energizer",
			Related:             []string{SyndromeHeatPattern},
			TreatmentPrinciples: []string{"diffuse the upper energizer and transform dampness"},
		},
		{
			Name:     "lower-jiao-damp-heat",
			Category: CategoryTripleEnergizer,
			Features: []PatternFeature{
				pf("burning_urination", 1.4), pf("dark_urine", 1.1), pf("yellow_greasy_coating", 1.0), pf("slippery_rapid_pulse", 1.0),
			},
			Mechanism:           "damp heat pours into the lower energizer",
			Related:             []string{SyndromeHeatPattern},
			TreatmentPrinciples: []string{"clear heat and drain dampness downward"},
		},

		// Wei, qi, ying and blood levels.
		{
			Name:     "wei-level-wind-heat",
			Category: CategoryWeiQiYingBlood,
			Features: []PatternFeature{
				pf("fever", 1.2), pf("slight_aversion_to_wind", 1.1), pf("sore_throat", 1.3), pf("floating_rapid_pulse", 1.3),
			},
			Mechanism:           "wind heat attacks the defensive level",
			Related:             []string{SyndromeHeatPattern},
			TreatmentPrinciples: []string{"release the exterior with acrid coolness"},
		},
		{
			Name:     "qi-level-heat",
			Category: CategoryWeiQiYingBlood,
			Features: []PatternFeature{
				pf("high_fever", 1.4), pf("profuse_sweating", 1.1), pf("great_thirst", 1.2), pf("surging_pulse", 1.3),
			},
			Mechanism:           "exuberant heat at the qi level",
			Related:             []string{SyndromeHeatPattern, SyndromeExcessPattern},
			TreatmentPrinciples: []string{"clear qi-level heat"},
		},
	}
}

// DefaultConstitutions returns the nine built-in constitutions.
func DefaultConstitutions() []ConstitutionDefinition {
	return []ConstitutionDefinition{
		{
			Type:            ConstitutionBalanced,
			Traits:          []string{"lustrous complexion", "abundant energy", "well-proportioned build", "calm temperament", "adapts easily"},
			Features:        []string{"pale_red_tongue", "thin_white_coating", "moderate_forceful_pulse"},
			Recommendations: []string{"keep a regular routine", "eat a balanced diet", "exercise moderately", "stay cheerful", "keep up routine health care"},
		},
		{
			Type:                ConstitutionQiDeficient,
			Traits:              []string{"tires easily", "short of breath with sweating", "weak voice", "catches colds easily", "pale tongue"},
			Features:            []string{"pale_complexion", "poor_appetite", "loose_stool", "tender_swollen_tongue", "weak_pulse"},
			Recommendations:     []string{"strengthen the spleen and replenish qi", "rest adequately", "eat at regular times", "take gentle exercise", "avoid overexertion"},
			CorrelatedSyndromes: []string{SyndromeQiDeficiency, "spleen-qi-deficiency", "heart-qi-deficiency"},
		},
		{
			Type:                ConstitutionYangDeficient,
			Traits:              []string{"cold hands and feet", "prefers warm drinks", "low spirits", "pale complexion", "copious clear urine"},
			Features:            []string{"sore_lower_back_knees", "swollen_pale_tongue", "white_coating", "slow_weak_pulse"},
			Recommendations:     []string{"warm yang and tonify the kidney", "avoid cold", "eat warm food", "get moderate sunlight", "keep warm"},
			CorrelatedSyndromes: []string{SyndromeColdPattern, "kidney-yang-deficiency"},
		},
		{
			Type:                ConstitutionYinDeficient,
			Traits:              []string{"hot palms and soles", "dry mouth and throat", "night sweats", "lean build", "poor sleep"},
			Features:            []string{"red_tongue_scant_coating", "thready_rapid_pulse", "restlessness", "dry_skin"},
			Recommendations:     []string{"nourish yin and moisten dryness", "avoid spicy food", "avoid overwork", "stay calm", "rest sufficiently"},
			CorrelatedSyndromes: []string{"lung-yin-deficiency", "fluid-deficiency"},
		},
		{
			Type:                ConstitutionPhlegmDamp,
			Traits:              []string{"overweight", "soft abdomen", "chest oppression with phlegm", "sticky mouth", "drowsy"},
			Features:            []string{"thick_greasy_coating", "slippery_pulse", "enlarged_tongue", "heavy_body"},
			Recommendations:     []string{"strengthen the spleen and resolve dampness", "control diet", "exercise actively", "avoid greasy food", "keep bowels regular"},
			CorrelatedSyndromes: []string{"spleen-stomach-damp-heat"},
		},
		{
			Type:                ConstitutionDampHeat,
			Traits:              []string{"oily face", "prone to acne", "bitter taste and bad breath", "sticky stool", "yellow urine"},
			Features:            []string{"red_tongue", "yellow_greasy_coating", "slippery_rapid_pulse", "irritability"},
			Recommendations:     []string{"clear heat and drain dampness", "limit spicy food", "keep bowels regular", "stay calm", "eat light food"},
			CorrelatedSyndromes: []string{"spleen-stomach-damp-heat", "lower-jiao-damp-heat"},
		},
		{
			Type:                ConstitutionBloodStasis,
			Traits:              []string{"dull complexion", "dark lips", "low mood", "forgetful", "dark circles under eyes"},
			Features:            []string{"purple_tongue", "sublingual_varicose", "choppy_pulse", "skin_ecchymosis"},
			Recommendations:     []string{"activate blood and resolve stasis", "keep emotions smooth", "exercise moderately", "keep bowels regular", "have regular check-ups"},
			CorrelatedSyndromes: []string{SyndromeBloodStasis},
		},
		{
			Type:                ConstitutionQiStagnation,
			Traits:              []string{"depressed mood", "frequent sighing", "chest and flank distension", "introverted", "melancholy"},
			Features:            []string{"dusky_tongue", "wiry_pulse", "throat_lump_sensation"},
			Recommendations:     []string{"soothe the liver and relieve depression", "regulate emotions", "join social activities", "exercise moderately", "keep regular hours"},
			CorrelatedSyndromes: []string{"liver-qi-stagnation", "qi-stagnation"},
		},
		{
			Type:            ConstitutionSpecial,
			Traits:          []string{"allergic constitution", "reacts to specific triggers", "hereditary tendency"},
			Features:        []string{"family_allergy_history", "allergic_reaction", "idiosyncratic_response"},
			Recommendations: []string{"avoid allergens", "build resilience", "keep a balanced diet", "live regularly", "keep a symptom diary"},
		},
	}
}

// DefaultKeyFeatures returns the features boosted by attention fusion.
func DefaultKeyFeatures() []string {
	return []string{
		"pale_red_tongue", "red_tongue", "pale_tongue", "yellow_greasy_coating", "white_greasy_coating",
		"floating_pulse", "deep_pulse", "wiry_pulse", "thready_pulse", "rapid_pulse",
		"chest_oppression", "palpitations", "insomnia", "fatigue", "sore_lower_back_knees",
	}
}

// DefaultCoherentPairs returns syndrome pairs that commonly co-occur.
func DefaultCoherentPairs() [][2]string {
	return [][2]string{
		{"spleen-stomach-damp-heat", "liver-qi-stagnation"},
		{"heart-spleen-deficiency", "qi-blood-deficiency"},
		{"lung-yin-deficiency", "kidney-yang-deficiency"},
	}
}

// DefaultCorrelations returns the off-diagonal modality correlations.
func DefaultCorrelations() []ModalityCorrelation {
	return []ModalityCorrelation{
		{A: ModalityLook, B: ModalityPalpation, Value: 0.7},
		{A: ModalityInquiry, B: ModalityListen, Value: 0.8},
	}
}
