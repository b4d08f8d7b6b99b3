// Package knowledge implements Quenito's self-calibrating knowledge base:
// a single JSON document holding the persona, question patterns, calibration
// state, strategy preferences and the append-only learning log, plus a SQLite
// archive mirror and an fsnotify reload of external hand edits.
package knowledge

import "quenito/internal/types"

// PersonaProfile is the fixed simulated respondent. Read-only during
// automation; edited by hand between sessions.
type PersonaProfile struct {
	Age          int    `json:"age"`
	YearOfBirth  int    `json:"year_of_birth"`
	Gender       string `json:"gender"`
	Country      string `json:"country"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	LocationType string `json:"location_type"` // e.g. "In a large metropolitan city"

	EmploymentStatus string `json:"employment_status"`
	Occupation       string `json:"occupation"`
	Industry         string `json:"industry"`
	Education        string `json:"education"`

	MaritalStatus   string `json:"marital_status"`
	HouseholdSize   int    `json:"household_size"`
	HouseholdIncome string `json:"household_income"`
	PersonalIncome  string `json:"personal_income"`
	Children        int    `json:"children"`
	Pets            string `json:"pets"`

	// BrandFamiliarity maps brand names to a familiarity answer.
	BrandFamiliarity map[string]string `json:"brand_familiarity,omitempty"`
}

// PatternRecord describes one question type: how to recognize it and how to
// answer it for the persona.
type PatternRecord struct {
	// Keywords matched against lowercased page text; score is the matched
	// fraction of this list.
	Keywords []string `json:"keywords"`

	// StrongIndicators are phrases that identify the type outright.
	StrongIndicators []string `json:"strong_indicators,omitempty"`

	// ResponseField names the PersonaProfile field that answers this type,
	// when the answer comes straight from the persona.
	ResponseField string `json:"response_field,omitempty"`

	// Response is a literal answer used when no persona field applies.
	Response string `json:"response,omitempty"`

	// Priority breaks score ties; higher wins. Demographics with precise
	// vocabularies (age, gender) sit above broad topical types.
	Priority int `json:"priority,omitempty"`
}

// CalibrationState is the per-type dynamic threshold state, recomputed on
// every recorded outcome.
type CalibrationState struct {
	TotalAttempts      int     `json:"total_attempts"`
	SuccessfulAttempts int     `json:"successful_attempts"`
	SuccessRate        float64 `json:"success_rate"`

	// DynamicAdjustment shifts the base threshold; negative after sustained
	// success, positive after failures. Clamped to ±AdjustmentCap.
	DynamicAdjustment float64 `json:"dynamic_adjustment"`

	// Trending labels the recent success rate for reporting.
	Trending string `json:"trending"`
}

// StrategyPreference tracks the last successful interaction strategy for one
// (question type, element kind) pair.
type StrategyPreference struct {
	Strategy      types.StrategyName `json:"strategy"`
	SuccessCount  int                `json:"success_count"`
	TotalAttempts int                `json:"total_attempts"`
	SuccessRate   float64            `json:"success_rate"`
	AvgExecTime   float64            `json:"avg_exec_time_sec"`
}

// CalibrationSettings holds the tunable learning constants.
type CalibrationSettings struct {
	LearningRate     float64 `json:"learning_rate"`
	SuccessBoost     float64 `json:"success_boost"`
	FailurePenalty   float64 `json:"failure_penalty"`
	DefaultThreshold float64 `json:"default_threshold"`
	MinThreshold     float64 `json:"min_threshold"`
	MaxThreshold     float64 `json:"max_threshold"`
	AdjustmentCap    float64 `json:"adjustment_cap"`

	// MinEventsForCalibration is how many events a type needs before its
	// calibrated threshold replaces the default.
	MinEventsForCalibration int `json:"min_events_for_calibration"`
}

// Document is the full knowledge base as persisted on disk. Every update
// rewrites the whole document.
type Document struct {
	Version             string                        `json:"version"`
	Persona             PersonaProfile                `json:"persona"`
	QuestionPatterns    map[string]PatternRecord      `json:"question_patterns"`
	Calibration         map[string]*CalibrationState  `json:"calibration"`
	StrategyPreferences map[string]StrategyPreference `json:"strategy_preferences"`
	LearningEvents      []types.LearningEvent         `json:"learning_events"`
	Settings            CalibrationSettings           `json:"settings"`
}

// DefaultSettings returns the stock calibration constants.
func DefaultSettings() CalibrationSettings {
	return CalibrationSettings{
		LearningRate:            0.1,
		SuccessBoost:            0.05,
		FailurePenalty:          0.02,
		DefaultThreshold:        0.5,
		MinThreshold:            0.1,
		MaxThreshold:            0.95,
		AdjustmentCap:           0.2,
		MinEventsForCalibration: 3,
	}
}

// DefaultDocument returns a fresh knowledge base seeded with the built-in
// persona and question patterns. Used on first run and when the file on disk
// is missing or corrupt.
func DefaultDocument() *Document {
	return &Document{
		Version: "1.0",
		Persona: PersonaProfile{
			Age:              45,
			YearOfBirth:      1980,
			Gender:           "Male",
			Country:          "Australia",
			State:            "New South Wales",
			Postcode:         "2217",
			LocationType:     "In a large metropolitan city",
			EmploymentStatus: "Full-time",
			Occupation:       "Data Analyst",
			Industry:         "Retail",
			Education:        "High school",
			MaritalStatus:    "Married/civil partnership",
			HouseholdSize:    4,
			HouseholdIncome:  "$100,000 to $149,999",
			PersonalIncome:   "$100,000 to $149,999",
			Children:         2,
			Pets:             "Dog",
		},
		QuestionPatterns:    defaultPatterns(),
		Calibration:         make(map[string]*CalibrationState),
		StrategyPreferences: make(map[string]StrategyPreference),
		LearningEvents:      nil,
		Settings:            DefaultSettings(),
	}
}

// defaultPatterns seeds the recognizable question types. Keyword lists are
// illustrative starting points; hand edits are picked up by the watcher.
func defaultPatterns() map[string]PatternRecord {
	return map[string]PatternRecord{
		"age": {
			Keywords:         []string{"age", "old", "born", "birth", "year"},
			StrongIndicators: []string{"how old are you", "what is your age", "your age", "year of birth", "year were you born"},
			ResponseField:    "age",
			Priority:         3,
		},
		"gender": {
			Keywords:         []string{"gender", "male", "female", "sex", "identify"},
			StrongIndicators: []string{"what is your gender", "your gender", "gender do you identify"},
			ResponseField:    "gender",
			Priority:         2,
		},
		"location": {
			Keywords:         []string{"location", "live", "state", "postcode", "city", "region", "area"},
			StrongIndicators: []string{"where do you live", "what state", "your postcode"},
			ResponseField:    "state",
			Priority:         1,
		},
		"occupation": {
			Keywords:      []string{"occupation", "work", "job", "employment", "employed", "profession"},
			ResponseField: "occupation",
			Priority:      1,
		},
		"education": {
			Keywords:      []string{"education", "school", "degree", "qualification", "study", "studied"},
			ResponseField: "education",
			Priority:      1,
		},
		"income": {
			Keywords:      []string{"income", "earn", "salary", "household", "earnings", "wage"},
			ResponseField: "household_income",
			Priority:      1,
		},
		"marital_status": {
			Keywords:      []string{"marital", "married", "single", "relationship", "partner"},
			ResponseField: "marital_status",
			Priority:      1,
		},
		"household": {
			Keywords:      []string{"household", "people", "family", "children", "kids", "dependents"},
			ResponseField: "household_size",
			Priority:      0,
		},
		"brand_familiarity": {
			Keywords: []string{"brand", "familiar", "heard", "aware", "awareness", "recognise", "recognize"},
			Response: "Somewhat familiar",
			Priority: 0,
		},
		"rating_matrix": {
			Keywords: []string{"rate", "rating", "scale", "agree", "disagree", "satisfied", "likely", "recommend"},
			Response: "neutral",
			Priority: 0,
		},
		"multi_select": {
			Keywords: []string{"select all", "apply", "choose all", "which of the following", "all that apply"},
			Priority: 0,
		},
	}
}
