package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"quenito/internal/logging"
	"quenito/internal/types"
)

// Store is the single authority over the knowledge document. All reads and
// writes go through it; the in-memory document is authoritative and every
// update persists the full document synchronously.
type Store struct {
	mu         sync.RWMutex
	path       string
	doc        *Document
	archive    *Archive // optional SQLite mirror, nil when disabled
	snippetLen int      // max runes of question text kept per event, 0 means default
}

// Open loads the knowledge document from path. A missing or corrupt file is
// not an error: the store starts from the default document and logs a warning,
// so a bad hand edit never blocks a session.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("knowledge path required")
	}

	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.KnowledgeWarn("could not read knowledge file %s: %v, starting fresh", path, err)
		}
		s.doc = DefaultDocument()
		return s, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.KnowledgeWarn("knowledge file %s is corrupt: %v, starting fresh", path, err)
		s.doc = DefaultDocument()
		return s, nil
	}

	normalize(&doc)
	s.doc = &doc
	logging.Knowledge("loaded knowledge base: %d patterns, %d learning events",
		len(doc.QuestionPatterns), len(doc.LearningEvents))
	return s, nil
}

// normalize fills in zero-valued maps and settings so older documents keep
// working after field additions.
func normalize(doc *Document) {
	if doc.QuestionPatterns == nil {
		doc.QuestionPatterns = defaultPatterns()
	}
	if doc.Calibration == nil {
		doc.Calibration = make(map[string]*CalibrationState)
	}
	if doc.StrategyPreferences == nil {
		doc.StrategyPreferences = make(map[string]StrategyPreference)
	}
	if doc.Settings == (CalibrationSettings{}) {
		doc.Settings = DefaultSettings()
	}
}

// AttachArchive wires a SQLite archive; learning events recorded after this
// call are mirrored into it. Archive failures are never fatal.
func (s *Store) AttachArchive(a *Archive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive = a
}

// SetSnippetLimit overrides how many runes of question text each learning
// event keeps. Non-positive values keep the default.
func (s *Store) SetSnippetLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snippetLen = n
}

// Path returns the on-disk location of the knowledge document.
func (s *Store) Path() string {
	return s.path
}

// Persona returns a copy of the persona profile.
func (s *Store) Persona() PersonaProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Persona
}

// Patterns returns the pattern record for a question type. Unknown types get
// a zero-value record, never an error.
func (s *Store) Patterns(questionType string) PatternRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.QuestionPatterns[questionType]
}

// AllPatterns returns a copy of the full pattern map for the classifier.
func (s *Store) AllPatterns() map[string]PatternRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]PatternRecord, len(s.doc.QuestionPatterns))
	for k, v := range s.doc.QuestionPatterns {
		out[k] = v
	}
	return out
}

// Settings returns the calibration constants.
func (s *Store) Settings() CalibrationSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Settings
}

// Events returns a copy of the learning log.
func (s *Store) Events() []types.LearningEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.LearningEvent, len(s.doc.LearningEvents))
	copy(out, s.doc.LearningEvents)
	return out
}

// ResponseFor returns the persona's answer for a question type, or "" when
// the knowledge base holds no answer. Brand questions consult the persona's
// familiarity map before falling back to the pattern default.
func (s *Store) ResponseFor(questionType, questionText string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern, ok := s.doc.QuestionPatterns[questionType]
	if !ok {
		return ""
	}

	if questionType == "brand_familiarity" && len(s.doc.Persona.BrandFamiliarity) > 0 {
		lower := strings.ToLower(questionText)
		for brand, answer := range s.doc.Persona.BrandFamiliarity {
			if strings.Contains(lower, strings.ToLower(brand)) {
				return answer
			}
		}
	}

	if pattern.ResponseField != "" {
		if v := s.personaField(pattern.ResponseField); v != "" {
			return v
		}
	}
	return pattern.Response
}

// personaField maps a response_field name to the persona value as text.
// Callers hold s.mu.
func (s *Store) personaField(field string) string {
	p := s.doc.Persona
	switch field {
	case "age":
		return strconv.Itoa(p.Age)
	case "year_of_birth":
		return strconv.Itoa(p.YearOfBirth)
	case "gender":
		return p.Gender
	case "country":
		return p.Country
	case "state":
		return p.State
	case "postcode":
		return p.Postcode
	case "location_type":
		return p.LocationType
	case "employment_status":
		return p.EmploymentStatus
	case "occupation":
		return p.Occupation
	case "industry":
		return p.Industry
	case "education":
		return p.Education
	case "marital_status":
		return p.MaritalStatus
	case "household_size":
		return strconv.Itoa(p.HouseholdSize)
	case "household_income":
		return p.HouseholdIncome
	case "personal_income":
		return p.PersonalIncome
	case "children":
		return strconv.Itoa(p.Children)
	case "pets":
		return p.Pets
	default:
		return ""
	}
}

// save writes the full document to disk. Callers hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create knowledge directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write knowledge file: %w", err)
	}
	return nil
}

// Save persists the current document. Exposed for CLI commands; the learning
// path saves internally after every recorded outcome.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// ReloadExternal re-reads persona and question patterns from disk after an
// external edit. Calibration state, strategy preferences and the learning log
// stay in-memory authoritative so a hand edit can never erase learning.
func (s *Store) ReloadExternal() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to re-read knowledge file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("external edit is not valid JSON: %w", err)
	}
	normalize(&doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Persona = doc.Persona
	s.doc.QuestionPatterns = doc.QuestionPatterns
	logging.Knowledge("reloaded persona and patterns after external edit")
	return nil
}
