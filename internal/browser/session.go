// Package browser owns the Chrome instance behind Quenito. It adapts a
// detached-session manager to survey work: open a survey page, read its
// state for classification, locate the control that answers the current
// question, and push toward the next page.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"quenito/internal/config"
	"quenito/internal/logging"
	"quenito/internal/strategy"
	"quenito/internal/types"
)

// Session describes the public metadata for a tracked survey page.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta Session
	page *rod.Page
}

// SessionManager owns the Chrome instance and tracks active survey sessions.
type SessionManager struct {
	cfg        config.BrowserConfig
	navTimeout time.Duration
	mu         sync.RWMutex
	browser    *rod.Browser
	sessions   map[string]*sessionRecord
	controlURL string
}

// NewSessionManager creates a session manager from browser config.
func NewSessionManager(cfg config.BrowserConfig, navTimeout time.Duration) *SessionManager {
	return &SessionManager{
		cfg:        cfg,
		navTimeout: navTimeout,
		sessions:   make(map[string]*sessionRecord),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.sessions = make(map[string]*sessionRecord)
	}

	if err := m.loadSessionsLocked(); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	controlURL := m.cfg.DebugURL
	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debug_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	logging.Browser("connected to chrome at %s", controlURL)
	return nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// OpenSurvey opens a new page at the survey URL and tracks it.
func (m *SessionManager) OpenSurvey(ctx context.Context, url string) (*SurveyPage, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	if m.browser == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := m.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.viewportWidth(),
		Height:            m.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	if err := page.Timeout(m.navTimeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	_ = page.Timeout(m.navTimeout).WaitLoad()

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     "active",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page}
	m.mu.Unlock()

	if err := m.persistSessions(); err != nil {
		logging.BrowserWarn("could not persist sessions: %v", err)
	}

	logging.Session("opened survey session %s at %s", meta.ID, url)
	return &SurveyPage{page: page, sessionID: meta.ID, mgr: m, navTimeout: m.navTimeout}, nil
}

func (m *SessionManager) viewportWidth() int {
	if m.cfg.ViewportWidth == 0 {
		return 1280
	}
	return m.cfg.ViewportWidth
}

func (m *SessionManager) viewportHeight() int {
	if m.cfg.ViewportHeight == 0 {
		return 900
	}
	return m.cfg.ViewportHeight
}

// List returns metadata for all known sessions.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	return results
}

// touch updates a session's last-active time and URL.
func (m *SessionManager) touch(sessionID, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.sessions[sessionID]; ok {
		rec.meta.LastActive = time.Now()
		rec.meta.URL = url
	}
}

// Shutdown closes tracked pages and the browser.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.persistSessionsLocked()

	for id, record := range m.sessions {
		if record.page != nil {
			_ = record.page.Close()
		}
		delete(m.sessions, id)
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.controlURL = ""
	logging.Browser("browser shutdown complete")
	return err
}

// persistSessions writes session metadata to the configured store.
func (m *SessionManager) persistSessions() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.persistSessionsLocked()
}

func (m *SessionManager) persistSessionsLocked() error {
	if m.cfg.SessionsPath == "" {
		return nil
	}

	metas := make([]Session, 0, len(m.sessions))
	for _, rec := range m.sessions {
		metas = append(metas, rec.meta)
	}

	data, err := json.MarshalIndent(metas, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionsPath), 0755); err != nil {
		return fmt.Errorf("create session store dir: %w", err)
	}
	return os.WriteFile(m.cfg.SessionsPath, data, 0644)
}

// loadSessionsLocked restores session metadata from disk. Pages are not
// reattached; the metadata lets the resume menu show what ran before.
func (m *SessionManager) loadSessionsLocked() error {
	if m.cfg.SessionsPath == "" {
		return nil
	}

	data, err := os.ReadFile(m.cfg.SessionsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var metas []Session
	if err := json.Unmarshal(data, &metas); err != nil {
		logging.BrowserWarn("session store corrupt, ignoring: %v", err)
		return nil
	}
	for _, meta := range metas {
		meta.Status = "stale"
		m.sessions[meta.ID] = &sessionRecord{meta: meta}
	}
	return nil
}

// =============================================================================
// SURVEY PAGE
// =============================================================================

// SurveyPage is one live survey tab. The automation loop drives it through
// this surface only.
type SurveyPage struct {
	page       *rod.Page
	sessionID  string
	mgr        *SessionManager
	navTimeout time.Duration
}

// State reads the current page into a PageState: URL, title, visible text
// and the input counts that drive element-kind detection.
func (p *SurveyPage) State() (types.PageState, error) {
	var state types.PageState

	info, err := p.page.Info()
	if err != nil {
		return state, fmt.Errorf("page info: %w", err)
	}
	state.URL = info.URL
	state.Title = info.Title

	res, err := p.page.Timeout(p.navTimeout).Eval(`() => ({
		text: document.body ? document.body.innerText : "",
		radios: document.querySelectorAll('input[type="radio"]').length,
		checkboxes: document.querySelectorAll('input[type="checkbox"]').length,
		textInputs: document.querySelectorAll('input[type="text"], input[type="number"], input:not([type])').length,
		selects: document.querySelectorAll('select').length,
		textareas: document.querySelectorAll('textarea').length,
	})`)
	if err != nil {
		return state, fmt.Errorf("read page state: %w", err)
	}

	obj := res.Value.Map()
	state.Text = obj["text"].Str()
	state.Radios = int(obj["radios"].Int())
	state.Checkboxes = int(obj["checkboxes"].Int())
	state.TextInputs = int(obj["textInputs"].Int())
	state.Selects = int(obj["selects"].Int())
	state.Textareas = int(obj["textareas"].Int())

	p.mgr.touch(p.sessionID, state.URL)
	return state, nil
}

// AnswerElement locates the control that should receive the answer. For
// option inputs it prefers the one whose label matches the answer text,
// falling back to the first control of the kind.
func (p *SurveyPage) AnswerElement(kind types.ElementKind, answer string) (strategy.Element, error) {
	var selector string
	switch kind {
	case types.ElementRadio:
		selector = `input[type="radio"]`
	case types.ElementCheckbox:
		selector = `input[type="checkbox"]`
	case types.ElementDropdown:
		selector = `select`
	case types.ElementText:
		selector = `input[type="text"], input[type="number"], input:not([type]), textarea`
	default:
		return nil, fmt.Errorf("no element strategy for kind %s", kind)
	}

	els, err := p.page.Timeout(p.navTimeout).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("no %s elements on page", kind)
	}

	target := els.First()
	if (kind == types.ElementRadio || kind == types.ElementCheckbox) && answer != "" {
		if match := p.matchByLabel(els, answer); match != nil {
			target = match
		}
	}

	return strategy.NewRodElement(p.page, target, kind), nil
}

// matchByLabel finds the option whose associated label contains the answer.
func (p *SurveyPage) matchByLabel(els rod.Elements, answer string) *rod.Element {
	want := strings.ToLower(answer)
	for _, el := range els {
		res, err := el.Eval(`() => {
			if (this.labels && this.labels.length > 0) return this.labels[0].innerText;
			const parent = this.closest('label');
			return parent ? parent.innerText : "";
		}`)
		if err != nil {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(res.Value.Str()))
		if label != "" && (strings.Contains(label, want) || strings.Contains(want, label)) {
			return el
		}
	}
	return nil
}

// nextSelectors are tried in order when advancing to the next page.
var nextSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`#next`,
	`.next-button`,
	`button.next`,
	`[aria-label*="next" i]`,
}

// ClickNext advances the survey by clicking a next/submit control. Returns
// false when no candidate control exists on the page.
func (p *SurveyPage) ClickNext() (bool, error) {
	for _, sel := range nextSelectors {
		el, err := p.page.Timeout(2 * time.Second).Element(sel)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			logging.BrowserDebug("next control %s found but unclickable: %v", sel, err)
			continue
		}
		_ = p.page.Timeout(p.navTimeout).WaitLoad()
		return true, nil
	}

	// Text-matched buttons catch platforms with no stable selectors.
	el, err := p.page.Timeout(2*time.Second).ElementR("button", `/next|continue|submit|→/i`)
	if err == nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			_ = p.page.Timeout(p.navTimeout).WaitLoad()
			return true, nil
		}
	}
	return false, nil
}

// Screenshot captures the page to a file; used when escalating so the human
// can see what the automation saw.
func (p *SurveyPage) Screenshot(path string) error {
	data, err := p.page.Screenshot(false, nil)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Close closes the underlying page.
func (p *SurveyPage) Close() error {
	return p.page.Close()
}
