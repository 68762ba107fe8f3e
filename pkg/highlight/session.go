package highlight

import (
	"sync"
	"time"

	"github.com/coolbeans/clausemark/pkg/align"
	"github.com/coolbeans/clausemark/pkg/risk"
)

const (
	// DefaultNarrowWidth is the viewport width, in pixels, below which the
	// risk detail panel is scrolled into view after the highlight.
	DefaultNarrowWidth = 768

	// DefaultPanelDelay separates the highlight scroll from the panel scroll.
	DefaultPanelDelay = 300 * time.Millisecond

	// DetailPanelID is the element id of the risk detail panel.
	DetailPanelID = "risk-detail"

	// MissingFullTextBanner is shown when the document text is unavailable.
	MissingFullTextBanner = "Full document text not available. Showing identified excerpts only."
)

// ScrollPlan tells the view what to bring into view after a selection.
type ScrollPlan struct {
	// TargetID is the highlight element to center, "" when the risk has no
	// element in the document view.
	TargetID string `json:"targetId,omitempty"`
	Block    string `json:"block"`

	// PanelTargetID and PanelDelay are set on narrow viewports only.
	PanelTargetID string        `json:"panelTargetId,omitempty"`
	PanelDelay    time.Duration `json:"panelDelay,omitempty"`
}

// AlignmentCache stores computed alignments so a re-displayed document skips
// alignment.
type AlignmentCache interface {
	GetAlignment(documentID string, result *risk.AnalysisResult) (*align.Alignment, bool)
	PutAlignment(documentID string, result *risk.AnalysisResult, alignment *align.Alignment)
}

// RiskEntry is one row of the side list.
type RiskEntry struct {
	risk.Record
	Matched  bool   `json:"matched"`
	Active   bool   `json:"active"`
	Strategy string `json:"strategy,omitempty"`
}

// Session is the controller of one display session. It computes the
// partition once and afterwards only tracks which risk is active.
type Session struct {
	mu sync.RWMutex

	result    *risk.AnalysisResult
	alignment *align.Alignment
	active    int
	filter    risk.Filter

	narrowWidth   int
	panelDelay    time.Duration
	viewportWidth int
	classPrefix   string
	documentID    string
	cache         AlignmentCache
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithNarrowWidth sets the narrow viewport breakpoint in pixels.
func WithNarrowWidth(width int) SessionOption {
	return func(s *Session) {
		if width > 0 {
			s.narrowWidth = width
		}
	}
}

// WithPanelDelay sets the delay before the detail panel scroll.
func WithPanelDelay(delay time.Duration) SessionOption {
	return func(s *Session) {
		if delay >= 0 {
			s.panelDelay = delay
		}
	}
}

// WithViewportWidth sets the initial viewport width.
func WithViewportWidth(width int) SessionOption {
	return func(s *Session) {
		s.viewportWidth = width
	}
}

// WithClassPrefix sets the CSS class prefix used by HTML.
func WithClassPrefix(prefix string) SessionOption {
	return func(s *Session) {
		if prefix != "" {
			s.classPrefix = prefix
		}
	}
}

// WithCache makes the session reuse alignments stored under documentID.
func WithCache(documentID string, cache AlignmentCache) SessionOption {
	return func(s *Session) {
		s.documentID = documentID
		s.cache = cache
	}
}

// NewSession prepares a display session. When the result carries no document
// text, the session runs in fallback mode and renders excerpt blocks. The
// first record, if any, starts out active.
func NewSession(result *risk.AnalysisResult, aligner *align.Aligner, opts ...SessionOption) *Session {
	if result == nil {
		result = &risk.AnalysisResult{}
	}
	if aligner == nil {
		aligner = align.New()
	}

	session := &Session{
		result:      result,
		filter:      risk.FilterAll,
		narrowWidth: DefaultNarrowWidth,
		panelDelay:  DefaultPanelDelay,
		classPrefix: DefaultClassPrefix,
	}
	for _, opt := range opts {
		opt(session)
	}

	if result.HasFullText() {
		session.alignment = session.loadAlignment(aligner)
	}
	if len(result.Records) > 0 {
		session.active = result.Records[0].ID
	}

	return session
}

func (s *Session) loadAlignment(aligner *align.Aligner) *align.Alignment {
	if s.cache != nil {
		if alignment, ok := s.cache.GetAlignment(s.documentID, s.result); ok {
			return alignment
		}
	}
	alignment := aligner.Align(s.result.Text(), s.result.Records)
	if s.cache != nil {
		s.cache.PutAlignment(s.documentID, s.result, alignment)
	}
	return alignment
}

// Fallback reports whether the session renders excerpt blocks instead of the document.
func (s *Session) Fallback() bool {
	return s.alignment == nil
}

// Banner returns the informational notice for the view, "" when none applies.
func (s *Session) Banner() string {
	if s.Fallback() {
		return MissingFullTextBanner
	}
	return ""
}

// Result returns the analysis the session displays.
func (s *Session) Result() *risk.AnalysisResult {
	return s.result
}

// Alignment returns the computed partition, nil in fallback mode.
func (s *Session) Alignment() *align.Alignment {
	return s.alignment
}

// Active returns the active risk id, 0 when none is active.
func (s *Session) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SelectRisk makes id the active risk. Any id is accepted; one without a
// highlight simply renders nothing as active. Repeated calls are idempotent
// and the last one wins.
func (s *Session) SelectRisk(id int) ScrollPlan {
	s.mu.Lock()
	s.active = id
	viewportWidth := s.viewportWidth
	s.mu.Unlock()

	plan := ScrollPlan{Block: "center"}
	if s.hasElement(id) {
		plan.TargetID = DOMID(id)
	}
	if viewportWidth > 0 && viewportWidth < s.narrowWidth {
		plan.PanelTargetID = DetailPanelID
		plan.PanelDelay = s.panelDelay
	}
	return plan
}

// ClearSelection returns the session to the "no risk active" state.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.active = 0
	s.mu.Unlock()
}

// SetViewportWidth records the current viewport width in pixels.
func (s *Session) SetViewportWidth(width int) {
	s.mu.Lock()
	s.viewportWidth = width
	s.mu.Unlock()
}

func (s *Session) hasElement(id int) bool {
	if s.Fallback() {
		_, ok := s.result.RecordByID(id)
		return ok
	}
	return s.alignment.IsMatched(id)
}

// Nodes renders the current state.
func (s *Session) Nodes() []Node {
	active := s.Active()
	if s.Fallback() {
		return RenderFallback(s.result.Records, active)
	}
	return Render(s.alignment.Segments, active)
}

// HTML renders the current state as markup.
func (s *Session) HTML() string {
	return HTMLWithPrefix(s.Nodes(), s.classPrefix)
}

// SetFilter changes which records the side list shows. The partition is
// not affected.
func (s *Session) SetFilter(filter risk.Filter) {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
}

// Filter returns the current side list filter.
func (s *Session) Filter() risk.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// VisibleRisks returns the side list rows passing the current filter.
func (s *Session) VisibleRisks() []RiskEntry {
	s.mu.RLock()
	filter, active := s.filter, s.active
	s.mu.RUnlock()

	records := risk.FilterRecords(s.result.Records, filter)
	entries := make([]RiskEntry, 0, len(records))
	for _, record := range records {
		entry := RiskEntry{Record: record, Active: active != 0 && record.ID == active}
		if s.alignment != nil {
			entry.Strategy = s.alignment.StrategyFor(record.ID)
			entry.Matched = entry.Strategy != ""
		}
		entries = append(entries, entry)
	}
	return entries
}

// Unmatched returns the records that have no highlight in the document view.
// In fallback mode no record is aligned, so the list is empty: every record
// already has its own block.
func (s *Session) Unmatched() []risk.Record {
	if s.Fallback() {
		return nil
	}
	var unmatched []risk.Record
	for _, record := range s.result.Records {
		if !s.alignment.IsMatched(record.ID) {
			unmatched = append(unmatched, record)
		}
	}
	return unmatched
}
