package highlight

import (
	"strings"
	"testing"
	"time"

	"github.com/coolbeans/clausemark/pkg/align"
	"github.com/coolbeans/clausemark/pkg/risk"
)

const sessionText = "The Tenant shall pay rent on the 1st of each month. Late fees of $50 apply after day 5."

func buildTestResult(withText bool) *risk.AnalysisResult {
	result := &risk.AnalysisResult{
		Summary: "Residential lease",
		Records: []risk.Record{
			{ID: 1, Text: "Late fees of $50 apply after day 5.", Level: risk.LevelMedium, Explanation: "Fee", Recommendation: "Negotiate"},
			{ID: 2, Text: "The Tenant shall pay rent", Level: risk.LevelHigh, Explanation: "Rent", Recommendation: "Check"},
			{ID: 3, Text: "Security deposit is forfeited", Level: risk.LevelLow, Explanation: "Deposit", Recommendation: "Ask"},
		},
	}
	if withText {
		text := sessionText
		result.FullText = &text
	}
	return result
}

type countingCache struct {
	stored map[string]*align.Alignment
	gets   int
	puts   int
}

func (c *countingCache) GetAlignment(documentID string, _ *risk.AnalysisResult) (*align.Alignment, bool) {
	c.gets++
	alignment, ok := c.stored[documentID]
	return alignment, ok
}

func (c *countingCache) PutAlignment(documentID string, _ *risk.AnalysisResult, alignment *align.Alignment) {
	c.puts++
	c.stored[documentID] = alignment
}

func TestNewSession_InitialState(t *testing.T) {
	session := NewSession(buildTestResult(true), nil)

	if session.Fallback() {
		t.Fatal("Expected aligned mode")
	}
	if session.Active() != 1 {
		t.Errorf("Expected first record active, got %d", session.Active())
	}
	if session.Banner() != "" {
		t.Errorf("Expected no banner, got %q", session.Banner())
	}
	if err := align.Verify(sessionText, session.Alignment().Segments); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestNewSession_EmptyRiskList(t *testing.T) {
	text := sessionText
	session := NewSession(&risk.AnalysisResult{FullText: &text}, nil)

	if session.Active() != 0 {
		t.Errorf("Expected no active risk, got %d", session.Active())
	}
	nodes := session.Nodes()
	if len(nodes) != 1 || nodes[0].Kind != NodeText {
		t.Errorf("Expected a single text node, got %+v", nodes)
	}
	if len(session.VisibleRisks()) != 0 {
		t.Error("Expected an empty side list")
	}
}

func TestSession_SelectRisk(t *testing.T) {
	session := NewSession(buildTestResult(true), nil)

	plan := session.SelectRisk(2)

	if session.Active() != 2 {
		t.Errorf("Expected risk 2 active, got %d", session.Active())
	}
	if plan.TargetID != "risk-2" || plan.Block != "center" {
		t.Errorf("Unexpected scroll plan: %+v", plan)
	}
	if plan.PanelTargetID != "" {
		t.Errorf("Expected no panel scroll on unknown viewport, got %+v", plan)
	}

	active := 0
	for _, node := range session.Nodes() {
		if node.Active {
			active++
			if node.RiskID != 2 {
				t.Errorf("Expected risk 2 node active, got %d", node.RiskID)
			}
		}
	}
	if active != 1 {
		t.Errorf("Expected exactly one active node, got %d", active)
	}
}

func TestSession_SelectRiskWithoutHighlight(t *testing.T) {
	session := NewSession(buildTestResult(true), nil)

	plan := session.SelectRisk(3)

	if session.Active() != 3 {
		t.Errorf("Expected risk 3 active, got %d", session.Active())
	}
	if plan.TargetID != "" {
		t.Errorf("Expected no scroll target for unmatched risk, got %q", plan.TargetID)
	}
	for _, node := range session.Nodes() {
		if node.Active {
			t.Errorf("Expected no active node, got %+v", node)
		}
	}
}

func TestSession_SelectRiskLastWriteWins(t *testing.T) {
	session := NewSession(buildTestResult(true), nil)

	session.SelectRisk(2)
	session.SelectRisk(1)
	session.SelectRisk(1)

	if session.Active() != 1 {
		t.Errorf("Expected risk 1 active, got %d", session.Active())
	}
	if session.HTML() != session.HTML() {
		t.Error("Expected repeated renders to be identical")
	}

	session.ClearSelection()
	if session.Active() != 0 {
		t.Errorf("Expected no active risk after clearing, got %d", session.Active())
	}
}

func TestSession_NarrowViewportSchedulesPanelScroll(t *testing.T) {
	session := NewSession(buildTestResult(true), nil,
		WithViewportWidth(375),
		WithPanelDelay(150*time.Millisecond))

	plan := session.SelectRisk(1)

	if plan.PanelTargetID != DetailPanelID {
		t.Errorf("Expected panel target %s, got %q", DetailPanelID, plan.PanelTargetID)
	}
	if plan.PanelDelay != 150*time.Millisecond {
		t.Errorf("Expected 150ms delay, got %v", plan.PanelDelay)
	}

	session.SetViewportWidth(1280)
	if plan := session.SelectRisk(1); plan.PanelTargetID != "" {
		t.Errorf("Expected no panel scroll on wide viewport, got %+v", plan)
	}
}

func TestSession_Fallback(t *testing.T) {
	session := NewSession(buildTestResult(false), nil)

	if !session.Fallback() {
		t.Fatal("Expected fallback mode")
	}
	if session.Banner() != MissingFullTextBanner {
		t.Errorf("Expected missing text banner, got %q", session.Banner())
	}

	nodes := session.Nodes()
	if len(nodes) != 3 {
		t.Fatalf("Expected 3 blocks, got %d", len(nodes))
	}
	for _, node := range nodes {
		if node.Kind != NodeBlock {
			t.Errorf("Expected block node, got %s", node.Kind)
		}
	}
	if !nodes[0].Active {
		t.Error("Expected first block active")
	}

	plan := session.SelectRisk(3)
	if plan.TargetID != "risk-3" {
		t.Errorf("Expected block target risk-3, got %q", plan.TargetID)
	}
	if session.Unmatched() != nil {
		t.Error("Expected no unmatched list in fallback mode")
	}
}

func TestSession_FilterAffectsSideListOnly(t *testing.T) {
	session := NewSession(buildTestResult(true), nil)
	before := session.HTML()

	session.SetFilter(risk.FilterHigh)

	visible := session.VisibleRisks()
	if len(visible) != 1 || visible[0].ID != 2 {
		t.Fatalf("Expected only risk 2 visible, got %+v", visible)
	}
	if !visible[0].Matched || visible[0].Strategy != align.StrategyExact {
		t.Errorf("Expected risk 2 matched exactly, got %+v", visible[0])
	}
	if session.HTML() != before {
		t.Error("Expected filter not to change the document view")
	}
	if session.Filter() != risk.FilterHigh {
		t.Errorf("Expected high filter, got %s", session.Filter())
	}
}

func TestSession_UnmatchedForSidePanel(t *testing.T) {
	session := NewSession(buildTestResult(true), nil)

	unmatched := session.Unmatched()
	if len(unmatched) != 1 || unmatched[0].ID != 3 {
		t.Fatalf("Expected risk 3 unmatched, got %+v", unmatched)
	}

	all := session.VisibleRisks()
	if len(all) != 3 {
		t.Errorf("Expected all 3 risks in the side list, got %d", len(all))
	}
}

func TestSession_UsesCache(t *testing.T) {
	cache := &countingCache{stored: make(map[string]*align.Alignment)}

	first := NewSession(buildTestResult(true), nil, WithCache("lease-1", cache))
	second := NewSession(buildTestResult(true), nil, WithCache("lease-1", cache))

	if cache.puts != 1 {
		t.Errorf("Expected one alignment stored, got %d", cache.puts)
	}
	if cache.gets != 2 {
		t.Errorf("Expected two lookups, got %d", cache.gets)
	}
	if first.Alignment() != second.Alignment() {
		t.Error("Expected the second session to reuse the cached alignment")
	}
}

func TestSession_Page(t *testing.T) {
	result := buildTestResult(true)
	result.Records[0].Explanation = "<b>bold</b>"
	session := NewSession(result, nil)

	page := session.Page("Lease <review>")

	expected := []string{
		"<title>Lease &lt;review&gt;</title>",
		`id="risk-detail"`,
		"Risks (1 high, 1 medium, 1 low)",
		"(not located in document)",
		"&lt;b&gt;bold&lt;/b&gt;",
		`<mark id="risk-1" class="risk risk-medium active"`,
		`var initial = "1";`,
	}
	for _, fragment := range expected {
		if !strings.Contains(page, fragment) {
			t.Errorf("Expected page to contain %q", fragment)
		}
	}
	if strings.Contains(page, "<b>bold</b>") {
		t.Error("Expected explanation to be escaped")
	}
}

func TestSession_PageFallbackBanner(t *testing.T) {
	page := NewSession(buildTestResult(false), nil).Page("Lease")

	if !strings.Contains(page, MissingFullTextBanner) {
		t.Error("Expected missing text banner on the page")
	}
	if strings.Contains(page, "(not located in document)") {
		t.Error("Expected no unmatched markers in fallback mode")
	}
}

func TestSession_PageScrollsToSelection(t *testing.T) {
	session := NewSession(buildTestResult(true), nil)
	session.SelectRisk(2)
	if page := session.Page("Lease"); !strings.Contains(page, `var initial = "2";`) {
		t.Error("Expected the page to bring the selected risk into view on load")
	}

	session.ClearSelection()
	if page := session.Page("Lease"); !strings.Contains(page, `var initial = "0";`) {
		t.Error("Expected no initial selection after clearing")
	}
}
