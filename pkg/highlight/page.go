package highlight

import (
	"fmt"
	"strings"

	"github.com/coolbeans/clausemark/pkg/risk"
)

// Page renders a self-contained HTML page with the document view, the risk
// side list and a small script that binds one delegated click handler.
func (s *Session) Page(title string) string {
	var htmlBuilder strings.Builder

	htmlBuilder.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	htmlBuilder.WriteString("<meta charset=\"UTF-8\">\n")
	htmlBuilder.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	htmlBuilder.WriteString(fmt.Sprintf("<title>%s</title>\n", Escape(title)))
	htmlBuilder.WriteString(pageStyles(s.classPrefix))
	htmlBuilder.WriteString("</head>\n<body>\n")

	htmlBuilder.WriteString("<div class=\"container\">\n")
	htmlBuilder.WriteString(fmt.Sprintf("<h1>%s</h1>\n", Escape(title)))

	if summary := s.result.Summary; summary != "" {
		htmlBuilder.WriteString(fmt.Sprintf("<p class=\"summary\">%s</p>\n", Escape(summary)))
	}
	if banner := s.Banner(); banner != "" {
		htmlBuilder.WriteString(fmt.Sprintf("<div class=\"banner\" role=\"status\">%s</div>\n", Escape(banner)))
	}

	htmlBuilder.WriteString("<div class=\"layout\">\n")
	htmlBuilder.WriteString("<div class=\"document\">\n")
	htmlBuilder.WriteString(s.HTML())
	htmlBuilder.WriteString("\n</div>\n")

	htmlBuilder.WriteString(fmt.Sprintf("<aside id=\"%s\" class=\"panel\">\n", DetailPanelID))
	counts := risk.CountByLevel(s.result.Records)
	htmlBuilder.WriteString(fmt.Sprintf("<h2>Risks (%d high, %d medium, %d low)</h2>\n",
		counts[risk.LevelHigh], counts[risk.LevelMedium], counts[risk.LevelLow]))
	htmlBuilder.WriteString("<ul>\n")
	for _, entry := range s.VisibleRisks() {
		itemClass := "entry " + Escape(s.classPrefix) + "-" + Escape(string(entry.Level))
		if entry.Active {
			itemClass += " active"
		}
		htmlBuilder.WriteString(fmt.Sprintf("<li class=\"%s\" data-risk-id=\"%d\">\n", itemClass, entry.ID))
		htmlBuilder.WriteString(fmt.Sprintf("<strong>%s</strong>", Escape(strings.ToUpper(string(entry.Level)))))
		if !s.Fallback() && !entry.Matched {
			htmlBuilder.WriteString(" <em>(not located in document)</em>")
		}
		htmlBuilder.WriteString(fmt.Sprintf("\n<blockquote>%s</blockquote>\n", Escape(entry.Text)))
		htmlBuilder.WriteString(fmt.Sprintf("<p>%s</p>\n", Escape(entry.Explanation)))
		htmlBuilder.WriteString(fmt.Sprintf("<p class=\"recommendation\">%s</p>\n", Escape(entry.Recommendation)))
		htmlBuilder.WriteString("</li>\n")
	}
	htmlBuilder.WriteString("</ul>\n</aside>\n</div>\n</div>\n")

	htmlBuilder.WriteString(pageScript(s.Active(), s.narrowWidth, s.panelDelay.Milliseconds()))
	htmlBuilder.WriteString("</body>\n</html>\n")

	return htmlBuilder.String()
}

func pageStyles(classPrefix string) string {
	prefix := Escape(classPrefix)
	return fmt.Sprintf(`<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 0; background: #f6f7f9; color: #222; }
.container { max-width: 1200px; margin: 0 auto; padding: 24px; }
.banner { background: #eef4ff; border: 1px solid #b6ccf5; padding: 8px 12px; border-radius: 4px; margin-bottom: 16px; }
.layout { display: flex; gap: 24px; }
.document { flex: 2; white-space: pre-wrap; background: #fff; padding: 16px; border-radius: 4px; line-height: 1.6; }
.panel { flex: 1; background: #fff; padding: 16px; border-radius: 4px; }
.panel ul { list-style: none; padding: 0; }
.entry { border-left: 4px solid #ccc; padding: 4px 8px; margin-bottom: 12px; cursor: pointer; }
.entry.active { background: #fffbe6; }
.%[1]s, .%[1]s-block { cursor: pointer; border-radius: 2px; }
.%[1]s-block { display: block; margin-bottom: 8px; padding: 8px; background: #fff; }
.%[1]s-high { background-color: #fde2e1; border-color: #e5534b; }
.%[1]s-medium { background-color: #fff1d6; border-color: #d4a72c; }
.%[1]s-low { background-color: #e6f4ea; border-color: #57ab5a; }
.%[1]s.active, .%[1]s-block.active { outline: 2px solid #0969da; }
@media (max-width: 767px) { .layout { flex-direction: column; } }
</style>
`, prefix)
}

func pageScript(activeID, narrowWidth int, panelDelayMillis int64) string {
	return fmt.Sprintf(`<script>
(function () {
  function select(id) {
    document.querySelectorAll("[data-risk-id]").forEach(function (el) {
      el.classList.toggle("active", el.getAttribute("data-risk-id") === id);
    });
    var target = document.getElementById("risk-" + id);
    if (target) { target.scrollIntoView({ behavior: "smooth", block: "center" }); }
    if (window.innerWidth < %d) {
      setTimeout(function () {
        var panel = document.getElementById("%s");
        if (panel) { panel.scrollIntoView({ behavior: "smooth", block: "start" }); }
      }, %d);
    }
  }
  document.addEventListener("click", function (event) {
    var el = event.target.closest("[data-risk-id]");
    if (el) { select(el.getAttribute("data-risk-id")); }
  });
  var initial = "%d";
  if (initial !== "0") { select(initial); }
})();
</script>
`, narrowWidth, DetailPanelID, panelDelayMillis, activeID)
}
