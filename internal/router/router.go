// Package router predicts which backend agent an "auto" request will reach.
//
// The backend routes auto requests by keyword scoring. The same table is
// kept here so the client can preview the choice before sending.
package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/raphaelgruber/analyst-go/internal/client"
)

// minScore is the normalized score under which routing falls back to data
// analysis.
const minScore = 0.05

type rule struct {
	kind     client.AgentKind
	keywords []string
}

// rules are evaluated in order; earlier rules win ties.
var rules = []rule{
	{client.AgentPPT, []string{
		"ppt", "powerpoint", "presentation", "slides", "slide deck",
		"create slides", "make slides", "generate ppt", "pptx",
	}},
	{client.AgentPDF, []string{
		"pdf", "report", "document", "pdf report", "generate report",
		"create report", "written report", "formal report",
	}},
	{client.AgentDashboard, []string{
		"dashboard", "interactive", "power bi", "tableau",
		"interactive view", "visual summary", "kpi", "metrics dashboard",
	}},
	{client.AgentDataAnalysis, []string{
		"graph", "chart", "plot", "visualiz", "analyze", "analysis",
		"bar chart", "line chart", "pie chart", "histogram", "scatter",
		"statistics", "insight", "trend", "correlation", "compare",
	}},
}

// shortWord caches word-boundary patterns for keywords of four characters
// or fewer, which would otherwise match inside longer words.
var shortWord = map[string]*regexp.Regexp{}

func init() {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if len(kw) <= 4 {
				shortWord[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			}
		}
	}
}

func matches(text, kw string) bool {
	if re, ok := shortWord[kw]; ok {
		return re.MatchString(text)
	}
	return strings.Contains(text, kw)
}

// Detect returns the agent the prompt routes to and a confidence in [0, 1].
func Detect(prompt string) (client.AgentKind, float64) {
	text := strings.ToLower(prompt)

	best := client.AgentDataAnalysis
	bestScore := -1.0
	for _, r := range rules {
		n := 0
		for _, kw := range r.keywords {
			if matches(text, kw) {
				n++
			}
		}
		score := float64(n) / float64(len(r.keywords))
		if score > bestScore {
			best, bestScore = r.kind, score
		}
	}

	if bestScore < minScore {
		return client.AgentDataAnalysis, 0.5
	}
	return best, min(1.0, bestScore*5)
}

// Resolve returns kind unless it is auto, in which case the predicted agent.
func Resolve(kind client.AgentKind, prompt string) client.AgentKind {
	if kind != client.AgentAuto && kind != "" {
		return kind
	}
	k, _ := Detect(prompt)
	return k
}

// Explain describes why Detect picked its agent.
func Explain(prompt string) string {
	kind, confidence := Detect(prompt)
	text := strings.ToLower(prompt)

	var matched []string
	for _, r := range rules {
		if r.kind != kind {
			continue
		}
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Selected: %s\n", kind.Label())
	fmt.Fprintf(&b, "Confidence: %.2f\n", confidence)
	if len(matched) > 0 {
		fmt.Fprintf(&b, "Matched keywords: %s", strings.Join(matched, ", "))
	} else {
		b.WriteString("No specific keywords matched - defaulting to data analysis")
	}
	return b.String()
}
