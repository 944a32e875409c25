package triage

import (
	"fmt"
	"strings"

	"github.com/v0xg/surveydriver/internal/scenario"
)

// maxConsoleLines bounds how much of the console goes into a prompt
const maxConsoleLines = 40

const systemPrompt = `You triage failures of an automated browser test of the CLDR Survey Tool, a web application where translators vote on locale data.

The test logs in, opens a locale and page, waits for the page to load, and then clicks vote buttons in table rows. The table is rebuilt asynchronously after server responses, so element lookups may hit stale or missing nodes; those are retried a few times before the test gives up.

You will receive the failing scenario, the URL, the phase it failed in, the targeted row/cell/tag, the error chain and the tail of the browser console.

Reply in Markdown with:
- "Likely cause": one or two sentences
- "Evidence": the lines of the error or console that support it
- "Next step": what a developer should check first

Be brief. Do not speculate beyond the evidence.`

// buildPrompt renders an incident for the model
func buildPrompt(inc scenario.Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", inc.Scenario)
	fmt.Fprintf(&b, "URL: %s\n", inc.URL)
	fmt.Fprintf(&b, "Iteration: %d\n", inc.Iteration)
	fmt.Fprintf(&b, "Phase: %s\n", inc.State)
	if inc.Target != nil {
		fmt.Fprintf(&b, "Target (row,cell,tag): %s\n", inc.Target)
	}
	fmt.Fprintf(&b, "Error: %v\n", inc.Err)

	console := inc.Console
	if len(console) > maxConsoleLines {
		console = console[len(console)-maxConsoleLines:]
	}
	if len(console) > 0 {
		b.WriteString("\nBrowser console (most recent last):\n")
		for _, e := range console {
			b.WriteString(e.String() + "\n")
		}
	}
	return b.String()
}
