package genai

import (
	"fmt"
	"strings"

	"github.com/harborintel/portcost/internal/domain/estimate"
)

// narrativeSystemPrompt pins the generator to a rendering role.  The numbers
// in the grounding block are authoritative; the model is never asked to
// compute, adjust, or extrapolate amounts.
const narrativeSystemPrompt = `You are a port agency assistant. You write short, factual summaries of
port-call cost estimates for shipping operators. Use ONLY the amounts given
in the structured data; never invent, recalculate, or round figures. Mention
the confidence level and any low-coverage caveats. Keep it under 180 words.`

// BuildNarrativePrompt renders the structured estimate as the grounding
// block of the generation prompt.  Line items appear in descending amount
// order so the prompt is deterministic for a given estimate.
func BuildNarrativePrompt(est *estimate.SynthesizedEstimate, supportingText string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Port: %s\n", est.Port)
	fmt.Fprintf(&b, "Mode: %s\n", est.Mode)
	if est.Vessel.Name != "" {
		fmt.Fprintf(&b, "Vessel: %s\n", est.Vessel.Name)
	}
	fmt.Fprintf(&b, "GRT: %.0f, LOA: %.1f m", est.Vessel.GRT, est.Vessel.LOA)
	if est.Vessel.Draft != nil {
		fmt.Fprintf(&b, ", draft: %.1f m", *est.Vessel.Draft)
	}
	if est.Vessel.IsShifting {
		b.WriteString(", shifting call")
	}
	b.WriteString("\n\nCost breakdown (" + est.Currency + "):\n")
	for _, item := range est.ItemsByAmount() {
		fmt.Fprintf(&b, "  %s: %.2f\n", item, est.Breakdown[item])
	}
	fmt.Fprintf(&b, "Total: %.2f %s\n", est.Total, est.Currency)
	fmt.Fprintf(&b, "Confidence: %.2f\n", est.Confidence)
	fmt.Fprintf(&b, "Based on %d historical port calls.\n", len(est.ContributingRecordIDs))
	if len(est.LowCoverageItems) > 0 {
		fmt.Fprintf(&b, "Low-coverage items (few supporting records): %s\n",
			strings.Join(est.LowCoverageItems, ", "))
	}
	if est.PortFallback {
		b.WriteString("Note: estimate draws on calls at other ports due to thin same-port history.\n")
	}
	if supportingText != "" {
		b.WriteString("\nSupporting context from source documents:\n")
		b.WriteString(supportingText)
		b.WriteString("\n")
	}
	b.WriteString("\nWrite the summary now.")
	return b.String()
}
