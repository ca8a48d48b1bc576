package extractor

import (
	"regexp"
	"strings"

	"github.com/utrscan/utrscan/internal/model"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// utrCandidates returns every run of exactly twelve digits in text, in order.
func utrCandidates(text string) []string {
	var out []string
	for _, run := range digitRun.FindAllString(text, -1) {
		if len(run) == model.UTRLength {
			out = append(out, run)
		}
	}
	return out
}

// chooseUTR reconciles the model's UTR with candidates found in the raw text.
// A candidate starting with 4 overrides a disagreeing model answer; otherwise
// the first candidate fills in a missing or malformed one.
func chooseUTR(modelUTR, rawText string) string {
	candidates := utrCandidates(rawText)
	if len(candidates) == 0 {
		return modelUTR
	}

	for _, c := range candidates {
		if strings.HasPrefix(c, "4") {
			return c
		}
	}

	if !model.IsValidUTR(modelUTR) {
		return candidates[0]
	}
	return modelUTR
}
