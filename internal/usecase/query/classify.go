package query

import (
	"strings"
)

// Keyword cues for query classification. Matching is deterministic:
// lowercase substring containment, no scoring.
var (
	caseLawKeywords = []string{
		"court", "case", "ruling", "judgment", "precedent", "appeal",
		"statute", "law", "legislation", "code", "article", "legal",
		"litigation", "lawsuit", "verdict",
	}

	documentKeywords = []string{
		"contract", "agreement", "invoice", "receipt", "certificate",
		"document", "file", "archive", "clause", "attachment",
	}
)

// classify decides which sources apply to a query from keyword cues.
// If neither cue set matches, both sources are selected as the safe
// default — at least one source is always selected.
func classify(text string) (useRetrieval, useCaseLaw bool) {
	lower := strings.ToLower(text)

	for _, kw := range documentKeywords {
		if strings.Contains(lower, kw) {
			useRetrieval = true
			break
		}
	}
	for _, kw := range caseLawKeywords {
		if strings.Contains(lower, kw) {
			useCaseLaw = true
			break
		}
	}

	if !useRetrieval && !useCaseLaw {
		return true, true
	}
	return useRetrieval, useCaseLaw
}

// selectSources resolves the request's explicit source flags, falling
// back to classification for any flag left unset. The result is ordered
// by fixed source priority.
func selectSources(req Request) []Source {
	autoRetrieval, autoCaseLaw := classify(req.Text)

	useRetrieval := autoRetrieval
	if req.UseRetrieval != nil {
		useRetrieval = *req.UseRetrieval
	}
	useCaseLaw := autoCaseLaw
	if req.UseCaseLaw != nil {
		useCaseLaw = *req.UseCaseLaw
	}

	// Explicit flags can deselect everything; fall back to both rather
	// than dispatching nothing.
	if !useRetrieval && !useCaseLaw {
		useRetrieval = true
		useCaseLaw = true
	}

	var selected []Source
	for _, src := range sourcePriority {
		switch {
		case src == SourceRetrieval && useRetrieval:
			selected = append(selected, src)
		case src == SourceCaseLaw && useCaseLaw:
			selected = append(selected, src)
		}
	}
	return selected
}
