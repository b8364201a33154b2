package query

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Section headers rendered into the generation prompt.
var sectionHeaders = map[Source]string{
	SourceRetrieval: "=== Document context ===",
	SourceCaseLaw:   "=== Case law ===",
}

// merge concatenates successful source results into a composed context.
// Order is driven by the fixed source priority, never by completion
// order, so output is reproducible for the same set of successful
// sources. Within a source, passages are ordered by relevance score.
// Passages are deduplicated by content hash across sources and the
// whole context is truncated to the maxChars budget.
func merge(results []SourceResult, maxChars int) ComposedContext {
	bySource := make(map[Source]SourceResult, len(results))
	for _, res := range results {
		bySource[res.Source] = res
	}

	seen := make(map[uint64]struct{})
	composed := ComposedContext{}

	for _, src := range sourcePriority {
		res, ok := bySource[src]
		if !ok {
			continue
		}

		passages := make([]Passage, len(res.Passages))
		copy(passages, res.Passages)
		sort.SliceStable(passages, func(i, j int) bool {
			return passages[i].Score > passages[j].Score
		})

		section := Section{Source: src, Header: sectionHeaders[src]}
		for _, p := range passages {
			h := contentHash(p.Content)
			if _, dup := seen[h]; dup {
				continue
			}
			if composed.Chars+len(p.Content) > maxChars {
				// Budget exhausted; everything after this point would
				// reorder content, so stop entirely.
				if len(section.Passages) > 0 {
					composed.Sections = append(composed.Sections, section)
				}
				return composed
			}
			seen[h] = struct{}{}
			section.Passages = append(section.Passages, p)
			composed.Chars += len(p.Content)
		}

		if len(section.Passages) > 0 {
			composed.Sections = append(composed.Sections, section)
		}
	}

	return composed
}

// contentHash returns a stable hash of normalized passage content for
// deduplication.
func contentHash(content string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(content))))
	return h.Sum64()
}

// Render formats the composed context for inclusion in the generation
// prompt.
func (c ComposedContext) Render() string {
	if c.Empty() {
		return ""
	}

	var b strings.Builder
	for i, sec := range c.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sec.Header)
		for n, p := range sec.Passages {
			b.WriteString("\n")
			if p.Title != "" {
				fmt.Fprintf(&b, "%d. %s\n   %s", n+1, p.Title, p.Content)
			} else {
				fmt.Fprintf(&b, "%d. %s", n+1, p.Content)
			}
		}
	}
	return b.String()
}
