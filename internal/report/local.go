package report

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/eternisai/agentic-research/models"
)

const (
	sentencesPerSource = 3
	maxSentenceRunes   = 320
	minSentenceRunes   = 30
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "by": true,
	"for": true, "from": true, "how": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "what": true, "with": true, "like": true, "about": true,
}

// Summarize builds an extractive markdown report. Sentences are ranked by overlap with the prompt terms.
func Summarize(prompt string, pages []models.PageInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research report: %s\n\n", strings.TrimSpace(prompt))

	if len(pages) == 0 {
		sb.WriteString("No sources could be crawled for this prompt, so no findings are available.\n")
		return sb.String()
	}

	terms := tokenize(prompt)

	sb.WriteString("## Overview\n\n")
	fmt.Fprintf(&sb, "This report summarizes %d source(s) related to the prompt.\n\n", len(pages))

	sb.WriteString("## Key findings\n\n")
	for i, p := range pages {
		top := topSentences(p.Text, terms, sentencesPerSource)
		if len(top) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### [%d] %s\n\n", i+1, titleOrURL(p))
		for _, s := range top {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Sources\n\n")
	for i, p := range pages {
		fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, titleOrURL(p), p.URL)
	}
	return sb.String()
}

type scored struct {
	text  string
	score int
	pos   int
}

// topSentences returns up to n sentences with the best term overlap, in text order.
func topSentences(text string, terms map[string]bool, n int) []string {
	var candidates []scored
	for i, s := range splitSentences(text) {
		if len([]rune(s)) < minSentenceRunes {
			continue
		}
		score := 0
		for w := range tokenize(s) {
			if terms[w] {
				score++
			}
		}
		candidates = append(candidates, scored{text: s, score: score, pos: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].pos < candidates[j].pos
	})

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		s := c.text
		if r := []rune(s); len(r) > maxSentenceRunes {
			s = strings.TrimSpace(string(r[:maxSentenceRunes])) + "..."
		}
		out = append(out, s)
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func tokenize(s string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) < 2 || stopWords[w] {
			continue
		}
		out[w] = true
	}
	return out
}
