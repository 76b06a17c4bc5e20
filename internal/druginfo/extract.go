// Package druginfo extracts medicine names from prescription text and
// resolves their details through a generative model.
package druginfo

import (
	"regexp"
	"sort"
	"strings"
)

var drugSuffixes = []string{
	"mycin", "cillin", "pril", "zole", "dipine", "olol", "caine", "sartan", "mab", "nib",
	"statin", "formin", "prazole", "oxacin", "cycline", "vir", "azepam", "amine", "done",
}

var (
	suffixPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:` + strings.Join(drugSuffixes, "|") + `)\b`)
	dosagePattern = regexp.MustCompile(`\b([A-Z][a-z]+)\s+\d+(?:\.\d+)?\s?(?i:mg|mcg|ml|g|iu)\b`)
)

const minNameLength = 4

// stopWords are capitalized words that commonly precede a dose or happen to
// end in a drug suffix.
var stopWords = map[string]bool{
	"patient": true, "doctor": true, "date": true, "name": true, "age": true,
	"diagnosis": true, "prescription": true, "prescribed": true, "medications": true,
	"tablet": true, "tablets": true, "capsule": true, "capsules": true, "syrup": true,
	"injection": true, "dose": true, "dosage": true, "take": true, "daily": true,
	"morning": true, "night": true, "evening": true, "after": true, "before": true,
	"food": true, "meals": true, "with": true, "each": true, "total": true, "signature": true,
	"hospital": true, "clinic": true, "examine": true, "weight": true, "height": true,
}

type match struct {
	pos  int
	name string
}

// ExtractCandidates returns likely medicine names found in text, in order of
// first appearance with case-insensitive duplicates removed.
func ExtractCandidates(text string) []string {
	var hits []match
	for _, loc := range suffixPattern.FindAllStringIndex(text, -1) {
		hits = append(hits, match{pos: loc[0], name: text[loc[0]:loc[1]]})
	}
	for _, loc := range dosagePattern.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, match{pos: loc[2], name: text[loc[2]:loc[3]]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]bool, len(hits))
	var out []string
	for _, h := range hits {
		key := strings.ToLower(h.name)
		if len(h.name) < minNameLength || stopWords[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h.name)
	}
	return out
}

// NormalizeNames trims names and drops blanks and case-insensitive
// duplicates.
func NormalizeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
