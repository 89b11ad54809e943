package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

const (
	minTruncatedRunes = 3
	// Aliases this short only match exactly: one edit turns "cable" into "calle"
	exactAliasRunes = 5
)

// Legal-form and filler words that banks print inconsistently
var ignoredTokens = map[string]bool{
	"S": true, "A": true, "SA": true, "SAS": true, "CIA": true, "LTDA": true,
	"C": true, "DE": true, "DEL": true, "LA": true, "EL": true, "Y": true,
}

// Normalize folds accents and case, turns punctuation into spaces and collapses whitespace.
// Example: "Comercial  Andina, S.A." -> "COMERCIAL ANDINA S A"
func Normalize(s string) string {
	folded := domain.Fold(s)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(cleaned), " ")
}

func significantTokens(normalized string) []string {
	var out []string
	for _, tok := range strings.Fields(normalized) {
		if !ignoredTokens[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// IsFake reports whether the verdict is confident enough to reject the receipt
func (r *Rules) IsFake(v domain.Verdict) bool {
	return v.Fake && v.Confidence > r.FakeConfidenceThreshold
}

// MatchBeneficiary checks the extracted beneficiary against the allow-list
// and returns the canonical name it matched. Names are compared word by word:
// the significant words must be the same set, or the name must be the entry
// cut off after its last significant word has started.
func (r *Rules) MatchBeneficiary(name string) (string, bool) {
	n := Normalize(name)
	if n == "" {
		return "", false
	}
	words := strings.Fields(n)
	got := significantTokens(n)

	for _, entry := range r.Beneficiaries {
		allowed := Normalize(entry)
		if allowed == "" {
			continue
		}
		want := significantTokens(allowed)
		if len(want) == 0 {
			continue
		}
		if sameTokens(got, want) || truncatedFrom(words, strings.Fields(allowed)) {
			return entry, true
		}
	}
	return "", false
}

func sameTokens(a, b []string) bool {
	if len(a) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[tok] = true
	}
	for _, tok := range b {
		if !set[tok] {
			return false
		}
		delete(set, tok)
	}
	return len(set) == 0
}

// truncatedFrom reports whether words is a word-aligned prefix of entry, as
// printed by receipts that cut long names. Every word but the last must be
// complete, the last may be cut after minTruncatedRunes, and the cut must not
// drop a significant word of the entry.
func truncatedFrom(words, entry []string) bool {
	if len(words) < 2 || len(words) > len(entry) {
		return false
	}
	last := len(words) - 1
	for i := 0; i < last; i++ {
		if words[i] != entry[i] {
			return false
		}
	}
	if words[last] != entry[last] {
		if utf8.RuneCountInString(words[last]) < minTruncatedRunes || !strings.HasPrefix(entry[last], words[last]) {
			return false
		}
	}
	for _, tok := range entry[last+1:] {
		if !ignoredTokens[tok] {
			return false
		}
	}
	return true
}

// MatchService looks for a catalog service mentioned by the customer,
// newest message first. It returns "" when nothing is close enough.
func (r *Rules) MatchService(history []domain.ChatMessage) string {
	seen := 0
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != "" && !strings.EqualFold(msg.Role, "user") {
			continue
		}
		if r.HistoryWindow > 0 && seen >= r.HistoryWindow {
			break
		}
		seen++

		words := strings.Fields(Normalize(msg.Content))
		if len(words) == 0 {
			continue
		}

		best, bestScore := "", 0.0
		for _, svc := range r.Services {
			for _, candidate := range append([]string{svc.Name}, svc.Aliases...) {
				if score := bestWindowScore(Normalize(candidate), words); score > bestScore {
					best, bestScore = svc.Name, score
				}
			}
		}
		if best != "" && bestScore >= r.ServiceMinScore {
			return best
		}
	}
	return ""
}

// bestWindowScore compares candidate with every run of words of the same length
func bestWindowScore(candidate string, words []string) float64 {
	size := len(strings.Fields(candidate))
	if size == 0 || size > len(words) {
		return 0
	}
	exact := utf8.RuneCountInString(candidate) <= exactAliasRunes
	best := 0.0
	for i := 0; i+size <= len(words); i++ {
		window := strings.Join(words[i:i+size], " ")
		if exact {
			if window == candidate {
				return 1
			}
			continue
		}
		if s := similarity(candidate, window); s > best {
			best = s
		}
	}
	return best
}

func similarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
