package gloss

import "github.com/ayusman/voiceheard/internal/vocab"

// Reorder applies the rule set to words tagged with tags. Scanning left to
// right, the first rule matching at a position rewrites the run it covers
// and scanning resumes after it; unmatched words pass through unchanged.
// Rules that fail Validate are ignored.
func Reorder(words, tags []string, rules vocab.RuleSet) []string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		rule, ok := firstMatch(rules, tags, i)
		if !ok {
			out = append(out, words[i])
			i++
			continue
		}
		for _, pos := range rule.Output {
			out = append(out, words[i+pos])
		}
		i += len(rule.Pattern)
	}
	return out
}

func firstMatch(rules vocab.RuleSet, tags []string, i int) (vocab.Rule, bool) {
	for _, r := range rules.Rules {
		if r.Matches(tags, i) && r.Validate() == nil {
			return r, true
		}
	}
	return vocab.Rule{}, false
}
