package cmd

import (
	"fmt"
	"sort"
	"strings"
)

// formatTokenCounts renders token counts as "tok=n" pairs, most frequent first.
func formatTokenCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = fmt.Sprintf("%s=%d", tok, counts[tok])
	}
	return strings.Join(parts, " ")
}

// maskKey shows only the last four characters of an API key.
func maskKey(k string) string {
	if len(k) <= 4 {
		return "****"
	}
	return "****" + k[len(k)-4:]
}
