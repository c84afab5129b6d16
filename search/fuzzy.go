package search

import (
	"unicode"
)

// Score weights. A match is an ordered subsequence of the pattern inside the
// name, both lower-cased. The alignment is the leftmost occurrence tightened
// backwards from its last character, as fzf's v1 algorithm does.
const (
	scoreMatch        = 16
	bonusBoundary     = 8
	bonusFirstChar    = 8
	bonusConsecutive  = 4
	penaltyGapStart   = 3
	penaltyGapExtend  = 1
	penaltyLeading    = 1
	maxLeadingPenalty = 8
)

// Match reports whether pattern is a subsequence of name, ignoring case,
// and the score of the chosen alignment. An empty pattern matches with
// score 0.
func Match(pattern, name string) (int, bool) {
	if pattern == "" {
		return 0, true
	}
	return matchRunes(lowerRunes(pattern), []rune(name))
}

func lowerRunes(s string) []rune {
	rs := []rune(s)
	for i, r := range rs {
		rs[i] = unicode.ToLower(r)
	}
	return rs
}

// matchRunes scores an already lower-cased pattern against name.
func matchRunes(pattern, name []rune) (int, bool) {
	lower := make([]rune, len(name))
	for i, r := range name {
		lower[i] = unicode.ToLower(r)
	}
	return matchPrepared(pattern, name, lower)
}

// matchPrepared is matchRunes with the lower-cased name supplied by the
// caller. name and lower must have the same length.
func matchPrepared(pattern, name, lower []rune) (int, bool) {
	if len(pattern) == 0 {
		return 0, true
	}
	if len(pattern) > len(lower) {
		return 0, false
	}

	// Forward pass: leftmost end of a full match.
	pi := 0
	end := -1
	for i, r := range lower {
		if r == pattern[pi] {
			pi++
			if pi == len(pattern) {
				end = i
				break
			}
		}
	}
	if end < 0 {
		return 0, false
	}

	// Backward pass: the latest start that still matches, which gives the
	// tightest window ending at end.
	positions := make([]int, len(pattern))
	pi = len(pattern) - 1
	for i := end; i >= 0; i-- {
		if lower[i] == pattern[pi] {
			positions[pi] = i
			if pi == 0 {
				break
			}
			pi--
		}
	}

	return scorePositions(name, positions), true
}

func scorePositions(name []rune, positions []int) int {
	score := 0

	leading := positions[0]
	if leading > maxLeadingPenalty {
		leading = maxLeadingPenalty
	}
	score -= leading * penaltyLeading

	run := 0
	for k, pos := range positions {
		score += scoreMatch
		if isBoundary(name, pos) {
			score += bonusBoundary
		}
		if pos == 0 {
			score += bonusFirstChar
		}

		if k > 0 {
			gap := pos - positions[k-1] - 1
			if gap == 0 {
				run++
				score += bonusConsecutive * run
			} else {
				run = 0
				score -= penaltyGapStart + (gap-1)*penaltyGapExtend
			}
		}
	}
	return score
}

// isBoundary is true at the start of a name, after a separator, and at a
// lower-to-upper camel-case transition.
func isBoundary(name []rune, pos int) bool {
	if pos == 0 {
		return true
	}
	prev, cur := name[pos-1], name[pos]
	switch prev {
	case '_', '-', '.', ' ', '(', '[':
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(cur)
}
