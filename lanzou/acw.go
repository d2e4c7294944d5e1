package lanzou

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"lanzoufetch/internal"
)

const (
	// ChallengeCookie is the anti-bot cookie the mirrors expect
	ChallengeCookie = "acw_sc__v2"
)

var arg1Pattern = regexp.MustCompile(`arg1='(.*?)'`)

// ChallengeSolver computes the acw_sc__v2 cookie from a page's arg1 token
type ChallengeSolver struct {
	positions []int
	mask      string
}

// NewChallengeSolver creates a solver from the configured permutation and mask
func NewChallengeSolver(cfg *internal.Config) *ChallengeSolver {
	return &ChallengeSolver{
		positions: cfg.ChallengePositions,
		mask:      cfg.ChallengeMask,
	}
}

// HasChallenge reports whether body carries the anti-bot challenge
func HasChallenge(body string) bool {
	return strings.Contains(body, ChallengeCookie)
}

// ExtractChallenge returns the arg1 token, or "" when the page has none
func ExtractChallenge(body string) string {
	m := arg1Pattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Solve permutes arg1 by the position table and XORs it with the mask.
// The character at 1-based position p lands in slot j where positions[j] == p;
// characters without a slot are dropped. Hex pairs are combined over the
// shorter of the two strings; a trailing single digit is combined on its own.
func (s *ChallengeSolver) Solve(arg1 string) string {
	slots := make([]string, len(s.positions))
	for i, ch := range []rune(arg1) {
		for j, p := range s.positions {
			if p == i+1 {
				slots[j] = string(ch)
			}
		}
	}
	arg2 := strings.Join(slots, "")

	length := len(arg2)
	if len(s.mask) < length {
		length = len(s.mask)
	}

	var b strings.Builder
	for i := 0; i < length; i += 2 {
		b.WriteString(fmt.Sprintf("%02x", hexPair(arg2[i:min(i+2, len(arg2))])^hexPair(s.mask[i:min(i+2, len(s.mask))])))
	}
	return b.String()
}

// hexPair parses the leading hex digits of s, stopping at the first
// non-hex character. No leading hex digit counts as zero.
func hexPair(s string) uint64 {
	end := 0
	for end < len(s) && isHexDigit(s[end]) {
		end++
	}
	if end == 0 {
		return 0
	}
	v, _ := strconv.ParseUint(s[:end], 16, 8)
	return v
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
