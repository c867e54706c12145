package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// EvaluateAnswer judges a raw submission against the challenge's stored
// answer specification. The submission is trimmed of surrounding whitespace
// first; matching is case-sensitive throughout.
//
// Three shapes, decided by which stored fields are non-empty:
//   - prefix and pattern: the full input must match ^<quoted-prefix><pattern>$
//   - pattern only:       the full input must match ^<pattern>$
//   - prefix only:        the input must start with the literal prefix
//
// A challenge with neither configured fails with ErrNoAnswerConfigured; a
// pattern that does not compile fails with ErrMalformedPattern. An empty
// submission is simply incorrect, not a fault.
func EvaluateAnswer(ch Challenge, rawAnswer string) (bool, error) {
	prefix := strings.TrimSpace(ch.MustInclude)
	pattern := ch.Answer

	if prefix == "" && pattern == "" {
		return false, fmt.Errorf("challenge %d: %w", ch.ID, ErrNoAnswerConfigured)
	}

	input := strings.TrimSpace(rawAnswer)
	if input == "" {
		return false, nil
	}

	switch {
	case prefix != "" && pattern != "":
		re, err := regexp.Compile("^" + regexp.QuoteMeta(prefix) + pattern + "$")
		if err != nil {
			return false, fmt.Errorf("challenge %d: %w: %v", ch.ID, ErrMalformedPattern, err)
		}
		return re.MatchString(input), nil
	case pattern != "":
		re, err := regexp.Compile("^" + pattern + "$")
		if err != nil {
			return false, fmt.Errorf("challenge %d: %w: %v", ch.ID, ErrMalformedPattern, err)
		}
		return re.MatchString(input), nil
	default:
		// Prefix without a pattern is the loose rule: any submission that
		// starts with the literal counts.
		return strings.HasPrefix(input, prefix), nil
	}
}
