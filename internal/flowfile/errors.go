package flowfile

import (
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"
)

// UnknownKeyError reports a key no statement or option recognizes.
type UnknownKeyError struct {
	Scope      string // "test", "group", "document", ...
	Key        string
	Line       int
	Suggestion string // closest known key, empty when nothing is close
}

func (e *UnknownKeyError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("line %d: unknown %s key %q (did you mean %q?)",
			e.Line, e.Scope, e.Key, e.Suggestion)
	}
	return fmt.Sprintf("line %d: unknown %s key %q", e.Line, e.Scope, e.Key)
}

func unknownKey(scope string, key *yaml.Node, known []string) error {
	return &UnknownKeyError{
		Scope:      scope,
		Key:        key.Value,
		Line:       key.Line,
		Suggestion: closestKey(key.Value, known),
	}
}

// closestKey ranks the known keys by edit distance and returns the best
// match, if any.
func closestKey(key string, known []string) string {
	ranks := fuzzy.RankFindFold(key, known)
	if len(ranks) > 0 {
		return ranks[0].Target
	}
	return ""
}
