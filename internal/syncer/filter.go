package syncer

import (
	"fmt"
	"regexp"

	"hscsupdater/internal/roster"
)

// Filter decides which clients may enter the roster.
type Filter struct {
	synthetic *regexp.Regexp
}

// NewFilter compiles pattern, which matches the names of bot/AI clients.
// An empty pattern excludes nobody by name.
func NewFilter(pattern string) (Filter, error) {
	if pattern == "" {
		return Filter{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Filter{}, fmt.Errorf("compile synthetic client pattern: %w", err)
	}
	return Filter{synthetic: re}, nil
}

// Admit reports whether c has an identity and is not a synthetic client.
func (f Filter) Admit(c roster.Client) bool {
	if c.SteamID == "" {
		return false
	}
	return f.synthetic == nil || !f.synthetic.MatchString(c.Name)
}

func (f Filter) apply(clients []roster.Client) []roster.Client {
	out := clients[:0:0]
	for _, c := range clients {
		if f.Admit(c) {
			out = append(out, c)
		}
	}
	return out
}
