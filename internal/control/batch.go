package control

import "golang.org/x/sync/errgroup"

// newGroup returns an errgroup bounded to limit goroutines (unbounded if
// limit <= 0).
func newGroup(limit int) *errgroup.Group {
	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return g
}

// Summary aggregates a batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Fallbacks int `json:"fallbacks"`
}

// Summarize counts outcomes in results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		if r.FallbackUsed {
			s.Fallbacks++
		}
	}
	return s
}
