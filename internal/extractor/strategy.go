package extractor

import "github.com/ramkansal/capwatch/pkg/plugin"

// StrategyFunc inspects a page and returns a result, or nil when it found
// nothing and the next strategy should be tried.
type StrategyFunc func(p *Page) *plugin.CapacityResult

// Strategy is a named extraction heuristic.
type Strategy struct {
	Name string
	Run  StrategyFunc
}

// Chain is an ordered list of strategies; the first non-nil result wins.
type Chain []Strategy

// Run tries each strategy in order. It returns the winning result and the
// name of the strategy that produced it, or nil and "".
func (c Chain) Run(p *Page) (*plugin.CapacityResult, string) {
	for _, s := range c {
		if res := s.Run(p); res != nil {
			return res, s.Name
		}
	}
	return nil, ""
}

// Names returns the strategy names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}

func found(r plugin.CapacityResult) *plugin.CapacityResult { return &r }
