package useragent

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// Strategy selects how the pool hands out agents
type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategyRoundRobin Strategy = "round-robin"
)

// DefaultAgents are desktop browser strings accepted by the marketplace
var DefaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:90.0) Gecko/20100101 Firefox/90.0",
}

// Pool rotates User-Agent strings across requests
type Pool struct {
	agents   []string
	strategy Strategy
	index    int
	mu       sync.Mutex
	intn     func(n int) int
}

// NewPool creates a pool over agents. Blank entries are dropped; an empty
// list falls back to DefaultAgents.
func NewPool(agents []string, strategy Strategy) *Pool {
	cleaned := make([]string, 0, len(agents))
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			cleaned = append(cleaned, a)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultAgents...)
	}
	if strategy == "" {
		strategy = StrategyRandom
	}

	return &Pool{
		agents:   cleaned,
		strategy: strategy,
		intn:     rand.IntN,
	}
}

// Pick returns the agent for the next request
func (p *Pool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.strategy == StrategyRoundRobin {
		agent := p.agents[p.index]
		p.index = (p.index + 1) % len(p.agents)
		return agent
	}
	return p.agents[p.intn(len(p.agents))]
}

// Len returns the number of agents in the pool
func (p *Pool) Len() int {
	return len(p.agents)
}
