package engagements

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
)

const (
	generatedUserPool = 100
	generatedWindow   = 30 * 24 * time.Hour
)

var samplePages = []string{"/home", "/pricing", "/blog", "/docs", "/signup"}

// Generator produces synthetic engagement batches when no upload or live source is available.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator seeds a deterministic generator. now defaults to time.Now.
func NewGenerator(seed uint64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now,
	}
}

// Generate returns n records with ids 1..n spread over the trailing 30 days, newest first.
func (g *Generator) Generate(n int) []Record {
	if n <= 0 {
		return []Record{}
	}
	types := enums.EngagementTypes()
	sources := enums.EngagementSources()

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	step := generatedWindow / time.Duration(n)
	out := make([]Record, n)
	for i := range out {
		jitter := time.Duration(g.rnd.Int64N(int64(step) + 1))
		out[i] = Record{
			ID:        int64(i + 1),
			Type:      types[g.rnd.IntN(len(types))],
			Source:    sources[g.rnd.IntN(len(sources))],
			UserID:    fmt.Sprintf("user_%d", g.rnd.IntN(generatedUserPool)+1),
			Score:     math.Round(g.rnd.Float64()*10000) / 100,
			Timestamp: now.Add(-time.Duration(i)*step - jitter).Truncate(time.Second),
			Metadata: map[string]any{
				"sessionDuration": g.rnd.IntN(600) + 5,
				"page":            samplePages[g.rnd.IntN(len(samplePages))],
			},
		}
	}
	return out
}

// RandomID returns a positive id for rows that arrive without one.
func (g *Generator) RandomID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Int64N(1_000_000) + 1
}
