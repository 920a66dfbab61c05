package loadgen

import (
	"strconv"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/codegolf/internal/domain/model"
)

// Planned is one submission the runner will post.
type Planned struct {
	ChallengeID int
	Request     SubmitRequest
	Replay      bool
}

// Generator produces reproducible handles and code from a seed.
type Generator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(uint64(seed)), seed: seed}
}

// Seed returns the generator's seed.
func (g *Generator) Seed() int64 { return g.seed }

// Handles returns n distinct handles.
func (g *Generator) Handles(n int) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		h := g.faker.Username()
		if _, dup := seen[h]; dup {
			h += strconv.Itoa(len(out))
			if _, dup := seen[h]; dup {
				continue
			}
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Code returns ASCII code between minBytes and maxBytes long.
func (g *Generator) Code(minBytes, maxBytes int) string {
	return g.faker.LetterN(uint(g.faker.Number(minBytes, maxBytes)))
}

// Plan spreads n submissions from handles over challenges and appends
// replays copies of earlier submissions.
func (g *Generator) Plan(challenges []model.Challenge, handles []string, n, replays, minBytes, maxBytes int) []Planned {
	out := make([]Planned, 0, n+replays)
	for i := 0; i < n; i++ {
		ch := challenges[g.faker.Number(0, len(challenges)-1)]
		out = append(out, Planned{
			ChallengeID: ch.ID,
			Request: SubmitRequest{
				SubmissionID: g.faker.UUID(),
				Handle:       handles[g.faker.Number(0, len(handles)-1)],
				Code:         g.Code(minBytes, maxBytes),
			},
		})
	}
	for i := 0; i < replays && n > 0; i++ {
		p := out[g.faker.Number(0, n-1)]
		p.Replay = true
		out = append(out, p)
	}
	return out
}
