// Package testutils provides builders and seeded generators for judgment
// data. These helpers are intended for internal test suites only.
package testutils

import (
	"fmt"
	"math/rand"

	"github.com/ahrav/go-qra/internal/domain"
)

// StudyOptions controls GenerateStudy.
type StudyOptions struct {
	Participants int
	Datasets     []string
	ItemsPerSet  int

	// TrialsPerParticipant is the number of candidate comparisons each
	// participant makes, excluding attention checks.
	TrialsPerParticipant int

	// CheckRate is the probability that a participant receives one
	// attention check of each sentinel kind.
	CheckRate float64

	// FailRate is the probability that a participant who sees a distractor
	// picks it.
	FailRate float64
}

// DefaultStudyOptions returns a small, balanced study shape.
func DefaultStudyOptions() StudyOptions {
	return StudyOptions{
		Participants:         12,
		Datasets:             []string{"yelp", "amazon"},
		ItemsPerSet:          4,
		TrialsPerParticipant: 10,
		CheckRate:            0.8,
		FailRate:             0.2,
	}
}

// GenerateStudy creates a reproducible judgment set for property tests.
// The same seed and options always yield the same judgments.
func GenerateStudy(opts StudyOptions, seed int64) []domain.Judgment {
	rng := rand.New(rand.NewSource(seed))

	var out []domain.Judgment
	for p := range opts.Participants {
		pid := fmt.Sprintf("%s%d", domain.AnonymizedPrefix, p)
		uuid := fmt.Sprintf("task-uuid-%d", p)

		for range opts.TrialsPerParticipant {
			a, b := candidatePair(rng)
			out = append(out, NewJudgment(pid, pickDataset(rng, opts), rng.Intn(max(opts.ItemsPerSet, 1)), a, b,
				domain.Selection(rng.Intn(2)), WithTaskUUID(uuid)))
		}

		if rng.Float64() >= opts.CheckRate {
			continue
		}
		ds, ix := pickDataset(rng, opts), rng.Intn(max(opts.ItemsPerSet, 1))
		cand := domain.CandidateSystems[rng.Intn(domain.NumCandidates)]

		// The distractor trial: side and outcome depend on the fail draw.
		failed := rng.Float64() < opts.FailRate
		if rng.Intn(2) == 0 {
			sel := domain.SelectB
			if failed {
				sel = domain.SelectA
			}
			out = append(out, NewJudgment(pid, ds, ix, domain.SystemDistractor, cand, sel, WithTaskUUID(uuid)))
		} else {
			sel := domain.SelectA
			if failed {
				sel = domain.SelectB
			}
			out = append(out, NewJudgment(pid, ds, ix, cand, domain.SystemDistractor, sel, WithTaskUUID(uuid)))
		}
		out = append(out,
			NewJudgment(pid, ds, ix, domain.SystemGold, cand, domain.Selection(rng.Intn(2)), WithTaskUUID(uuid)),
			NewJudgment(pid, ds, ix, cand, domain.SystemRawInput, domain.Selection(rng.Intn(2)), WithTaskUUID(uuid)),
		)
	}
	return out
}

func candidatePair(rng *rand.Rand) (domain.System, domain.System) {
	i := rng.Intn(domain.NumCandidates)
	j := rng.Intn(domain.NumCandidates - 1)
	if j >= i {
		j++
	}
	return domain.CandidateSystems[i], domain.CandidateSystems[j]
}

func pickDataset(rng *rand.Rand, opts StudyOptions) string {
	if len(opts.Datasets) == 0 {
		return "dataset"
	}
	return opts.Datasets[rng.Intn(len(opts.Datasets))]
}
