package domain

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// System identifies one text-generation system shown to participants, or
// one of the reserved sentinels used to build attention checks.
// The zero value is SystemUnknown and never appears in a decoded Judgment.
type System uint8

// Candidate systems in their fixed presentation order, followed by the
// attention-check sentinels.
const (
	SystemUnknown System = iota
	SystemVAE
	SystemSepAE
	SystemLBOW
	SystemDIPS

	// SystemDistractor renders an unrelated output that an attentive
	// participant must never prefer.
	SystemDistractor
	// SystemGold renders the gold reference.
	SystemGold
	// SystemRawInput renders the raw input text.
	SystemRawInput
)

// NumCandidates is the size of the closed candidate enumeration.
// Per-system accumulators are arrays of this length indexed by System.Index.
const NumCandidates = 4

// CandidateSystems lists the candidates in reporting order.
var CandidateSystems = [NumCandidates]System{SystemVAE, SystemSepAE, SystemLBOW, SystemDIPS}

var systemNames = map[System]string{
	SystemVAE:        "vae",
	SystemSepAE:      "sep_ae",
	SystemLBOW:       "lbow",
	SystemDIPS:       "dips",
	SystemDistractor: "distractor",
	SystemGold:       "golds",
	SystemRawInput:   "inputs",
}

var systemsByName = func() map[string]System {
	m := make(map[string]System, len(systemNames))
	for s, name := range systemNames {
		m[name] = s
	}
	return m
}()

// String returns the canonical name used in payloads and reports.
func (s System) String() string {
	if name, ok := systemNames[s]; ok {
		return name
	}
	return fmt.Sprintf("system(%d)", uint8(s))
}

// IsCandidate reports whether s is one of the ranked systems.
func (s System) IsCandidate() bool { return s >= SystemVAE && s <= SystemDIPS }

// IsSentinel reports whether s is a distractor, gold, or raw-input sentinel.
func (s System) IsSentinel() bool { return s >= SystemDistractor && s <= SystemRawInput }

// Index returns the position of a candidate in CandidateSystems.
// It returns -1 for sentinels and unknown systems.
func (s System) Index() int {
	if !s.IsCandidate() {
		return -1
	}
	return int(s - SystemVAE)
}

// MarshalText encodes the system by name.
func (s System) MarshalText() ([]byte, error) {
	if s == SystemUnknown {
		return nil, fmt.Errorf("%w: cannot encode unknown system", ErrUnknownSystem)
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a system name.
func (s *System) UnmarshalText(text []byte) error {
	parsed, err := ParseSystem(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSystem resolves a system name. Matching ignores case and surrounding
// whitespace. Unknown names return ErrUnknownSystem with the closest known
// name as a hint.
func ParseSystem(name string) (System, error) {
	key := foldName(name)
	if s, ok := systemsByName[key]; ok {
		return s, nil
	}
	if hint := closestSystemName(key); hint != "" {
		return SystemUnknown, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownSystem, name, hint)
	}
	return SystemUnknown, fmt.Errorf("%w: %q", ErrUnknownSystem, name)
}

func foldName(name string) string {
	// A Caser carries state, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(name))
}

// closestSystemName returns the known name within edit distance 2 of name,
// or "" when nothing is close.
func closestSystemName(name string) string {
	const maxDistance = 2

	best := ""
	bestDistance := maxDistance + 1
	for _, s := range []System{
		SystemVAE, SystemSepAE, SystemLBOW, SystemDIPS,
		SystemDistractor, SystemGold, SystemRawInput,
	} {
		candidate := systemNames[s]
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}
