// generate_study writes a synthetic responses export for exercising the
// analysis end to end. The output is not real study data.
package main

import (
	"bytes"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ahrav/go-qra/internal/testutils"
)

func main() {
	defaults := testutils.DefaultStudyOptions()
	var (
		participants = flag.Int("participants", defaults.Participants, "Number of participants")
		trials       = flag.Int("trials", defaults.TrialsPerParticipant, "Candidate comparisons per participant")
		items        = flag.Int("items", defaults.ItemsPerSet, "Items per dataset")
		datasets     = flag.String("datasets", strings.Join(defaults.Datasets, ","), "Comma-separated dataset names")
		checkRate    = flag.Float64("check-rate", defaults.CheckRate, "Probability that a participant sees attention checks")
		failRate     = flag.Float64("fail-rate", defaults.FailRate, "Probability that a checked participant picks the distractor")
		seed         = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		outputPath   = flag.String("output", "testdata/responses.csv", "Output file path")
	)
	flag.Parse()

	opts := testutils.StudyOptions{
		Participants:         *participants,
		Datasets:             strings.Split(*datasets, ","),
		ItemsPerSet:          *items,
		TrialsPerParticipant: *trials,
		CheckRate:            *checkRate,
		FailRate:             *failRate,
	}
	study := testutils.GenerateStudy(opts, *seed)

	var buf bytes.Buffer
	if err := testutils.WriteResponsesCSV(&buf, testutils.StudyPayloads(study)); err != nil {
		log.Fatalf("Failed to render responses: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := os.WriteFile(*outputPath, buf.Bytes(), 0o600); err != nil {
		log.Fatalf("Failed to write responses: %v", err)
	}

	log.Printf("Wrote %d judgments from %d participants to %s (seed %d)", len(study), opts.Participants, *outputPath, *seed)
}
