package domain

// FilterReport records what the quality filter removed and why.
type FilterReport struct {
	// ExcludedParticipants selected the distractor at least once. Sorted.
	ExcludedParticipants []string `json:"excluded_participants"`

	// FailedTaskUUIDs lists the rendering instances in which the distractor
	// was selected, side-A failures first, each in encounter order.
	FailedTaskUUIDs []string `json:"failed_task_uuids"`

	// ParticipantsWithoutChecks counts participants who were never shown
	// an attention check. They are reported, not excluded.
	ParticipantsWithoutChecks int `json:"participants_without_checks"`

	Before             int `json:"before"`
	After              int `json:"after"`
	RemovedByExclusion int `json:"removed_by_exclusion"`
	RemovedAsChecks    int `json:"removed_as_checks"`
}

// TaskScoreRow holds the signed per-system scores of one task group.
type TaskScoreRow struct {
	Key    string             `json:"key"`
	Scores [NumCandidates]int `json:"scores"`
}

// TaskScoreTable is the per-task score table used for significance testing.
type TaskScoreTable struct {
	// GroupBy names the grouping key, "task_id" or "dataset_item".
	GroupBy string         `json:"group_by"`
	Rows    []TaskScoreRow `json:"rows"`

	// Appearances counts how often each candidate was shown on either side.
	Appearances [NumCandidates]int `json:"appearances"`
}

// Balanced reports whether every candidate appeared equally often.
func (t TaskScoreTable) Balanced() bool {
	for _, n := range t.Appearances[1:] {
		if n != t.Appearances[0] {
			return false
		}
	}
	return true
}

// Column returns the scores of one candidate across all rows.
func (t TaskScoreTable) Column(s System) []float64 {
	idx := s.Index()
	if idx < 0 {
		return nil
	}
	col := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = float64(row.Scores[idx])
	}
	return col
}

// SystemMetrics is one row of the whole-study metrics table.
type SystemMetrics struct {
	System         System `json:"system"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	BestWorstScore int    `json:"best_worst_score"`

	// BestWorstScale and WinPercentage are nil when the system never appeared.
	BestWorstScale *float64 `json:"best_worst_scale"`
	WinPercentage  *float64 `json:"win_percentage"`
}

// SignificanceResult is a one-way ANOVA across the candidate columns of a
// task score table.
type SignificanceResult struct {
	F          float64                `json:"f"`
	P          float64                `json:"p"`
	DFBetween  int                    `json:"df_between"`
	DFWithin   int                    `json:"df_within"`
	GroupMeans [NumCandidates]float64 `json:"group_means"`
	Defined    bool                   `json:"defined"`
	Reason     string                 `json:"reason,omitempty"`

	// Tukey holds the post-hoc pairwise comparisons. It is empty when the
	// ANOVA is undefined.
	Tukey []TukeyComparison `json:"tukey_hsd,omitempty"`
}

// TukeyComparison is one pair of a Tukey HSD test. MeanDiff is the mean of
// SystemB minus the mean of SystemA; Lower and Upper bound it at the
// family-wise confidence 1-Alpha.
type TukeyComparison struct {
	SystemA  System  `json:"group1"`
	SystemB  System  `json:"group2"`
	MeanDiff float64 `json:"meandiff"`
	P        float64 `json:"p_adj"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Alpha    float64 `json:"alpha"`
	Reject   bool    `json:"reject"`
}

// Coefficient is an agreement statistic that may be undefined.
// An undefined coefficient keeps Value at zero and sets Reason; consumers
// must check Defined rather than reading Value.
type Coefficient struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
	Reason  string  `json:"reason,omitempty"`
}

// CategoryRow counts the outcomes recorded for one task.
type CategoryRow struct {
	TaskID string `json:"task_id"`
	Counts [2]int `json:"counts"`
}

// MissingCell marks an unobserved cell in a ReliabilityTable.
const MissingCell int8 = -1

// ReliabilityTable is the dense participant-by-task rendering of the
// reliability matrix. Cells hold 0, 1 or MissingCell.
type ReliabilityTable struct {
	Participants []string `json:"participants"`
	Tasks        []string `json:"tasks"`
	Cells        [][]int8 `json:"cells"`
}

// AgreementReport carries both agreement coefficients and their matrices.
type AgreementReport struct {
	Fleiss       Coefficient      `json:"fleiss_kappa"`
	Krippendorff Coefficient      `json:"krippendorff_alpha"`
	Categories   []CategoryRow    `json:"categories"`
	Reliability  ReliabilityTable `json:"reliability"`

	// SingleRaterItems counts tasks judged only once.
	SingleRaterItems int `json:"single_rater_items"`

	// DuplicateRatings counts repeated (participant, task) judgments that
	// the reliability matrix dropped because the first occurrence wins.
	DuplicateRatings int `json:"duplicate_ratings"`
}

// PrecisionResult summarises a small sample of measurements of one measurand.
type PrecisionResult struct {
	Measurand  string    `json:"measurand"`
	Values     []float64 `json:"values"`
	SampleSize int       `json:"sample_size"`
	Mean       float64   `json:"mean"`

	// StdDev is the c4-corrected sample standard deviation.
	StdDev float64 `json:"stdev"`

	// CILower and CIUpper bound StdDev at Confidence.
	CILower    float64 `json:"stdev_ci_lower"`
	CIUpper    float64 `json:"stdev_ci_upper"`
	Confidence float64 `json:"confidence"`

	// CV is StdDev/Mean*100 before the small-sample factor; CVStar after it.
	CV     float64 `json:"cv"`
	CVStar float64 `json:"cv_star"`

	WithinOneSD float64 `json:"within_one_sd_pct"`
	WithinTwoSD float64 `json:"within_two_sd_pct"`
}

// SystemScore is one row of a published or reproduced score table.
type SystemScore struct {
	System         System  `json:"system"`
	BestWorstScale float64 `json:"best_worst_scale"`
}

// CorrelationResult holds a correlation coefficient with its two-sided p-value.
type CorrelationResult struct {
	Method      string  `json:"method"`
	Coefficient float64 `json:"coefficient"`
	P           float64 `json:"p"`
	N           int     `json:"n"`
}

// ReproducibilityReport compares the reproduced scores with the original ones.
type ReproducibilityReport struct {
	Original   []float64         `json:"original"`
	Reproduced []float64         `json:"reproduced"`
	Systems    []System          `json:"systems"`
	Precision  []PrecisionResult `json:"precision"`
	Pearson    CorrelationResult `json:"pearson"`
	Spearman   CorrelationResult `json:"spearman"`

	// Shift is the offset added to both score sets before computing CV*.
	Shift float64 `json:"shift"`
}

// DatasetUsage counts the distinct items used from one dataset.
type DatasetUsage struct {
	Dataset string `json:"dataset"`
	Items   int    `json:"items"`
}
