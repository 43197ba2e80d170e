package agreement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/quality"
	"github.com/ahrav/go-qra/internal/testutils"
)

func TestFleissKappa(t *testing.T) {
	tests := []struct {
		name       string
		rows       [][2]int
		want       float64
		wantSingle int
		undefined  bool
	}{
		{name: "mixed agreement", rows: [][2]int{{2, 1}, {3, 0}}, want: -0.2},
		{name: "perfect agreement", rows: [][2]int{{2, 0}, {0, 2}}, want: 1},
		{name: "varying rater counts", rows: [][2]int{{2, 0}, {0, 3}, {1, 0}}, want: 1, wantSingle: 1},
		{name: "single category", rows: [][2]int{{3, 0}, {2, 0}}, undefined: true},
		{name: "only single raters", rows: [][2]int{{1, 0}, {0, 1}}, undefined: true, wantSingle: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m CategoryMatrix
			for _, r := range tt.rows {
				m.Rows = append(m.Rows, domain.CategoryRow{Counts: r})
			}

			got, single, err := FleissKappa(m)
			assert.Equal(t, tt.wantSingle, single)
			assert.Equal(t, FleissKappaName, got.Name)
			if tt.undefined {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrUndefinedAgreement)
				assert.False(t, got.Defined)
				assert.NotEmpty(t, got.Reason)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Defined)
			assert.InDelta(t, tt.want, got.Value, 1e-12)
		})
	}
}

func TestKrippendorffAlpha(t *testing.T) {
	tests := []struct {
		name      string
		in        []domain.Judgment
		want      float64
		undefined bool
	}{
		{
			name: "chance-level agreement",
			in: []domain.Judgment{
				on("u1", "p1", A), on("u1", "p2", A), on("u1", "p3", B),
				on("u2", "p1", A), on("u2", "p2", A), on("u2", "p3", A),
			},
			want: 0,
		},
		{
			name: "perfect agreement",
			in: []domain.Judgment{
				on("u1", "p1", A), on("u1", "p2", A),
				on("u2", "p1", B), on("u2", "p2", B),
			},
			want: 1,
		},
		{
			name: "missing values are skipped",
			in: []domain.Judgment{
				on("u1", "p1", A), on("u1", "p2", A),
				on("u2", "p1", B), on("u2", "p3", B),
				on("u3", "p2", A),
			},
			want: 1,
		},
		{
			name: "total disagreement",
			in: []domain.Judgment{
				on("u1", "p1", A), on("u1", "p2", B),
				on("u2", "p1", B), on("u2", "p2", A),
			},
			// o01 = o10 = 2, n = 4: 1 - 3*4/8.
			want: -0.5,
		},
		{
			name:      "single value domain",
			in:        []domain.Judgment{on("u1", "p1", A), on("u1", "p2", A)},
			undefined: true,
		},
		{
			name:      "no pairable unit",
			in:        []domain.Judgment{on("u1", "p1", A), on("u2", "p2", B)},
			undefined: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KrippendorffAlpha(NewReliabilityMatrix(tt.in))
			if tt.undefined {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrUndefinedAgreement)
				assert.False(t, got.Defined)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.Value, 1e-12)
		})
	}
}

func TestEstimate_Scenario(t *testing.T) {
	report, err := Estimate([]domain.Judgment{
		on("A", "p1", A), on("A", "p2", A), on("A", "p3", B),
		on("B", "p1", B), on("B", "p2", B), on("B", "p3", B),
	})
	require.NoError(t, err)

	assert.Equal(t, [2]int{2, 1}, report.Categories[0].Counts)
	assert.True(t, report.Fleiss.Defined)
	assert.True(t, report.Krippendorff.Defined)
	assert.Len(t, report.Reliability.Cells, 3)
}

func TestEstimate_UndefinedIsExplicit(t *testing.T) {
	report, err := Estimate([]domain.Judgment{on("A", "p1", A), on("A", "p2", A)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUndefinedAgreement)
	assert.False(t, report.Fleiss.Defined)
	assert.False(t, report.Krippendorff.Defined)
	assert.Zero(t, report.Fleiss.Value)
	assert.Len(t, report.Categories, 1, "matrices are still reported.")
}

func TestEstimate_InvalidSelection(t *testing.T) {
	_, err := Estimate([]domain.Judgment{on("A", "p1", domain.Selection(9))})
	assert.ErrorIs(t, err, domain.ErrMalformedSelection)
}

func TestEstimate_Bounded(t *testing.T) {
	opts := testutils.DefaultStudyOptions()
	opts.Participants = 30
	opts.ItemsPerSet = 2

	for seed := int64(1); seed <= 20; seed++ {
		res, err := quality.Filter(testutils.GenerateStudy(opts, seed))
		require.NoError(t, err)

		report, err := Estimate(res.Kept)
		require.NoError(t, err, "seed %d", seed)
		assert.GreaterOrEqual(t, report.Fleiss.Value, -1.0, "seed %d", seed)
		assert.LessOrEqual(t, report.Fleiss.Value, 1.0, "seed %d", seed)
		assert.GreaterOrEqual(t, report.Krippendorff.Value, -1.0, "seed %d", seed)
		assert.LessOrEqual(t, report.Krippendorff.Value, 1.0, "seed %d", seed)
	}
}
