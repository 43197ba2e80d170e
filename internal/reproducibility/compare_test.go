package reproducibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-qra/internal/domain"
)

func TestCompare_TwoSystems(t *testing.T) {
	original := []domain.SystemScore{
		{System: domain.SystemLBOW, BestWorstScale: -5},
		{System: domain.SystemVAE, BestWorstScale: 10},
	}
	reproduced := []domain.SystemScore{
		{System: domain.SystemVAE, BestWorstScale: 12},
		{System: domain.SystemLBOW, BestWorstScale: -4},
	}

	first, err := Compare(original, reproduced, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []domain.System{domain.SystemVAE, domain.SystemLBOW}, first.Systems, "rows follow the fixed system order.")
	assert.Equal(t, []float64{10, -5}, first.Original)
	assert.Equal(t, []float64{12, -4}, first.Reproduced)
	assert.Equal(t, 100.0, first.Shift)
	assert.InDelta(t, 1.0, first.Pearson.Coefficient, 1e-12)

	require.Len(t, first.Precision, 2)
	assert.Equal(t, "vae", first.Precision[0].Measurand)
	assert.Equal(t, []float64{110, 112}, first.Precision[0].Values)
	assert.InDelta(t, 111.0, first.Precision[0].Mean, 1e-12)

	for range 5 {
		again, err := Compare(original, reproduced, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, first, again, "repeated runs must agree exactly.")
	}
}

func TestCompare_NoShiftForPositiveRange(t *testing.T) {
	opts := Options{RangeStart: 0, RangeEnd: 100}
	report, err := Compare(
		[]domain.SystemScore{{System: domain.SystemVAE, BestWorstScale: 40}, {System: domain.SystemDIPS, BestWorstScale: 60}, {System: domain.SystemSepAE, BestWorstScale: 20}},
		[]domain.SystemScore{{System: domain.SystemVAE, BestWorstScale: 42}, {System: domain.SystemDIPS, BestWorstScale: 55}, {System: domain.SystemSepAE, BestWorstScale: 30}},
		opts,
	)
	require.NoError(t, err)
	assert.Zero(t, report.Shift)
	assert.Equal(t, []domain.System{domain.SystemVAE, domain.SystemSepAE, domain.SystemDIPS}, report.Systems)
	assert.Equal(t, []float64{40, 42}, report.Precision[0].Values)
}

func TestCompare_Errors(t *testing.T) {
	vae := domain.SystemScore{System: domain.SystemVAE, BestWorstScale: 1}
	lbow := domain.SystemScore{System: domain.SystemLBOW, BestWorstScale: 2}

	tests := []struct {
		name       string
		original   []domain.SystemScore
		reproduced []domain.SystemScore
		opts       Options
		wantErr    error
	}{
		{
			name:       "missing system",
			original:   []domain.SystemScore{vae, lbow},
			reproduced: []domain.SystemScore{vae},
			opts:       DefaultOptions(),
		},
		{
			name:       "duplicate system",
			original:   []domain.SystemScore{vae, vae},
			reproduced: []domain.SystemScore{vae},
			opts:       DefaultOptions(),
		},
		{
			name:       "sentinel system",
			original:   []domain.SystemScore{{System: domain.SystemGold}},
			reproduced: []domain.SystemScore{vae},
			opts:       DefaultOptions(),
			wantErr:    domain.ErrUnknownSystem,
		},
		{
			name:       "non-positive mean without shift",
			original:   []domain.SystemScore{{System: domain.SystemVAE, BestWorstScale: -10}, lbow},
			reproduced: []domain.SystemScore{{System: domain.SystemVAE, BestWorstScale: -12}, {System: domain.SystemLBOW, BestWorstScale: 3}},
			opts:       Options{RangeStart: 0, RangeEnd: 100},
			wantErr:    domain.ErrInvalidSample,
		},
		{
			name:       "single system cannot be correlated",
			original:   []domain.SystemScore{vae},
			reproduced: []domain.SystemScore{vae},
			opts:       DefaultOptions(),
			wantErr:    domain.ErrInsufficientSample,
		},
		{
			name:       "inverted range",
			original:   []domain.SystemScore{vae, lbow},
			reproduced: []domain.SystemScore{vae, lbow},
			opts:       Options{RangeStart: 10, RangeEnd: -10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(tt.original, tt.reproduced, tt.opts)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
