package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/testutils"
)

var (
	nj   = testutils.NewJudgment
	vae  = domain.SystemVAE
	lbow = domain.SystemLBOW
	dips = domain.SystemDIPS
	dis  = domain.SystemDistractor
	A    = domain.SelectA
	B    = domain.SelectB
)

func TestFailed(t *testing.T) {
	tests := []struct {
		name string
		j    domain.Judgment
		want bool
	}{
		{name: "distractor on A chosen", j: nj("p", "d", 0, dis, vae, A), want: true},
		{name: "distractor on A rejected", j: nj("p", "d", 0, dis, vae, B)},
		{name: "distractor on B chosen", j: nj("p", "d", 0, vae, dis, B), want: true},
		{name: "distractor on B rejected", j: nj("p", "d", 0, vae, dis, A)},
		{name: "gold is never a failure", j: nj("p", "d", 0, domain.SystemGold, vae, A)},
		{name: "plain trial", j: nj("p", "d", 0, vae, lbow, A)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Failed(tt.j))
		})
	}
}

func TestFilter_NoDistractor(t *testing.T) {
	in := []domain.Judgment{
		testutils.OnTask("A", "p1", A),
		testutils.OnTask("A", "p2", A),
		testutils.OnTask("A", "p3", B),
	}

	res, err := Filter(in)
	require.NoError(t, err)
	assert.Empty(t, res.Report.ExcludedParticipants)
	assert.Equal(t, in, res.Kept)
	assert.Equal(t, 3, res.Report.ParticipantsWithoutChecks)
}

func TestFilter_ExcludesEveryJudgmentOfFailingParticipant(t *testing.T) {
	in := []domain.Judgment{
		nj("P", "yelp", 1, vae, lbow, A),
		nj("P", "yelp", 2, dis, dips, A, testutils.WithTaskUUID("uuid-fail")),
		nj("P", "amazon", 3, dips, vae, B),
		nj("Q", "yelp", 1, vae, lbow, B),
		nj("Q", "yelp", 2, dis, dips, B),
	}
	snapshot := append([]domain.Judgment(nil), in...)

	res, err := Filter(in)
	require.NoError(t, err)

	assert.Equal(t, []string{"P"}, res.Report.ExcludedParticipants)
	assert.Equal(t, []string{"uuid-fail"}, res.Report.FailedTaskUUIDs)
	assert.Equal(t, []domain.Judgment{in[3]}, res.Kept)
	assert.Equal(t, 5, res.Report.Before)
	assert.Equal(t, 1, res.Report.After)
	assert.Equal(t, 3, res.Report.RemovedByExclusion)
	assert.Equal(t, 1, res.Report.RemovedAsChecks, "Q passed but the check trial itself is still removed.")
	assert.Equal(t, snapshot, in, "Filter must not modify its input.")
}

func TestFilter_FailedUUIDOrder(t *testing.T) {
	in := []domain.Judgment{
		nj("p1", "d", 0, vae, dis, B, testutils.WithTaskUUID("b-first")),
		nj("p2", "d", 0, dis, vae, A, testutils.WithTaskUUID("a-second")),
		nj("p3", "d", 0, dis, vae, A, testutils.WithTaskUUID("a-third")),
	}
	res, err := Filter(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-second", "a-third", "b-first"}, res.Report.FailedTaskUUIDs,
		"side-A failures are listed before side-B failures.")
	assert.Equal(t, []string{"p1", "p2", "p3"}, res.Report.ExcludedParticipants)
}

func TestFilter_ShownButNeverFailedIsKept(t *testing.T) {
	in := []domain.Judgment{
		nj("seen", "d", 0, domain.SystemRawInput, vae, A),
		nj("seen", "d", 1, vae, lbow, A),
		nj("unseen", "d", 1, vae, lbow, B),
	}
	res, err := Filter(in)
	require.NoError(t, err)
	assert.Empty(t, res.Report.ExcludedParticipants)
	assert.Len(t, res.Kept, 2)
	assert.Equal(t, 1, res.Report.ParticipantsWithoutChecks)
}

func TestFilter_ParticipantsWithoutChecksCountsEverySentinel(t *testing.T) {
	in := []domain.Judgment{
		nj("gold-only", "d", 0, domain.SystemGold, vae, B),
		nj("input-only", "d", 0, lbow, domain.SystemRawInput, A),
		nj("distractor", "d", 0, dis, dips, B),
		nj("none", "d", 1, vae, lbow, A),
		nj("none", "d", 2, lbow, dips, B),
	}
	res, err := Filter(in)
	require.NoError(t, err)
	assert.Empty(t, res.Report.ExcludedParticipants)
	assert.Equal(t, 1, res.Report.ParticipantsWithoutChecks, "only a participant with no sentinel trial at all is counted")
	assert.Equal(t, 3, res.Report.RemovedAsChecks)
}

func TestFilter_InvalidSelection(t *testing.T) {
	bad := nj("p", "d", 0, vae, lbow, domain.Selection(3))
	_, err := Filter([]domain.Judgment{bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedSelection)

	var jerr *domain.JudgmentError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, "p", jerr.ParticipantID)
}

func TestFilter_Properties(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		study := testutils.GenerateStudy(testutils.DefaultStudyOptions(), seed)

		first, err := Filter(study)
		require.NoError(t, err)

		for _, j := range first.Kept {
			require.False(t, j.IsAttentionCheck(), "seed %d: no sentinel may survive filtering", seed)
		}
		require.Equal(t, first.Report.Before-first.Report.RemovedByExclusion-first.Report.RemovedAsChecks,
			first.Report.After, "seed %d", seed)

		second, err := Filter(first.Kept)
		require.NoError(t, err)
		require.Equal(t, first.Kept, second.Kept, "seed %d: filtering must be idempotent", seed)
		require.Empty(t, second.Report.ExcludedParticipants, "seed %d", seed)
	}
}
