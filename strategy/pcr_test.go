package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexoptions/kernel/domain"
)

func snapshotWithPCR(pcr float64) domain.Snapshot {
	strike := 20000.0
	chain := domain.OptionChain{
		Underlying: domain.NIFTY,
		Strikes: map[float64]domain.StrikePair{
			strike: {
				Call: domain.OptionLeg{Strike: strike, Side: domain.CALL, LTP: 100, OpenInterest: 1},
				Put:  domain.OptionLeg{Strike: strike, Side: domain.PUT, LTP: 100, OpenInterest: 1},
			},
		},
		PCR:       pcr,
		ATMStrike: strike,
	}
	return domain.Snapshot{
		Underlying:    domain.NIFTY,
		Spot:          strike,
		ATMStrike:     strike,
		CurrentExpiry: time.Now().Add(48 * time.Hour),
		Chain:         chain,
		LastRefresh:   time.Now(),
	}
}

func TestPCRAnalysisHighPCRProducesCallWithLongOnlyOrdering(t *testing.T) {
	snap := snapshotWithPCR(2.0)
	sigs := PCRAnalysis{}.Analyse(snap)
	require.Len(t, sigs, 1)

	s := sigs[0]
	assert.Equal(t, domain.CALL, s.Direction)
	assert.Less(t, s.StopLoss, s.EntryPrice)
	assert.Less(t, s.EntryPrice, s.TargetPrice)
}

// A long PUT profits as price falls, so its ordering mirrors a CALL:
// target < entry < stop-loss.
func TestPCRAnalysisLowPCRProducesPutWithMirroredOrdering(t *testing.T) {
	snap := snapshotWithPCR(0.3)
	sigs := PCRAnalysis{}.Analyse(snap)
	require.Len(t, sigs, 1)

	s := sigs[0]
	assert.Equal(t, domain.PUT, s.Direction)
	assert.Less(t, s.TargetPrice, s.EntryPrice)
	assert.Less(t, s.EntryPrice, s.StopLoss)
	assert.Greater(t, s.StopLoss-s.EntryPrice, 0.0)
}

func TestPCRAnalysisPutLadderDescendsFromEntry(t *testing.T) {
	snap := snapshotWithPCR(0.3)
	sigs := PCRAnalysis{}.Analyse(snap)
	require.Len(t, sigs, 1)

	s := sigs[0]
	require.True(t, s.Ladder.Enabled)
	assert.Greater(t, s.Ladder.T1, s.Ladder.T2)
	assert.Greater(t, s.Ladder.T2, s.Ladder.T3)
	assert.Less(t, s.Ladder.T1, s.EntryPrice)
}

func TestPCRAnalysisInRangeProducesNoSignal(t *testing.T) {
	snap := snapshotWithPCR(1.0)
	assert.Empty(t, PCRAnalysis{}.Analyse(snap))
}
