package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeAliasRoundTrip(t *testing.T) {
	reg := New([]Entry{
		{CanonicalID: "pcr_analysis", HumanName: "PCR Extreme", Allocation: 0.2, Aliases: []string{"PCR_Extreme", "pcr extreme"}},
	})

	assert.Equal(t, "pcr_analysis", reg.Canonicalize("PCR_Extreme"))
	assert.Equal(t, "pcr_analysis", reg.Canonicalize("pcr extreme"))
	assert.Equal(t, "pcr_analysis", reg.Canonicalize("pcr_analysis"))
	assert.True(t, reg.Known("pcr_analysis"))
}

func TestCanonicalizeUnknownFallsBackToUnknownWithLowestAllocation(t *testing.T) {
	reg := New([]Entry{
		{CanonicalID: "a", Allocation: 0.5},
		{CanonicalID: "b", Allocation: 0.3},
	})

	got := reg.Canonicalize("never-heard-of-it")
	assert.Equal(t, unknownID, got)
	assert.False(t, reg.Known("never-heard-of-it"))
	assert.Less(t, reg.Allocation(unknownID), reg.Allocation("a"))
	assert.Less(t, reg.Allocation(unknownID), reg.Allocation("b"))
}

func TestDefaultRegistryAllocationsSumToOne(t *testing.T) {
	reg := Default()
	var total float64
	for _, e := range reg.All() {
		if e.CanonicalID == unknownID {
			continue
		}
		total += e.Allocation
	}
	require.InDelta(t, 1.0, total, 0.02)
}

func TestDisplayUsesHumanNameWhenSet(t *testing.T) {
	reg := New([]Entry{{CanonicalID: "max_pain", HumanName: "Max Pain Pull", Allocation: 0.1}})
	assert.Equal(t, "Max Pain Pull", reg.Display("max_pain"))
}

func TestDisplayUnknownIDFallsBackToUnknownRow(t *testing.T) {
	reg := New([]Entry{{CanonicalID: "max_pain", HumanName: "Max Pain Pull", Allocation: 0.1}})
	assert.Equal(t, "Unknown", reg.Display("not-registered"))
}

func TestPCRAnalysisAliasesAllNormaliseToTheSameCanonicalID(t *testing.T) {
	reg := Default()
	for _, name := range []string{"PCR Analysis", "PCRStrategy", "pcr_analysis"} {
		assert.Equal(t, "pcr_analysis", reg.Canonicalize(name), name)
	}
	assert.InDelta(t, reg.Allocation("pcr_analysis"), reg.Allocation(reg.Canonicalize("PCRStrategy")), 0)
}
