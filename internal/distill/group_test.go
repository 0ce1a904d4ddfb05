package distill

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evanwhit/mnemo/internal/model"
	"github.com/evanwhit/mnemo/internal/store"
)

func ref(id, memID, owner string, alignment, confidence float64, valid bool, tags ...string) store.ReflectionWithMemory {
	return store.ReflectionWithMemory{
		Reflection: model.Reflection{
			ID:             id,
			MemoryID:       memID,
			OwnerID:        owner,
			Assessment:     "assessment " + id,
			AlignmentScore: alignment,
		},
		MemoryTags:       tags,
		MemoryConfidence: confidence,
		MemoryValid:      valid,
	}
}

func TestGroupingByTagOverlap(t *testing.T) {
	refs := []store.ReflectionWithMemory{
		ref("r1", "m1", "alice", 0.8, 0.5, true, "billing", "email"),
		ref("r2", "m2", "alice", 0.6, 0.5, true, "email"),
		ref("r3", "m3", "alice", 0.9, 0.5, true, "deploys"),
	}

	groups := groupReflections(refs)
	assert.Len(t, groups, 2)

	// r1 and r2 share "email"; overlap needs any shared tag, not the
	// full tag set.
	var sizes []int
	for _, g := range groups {
		sizes = append(sizes, len(g.Reflections))
	}
	assert.ElementsMatch(t, []int{2, 1}, sizes)
}

func TestGroupingIsTransitive(t *testing.T) {
	// a-b share t1, b-c share t2: all three become one group.
	refs := []store.ReflectionWithMemory{
		ref("r1", "m1", "alice", 0.5, 0.5, true, "t1"),
		ref("r2", "m2", "alice", 0.5, 0.5, true, "t1", "t2"),
		ref("r3", "m3", "alice", 0.5, 0.5, true, "t2"),
	}
	groups := groupReflections(refs)
	assert.Len(t, groups, 1)
	assert.Len(t, groups[0].Reflections, 3)
}

func TestGroupingNeverCrossesOwners(t *testing.T) {
	refs := []store.ReflectionWithMemory{
		ref("r1", "m1", "alice", 0.5, 0.5, true, "shared"),
		ref("r2", "m2", "bob", 0.5, 0.5, true, "shared"),
	}
	groups := groupReflections(refs)
	assert.Len(t, groups, 2)
}

func TestUntaggedReflectionsAreSingletons(t *testing.T) {
	refs := []store.ReflectionWithMemory{
		ref("r1", "m1", "alice", 0.5, 0.5, true),
		ref("r2", "m2", "alice", 0.5, 0.5, true),
	}
	groups := groupReflections(refs)
	assert.Len(t, groups, 2)
}

func TestGroupAggregates(t *testing.T) {
	refs := []store.ReflectionWithMemory{
		ref("r1", "m1", "alice", 1.0, 0.9, true, "t"),
		ref("r2", "m2", "alice", 0.5, 0.1, true, "t"),
	}
	groups := groupReflections(refs)
	assert.Len(t, groups, 1)
	g := groups[0]

	assert.InDelta(t, 0.75, g.AvgAlignment, 1e-9)
	// Weighted by memory confidence: (1.0*0.9 + 0.5*0.1) / (0.9+0.1).
	assert.InDelta(t, 0.95, g.Confidence, 1e-9)
	assert.True(t, g.AllValid)
}

func TestGroupOneInvalidMemberDisqualifies(t *testing.T) {
	refs := []store.ReflectionWithMemory{
		ref("r1", "m1", "alice", 0.9, 0.5, true, "t"),
		ref("r2", "m2", "alice", 0.9, 0.5, false, "t"),
	}
	groups := groupReflections(refs)
	assert.Len(t, groups, 1)
	assert.False(t, groups[0].AllValid)
}

func TestGroupTopicMostFrequentTag(t *testing.T) {
	refs := []store.ReflectionWithMemory{
		ref("r1", "m1", "alice", 0.5, 0.5, true, "billing", "email"),
		ref("r2", "m2", "alice", 0.5, 0.5, true, "billing"),
	}
	groups := groupReflections(refs)
	assert.Equal(t, "billing", groups[0].Topic())
}
