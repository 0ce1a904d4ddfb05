package distill

import (
	"sort"

	"github.com/evanwhit/mnemo/internal/store"
)

// group is a set of reflections whose source memories share tags,
// plus the aggregate signal computed across them.
type group struct {
	OwnerID     string
	Reflections []store.ReflectionWithMemory

	AvgAlignment float64
	// Confidence is the alignment aggregate weighted by each source
	// memory's own confidence score.
	Confidence float64
	// AllValid is the AND of is_valid across source memories. One
	// invalid memory disqualifies the whole group from distillation.
	AllValid bool
}

// MemberMemoryIDs returns the distinct source memory IDs in the group.
func (g *group) MemberMemoryIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range g.Reflections {
		if !seen[r.MemoryID] {
			seen[r.MemoryID] = true
			ids = append(ids, r.MemoryID)
		}
	}
	return ids
}

// ReflectionIDs returns the reflection IDs, sorted for stable hashing.
func (g *group) ReflectionIDs() []string {
	ids := make([]string, len(g.Reflections))
	for i, r := range g.Reflections {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	return ids
}

// Topic picks the most frequent tag across the group's source memories.
// Ties go to the lexically smaller tag so the choice is deterministic.
func (g *group) Topic() string {
	counts := make(map[string]int)
	for _, r := range g.Reflections {
		for _, t := range r.MemoryTags {
			counts[t]++
		}
	}
	topic := "general"
	best := 0
	for t, n := range counts {
		if n > best || (n == best && t < topic) {
			topic = t
			best = n
		}
	}
	return topic
}

// groupReflections partitions reflections by tag overlap within each
// owner: two reflections land in the same group when their source
// memories share at least one tag. Overlap is transitive, so the
// partition is the connected components of the shared-tag graph. This
// favors recall over precision. Reflections on untagged memories each
// form their own singleton group.
func groupReflections(refs []store.ReflectionWithMemory) []*group {
	// Union-find over reflection indexes, with tag nodes as the bridges.
	parent := make([]int, len(refs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	// Tags never bridge owners.
	type tagKey struct {
		owner string
		tag   string
	}
	firstWithTag := make(map[tagKey]int)
	for i, r := range refs {
		for _, t := range r.MemoryTags {
			k := tagKey{r.OwnerID, t}
			if j, ok := firstWithTag[k]; ok {
				union(j, i)
			} else {
				firstWithTag[k] = i
			}
		}
	}

	byRoot := make(map[int]*group)
	var order []int
	for i, r := range refs {
		root := find(i)
		g, ok := byRoot[root]
		if !ok {
			g = &group{OwnerID: r.OwnerID, AllValid: true}
			byRoot[root] = g
			order = append(order, root)
		}
		g.Reflections = append(g.Reflections, r)
	}

	groups := make([]*group, 0, len(order))
	for _, root := range order {
		g := byRoot[root]
		g.aggregate()
		groups = append(groups, g)
	}
	return groups
}

// aggregate computes the group's scores: plain average of alignment,
// confidence-weighted aggregate of alignment, and AND of validity.
func (g *group) aggregate() {
	var alignSum, weightedSum, weightSum float64
	g.AllValid = true
	for _, r := range g.Reflections {
		alignSum += r.AlignmentScore
		weightedSum += r.AlignmentScore * r.MemoryConfidence
		weightSum += r.MemoryConfidence
		if !r.MemoryValid {
			g.AllValid = false
		}
	}
	n := float64(len(g.Reflections))
	if n > 0 {
		g.AvgAlignment = alignSum / n
	}
	if weightSum > 0 {
		g.Confidence = weightedSum / weightSum
	}
}
