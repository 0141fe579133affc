package detect

import (
	"sort"

	"stitch/internal/identity"
	"stitch/internal/match"
)

// CandidateIdentity is a transitively connected group of service records
// believed to be one person. Created fresh every run and never persisted;
// operator approval converts members into mappings.
type CandidateIdentity struct {
	CentralUserID string            `json:"central_user_id"`
	Members       []identity.Record `json:"members"`
	// Attributes is the union of matching attributes across all edges
	// inside the group, in descending trust order.
	Attributes []match.Attribute `json:"matching_attributes"`
	// Confidence is the arithmetic mean of the group's edge confidences.
	Confidence float64      `json:"avg_confidence"`
	Bucket     match.Bucket `json:"bucket"`
}

// Cluster groups pairwise candidates transitively: if A matches B and B
// matches C, all three land in one identity even though A and C were never
// directly compared. The second return maps every member record key to its
// cluster's central id. Grouping is union-based, so the discovery order of
// candidates across workers cannot change the outcome.
func Cluster(candidates []match.Candidate) ([]CandidateIdentity, map[string]string) {
	centralByKey := make(map[string]string)
	if len(candidates) == 0 {
		return nil, centralByKey
	}

	uf := newUnionFind()
	records := make(map[string]identity.Record)
	for _, candidate := range candidates {
		keyA, keyB := candidate.A.Key(), candidate.B.Key()
		records[keyA] = candidate.A
		records[keyB] = candidate.B
		uf.union(keyA, keyB)
	}

	type aggregate struct {
		sum   float64
		edges int
		attrs map[match.Attribute]struct{}
	}
	byRoot := make(map[string]*aggregate)
	for _, candidate := range candidates {
		root := uf.find(candidate.A.Key())
		agg := byRoot[root]
		if agg == nil {
			agg = &aggregate{attrs: make(map[match.Attribute]struct{})}
			byRoot[root] = agg
		}
		agg.sum += candidate.Confidence
		agg.edges++
		for _, attr := range candidate.Attributes {
			agg.attrs[attr] = struct{}{}
		}
	}

	membersByRoot := make(map[string][]identity.Record)
	for key, record := range records {
		root := uf.find(key)
		membersByRoot[root] = append(membersByRoot[root], record)
	}

	identities := make([]CandidateIdentity, 0, len(membersByRoot))
	for root, members := range membersByRoot {
		sort.Slice(members, func(i, j int) bool {
			if members[i].ServiceConfigID != members[j].ServiceConfigID {
				return members[i].ServiceConfigID < members[j].ServiceConfigID
			}
			return members[i].Key() < members[j].Key()
		})

		agg := byRoot[root]
		confidence := agg.sum / float64(agg.edges)

		var attrs []match.Attribute
		for _, attr := range match.AllAttributes() {
			if _, ok := agg.attrs[attr]; ok {
				attrs = append(attrs, attr)
			}
		}

		centralID := identity.CentralIDForCluster(members)
		for _, member := range members {
			centralByKey[member.Key()] = centralID
		}

		identities = append(identities, CandidateIdentity{
			CentralUserID: centralID,
			Members:       members,
			Attributes:    attrs,
			Confidence:    confidence,
			Bucket:        match.BucketFor(confidence),
		})
	}

	sort.Slice(identities, func(i, j int) bool {
		return identities[i].CentralUserID < identities[j].CentralUserID
	})
	return identities, centralByKey
}

// unionFind is a plain disjoint-set with path compression. Union attaches the
// lexicographically larger root beneath the smaller, keeping the structure
// deterministic without rank bookkeeping.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(key string) string {
	parent, ok := u.parent[key]
	if !ok {
		u.parent[key] = key
		return key
	}
	if parent == key {
		return key
	}
	root := u.find(parent)
	u.parent[key] = root
	return root
}

func (u *unionFind) union(a, b string) {
	rootA, rootB := u.find(a), u.find(b)
	if rootA == rootB {
		return
	}
	if rootA < rootB {
		u.parent[rootB] = rootA
	} else {
		u.parent[rootA] = rootB
	}
}
