package graph

import (
	"strings"

	"github.com/storyweft/novelmap/pkg/common"
)

// Merge folds a batch of extracted relations into the global character graph
// and returns a new snapshot; the input graph is not mutated. Merging is
// append/increment-only:
//
//   - Both endpoint names become nodes if unseen; a node's Value is
//     incremented on every mention, whether or not the relation produces a
//     new link.
//   - Links are deduplicated by unordered endpoint pair: (A,B) and (B,A)
//     are the same edge, and the first label seen for a pair wins.
//
// Relations with an empty (post-trim) source or target are skipped.
// Merging an empty batch returns an equal graph.
func Merge(g common.Graph, relations []common.Relation) common.Graph {
	merged := common.Graph{
		Nodes: make([]common.GraphNode, len(g.Nodes)),
		Links: make([]common.GraphLink, len(g.Links)),
	}
	copy(merged.Nodes, g.Nodes)
	copy(merged.Links, g.Links)

	nodeIdx := make(map[string]int, len(merged.Nodes))
	for i := range merged.Nodes {
		nodeIdx[merged.Nodes[i].ID] = i
	}

	touch := func(name string) {
		if i, ok := nodeIdx[name]; ok {
			merged.Nodes[i].Value++
			return
		}
		merged.Nodes = append(merged.Nodes, common.GraphNode{
			ID:    name,
			Group: 1,
			Value: 1,
		})
		nodeIdx[name] = len(merged.Nodes) - 1
	}

	for _, rel := range relations {
		source := strings.TrimSpace(rel.Source)
		target := strings.TrimSpace(rel.Target)
		if source == "" || target == "" {
			continue
		}

		touch(source)
		touch(target)

		if hasLink(merged.Links, source, target) {
			continue
		}
		merged.Links = append(merged.Links, common.GraphLink{
			Source: source,
			Target: target,
			Label:  rel.Relation,
		})
	}

	return merged
}

func hasLink(links []common.GraphLink, source, target string) bool {
	for i := range links {
		if (links[i].Source == source && links[i].Target == target) ||
			(links[i].Source == target && links[i].Target == source) {
			return true
		}
	}
	return false
}
