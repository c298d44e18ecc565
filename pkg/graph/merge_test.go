package graph

import (
	"reflect"
	"testing"

	"github.com/storyweft/novelmap/pkg/common"
)

func TestMergeBuildsGraph(t *testing.T) {
	relations := []common.Relation{
		{Source: "Alice", Target: "Bob", Relation: "friends"},
	}

	got := Merge(common.Graph{}, relations)

	expected := common.Graph{
		Nodes: []common.GraphNode{
			{ID: "Alice", Group: 1, Value: 1},
			{ID: "Bob", Group: 1, Value: 1},
		},
		Links: []common.GraphLink{
			{Source: "Alice", Target: "Bob", Label: "friends"},
		},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %+v, got %+v", expected, got)
	}
}

func TestMergeDeduplicatesUndirected(t *testing.T) {
	g := Merge(common.Graph{}, []common.Relation{
		{Source: "Alice", Target: "Bob", Relation: "friends"},
	})
	got := Merge(g, []common.Relation{
		{Source: "Bob", Target: "Alice", Relation: "rivals"},
	})

	if len(got.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(got.Links))
	}
	if got.Links[0].Label != "friends" {
		t.Fatalf("expected first label to win, got %q", got.Links[0].Label)
	}
}

func TestMergeIncrementsValuePerMention(t *testing.T) {
	g := Merge(common.Graph{}, []common.Relation{
		{Source: "Alice", Target: "Bob", Relation: "friends"},
	})
	// A duplicate pair adds no link but still counts as a mention.
	got := Merge(g, []common.Relation{
		{Source: "Alice", Target: "Bob", Relation: "friends"},
		{Source: "Alice", Target: "Carol", Relation: "sisters"},
	})

	values := map[string]int{}
	for _, node := range got.Nodes {
		values[node.ID] = node.Value
	}
	expected := map[string]int{"Alice": 3, "Bob": 2, "Carol": 1}
	if !reflect.DeepEqual(values, expected) {
		t.Fatalf("expected values %v, got %v", expected, values)
	}
	if len(got.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(got.Links))
	}
}

func TestMergeSkipsBlankEndpoints(t *testing.T) {
	got := Merge(common.Graph{}, []common.Relation{
		{Source: "  ", Target: "Bob", Relation: "friends"},
		{Source: "Alice", Target: "", Relation: "friends"},
		{Source: "Alice", Target: "Bob", Relation: "friends"},
	})

	if len(got.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got.Nodes))
	}
	if len(got.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(got.Links))
	}
}

func TestMergeTrimsEndpointNames(t *testing.T) {
	got := Merge(common.Graph{}, []common.Relation{
		{Source: " Alice ", Target: "Bob", Relation: "friends"},
		{Source: "Alice", Target: " Bob", Relation: "allies"},
	})

	if len(got.Nodes) != 2 {
		t.Fatalf("expected trimmed names to collapse, got %d nodes", len(got.Nodes))
	}
	if len(got.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(got.Links))
	}
}

func TestMergeEmptyBatch(t *testing.T) {
	g := Merge(common.Graph{}, []common.Relation{
		{Source: "Alice", Target: "Bob", Relation: "friends"},
	})

	got := Merge(g, nil)
	if !reflect.DeepEqual(got, g) {
		t.Fatalf("expected unchanged graph, got %+v", got)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	g := Merge(common.Graph{}, []common.Relation{
		{Source: "Alice", Target: "Bob", Relation: "friends"},
	})
	before := common.Graph{
		Nodes: append([]common.GraphNode(nil), g.Nodes...),
		Links: append([]common.GraphLink(nil), g.Links...),
	}

	Merge(g, []common.Relation{
		{Source: "Alice", Target: "Carol", Relation: "sisters"},
	})

	if !reflect.DeepEqual(g, before) {
		t.Fatalf("expected input graph untouched, got %+v", g)
	}
}
