package linkgraph

import (
	"reflect"
	"testing"
)

func TestAddPage_ExampleScenario(t *testing.T) {
	pages := []Page{
		{Title: "A", Links: []string{"B"}},
		{Title: "B"},
		{Title: "C", Links: []string{"D"}},
		{Title: "D"},
	}
	var g Graph
	for _, p := range pages {
		g = AddPage(p, g)
	}

	want := Graph{
		"a": {"b"},
		"b": {"a"},
		"c": {"d"},
		"d": {"c"},
	}
	if !reflect.DeepEqual(g, want) {
		t.Errorf("graph = %v, want %v", g, want)
	}
}

func TestAddPage_SymmetricForAllOrders(t *testing.T) {
	pages := []Page{
		{Title: "Alpha", Links: []string{"beta", "GAMMA"}},
		{Title: "Beta"},
		{Title: "gamma", Links: []string{"delta"}},
		{Title: "Delta", Links: []string{"alpha", "Alpha"}},
	}

	for _, order := range permutations(len(pages)) {
		var g Graph
		for _, i := range order {
			g = AddPage(pages[i], g)
		}
		if !g.Symmetric() {
			t.Fatalf("order %v: graph not symmetric: %v", order, g)
		}
		if len(g.Links("alpha")) != 3 {
			t.Errorf("order %v: alpha links = %v, want 3 entries", order, g.Links("alpha"))
		}
		if len(g.Links("BETA")) != 1 || g.Links("BETA")[0] != "alpha" {
			t.Errorf("order %v: beta links = %v", order, g.Links("BETA"))
		}
	}
}

func TestAddPage_DropsSelfAndDuplicates(t *testing.T) {
	g := AddPage(Page{Title: "Note", Links: []string{"note", "NOTE ", "other", "Other", ""}}, nil)
	if got := g["note"]; !reflect.DeepEqual(got, []string{"other"}) {
		t.Errorf("links = %v, want [other]", got)
	}
}

func TestAddPage_IsolatedPage(t *testing.T) {
	g := AddPage(Page{Title: "Alone"}, nil)
	links, ok := g["alone"]
	if !ok {
		t.Fatal("expected page to be present")
	}
	if links == nil || len(links) != 0 {
		t.Errorf("links = %#v, want empty non-nil slice", links)
	}
}

func TestAddPage_ReAddUnions(t *testing.T) {
	g := AddPage(Page{Title: "a", Links: []string{"b"}}, nil)
	g = AddPage(Page{Title: "b"}, g)
	g = AddPage(Page{Title: "a", Links: []string{"c"}}, g)
	if got := g["a"]; !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("a links = %v, want [b c]", got)
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"One", "two"}, []string{"ONE", "Three", " "})
	want := []string{"One", "two", "Three"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := make([]int, 0, n)
			q = append(q, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}
