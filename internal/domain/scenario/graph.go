package scenario

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/okian/akut/internal/domain/model"
)

const graphName = "scenario"

// Graph renders the narrative state machine of s as a DOT digraph.
// Transitions are labelled with their action id; the initial state is
// drawn as a double circle.
func Graph(s model.Scenario) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return "", fmt.Errorf("set graph name: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return "", fmt.Errorf("set graph direction: %w", err)
	}
	if s.Title != "" {
		if err := g.AddAttr(graphName, "label", strconv.Quote(s.Title)); err != nil {
			return "", fmt.Errorf("set graph label: %w", err)
		}
	}

	added := map[string]bool{}
	addNode := func(id string, attrs map[string]string) error {
		if added[id] {
			return nil
		}
		added[id] = true
		if err := g.AddNode(graphName, strconv.Quote(id), attrs); err != nil {
			return fmt.Errorf("add state %q: %w", id, err)
		}
		return nil
	}

	for _, st := range s.States {
		attrs := map[string]string{"shape": "circle"}
		if st.ID == s.InitialStateID {
			attrs["shape"] = "doublecircle"
		}
		if st.ExtraInfo != "" {
			attrs["tooltip"] = strconv.Quote(st.ExtraInfo)
		}
		if err := addNode(st.ID, attrs); err != nil {
			return "", err
		}
	}

	for _, t := range s.Transitions {
		for _, id := range []string{t.FromStateID, t.ToStateID} {
			if err := addNode(id, map[string]string{"shape": "circle", "style": "dashed"}); err != nil {
				return "", err
			}
		}
		attrs := map[string]string{"label": strconv.Quote(t.ActionID)}
		if err := g.AddEdge(strconv.Quote(t.FromStateID), strconv.Quote(t.ToStateID), true, attrs); err != nil {
			return "", fmt.Errorf("add transition %q: %w", t.ID, err)
		}
	}

	return g.String(), nil
}
