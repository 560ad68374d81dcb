package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// FeatureNamer maps a binarized feature index to a human readable label.
type FeatureNamer func(feature int) string

func defaultFeatureName(feature int) string {
	return fmt.Sprintf("feature %d", feature)
}

func drawNode(g *cgraph.Graph, t *Tree, id string, parent *cgraph.Node, edgeLabel string, namer FeatureNamer) error {
	node, err := g.CreateNodeByName(id)
	if err != nil {
		return err
	}
	if parent != nil {
		edge, err := g.CreateEdgeByName("", parent, node)
		if err != nil {
			return err
		}
		edge.Set("label", edgeLabel)
	}
	if t.IsLeaf() {
		node.Set("label", fmt.Sprintf("class %d\nloss %.6f", t.prediction, t.loss))
		node.Set("shape", "box")
		return nil
	}
	node.Set("label", namer(t.feature))
	if err := drawNode(g, t.trueBranch, id+"t", node, "true", namer); err != nil {
		return err
	}
	return drawNode(g, t.falseBranch, id+"f", node, "false", namer)
}

// DrawGraph builds a graphviz graph for the tree. The caller owns the
// returned handles and must close both when done.
func (t *Tree) DrawGraph(namer FeatureNamer) (*graphviz.Graphviz, *cgraph.Graph, error) {
	if namer == nil {
		namer = defaultFeatureName
	}
	gv, err := graphviz.New(context.Background())
	if err != nil {
		return nil, nil, err
	}
	graph, err := gv.Graph()
	if err != nil {
		gv.Close()
		return nil, nil, err
	}
	if err := drawNode(graph, t, "n", nil, "", namer); err != nil {
		graph.Close()
		gv.Close()
		return nil, nil, err
	}
	return gv, graph, nil
}

// RenderFile renders the tree to an image file. The format is taken from
// the filename extension and must be one of png, svg, jpg or dot.
func (t *Tree) RenderFile(filename string, namer FeatureNamer) error {
	var format graphviz.Format
	switch {
	case strings.HasSuffix(filename, ".png"):
		format = graphviz.PNG
	case strings.HasSuffix(filename, ".svg"):
		format = graphviz.SVG
	case strings.HasSuffix(filename, ".jpg"):
		format = graphviz.JPG
	case strings.HasSuffix(filename, ".dot"):
		format = graphviz.XDOT
	default:
		return fmt.Errorf("model: unsupported render format for %q", filename)
	}

	gv, graph, err := t.DrawGraph(namer)
	if err != nil {
		return err
	}
	defer gv.Close()
	defer graph.Close()

	return gv.RenderFilename(context.Background(), graph, format, filename)
}
