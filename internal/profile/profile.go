// Package profile parses and validates the recursive tree-construction
// input spec.md §6 defines: (name, rate, ceil, prio, input_rate,
// children), and builds the in-memory htb/shaper tree from it.
//
// Grounded on original_source/htbExample.py's create_leaf_node /
// create_inner_node / create_shaper_subtree.
package profile

import (
	"math/rand"

	"github.com/htbsim/htbsim/internal/apperr"
	"github.com/htbsim/htbsim/internal/clock"
	"github.com/htbsim/htbsim/internal/constants"
	"github.com/htbsim/htbsim/internal/htb"
	"github.com/htbsim/htbsim/internal/scheduler"
	"github.com/htbsim/htbsim/internal/shaper"
	"github.com/htbsim/htbsim/internal/traffic"
)

// Node is the recursive profile document. Rate/Ceil are bytes/sec,
// Prio is 0 (highest) to 7 (lowest), InputRate is the leaf's target
// offered load and is ignored for inner nodes (len(Children) > 0).
type Node struct {
	Name      string  `yaml:"name" json:"name"`
	Rate      float64 `yaml:"rate" json:"rate"`
	Ceil      float64 `yaml:"ceil" json:"ceil"`
	Prio      int     `yaml:"prio" json:"prio"`
	InputRate float64 `yaml:"input_rate" json:"input_rate"`
	Children  []Node  `yaml:"children" json:"children"`
}

// IsLeaf reports whether this profile node builds a ShaperLeaf.
func (n Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree is the fully built in-memory tree: the root inner node plus
// every leaf, parented as the profile describes. Inner holds every
// non-leaf node (root included) in construction order, since htb.Node
// itself only tracks a Parent pointer and not Children.
type Tree struct {
	Root   *htb.Node
	Inner  []*htb.Node
	Leaves []*shaper.Leaf
}

// TopologyNode is one node's shape as spec.md §6's topology output
// names it: its own rate/ceil plus which parent (if any) it borrows
// from.
type TopologyNode struct {
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	Ceil   float64 `json:"ceil"`
	Parent string  `json:"parent,omitempty"`
	IsLeaf bool    `json:"is_leaf"`
}

// Topology walks the whole tree (root, every inner node, every leaf)
// and renders each node's (name, rate, ceil) plus its parent edge, the
// core output spec.md §6 names.
func (t *Tree) Topology() []TopologyNode {
	nodes := make([]TopologyNode, 0, len(t.Inner)+len(t.Leaves))
	for _, n := range t.Inner {
		nodes = append(nodes, topologyNodeOf(n, false))
	}
	for _, l := range t.Leaves {
		nodes = append(nodes, topologyNodeOf(l.Node, true))
	}
	return nodes
}

func topologyNodeOf(n *htb.Node, isLeaf bool) TopologyNode {
	tn := TopologyNode{Name: n.Name, Rate: n.Rate, Ceil: n.Ceil, IsLeaf: isLeaf}
	if n.Parent != nil {
		tn.Parent = n.Parent.Name
	}
	return tn
}

// Build walks a profile and constructs the HTB tree, validating
// spec.md §3/§6's invariants: unique names, ceil >= rate >= 0, prio in
// [0,7]. clk is threaded into every Source/Sink/Leaf so all
// time-dependent state reads from one virtual clock. rng seeds every
// leaf's packet-size generator.
func Build(root Node, clk clock.Clock, rng *rand.Rand) (*Tree, error) {
	seen := make(map[string]bool)

	rootNode, err := buildInner(root, nil, seen)
	if err != nil {
		return nil, err
	}

	tree := &Tree{Root: rootNode, Inner: []*htb.Node{rootNode}}
	for _, child := range root.Children {
		if err := buildSubtree(child, rootNode, clk, rng, seen, tree); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func buildSubtree(n Node, parent *htb.Node, clk clock.Clock, rng *rand.Rand, seen map[string]bool, tree *Tree) error {
	if n.IsLeaf() {
		leaf, err := buildLeaf(n, parent, clk, rng, seen)
		if err != nil {
			return err
		}
		tree.Leaves = append(tree.Leaves, leaf)
		return nil
	}

	inner, err := buildInner(n, parent, seen)
	if err != nil {
		return err
	}
	tree.Inner = append(tree.Inner, inner)
	for _, child := range n.Children {
		if err := buildSubtree(child, inner, clk, rng, seen, tree); err != nil {
			return err
		}
	}
	return nil
}

func buildInner(n Node, parent *htb.Node, seen map[string]bool) (*htb.Node, error) {
	if err := checkName(n.Name, seen); err != nil {
		return nil, err
	}
	return htb.New(n.Name, n.Rate, n.Ceil, parent)
}

func buildLeaf(n Node, parent *htb.Node, clk clock.Clock, rng *rand.Rand, seen map[string]bool) (*shaper.Leaf, error) {
	if err := checkName(n.Name, seen); err != nil {
		return nil, err
	}
	if n.Prio < constants.HighestPrio || n.Prio > constants.LowestPrio {
		return nil, apperr.Config("leaf %q: prio %d out of range [%d,%d]", n.Name, n.Prio, constants.HighestPrio, constants.LowestPrio)
	}

	node, err := htb.New(n.Name, n.Rate, n.Ceil, parent)
	if err != nil {
		return nil, err
	}

	src := traffic.NewSource("Source_"+n.Name, n.InputRate, clk, rng)
	sink := traffic.NewSink("Sink_"+n.Name, clk)
	return shaper.New(node, n.Prio, n.InputRate, src, sink, clk), nil
}

func checkName(name string, seen map[string]bool) error {
	if name == "" {
		return apperr.Config("node name must not be empty")
	}
	if seen[name] {
		return apperr.Config("duplicate node name %q", name)
	}
	seen[name] = true
	return nil
}

// Register adds every leaf in the tree to rl as a scheduled shaper.
func (t *Tree) Register(rl *scheduler.RateLimiter) {
	for _, l := range t.Leaves {
		rl.AddShaper(l)
	}
}
