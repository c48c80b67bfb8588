// Package scenario defines the static conversation tree consumed by the
// replay engine. A tree is loaded once per run from YAML, validated, and
// never mutated afterwards; a branch label selects exactly one root-to-leaf
// path through it.
package scenario

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ScenarioError marks a malformed or unresolvable scenario tree or branch.
// It is fatal: the pipeline must not proceed past it.
type ScenarioError struct {
	msg string
}

func (e *ScenarioError) Error() string { return "scenario: " + e.msg }

func scenarioErrorf(format string, args ...interface{}) error {
	return &ScenarioError{msg: fmt.Sprintf(format, args...)}
}

// Node is one conversation-tree node. User nodes carry literal Content;
// assistant nodes carry a ContentIntent directive realized by the model
// backend at replay time.
type Node struct {
	ID            string            `yaml:"id"`
	Role          Role              `yaml:"role"`
	Phase         Phase             `yaml:"phase"`
	Content       string            `yaml:"content,omitempty"`
	ContentIntent string            `yaml:"content_intent,omitempty"`
	Children      map[string]string `yaml:"children,omitempty"`
}

// Tree is an immutable directed conversation tree keyed by node id.
type Tree struct {
	rootID string
	nodes  map[string]Node
}

type treeFile struct {
	Version int    `yaml:"version"`
	Root    string `yaml:"root"`
	Nodes   []Node `yaml:"nodes"`
}

// LoadFile reads and validates a scenario tree from a YAML file.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scenarioErrorf("read %s: %v", path, err)
	}
	return Parse(data)
}

// Parse builds and validates a tree from YAML bytes.
func Parse(data []byte) (*Tree, error) {
	var tf treeFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, scenarioErrorf("parse yaml: %v", err)
	}
	if tf.Root == "" {
		return nil, scenarioErrorf("missing root node id")
	}
	if len(tf.Nodes) == 0 {
		return nil, scenarioErrorf("scenario has no nodes")
	}

	nodes := make(map[string]Node, len(tf.Nodes))
	for _, n := range tf.Nodes {
		if n.ID == "" {
			return nil, scenarioErrorf("node with empty id")
		}
		if _, dup := nodes[n.ID]; dup {
			return nil, scenarioErrorf("duplicate node id %q", n.ID)
		}
		if _, err := ParseRole(string(n.Role)); err != nil {
			return nil, scenarioErrorf("node %q: %v", n.ID, err)
		}
		if _, err := ParsePhase(string(n.Phase)); err != nil {
			return nil, scenarioErrorf("node %q: %v", n.ID, err)
		}
		if n.Role == RoleUser && n.Content == "" {
			return nil, scenarioErrorf("user node %q has no content", n.ID)
		}
		if n.Role == RoleAssistant && n.ContentIntent == "" {
			return nil, scenarioErrorf("assistant node %q has no content_intent", n.ID)
		}
		nodes[n.ID] = n
	}

	t := &Tree{rootID: tf.Root, nodes: nodes}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// validate checks structural invariants: the root exists, every child
// reference is defined, every non-root node has exactly one parent, and
// every node is reachable from the root (which also rules out cycles).
func (t *Tree) validate() error {
	if _, ok := t.nodes[t.rootID]; !ok {
		return scenarioErrorf("root node %q is not defined", t.rootID)
	}

	parents := make(map[string]int, len(t.nodes))
	for id, n := range t.nodes {
		for label, childID := range n.Children {
			child, ok := t.nodes[childID]
			if !ok {
				return scenarioErrorf("node %q child %q (label %q) is not defined", id, childID, label)
			}
			if child.ID == t.rootID {
				return scenarioErrorf("root node %q referenced as a child of %q", t.rootID, id)
			}
			parents[childID]++
		}
	}
	for id, count := range parents {
		if count > 1 {
			return scenarioErrorf("node %q has %d parents", id, count)
		}
	}

	// Reachability walk. Unreached nodes are orphans; since every edge was
	// counted above, a reachable re-visit would mean a cycle.
	seen := map[string]bool{}
	stack := []string{t.rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			return scenarioErrorf("cycle detected at node %q", id)
		}
		seen[id] = true
		for _, childID := range t.nodes[id].Children {
			stack = append(stack, childID)
		}
	}
	for id := range t.nodes {
		if !seen[id] {
			return scenarioErrorf("node %q is unreachable from root", id)
		}
	}
	return nil
}

// Root returns the root node.
func (t *Tree) Root() Node {
	return t.nodes[t.rootID]
}

// Children returns the out-edges of a node, sorted by branch label.
func (t *Tree) Children(nodeID string) map[string]string {
	n, ok := t.nodes[nodeID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(n.Children))
	for k, v := range n.Children {
		out[k] = v
	}
	return out
}

// Labels returns every branch label appearing in the tree, sorted.
func (t *Tree) Labels() []string {
	set := map[string]bool{}
	for _, n := range t.nodes {
		for label := range n.Children {
			set[label] = true
		}
	}
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Resolve computes the ordered root-to-leaf path selected by the branch
// label. At each node the child under the label is followed when present;
// a node with a single child and no entry for the label is treated as a
// linear segment and followed unconditionally. Anything else fails with
// ScenarioError before replay starts.
func (t *Tree) Resolve(branchLabel string) ([]Node, error) {
	if branchLabel == "" {
		return nil, scenarioErrorf("empty branch label")
	}

	var path []Node
	cur := t.nodes[t.rootID]
	for {
		path = append(path, cur)
		if len(cur.Children) == 0 {
			return path, nil
		}

		nextID, ok := cur.Children[branchLabel]
		if !ok {
			if len(cur.Children) == 1 {
				for _, id := range cur.Children {
					nextID = id
				}
			} else {
				return nil, scenarioErrorf("branch label %q does not select a child of node %q", branchLabel, cur.ID)
			}
		}
		cur = t.nodes[nextID]
	}
}
