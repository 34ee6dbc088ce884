package analytics

// rootIndex is the virtual root every case path starts from
const rootIndex = 0

type treeNode struct {
	name     string
	count    int
	parent   int
	children []int
}

type edgeKey struct {
	parent int
	name   string
}

// PathTree is a prefix tree over activity sequences. Nodes live in an arena
// and are addressed by index; a child always has a larger index than its
// parent, and siblings keep first-insertion order.
type PathTree struct {
	nodes []treeNode
	edges map[edgeKey]int
}

// NewPathTree creates a tree holding only the virtual root
func NewPathTree() *PathTree {
	return &PathTree{
		nodes: []treeNode{{parent: -1}},
		edges: make(map[edgeKey]int),
	}
}

func (t *PathTree) child(parent int, name string) int {
	key := edgeKey{parent: parent, name: name}
	if idx, ok := t.edges[key]; ok {
		return idx
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{name: name, parent: parent})
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	t.edges[key] = idx
	return idx
}

// Insert walks one case path from the root, creating nodes as needed and
// counting the case once at every depth it reaches.
func (t *PathTree) Insert(path []string) {
	current := rootIndex
	for _, name := range path {
		current = t.child(current, name)
		t.nodes[current].count++
	}
}

// Merge adds the counts of other into t. Other's nodes are visited in index
// order so parents are always mapped before their children.
func (t *PathTree) Merge(other *PathTree) {
	mapping := make([]int, len(other.nodes))
	mapping[rootIndex] = rootIndex
	for i := 1; i < len(other.nodes); i++ {
		n := other.nodes[i]
		idx := t.child(mapping[n.parent], n.name)
		t.nodes[idx].count += n.count
		mapping[i] = idx
	}
}

// CaseCount returns the number of cases inserted, i.e. the summed counts of
// the root-level nodes.
func (t *PathTree) CaseCount() int {
	total := 0
	for _, c := range t.nodes[rootIndex].children {
		total += t.nodes[c].count
	}
	return total
}

// Render flattens the arena into nested nodes. Nodes are visited in reverse
// index order, which finishes every child before its parent.
func (t *PathTree) Render() []PathTreeNode {
	out := make([]PathTreeNode, len(t.nodes))
	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := t.nodes[i]
		children := make([]PathTreeNode, len(n.children))
		for j, c := range n.children {
			children[j] = out[c]
		}
		out[i] = PathTreeNode{Name: n.name, Count: n.count, Children: children}
	}
	return out[rootIndex].Children
}

func buildPathTree(cases []AnnotatedCase) *PathTree {
	t := NewPathTree()
	for _, c := range cases {
		t.Insert(activitiesOf(c))
	}
	return t
}

// CasePaths lists the literal activity path of every case
func CasePaths(cases []AnnotatedCase) []CasePath {
	out := make([]CasePath, len(cases))
	for i, c := range cases {
		out[i] = CasePath{CaseID: c.ID, Path: activitiesOf(c)}
	}
	return out
}
