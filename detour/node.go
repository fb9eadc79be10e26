package detour

const (
	nodeOpen   = 0x01
	nodeClosed = 0x02
	// nodeParentDetached marks a parent found by raycast, not adjacency.
	nodeParentDetached = 0x04
)

const (
	nodeParentBits = 24
	nodeStateBits  = 2
	// maxStatesPerNode bounds the extra states a single poly ref may hold.
	maxStatesPerNode = 1 << nodeStateBits

	nullNodeIdx = 0
)

// Node is one search-graph entry of a query. The pool keeps them compact
// so repeated queries reuse the same memory.
type Node struct {
	Pos   [3]float32
	Cost  float32
	Total float32
	PIdx  uint32 // parent pool index, nodeParentBits wide
	State uint8
	Flags uint8
	ID    PolyRef
}

// NodePool hands out nodes keyed by (poly ref, state) with a fixed
// capacity, using a hash table over the ref.
type NodePool struct {
	nodes     []Node
	first     []int32
	next      []int32
	maxNodes  int
	nodeCount int
	hashSize  int
}

// NewNodePool sizes the pool; hashSize must be a power of two.
func NewNodePool(maxNodes, hashSize int) *NodePool {
	if hashSize < 1 {
		hashSize = 1
	}
	p := &NodePool{
		nodes:    make([]Node, maxNodes),
		first:    make([]int32, hashSize),
		next:     make([]int32, maxNodes),
		maxNodes: maxNodes,
		hashSize: hashSize,
	}
	for i := range p.first {
		p.first[i] = -1
	}
	for i := range p.next {
		p.next[i] = -1
	}
	return p
}

// Clear resets the pool without releasing memory.
func (p *NodePool) Clear() {
	for i := range p.first {
		p.first[i] = -1
	}
	p.nodeCount = 0
}

func hashRef(ref PolyRef) uint32 {
	// Finalizer from Wang's 32-bit mix.
	a := uint32(ref)
	a += ^(a << 15)
	a ^= a >> 10
	a += a << 3
	a ^= a >> 6
	a += ^(a << 11)
	a ^= a >> 16
	return a
}

// GetNode returns the node for (id, state), allocating it on first use.
// Returns nil when the pool is exhausted.
func (p *NodePool) GetNode(id PolyRef, state uint8) *Node {
	bucket := hashRef(id) & uint32(p.hashSize-1)
	for i := p.first[bucket]; i != -1; i = p.next[i] {
		if p.nodes[i].ID == id && p.nodes[i].State == state {
			return &p.nodes[i]
		}
	}

	if p.nodeCount >= p.maxNodes {
		return nil
	}
	i := int32(p.nodeCount)
	p.nodeCount++

	node := &p.nodes[i]
	*node = Node{ID: id, State: state}
	p.next[i] = p.first[bucket]
	p.first[bucket] = i
	return node
}

// FindNode returns the node for (id, state) or nil.
func (p *NodePool) FindNode(id PolyRef, state uint8) *Node {
	bucket := hashRef(id) & uint32(p.hashSize-1)
	for i := p.first[bucket]; i != -1; i = p.next[i] {
		if p.nodes[i].ID == id && p.nodes[i].State == state {
			return &p.nodes[i]
		}
	}
	return nil
}

// GetNodeIdx maps a node pointer to its 1-based pool index; 0 is the null
// parent.
func (p *NodePool) GetNodeIdx(node *Node) uint32 {
	if node == nil {
		return nullNodeIdx
	}
	for i := range p.nodes {
		if &p.nodes[i] == node {
			return uint32(i) + 1
		}
	}
	return nullNodeIdx
}

// GetNodeAtIdx resolves a 1-based pool index.
func (p *NodePool) GetNodeAtIdx(idx uint32) *Node {
	if idx == nullNodeIdx {
		return nil
	}
	return &p.nodes[idx-1]
}

// MaxNodes returns the pool capacity.
func (p *NodePool) MaxNodes() int { return p.maxNodes }

// NodeCount returns the nodes in use.
func (p *NodePool) NodeCount() int { return p.nodeCount }

// NodeQueue is a min-heap of nodes ordered by total cost, backing the open
// list of graph searches.
type NodeQueue struct {
	heap []*Node
}

// NewNodeQueue reserves capacity for n nodes.
func NewNodeQueue(n int) *NodeQueue {
	return &NodeQueue{heap: make([]*Node, 0, n)}
}

func (q *NodeQueue) Clear() { q.heap = q.heap[:0] }

func (q *NodeQueue) Empty() bool { return len(q.heap) == 0 }

// Push inserts a node.
func (q *NodeQueue) Push(node *Node) {
	q.heap = append(q.heap, node)
	q.bubbleUp(len(q.heap)-1, node)
}

// Pop removes and returns the cheapest node.
func (q *NodeQueue) Pop() *Node {
	result := q.heap[0]
	n := len(q.heap)
	last := q.heap[n-1]
	q.heap = q.heap[:n-1]
	if len(q.heap) > 0 {
		q.heap[0] = last
		q.trickleDown(0, last)
	}
	return result
}

// Modify re-sorts a node whose total cost decreased.
func (q *NodeQueue) Modify(node *Node) {
	for i := range q.heap {
		if q.heap[i] == node {
			q.bubbleUp(i, node)
			return
		}
	}
}

func (q *NodeQueue) bubbleUp(i int, node *Node) {
	parent := (i - 1) / 2
	for i > 0 && q.heap[parent].Total > node.Total {
		q.heap[i] = q.heap[parent]
		i = parent
		parent = (i - 1) / 2
	}
	q.heap[i] = node
}

func (q *NodeQueue) trickleDown(i int, node *Node) {
	count := len(q.heap)
	child := i*2 + 1
	for child < count {
		if child+1 < count && q.heap[child].Total > q.heap[child+1].Total {
			child++
		}
		if q.heap[child].Total >= node.Total {
			break
		}
		q.heap[i] = q.heap[child]
		i = child
		child = i*2 + 1
	}
	q.heap[i] = node
}
