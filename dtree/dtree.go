// Package dtree implements the distribution tree: a per-worker array of
// nodes keyed by depth, with a dominant-flag array writable by remote
// one-sided CAS/put, used to direct steal targets toward the dominant
// task group while tolerating version drift.
//
// No teacher analog exists for a distributed propagation tree; the
// doc-comment-per-algorithm-step style of GetTopmostDominant is grounded
// on framesupplier/internal/distribution.go's numbered "Algorithm"
// comment blocks.
package dtree

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/lattice-hpc/adws/distrange"
	"github.com/lattice-hpc/adws/flipper"
	"github.com/lattice-hpc/adws/topology"
)

// NodeRef addresses a dtree node by (owner rank, depth) rather than by
// pointer, since dtree nodes live on whichever rank owns them.
type NodeRef struct {
	Owner int
	Depth int
}

// Root is the sentinel parent of every depth-0 node: owner -1, depth -1,
// so a depth-0 node's Depth() computes to 0.
var Root = NodeRef{Owner: -1, Depth: -1}

// Node is one dtree entry: the parent link, the distribution range this
// task group covers, the tg_version active when it was appended, and its
// monotonic version number.
type Node struct {
	Parent    NodeRef
	DRange    distrange.DistRange
	TgVersion flipper.Flipper
	Version   int32
}

// Depth reports this node's depth, one past its parent's.
func (n Node) Depth() int {
	return n.Parent.Depth + 1
}

// Dtree is one worker's view of the distribution tree: its own node array
// (one slot per depth, reused across task-group generations) plus the
// dominant-flag windows and version counters shared with every rank.
type Dtree struct {
	myRank   int
	nRanks   int
	maxDepth int

	nodes         *topology.ValueWindow[Node]
	dominantFlags []topology.Int32Window
	versions      []*flipper.VersionCounter

	cacheMu    sync.Mutex
	localCache map[[2]int]int32 // (owner, depth) -> last-observed dominant flag for ancestors this rank does not own
}

// New builds the dtree for myRank in a group of nRanks, reusing the shared
// node-array and dominant-flag windows every rank must address.
func New(myRank, nRanks, maxDepth int, nodes *topology.ValueWindow[Node], dominantFlags []topology.Int32Window) *Dtree {
	if len(dominantFlags) != maxDepth {
		panic("dtree: dominantFlags must have exactly maxDepth windows")
	}
	versions := make([]*flipper.VersionCounter, maxDepth)
	for d := range versions {
		versions[d] = flipper.NewVersionCounter(myRank, nRanks)
	}
	// Reserve maxDepth slots for this rank so Set(depth, ...) is always
	// valid without a separate growth path: the tree stays sparse and
	// shallow, one node per depth per worker.
	for d := 0; d < maxDepth; d++ {
		nodes.Append(myRank, Node{})
	}
	return &Dtree{
		myRank:        myRank,
		nRanks:        nRanks,
		maxDepth:      maxDepth,
		nodes:         nodes,
		dominantFlags: dominantFlags,
		versions:      versions,
		localCache:    make(map[[2]int]int32),
	}
}

// NewWindows allocates the windows a group of dtrees must share: one
// node-array ValueWindow and maxDepth Int32Windows (one per depth).
func NewWindows(nRanks, maxDepth int) (*topology.ValueWindow[Node], []topology.Int32Window) {
	nodes := topology.NewValueWindow[Node](nRanks)
	flags := make([]topology.Int32Window, maxDepth)
	for d := range flags {
		flags[d] = topology.NewInt32Window(nRanks)
	}
	return nodes, flags
}

// Append writes the new current node for depth parent.Depth+1 into this
// rank's slot and returns a NodeRef to it. It panics as a
// resource-exhaustion fatal if the tree has no room for another depth.
func (t *Dtree) Append(parent NodeRef, drange distrange.DistRange, tgVersion flipper.Flipper) NodeRef {
	depth := parent.Depth + 1
	if depth >= t.maxDepth {
		panic(fmt.Sprintf("dtree: depth overflow, max_depth=%d", t.maxDepth))
	}
	node := Node{
		Parent:    parent,
		DRange:    drange,
		TgVersion: tgVersion,
		Version:   t.versions[depth].Next(),
	}
	t.nodes.Set(t.myRank, depth, node)
	t.dominantFlags[depth].Store(t.myRank, 0)
	return NodeRef{Owner: t.myRank, Depth: depth}
}

// Node reads back the node at ref, a one-sided get when ref.Owner differs
// from this rank.
func (t *Dtree) Node(ref NodeRef) Node {
	return t.nodes.Get(ref.Owner, ref.Depth)
}

// SetDominant writes ±version for nr's node: +version to mark it
// dominant, -version to mark it retired. When nr.Owner differs from this
// rank, this is the one-sided atomic put to the owner's dominant flag;
// the loopback Int32Window makes no local/remote distinction (see
// topology package doc).
func (t *Dtree) SetDominant(nr NodeRef, dominant bool) {
	node := t.Node(nr)
	v := node.Version
	if !dominant {
		v = -v
	}
	t.dominantFlags[nr.Depth].Store(nr.Owner, v)
}

// CopyParents walks nr's ancestor chain (depths 0..nr.Depth) through the
// shared node window, one Get per node, and zeroes this rank's cached
// dominant-flag observations for each ancestor
// not owned locally, since this rank hasn't yet observed dominance along
// a path it may never have walked before — typically called when a
// cross-worker task lands on a rank that never saw its ancestors.
func (t *Dtree) CopyParents(nr NodeRef) {
	cur := nr
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	for cur.Depth >= 0 {
		if cur.Owner != t.myRank {
			t.localCache[[2]int{cur.Owner, cur.Depth}] = 0
		}
		node := t.nodes.Get(cur.Owner, cur.Depth)
		cur = node.Parent
	}
}

// ancestorPath returns the NodeRef at every depth from 0 to nr.Depth along
// nr's root-to-leaf path, found by walking Parent links upward from nr.
func (t *Dtree) ancestorPath(nr NodeRef) []NodeRef {
	path := make([]NodeRef, nr.Depth+1)
	cur := nr
	for cur.Depth >= 0 {
		path[cur.Depth] = cur
		node := t.nodes.Get(cur.Owner, cur.Depth)
		cur = node.Parent
	}
	return path
}

func (t *Dtree) localFlag(ref NodeRef) int32 {
	if ref.Owner == t.myRank {
		return t.dominantFlags[ref.Depth].Load(t.myRank)
	}
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	return t.localCache[[2]int{ref.Owner, ref.Depth}]
}

func (t *Dtree) cache(ref NodeRef, v int32) {
	t.cacheMu.Lock()
	t.localCache[[2]int{ref.Owner, ref.Depth}] = v
	t.cacheMu.Unlock()
}

func (t *Dtree) randomRankIn(r distrange.DistRange) int {
	lo := r.BeginRank()
	hi := r.EndRank()
	if hi > t.nRanks-1 {
		hi = t.nRanks - 1
	}
	if hi <= lo {
		return lo
	}
	return lo + rand.Intn(hi-lo+1)
}

// GetTopmostDominant walks depths 0..nr.Depth along nr's ancestor path,
// propagating dominant-flag knowledge via a randomized read/write
// alternation through an "informant" rank to avoid hotspotting the true
// owner, and returns the shallowest ancestor whose flag is observed as
// dominant. Returns ok=false if no ancestor is dominant.
func (t *Dtree) GetTopmostDominant(nr NodeRef) (NodeRef, bool) {
	path := t.ancestorPath(nr)

	for d := 0; d <= nr.Depth; d++ {
		ref := path[d]
		node := t.Node(ref)
		version := node.Version

		localFlag := t.localFlag(ref)

		if ref.Owner != t.myRank && localFlag != -version {
			informant := t.randomRankIn(node.DRange)
			if informant != ref.Owner && localFlag == version {
				if !t.dominantFlags[d].CAS(informant, 0, version) {
					if observed := t.dominantFlags[d].Load(informant); observed == -version {
						t.cache(ref, -version)
						localFlag = -version
					}
				}
			} else {
				if observed := t.dominantFlags[d].Load(informant); observed == version || observed == -version {
					t.cache(ref, observed)
					localFlag = observed
				}
			}
		}

		if localFlag == version {
			return ref, true
		}
	}
	return NodeRef{}, false
}
