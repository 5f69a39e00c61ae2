package btree

import (
	"BTreeDB/internal/invariants"
	"BTreeDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewBTree opens the tree stored in p, creating an empty root leaf when the
// pager has no root yet. The degree is recorded in every node: opening an
// existing tree with Degree zero adopts the recorded one, any other value
// must match it.
func NewBTree(p Pager, cfg Config) (*BTree, error) {
	if p == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil pager")
	}
	degree := cfg.Degree
	if rootIdx := p.RootPage(); rootIdx != types.NilPage {
		stored, err := storedDegree(p, rootIdx)
		if err != nil {
			return nil, err
		}
		switch {
		case degree == 0:
			degree = stored
		case degree != stored:
			return nil, errors.Wrapf(ErrInvalidConfig, "tree was built with degree %d, configured %d", stored, degree)
		}
	}
	if degree == 0 {
		degree = MaxDegree
	}
	if degree < 2 || degree > MaxDegree {
		return nil, errors.Wrapf(ErrInvalidConfig, "degree %d outside [2, %d]", degree, MaxDegree)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	t := &BTree{
		pager:      p,
		degree:     degree,
		maxEntries: 2*degree - 1,
		minEntries: degree - 1,
		cp:         cfg.Checkpointer,
		log:        log.Named("btree"),
	}

	t.root = p.RootPage()
	if t.root == types.NilPage {
		root, err := t.allocNode(true)
		if err != nil {
			return nil, errors.Wrap(err, "failed to allocate root")
		}
		if err := t.writeNode(root); err != nil {
			return nil, err
		}
		if err := p.SetRootPage(root.idx); err != nil {
			return nil, errors.Wrap(err, "failed to record root")
		}
		t.root = root.idx
		t.log.Debug("empty tree created", zap.Uint32("root", uint32(root.idx)), zap.Int("degree", degree))
		return t, nil
	}

	root, err := t.readNode(t.root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load root")
	}
	if root.count() > t.maxEntries {
		return nil, errors.Wrapf(ErrCorruptReference, "root holds %d entries, degree %d allows %d", root.count(), degree, t.maxEntries)
	}
	t.log.Debug("tree loaded", zap.Uint32("root", uint32(t.root)), zap.Uint32("nodes", p.LivePages()))
	return t, nil
}

// storedDegree reads the degree recorded in the root node.
func storedDegree(p Pager, root types.PageIndex) (int, error) {
	data, err := p.ReadPage(root)
	if err != nil {
		return 0, errors.Wrapf(err, "read root %d", root)
	}
	if len(data) < nodeHeaderSize {
		return 0, errors.Wrapf(ErrCorruptReference, "root %d payload is %d bytes", root, len(data))
	}
	d := node{idx: root, data: data}.degree()
	if d < 2 || d > MaxDegree {
		return 0, errors.Wrapf(ErrCorruptReference, "root %d records degree %d", root, d)
	}
	return d, nil
}

// slots is the number of slot positions a node of this tree uses.
func (t *BTree) slots() int {
	return 2 * t.degree
}

func (t *BTree) readNode(idx types.PageIndex) (node, error) {
	if invariants.Enabled && idx == types.PoisonPage {
		panic("btree: following a poisoned child reference")
	}
	if t.closed {
		return node{}, ErrClosed
	}
	data, err := t.pager.ReadPage(idx)
	if err != nil {
		return node{}, errors.Wrapf(err, "read node %d", idx)
	}
	if len(data) < slotPos(t.slots()) {
		return node{}, errors.Wrapf(ErrCorruptReference, "page %d payload is %d bytes", idx, len(data))
	}
	n := node{idx: idx, data: data}
	if n.count() > t.maxEntries {
		return node{}, errors.Wrapf(ErrCorruptReference, "%s exceeds %d entries", n, t.maxEntries)
	}
	return n, nil
}

func (t *BTree) writeNode(n node) error {
	if err := t.pager.WritePage(n.idx, n.data); err != nil {
		return errors.Wrapf(err, "write node %d", n.idx)
	}
	return nil
}

func (t *BTree) allocNode(leaf bool) (node, error) {
	if t.closed {
		return node{}, ErrClosed
	}
	idx, data, err := t.pager.AllocatePage()
	if err != nil {
		return node{}, err
	}
	n := node{idx: idx, data: data}
	n.init(leaf, t.slots())
	return n, nil
}

func (t *BTree) freeNode(idx types.PageIndex) error {
	if err := t.pager.DeallocatePage(idx); err != nil {
		return errors.Wrapf(err, "free node %d", idx)
	}
	return nil
}

// setRoot links a new root, the only place the root reference changes.
func (t *BTree) setRoot(idx types.PageIndex) error {
	if err := t.pager.SetRootPage(idx); err != nil {
		return errors.Wrap(err, "failed to record root")
	}
	t.root = idx
	return nil
}

// mutated reports a successful mutation to the checkpointer. Its failure
// comes back as ErrCheckpointFailed; the mutation itself stays applied.
func (t *BTree) mutated() error {
	if t.cp == nil {
		return nil
	}
	if err := t.cp.MutationApplied(t.root); err != nil {
		t.log.Warn("checkpoint after mutation failed", zap.Error(err))
		return errors.Wrapf(ErrCheckpointFailed, "%v", err)
	}
	return nil
}

// Root returns the page index of the current root.
func (t *BTree) Root() types.PageIndex {
	return t.root
}

func (t *BTree) Degree() int {
	return t.degree
}

// Stats returns a snapshot of the operation counters.
func (t *BTree) Stats() Stats {
	s := t.stats
	s.Nodes = t.pager.LivePages()
	return s
}

// Close syncs and closes the pager. The tree is unusable afterwards.
func (t *BTree) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.pager.Close()
}
