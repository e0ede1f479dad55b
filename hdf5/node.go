package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-hdfproxy/internal/alloc"
	"github.com/robert-malhotra/go-hdfproxy/internal/message"
	"github.com/robert-malhotra/go-hdfproxy/internal/object"
)

// node is a resolved object together with the chain of groups that links to
// it, so a header that has to move can repoint its parent's link.
type node struct {
	path   string
	name   string
	header *object.Header
	parent *node
}

func (f *File) root() (*node, error) {
	h, err := f.readHeader(f.sb.RootAddress)
	if err != nil {
		return nil, err
	}
	return &node{path: "/", header: h}, nil
}

func (f *File) resolve(path string) (*node, error) {
	return f.resolveDepth(path, 0)
}

func (f *File) resolveDepth(path string, depth int) (*node, error) {
	n, err := f.root()
	if err != nil {
		return nil, err
	}
	for _, name := range SplitPath(path) {
		if n, err = f.child(n, name, depth); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// child looks up one link of group n.
func (f *File) child(n *node, name string, depth int) (*node, error) {
	h := n.header
	if h.Message(message.TypeSymbolTable) != nil {
		return nil, fmt.Errorf("%w: symbol table group %s", ErrUnsupported, n.path)
	}
	if !h.IsGroup() {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, n.path)
	}

	childPath := joinPath(n.path, name)
	for _, l := range h.Links() {
		if l.Name != name {
			continue
		}
		switch l.Kind {
		case message.LinkHard:
			ch, err := f.readHeader(l.Address)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", childPath, err)
			}
			return &node{path: childPath, name: name, header: ch, parent: n}, nil
		case message.LinkSoft:
			if depth >= MaxLinkDepth {
				return nil, fmt.Errorf("%w: %s", ErrLinkDepth, childPath)
			}
			target := l.Target
			if len(target) == 0 || target[0] != '/' {
				target = joinPath(n.path, target)
			}
			return f.resolveDepth(target, depth+1)
		default:
			return nil, fmt.Errorf("%w: link kind %d at %s", ErrUnsupported, l.Kind, childPath)
		}
	}

	if li, ok := h.Message(message.TypeLinkInfo).(*message.LinkInfo); ok && !f.cfg.IsUndefined(li.FractalHeapAddr) {
		return nil, fmt.Errorf("%w: dense link storage in %s", ErrUnsupported, n.path)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, childPath)
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// headerCapacity leaves room for later messages so that adding links and
// attributes rarely moves a header.
func headerCapacity(need int) int {
	return max(object.MinGroupChunkSize, need+need/2)
}

// writeHeader allocates and writes a new object header.
func (f *File) writeHeader(msgs []message.Message, chunkSize int) (uint64, error) {
	raw, err := object.Encode(msgs, f.cfg, chunkSize)
	if err != nil {
		return 0, err
	}
	addr := f.space.Alloc(uint64(len(raw)), alloc.KindHeader)
	if _, err := f.file.WriteAt(raw, int64(addr)); err != nil {
		return 0, fmt.Errorf("writing object header: %w", err)
	}
	return addr, nil
}

// store replaces the messages of n. The header is rewritten in place when
// the messages fit; otherwise it moves to new space and the link pointing
// at it is updated, which may move the parent in turn.
func (f *File) store(n *node, msgs []message.Message) error {
	need, err := object.DataSize(msgs, f.cfg)
	if err != nil {
		return err
	}
	h := n.header
	if h.Rewritable() && !h.Continued && need <= h.ChunkSize {
		raw, err := object.Encode(msgs, f.cfg, h.ChunkSize)
		if err != nil {
			return err
		}
		if _, err := f.file.WriteAt(raw, int64(h.Address)); err != nil {
			return fmt.Errorf("rewriting object header: %w", err)
		}
		h.Messages = msgs
		return nil
	}

	chunk := headerCapacity(need)
	addr, err := f.writeHeader(msgs, chunk)
	if err != nil {
		return err
	}
	f.space.Free(h.Address, uint64(h.Size()))
	f.log.Debug().Str("path", n.path).Uint64("from", h.Address).Uint64("to", addr).Int("size", chunk).Msg("moved object header")
	n.header = &object.Header{Address: addr, Messages: msgs, ChunkSize: chunk}

	if n.parent == nil {
		f.sb.RootAddress = addr
		return f.sb.WriteTo(f.file)
	}
	parent := n.parent
	pmsgs := make([]message.Message, len(parent.header.Messages))
	found := false
	for i, m := range parent.header.Messages {
		if l, ok := m.(*message.Link); ok && l.Name == n.name && l.Kind == message.LinkHard {
			moved := *l
			moved.Address = addr
			m = &moved
			found = true
		}
		pmsgs[i] = m
	}
	if !found {
		return fmt.Errorf("%w: link %s vanished from %s", ErrNotFound, n.name, parent.path)
	}
	return f.store(parent, pmsgs)
}

// addLink adds a hard link to group n.
func (f *File) addLink(n *node, name string, addr uint64) error {
	for _, l := range n.header.Links() {
		if l.Name == name {
			return fmt.Errorf("%w: %s", ErrExists, joinPath(n.path, name))
		}
	}
	msgs := append(append([]message.Message(nil), n.header.Messages...), message.NewHardLink(name, addr))
	return f.store(n, msgs)
}

// ensureGroups resolves path, creating every missing group along it.
func (f *File) ensureGroups(path string) (*node, error) {
	n, err := f.root()
	if err != nil {
		return nil, err
	}
	for _, name := range SplitPath(path) {
		ch, err := f.child(n, name, 0)
		if err == nil {
			if !ch.header.IsGroup() {
				return nil, fmt.Errorf("%w: %s", ErrNotGroup, ch.path)
			}
			n = ch
			continue
		}
		if !isNotFound(err) {
			return nil, err
		}
		if n, err = f.createGroup(n, name); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (f *File) createGroup(parent *node, name string) (*node, error) {
	msgs := object.NewGroupMessages(f.cfg)
	addr, err := f.writeHeader(msgs, object.MinGroupChunkSize)
	if err != nil {
		return nil, err
	}
	if err := f.addLink(parent, name, addr); err != nil {
		return nil, err
	}
	f.log.Debug().Str("path", joinPath(parent.path, name)).Msg("created group")
	h := &object.Header{Address: addr, Messages: msgs, ChunkSize: object.MinGroupChunkSize}
	return &node{path: joinPath(parent.path, name), name: name, header: h, parent: parent}, nil
}
