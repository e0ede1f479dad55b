package hdf5

import (
	"errors"
	"fmt"
	"sort"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// handle is the path-addressed part shared by groups and datasets. Handles
// resolve their path on every call, so they stay valid when headers move.
type handle struct {
	file *File
	path string
}

// Path returns the absolute path of the object.
func (h handle) Path() string { return h.path }

// File returns the file the object belongs to.
func (h handle) File() *File { return h.file }

// Group is a group in an HDF5 file.
type Group struct {
	handle
}

// Root returns the root group of the file.
func (f *File) Root() *Group {
	return &Group{handle{file: f, path: "/"}}
}

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if err := f.acquire(false); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	n, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	if !n.header.IsGroup() {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, n.path)
	}
	return &Group{handle{file: f, path: n.path}}, nil
}

// CreateGroup creates the group at path along with any missing parents.
// It fails with ErrExists when path already names an object.
func (f *File) CreateGroup(path string) (*Group, error) {
	if err := f.acquire(true); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	parentPath, name, err := splitParent(path)
	if err != nil {
		return nil, err
	}
	parent, err := f.ensureGroups(parentPath)
	if err != nil {
		return nil, err
	}
	if _, err := f.child(parent, name, 0); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, joinPath(parent.path, name))
	} else if !isNotFound(err) {
		return nil, err
	}
	n, err := f.createGroup(parent, name)
	if err != nil {
		return nil, err
	}
	return &Group{handle{file: f, path: n.path}}, nil
}

// EnsureGroup returns the group at path, creating it and any missing
// parents.
func (f *File) EnsureGroup(path string) (*Group, error) {
	if err := f.acquire(true); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	n, err := f.ensureGroups(path)
	if err != nil {
		return nil, err
	}
	return &Group{handle{file: f, path: n.path}}, nil
}

// Exists reports whether path names an object. A path running through a
// dataset does not exist.
func (f *File) Exists(path string) (bool, error) {
	if err := f.acquire(false); err != nil {
		return false, err
	}
	defer f.mu.Unlock()

	_, err := f.resolve(path)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err), errors.Is(err, ErrNotGroup):
		return false, nil
	}
	return false, err
}

// Members returns the sorted names of the group's links.
func (g *Group) Members() ([]string, error) {
	f := g.file
	if err := f.acquire(false); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	n, err := f.resolve(g.path)
	if err != nil {
		return nil, err
	}
	if !n.header.IsGroup() {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, n.path)
	}
	var names []string
	for _, l := range n.header.Links() {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names, nil
}

// OpenGroup opens a child group.
func (g *Group) OpenGroup(name string) (*Group, error) {
	return g.file.OpenGroup(joinPath(g.path, name))
}

// OpenDataset opens a child dataset.
func (g *Group) OpenDataset(name string) (*Dataset, error) {
	return g.file.OpenDataset(joinPath(g.path, name))
}

// CreateGroup creates a child group.
func (g *Group) CreateGroup(name string) (*Group, error) {
	return g.file.CreateGroup(joinPath(g.path, name))
}

// CreateDataset creates a child dataset.
func (g *Group) CreateDataset(name string, t Type, dims []uint64, opts ...DatasetOption) (*Dataset, error) {
	return g.file.CreateDataset(joinPath(g.path, name), t, dims, opts...)
}
