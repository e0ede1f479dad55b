package hdf5

import (
	"errors"
)

// ErrStopWalk can be returned from a walk callback to stop walking without
// an error.
var ErrStopWalk = errors.New("walk stopped")

// WalkFunc is called for each object during traversal. obj is a *Group or
// a *Dataset; err reports a member that could not be opened as either.
// Returning a non-nil error stops the walk.
type WalkFunc func(path string, obj any, err error) error

// Walk traverses the groups and datasets below g, calling fn for g first
// and then for each member in name order. ErrStopWalk ends the walk early
// and is not returned.
//
//	hdf5.Walk(f.Root(), func(path string, obj any, err error) error {
//	    if ds, ok := obj.(*hdf5.Dataset); ok {
//	        fmt.Println(path, ds.Shape())
//	    }
//	    return err
//	})
func Walk(g *Group, fn WalkFunc) error {
	err := walkGroup(g, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}
	members, err := g.Members()
	if err != nil {
		return err
	}
	for _, name := range members {
		childPath := joinPath(g.Path(), name)
		child, err := g.OpenGroup(name)
		if err == nil {
			if err := walkGroup(child, fn); err != nil {
				return err
			}
			continue
		}
		if errors.Is(err, ErrNotGroup) {
			ds, dsErr := g.OpenDataset(name)
			if dsErr == nil {
				if err := fn(childPath, ds, nil); err != nil {
					return err
				}
				continue
			}
			err = dsErr
		}
		if err := fn(childPath, nil, err); err != nil {
			return err
		}
	}
	return nil
}

// AttrInfo describes one attribute met by WalkAttrs.
type AttrInfo struct {
	// Path is the attribute path, e.g. "/RESQML/g/pressure@units".
	Path       string
	ObjectPath string
	Attr       *Attribute
}

// WalkAttrs calls fn for every attribute of every group and dataset in the
// file. ErrStopWalk ends the walk early and is not returned.
func (f *File) WalkAttrs(fn func(AttrInfo) error) error {
	return Walk(f.Root(), func(path string, obj any, err error) error {
		if err != nil || obj == nil {
			return nil
		}
		attrs, err := f.Attributes(path)
		if err != nil {
			return err
		}
		for _, a := range attrs {
			info := AttrInfo{Path: JoinAttrPath(path, a.Name), ObjectPath: path, Attr: a}
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}
