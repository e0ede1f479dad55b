package hdf5

import (
	"fmt"
	"strings"
)

// ParseAttrPath parses an attribute path into object path and attribute name.
// Path format: /group/subgroup/object@attribute_name
//
// Examples:
//   - "/@root_attr" -> objectPath="/", attrName="root_attr"
//   - "/RESQML/g/pressure@units" -> objectPath="/RESQML/g/pressure", attrName="units"
func ParseAttrPath(path string) (objectPath, attrName string, err error) {
	if path == "" {
		return "", "", fmt.Errorf("%w: empty attribute path", ErrInvalidPath)
	}

	atIdx := strings.LastIndex(path, "@")
	if atIdx == -1 {
		return "", "", fmt.Errorf("%w: attribute path must contain '@' separator: %s", ErrInvalidPath, path)
	}

	objectPath = CleanPath(path[:atIdx])
	attrName = path[atIdx+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("%w: attribute name cannot be empty: %s", ErrInvalidPath, path)
	}
	return objectPath, attrName, nil
}

// JoinAttrPath creates an attribute path from object path and attribute name.
func JoinAttrPath(objectPath, attrName string) string {
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// SplitPath splits a path into its components.
// Leading and trailing slashes are handled, empty components are removed.
//
// Examples:
//   - "/" -> []string{}
//   - "/foo" -> []string{"foo"}
//   - "/foo//bar/" -> []string{"foo", "bar"}
func SplitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// CleanPath normalizes a path, ensuring it starts with "/" and has no
// trailing or repeated slashes.
func CleanPath(path string) string {
	return "/" + strings.Join(SplitPath(path), "/")
}

// splitParent returns the parent path and the last component of path.
func splitParent(path string) (string, string, error) {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return "", "", fmt.Errorf("%w: %q names the root group", ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "." || p == ".." {
			return "", "", fmt.Errorf("%w: relative component in %q", ErrInvalidPath, path)
		}
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}
