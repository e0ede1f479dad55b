package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-hdfproxy/hdf5"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type objectReport struct {
	Path       string         `json:"path"`
	Kind       string         `json:"kind"`
	Type       string         `json:"type,omitempty"`
	Dims       []uint64       `json:"dims,omitempty"`
	Layout     string         `json:"layout,omitempty"`
	Chunks     []uint64       `json:"chunks,omitempty"`
	Filters    []string       `json:"filters,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type fileReport struct {
	Path    string          `json:"path"`
	Version int             `json:"superblock_version"`
	Objects []*objectReport `json:"objects"`
}

func inspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the groups, datasets and attributes of a file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := inspect(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON.")
	return cmd
}

func inspect(path string) (*fileReport, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	report := &fileReport{Path: path, Version: f.Version()}
	byPath := make(map[string]*objectReport)
	err = hdf5.Walk(f.Root(), func(p string, obj any, err error) error {
		o := &objectReport{Path: p}
		switch obj := obj.(type) {
		case *hdf5.Group:
			o.Kind = "group"
		case *hdf5.Dataset:
			o.Kind = "dataset"
			info, err := obj.Info()
			if err != nil {
				o.Error = err.Error()
				break
			}
			o.Type = info.Type.String()
			o.Dims = info.Dims
			o.Layout = info.Layout
			o.Chunks = info.Chunks
			o.Filters = info.Filters
		default:
			o.Kind = "unknown"
			if err != nil {
				o.Error = err.Error()
			}
		}
		report.Objects = append(report.Objects, o)
		byPath[p] = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = f.WalkAttrs(func(a hdf5.AttrInfo) error {
		o, ok := byPath[a.ObjectPath]
		if !ok {
			return nil
		}
		if o.Attributes == nil {
			o.Attributes = make(map[string]any)
		}
		o.Attributes[a.Attr.Name] = a.Attr.Value()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func printReport(w io.Writer, r *fileReport) error {
	fmt.Fprintf(w, "%s (superblock v%d)\n", r.Path, r.Version)
	for _, o := range r.Objects {
		depth := strings.Count(strings.TrimPrefix(o.Path, "/"), "/")
		if o.Path == "/" {
			depth = -1
		}
		indent := strings.Repeat("  ", depth+1)
		switch {
		case o.Error != "":
			fmt.Fprintf(w, "%s%s [%s] error: %s\n", indent, o.Path, o.Kind, o.Error)
		case o.Kind == "dataset":
			fmt.Fprintf(w, "%s%s %s %v %s", indent, o.Path, o.Type, o.Dims, o.Layout)
			if len(o.Filters) > 0 {
				fmt.Fprintf(w, " filters=%s", strings.Join(o.Filters, ","))
			}
			fmt.Fprintln(w)
		default:
			fmt.Fprintf(w, "%s%s/\n", indent, strings.TrimSuffix(o.Path, "/"))
		}
		names := make([]string, 0, len(o.Attributes))
		for name := range o.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s  @%s = %v\n", indent, name, o.Attributes[name])
		}
	}
	return nil
}
