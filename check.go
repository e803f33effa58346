package protorecon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/albertocavalcante/go-protorecon/protogen"
)

// DriftKind classifies a difference between generated and on-disk files.
type DriftKind string

const (
	// DriftMissing means the file would be generated but does not exist.
	DriftMissing DriftKind = "missing"

	// DriftModified means the file exists with different content.
	DriftModified DriftKind = "modified"

	// DriftStale means a .proto file exists that generation does not produce.
	DriftStale DriftKind = "stale"
)

// FileDrift is one differing file.
type FileDrift struct {
	// Path is slash-separated and relative to the output root.
	Path string    `json:"path"`
	Kind DriftKind `json:"kind"`

	// Diff is a unified diff from the on-disk content to the generated
	// content. It is empty for stale files.
	Diff string `json:"diff,omitempty"`
}

// DriftReport describes how an output directory differs from a fresh
// generation.
//
// Example usage:
//
//	result, _ := protorecon.GenerateFiles(ctx, bundles)
//	report, _ := protorecon.DiffOutputs("proto", result.Outputs)
//	for _, f := range report.Files {
//	    fmt.Print(f.Diff)
//	}
type DriftReport struct {
	// Files is sorted by path.
	Files []FileDrift `json:"files,omitempty"`
}

// IsEmpty returns true if the directory matches the generated outputs.
func (r *DriftReport) IsEmpty() bool {
	return len(r.Files) == 0
}

// Count returns how many files have the given kind.
func (r *DriftReport) Count(kind DriftKind) int {
	n := 0
	for _, f := range r.Files {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// DiffOutputs compares outputs with the files below dir. A dir that does
// not exist is treated as empty.
func DiffOutputs(dir string, outputs []*protogen.Output) (*DriftReport, error) {
	report := &DriftReport{}
	generated := make(map[string]bool, len(outputs))

	for _, o := range outputs {
		generated[o.Path] = true
		onDisk, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(o.Path)))
		kind := DriftModified
		switch {
		case errors.Is(err, fs.ErrNotExist):
			kind = DriftMissing
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", o.Path, err)
		case string(onDisk) == string(o.Content):
			continue
		}
		report.Files = append(report.Files, FileDrift{
			Path: o.Path,
			Kind: kind,
			Diff: unifiedDiff(o.Path, string(onDisk), string(o.Content)),
		})
	}

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(path, ".proto") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !generated[rel] {
			report.Files = append(report.Files, FileDrift{Path: rel, Kind: DriftStale})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Slice(report.Files, func(i, j int) bool {
		return report.Files[i].Path < report.Files[j].Path
	})
	return report, nil
}

func unifiedDiff(path, before, after string) string {
	edits := myers.ComputeEdits(span.URIFromPath(path), before, after)
	return fmt.Sprint(gotextdiff.ToUnified("a/"+path, "b/"+path, before, edits))
}

// Check compares outputs with dir and returns an error wrapping ErrDrift
// if they differ. The report is returned either way.
func Check(dir string, outputs []*protogen.Output) (*DriftReport, error) {
	report, err := DiffOutputs(dir, outputs)
	if err != nil {
		return nil, err
	}
	if !report.IsEmpty() {
		return report, fmt.Errorf("%w: %d missing, %d modified, %d stale", ErrDrift,
			report.Count(DriftMissing), report.Count(DriftModified), report.Count(DriftStale))
	}
	return report, nil
}
