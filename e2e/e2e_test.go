package e2e

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/reflect/protoreflect"

	protorecon "github.com/albertocavalcante/go-protorecon"
	"github.com/albertocavalcante/go-protorecon/descset"
	"github.com/albertocavalcante/go-protorecon/internal/fixture"
)

// writeBundle stores content as a bundle file and returns its path.
func writeBundle(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write bundle: %v", err)
	}
	return path
}

// generateToDir runs the whole pipeline and writes its files to a fresh
// directory.
func generateToDir(t *testing.T, bundles []string, opts ...protorecon.Option) (*protorecon.Result, string) {
	t.Helper()
	ctx := context.Background()
	opts = append(opts, protorecon.WithDescriptorSet())
	result, err := protorecon.GenerateFiles(ctx, bundles, opts...)
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	dir := t.TempDir()
	if err := result.WriteFiles(ctx, dir); err != nil {
		t.Fatalf("Writing files failed: %v", err)
	}
	return result, dir
}

func outputPaths(result *protorecon.Result) []string {
	paths := make([]string, len(result.Outputs))
	for i, o := range result.Outputs {
		paths[i] = o.Path
	}
	return paths
}

// shape flattens a file's declarations into sortable lines so two
// descriptor sources can be compared.
func shape(files []protoreflect.FileDescriptor) []string {
	var out []string
	var visitEnums func(enums protoreflect.EnumDescriptors)
	visitEnums = func(enums protoreflect.EnumDescriptors) {
		for i := 0; i < enums.Len(); i++ {
			e := enums.Get(i)
			for j := 0; j < e.Values().Len(); j++ {
				v := e.Values().Get(j)
				out = append(out, fmt.Sprintf("%s.%s=%d", e.FullName(), v.Name(), v.Number()))
			}
		}
	}
	var visit func(msgs protoreflect.MessageDescriptors)
	visit = func(msgs protoreflect.MessageDescriptors) {
		for i := 0; i < msgs.Len(); i++ {
			m := msgs.Get(i)
			if m.IsMapEntry() {
				continue
			}
			out = append(out, string(m.FullName()))
			for j := 0; j < m.Fields().Len(); j++ {
				f := m.Fields().Get(j)
				typ := f.Kind().String()
				switch {
				case f.IsMap():
					typ = fmt.Sprintf("map<%s,%s>", f.MapKey().Kind(), f.MapValue().Kind())
				case f.Message() != nil:
					typ = string(f.Message().FullName())
				case f.Enum() != nil:
					typ = string(f.Enum().FullName())
				}
				out = append(out, fmt.Sprintf("%s %s.%s=%d:%s", f.Cardinality(), m.FullName(), f.Name(), f.Number(), typ))
			}
			visitEnums(m.Enums())
			visit(m.Messages())
		}
	}
	for _, fd := range files {
		visitEnums(fd.Enums())
		visit(fd.Messages())
	}
	sort.Strings(out)
	return out
}

func TestE2E_ParsedFilesMatchDescriptorSet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	bundle := writeBundle(t, "bundle.js", fixture.Web)
	result, dir := generateToDir(t, []string{bundle})

	parser := protoparse.Parser{ImportPaths: []string{dir}}
	parsed, err := parser.ParseFiles(outputPaths(result)...)
	if err != nil {
		t.Fatalf("Generated files do not parse: %v", err)
	}
	var fromText []protoreflect.FileDescriptor
	for _, fd := range parsed {
		fromText = append(fromText, fd.UnwrapFile())
	}

	registry, err := descset.Link(result.DescriptorSet)
	if err != nil {
		t.Fatalf("Descriptor set does not link: %v", err)
	}
	var fromSet []protoreflect.FileDescriptor
	for _, path := range outputPaths(result) {
		fd, err := registry.FindFileByPath(path)
		if err != nil {
			t.Fatalf("Descriptor set is missing %s: %v", path, err)
		}
		fromSet = append(fromSet, fd)
	}

	if diff := cmp.Diff(shape(fromSet), shape(fromText)); diff != "" {
		t.Errorf("Text and descriptor set disagree (-set +text):\n%s", diff)
	}
}

func TestE2E_MultipleBundles(t *testing.T) {
	web := writeBundle(t, "web.js", fixture.Web)
	extra, err := filepath.Abs(filepath.Join("testdata", "extra.js"))
	if err != nil {
		t.Fatal(err)
	}

	result, _ := generateToDir(t, []string{web, extra})

	out, ok := result.Output("WAExtra")
	if !ok {
		t.Fatalf("No output for WAExtra, got %v", outputPaths(result))
	}
	content := string(out.Content)
	for _, want := range []string{
		`import "waCommon/WACommon.proto";`,
		"WACommon.MessageKey key = 1;",
		"repeated string tags = 3;",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("WAExtra output missing %q:\n%s", want, content)
		}
	}
	if out.Source != "WAExtra.pb" {
		t.Errorf("Source = %q, want WAExtra.pb", out.Source)
	}

	deps := result.Graph.DirectDeps("WAExtra.pb")
	if !contains(deps, "WACommon.pb") {
		t.Errorf("WAExtra.pb deps = %v, want WACommon.pb", deps)
	}
}

func TestE2E_WriteThenCheck(t *testing.T) {
	bundle := writeBundle(t, "bundle.js", fixture.Web)
	result, dir := generateToDir(t, []string{bundle})

	report, err := protorecon.Check(dir, result.Outputs)
	if err != nil {
		t.Fatalf("Fresh output reported drift: %v", err)
	}
	if !report.IsEmpty() {
		t.Errorf("Expected no drift, got %+v", report.Files)
	}

	// A second run must reproduce the same bytes.
	again, err := protorecon.GenerateFiles(context.Background(), []string{bundle})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if _, err := protorecon.Check(dir, again.Outputs); err != nil {
		t.Errorf("Second run drifted: %v", err)
	}
}

// TestE2E_Protoc compiles the generated files with protoc when it is
// installed.
func TestE2E_Protoc(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}
	protoc, err := exec.LookPath("protoc")
	if err != nil {
		t.Skip("protoc not found in PATH")
	}

	bundle := writeBundle(t, "bundle.js", fixture.Web)
	result, dir := generateToDir(t, []string{bundle})

	args := []string{"-I", dir, "--descriptor_set_out", filepath.Join(t.TempDir(), "set.pb")}
	args = append(args, outputPaths(result)...)
	cmd := exec.Command(protoc, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("protoc failed: %v\n%s", err, out)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
