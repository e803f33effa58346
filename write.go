package protorecon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/albertocavalcante/go-protorecon/descset"
	"github.com/albertocavalcante/go-protorecon/protogen"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// WriteFiles writes every output below dir. Each file is replaced
// atomically; at most concurrency files are written at once.
func WriteFiles(ctx context.Context, dir string, outputs []*protogen.Output, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, o := range outputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return writeFile(filepath.Join(dir, filepath.FromSlash(o.Path)), o.Content)
		})
	}
	return g.Wait()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteDescriptorSet writes set in binary form to path.
func WriteDescriptorSet(path string, set *descriptorpb.FileDescriptorSet) error {
	data, err := descset.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal descriptor set: %w", err)
	}
	return writeFile(path, data)
}

// WriteFiles writes the result's outputs below dir.
func (r *Result) WriteFiles(ctx context.Context, dir string) error {
	if err := WriteFiles(ctx, dir, r.Outputs, r.concurrency); err != nil {
		return err
	}
	r.log().Info("Wrote schema files", zap.String("dir", dir), zap.Int("files", len(r.Outputs)))
	return nil
}

func (r *Result) log() *zap.Logger {
	if r.logger == nil {
		return zap.NewNop()
	}
	return r.logger
}
