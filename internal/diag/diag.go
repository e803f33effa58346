// Package diag collects the recoverable problems found during a run.
//
// Every warning is both logged and retained, so a caller can inspect the
// full list after the run completes.
package diag

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stage names the pipeline stage that raised a warning.
type Stage string

const (
	StageParse     Stage = "parse"
	StageLoad      Stage = "load"
	StageExtract   Stage = "extract"
	StageSerialize Stage = "serialize"
	StageValidate  Stage = "validate"
)

// Warning is a recoverable problem. Module is a package name such as
// "WACommon". Fields holds the structured context of the log line.
type Warning struct {
	Stage   Stage             `json:"stage"`
	Module  string            `json:"module,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (w Warning) String() string {
	if w.Module == "" {
		return fmt.Sprintf("[%s] %s", w.Stage, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Stage, w.Module, w.Message)
}

// Collector accumulates warnings. A nil *Collector discards them. It is
// safe for concurrent use.
type Collector struct {
	logger *zap.Logger

	mu       sync.Mutex
	warnings []Warning
}

// NewCollector returns a collector that logs through logger. A nil logger
// disables logging but warnings are still retained.
func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger}
}

// Warn records a warning with optional structured fields for the log line.
func (c *Collector) Warn(stage Stage, module, msg string, fields ...zap.Field) {
	if c == nil {
		return
	}
	w := Warning{Stage: stage, Module: module, Message: msg, Fields: fieldStrings(fields)}
	c.mu.Lock()
	c.warnings = append(c.warnings, w)
	c.mu.Unlock()
	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.String("stage", string(stage)))
	if module != "" {
		all = append(all, zap.String("module", module))
	}
	c.logger.Warn(msg, append(all, fields...)...)
}

// fieldStrings renders zap fields the way a map encoder sees them.
func fieldStrings(fields []zap.Field) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	out := make(map[string]string, len(enc.Fields))
	for k, v := range enc.Fields {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Logger returns the underlying logger.
func (c *Collector) Logger() *zap.Logger {
	if c == nil {
		return zap.NewNop()
	}
	return c.logger
}

// Warnings returns a copy of everything recorded so far.
func (c *Collector) Warnings() []Warning {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Len returns the number of recorded warnings.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warnings)
}
