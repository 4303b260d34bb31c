package nodes

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/security"
)

// FileReadConfig configures FileRead. When StreamLines is set, each
// line is forwarded as its own output record instead of the whole file
// as one blob, matching the Rust original's file_ops.rs.
type FileReadConfig struct {
	PathTemplate string
	StreamLines  bool
}

// FileRead opens Cfg.PathTemplate (rendered per input record, then
// passed through sanitizeFilePath) once per input record and forwards its contents as
// {"content": ..., "path": ..., "original_input": record}, one output
// record per line when Cfg.StreamLines is set, one otherwise.
type FileRead struct {
	Cfg FileReadConfig
}

// sanitizeFilePath cleans a rendered path for FileRead/FileWrite. An
// absolute path is a deliberate workflow-author choice and is accepted
// after cleaning (filepath.Clean leaves no ".." segments in one); a
// relative path came from record data more often than not and goes
// through security.SanitizePath's traversal rejection.
func sanitizeFilePath(rendered string) (string, error) {
	cleaned := filepath.Clean(strings.ReplaceAll(rendered, "\x00", ""))
	if filepath.IsAbs(cleaned) {
		return cleaned, nil
	}
	return security.SanitizePath(rendered)
}

func (f FileRead) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		rendered := expression.Render(f.Cfg.PathTemplate, v)
		path, err := sanitizeFilePath(rendered)
		if err != nil {
			outputs[0] <- record.Map(map[string]record.Record{
				"error":          record.String(err.Error()),
				"original_input": v,
			})
			continue
		}

		if err := f.readInto(path, v, outputs[0]); err != nil {
			outputs[0] <- record.Map(map[string]record.Record{
				"error":          record.String(err.Error()),
				"original_input": v,
			})
		}
	}
	return nil
}

func (f FileRead) readInto(path string, in record.Record, out Out) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file read: %w", err)
	}
	defer file.Close()

	if !f.Cfg.StreamLines {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("file read: %w", err)
		}
		out <- record.Map(map[string]record.Record{
			"content":        record.String(string(data)),
			"path":           record.String(path),
			"original_input": in,
		})
		return nil
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		out <- record.Map(map[string]record.Record{
			"content":        record.String(scanner.Text()),
			"path":           record.String(path),
			"original_input": in,
		})
	}
	return scanner.Err()
}

// FileWriteConfig configures FileWrite. Mode is "overwrite" (default)
// or "append".
type FileWriteConfig struct {
	PathTemplate    string
	ContentTemplate string
	Mode            string
}

// FileWrite renders Cfg.ContentTemplate and writes it to
// Cfg.PathTemplate (also passed through sanitizeFilePath) once
// per input record, forwarding the record unchanged on success.
type FileWrite struct {
	Cfg FileWriteConfig
}

func (f FileWrite) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		if err := f.writeOne(v); err != nil {
			return fmt.Errorf("file write: %w", err)
		}
		outputs[0] <- v
	}
	return nil
}

func (f FileWrite) writeOne(v record.Record) error {
	rendered := expression.Render(f.Cfg.PathTemplate, v)
	path, err := sanitizeFilePath(rendered)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if f.Cfg.Mode == "append" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	content := expression.Render(f.Cfg.ContentTemplate, v)
	_, err = file.WriteString(content)
	return err
}
