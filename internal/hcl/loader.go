package hcl

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/fsutil"
	"github.com/vk/dispatchgrid/internal/schema"
)

// Extension is the file extension of workflow files.
const Extension = ".hcl"

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

type sourceFile struct {
	name string
	src  []byte
}

// Load implements config.Loader. Each path may be a file or a directory,
// which is searched recursively for workflow files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)

	var files []sourceFile
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to access workflow path: %w", err)
		}

		names := []string{p}
		if info.IsDir() {
			rel, err := fsutil.FindFilesByExtension(os.DirFS(p), ".", Extension)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to walk '%s': %w", p, err)
			}
			names = names[:0]
			for _, r := range rel {
				names = append(names, filepath.Join(p, filepath.FromSlash(r)))
			}
		}
		for _, name := range names {
			src, err := os.ReadFile(name)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read '%s': %w", name, err)
			}
			files = append(files, sourceFile{name: name, src: src})
		}
	}
	logger.Debug("Workflow files collected from disk.", "count", len(files))

	return l.parse(ctx, files)
}

// LoadFS implements config.Loader.
func (l *Loader) LoadFS(ctx context.Context, fsys fs.FS) (*config.Model, config.Converter, error) {
	names, err := fsutil.FindFilesByExtension(fsys, ".", Extension)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk workflow filesystem: %w", err)
	}

	files := make([]sourceFile, 0, len(names))
	for _, name := range names {
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read '%s': %w", name, err)
		}
		files = append(files, sourceFile{name: name, src: src})
	}
	return l.parse(ctx, files)
}

// parse decodes every file and merges the workflows into one model.
func (l *Loader) parse(ctx context.Context, files []sourceFile) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no %s workflow files found", Extension)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	parser := hclparse.NewParser()
	model := &config.Model{Workflows: make(map[string]*config.Workflow)}

	for _, f := range files {
		file, diags := parser.ParseHCL(f.src, f.name)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", f.name, diags)
		}

		var decoded schema.File
		if diags := gohcl.DecodeBody(file.Body, nil, &decoded); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode %s: %w", f.name, diags)
		}

		for _, wf := range decoded.Workflows {
			translated, err := translateWorkflow(wf, f.name)
			if err != nil {
				return nil, nil, err
			}
			if prev, dup := model.Workflows[wf.Name]; dup {
				return nil, nil, fmt.Errorf("workflow '%s' is defined in both %s and %s", wf.Name, prev.Source, f.name)
			}
			model.Workflows[wf.Name] = translated
			logger.Debug("Workflow loaded.", "workflow", wf.Name, "file", f.name, "steps", len(translated.Steps))
		}
	}

	if len(model.Workflows) == 0 {
		return nil, nil, fmt.Errorf("no workflow blocks found in %d file(s)", len(files))
	}
	return model, NewConverter(), nil
}

// diagError renders a single diagnostic as an error.
func diagError(summary, detail string, subject *hcl.Range) error {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  subject,
	}}
}
