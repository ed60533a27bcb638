package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/rules"
	"github.com/platinummonkey/protoguard/pkg/schema"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// Snapshot is one fully built, immutable generation of schema and rules.
type Snapshot struct {
	ManifestPath string
	Manifest     *rules.Manifest
	Schema       *schema.Schema
	Engine       *validate.Engine
	Validator    *observability.Instrumented
	LoadedAt     time.Time
}

// Options control how a snapshot is built.
type Options struct {
	// Mode overrides the manifest's default mode when set.
	Mode *validate.Mode
	// MaxDepth overrides validate.DefaultMaxDepth when positive.
	MaxDepth int
	Metrics  *observability.Metrics
	Logger   logrus.FieldLogger
}

// Build loads the manifest at path, compiles the proto files it names and
// builds a sealed engine.
func Build(ctx context.Context, path string, opts Options) (*Snapshot, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	manifest, err := rules.LoadManifest(path)
	if err != nil {
		return nil, err
	}

	s, err := manifest.LoadSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile proto files: %w", err)
	}

	return FromSchema(path, manifest, s, opts)
}

// FromSchema builds a snapshot from an already compiled schema.
func FromSchema(path string, manifest *rules.Manifest, s *schema.Schema, opts Options) (*Snapshot, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	reg, err := rules.Build(s, manifest, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build rules: %w", err)
	}

	mode, err := validate.ParseMode(manifest.Defaults.Mode)
	if err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	if opts.Mode != nil {
		mode = *opts.Mode
	}

	engineOpts := []validate.Option{validate.WithMode(mode)}
	if opts.MaxDepth > 0 {
		engineOpts = append(engineOpts, validate.WithMaxDepth(opts.MaxDepth))
	}
	engine := validate.New(reg, engineOpts...)

	inst, err := observability.NewInstrumented(engine, opts.Metrics)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ManifestPath: path,
		Manifest:     manifest,
		Schema:       s,
		Engine:       engine,
		Validator:    inst,
		LoadedAt:     time.Now(),
	}, nil
}

// WatchRoots returns the directories whose changes trigger a rebuild: the
// manifest's directory and every proto import path.
func (s *Snapshot) WatchRoots() []string {
	roots := []string{filepath.Dir(s.ManifestPath)}
	seen := map[string]bool{roots[0]: true}
	for _, dir := range s.Manifest.ImportPaths() {
		if !seen[dir] {
			seen[dir] = true
			roots = append(roots, dir)
		}
	}
	return roots
}
