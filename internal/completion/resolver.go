package completion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// SpecName is the name of the root node of every returned Spec.
	SpecName = "yarn"

	// DefaultIcon decorates every suggested script.
	DefaultIcon = "✨"

	// DefaultBinary is the package manager executable.
	DefaultBinary = "yarn"

	// workspaceRootMarker is the path segment that follows the workspace root
	// in Yarn's cacheFolder setting.
	workspaceRootMarker = ".yarn"
)

// ShellExecutor runs a shell command in the host's current directory and
// returns its standard output without trailing newlines.
type ShellExecutor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// ShellExecutorFunc adapts an ordinary function to ShellExecutor.
type ShellExecutorFunc func(ctx context.Context, command string) (string, error)

// Execute calls f(ctx, command).
func (f ShellExecutorFunc) Execute(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

// Options configures a Resolver. Zero values select the defaults.
type Options struct {
	// Binary is the package manager executable invoked through the shell.
	Binary string
	// Icon decorates every subcommand.
	Icon string
	// MaxParallelReads bounds concurrent manifest reads. Zero means unbounded.
	MaxParallelReads int
	// Logger is optional.
	Logger *zap.Logger
}

// Resolver produces the completion Spec of workspace scripts for the
// directory the shell is in.
type Resolver struct {
	cache            *Cache
	binary           string
	icon             string
	maxParallelReads int
	logger           *zap.Logger
}

// NewResolver creates a Resolver backed by cache. A nil cache gets a fresh one.
func NewResolver(cache *Cache, opts Options) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Icon == "" {
		opts.Icon = DefaultIcon
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Resolver{
		cache:            cache,
		binary:           opts.Binary,
		icon:             opts.Icon,
		maxParallelReads: opts.MaxParallelReads,
		logger:           opts.Logger,
	}
}

// Cache returns the cache the resolver reads and fills.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the completable scripts for the shell's current directory.
// Cached scripts are reused while the directory stays inside the cached
// workspace root. Unreadable or malformed manifests contribute nothing; errors
// from the working directory, root discovery or workspace listing are returned.
func (r *Resolver) Resolve(ctx context.Context, shell ShellExecutor) (*Spec, error) {
	currentDir, err := shell.Execute(ctx, "pwd")
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if r.cache.invalidateOutside(currentDir) {
		r.logger.Debug("left cached workspace root, cache cleared", zap.String("dir", currentDir))
	}

	if !r.cache.isPrimed() {
		workspaceRoot, err := r.findWorkspaceRoot(ctx, shell)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("discovered workspace root",
			zap.String("dir", currentDir),
			zap.String("workspaceRoot", workspaceRoot))
		r.cache.prime(currentDir, workspaceRoot)
	}

	if cached := r.cache.Scripts(); len(cached) > 0 {
		return NewSpec(SpecName, cached, r.icon), nil
	}

	scripts, err := r.collectScripts(ctx, shell)
	if err != nil {
		return nil, err
	}

	r.cache.storeIfEmpty(scripts)
	return NewSpec(SpecName, scripts, r.icon), nil
}

// findWorkspaceRoot derives the workspace root from Yarn's cacheFolder, which
// lives at <root>/.yarn/cache. Without the marker the root is empty.
func (r *Resolver) findWorkspaceRoot(ctx context.Context, shell ShellExecutor) (string, error) {
	out, err := shell.Execute(ctx, r.binary+" config get cacheFolder")
	if err != nil {
		return "", fmt.Errorf("failed to read cacheFolder: %w", err)
	}

	root, _ := ParseWorkspaceRoot(out)
	return root, nil
}

// ParseWorkspaceRoot returns the part of a cacheFolder value that precedes
// the first ".yarn" segment. It reports false, with an empty root, when the
// marker is missing.
func ParseWorkspaceRoot(cacheFolder string) (string, bool) {
	idx := strings.Index(cacheFolder, workspaceRootMarker)
	if idx < 0 {
		return "", false
	}
	return cacheFolder[:idx], true
}

func (r *Resolver) collectScripts(ctx context.Context, shell ShellExecutor) ([]string, error) {
	out, err := shell.Execute(ctx, r.binary+" workspaces list --json -v")
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	workspaces, err := parseWorkspaceList(out)
	if err != nil {
		return nil, err
	}

	workspaceRoot, _ := r.cache.WorkspaceRoot()

	// One slot per workspace plus the local manifest, filled by index so the
	// merge follows listing order.
	manifests := make([][]string, len(workspaces)+1)

	g, gctx := errgroup.WithContext(ctx)
	if r.maxParallelReads > 0 {
		g.SetLimit(r.maxParallelReads)
	}

	for i, ws := range workspaces {
		g.Go(func() error {
			path := manifestPath(workspaceRoot, ws.Location)
			command, err := catCommand(path)
			if err != nil {
				r.logger.Debug("skipping workspace manifest", zap.String("path", path), zap.Error(err))
				return nil
			}

			scripts, err := r.readManifestScripts(gctx, shell, command)
			if err != nil {
				return err
			}
			manifests[i] = scripts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	local, err := r.readManifestScripts(ctx, shell, "cat "+ManifestFile)
	if err != nil {
		return nil, err
	}
	manifests[len(workspaces)] = local

	return mergeScripts(manifests), nil
}

// readManifestScripts runs command and parses its output as a manifest.
// Read and parse failures yield no scripts; only cancellation is returned.
func (r *Resolver) readManifestScripts(ctx context.Context, shell ShellExecutor, command string) ([]string, error) {
	out, err := shell.Execute(ctx, command)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Debug("failed to read manifest", zap.String("command", command), zap.Error(err))
		return nil, nil
	}

	scripts, err := parseManifestScripts(out)
	if err != nil {
		r.logger.Debug("failed to parse manifest", zap.String("command", command), zap.Error(err))
		return nil, nil
	}
	return scripts, nil
}

func catCommand(path string) (string, error) {
	quoted, err := syntax.Quote(path, syntax.LangBash)
	if err != nil {
		return "", err
	}
	return "cat " + quoted, nil
}
