package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeShell answers commands from a table, the way a host would relay them to
// a real shell. Unknown commands print nothing, like a failed `cat`.
type fakeShell struct {
	mu      sync.Mutex
	pwd     string
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeShell(pwd string, outputs map[string]string) *fakeShell {
	return &fakeShell{
		pwd:     pwd,
		outputs: outputs,
		errs:    map[string]error{},
	}
}

func (f *fakeShell) Execute(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	command = normalizeCat(command)
	f.calls = append(f.calls, command)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := f.errs[command]; ok {
		return "", err
	}
	if command == "pwd" {
		return f.pwd, nil
	}
	return f.outputs[command], nil
}

func (f *fakeShell) setPwd(pwd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pwd = pwd
}

func (f *fakeShell) count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == command {
			n++
		}
	}
	return n
}

func (f *fakeShell) countPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// normalizeCat strips shell quoting from the argument of a cat command.
func normalizeCat(command string) string {
	if !strings.HasPrefix(command, "cat ") {
		return command
	}
	return "cat " + strings.Trim(strings.TrimPrefix(command, "cat "), "'\"")
}

const (
	listCommand   = "yarn workspaces list --json -v"
	configCommand = "yarn config get cacheFolder"
)

func monorepoShell() *fakeShell {
	return newFakeShell("/home/u/proj/packages/app", map[string]string{
		configCommand: "/home/u/proj/.yarn/cache",
		listCommand:   `{"location":"packages/app"}` + "\n" + `{"location":"packages/lib"}` + "\n",
		"cat /home/u/proj/packages/app/package.json": `{"name":"app","scripts":{"build:web":"vite build","_x":"echo"}}`,
		"cat /home/u/proj/packages/lib/package.json": `{"name":"lib","scripts":{"test:unit":"vitest"}}`,
		"cat package.json": `{"name":"app","scripts":{"build:web":"vite build"}}`,
	})
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(NewCache(), Options{Logger: zaptest.NewLogger(t)})
}

func TestResolveEndToEnd(t *testing.T) {
	shell := monorepoShell()
	r := newTestResolver(t)

	spec, err := r.Resolve(context.Background(), shell)
	require.NoError(t, err)

	assert.Equal(t, "yarn", spec.Name)
	assert.Equal(t, "", spec.Description)
	assert.Equal(t, []string{"build:web", "test:unit"}, spec.Names())
	for _, sub := range spec.Subcommands {
		assert.Equal(t, "", sub.Description)
		assert.Equal(t, DefaultIcon, sub.Icon)
	}

	root, ok := r.Cache().WorkspaceRoot()
	assert.True(t, ok)
	assert.Equal(t, "/home/u/proj/", root)
	assert.Equal(t, "/home/u/proj/packages/app", r.Cache().Path())
	assert.Equal(t, []string{"build:web", "test:unit"}, r.Cache().Scripts())
}

func TestResolveUsesCacheInsideWorkspaceRoot(t *testing.T) {
	shell := monorepoShell()
	r := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, shell)
	require.NoError(t, err)

	shell.setPwd("/home/u/proj/packages/lib")
	second, err := r.Resolve(ctx, shell)
	require.NoError(t, err)

	shell.setPwd("/home/u/proj")
	third, err := r.Resolve(ctx, shell)
	require.NoError(t, err)

	assert.Equal(t, first.Names(), second.Names())
	assert.Equal(t, first.Names(), third.Names())
	assert.Equal(t, 3, shell.count("pwd"))
	assert.Equal(t, 1, shell.count(configCommand))
	assert.Equal(t, 1, shell.count(listCommand))
	assert.Equal(t, 3, shell.countPrefix("cat "))
}

func TestResolveResetsCacheOutsideWorkspaceRoot(t *testing.T) {
	shell := monorepoShell()
	r := newTestResolver(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, shell)
	require.NoError(t, err)

	shell.setPwd("/srv/other")
	shell.outputs[configCommand] = "/srv/other/.yarn/cache"
	shell.outputs[listCommand] = `{"location":"."}`
	shell.outputs["cat /srv/other/./package.json"] = `{"scripts":{"lint:all":"eslint ."}}`
	shell.outputs["cat package.json"] = `{"scripts":{"lint:all":"eslint ."}}`

	spec, err := r.Resolve(ctx, shell)
	require.NoError(t, err)

	assert.Equal(t, []string{"lint:all"}, spec.Names())
	assert.Equal(t, 2, shell.count(configCommand))
	assert.Equal(t, 2, shell.count(listCommand))

	root, _ := r.Cache().WorkspaceRoot()
	assert.Equal(t, "/srv/other/", root)
	assert.Equal(t, "/srv/other", r.Cache().Path())
	assert.Equal(t, []string{"lint:all"}, r.Cache().Scripts())
}

func TestResolveTrailingSlashOnRoot(t *testing.T) {
	shell := monorepoShell()
	r := newTestResolver(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, shell)
	require.NoError(t, err)

	// The root itself without its trailing slash still counts as inside.
	shell.setPwd("/home/u/proj/")
	_, err = r.Resolve(ctx, shell)
	require.NoError(t, err)

	assert.Equal(t, 1, shell.count(configCommand))
}

func TestResolveDoesNotCacheEmptyResult(t *testing.T) {
	shell := newFakeShell("/home/u/proj", map[string]string{
		configCommand:      "/home/u/proj/.yarn/cache",
		listCommand:        `{"location":"."}`,
		"cat package.json": `{"scripts":{"build":"tsc"}}`,
	})
	r := newTestResolver(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		spec, err := r.Resolve(ctx, shell)
		require.NoError(t, err)
		assert.Empty(t, spec.Subcommands)
	}

	assert.Equal(t, 1, shell.count(configCommand))
	assert.Equal(t, 2, shell.count(listCommand))
}

func TestResolveIsolatesManifestFailures(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		shell := monorepoShell()
		shell.outputs["cat /home/u/proj/packages/app/package.json"] = `{"scripts": {"build:web": `

		spec, err := newTestResolver(t).Resolve(context.Background(), shell)
		require.NoError(t, err)
		assert.Equal(t, []string{"test:unit", "build:web"}, spec.Names())
	})

	t.Run("read error", func(t *testing.T) {
		shell := monorepoShell()
		shell.errs["cat /home/u/proj/packages/lib/package.json"] = errors.New("no such file")

		spec, err := newTestResolver(t).Resolve(context.Background(), shell)
		require.NoError(t, err)
		assert.Equal(t, []string{"build:web"}, spec.Names())
	})

	t.Run("missing local manifest", func(t *testing.T) {
		shell := monorepoShell()
		delete(shell.outputs, "cat package.json")

		spec, err := newTestResolver(t).Resolve(context.Background(), shell)
		require.NoError(t, err)
		assert.Equal(t, []string{"build:web", "test:unit"}, spec.Names())
	})

	t.Run("scripts is not an object", func(t *testing.T) {
		shell := monorepoShell()
		shell.outputs["cat /home/u/proj/packages/lib/package.json"] = `{"scripts":null}`

		spec, err := newTestResolver(t).Resolve(context.Background(), shell)
		require.NoError(t, err)
		assert.Equal(t, []string{"build:web"}, spec.Names())
	})
}

func TestResolvePropagatesShellErrors(t *testing.T) {
	boom := errors.New("shell gone")

	for _, command := range []string{"pwd", configCommand, listCommand} {
		t.Run(command, func(t *testing.T) {
			shell := monorepoShell()
			shell.errs[command] = boom

			spec, err := newTestResolver(t).Resolve(context.Background(), shell)
			assert.Nil(t, spec)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestResolveMalformedWorkspaceLine(t *testing.T) {
	shell := monorepoShell()
	shell.outputs[listCommand] = `{"location":"packages/app"}` + "\n" + `not json`
	r := newTestResolver(t)

	spec, err := r.Resolve(context.Background(), shell)
	assert.Nil(t, spec)
	require.Error(t, err)

	// Root discovery already happened; only the scripts are missing.
	_, ok := r.Cache().WorkspaceRoot()
	assert.True(t, ok)
	assert.Empty(t, r.Cache().Scripts())
}

func TestResolveCancelledContext(t *testing.T) {
	shell := monorepoShell()
	r := newTestResolver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, shell)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveWithoutRootMarker(t *testing.T) {
	shell := monorepoShell()
	shell.outputs[configCommand] = "/home/u/.cache/yarn"
	shell.outputs[listCommand] = `{"location":"/home/u/proj/packages/lib"}`
	shell.outputs["cat /home/u/proj/packages/lib/package.json"] = `{"scripts":{"test:unit":"vitest"}}`
	r := newTestResolver(t)
	ctx := context.Background()

	spec, err := r.Resolve(ctx, shell)
	require.NoError(t, err)
	assert.Equal(t, []string{"test:unit", "build:web"}, spec.Names())

	root, ok := r.Cache().WorkspaceRoot()
	assert.True(t, ok)
	assert.Equal(t, "", root)

	// An empty root contains every directory, so the cache is never cleared.
	shell.setPwd("/anywhere")
	_, err = r.Resolve(ctx, shell)
	require.NoError(t, err)
	assert.Equal(t, 1, shell.count(configCommand))
}

func TestResolveCustomBinaryAndIcon(t *testing.T) {
	shell := newFakeShell("/w", map[string]string{
		"berry config get cacheFolder":    "/w/.yarn/cache",
		"berry workspaces list --json -v": `{"location":"."}`,
		"cat /w/./package.json":           `{"scripts":{"dev:api":"node ."}}`,
	})
	r := NewResolver(nil, Options{Binary: "berry", Icon: "*", Logger: zaptest.NewLogger(t)})

	spec, err := r.Resolve(context.Background(), shell)
	require.NoError(t, err)
	require.Len(t, spec.Subcommands, 1)
	assert.Equal(t, Subcommand{Name: "dev:api", Icon: "*"}, spec.Subcommands[0])
}

func TestResolveManyWorkspacesKeepsListingOrder(t *testing.T) {
	outputs := map[string]string{configCommand: "/r/.yarn/cache"}
	var list []string
	var want []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		list = append(list, `{"location":"packages/`+name+`"}`)
		outputs["cat /r/packages/"+name+"/package.json"] = `{"scripts":{"build:` + name + `":"x"}}`
		want = append(want, "build:"+name)
	}
	outputs[listCommand] = strings.Join(list, "\n")
	shell := newFakeShell("/r", outputs)

	r := NewResolver(NewCache(), Options{MaxParallelReads: 3, Logger: zaptest.NewLogger(t)})
	spec, err := r.Resolve(context.Background(), shell)
	require.NoError(t, err)
	assert.Equal(t, want, spec.Names())
}

func TestResolveConcurrentCallers(t *testing.T) {
	shell := monorepoShell()
	r := newTestResolver(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			spec, err := r.Resolve(context.Background(), shell)
			assert.NoError(t, err)
			if spec != nil {
				assert.Equal(t, []string{"build:web", "test:unit"}, spec.Names())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"build:web", "test:unit"}, r.Cache().Scripts())
}

func TestShellExecutorFunc(t *testing.T) {
	var got string
	fn := ShellExecutorFunc(func(_ context.Context, command string) (string, error) {
		got = command
		return "ok", nil
	})

	out, err := fn.Execute(context.Background(), "pwd")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "pwd", got)
}
