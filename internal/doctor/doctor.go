// Package doctor checks that the shell can run the Yarn commands the
// completion resolver depends on.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/atinylittleshell/yarnspec/internal/completion"
)

// MinYarnVersion is the first Yarn release with `workspaces list` and the
// cacheFolder setting.
const MinYarnVersion = ">= 2.0.0-0"

// Result is the outcome of a single check.
type Result struct {
	Name   string
	OK     bool
	Detail string
}

// Run executes every check and returns their results in order. Only shell
// execution failures are returned as errors.
func Run(ctx context.Context, shell completion.ShellExecutor, binary string) ([]Result, error) {
	version, err := checkVersion(ctx, shell, binary)
	if err != nil {
		return nil, err
	}

	root, err := checkWorkspaceRoot(ctx, shell, binary)
	if err != nil {
		return nil, err
	}

	return []Result{version, root}, nil
}

// Healthy reports whether every result passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

// CheckDataDir reports whether dir, where the log and config live, accepts
// new files.
func CheckDataDir(dir string) Result {
	result := Result{Name: "data dir"}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		result.Detail = fmt.Sprintf("%s is not writable: %v", dir, err)
		return result
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	result.OK = true
	result.Detail = dir
	return result
}

func checkVersion(ctx context.Context, shell completion.ShellExecutor, binary string) (Result, error) {
	result := Result{Name: "yarn version"}

	out, err := shell.Execute(ctx, binary+" --version")
	if err != nil {
		return result, fmt.Errorf("failed to run %s --version: %w", binary, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		result.Detail = fmt.Sprintf("%s not found", binary)
		return result, nil
	}

	version, err := semver.NewVersion(out)
	if err != nil {
		result.Detail = fmt.Sprintf("unrecognized version %q", out)
		return result, nil
	}

	constraint, err := semver.NewConstraint(MinYarnVersion)
	if err != nil {
		return result, err
	}

	result.OK = constraint.Check(version)
	if result.OK {
		result.Detail = version.String()
	} else {
		result.Detail = fmt.Sprintf("%s does not satisfy %s", version, MinYarnVersion)
	}
	return result, nil
}

func checkWorkspaceRoot(ctx context.Context, shell completion.ShellExecutor, binary string) (Result, error) {
	result := Result{Name: "workspace root"}

	out, err := shell.Execute(ctx, binary+" config get cacheFolder")
	if err != nil {
		return result, fmt.Errorf("failed to read cacheFolder: %w", err)
	}

	root, ok := completion.ParseWorkspaceRoot(out)
	if !ok {
		result.Detail = fmt.Sprintf("cacheFolder %q is outside a project .yarn directory", strings.TrimSpace(out))
		return result, nil
	}

	result.OK = true
	result.Detail = root
	return result, nil
}
