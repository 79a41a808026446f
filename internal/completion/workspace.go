package completion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Workspace is one record of `yarn workspaces list --json`.
type Workspace struct {
	Location string `json:"location"`
	Name     string `json:"name,omitempty"`
}

// parseWorkspaceList parses newline-delimited workspace records. Blank lines
// are skipped; a malformed record fails the whole listing.
func parseWorkspaceList(output string) ([]Workspace, error) {
	var workspaces []Workspace
	for i, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var ws Workspace
		if err := json.Unmarshal([]byte(line), &ws); err != nil {
			return nil, fmt.Errorf("failed to parse workspace record on line %d: %w", i+1, err)
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, nil
}

// manifestPath joins the workspace root and a workspace location the same way
// Yarn reports them: the root keeps its trailing slash, the location is relative.
func manifestPath(workspaceRoot, location string) string {
	return workspaceRoot + location + "/" + ManifestFile
}
