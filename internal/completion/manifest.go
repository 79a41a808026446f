package completion

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// ManifestFile is the package descriptor read from every workspace.
const ManifestFile = "package.json"

var errInvalidManifest = errors.New("manifest is not valid JSON")

// parseManifestScripts returns the keys of the manifest's "scripts" object in
// the order they appear in the document. A manifest without a scripts object
// yields no names. When "scripts" is repeated, the last one wins.
func parseManifestScripts(manifest string) ([]string, error) {
	if !gjson.Valid(manifest) {
		return nil, errInvalidManifest
	}

	var scripts gjson.Result
	gjson.Parse(manifest).ForEach(func(key, value gjson.Result) bool {
		if key.String() == "scripts" {
			scripts = value
		}
		return true
	})
	if !scripts.IsObject() {
		return nil, nil
	}

	var names []string
	scripts.ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	return names, nil
}

// isCompletableScript reports whether a script is offered for completion.
// Namespaced scripts ("build:web") are; plain ("build") and private
// ("_setup:db") ones are not.
func isCompletableScript(name string) bool {
	return !strings.HasPrefix(name, "_") && strings.Contains(name, ":")
}

// mergeScripts flattens the per-manifest names, keeps the completable ones and
// removes duplicates while preserving first-seen order.
func mergeScripts(manifests [][]string) []string {
	completable := lo.Filter(lo.Flatten(manifests), func(name string, _ int) bool {
		return isCompletableScript(name)
	})
	return lo.Uniq(completable)
}
