package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinylittleshell/yarnspec/internal/completion"
	"github.com/atinylittleshell/yarnspec/internal/styles"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newResolveCmd() *cobra.Command {
	var (
		dir     string
		query   string
		asJSON  bool
		asPlain bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the completable workspace scripts of a directory",
		Long: `Resolve the namespaced scripts of every workspace around a directory.

Output is JSON when stdout is not a terminal or --json is given, otherwise one
script per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(dir)
			if err != nil {
				return err
			}

			spec, err := s.Resolve(cmd.Context(), "")
			if err != nil {
				return err
			}

			matches := rankScripts(spec, query)
			spec = selectMatches(spec, matches)

			out := cmd.OutOrStdout()
			if asJSON || (!asPlain && !isTerminal(out)) {
				return writeJSON(out, spec)
			}
			return writeText(out, spec, matches)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "directory to resolve in (default current directory)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "fuzzy filter and rank scripts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the completion spec as JSON")
	cmd.Flags().BoolVar(&asPlain, "plain", false, "print one script per line even when piped")
	cmd.MarkFlagsMutuallyExclusive("json", "plain")

	return cmd
}

// rankScripts fuzzy-matches query against the spec's scripts, best first.
// An empty query matches everything in spec order.
func rankScripts(spec *completion.Spec, query string) fuzzy.Matches {
	names := spec.Names()
	if query == "" {
		matches := make(fuzzy.Matches, 0, len(names))
		for i, name := range names {
			matches = append(matches, fuzzy.Match{Str: name, Index: i})
		}
		return matches
	}
	return fuzzy.Find(query, names)
}

// selectMatches returns a spec holding only the matched subcommands, in
// match order.
func selectMatches(spec *completion.Spec, matches fuzzy.Matches) *completion.Spec {
	selected := &completion.Spec{
		Name:        spec.Name,
		Description: spec.Description,
		Subcommands: make([]completion.Subcommand, 0, len(matches)),
	}
	for _, m := range matches {
		selected.Subcommands = append(selected.Subcommands, spec.Subcommands[m.Index])
	}
	return selected
}

func writeJSON(w io.Writer, spec *completion.Spec) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(spec)
}

func writeText(w io.Writer, spec *completion.Spec, matches fuzzy.Matches) error {
	for i, sub := range spec.Subcommands {
		name := styles.SCRIPT(sub.Name)
		if i < len(matches) && len(matches[i].MatchedIndexes) > 0 {
			name = highlight(sub.Name, matches[i].MatchedIndexes)
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", sub.Icon, name); err != nil {
			return err
		}
	}
	return nil
}

// highlight styles the matched byte offsets of s.
func highlight(s string, indexes []int) string {
	matched := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		matched[idx] = true
	}

	var b strings.Builder
	for i, r := range s {
		if matched[i] {
			b.WriteString(styles.MATCH(string(r)))
		} else {
			b.WriteString(styles.SCRIPT(string(r)))
		}
	}
	return b.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
