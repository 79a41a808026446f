// Package completion resolves Yarn workspace scripts into a completion spec
// for a host autocompletion engine. It discovers the workspace root through
// the active shell, reads every workspace manifest, and caches the resulting
// script names for as long as the working directory stays inside the root.
package completion

// Subcommand is a single selectable entry in a Spec.
type Subcommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Spec is the suggestion tree handed back to the host.
type Spec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Subcommands []Subcommand `json:"subcommands"`
}

// NewSpec builds a Spec named after the package manager with one subcommand
// per script name, in order.
func NewSpec(name string, scripts []string, icon string) *Spec {
	subcommands := make([]Subcommand, 0, len(scripts))
	for _, script := range scripts {
		subcommands = append(subcommands, Subcommand{
			Name:        script,
			Description: "",
			Icon:        icon,
		})
	}

	return &Spec{
		Name:        name,
		Description: "",
		Subcommands: subcommands,
	}
}

// Names returns the subcommand names in order.
func (s *Spec) Names() []string {
	names := make([]string, 0, len(s.Subcommands))
	for _, sub := range s.Subcommands {
		names = append(names, sub.Name)
	}
	return names
}
