package manifest

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/letta-ai/letta-sync/internal/errkind"
)

// RegistryOrg is one organization entry in the optional registry file.
type RegistryOrg struct {
	Key  string `yaml:"key"`
	Slug string `yaml:"slug"`
}

// RegistryProject is one project entry, scoped to an org and a package
// path on disk (spec.md §4.1 "Registry validation").
type RegistryProject struct {
	Key         string   `yaml:"key"`
	OrgKey      string   `yaml:"orgKey"`
	PackagePath string   `yaml:"packagePath"`
	Includes    []string `yaml:"includes,omitempty"` // extra project keys, beyond the implicit project->org->base chain
}

// Registry is the optional org/project registry, spec.md §4.1.
type Registry struct {
	Orgs     []RegistryOrg     `yaml:"orgs"`
	Projects []RegistryProject `yaml:"projects"`
}

// LoadRegistry reads <manifestsRoot>/registry.yaml if present. A missing
// file is not an error — registry validation is optional per spec.md §4.1.
func LoadRegistry(manifestsRoot string) (*Registry, error) {
	path := filepath.Join(manifestsRoot, "registry.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errkind.Wrap(errkind.NotFound, err)
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, errkind.Wrap(errkind.Validation, err)
	}
	return &reg, nil
}

// ValidateOptions controls optional, possibly expensive registry checks.
type ValidateOptions struct {
	// CheckPackagePathsExist performs filesystem existence checks for
	// every referenced package path, relative to repoRoot.
	CheckPackagePathsExist bool
	RepoRoot               string
}

// Validate runs every registry invariant from spec.md §4.1 and returns the
// first violation as a *errkind.Error (kind Validation), or nil.
func (r *Registry) Validate(opts ValidateOptions) error {
	if r == nil {
		return nil
	}

	orgKeys := map[string]bool{}
	orgSlugs := map[string]bool{}
	for _, o := range r.Orgs {
		if orgKeys[o.Key] {
			return errkind.New(errkind.Validation, "duplicate org key %q", o.Key).WithField("orgs")
		}
		orgKeys[o.Key] = true
		if orgSlugs[o.Slug] {
			return errkind.New(errkind.Validation, "duplicate org slug %q", o.Slug).WithField("orgs")
		}
		orgSlugs[o.Slug] = true
	}

	projectKeys := map[string]bool{}
	pathOwners := map[string]string{} // packagePath -> project key that claims it
	for _, p := range r.Projects {
		if projectKeys[p.Key] {
			return errkind.New(errkind.Validation, "duplicate project key %q", p.Key).WithField("projects")
		}
		projectKeys[p.Key] = true

		if !orgKeys[p.OrgKey] {
			return errkind.New(errkind.Validation, "project %q references unknown org %q", p.Key, p.OrgKey).
				WithField("projects").WithSuggestion("add the org to the registry or fix orgKey")
		}

		if owner, taken := pathOwners[p.PackagePath]; taken {
			return errkind.New(errkind.Validation,
				"package path %q is referenced by both %q and %q", p.PackagePath, owner, p.Key).
				WithField("projects")
		}
		pathOwners[p.PackagePath] = p.Key

		if opts.CheckPackagePathsExist {
			full := filepath.Join(opts.RepoRoot, p.PackagePath)
			if _, err := os.Stat(full); err != nil {
				return errkind.New(errkind.Validation, "package path %q does not exist", p.PackagePath).
					WithField("projects." + p.Key)
			}
		}
	}

	return r.checkAcyclic()
}

// checkAcyclic runs DFS with a recursion stack over the implicit
// project -> org -> base include chain plus any explicit extra includes,
// reporting the cycle path on failure (spec.md §4.1, §9).
func (r *Registry) checkAcyclic() error {
	graph := r.includeGraph()

	const white, gray, black = 0, 1, 2
	color := map[string]int{}
	var stack []string

	var visit func(node string) error
	visit = func(node string) error {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range graph[node] {
			switch color[next] {
			case gray:
				cycle := append(append([]string{}, stack...), next)
				return errkind.New(errkind.Validation, "include cycle detected: %s", joinArrow(cycle)).
					WithField("projects")
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
		return nil
	}

	// Stable iteration order for deterministic cycle reporting.
	for _, p := range r.Projects {
		if color[p.Key] == white {
			if err := visit(p.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

// includeGraph builds the DAG: every project implicitly includes its org,
// every org implicitly includes "base", plus any explicit Includes entries
// (which reference other project keys and can introduce cycles).
func (r *Registry) includeGraph() map[string][]string {
	graph := map[string][]string{}
	for _, o := range r.Orgs {
		graph[o.Key] = append(graph[o.Key], "base")
	}
	for _, p := range r.Projects {
		graph[p.Key] = append(graph[p.Key], p.OrgKey)
		graph[p.Key] = append(graph[p.Key], p.Includes...)
	}
	return graph
}

func joinArrow(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}
