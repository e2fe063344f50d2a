// Command lettasync-validate is a zero-network CI check: it loads a
// manifests tree, runs registry validation, and exits non-zero on the
// first Validation-kind error. It never talks to a control plane, which
// keeps it usable as a pre-merge gate on a manifests-only repo.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/letta-ai/letta-sync/internal/manifest"
)

func main() {
	var checkPaths bool

	rootCmd := &cobra.Command{
		Use:   "lettasync-validate [path]",
		Short: "Validate a manifests tree and its registry offline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := "."
			if len(args) == 1 {
				start = args[0]
			}
			return runValidate(start, checkPaths)
		},
	}
	rootCmd.Flags().BoolVar(&checkPaths, "check-paths", false,
		"also verify every registry packagePath exists on disk")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runValidate(start string, checkPaths bool) error {
	repoRoot, err := manifest.FindRepoRoot(start)
	if err != nil {
		return err
	}

	desired, loc, err := manifest.Load(start)
	if err != nil {
		return err
	}
	for _, w := range desired.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	reg, err := manifest.LoadRegistry(loc.ManifestsRoot)
	if err != nil {
		return err
	}
	if reg == nil {
		fmt.Println("no registry.yaml present, skipping registry validation")
		return nil
	}

	if err := reg.Validate(manifest.ValidateOptions{
		CheckPackagePathsExist: checkPaths,
		RepoRoot:               repoRoot,
	}); err != nil {
		return err
	}

	fmt.Printf("ok: %d orgs, %d projects, %d entities loaded\n",
		len(reg.Orgs), len(reg.Projects), entityCount(desired))
	return nil
}

func entityCount(d *manifest.Desired) int {
	return len(d.Blocks) + len(d.Tools) + len(d.Folders) + len(d.Identities) +
		len(d.MCPServers) + len(d.Templates) + len(d.Policies)
}
