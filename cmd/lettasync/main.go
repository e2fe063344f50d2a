// Command lettasync is the primary CLI: it resolves a control-plane
// credential (internal/auth), builds an internal/controlplane.HTTPClient,
// and drives the reconcile/{plan,apply,upgrade,identity} packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/letta-ai/letta-sync/internal/auth"
	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/dashboard"
	"github.com/letta-ai/letta-sync/internal/errkind"
	"github.com/letta-ai/letta-sync/internal/identitykey"
	"github.com/letta-ai/letta-sync/internal/mcpserver"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/output"
	"github.com/letta-ai/letta-sync/internal/reconcile/identity"
	"github.com/letta-ai/letta-sync/internal/reconcile/upgrade"
	"github.com/letta-ai/letta-sync/internal/tui"
)

func main() {
	app := &cli.App{
		Name:  "lettasync",
		Usage: "declarative reconciler for remote agent configurations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "machine", Usage: "emit JSON instead of human-readable output"},
			&cli.StringFlag{Name: "settings", Usage: "path to the local settings file (default ~/.letta/settings.json)"},
			&cli.StringFlag{Name: "manifests", Value: ".letta/manifests", Usage: "manifest root directory"},
		},
		Commands: []*cli.Command{
			planCommand(),
			applyCommand(),
			upgradeCommand(),
			batchCommand(),
			identityCommand(),
			authCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func machineMode(c *cli.Context) bool {
	if c.Bool("machine") {
		return true
	}
	return !term.IsTerminal(int(os.Stdout.Fd()))
}

func newClient(c *cli.Context) (*controlplane.HTTPClient, error) {
	cred, err := auth.Resolve(c.String("settings"))
	if err != nil {
		return nil, err
	}
	return controlplane.NewHTTPClient(cred.BaseURL, cred.APIKey, cred.Password), nil
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "compute a plan for one agent without applying it",
		ArgsUsage: "<agent-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "copy", Usage: "copy the plan id to the clipboard"},
		},
		Action: func(c *cli.Context) error {
			agentID := c.Args().First()
			if agentID == "" {
				return cli.Exit("agent id is required", 1)
			}

			client, err := newClient(c)
			if err != nil {
				return err
			}
			result := upgrade.RunOne(context.Background(), client, upgrade.Options{
				ManifestDir: c.String("manifests"),
				AgentID:     agentID,
				Mode:        upgrade.ModeDryRun,
				Versions:    upgrade.GitTargetVersion{RepoDir: "."},
			})
			if result.Error != "" {
				return cli.Exit(result.Error, 1)
			}

			if c.Bool("copy") {
				_ = clipboard.WriteAll(result.Plan.ID)
			}
			return output.Plan(os.Stdout, result.Plan, machineMode(c))
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "compute a fresh plan for one agent and apply it",
		ArgsUsage: "<agent-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "override pinned-channel and breaking-change policy gates"},
			&cli.BoolFlag{Name: "allow-delete", Usage: "permit detach actions to execute"},
			&cli.BoolFlag{Name: "allow-service", Usage: "permit auto-creating service identities"},
			&cli.BoolFlag{Name: "allow-team", Usage: "permit auto-creating team identities"},
		},
		Action: func(c *cli.Context) error {
			agentID := c.Args().First()
			if agentID == "" {
				return cli.Exit("agent id is required", 1)
			}
			client, err := newClient(c)
			if err != nil {
				return err
			}
			force := c.Bool("force")
			if !force && !machineMode(c) {
				confirmed, err := confirmBreakingPlan(context.Background(), client, c.String("manifests"), agentID)
				if err != nil {
					return err
				}
				if !confirmed {
					return cli.Exit("aborted", 1)
				}
			}
			result := upgrade.RunOne(context.Background(), client, upgrade.Options{
				ManifestDir: c.String("manifests"),
				AgentID:     agentID,
				Mode:        upgrade.ModeApply,
				Force:       force,
				AllowDelete: c.Bool("allow-delete"),
				Versions:    upgrade.GitTargetVersion{RepoDir: "."},
				IdentityPolicy: identity.AutoCreatePolicy{
					AllowService: c.Bool("allow-service"),
					AllowTeam:    c.Bool("allow-team"),
				},
			})
			if result.Error != "" {
				return cli.Exit(result.Error, 1)
			}
			return output.JSON(os.Stdout, result.Apply)
		},
	}
}

func upgradeCommand() *cli.Command {
	return &cli.Command{
		Name:      "upgrade",
		Usage:     "plan and apply one agent's upgrade in a single step",
		ArgsUsage: "<agent-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run"},
			&cli.BoolFlag{Name: "force"},
			&cli.BoolFlag{Name: "allow-delete"},
			&cli.BoolFlag{Name: "allow-service", Usage: "permit auto-creating service identities"},
			&cli.BoolFlag{Name: "allow-team", Usage: "permit auto-creating team identities"},
		},
		Action: func(c *cli.Context) error {
			agentID := c.Args().First()
			if agentID == "" {
				return cli.Exit("agent id is required", 1)
			}
			client, err := newClient(c)
			if err != nil {
				return err
			}
			mode := upgrade.ModeApply
			force := c.Bool("force")
			if c.Bool("dry-run") {
				mode = upgrade.ModeDryRun
			} else if !force && !machineMode(c) {
				confirmed, err := confirmBreakingPlan(context.Background(), client, c.String("manifests"), agentID)
				if err != nil {
					return err
				}
				if !confirmed {
					return cli.Exit("aborted", 1)
				}
			}
			result := upgrade.RunOne(context.Background(), client, upgrade.Options{
				ManifestDir: c.String("manifests"),
				AgentID:     agentID,
				Mode:        mode,
				Force:       force,
				AllowDelete: c.Bool("allow-delete"),
				Versions:    upgrade.GitTargetVersion{RepoDir: "."},
				IdentityPolicy: identity.AutoCreatePolicy{
					AllowService: c.Bool("allow-service"),
					AllowTeam:    c.Bool("allow-team"),
				},
			})
			if result.Error != "" {
				return cli.Exit(result.Error, 1)
			}
			return output.Plan(os.Stdout, result.Plan, machineMode(c))
		},
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "upgrade every agent matching a selection criterion",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run"},
			&cli.BoolFlag{Name: "force"},
			&cli.BoolFlag{Name: "allow-delete"},
			&cli.BoolFlag{Name: "allow-service", Usage: "permit auto-creating service identities"},
			&cli.BoolFlag{Name: "allow-team", Usage: "permit auto-creating team identities"},
			&cli.BoolFlag{Name: "managed-only"},
			&cli.BoolFlag{Name: "fail-fast"},
			&cli.StringFlag{Name: "org"},
			&cli.StringFlag{Name: "project"},
			&cli.IntFlag{Name: "concurrency", Value: 5},
		},
		Action: func(c *cli.Context) error {
			client, err := newClient(c)
			if err != nil {
				return err
			}
			mode := upgrade.ModeApply
			if c.Bool("dry-run") {
				mode = upgrade.ModeDryRun
			}

			opts := upgrade.BatchOptions{
				ManifestDir: c.String("manifests"),
				Mode:        mode,
				Force:       c.Bool("force"),
				AllowDelete: c.Bool("allow-delete"),
				Versions:    upgrade.GitTargetVersion{RepoDir: "."},
				Concurrency: c.Int("concurrency"),
				FailFast:    c.Bool("fail-fast"),
				IdentityPolicy: identity.AutoCreatePolicy{
					AllowService: c.Bool("allow-service"),
					AllowTeam:    c.Bool("allow-team"),
				},
				Selection: upgrade.Selection{
					ManagedOnly: c.Bool("managed-only"),
					Org:         c.String("org"),
					Project:     c.String("project"),
				},
			}

			if machineMode(c) {
				summary, err := upgrade.RunBatch(context.Background(), client, opts)
				if err != nil {
					return err
				}
				return output.JSON(os.Stdout, summary)
			}

			return runBatchInteractive(client, opts)
		},
	}
}

// confirmBreakingPlan dry-runs the upgrade and, if the resulting plan
// requires confirmation (a breaking change, or any change on a pinned
// channel), asks the operator to confirm before the real apply runs.
func confirmBreakingPlan(ctx context.Context, client *controlplane.HTTPClient, manifestDir, agentID string) (bool, error) {
	preview := upgrade.RunOne(ctx, client, upgrade.Options{
		ManifestDir: manifestDir,
		AgentID:     agentID,
		Mode:        upgrade.ModeDryRun,
		Versions:    upgrade.GitTargetVersion{RepoDir: "."},
	})
	if preview.Error != "" {
		return false, errors.New(preview.Error)
	}
	if !preview.Plan.RequiresConfirmation {
		return true, nil
	}

	if err := output.Plan(os.Stdout, preview.Plan, false); err != nil {
		return false, err
	}
	confirmed := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("plan %s includes breaking or pinned-channel changes; apply anyway?", preview.Plan.ID),
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, err
	}
	return confirmed, nil
}

// runBatchInteractive drives upgrade.RunBatch in the background while a
// bubbletea program renders live per-agent progress in the foreground.
func runBatchInteractive(client *controlplane.HTTPClient, opts upgrade.BatchOptions) error {
	program := tea.NewProgram(tui.NewModel())

	opts.OnSelected = func(agents []models.Agent) {
		ids := make([]string, len(agents))
		for i, a := range agents {
			ids[i] = a.ID
		}
		program.Send(tui.SelectedMsg(ids))
	}
	opts.OnResult = func(r upgrade.Result) {
		program.Send(tui.ResultMsg(r))
	}

	var summary upgrade.BatchSummary
	var runErr error
	go func() {
		summary, runErr = upgrade.RunBatch(context.Background(), client, opts)
		program.Send(tui.DoneMsg{})
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	fmt.Printf("\n%d total, %d succeeded, %d failed\n", summary.Total, summary.Succeeded, summary.Failed)
	return nil
}

// promptCredential asks for a base URL and cloud API key interactively,
// for the case where `auth login` is run with no arguments at a terminal.
func promptCredential(defaultBaseURL string) (baseURL, apiKey string, err error) {
	questions := []*survey.Question{
		{
			Name:     "baseURL",
			Prompt:   &survey.Input{Message: "Control plane base URL:", Default: defaultBaseURL},
			Validate: survey.Required,
		},
		{
			Name:     "apiKey",
			Prompt:   &survey.Password{Message: "API key:"},
			Validate: survey.Required,
		},
	}
	answers := struct {
		BaseURL string
		APIKey  string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return "", "", err
	}
	return answers.BaseURL, answers.APIKey, nil
}

func identityCommand() *cli.Command {
	policyFlags := []cli.Flag{
		&cli.BoolFlag{Name: "allow-service", Usage: "permit auto-creating service identities"},
		&cli.BoolFlag{Name: "allow-team", Usage: "permit auto-creating team identities"},
		&cli.StringFlag{Name: "org", Usage: "default org for bare handles"},
	}
	resolveOpts := func(c *cli.Context) identitykey.ResolveOptions {
		return identitykey.ResolveOptions{DefaultOrg: c.String("org"), DefaultType: identitykey.TypeUser}
	}

	return &cli.Command{
		Name:  "identity",
		Usage: "manage an agent's attached identities",
		Subcommands: []*cli.Command{
			{
				Name:      "attach",
				ArgsUsage: "<agent-id> <identifier...>",
				Flags:     policyFlags,
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return cli.Exit("agent id and at least one identifier are required", 1)
					}
					client, err := newClient(c)
					if err != nil {
						return err
					}
					result, err := identity.AttachToAgent(context.Background(), client, c.Args().First(),
						c.Args().Tail(), resolveOpts(c), identity.AutoCreatePolicy{
							AllowService: c.Bool("allow-service"),
							AllowTeam:    c.Bool("allow-team"),
						}, "lettasync-cli")
					if err != nil {
						return err
					}
					return output.JSON(os.Stdout, result)
				},
			},
			{
				Name:      "detach",
				ArgsUsage: "<agent-id> <identifier...>",
				Flags:     policyFlags,
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return cli.Exit("agent id and at least one identifier are required", 1)
					}
					client, err := newClient(c)
					if err != nil {
						return err
					}
					if err := identity.DetachFromAgent(context.Background(), client, c.Args().First(), c.Args().Tail(), resolveOpts(c)); err != nil {
						return err
					}
					fmt.Println("ok")
					return nil
				},
			},
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the read-only status dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8787"},
		},
		Action: func(c *cli.Context) error {
			store := dashboard.NewStore(200)
			return dashboard.Router(store).Run(c.String("addr"))
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "run the MCP stdio server exposing list_agents/plan_upgrade/apply_upgrade/ensure_identity",
		Action: func(c *cli.Context) error {
			client, err := newClient(c)
			if err != nil {
				return err
			}
			server := &mcpserver.Server{Client: client, ManifestDir: c.String("manifests")}
			return server.Serve(context.Background())
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "manage the cached control-plane credential",
		Subcommands: []*cli.Command{
			{
				Name:      "login",
				ArgsUsage: "[api-key]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base-url", Value: "https://api.letta.com"},
				},
				Action: func(c *cli.Context) error {
					baseURL := c.String("base-url")
					key := c.Args().First()

					if key == "" && !machineMode(c) {
						var err error
						baseURL, key, err = promptCredential(baseURL)
						if err != nil {
							return err
						}
					}
					if key == "" {
						return cli.Exit("an api key argument is required", 1)
					}
					if err := auth.Login(c.String("settings"), baseURL, key); err != nil {
						return err
					}
					fmt.Println("credential saved")
					return nil
				},
			},
			{
				Name: "status",
				Action: func(c *cli.Context) error {
					source, baseURL, err := auth.Status(c.String("settings"))
					if err != nil {
						if errkind.Is(err, errkind.NotFound) {
							fmt.Println("source: none")
							return nil
						}
						return err
					}
					fmt.Printf("source: %s\nbase url: %s\n", source, baseURL)
					return nil
				},
			},
		},
	}
}
