package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/buildmend/internal/config"
	"github.com/standardbeagle/buildmend/internal/debug"
	"github.com/standardbeagle/buildmend/internal/version"
)

// loadConfigWithOverrides loads configuration for the project at the first
// argument (default ".") and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.Args().First()
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path %q: %w", root, err)
	}

	cfg, err := config.LoadWithRoot(c.String("config"), absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI flag overrides
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if c.IsSet("workers") {
		cfg.Repair.Workers = c.Int("workers")
	}
	if c.IsSet("max-attempts") {
		cfg.Repair.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("backoff-ms") {
		cfg.Repair.BackoffMs = c.Int("backoff-ms")
	}
	if c.IsSet("timeout") {
		cfg.Build.TimeoutSec = c.Int("timeout")
	}
	if rulesFile := c.String("rules"); rulesFile != "" {
		abs, err := filepath.Abs(rulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve rules path %q: %w", rulesFile, err)
		}
		cfg.Repair.RulesFile = abs
	}
	if c.Bool("no-reconcile") {
		cfg.Repair.Reconcile = false
	}
	if c.Bool("verify") {
		cfg.Repair.VerifyIdempotence = true
	}
	if c.Bool("dry-run") {
		cfg.Repair.DryRun = true
	}
	if c.Bool("clean") {
		cfg.Cleanup.Enabled = true
	}
	if scheme := c.String("scheme"); scheme != "" {
		cfg.Build.Scheme = scheme
	}
	if dest := c.String("destination"); dest != "" {
		cfg.Build.Destination = dest
	}
	if command := c.String("command"); command != "" {
		cfg.Build.Command = command
	}

	if err := config.NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// repairFlags are accepted both by the root command and by "repair"
func repairFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"j"},
			Usage:   "Concurrent file workers (0 = number of CPUs)",
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Aliases: []string{"n"},
			Usage:   "Repair/rebuild cycles before giving up",
		},
		&cli.IntFlag{
			Name:  "backoff-ms",
			Usage: "Pause between attempts in milliseconds",
		},
		&cli.IntFlag{
			Name:  "timeout",
			Usage: "Build timeout in seconds",
		},
		&cli.StringFlag{
			Name:  "rules",
			Usage: "TOML rule pack appended to the built-in rules",
		},
		&cli.BoolFlag{
			Name:  "no-reconcile",
			Usage: "Leave project.pbxproj untouched",
		},
		&cli.BoolFlag{
			Name:  "verify",
			Usage: "Warn when rules are not idempotent on repaired files",
		},
		&cli.BoolFlag{
			Name:  "clean",
			Usage: "Remove the product's DerivedData between attempts",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Show what would change without building or writing",
		},
		&cli.BoolFlag{
			Name:  "diff",
			Usage: "With --dry-run, print unified diffs",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a YAML run report to this path",
		},
		&cli.StringFlag{
			Name:  "scheme",
			Usage: "Build scheme (defaults to the project name)",
		},
		&cli.StringFlag{
			Name:  "destination",
			Usage: "xcodebuild -destination descriptor",
		},
		&cli.StringFlag{
			Name:  "command",
			Usage: "Build command (defaults to xcodebuild)",
		},
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, version.Current())
	}
	return &cli.App{
		Name:                   "buildmend",
		Usage:                  "Repair a broken Swift/Xcode build by rewriting sources and syncing the project file",
		UsageText:              "buildmend [global options] [repair options] [project-dir]",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: <project-dir>/" + config.ConfigFileName + ")",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Debug logging",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log warnings and errors",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Source globs relative to the source root (e.g., --include '**/*.swift')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Additional exclusion globs (e.g., --exclude '**/Generated/**')",
			},
		}, repairFlags()...),
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			debug.Init(debug.Options{
				Verbose: c.Bool("verbose"),
				Quiet:   c.Bool("quiet"),
				Output:  c.App.ErrWriter,
			})
			return nil
		},
		After: func(c *cli.Context) error {
			debug.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "repair",
				Aliases:   []string{"r"},
				Usage:     "Run the repair loop (the default command)",
				ArgsUsage: "[project-dir]",
				Flags:     repairFlags(),
				Action:    repairCommand,
			},
			{
				Name:      "check",
				Usage:     "Validate project.pbxproj without changing anything",
				ArgsUsage: "[project-dir]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "tree",
						Usage: "Print the group hierarchy",
					},
					&cli.BoolFlag{
						Name:  "ids",
						Usage: "With --tree, show object identifiers",
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "With --tree, maximum depth (0 = unlimited)",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Tree format: text, compact",
						Value: "text",
					},
				},
				Action: checkCommand,
			},
			{
				Name:  "rules",
				Usage: "List the rewrite rules, or apply them to files without building",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "rules",
						Usage: "TOML rule pack appended to the built-in rules",
					},
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Verify the rules are idempotent on the given files",
					},
					&cli.BoolFlag{
						Name:  "diff",
						Usage: "Print what the rules would change in the given files",
					},
				},
				ArgsUsage: "[file...]",
				Action:    rulesCommand,
			},
			{
				Name:      "watch",
				Aliases:   []string{"w"},
				Usage:     "Apply the rules to Swift files as they change",
				ArgsUsage: "[project-dir]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "debounce-ms",
						Usage: "Quiet period before a batch of changes is processed",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"j"},
						Usage:   "Concurrent file workers (0 = number of CPUs)",
					},
					&cli.StringFlag{
						Name:  "rules",
						Usage: "TOML rule pack appended to the built-in rules",
					},
				},
				Action: watchCommand,
			},
			{
				Name:      "restore",
				Usage:     "Restore project.pbxproj from its newest backup",
				ArgsUsage: "[project-dir]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "list",
						Usage: "List backups instead of restoring",
					},
				},
				Action: restoreCommand,
			},
			{
				Name:  "config",
				Usage: "Configuration management",
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Aliases:   []string{"s"},
						Usage:     "Show the effective configuration as YAML",
						ArgsUsage: "[project-dir]",
						Action:    configShowCommand,
					},
					{
						Name:      "validate",
						Aliases:   []string{"v"},
						Usage:     "Validate the configuration and project layout",
						ArgsUsage: "[project-dir]",
						Action:    configValidateCommand,
					},
				},
			},
		},
		Action: repairCommand,
	}
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func stdout(c *cli.Context) io.Writer { return c.App.Writer }

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
