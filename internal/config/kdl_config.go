package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/buildmend/internal/debug"
)

// LoadKDL attempts to load configuration from the .buildmend.kdl file in projectRoot.
// Returns nil, nil when the file does not exist.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ConfigFileName)
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}
	return LoadKDLFile(kdlPath, projectRoot)
}

// LoadKDLFile loads an explicit KDL config file. Relative paths inside it resolve against projectRoot.
func LoadKDLFile(kdlPath, projectRoot string) (*Config, error) {
	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", kdlPath, err)
	}

	cfg, err := parseKDL(string(content), projectRoot)
	if err != nil {
		return nil, err
	}

	cfg.Project.Root = resolvePath(projectRoot, cfg.Project.Root)
	if cfg.Project.SourceRoot != "" {
		cfg.Project.SourceRoot = resolvePath(cfg.Project.Root, cfg.Project.SourceRoot)
	}
	if cfg.Project.Manifest != "" {
		cfg.Project.Manifest = resolvePath(cfg.Project.Root, cfg.Project.Manifest)
	}
	if cfg.Repair.RulesFile != "" {
		cfg.Repair.RulesFile = resolvePath(cfg.Project.Root, cfg.Repair.RulesFile)
	}
	return cfg, nil
}

func resolvePath(base, p string) string {
	if p == "" {
		p = base
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// parseKDL parses config content on top of Default(root)
func parseKDL(content, root string) (*Config, error) {
	cfg := Default(root)

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children { // project { root "." name "App" }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
				assignSimpleString(cn, "source_root", func(v string) { cfg.Project.SourceRoot = v })
				assignSimpleString(cn, "manifest", func(v string) { cfg.Project.Manifest = v })
				if nodeName(cn) == "respect_gitignore" {
					if b, ok := firstBoolArg(cn); ok {
						cfg.Project.RespectGitignore = b
					}
				}
			}
		case "build":
			for _, cn := range n.Children {
				assignSimpleString(cn, "command", func(v string) { cfg.Build.Command = v })
				assignSimpleString(cn, "scheme", func(v string) { cfg.Build.Scheme = v })
				assignSimpleString(cn, "destination", func(v string) { cfg.Build.Destination = v })
				assignSimpleString(cn, "action", func(v string) { cfg.Build.Action = v })
				switch nodeName(cn) {
				case "timeout_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Build.TimeoutSec = v
					}
				case "extra_args":
					cfg.Build.ExtraArgs = collectStringArgs(cn)
				}
			}
		case "repair":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_attempts":
					if v, ok := firstIntArg(cn); ok {
						cfg.Repair.MaxAttempts = v
					}
				case "backoff_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Repair.BackoffMs = v
					}
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Repair.Workers = v
					}
				case "verify_idempotence":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Repair.VerifyIdempotence = b
					}
				case "reconcile":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Repair.Reconcile = b
					}
				case "rules_file":
					if s, ok := firstStringArg(cn); ok {
						cfg.Repair.RulesFile = s
					}
				}
			}
		case "cleanup":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cleanup.Enabled = b
					}
				case "derived_data":
					if s, ok := firstStringArg(cn); ok {
						cfg.Cleanup.DerivedData = s
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				if nodeName(cn) == "debounce_ms" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "include":
			// Replace the default **/*.swift include when present
			cfg.Include = collectStringArgs(n)
		case "exclude":
			// Project exclusions extend the defaults
			cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, collectStringArgs(n)...))
		default:
			debug.Log("config", "ignoring unknown config node %q", nodeName(n))
		}
	}

	return cfg, nil
}

// Helper functions leveraging kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// Inline format: include "**/*.swift" "**/*.m"
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format: exclude { "pattern" }, the node name itself is the string value
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}
func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
