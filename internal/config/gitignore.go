package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// gitignorePattern is one non-comment line of a .gitignore file
type gitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool
}

// LoadGitignorePatterns reads <root>/.gitignore and converts its entries into
// doublestar exclusion patterns. A missing file yields no patterns.
func LoadGitignorePatterns(root string) ([]string, error) {
	file, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		// .gitignore file doesn't exist, which is fine
		return nil, nil
	}
	defer file.Close()

	var exclusions []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := parseGitignoreLine(line)
		if p.Negate || p.Pattern == "" {
			// Negations cannot be expressed as a plain exclusion
			continue
		}
		exclusions = append(exclusions, p.toGlob())
	}
	return exclusions, scanner.Err()
}

func parseGitignoreLine(line string) gitignorePattern {
	p := gitignorePattern{}

	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Absolute = true
		line = line[1:]
	}

	p.Pattern = line
	return p
}

// toGlob converts a gitignore pattern into a pattern matched against root-relative paths
func (p gitignorePattern) toGlob() string {
	glob := p.Pattern
	if !p.Absolute && !strings.HasPrefix(glob, "**/") {
		glob = "**/" + glob
	}
	if p.Directory {
		glob += "/**"
	}
	return glob
}
