package display

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
	"github.com/standardbeagle/buildmend/internal/repair"
	"github.com/standardbeagle/buildmend/internal/version"
)

// Report is the document written by --report
type Report struct {
	Tool    string          `yaml:"tool"`
	Version string          `yaml:"version"`
	Build   version.Build   `yaml:"build"`
	Outcome *repair.Outcome `yaml:"outcome"`
}

// MarshalReport encodes an outcome as YAML
func MarshalReport(out *repair.Outcome) ([]byte, error) {
	return yaml.Marshal(Report{Tool: "buildmend", Version: version.Version, Build: version.Current(), Outcome: out})
}

// WriteReport writes the YAML report to path, creating parent directories
func WriteReport(path string, out *repair.Outcome) error {
	data, err := MarshalReport(out)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return bmerrors.NewFileError("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return bmerrors.NewFileError("write", path, err)
	}
	return nil
}
