package repair

import (
	"time"

	"github.com/standardbeagle/buildmend/internal/build"
)

// State is a step of the convergence loop
type State string

const (
	StateInit      State = "init"
	StateDiscover  State = "discover"
	StateMeasure   State = "measure"
	StateRepair    State = "repair"
	StateRebuild   State = "rebuild"
	StateDecide    State = "decide"
	StateSuccess   State = "success"
	StateAbandoned State = "abandoned"
)

// Terminal reports whether the loop stops in s
func (s State) Terminal() bool { return s == StateSuccess || s == StateAbandoned }

// AttemptRecord describes one Measure/Repair/Rebuild cycle. Error counts are
// build.UnknownErrors when the build gave no usable output.
type AttemptRecord struct {
	Attempt         int           `yaml:"attempt"`
	ErrorsBefore    int           `yaml:"errors_before"`
	FixesApplied    int           `yaml:"fixes_applied"`
	FilesChanged    int           `yaml:"files_changed"`
	FilesFailed     int           `yaml:"files_failed"`
	ManifestChanges int           `yaml:"manifest_changes"`
	ErrorsAfter     int           `yaml:"errors_after"`
	Elapsed         time.Duration `yaml:"elapsed"`
	Oscillating     []string      `yaml:"oscillating,omitempty"`
}

// Progress returns errors-before minus errors-after. ok is false when either
// count is unknown.
func (a AttemptRecord) Progress() (delta int, ok bool) {
	if a.ErrorsBefore == build.UnknownErrors || a.ErrorsAfter == build.UnknownErrors {
		return 0, false
	}
	return a.ErrorsBefore - a.ErrorsAfter, true
}

// Outcome is the result of a whole repair run
type Outcome struct {
	State           State           `yaml:"state"`
	Project         string          `yaml:"project"`
	Attempts        []AttemptRecord `yaml:"attempts"`
	FilesDiscovered int             `yaml:"files_discovered"`
	FilesTouched    int             `yaml:"files_touched"`
	FixesApplied    int             `yaml:"fixes_applied"`
	ManifestChanges int             `yaml:"manifest_changes"`
	Backups         []string        `yaml:"backups,omitempty"`
	FinalErrors     int             `yaml:"final_errors"`
	Elapsed         time.Duration   `yaml:"elapsed"`
	Error           string          `yaml:"error,omitempty"`

	// Compiler errors left by the last build
	Diagnostics []build.Diagnostic `yaml:"diagnostics,omitempty"`

	Err error `yaml:"-"`
}

// Succeeded reports whether the run ended with a passing build
func (o *Outcome) Succeeded() bool { return o.State == StateSuccess }

func (o *Outcome) fail(state State, err error) {
	o.State = state
	if err != nil {
		o.Err = err
		o.Error = err.Error()
	}
}
