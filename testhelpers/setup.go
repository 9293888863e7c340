package testhelpers

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

// WaitFor waits for a condition to become true with timeout
// Usage:
//
//	testhelpers.WaitFor(t, func() bool {
//	    return len(changed()) > 0
//	}, 2*time.Second)
func WaitFor(t testing.TB, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v", timeout)
			return
		}
	}
}

// LeakCheck snapshots running goroutines and returns a check that fails the
// test if new ones are still alive. Usage: defer testhelpers.LeakCheck(t)()
func LeakCheck(t *testing.T) func() {
	ignore := goleak.IgnoreCurrent()
	return func() {
		t.Helper()
		goleak.VerifyNone(t, ignore)
	}
}

// SkipIfShort skips slow tests under -short
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skipping in short mode: %s", reason)
	}
}

// BrokenSwift is a source file with one fix of every built-in rule category
// and one orphan closing brace
const BrokenSwift = `struct Settings: View {
    @State var enabled = false

    var body: some View {
        Text("On")
            .font.title
            .foregroundColor.secondary
            .background(Color.systemBackground)
    }
}
}

final final class Store {
    let created = Date()
}
`

// FixedSwift is BrokenSwift after one rule pass and balancing: six fixes, one removed brace
const FixedSwift = `import SwiftUI
struct Settings: View {
    @State private var enabled = false

    var body: some View {
        Text("On")
            .font(.title)
            .foregroundColor(.secondary)
            .background(Color(.systemBackground))
    }
}

final class Store {
    let created = Date()
}
`
