package rules

import (
	"strings"
)

// duplicated keywords and attributes collapsed to a single occurrence
var (
	duplicateKeywords   = []string{"final", "private", "public", "static", "override", "mutating", "lazy", "weak"}
	duplicateAttributes = []string{"Model", "MainActor", "Observable", "Published", "State", "Binding", "StateObject"}
)

// swiftColorStyles are UIKit semantic colors that SwiftUI's Color only exposes through Color(_ uiColor:)
const swiftColorStyles = `systemBackground|secondarySystemBackground|tertiarySystemBackground|` +
	`systemGroupedBackground|secondarySystemGroupedBackground|systemGray[2-6]?|systemFill|` +
	`label|secondaryLabel|tertiaryLabel|separator`

// SwiftRules returns the built-in rule set in application order
func SwiftRules() []Rule {
	var rules []Rule

	// api
	rules = append(rules,
		MustRegexRule("color-uikit-semantic", CategoryAPI,
			`\bColor\.(`+swiftColorStyles+`)\b`, `Color(.${1})`),
		MustRegexRule("navigation-stack", CategoryAPI,
			`\bNavigationView(\s*)\{`, `NavigationStack${1}{`),
	)

	// keyword
	for _, kw := range duplicateKeywords {
		rules = append(rules, MustRegexRule("duplicate-"+kw, CategoryKeyword,
			`\b`+kw+`(?:\s+`+kw+`\b)+`, kw))
	}
	for _, attr := range duplicateAttributes {
		rules = append(rules, MustRegexRule("duplicate-attr-"+strings.ToLower(attr), CategoryKeyword,
			`@`+attr+`\b(?:\s+@`+attr+`\b)+`, "@"+attr))
	}
	rules = append(rules,
		MustRegexRule("double-semicolon", CategoryKeyword, `;{2,}`, ";"),
		NewFuncRule("duplicate-import", CategoryKeyword, dedupeImports),
	)

	// modifier
	rules = append(rules,
		MustRegexRule("modifier-font", CategoryModifier,
			`\.font\.(largeTitle|title[23]?|headline|subheadline|body|callout|footnote|caption2?)\b`, `.font(.${1})`),
		MustRegexRule("modifier-color", CategoryModifier,
			`\.(foregroundColor|foregroundStyle|tint)\.(primary|secondary|accentColor|red|orange|yellow|green|mint|teal|cyan|blue|indigo|purple|pink|brown|white|gray|black|clear)\b`,
			`.${1}(.${2})`),
		MustRegexRule("modifier-padding", CategoryModifier,
			`\.padding\.(horizontal|vertical|top|bottom|leading|trailing|all)\b`, `.padding(.${1})`),
	)

	// wrapper
	rules = append(rules,
		MustRegexRule("state-private", CategoryWrapper, `@State\s+var\b`, `@State private var`),
		MustRegexRule("state-object-private", CategoryWrapper, `@StateObject\s+var\b`, `@StateObject private var`),
		MustRegexRule("query-private", CategoryWrapper, `@Query\s+var\b`, `@Query private var`),
		MustRegexRule("environment-private", CategoryWrapper, `(@Environment\([^)\n]*\))\s+var\b`, `${1} private var`),
	)

	// import
	for _, r := range SwiftImportRules() {
		rules = append(rules, r)
	}

	return rules
}

// SwiftImportRules maps frameworks to the identifiers that require them
func SwiftImportRules() []*ImportRule {
	return []*ImportRule{
		NewImportRule("SwiftData", []string{"@Model", "@Query", "ModelContext", "ModelContainer", ".modelContainer", "FetchDescriptor"}),
		NewImportRule("SwiftUI", []string{"some View", "@State", "@Binding", "@Environment", "@StateObject", "@ObservedObject", "@EnvironmentObject", "some Scene"}),
		NewImportRule("UIKit", []string{"UIImagePickerController", "UIViewController", "UIImage", "UIApplication", "UIViewControllerRepresentable"}),
		NewImportRule("LocalAuthentication", []string{"LAContext", "LAPolicy"}),
		NewImportRule("UserNotifications", []string{"UNUserNotificationCenter", "UNNotificationRequest", "UNMutableNotificationContent"}),
		NewImportRule("Charts", []string{"Chart", "BarMark", "LineMark", "PointMark"}),
		NewImportRule("PencilKit", []string{"PKCanvasView", "PKDrawing", "PKToolPicker"}),
		NewImportRule("PhotosUI", []string{"PhotosPicker", "PhotosPickerItem", "PHPickerViewController"}),
		NewImportRule("CoreLocation", []string{"CLLocationManager", "CLLocation", "CLLocationCoordinate2D"}),
		NewImportRule("AVFoundation", []string{"AVAudioRecorder", "AVAudioPlayer", "AVAudioSession"}),
		NewImportRule("Foundation", []string{"Date", "UUID", "Data", "URL", "JSONDecoder", "JSONEncoder"},
			"SwiftUI", "UIKit", "SwiftData", "Combine", "CoreData"),
	}
}

// dedupeImports drops repeated import lines, keeping the first occurrence
func dedupeImports(text string) (string, int) {
	lines := strings.SplitAfter(text, "\n")
	seen := make(map[string]bool)
	var b strings.Builder
	removed := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if importLineRe.MatchString(line) {
			if seen[trimmed] {
				removed++
				continue
			}
			seen[trimmed] = true
		}
		b.WriteString(line)
	}
	if removed == 0 {
		return text, 0
	}
	return b.String(), removed
}
