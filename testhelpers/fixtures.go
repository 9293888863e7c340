package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
)

// Identifiers in DemoPBXProj
const (
	DemoContentViewRef = "AA0000000000000000000001"
	DemoAppRef         = "AA0000000000000000000002"
	DemoAssetsRef      = "AA0000000000000000000003"
	DemoProductRef     = "AA0000000000000000000004"
	DemoInfoPlistRef   = "AA0000000000000000000005"

	DemoContentViewBuildFile = "BB0000000000000000000001"
	DemoAppBuildFile         = "BB0000000000000000000002"
	DemoAssetsBuildFile      = "BB0000000000000000000003"

	DemoMainGroup     = "CC0000000000000000000001"
	DemoAppGroup      = "CC0000000000000000000002"
	DemoProductsGroup = "CC0000000000000000000003"
	DemoViewsGroup    = "CC0000000000000000000004"

	DemoSourcesPhase    = "DD0000000000000000000001"
	DemoFrameworksPhase = "DD0000000000000000000002"
	DemoResourcesPhase  = "DD0000000000000000000003"
)

// DemoPBXProj is a minimal single-target SwiftUI app manifest: Demo/ holds
// DemoApp.swift, ContentView.swift, an empty Views group, assets and Info.plist
const DemoPBXProj = `// !$*UTF8*$!
{
	archiveVersion = 1;
	classes = {
	};
	objectVersion = 56;
	objects = {

/* Begin PBXBuildFile section */
		BB0000000000000000000001 /* ContentView.swift in Sources */ = {isa = PBXBuildFile; fileRef = AA0000000000000000000001 /* ContentView.swift */; };
		BB0000000000000000000002 /* DemoApp.swift in Sources */ = {isa = PBXBuildFile; fileRef = AA0000000000000000000002 /* DemoApp.swift */; };
		BB0000000000000000000003 /* Assets.xcassets in Resources */ = {isa = PBXBuildFile; fileRef = AA0000000000000000000003 /* Assets.xcassets */; };
/* End PBXBuildFile section */

/* Begin PBXFileReference section */
		AA0000000000000000000001 /* ContentView.swift */ = {isa = PBXFileReference; lastKnownFileType = sourcecode.swift; path = ContentView.swift; sourceTree = "<group>"; };
		AA0000000000000000000002 /* DemoApp.swift */ = {isa = PBXFileReference; lastKnownFileType = sourcecode.swift; path = DemoApp.swift; sourceTree = "<group>"; };
		AA0000000000000000000003 /* Assets.xcassets */ = {isa = PBXFileReference; lastKnownFileType = folder.assetcatalog; path = Assets.xcassets; sourceTree = "<group>"; };
		AA0000000000000000000004 /* Demo.app */ = {isa = PBXFileReference; explicitFileType = wrapper.application; includeInIndex = 0; path = Demo.app; sourceTree = BUILT_PRODUCTS_DIR; };
		AA0000000000000000000005 /* Info.plist */ = {isa = PBXFileReference; lastKnownFileType = text.plist.xml; path = Info.plist; sourceTree = "<group>"; };
/* End PBXFileReference section */

/* Begin PBXFrameworksBuildPhase section */
		DD0000000000000000000002 /* Frameworks */ = {
			isa = PBXFrameworksBuildPhase;
			buildActionMask = 2147483647;
			files = (
			);
			runOnlyForDeploymentPostprocessing = 0;
		};
/* End PBXFrameworksBuildPhase section */

/* Begin PBXGroup section */
		CC0000000000000000000001 = {
			isa = PBXGroup;
			children = (
				CC0000000000000000000002 /* Demo */,
				CC0000000000000000000003 /* Products */,
			);
			sourceTree = "<group>";
		};
		CC0000000000000000000002 /* Demo */ = {
			isa = PBXGroup;
			children = (
				AA0000000000000000000002 /* DemoApp.swift */,
				AA0000000000000000000001 /* ContentView.swift */,
				CC0000000000000000000004 /* Views */,
				AA0000000000000000000003 /* Assets.xcassets */,
				AA0000000000000000000005 /* Info.plist */,
			);
			path = Demo;
			sourceTree = "<group>";
		};
		CC0000000000000000000003 /* Products */ = {
			isa = PBXGroup;
			children = (
				AA0000000000000000000004 /* Demo.app */,
			);
			name = Products;
			sourceTree = "<group>";
		};
		CC0000000000000000000004 /* Views */ = {
			isa = PBXGroup;
			children = (
			);
			path = Views;
			sourceTree = "<group>";
		};
/* End PBXGroup section */

/* Begin PBXNativeTarget section */
		EE0000000000000000000001 /* Demo */ = {
			isa = PBXNativeTarget;
			buildPhases = (
				DD0000000000000000000001 /* Sources */,
				DD0000000000000000000002 /* Frameworks */,
				DD0000000000000000000003 /* Resources */,
			);
			name = Demo;
			productName = Demo;
			productReference = AA0000000000000000000004 /* Demo.app */;
			productType = "com.apple.product-type.application";
		};
/* End PBXNativeTarget section */

/* Begin PBXProject section */
		FF0000000000000000000001 /* Project object */ = {
			isa = PBXProject;
			mainGroup = CC0000000000000000000001;
			productRefGroup = CC0000000000000000000003 /* Products */;
			projectDirPath = "";
			projectRoot = "";
			targets = (
				EE0000000000000000000001 /* Demo */,
			);
		};
/* End PBXProject section */

/* Begin PBXResourcesBuildPhase section */
		DD0000000000000000000003 /* Resources */ = {
			isa = PBXResourcesBuildPhase;
			buildActionMask = 2147483647;
			files = (
				BB0000000000000000000003 /* Assets.xcassets in Resources */,
			);
			runOnlyForDeploymentPostprocessing = 0;
		};
/* End PBXResourcesBuildPhase section */

/* Begin PBXSourcesBuildPhase section */
		DD0000000000000000000001 /* Sources */ = {
			isa = PBXSourcesBuildPhase;
			buildActionMask = 2147483647;
			files = (
				BB0000000000000000000001 /* ContentView.swift in Sources */,
				BB0000000000000000000002 /* DemoApp.swift in Sources */,
			);
			runOnlyForDeploymentPostprocessing = 0;
		};
/* End PBXSourcesBuildPhase section */
	};
	rootObject = FF0000000000000000000001 /* Project object */;
}
`

// DemoSources maps project-relative paths of the Demo app's Swift files to their contents
var DemoSources = map[string]string{
	"Demo/DemoApp.swift": `import SwiftUI

@main
struct DemoApp: App {
    var body: some Scene {
        WindowGroup {
            ContentView()
        }
    }
}
`,
	"Demo/ContentView.swift": `import SwiftUI

struct ContentView: View {
    var body: some View {
        Text("Hello")
    }
}
`,
}

// WriteFile writes content to root/rel, creating parent directories
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// WriteDemoProject lays out the Demo app under a temp directory and returns
// the project root and the manifest path
func WriteDemoProject(t testing.TB) (root, manifestPath string) {
	t.Helper()
	root = t.TempDir()
	manifestPath = WriteFile(t, root, "Demo.xcodeproj/project.pbxproj", DemoPBXProj)
	for rel, content := range DemoSources {
		WriteFile(t, root, rel, content)
	}
	WriteFile(t, root, "Demo/Info.plist", "<plist version=\"1.0\"><dict/></plist>\n")
	if err := os.MkdirAll(filepath.Join(root, "Demo", "Assets.xcassets"), 0o755); err != nil {
		t.Fatalf("mkdir assets: %v", err)
	}
	return root, manifestPath
}
