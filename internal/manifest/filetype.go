package manifest

import (
	"path"
	"strings"
)

var fileTypes = map[string]string{
	".swift":        "sourcecode.swift",
	".m":            "sourcecode.c.objc",
	".mm":           "sourcecode.cpp.objcpp",
	".h":            "sourcecode.c.h",
	".c":            "sourcecode.c.c",
	".cpp":          "sourcecode.cpp.cpp",
	".metal":        "sourcecode.metal",
	".plist":        "text.plist.xml",
	".strings":      "text.plist.strings",
	".xcstrings":    "text.json.xcstrings",
	".json":         "text.json",
	".xcassets":     "folder.assetcatalog",
	".storyboard":   "file.storyboard",
	".xib":          "file.xib",
	".entitlements": "text.plist.entitlements",
	".xcdatamodeld": "wrapper.xcdatamodeld",
	".framework":    "wrapper.framework",
	".png":          "image.png",
	".jpg":          "image.jpeg",
	".md":           "net.daringfireball.markdown",
}

// FileTypeFor returns the lastKnownFileType for a path, "text" when unknown
func FileTypeFor(p string) string {
	if t, ok := fileTypes[strings.ToLower(path.Ext(p))]; ok {
		return t
	}
	return "text"
}

// phaseForType picks the build phase a file of the given type belongs in
func phaseForType(fileType string) string {
	switch {
	case strings.HasPrefix(fileType, "sourcecode.") && fileType != "sourcecode.c.h":
		return IsaSourcesPhase
	case fileType == "wrapper.xcdatamodeld":
		return IsaSourcesPhase
	case fileType == "wrapper.framework":
		return IsaFrameworksPhase
	case fileType == "text.plist.xml", fileType == "text.plist.entitlements", fileType == "sourcecode.c.h":
		return ""
	default:
		return IsaResourcesPhase
	}
}
