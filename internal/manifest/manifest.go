// Package manifest reads and edits Xcode project.pbxproj files.
//
// A Manifest is an immutable parse of the manifest text plus indexes over the
// three linked tables the repair engine cares about: file references, group
// membership and build phase membership. Edits produce new text which is
// re-parsed and checked before it replaces the old one, so a failed edit
// never leaves partial state behind.
package manifest

import (
	"path"
	"regexp"
	"sort"
	"strings"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// Object kinds (isa values) used by the editor
const (
	IsaFileReference   = "PBXFileReference"
	IsaBuildFile       = "PBXBuildFile"
	IsaGroup           = "PBXGroup"
	IsaVariantGroup    = "PBXVariantGroup"
	IsaProject         = "PBXProject"
	IsaSourcesPhase    = "PBXSourcesBuildPhase"
	IsaResourcesPhase  = "PBXResourcesBuildPhase"
	IsaFrameworksPhase = "PBXFrameworksBuildPhase"
	IsaSyncedRootGroup = "PBXFileSystemSynchronizedRootGroup"
)

var (
	sectionBeginRe = regexp.MustCompile(`(?m)^/\* Begin (\w+) section \*/[ \t]*\r?\n`)
	sectionEndRe   = regexp.MustCompile(`(?m)^/\* End (\w+) section \*/`)
	idTokenRe      = regexp.MustCompile(`\b[0-9A-F]{24}\b`)
)

// FileReference is a PBXFileReference entry
type FileReference struct {
	ID         string
	Name       string
	Path       string
	FileType   string
	SourceTree string
}

// DisplayName is the name Xcode shows for the reference
func (f *FileReference) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return path.Base(f.Path)
}

// BuildFile is a PBXBuildFile entry wrapping one file reference
type BuildFile struct {
	ID      string
	FileRef string
}

// Group is a PBXGroup (or variant group) with ordered children
type Group struct {
	ID         string
	Isa        string
	Name       string
	Path       string
	SourceTree string
	Children   []string
}

// BuildPhase is a sources, resources or frameworks phase
type BuildPhase struct {
	ID    string
	Isa   string
	Files []string
}

// DisplayName returns the phase name used in manifest comments ("Sources", "Resources", "Frameworks")
func (p *BuildPhase) DisplayName() string {
	return strings.TrimSuffix(strings.TrimPrefix(p.Isa, "PBX"), "BuildPhase")
}

type object struct {
	id    string
	isa   string
	entry *entry
}

type section struct {
	name       string
	begin, end int // begin is just past the Begin marker line, end is the start of the End marker
}

// Manifest is a parsed project.pbxproj
type Manifest struct {
	text     string
	root     *dict
	objects  map[string]*object
	order    []string
	sections map[string]section
	ids      map[string]bool

	fileRefs   map[string]*FileReference
	buildFiles map[string]*BuildFile
	groups     map[string]*Group
	phases     map[string]*BuildPhase
	parents    map[string][]string // child id -> containing groups
	mainGroup  string
	syncedDirs []string

	gen IDGenerator
}

// Parse parses manifest text
func Parse(text string) (*Manifest, error) {
	return parseWith(text, nil)
}

func parseWith(text string, gen IDGenerator) (*Manifest, error) {
	root, err := parseDocument(text)
	if err != nil {
		return nil, bmerrors.NewManifestError("parse", "", err)
	}
	objEntry, ok := root.byKey["objects"]
	if !ok || objEntry.val.kind != dictValue {
		return nil, bmerrors.NewManifestError("parse", "", bmerrors.ErrSectionMissing)
	}

	m := &Manifest{
		text:       text,
		root:       root,
		objects:    make(map[string]*object),
		sections:   make(map[string]section),
		ids:        make(map[string]bool),
		fileRefs:   make(map[string]*FileReference),
		buildFiles: make(map[string]*BuildFile),
		groups:     make(map[string]*Group),
		phases:     make(map[string]*BuildPhase),
		parents:    make(map[string][]string),
		gen:        gen,
	}
	if m.gen == nil {
		m.gen = NewUUIDGenerator()
	}

	m.indexSections()
	for _, tok := range idTokenRe.FindAllString(text, -1) {
		m.ids[tok] = true
	}

	objects := objEntry.val.dict
	for _, e := range objects.entries {
		m.ids[e.key] = true
		if e.val.kind != dictValue {
			continue
		}
		if _, seen := m.objects[e.key]; seen {
			continue
		}
		d := e.val.dict
		obj := &object{id: e.key, isa: d.str("isa"), entry: e}
		m.objects[e.key] = obj
		m.order = append(m.order, e.key)
		m.indexObject(obj, d)
	}

	// a group listing the same child twice is still one parent
	for _, g := range m.groups {
		listed := make(map[string]bool, len(g.Children))
		for _, child := range g.Children {
			if listed[child] {
				continue
			}
			listed[child] = true
			m.parents[child] = append(m.parents[child], g.ID)
		}
	}
	for child := range m.parents {
		sort.Strings(m.parents[child])
	}

	return m, nil
}

func (m *Manifest) indexSections() {
	ends := make(map[string]int)
	for _, loc := range sectionEndRe.FindAllStringSubmatchIndex(m.text, -1) {
		ends[m.text[loc[2]:loc[3]]] = loc[0]
	}
	for _, loc := range sectionBeginRe.FindAllStringSubmatchIndex(m.text, -1) {
		name := m.text[loc[2]:loc[3]]
		if end, ok := ends[name]; ok && end >= loc[1] {
			m.sections[name] = section{name: name, begin: loc[1], end: end}
		}
	}
}

func (m *Manifest) indexObject(obj *object, d *dict) {
	switch obj.isa {
	case IsaFileReference:
		m.fileRefs[obj.id] = &FileReference{
			ID:         obj.id,
			Name:       d.str("name"),
			Path:       d.str("path"),
			FileType:   firstNonEmpty(d.str("lastKnownFileType"), d.str("explicitFileType")),
			SourceTree: d.str("sourceTree"),
		}
	case IsaBuildFile:
		m.buildFiles[obj.id] = &BuildFile{ID: obj.id, FileRef: d.str("fileRef")}
	case IsaGroup, IsaVariantGroup, "XCVersionGroup":
		m.groups[obj.id] = &Group{
			ID:         obj.id,
			Isa:        obj.isa,
			Name:       d.str("name"),
			Path:       d.str("path"),
			SourceTree: d.str("sourceTree"),
			Children:   d.list("children"),
		}
	case IsaSyncedRootGroup:
		if p := d.str("path"); p != "" {
			m.syncedDirs = append(m.syncedDirs, p)
		}
	case IsaProject:
		m.mainGroup = d.str("mainGroup")
	default:
		if strings.HasSuffix(obj.isa, "BuildPhase") {
			m.phases[obj.id] = &BuildPhase{ID: obj.id, Isa: obj.isa, Files: d.list("files")}
		}
	}
}

// Text returns the manifest text
func (m *Manifest) Text() string { return m.text }

// MainGroup returns the project's root group id
func (m *Manifest) MainGroup() string { return m.mainGroup }

// HasID reports whether id is used anywhere in the manifest
func (m *Manifest) HasID(id string) bool { return m.ids[id] }

// IDs returns every identifier in the manifest
func (m *Manifest) IDs() []string {
	out := make([]string, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FileReferences returns file references in manifest order
func (m *Manifest) FileReferences() []*FileReference {
	var out []*FileReference
	for _, id := range m.order {
		if f, ok := m.fileRefs[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// FileReference returns the reference with the given id
func (m *Manifest) FileReference(id string) (*FileReference, bool) {
	f, ok := m.fileRefs[id]
	return f, ok
}

// BuildFile returns the build file with the given id
func (m *Manifest) BuildFile(id string) (*BuildFile, bool) {
	b, ok := m.buildFiles[id]
	return b, ok
}

// Group returns the group with the given id
func (m *Manifest) Group(id string) (*Group, bool) {
	g, ok := m.groups[id]
	return g, ok
}

// Phase returns the build phase with the given id
func (m *Manifest) Phase(id string) (*BuildPhase, bool) {
	p, ok := m.phases[id]
	return p, ok
}

// Phases returns build phases of the given isa in manifest order; empty isa returns all
func (m *Manifest) Phases(isa string) []*BuildPhase {
	var out []*BuildPhase
	for _, id := range m.order {
		if p, ok := m.phases[id]; ok && (isa == "" || p.Isa == isa) {
			out = append(out, p)
		}
	}
	return out
}

// SourcesPhase returns the first sources build phase
func (m *Manifest) SourcesPhase() (*BuildPhase, bool) {
	phases := m.Phases(IsaSourcesPhase)
	if len(phases) == 0 {
		return nil, false
	}
	return phases[0], true
}

// Groups returns groups in manifest order
func (m *Manifest) Groups() []*Group {
	var out []*Group
	for _, id := range m.order {
		if g, ok := m.groups[id]; ok {
			out = append(out, g)
		}
	}
	return out
}

// ParentGroups returns the groups listing id as a child
func (m *Manifest) ParentGroups(id string) []string {
	return append([]string(nil), m.parents[id]...)
}

// BuildFilesFor returns the build files wrapping a file reference
func (m *Manifest) BuildFilesFor(fileRefID string) []string {
	var out []string
	for _, id := range m.order {
		if b, ok := m.buildFiles[id]; ok && b.FileRef == fileRefID {
			out = append(out, id)
		}
	}
	return out
}

// SyncedDirectories returns folders Xcode includes automatically (file system synchronized groups)
func (m *Manifest) SyncedDirectories() []string {
	return append([]string(nil), m.syncedDirs...)
}

// ResolvedPath returns the path of a file reference or group relative to the
// project directory, following the group chain up to the main group
func (m *Manifest) ResolvedPath(id string) string {
	var parts []string
	sourceTree := ""
	switch {
	case m.fileRefs[id] != nil:
		f := m.fileRefs[id]
		parts = append(parts, f.Path)
		sourceTree = f.SourceTree
	case m.groups[id] != nil:
		g := m.groups[id]
		if g.Path != "" {
			parts = append(parts, g.Path)
		}
		sourceTree = g.SourceTree
	default:
		return ""
	}

	visited := map[string]bool{id: true}
	current := id
	for sourceTree == "<group>" {
		parents := m.parents[current]
		if len(parents) == 0 {
			break
		}
		parent := parents[0]
		if visited[parent] {
			break
		}
		visited[parent] = true
		g := m.groups[parent]
		if g.Path != "" {
			parts = append(parts, g.Path)
		}
		sourceTree = g.SourceTree
		current = parent
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return path.Clean(path.Join(parts...))
}

// FindFileReference looks a reference up by id, resolved path, manifest path or display name
func (m *Manifest) FindFileReference(pathOrID string) (*FileReference, bool) {
	if f, ok := m.fileRefs[pathOrID]; ok {
		return f, true
	}
	clean := path.Clean(strings.TrimPrefix(pathOrID, "./"))
	refs := m.FileReferences()
	for _, f := range refs {
		if m.ResolvedPath(f.ID) == clean {
			return f, true
		}
	}
	for _, f := range refs {
		if f.Path == clean {
			return f, true
		}
	}
	if !strings.Contains(clean, "/") {
		for _, f := range refs {
			if f.DisplayName() == clean {
				return f, true
			}
		}
	}
	return nil, false
}

// GroupForDir returns the group whose resolved path is dir ("" or "." is the main group)
func (m *Manifest) GroupForDir(dir string) (*Group, bool) {
	dir = path.Clean(dir)
	if dir == "." {
		g, ok := m.groups[m.mainGroup]
		return g, ok
	}
	for _, g := range m.Groups() {
		if g.ID != m.mainGroup && m.ResolvedPath(g.ID) == dir {
			return g, true
		}
	}
	return nil, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
