package manifest

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/standardbeagle/buildmend/internal/debug"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

var bareValueRe = regexp.MustCompile(`^[A-Za-z0-9_$./-]+$`)

// FileOptions controls AddFileReference. Path is stored relative to the group
// the reference is placed in.
type FileOptions struct {
	Name     string // display name when it differs from the path's base name
	FileType string // lastKnownFileType; derived from the extension when empty
	GroupID  string // group to append the reference to; empty leaves it ungrouped
	PhaseID  string // build phase to add a build file to; empty adds none
}

type textEdit struct {
	start, end int
	text       string
}

// txn collects text edits against one manifest revision
type txn struct {
	m        *Manifest
	edits    []textEdit
	reserved map[string]bool
}

func (m *Manifest) begin() *txn {
	return &txn{m: m, reserved: make(map[string]bool)}
}

func (t *txn) replace(start, end int, text string) {
	t.edits = append(t.edits, textEdit{start: start, end: end, text: text})
}

// commit applies the edits, re-parses and swaps the result in only if no new
// integrity error appeared
func (t *txn) commit(op string) error {
	m := t.m
	if len(t.edits) == 0 {
		return nil
	}

	type indexed struct {
		textEdit
		idx int
	}
	ordered := make([]indexed, len(t.edits))
	for i, e := range t.edits {
		ordered[i] = indexed{e, i}
	}
	// back to front; later edits at the same offset go first so insertions keep call order
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].start != ordered[j].start {
			return ordered[i].start > ordered[j].start
		}
		return ordered[i].idx > ordered[j].idx
	})

	text := m.text
	for _, e := range ordered {
		text = text[:e.start] + e.text + text[e.end:]
	}

	next, err := parseWith(text, m.gen)
	if err != nil {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("%w: edit produced unparsable text: %v", bmerrors.ErrIntegrity, err))
	}

	before := make(map[string]bool)
	for _, v := range Errors(m.Validate()) {
		before[v.key()] = true
	}
	for _, v := range Errors(next.Validate()) {
		if !before[v.key()] {
			return bmerrors.NewManifestError(op, "", fmt.Errorf("%w: %s", bmerrors.ErrIntegrity, v))
		}
	}
	if checkSyntax(m.text) == nil {
		if err := checkSyntax(text); err != nil {
			return bmerrors.NewManifestError(op, "", fmt.Errorf("%w: %v", bmerrors.ErrIntegrity, err))
		}
	}

	debug.LogManifest("%s: %d edits committed", op, len(t.edits))
	*m = *next
	return nil
}

func (m *Manifest) requireSection(op, name string) error {
	if _, ok := m.sections[name]; !ok {
		return bmerrors.NewManifestError(op, name, bmerrors.ErrSectionMissing)
	}
	return nil
}

// insertObject places a one-line object right after the section's Begin marker
func (t *txn) insertObject(name, line string) {
	s := t.m.sections[name]
	t.replace(s.begin, s.begin, line+"\n")
}

// removeObject deletes an object entry, taking its whole line(s) when nothing else shares them
func (t *txn) removeObject(id string) {
	obj := t.m.objects[id]
	start, end := t.m.widenToLines(obj.entry.keyStart, obj.entry.end)
	t.replace(start, end, "")
}

func (t *txn) removeItem(it item) {
	start, end := t.m.widenToLines(it.start, it.end)
	t.replace(start, end, "")
}

// insertItem adds "id /* comment */," to a list at position pos (clamped)
func (t *txn) insertItem(list *value, pos int, id, comment string) {
	m := t.m
	entryText := id
	if comment != "" {
		entryText += " /* " + comment + " */"
	}
	if pos < 0 || pos > len(list.items) {
		pos = len(list.items)
	}

	multiline := strings.Contains(m.text[list.open:list.close], "\n")
	if !multiline && len(list.items) == 0 {
		indent := m.lineIndent(list.open)
		t.replace(list.open, list.close+1, "(\n"+indent+"\t"+entryText+",\n"+indent+")")
		return
	}

	if multiline {
		var indent string
		if len(list.items) > 0 {
			indent = m.lineIndent(list.items[0].start)
		} else {
			indent = m.lineIndent(list.close) + "\t"
		}
		var at int
		if pos < len(list.items) {
			at = m.lineStart(list.items[pos].start)
			if !isBlank(m.text[at:list.items[pos].start]) {
				t.replace(list.items[pos].start, list.items[pos].start, entryText+", ")
				return
			}
		} else {
			at = m.lineStart(list.close)
			if !isBlank(m.text[at:list.close]) {
				t.appendInline(list, entryText)
				return
			}
		}
		t.replace(at, at, indent+entryText+",\n")
		return
	}

	if pos < len(list.items) {
		t.replace(list.items[pos].start, list.items[pos].start, entryText+", ")
		return
	}
	t.appendInline(list, entryText)
}

func (t *txn) appendInline(list *value, entryText string) {
	last := list.items[len(list.items)-1]
	if strings.HasSuffix(t.m.text[last.start:last.end], ",") {
		t.replace(last.end, last.end, " "+entryText+",")
		return
	}
	t.replace(last.end, last.end, ", "+entryText)
}

func (m *Manifest) lineStart(pos int) int {
	return strings.LastIndexByte(m.text[:pos], '\n') + 1
}

func (m *Manifest) lineEnd(pos int) int {
	nl := strings.IndexByte(m.text[pos:], '\n')
	if nl < 0 {
		return len(m.text)
	}
	return pos + nl + 1
}

func (m *Manifest) lineIndent(pos int) string {
	start := m.lineStart(pos)
	end := start
	for end < len(m.text) && (m.text[end] == ' ' || m.text[end] == '\t') {
		end++
	}
	return m.text[start:end]
}

func (m *Manifest) widenToLines(start, end int) (int, int) {
	ls := m.lineStart(start)
	le := m.lineEnd(end)
	if isBlank(m.text[ls:start]) && isBlank(m.text[end:le]) {
		return ls, le
	}
	return start, end
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

func quoteValue(s string) string {
	if bareValueRe.MatchString(s) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func listOf(obj *object, key string) (*value, error) {
	e, ok := obj.entry.val.dict.byKey[key]
	if !ok || e.val.kind != listValue {
		return nil, fmt.Errorf("%s %s has no %s list", obj.isa, obj.id, key)
	}
	return e.val, nil
}

func (m *Manifest) displayName(id string) string {
	if f, ok := m.fileRefs[id]; ok {
		return f.DisplayName()
	}
	if g, ok := m.groups[id]; ok {
		if g.Name != "" {
			return g.Name
		}
		return g.Path
	}
	return ""
}

// AddFileReference creates a PBXFileReference and, when requested by opts,
// its group slot and build file in the same edit
func (m *Manifest) AddFileReference(p string, opts FileOptions) (string, error) {
	const op = "add file reference"
	if p == "" {
		return "", bmerrors.NewManifestError(op, "", errors.New("empty path"))
	}
	if err := m.requireSection(op, IsaFileReference); err != nil {
		return "", err
	}

	t := m.begin()
	id, err := t.addFileReference(p, opts)
	if err != nil {
		return "", bmerrors.NewManifestError(op, "", err)
	}
	if err := t.commit(op); err != nil {
		return "", err
	}
	return id, nil
}

func (t *txn) addFileReference(p string, opts FileOptions) (string, error) {
	m := t.m
	id, err := m.newID(t.reserved)
	if err != nil {
		return "", err
	}

	fileType := opts.FileType
	if fileType == "" {
		fileType = FileTypeFor(p)
	}
	name := path.Base(p)
	line := fmt.Sprintf("\t\t%s /* %s */ = {isa = %s; lastKnownFileType = %s; ", id, name, IsaFileReference, quoteValue(fileType))
	if opts.Name != "" && opts.Name != name {
		name = opts.Name
		line = fmt.Sprintf("\t\t%s /* %s */ = {isa = %s; lastKnownFileType = %s; name = %s; ", id, name, IsaFileReference, quoteValue(fileType), quoteValue(name))
	}
	line += fmt.Sprintf("path = %s; sourceTree = \"<group>\"; };", quoteValue(p))
	t.insertObject(IsaFileReference, line)

	if opts.GroupID != "" {
		g, ok := m.objects[opts.GroupID]
		if !ok || m.groups[opts.GroupID] == nil {
			return "", fmt.Errorf("group %s: %w", opts.GroupID, bmerrors.ErrNotFound)
		}
		if err := m.requireSection("add to group", g.isa); err != nil {
			return "", err
		}
		children, err := listOf(g, "children")
		if err != nil {
			return "", err
		}
		t.insertItem(children, -1, id, name)
	}

	if opts.PhaseID != "" {
		if _, err := t.addBuildFile(opts.PhaseID, id, name); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (t *txn) addBuildFile(phaseID, fileRefID, name string) (string, error) {
	m := t.m
	phase, ok := m.phases[phaseID]
	if !ok {
		return "", fmt.Errorf("build phase %s: %w", phaseID, bmerrors.ErrNotFound)
	}
	if err := m.requireSection("add build phase member", IsaBuildFile); err != nil {
		return "", err
	}
	if err := m.requireSection("add build phase member", phase.Isa); err != nil {
		return "", err
	}
	files, err := listOf(m.objects[phaseID], "files")
	if err != nil {
		return "", err
	}

	bfID, err := m.newID(t.reserved)
	if err != nil {
		return "", err
	}
	comment := fmt.Sprintf("%s in %s", name, phase.DisplayName())
	t.insertObject(IsaBuildFile, fmt.Sprintf("\t\t%s /* %s */ = {isa = %s; fileRef = %s /* %s */; };",
		bfID, comment, IsaBuildFile, fileRefID, name))
	t.insertItem(files, -1, bfID, comment)
	return bfID, nil
}

// RemoveFileReference deletes a file reference with its build files, their
// phase slots and every group slot naming it
func (m *Manifest) RemoveFileReference(pathOrID string) error {
	const op = "remove file reference"
	f, ok := m.FindFileReference(pathOrID)
	if !ok {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("%s: %w", pathOrID, bmerrors.ErrNotFound))
	}
	if err := m.requireSection(op, IsaFileReference); err != nil {
		return err
	}

	t := m.begin()
	if err := t.removeFileReference(f.ID); err != nil {
		return bmerrors.NewManifestError(op, "", err)
	}
	return t.commit(op)
}

func (t *txn) removeFileReference(id string) error {
	m := t.m
	buildFiles := m.BuildFilesFor(id)
	if len(buildFiles) > 0 {
		if err := m.requireSection("remove file reference", IsaBuildFile); err != nil {
			return err
		}
	}
	wrapped := make(map[string]bool, len(buildFiles))
	for _, bf := range buildFiles {
		wrapped[bf] = true
		t.removeObject(bf)
	}

	for _, p := range m.Phases("") {
		files, err := listOf(m.objects[p.ID], "files")
		if err != nil {
			continue
		}
		for _, it := range files.items {
			if wrapped[it.val] || it.val == id {
				t.removeItem(it)
			}
		}
	}

	visited := make(map[string]bool)
	for _, gid := range m.parents[id] {
		if visited[gid] {
			continue
		}
		visited[gid] = true
		children, err := listOf(m.objects[gid], "children")
		if err != nil {
			continue
		}
		for _, it := range children.items {
			if it.val == id {
				t.removeItem(it)
			}
		}
	}

	t.removeObject(id)
	return nil
}

// AddToGroup inserts entryID into a group's children at position; a negative
// or out of range position appends
func (m *Manifest) AddToGroup(groupID, entryID string, position int) error {
	const op = "add to group"
	g, ok := m.groups[groupID]
	if !ok {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("group %s: %w", groupID, bmerrors.ErrNotFound))
	}
	if _, ok := m.objects[entryID]; !ok {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("entry %s: %w", entryID, bmerrors.ErrNotFound))
	}
	if len(m.parents[entryID]) > 0 {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("%s in group %s: %w", entryID, m.parents[entryID][0], bmerrors.ErrAlreadyGrouped))
	}
	if entryID == groupID {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("group %s cannot contain itself", groupID))
	}
	if err := m.requireSection(op, g.Isa); err != nil {
		return err
	}

	children, err := listOf(m.objects[groupID], "children")
	if err != nil {
		return bmerrors.NewManifestError(op, g.Isa, err)
	}
	t := m.begin()
	t.insertItem(children, position, entryID, m.displayName(entryID))
	return t.commit(op)
}

// AddBuildPhaseMember wraps a file reference in a new build file listed in the
// phase. If the phase already builds the reference its build file id is returned.
func (m *Manifest) AddBuildPhaseMember(phaseID, fileRefID string) (string, error) {
	const op = "add build phase member"
	phase, ok := m.phases[phaseID]
	if !ok {
		return "", bmerrors.NewManifestError(op, "", fmt.Errorf("build phase %s: %w", phaseID, bmerrors.ErrNotFound))
	}
	f, ok := m.fileRefs[fileRefID]
	if !ok {
		return "", bmerrors.NewManifestError(op, "", fmt.Errorf("file reference %s: %w", fileRefID, bmerrors.ErrNotFound))
	}
	for _, member := range phase.Files {
		if b, ok := m.buildFiles[member]; ok && b.FileRef == fileRefID {
			return member, nil
		}
	}

	t := m.begin()
	bfID, err := t.addBuildFile(phaseID, fileRefID, f.DisplayName())
	if err != nil {
		var me *bmerrors.ManifestError
		if errors.As(err, &me) {
			return "", err
		}
		return "", bmerrors.NewManifestError(op, "", err)
	}
	if err := t.commit(op); err != nil {
		return "", err
	}
	return bfID, nil
}

// RemoveBuildPhaseMember drops the phase slots wrapping fileRefID. Build files
// no other phase lists are deleted with them.
func (m *Manifest) RemoveBuildPhaseMember(phaseID, fileRefID string) error {
	const op = "remove build phase member"
	if _, ok := m.phases[phaseID]; !ok {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("build phase %s: %w", phaseID, bmerrors.ErrNotFound))
	}
	files, err := listOf(m.objects[phaseID], "files")
	if err != nil {
		return bmerrors.NewManifestError(op, "", err)
	}

	listedElsewhere := make(map[string]bool)
	for _, p := range m.Phases("") {
		if p.ID == phaseID {
			continue
		}
		for _, member := range p.Files {
			listedElsewhere[member] = true
		}
	}

	t := m.begin()
	removed := 0
	for _, it := range files.items {
		b, ok := m.buildFiles[it.val]
		if !ok || b.FileRef != fileRefID {
			continue
		}
		t.removeItem(it)
		removed++
		if !listedElsewhere[b.ID] {
			t.removeObject(b.ID)
		}
	}
	if removed == 0 {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("%s not in phase %s: %w", fileRefID, phaseID, bmerrors.ErrNotFound))
	}
	return t.commit(op)
}

// RelocateFileReference points a reference at newPath, given relative to the
// project directory. The path stays group-relative when the reference's group
// contains newPath; otherwise it becomes SOURCE_ROOT-relative.
func (m *Manifest) RelocateFileReference(id, newPath string) error {
	const op = "relocate file reference"
	obj, ok := m.objects[id]
	if !ok || m.fileRefs[id] == nil {
		return bmerrors.NewManifestError(op, "", fmt.Errorf("file reference %s: %w", id, bmerrors.ErrNotFound))
	}
	if err := m.requireSection(op, IsaFileReference); err != nil {
		return err
	}
	newPath = path.Clean(newPath)

	d := obj.entry.val.dict
	pathEntry, ok := d.byKey["path"]
	if !ok || pathEntry.val.kind != scalarValue {
		return bmerrors.NewManifestError(op, IsaFileReference, fmt.Errorf("file reference %s has no path", id))
	}

	stored, sourceTree := newPath, "SOURCE_ROOT"
	if parents := m.parents[id]; len(parents) > 0 {
		dir := m.ResolvedPath(parents[0])
		switch {
		case dir == ".":
			stored, sourceTree = newPath, "<group>"
		case strings.HasPrefix(newPath, dir+"/"):
			stored, sourceTree = strings.TrimPrefix(newPath, dir+"/"), "<group>"
		}
	}

	t := m.begin()
	t.replace(pathEntry.val.start, pathEntry.val.end, quoteValue(stored))
	if st, ok := d.byKey["sourceTree"]; ok && st.val.kind == scalarValue {
		if st.val.str != sourceTree {
			t.replace(st.val.start, st.val.end, quoteValue(sourceTree))
		}
	} else {
		t.replace(pathEntry.end, pathEntry.end, " sourceTree = "+quoteValue(sourceTree)+";")
	}
	return t.commit(op)
}

// AddSourceFile adds a project-relative file to the group matching its
// directory (nearest ancestor group, else the main group) and to the build
// phase its file type belongs in
func (m *Manifest) AddSourceFile(relPath string) (string, error) {
	const op = "add source file"
	relPath = path.Clean(relPath)
	if f, ok := m.FindFileReference(relPath); ok && m.ResolvedPath(f.ID) == relPath {
		return f.ID, nil
	}
	if err := m.requireSection(op, IsaFileReference); err != nil {
		return "", err
	}

	opts := FileOptions{}
	stored := relPath
	for dir := path.Dir(relPath); ; dir = path.Dir(dir) {
		if g, ok := m.GroupForDir(dir); ok {
			opts.GroupID = g.ID
			if dir != "." {
				stored = strings.TrimPrefix(relPath, dir+"/")
			}
			break
		}
		if dir == "." || dir == "/" {
			break
		}
	}

	if isa := phaseForType(FileTypeFor(relPath)); isa != "" {
		if phases := m.Phases(isa); len(phases) > 0 {
			opts.PhaseID = phases[0].ID
		}
	}

	t := m.begin()
	id, err := t.addFileReference(stored, opts)
	if err != nil {
		return "", bmerrors.NewManifestError(op, "", err)
	}
	if err := t.commit(op); err != nil {
		return "", err
	}
	return id, nil
}
