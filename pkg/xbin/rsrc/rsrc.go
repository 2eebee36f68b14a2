// Package rsrc implements the unified resource tree of spec.md §4.I: a
// three-level (type, id-or-name, language) tree for PE images and a flat,
// language-neutral adapter for NE modules, behind one iteration API.
//
// No struct definitions for IMAGE_RESOURCE_DIRECTORY or its entries
// survive distillation anywhere in original_source (pe_file.hpp only
// forward-declares a resource_directory type, and no concrete NE
// resource-table parser body survived either), so this package's byte
// layouts are grounded on spec.md §4.I's prose together with the
// standard documented PE/NE resource formats it summarizes - the same
// posture pkg/xbin/pefile's data-directory decoders take.
package rsrc

import "sort"

// Type is a resource's depth-0 classifier: a numeric type id, or a named
// string type (the high-bit-set case in PE, or an offset-to-name in NE).
type Type struct {
	IsName  bool
	ID      uint32
	NameStr string
}

// Known numeric resource types, per spec.md §4.I.
const (
	TypeCursor       uint32 = 1
	TypeBitmap       uint32 = 2
	TypeIcon         uint32 = 3
	TypeMenu         uint32 = 4
	TypeDialog       uint32 = 5
	TypeString       uint32 = 6
	TypeFontDir      uint32 = 7
	TypeFont         uint32 = 8
	TypeAccelerator  uint32 = 9
	TypeRCData       uint32 = 10
	TypeMessageTable uint32 = 11
	TypeGroupCursor  uint32 = 12
	TypeGroupIcon    uint32 = 14
	TypeVersion      uint32 = 16
	TypeDlgInclude   uint32 = 17
	TypePlugPlay     uint32 = 19
	TypeVXD          uint32 = 20
	TypeAniCursor    uint32 = 21
	TypeAniIcon      uint32 = 22
	TypeHTML         uint32 = 23
	TypeManifest     uint32 = 240
)

var typeNames = map[uint32]string{
	TypeCursor: "CURSOR", TypeBitmap: "BITMAP", TypeIcon: "ICON",
	TypeMenu: "MENU", TypeDialog: "DIALOG", TypeString: "STRING",
	TypeFontDir: "FONTDIR", TypeFont: "FONT", TypeAccelerator: "ACCELERATOR",
	TypeRCData: "RCDATA", TypeMessageTable: "MESSAGETABLE",
	TypeGroupCursor: "GROUP_CURSOR", TypeGroupIcon: "GROUP_ICON",
	TypeVersion: "VERSION", TypeDlgInclude: "DLGINCLUDE",
	TypePlugPlay: "PLUGPLAY", TypeVXD: "VXD", TypeAniCursor: "ANICURSOR",
	TypeAniIcon: "ANIICON", TypeHTML: "HTML", TypeManifest: "MANIFEST",
}

// Name returns the known constant name for t, or its bare id/string form.
func (t Type) Name() string {
	if t.IsName {
		return t.NameStr
	}
	if n, ok := typeNames[t.ID]; ok {
		return n
	}
	return ""
}

// NumericType builds a numeric Type key.
func NumericType(id uint32) Type { return Type{ID: id} }

// NamedType builds a named Type key.
func NamedType(name string) Type { return Type{IsName: true, NameStr: name} }

// Entry is a depth-1 key: a resource id or name.
type Entry struct {
	IsName bool
	ID     uint32
	Name   string
}

func NumericEntry(id uint32) Entry { return Entry{ID: id} }
func NamedEntry(name string) Entry { return Entry{IsName: true, Name: name} }

// Leaf is a resolved resource's raw location, per spec.md §4.I: "Leaf is
// (data_rva, size, codepage)."
type Leaf struct {
	DataRVA  uint32
	Size     uint32
	Codepage uint32
}

// Resource is one fully-addressed tree leaf, as returned by the flattened
// iteration operations.
type Resource struct {
	Type     Type
	Entry    Entry
	Language uint16
	Leaf     Leaf
}

// Tree is the unified, format-agnostic resource tree: type -> entry ->
// language -> leaf. PE populates all three levels; NE's flat table is
// adapted in by treating every resource as language 0 (spec.md §4.I:
// "NE: flat, language-neutral... all entries have language 0").
type Tree struct {
	byType map[Type]map[Entry]map[uint16]Leaf
}

// NewTree returns an empty tree, for format-specific walkers to populate.
func NewTree() *Tree {
	return &Tree{byType: make(map[Type]map[Entry]map[uint16]Leaf)}
}

// Add inserts one resource into the tree, creating intermediate levels as
// needed.
func (t *Tree) Add(typ Type, entry Entry, lang uint16, leaf Leaf) {
	byEntry, ok := t.byType[typ]
	if !ok {
		byEntry = make(map[Entry]map[uint16]Leaf)
		t.byType[typ] = byEntry
	}
	byLang, ok := byEntry[entry]
	if !ok {
		byLang = make(map[uint16]Leaf)
		byEntry[entry] = byLang
	}
	byLang[lang] = leaf
}

// AllResources returns every resource in the tree, in a stable order
// (sorted by type, then entry, then language) so callers get
// deterministic output across runs.
func (t *Tree) AllResources() []Resource {
	var out []Resource
	for _, typ := range t.sortedTypes() {
		for _, entry := range t.sortedEntries(typ) {
			for _, lang := range t.sortedLanguages(typ, entry) {
				out = append(out, Resource{Type: typ, Entry: entry, Language: lang, Leaf: t.byType[typ][entry][lang]})
			}
		}
	}
	return out
}

// ByType returns every resource of the given type.
func (t *Tree) ByType(typ Type) []Resource {
	var out []Resource
	for _, entry := range t.sortedEntries(typ) {
		for _, lang := range t.sortedLanguages(typ, entry) {
			out = append(out, Resource{Type: typ, Entry: entry, Language: lang, Leaf: t.byType[typ][entry][lang]})
		}
	}
	return out
}

// Find locates one resource by (type, entry) and an optional language; a
// nil lang selects the first language found (deterministically, the
// lowest numeric id), mirroring spec.md §4.I's find(type, id[, lang]).
func (t *Tree) Find(typ Type, entry Entry, lang *uint16) (Leaf, bool) {
	byLang, ok := t.byType[typ][entry]
	if !ok {
		return Leaf{}, false
	}
	if lang != nil {
		leaf, ok := byLang[*lang]
		return leaf, ok
	}
	langs := t.sortedLanguages(typ, entry)
	if len(langs) == 0 {
		return Leaf{}, false
	}
	return byLang[langs[0]], true
}

// Types returns every distinct type present in the tree, sorted.
func (t *Tree) Types() []Type { return t.sortedTypes() }

// IDsForType returns every numeric entry id under typ.
func (t *Tree) IDsForType(typ Type) []uint32 {
	var ids []uint32
	for entry := range t.byType[typ] {
		if !entry.IsName {
			ids = append(ids, entry.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NamesForType returns every named entry under typ.
func (t *Tree) NamesForType(typ Type) []string {
	var names []string
	for entry := range t.byType[typ] {
		if entry.IsName {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return names
}

// LanguagesFor returns every language id a (type, entry) pair carries.
func (t *Tree) LanguagesFor(typ Type, entry Entry) []uint16 {
	return t.sortedLanguages(typ, entry)
}

// Languages returns every distinct language id present anywhere in the
// tree.
func (t *Tree) Languages() []uint16 {
	seen := make(map[uint16]struct{})
	for _, byEntry := range t.byType {
		for _, byLang := range byEntry {
			for lang := range byLang {
				seen[lang] = struct{}{}
			}
		}
	}
	var out []uint16
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *Tree) sortedTypes() []Type {
	var out []Type
	for typ := range t.byType {
		out = append(out, typ)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsName != b.IsName {
			return !a.IsName // numeric types sort before named types
		}
		if a.IsName {
			return a.NameStr < b.NameStr
		}
		return a.ID < b.ID
	})
	return out
}

func (t *Tree) sortedEntries(typ Type) []Entry {
	var out []Entry
	for entry := range t.byType[typ] {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsName != b.IsName {
			return !a.IsName
		}
		if a.IsName {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out
}

func (t *Tree) sortedLanguages(typ Type, entry Entry) []uint16 {
	var out []uint16
	for lang := range t.byType[typ][entry] {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
