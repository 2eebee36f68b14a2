// Package diag implements the tagged diagnostics described in spec.md §4.M:
// parsers accumulate (severity, category, code) records while still
// returning a successfully parsed model. Presence of a diagnostic never by
// itself fails a parse.
package diag

import "fmt"

// Severity ranks how seriously a caller should treat a diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
	Anomaly
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Anomaly:
		return "anomaly"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Category identifies which parser subsystem raised a diagnostic.
type Category int

const (
	DosHeader Category = iota
	PeHeader
	CoffHeader
	OptionalHeader
	SectionTable
	Import
	Export
	Relocation
	Resource
	Exception
	Security
	Debug
	Tls
	LoadConfig
	BoundImport
	DelayImport
	Clr
	RichHeader
	Overlay
	Alignment
	EntryPoint
	NeHeader
	NeSegment
	NeResource
	LeHeader
	LeObject
	LePage
	LeFixup
	LeEntry
	General
)

func (c Category) String() string {
	names := [...]string{
		"DosHeader", "PeHeader", "CoffHeader", "OptionalHeader", "SectionTable",
		"Import", "Export", "Relocation", "Resource", "Exception", "Security",
		"Debug", "Tls", "LoadConfig", "BoundImport", "DelayImport", "Clr",
		"RichHeader", "Overlay", "Alignment", "EntryPoint", "NeHeader",
		"NeSegment", "NeResource", "LeHeader", "LeObject", "LePage", "LeFixup",
		"LeEntry", "General",
	}
	if int(c) < 0 || int(c) >= len(names) {
		return "Unknown"
	}
	return names[c]
}

// Code is a stable identifier for a specific diagnostic condition, e.g.
// "OPT_ZERO_ENTRY_POINT" or "IMP_FORWARDER_LOOP".
type Code string

// Diagnostic is a single tagged message surfaced by a parser.
type Diagnostic struct {
	Severity   Severity
	Category   Category
	Code       Code
	FileOffset int64
	RVA        uint32
	Message    string
	Details    string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s/%s] %s (offset=0x%x rva=0x%x) %s",
		d.Severity, d.Category, d.Code, d.FileOffset, d.RVA, d.Message)
}

// Collector accumulates diagnostics during a parse. It is intentionally a
// thin slice wrapper: spec.md §1 names the diagnostic collector container
// itself ("a trivial vector") as an external collaborator, not a component
// this library designs — callers supply one and read it back.
type Collector struct {
	entries []Diagnostic
}

// NewCollector returns an empty Collector ready for use.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends a diagnostic. Add is safe to call with a nil *Collector (a
// no-op), so parsers can accept a possibly-nil collector argument without
// a nil check at every call site.
func (c *Collector) Add(d Diagnostic) {
	if c == nil {
		return
	}
	c.entries = append(c.entries, d)
}

// Addf is a convenience wrapper building the Message via fmt.Sprintf.
func (c *Collector) Addf(sev Severity, cat Category, code Code, offset int64, rva uint32, format string, args ...any) {
	c.Add(Diagnostic{
		Severity:   sev,
		Category:   cat,
		Code:       code,
		FileOffset: offset,
		RVA:        rva,
		Message:    fmt.Sprintf(format, args...),
	})
}

// All returns every accumulated diagnostic in order.
func (c *Collector) All() []Diagnostic {
	if c == nil {
		return nil
	}
	return c.entries
}

// WorstSeverity returns the highest severity seen, or Info if empty.
func (c *Collector) WorstSeverity() Severity {
	worst := Info
	for _, d := range c.All() {
		if d.Severity > worst {
			worst = d.Severity
		}
	}
	return worst
}

// HasAtLeast reports whether any diagnostic meets or exceeds the given
// severity - the hook a strict caller uses to "reject any Warning-or-worse
// entry" per spec.md §7.
func (c *Collector) HasAtLeast(sev Severity) bool {
	for _, d := range c.All() {
		if d.Severity >= sev {
			return true
		}
	}
	return false
}
