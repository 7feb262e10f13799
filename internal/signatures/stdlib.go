package signatures

import (
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/funvibe/infoflow/internal/ir"
)

// ArgWhich names which argument (or the return value) a StdLib ArgSpec
// refers to.
type ArgWhich int

const (
	ArgRet ArgWhich = iota
	Arg0
	Arg1
	Arg2
	Arg3
	Arg4
	ArgAll
	ArgVar
)

// ArgSpec pairs a call-site position with the channel a StdLib entry routes
// it through.
type ArgSpec struct {
	Which ArgWhich
	Chan  ChannelKind
}

// stdlibEntry is one row of the table spec.md §4.D.2 describes: a function
// name plus its source and sink argument specs.
type stdlibEntry struct {
	Name    string
	Sources []ArgSpec
	Sinks   []ArgSpec
}

// StdLib is the table-driven signature of spec.md §4.D.2: exact-name lookup
// against a fixed table of known libc/libstdc++ entry points. The table
// itself lives in a Go slice; a small in-memory SQLite index
// (modernc.org/sqlite, ":memory:", never persisted) maps a name to its row
// so Accepts/Record do a single indexed SELECT rather than a linear scan,
// mirroring the spec's "binary search by exact name" without hand-rolling
// one.
type StdLib struct {
	db      *sql.DB
	entries []stdlibEntry
}

// NewStdLib builds the StdLib signature, opening an in-memory SQLite
// database and populating it from the built-in entry table.
func NewStdLib() (*StdLib, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("signatures: open stdlib index: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE signatures (name TEXT PRIMARY KEY, def_index INTEGER)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("signatures: create stdlib index: %w", err)
	}

	s := &StdLib{db: db, entries: stdlibTable()}

	stmt, err := db.Prepare(`INSERT INTO signatures (name, def_index) VALUES (?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("signatures: prepare stdlib insert: %w", err)
	}
	defer stmt.Close()
	for i, e := range s.entries {
		if _, err := stmt.Exec(e.Name, i); err != nil {
			db.Close()
			return nil, fmt.Errorf("signatures: index stdlib entry %q: %w", e.Name, err)
		}
	}
	return s, nil
}

// Close releases the in-memory index.
func (s *StdLib) Close() error { return s.db.Close() }

// Query runs an arbitrary read-only SQL statement against the in-memory
// signature index, for the `infoflow signatures --query` CLI introspection
// command.
func (s *StdLib) Query(sqlText string) (*sql.Rows, error) {
	return s.db.Query(sqlText)
}

// Names returns every registered signature name, in table order.
func (s *StdLib) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

func (s *StdLib) lookup(name string) (stdlibEntry, bool) {
	var idx int
	err := s.db.QueryRow(`SELECT def_index FROM signatures WHERE name = ?`, name).Scan(&idx)
	if err != nil {
		return stdlibEntry{}, false
	}
	return s.entries[idx], true
}

// Accepts reports whether name is present in the table.
func (s *StdLib) Accepts(site ir.CallSite, externName string) bool {
	_, ok := s.lookup(externName)
	return ok
}

// Record builds the FlowRecord for a call to externName, given the call
// site's instruction so argument/return Values can be resolved into
// Channels. An entry with no sources yields an Empty record, per spec.md
// §4.D.2's "names a function but lists no sources" clause.
func (s *StdLib) Record(site ir.CallSite, externName string) (FlowRecord, bool) {
	entry, ok := s.lookup(externName)
	if !ok {
		return FlowRecord{}, false
	}
	instr := site.Instr

	resolve := func(spec ArgSpec) []Channel {
		var vals []ir.Value
		switch spec.Which {
		case ArgRet:
			if instr.Result != nil {
				vals = []ir.Value{*instr.Result}
			}
		case Arg0, Arg1, Arg2, Arg3, Arg4:
			idx := int(spec.Which - Arg0)
			if idx < len(instr.Args) {
				vals = []ir.Value{instr.Args[idx]}
			}
		case ArgAll:
			vals = append(vals, instr.Args...)
		case ArgVar:
			if site.Caller != nil {
				return []Channel{VargChan(site.Caller)}
			}
			return nil
		}
		chans := make([]Channel, 0, len(vals))
		for _, v := range vals {
			switch spec.Chan {
			case ChanDirectPtr:
				chans = append(chans, DirectPtrChan(v))
			case ChanReachablePtr:
				chans = append(chans, ReachablePtrChan(v))
			default:
				chans = append(chans, ValueChan(v))
			}
		}
		return chans
	}

	rec := FlowRecord{SourceCtx: ir.ContextDefault, SinkCtx: ir.ContextDefault}
	for _, spec := range entry.Sources {
		rec.Sources = append(rec.Sources, resolve(spec)...)
	}
	for _, spec := range entry.Sinks {
		rec.Sinks = append(rec.Sinks, resolve(spec)...)
	}
	return rec, true
}

// stdlibTable returns the built-in entry set of spec.md §4.D.2, sorted by
// name (the ordering has no semantic weight now that lookup is indexed, but
// it keeps the table readable and diff-friendly).
func stdlibTable() []stdlibEntry {
	t := []stdlibEntry{
		// Heap allocation: the returned pointer's direct points-to set
		// carries the allocation size as a source; realloc also reads the
		// reachable contents of its input pointer as a source.
		{Name: "malloc", Sources: []ArgSpec{{Arg0, ChanValue}}, Sinks: []ArgSpec{{ArgRet, ChanDirectPtr}}},
		{Name: "calloc", Sources: []ArgSpec{{Arg0, ChanValue}, {Arg1, ChanValue}}, Sinks: []ArgSpec{{ArgRet, ChanDirectPtr}}},
		{Name: "realloc", Sources: []ArgSpec{{Arg0, ChanReachablePtr}, {Arg1, ChanValue}}, Sinks: []ArgSpec{{ArgRet, ChanDirectPtr}}},
		{Name: "free", Sources: []ArgSpec{{Arg0, ChanReachablePtr}}, Sinks: nil},

		// File I/O family.
		{Name: "fopen", Sources: []ArgSpec{{Arg0, ChanReachablePtr}}, Sinks: []ArgSpec{{ArgRet, ChanValue}}},
		{Name: "fclose", Sources: []ArgSpec{{Arg0, ChanValue}}, Sinks: nil},
		{Name: "fread", Sources: []ArgSpec{{Arg0, ChanReachablePtr}}, Sinks: []ArgSpec{{Arg0, ChanDirectPtr}}},
		{Name: "fwrite", Sources: []ArgSpec{{Arg0, ChanReachablePtr}}, Sinks: []ArgSpec{{Arg3, ChanValue}}},
		{Name: "fgetc", Sources: []ArgSpec{{Arg0, ChanValue}}, Sinks: []ArgSpec{{ArgRet, ChanValue}}},
		{Name: "fputc", Sources: []ArgSpec{{Arg0, ChanValue}}, Sinks: []ArgSpec{{Arg1, ChanValue}}},

		// String/memory: strlen is flow-less on purpose — no source channel
		// is modelled here, since its result carries no tainted bytes, only
		// a length derived from the scan.
		{Name: "strlen", Sources: nil, Sinks: nil},
		{Name: "strcpy", Sources: []ArgSpec{{Arg1, ChanReachablePtr}}, Sinks: []ArgSpec{{Arg0, ChanDirectPtr}, {ArgRet, ChanValue}}},
		{Name: "strcmp", Sources: []ArgSpec{{Arg0, ChanReachablePtr}, {Arg1, ChanReachablePtr}}, Sinks: []ArgSpec{{ArgRet, ChanValue}}},
		{Name: "strcat", Sources: []ArgSpec{{Arg1, ChanReachablePtr}}, Sinks: []ArgSpec{{Arg0, ChanDirectPtr}, {ArgRet, ChanValue}}},

		{Name: "sprintf", Sources: []ArgSpec{{ArgVar, ChanValue}}, Sinks: []ArgSpec{{Arg0, ChanDirectPtr}}},
		{Name: "snprintf", Sources: []ArgSpec{{ArgVar, ChanValue}}, Sinks: []ArgSpec{{Arg0, ChanDirectPtr}}},

		// Math: pure value-in, value-out.
		{Name: "sqrt", Sources: []ArgSpec{{Arg0, ChanValue}}, Sinks: []ArgSpec{{ArgRet, ChanValue}}},
		{Name: "pow", Sources: []ArgSpec{{Arg0, ChanValue}, {Arg1, ChanValue}}, Sinks: []ArgSpec{{ArgRet, ChanValue}}},
		{Name: "fabs", Sources: []ArgSpec{{Arg0, ChanValue}}, Sinks: []ArgSpec{{ArgRet, ChanValue}}},

		{Name: "qsort", Sources: []ArgSpec{{Arg0, ChanReachablePtr}}, Sinks: []ArgSpec{{Arg0, ChanDirectPtr}}},

		// C++ runtime: deliberately flow-less.
		{Name: "__cxa_throw", Sources: nil, Sinks: nil},
		{Name: "__cxa_begin_catch", Sources: nil, Sinks: nil},
		{Name: "__cxa_end_catch", Sources: nil, Sinks: nil},
		{Name: "__cxa_allocate_exception", Sources: nil, Sinks: nil},
	}
	sort.Slice(t, func(i, j int) bool { return t[i].Name < t[j].Name })
	return t
}
