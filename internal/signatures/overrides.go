package signatures

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// overrideSpec is the YAML shape of one ArgSpec: a which-position tag and a
// channel tag, spelled the way a project file author would write them.
type overrideSpec struct {
	Which string `yaml:"which"`
	Chan  string `yaml:"chan"`
}

// overrideEntry is the YAML shape of one stdlibEntry.
type overrideEntry struct {
	Name    string         `yaml:"name"`
	Sources []overrideSpec `yaml:"sources"`
	Sinks   []overrideSpec `yaml:"sinks"`
}

// overrideFile is the top-level document LoadOverridesYAML parses.
type overrideFile struct {
	Signatures []overrideEntry `yaml:"signatures"`
}

var whichNames = map[string]ArgWhich{
	"ret": ArgRet, "arg0": Arg0, "arg1": Arg1, "arg2": Arg2, "arg3": Arg3, "arg4": Arg4,
	"all": ArgAll, "varargs": ArgVar,
}

var chanNames = map[string]ChannelKind{
	"value": ChanValue, "directptr": ChanDirectPtr, "reachableptr": ChanReachablePtr, "varg": ChanVarg,
}

func (s overrideSpec) resolve() (ArgSpec, error) {
	which, ok := whichNames[s.Which]
	if !ok {
		return ArgSpec{}, fmt.Errorf("signatures: unknown override arg position %q", s.Which)
	}
	chn, ok := chanNames[s.Chan]
	if !ok {
		return ArgSpec{}, fmt.Errorf("signatures: unknown override channel %q", s.Chan)
	}
	return ArgSpec{Which: which, Chan: chn}, nil
}

// LoadOverridesYAML reads a project file of additional StdLib entries (for
// libc variants the built-in table doesn't name) in the same
// (name, sources, sinks) shape as the table, and registers them on s,
// overwriting any existing entry of the same name.
func (s *StdLib) LoadOverridesYAML(r io.Reader) error {
	var doc overrideFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("signatures: parse overrides: %w", err)
	}

	for _, oe := range doc.Signatures {
		entry := stdlibEntry{Name: oe.Name}
		for _, os := range oe.Sources {
			spec, err := os.resolve()
			if err != nil {
				return err
			}
			entry.Sources = append(entry.Sources, spec)
		}
		for _, os := range oe.Sinks {
			spec, err := os.resolve()
			if err != nil {
				return err
			}
			entry.Sinks = append(entry.Sinks, spec)
		}

		if idx, ok := s.indexOf(entry.Name); ok {
			s.entries[idx] = entry
			continue
		}
		idx := len(s.entries)
		s.entries = append(s.entries, entry)
		if _, err := s.db.Exec(`INSERT OR REPLACE INTO signatures (name, def_index) VALUES (?, ?)`, entry.Name, idx); err != nil {
			return fmt.Errorf("signatures: index override %q: %w", entry.Name, err)
		}
	}
	return nil
}

func (s *StdLib) indexOf(name string) (int, bool) {
	for i, e := range s.entries {
		if e.Name == name {
			return i, true
		}
	}
	return 0, false
}
