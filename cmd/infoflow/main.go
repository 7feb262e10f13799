// Command infoflow runs the whole-program taint analysis of
// github.com/funvibe/infoflow over a serialized IR module fixture.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/funvibe/infoflow/internal/config"
	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/driver"
	"github.com/funvibe/infoflow/internal/generator"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/irfixture"
	"github.com/funvibe/infoflow/internal/signatures"
	"github.com/funvibe/infoflow/internal/slicing"
	"github.com/funvibe/infoflow/internal/solver"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(os.Args[2:])
	case "slice":
		err = runSlice(os.Args[2:])
	case "multislice":
		err = runMultiSlice(os.Args[2:])
	case "signatures":
		err = runSignatures(os.Args[2:])
	case "-v", "-version", "--version":
		fmt.Println("infoflow " + config.Version)
		return
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "infoflow: "+err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: infoflow <command> [flags]

commands:
  analyze <module.bin>                          run the driver to a fixed point
  slice <module.bin> --source=NAME --sink=NAME  build and print one value slice
  multislice <module.bin> --sinks=NAME          bulk-solve a slice per module value
  signatures [--query=SQL]                      dump (or query) the StdLib table`)
}

func isColorTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func loadModule(path string) (*ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module: %w", err)
	}
	return irfixture.DecodeModule(data)
}

// newDriver wires a Driver against a decoded module using the trivial
// in-memory irfixture providers: real points-to/call-graph/post-dominator
// data is out of scope (spec.md §6 leaves these external), so every
// indirect call resolves to no candidates, and since the binary fixture
// format carries no call targets, no decoded call has a DirectCallee to
// follow.
func newDriver(m *ir.Module, flags config.Flags, logger *log.Logger) (*driver.Driver, error) {
	stdlib, err := signatures.NewStdLib()
	if err != nil {
		return nil, fmt.Errorf("building stdlib signatures: %w", err)
	}
	sigs := signatures.NewRegistry(stdlib)

	points := irfixture.NewPointsTo()
	callgraph := irfixture.NewCallGraph(nil)
	postdom := irfixture.NewPostDominators()
	sinks := generator.NewSinkSet(signatures.FlowRecord{})

	return driver.New(m, points, callgraph, postdom, sigs, sinks, flags, logger), nil
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	collapseExternal := fs.Bool("collapse-external-context", false, "analyze every external call in the default context")
	collapseIndirect := fs.Bool("collapse-indirect-context", false, "analyze every indirect call in the default context")
	dropAtSinks := fs.Bool("drop-at-sinks", false, "route global-sink sources into the *-sinks kinds")
	workers := fs.Int("workers", 0, "bulk solver worker count (0 lets the solver pick)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("analyze: missing <module.bin>")
	}

	m, err := loadModule(fs.Arg(0))
	if err != nil {
		return err
	}

	flags := config.Flags{
		CollapseExternalContext: *collapseExternal,
		CollapseIndirectContext: *collapseIndirect,
		DropAtSinks:             *dropAtSinks,
		ParallelWorkers:         *workers,
	}
	d, err := newDriver(m, flags, log.Default())
	if err != nil {
		return err
	}

	stats := d.Run(signatures.FlowRecord{})

	fmt.Printf("run %s: %s analysis units\n",
		stats.RunID, humanize.Comma(int64(stats.Units)))
	for _, kind := range sortedKindNames(stats.KindStats) {
		ks := stats.KindStats[kind]
		fmt.Printf("  %-16s explicit=%-10s implicit=%-10s\n",
			kind, humanize.Comma(int64(ks.Explicit)), humanize.Comma(int64(ks.Implicit)))
	}
	return nil
}

func sortedKindNames(m map[string]constraints.KindStats) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func runSlice(args []string) error {
	fs := flag.NewFlagSet("slice", flag.ExitOnError)
	source := fs.String("source", "", "name of the source value")
	sink := fs.String("sink", "", "name of the sink value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || *source == "" || *sink == "" {
		return fmt.Errorf("slice: usage: infoflow slice <module.bin> --source=NAME --sink=NAME")
	}

	m, err := loadModule(fs.Arg(0))
	if err != nil {
		return err
	}
	d, err := newDriver(m, config.DefaultFlags(), log.Default())
	if err != nil {
		return err
	}
	d.Run(signatures.FlowRecord{})

	srcVal, ok := findValue(m, *source)
	if !ok {
		return fmt.Errorf("slice: no value named %q in module", *source)
	}
	sinkVal, ok := findValue(m, *sink)
	if !ok {
		return fmt.Errorf("slice: no value named %q in module", *sink)
	}

	rec := signatures.FlowRecord{
		Sources: []signatures.Channel{signatures.ValueChan(srcVal)},
		Sinks:   []signatures.Channel{signatures.ValueChan(sinkVal)},
	}
	engine := solver.NewEngine(d.Store(), 0)
	sl := slicing.Build(d, engine, rec, "cli-source", "cli-sink", ir.ContextDefault)

	count := 0
	for _, v := range allValues(m) {
		if sl.InSlice(v, ir.ContextDefault) {
			count++
			fmt.Println(v.Name)
		}
	}
	if isColorTerminal() {
		fmt.Fprintf(os.Stderr, "%s values in slice\n", humanize.Comma(int64(count)))
	}
	return nil
}

func runMultiSlice(args []string) error {
	fs := flag.NewFlagSet("multislice", flag.ExitOnError)
	sinkName := fs.String("sinks", "", "comma-free single sink value name (repeat the command for more)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || *sinkName == "" {
		return fmt.Errorf("multislice: usage: infoflow multislice <module.bin> --sinks=NAME")
	}

	m, err := loadModule(fs.Arg(0))
	if err != nil {
		return err
	}
	d, err := newDriver(m, config.DefaultFlags(), log.Default())
	if err != nil {
		return err
	}
	d.Run(signatures.FlowRecord{})

	sinkVal, ok := findValue(m, *sinkName)
	if !ok {
		return fmt.Errorf("multislice: no value named %q in module", *sinkName)
	}
	var sources []signatures.Channel
	for _, v := range allValues(m) {
		sources = append(sources, signatures.ValueChan(v))
	}

	engine := solver.NewEngine(d.Store(), 0)
	engine.PartialSolutionFor(constraints.KindDefault, solver.Least)

	ms, err := slicing.BuildMulti(context.Background(), d, engine, sources,
		[]signatures.Channel{signatures.ValueChan(sinkVal)}, ir.ContextDefault)
	if err != nil {
		return fmt.Errorf("multislice: %w", err)
	}

	for i, src := range ms.Sources() {
		for _, v := range allValues(m) {
			if ms.InSlice(i, v, ir.ContextDefault) {
				fmt.Printf("%s -> %s\n", src.Val.Name, v.Name)
			}
		}
	}
	return nil
}

func runSignatures(args []string) error {
	fs := flag.NewFlagSet("signatures", flag.ExitOnError)
	query := fs.String("query", "", "ad-hoc SQL against the in-memory signature index")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stdlib, err := signatures.NewStdLib()
	if err != nil {
		return err
	}
	defer stdlib.Close()

	if *query == "" {
		for _, name := range stdlib.Names() {
			fmt.Println(name)
		}
		return nil
	}

	rows, err := stdlib.Query(*query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		fmt.Println(vals...)
	}
	return rows.Err()
}

func findValue(m *ir.Module, name string) (ir.Value, bool) {
	for _, v := range allValues(m) {
		if v.Name == name {
			return v, true
		}
	}
	return ir.Value{}, false
}

func allValues(m *ir.Module) []ir.Value {
	var vals []ir.Value
	for _, fn := range m.Functions {
		vals = append(vals, fn.Params...)
		vals = append(vals, fn.ReturnValue)
		for _, b := range fn.Blocks {
			for _, instr := range b.Instructions {
				if instr.Result != nil {
					vals = append(vals, *instr.Result)
				}
				vals = append(vals, instr.Operands...)
			}
		}
	}
	return vals
}
