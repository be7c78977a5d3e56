// Command sarch32asm assembles and links SArch32 source files, orchestrating
// the lexer, preprocessor, parser, object generator and linker stages.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pi4erd/sarch32asm/internal/config"
	"github.com/pi4erd/sarch32asm/internal/disasm"
	"github.com/pi4erd/sarch32asm/internal/isa"
	"github.com/pi4erd/sarch32asm/internal/lexer"
	"github.com/pi4erd/sarch32asm/internal/linker"
	"github.com/pi4erd/sarch32asm/internal/object"
	"github.com/pi4erd/sarch32asm/internal/objectgen"
	"github.com/pi4erd/sarch32asm/internal/parser"
	"github.com/pi4erd/sarch32asm/internal/preprocessor"
	"github.com/pi4erd/sarch32asm/internal/sections"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
)

type options struct {
	output          string
	objectOnly      bool
	keepObject      bool
	linkScript      string
	linkObjects     stringList
	disassemble     bool
	link            bool
	entrypoint      string
	resolveSections bool
	configPath      string
	showVersion     bool
	showHelp        bool
}

// stringList accumulates repeated -l/--link-object flags.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// onceString rejects a flag given more than once (`-o` may not be
// repeated).
type onceString struct {
	value string
	set   bool
}

func (o *onceString) String() string { return o.value }
func (o *onceString) Set(v string) error {
	if o.set {
		return fmt.Errorf("output path specified more than once")
	}
	o.value = v
	o.set = true
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, inputs, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if opts.showHelp {
		printHelp()
		return 0
	}
	if opts.showVersion {
		fmt.Printf("sarch32asm %s (%s)\n", Version, Commit)
		return 0
	}

	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "sarch32asm: no input files")
		return 1
	}

	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sarch32asm: loading config: %v\n", err)
		return 1
	}
	if opts.output == "" {
		opts.output = cfg.Output.DefaultName + cfg.Output.DefaultExt
	}

	if opts.disassemble {
		return runDisassemble(inputs)
	}

	if opts.objectOnly {
		return runObjectOnly(opts, inputs)
	}

	return runAssembleAndLink(opts, inputs, cfg)
}

func parseFlags(args []string) (*options, []string, error) {
	fs := flag.NewFlagSet("sarch32asm", flag.ContinueOnError)
	opts := &options{}

	var output onceString
	fs.Var(&output, "o", "Output path (default output.bin)")
	fs.Var(&output, "output", "Output path (default output.bin)")
	fs.BoolVar(&opts.objectOnly, "b", false, "Compile to object only; do not link")
	fs.BoolVar(&opts.objectOnly, "object", false, "Compile to object only; do not link")
	fs.BoolVar(&opts.keepObject, "k", false, "Also write the linker's merged object as OUTPUT.sao")
	fs.BoolVar(&opts.keepObject, "keep-object", false, "Also write the linker's merged object as OUTPUT.sao")
	fs.StringVar(&opts.linkScript, "c", "", "JSON link script")
	fs.StringVar(&opts.linkScript, "link-script", "", "JSON link script")
	fs.Var(&opts.linkObjects, "l", "Additional object file to link (repeatable)")
	fs.Var(&opts.linkObjects, "link-object", "Additional object file to link (repeatable)")
	fs.BoolVar(&opts.disassemble, "d", false, "Treat input as object; print disassembly")
	fs.BoolVar(&opts.disassemble, "disassemble", false, "Treat input as object; print disassembly")
	fs.BoolVar(&opts.link, "link", false, "Treat input(s) as objects, not assembly")
	fs.StringVar(&opts.entrypoint, "entrypoint", "", "Synthesize a jump to LABEL ahead of user code")
	fs.BoolVar(&opts.resolveSections, "resolve-sections", false, "After linking, print resolved section layout")
	fs.StringVar(&opts.configPath, "config", "sarch32.toml", "Path to the TOML configuration file")
	fs.BoolVar(&opts.showHelp, "h", false, "Show help")
	fs.BoolVar(&opts.showHelp, "help", false, "Show help")
	fs.BoolVar(&opts.showVersion, "v", false, "Show version")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	opts.output = output.value

	return opts, fs.Args(), nil
}

func printHelp() {
	fmt.Println(`sarch32asm - SArch32 assembler and static linker

Usage: sarch32asm [flags] INPUT...

  -o, --output PATH        Output path (default output.bin)
  -b, --object             Compile to object only; do not link
  -k, --keep-object        Also write the linker's merged object as OUTPUT.sao
  -c, --link-script PATH   JSON link script
  -l, --link-object PATH   Additional object file to link (repeatable)
  -d, --disassemble        Treat input as object; print disassembly
      --link               Treat input(s) as objects, not assembly
      --entrypoint LABEL   Synthesize a jump to LABEL ahead of user code
      --resolve-sections   After linking, print resolved section layout
      --config PATH        TOML configuration file (default sarch32.toml)
  -h, --help               Show this help
  -v, --version            Show version information`)
}

// assembleOne runs one source file through lex -> preprocess -> parse ->
// object generation.
func assembleOne(path string) (*object.ObjectFile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	tokens, err := lexer.New(path, string(src)).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cache := preprocessor.NewFileCache(preprocessor.OSIncludeReader{BaseDir: filepath.Dir(path)})
	expanded, err := preprocessor.New(cache).Process(path, tokens)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	program, err := parser.New(expanded).Parse()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	gen := objectgen.New(objectgen.OSDataReader{BaseDir: filepath.Dir(path)})
	file, err := gen.Generate(program)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

func loadLinkStructure(opts *options, cfg *config.Config) (*linker.LinkStructure, error) {
	if opts.linkScript == "" {
		ls := linker.DefaultLinkStructure()
		for i := range ls.Sections {
			ls.Sections[i].Alignment = cfg.Link.DefaultAlignment
		}
		return ls, nil
	}
	data, err := os.ReadFile(opts.linkScript)
	if err != nil {
		return nil, fmt.Errorf("reading link script: %w", err)
	}
	return linker.LoadLinkStructure(data)
}

func runObjectOnly(opts *options, inputs []string) int {
	if len(inputs) != 1 {
		fmt.Fprintln(os.Stderr, "sarch32asm: --object requires a single input")
		return 1
	}

	file, err := assembleOne(inputs[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	data, err := object.Write(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runDisassemble(inputs []string) int {
	if len(inputs) != 1 {
		fmt.Fprintln(os.Stderr, "sarch32asm: --disassemble requires a single input")
		return 1
	}

	data, err := os.ReadFile(inputs[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	file, err := object.Read(data)
	if err != nil {
		if _, isWarning := err.(*object.Warning); !isWarning {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	table := isa.NewTable()
	for _, name := range file.Order {
		fmt.Print(disasm.Section(name, file.Sections[name], table, nil))
	}
	return 0
}

func runAssembleAndLink(opts *options, inputs []string, cfg *config.Config) int {
	l := linker.New()

	addFile := func(path string, asObject bool) error {
		if asObject {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			file, err := object.Read(data)
			if err != nil {
				if _, isWarning := err.(*object.Warning); !isWarning {
					return err
				}
				if cfg.Diagnostics.WarnOnVersionSkew {
					fmt.Fprintln(os.Stderr, "warning:", err)
				}
			}
			return l.AddObject(file)
		}
		file, err := assembleOne(path)
		if err != nil {
			return err
		}
		return l.AddObject(file)
	}

	if opts.entrypoint != "" {
		if err := l.AddObject(synthesizeEntrypoint(opts.entrypoint)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	for _, path := range inputs {
		if err := addFile(path, opts.link); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	for _, path := range opts.linkObjects {
		if err := addFile(path, true); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	ls, err := loadLinkStructure(opts, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	image, err := l.Link(ls)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if opts.resolveSections {
		report, err := sections.Generate(l, ls)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(report.String())
	}

	if err := os.WriteFile(opts.output, image, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if opts.keepObject {
		objData, err := l.Save()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		objPath := strings.TrimSuffix(opts.output, filepath.Ext(opts.output)) + ".sao"
		if err := os.WriteFile(objPath, objData, 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	return 0
}

// synthesizeEntrypoint builds a one-instruction "text" section containing
// an unconditional PC-relative jump to label, merged ahead of user code.
func synthesizeEntrypoint(label string) *object.ObjectFile {
	f := object.NewObjectFile()
	text := f.Section("text")
	text.Instructions = append(text.Instructions, object.InstructionData{
		Opcode:     12, // jpr: unconditional relative jump
		References: []object.Reference{{ArgPos: 0, Symbol: label}},
	})
	return f
}
