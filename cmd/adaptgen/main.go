package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/funvibe/adapt/internal/cache"
	"github.com/funvibe/adapt/internal/collect"
	"github.com/funvibe/adapt/internal/config"
	"github.com/funvibe/adapt/internal/goimport"
	"github.com/funvibe/adapt/internal/image"
	"github.com/funvibe/adapt/internal/namecodec"
	"github.com/funvibe/adapt/internal/synth"
	"github.com/funvibe/adapt/internal/typemodel"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

const usage = `Usage: %[1]s <command> [arguments]

Commands:
  synth   [-config FILE] [-out DIR] [-store FILE]   synthesize every adapter in adapt.yaml
  inspect [-config FILE] [-adapter NAME]            show contracts and image entries
  inspect -go DIR -pkg PATH -type T [-iface I]...   inspect a Go type
  encode  NAME...                                   encode member names
  decode  SYMBOL...                                 decode symbols
  store   -db FILE [ls | rm KEY]                    manage an image store

Flags:
  -v, -vv   log verbosity
`

var colored = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func green(s string) string {
	if !colored {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func red(s string) string {
	if !colored {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, red("Error: ")+format+"\n", args...)
	os.Exit(1)
}

// cmdArgs returns the arguments after the subcommand, with verbosity flags
// removed.
func cmdArgs() []string {
	var out []string
	for _, arg := range os.Args[2:] {
		if arg == "-v" || arg == "-vv" {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// flagValues collects the values of a repeatable "-name value" flag.
func flagValues(args []string, name string) []string {
	var vals []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == name || args[i] == "-"+name {
			vals = append(vals, args[i+1])
			i++
		}
	}
	return vals
}

func flagValue(args []string, name, def string) string {
	if vals := flagValues(args, name); len(vals) > 0 {
		return vals[len(vals)-1]
	}
	return def
}

// positional returns the arguments that are neither flags nor flag values.
func positional(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") && len(args[i]) > 1 {
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

func configureLogging() {
	verbosity := 0
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-v":
			verbosity = 1
		case "-vv":
			verbosity = 2
		}
	}
	commonlog.Configure(verbosity, nil)
}

func handleHelp() bool {
	if len(os.Args) >= 2 && os.Args[1] != "help" && os.Args[1] != "-help" && os.Args[1] != "--help" {
		return false
	}
	fmt.Printf(usage, filepath.Base(os.Args[0]))
	return true
}

func loadModel(args []string) (*config.Config, *config.Model, string) {
	path := flagValue(args, "config", "")
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			fail("%s", err)
		}
		if found == "" {
			fail("%s not found", config.FileName)
		}
		path = found
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fail("%s", err)
	}

	var resolve config.Resolver
	if len(cfg.Imports) > 0 {
		importers := make([]*goimport.Importer, 0, len(cfg.Imports))
		for _, imp := range cfg.Imports {
			dir := imp.Dir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(filepath.Dir(path), dir)
			}
			im, err := goimport.Load(dir, imp.Patterns...)
			if err != nil {
				fail("%s", err)
			}
			importers = append(importers, im)
		}
		resolve = func(name string) (*typemodel.Type, bool) {
			for _, im := range importers {
				if t, ok := im.Resolve(name); ok {
					return t, true
				}
			}
			return nil, false
		}
	}

	model, err := cfg.Build(resolve)
	if err != nil {
		fail("%s: %s", path, err)
	}
	return cfg, model, path
}

func handleSynth() bool {
	if len(os.Args) < 2 || os.Args[1] != "synth" {
		return false
	}
	args := cmdArgs()
	cfg, model, path := loadModel(args)

	var opts []cache.RegistryOption
	storePath := flagValue(args, "store", cfg.StorePath(path))
	if storePath != "" {
		store, err := cache.OpenStore(storePath)
		if err != nil {
			fail("%s", err)
		}
		defer store.Close()
		opts = append(opts, cache.WithStore(store))
	}
	registry := cache.NewRegistry(synth.New(), opts...)

	outDir := flagValue(args, "out", "")
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			fail("creating %s: %s", outDir, err)
		}
	}

	failed := false
	for _, req := range model.Requests {
		res, key, err := registry.Get(req.Descriptor, req.Mode)
		if err != nil {
			fmt.Printf("%s %-20s %s\n", red("FAIL"), req.Name, err)
			failed = true
			continue
		}
		sam := "-"
		if res.SAM != "" {
			sam = res.SAM
		}
		fmt.Printf("%s   %-20s %s %s sam=%s auto=%t\n", green("OK"), req.Name, key, res.Name, sam, res.AutoConvertible)
		if outDir != "" {
			file := filepath.Join(outDir, req.Name+".img")
			if err := os.WriteFile(file, res.Image, 0o644); err != nil {
				fail("writing %s: %s", file, err)
			}
		}
	}
	if failed {
		os.Exit(1)
	}
	return true
}

func handleInspect() bool {
	if len(os.Args) < 2 || os.Args[1] != "inspect" {
		return false
	}
	args := cmdArgs()

	var reqs []config.Request
	if dir := flagValue(args, "go", ""); dir != "" {
		pkg := flagValue(args, "pkg", "")
		typ := flagValue(args, "type", "")
		if pkg == "" {
			fail("inspect -go requires -pkg")
		}
		im, err := goimport.Load(dir, pkg)
		if err != nil {
			fail("%s", err)
		}
		desc, err := im.Descriptor(pkg, typ, flagValues(args, "iface")...)
		if err != nil {
			fail("%s", err)
		}
		mode, err := typemodel.ParseMode(flagValue(args, "mode", ""))
		if err != nil {
			fail("%s", err)
		}
		reqs = append(reqs, config.Request{Name: typ, Descriptor: desc, Mode: mode})
	} else {
		_, model, _ := loadModel(args)
		only := flagValue(args, "adapter", "")
		for _, r := range model.Requests {
			if only == "" || r.Name == only {
				reqs = append(reqs, r)
			}
		}
		if len(reqs) == 0 {
			fail("no adapter named %q", only)
		}
	}

	engine := synth.New()
	for _, req := range reqs {
		img, contracts, err := engine.Emit(req.Descriptor, req.Mode)
		if err != nil {
			fmt.Printf("%s %s: %s\n", red("FAIL"), req.Name, err)
			continue
		}
		printInspection(req, img, contracts)
	}
	return true
}

func printInspection(req config.Request, img *image.Image, c *collect.Contracts) {
	fmt.Printf("%s %s (%s)\n", green("adapter"), req.Name, req.Descriptor)
	fmt.Printf("  type:        %s\n", img.Name)
	fmt.Printf("  mode:        %s\n", req.Mode)
	fmt.Printf("  sam:         %q auto-convertible=%t\n", img.SAM, img.AutoConvertible)
	fmt.Printf("  abstract:    %s\n", strings.Join(c.Abstract, ", "))
	var finals []string
	for key := range c.Final {
		finals = append(finals, key)
	}
	sort.Strings(finals)
	fmt.Printf("  final:       %s\n", strings.Join(finals, ", "))
	if c.Finalizer != nil {
		fmt.Printf("  finalizer:   %s\n", c.Finalizer)
	}
	fmt.Println("  constructors:")
	for _, ctor := range img.Ctors {
		fmt.Printf("    %-10s base#%d (%s)\n", ctor.Form, ctor.Base, strings.Join(ctor.Params, ","))
	}
	fmt.Println("  methods:")
	for _, m := range img.Methods {
		flags := ""
		if m.Abstract {
			flags += " abstract"
		}
		if m.Static {
			flags += " static"
		}
		fmt.Printf("    %-10s %s%s%s\n", m.Body, m.Symbol, m.Desc, flags)
	}
}

func handleCodec() bool {
	if len(os.Args) < 2 || (os.Args[1] != "encode" && os.Args[1] != "decode") {
		return false
	}
	names := positional(cmdArgs())
	if len(names) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s %s NAME...\n", os.Args[0], os.Args[1])
		os.Exit(1)
	}
	for _, name := range names {
		if os.Args[1] == "encode" {
			fmt.Println(namecodec.Encode(name))
		} else {
			fmt.Println(namecodec.Decode(name))
		}
	}
	return true
}

func handleStore() bool {
	if len(os.Args) < 2 || os.Args[1] != "store" {
		return false
	}
	args := cmdArgs()
	dbPath := flagValue(args, "db", "")
	if dbPath == "" {
		fail("store requires -db FILE")
	}
	store, err := cache.OpenStore(dbPath)
	if err != nil {
		fail("%s", err)
	}
	defer store.Close()

	rest := positional(args)
	if len(rest) == 0 {
		rest = []string{"ls"}
	}
	switch rest[0] {
	case "ls":
		records, err := store.List()
		if err != nil {
			fail("%s", err)
		}
		for _, r := range records {
			fmt.Printf("%s  %6d  %s  %s\n", r.Key, r.Size, r.Created.Format("2006-01-02 15:04:05"), r.Name)
		}
	case "rm":
		if len(rest) < 2 {
			fail("store rm requires a key")
		}
		for _, key := range rest[1:] {
			if err := store.Delete(key); err != nil {
				fail("%s: %s", key, err)
			}
		}
	default:
		fail("unknown store command %q", rest[0])
	}
	return true
}

func main() {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	configureLogging()

	if handleHelp() {
		return
	}
	if handleSynth() {
		return
	}
	if handleInspect() {
		return
	}
	if handleCodec() {
		return
	}
	if handleStore() {
		return
	}
	fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
	fmt.Fprintf(os.Stderr, usage, filepath.Base(os.Args[0]))
	os.Exit(2)
}
