// gatewaygen generates gateway class registrations for Go packages, and
// prints help pages for class models dumped by gatewayd -describe.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/gobridge/config"
	"github.com/chazu/gobridge/gowrap"
	"github.com/chazu/gobridge/reflection"
)

func main() {
	configPath := flag.String("config", "", "Path to gobridge.toml (default: search upwards from the working directory)")
	output := flag.String("o", "", "Output directory, overrides [wrap] output")
	include := flag.String("include", "", "Comma-separated identifiers to bind (command-line packages only)")
	models := flag.String("models", "", "Print help pages for a CBOR model file and exit")
	pattern := flag.String("pattern", "", "Member name pattern for -models")
	verbose := flag.Int("v", 0, "Log verbosity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gatewaygen [options] [import paths...]\n\n")
		fmt.Fprintf(os.Stderr, "Generates Register functions for the exported API of Go packages.\n")
		fmt.Fprintf(os.Stderr, "Without import paths, the [wrap] packages of gobridge.toml are used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gatewaygen strings encoding/hex\n")
		fmt.Fprintf(os.Stderr, "  gatewaygen -include Builder,NewReplacer strings\n")
		fmt.Fprintf(os.Stderr, "  gatewaygen -models models.cbor -pattern 'to*'\n")
	}
	flag.Parse()
	commonlog.Configure(*verbose, nil)

	if *models != "" {
		if err := printModels(*models, *pattern); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	pkgs := cfg.Wrap.Packages
	if flag.NArg() > 0 {
		var names []string
		if *include != "" {
			names = strings.Split(*include, ",")
		}
		pkgs = nil
		for _, path := range flag.Args() {
			pkgs = append(pkgs, config.WrapPackage{Import: path, Include: names})
		}
	}
	if len(pkgs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	outDir := cfg.WrapOutputDir()
	if *output != "" {
		outDir = *output
	}
	for _, p := range pkgs {
		if err := wrapPackage(p, outDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
		cfg.Dir = wd
	}
	return cfg, nil
}

func wrapPackage(p config.WrapPackage, outDir string) error {
	model, err := gowrap.IntrospectPackage(p.Import, gowrap.NewFilter(p.Include))
	if err != nil {
		return err
	}
	ns := p.Namespace
	if ns == "" {
		ns = gowrap.DefaultNamespace(p.Import)
	}
	res, err := gowrap.GenerateBindings(model, gowrap.Options{Namespace: ns})
	if err != nil {
		return err
	}

	dir := filepath.Join(outDir, ns)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, "bindings.go")
	if err := os.WriteFile(path, []byte(res.Code), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("%s -> %s (%d classes", p.Import, path, len(res.Classes))
	if n := len(res.Skipped); n > 0 {
		fmt.Printf(", %d skipped", n)
	}
	fmt.Println(")")
	for _, s := range res.Skipped {
		fmt.Printf("  skipped %s: %s\n", s.Name, s.Reason)
	}
	return nil
}

func printModels(path, pattern string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	models, err := reflection.UnmarshalModels(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	for _, m := range models {
		fmt.Println(reflection.HelpPage(m, pattern, true))
	}
	return nil
}
