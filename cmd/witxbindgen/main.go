// Command witxbindgen is a thin CLI front end over the Generator: it reads
// an IDL file and a JS source file and writes the synthesized glue module.
// The IDL parser proper is out of this module's scope (spec.md §1); this
// command's own small YAML schema (idlfile.go) exists only to drive the
// Generator from the command line rather than from Go literals.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	witxbindgen "github.com/Asraelite/witx-bindgen"
	"github.com/Asraelite/witx-bindgen/internal/idl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "witxbindgen",
		Short:         "Synthesize a self-contained glue WebAssembly module from an IDL and a JS source file",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newGenerateCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	var (
		idlPath            string
		jsPath             string
		outPath            string
		importSpidermonkey bool
		verbose            bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a glue module from an IDL file and a JS source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(idlPath, jsPath, outPath, importSpidermonkey, verbose)
		},
	}

	cmd.Flags().StringVar(&idlPath, "idl", "", "path to the IDL file (required)")
	cmd.Flags().StringVar(&jsPath, "js", "", "path to the JS source file (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "output .wasm path (default: JS file's stem plus .wasm)")
	cmd.Flags().BoolVar(&importSpidermonkey, "import-spidermonkey", true, "import spidermonkey.wasm as an instance rather than embedding it (embed mode is unimplemented)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log generator phase boundaries at debug level")
	_ = cmd.MarkFlagRequired("idl")
	_ = cmd.MarkFlagRequired("js")

	return cmd
}

func runGenerate(idlPath, jsPath, outPath string, importSpidermonkey, verbose bool) error {
	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	jsSource, err := os.ReadFile(jsPath)
	if err != nil {
		return fmt.Errorf("reading JS source: %w", err)
	}

	imports, exports, exportIface, err := loadIDLFile(idlPath)
	if err != nil {
		return fmt.Errorf("loading IDL file: %w", err)
	}

	cfg := witxbindgen.Config{
		ScriptName:         filepath.Base(jsPath),
		ScriptSource:       string(jsSource),
		ImportSpidermonkey: importSpidermonkey,
		Logger:             logger,
	}

	g, err := witxbindgen.New(cfg)
	if err != nil {
		return fmt.Errorf("constructing generator: %w", err)
	}

	if err := g.PreprocessAll(imports, exports); err != nil {
		return fmt.Errorf("preprocessing: %w", err)
	}

	for _, spec := range imports {
		if err := g.PreprocessOne(spec.Interface, idl.Import); err != nil {
			return fmt.Errorf("preprocessing interface %q: %w", spec.Interface, err)
		}
		for _, fn := range spec.Funcs {
			if err := g.Import(fn); err != nil {
				return fmt.Errorf("import %s.%s: %w", spec.Interface, fn.Name, err)
			}
		}
	}

	if exportIface != "" {
		if err := g.PreprocessOne(exportIface, idl.Export); err != nil {
			return fmt.Errorf("preprocessing interface %q: %w", exportIface, err)
		}
	}
	for _, fn := range exports {
		if err := g.Export(fn); err != nil {
			return fmt.Errorf("export %s: %w", fn.Name, err)
		}
	}

	if outPath == "" {
		outPath = g.OutputName()
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	if err := g.FinishAll(out); err != nil {
		return fmt.Errorf("finishing module: %w", err)
	}

	fmt.Fprintf(os.Stdout, "wrote %s\n", outPath)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}
