package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/philipparndt/scene3mf/internal/config"
	"github.com/philipparndt/scene3mf/internal/inspect"
	"github.com/philipparndt/scene3mf/internal/logger"
	"github.com/philipparndt/scene3mf/internal/scene"
	"github.com/philipparndt/scene3mf/internal/threemf"
	"github.com/philipparndt/scene3mf/internal/ui"
	"github.com/philipparndt/scene3mf/version"
)

type CLI struct {
	Repack  *RepackCmd  `cmd:"" help:"Read 3MF files and write them back out as a single 3MF"`
	Inspect *InspectCmd `cmd:"" help:"Inspect a 3MF file and show its contents"`
	Version *VersionCmd `cmd:"" help:"Show version information"`

	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn"`
	LogFile  string `help:"Also write logs to this file"`
}

// AfterApply sets up logging before any command runs
func (cli *CLI) AfterApply() error {
	return logger.Init(cli.LogLevel, cli.LogFile)
}

type RepackCmd struct {
	Config    string   `help:"YAML config file describing the repack job" short:"f"`
	Output    string   `help:"Output file path (default: repacked.3mf)" short:"o"`
	Scale     float64  `help:"Extra scale factor applied on import" default:"1"`
	Precision int      `help:"Decimals written for vertex coordinates" default:"4"`
	Unit      string   `help:"Working length unit" default:"millimeter"`
	Files     []string `arg:"" optional:"" help:"3MF files to repack. Ignored when a config file is given."`
}

// Help adds additional help text with examples
func (c *RepackCmd) Help() string {
	return renderRepackHelp()
}

func (c *RepackCmd) Run() error {
	cfg, err := c.resolveConfig()
	if err != nil {
		return err
	}

	settings := scene.StaticUnits{Unit: cfg.Unit, Scale: 1}
	sc := scene.NewScene()

	importer := threemf.NewImporter(settings, threemf.ImportOptions{GlobalScale: cfg.Scale})
	imported := importer.Import(cfg.Inputs, sc)
	if imported == 0 {
		ui.PrintWarning("No objects found in the input files")
	} else {
		ui.PrintStep(fmt.Sprintf("Imported %d objects from %d files", imported, len(cfg.Inputs)))
	}

	exporter := threemf.NewExporter(settings, threemf.ExportOptions{Precision: cfg.Precision})
	written, err := exporter.Export(cfg.Output, sc)
	if err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Wrote %d objects to %s", written, cfg.Output))
	return nil
}

// resolveConfig merges the config file and command line into one job
// description. The config file wins when both are given.
func (c *RepackCmd) resolveConfig() (*config.Config, error) {
	if c.Config != "" {
		return config.NewLoader().Load(c.Config)
	}

	cfg := &config.Config{
		Inputs:    c.Files,
		Output:    c.Output,
		Unit:      c.Unit,
		Scale:     c.Scale,
		Precision: c.Precision,
	}
	if cfg.Output == "" {
		cfg.Output = "repacked.3mf"
	}
	if err := config.NewLoader().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type InspectCmd struct {
	File string `arg:"" help:"3MF file to inspect"`
}

func (c *InspectCmd) Run() error {
	inspector := inspect.NewInspector()
	return inspector.Inspect(c.File)
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := version.Get()
	fmt.Println(info.String())
	return nil
}

// Parse parses command line arguments and executes the appropriate command
func Parse() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("scene3mf"),
		kong.Description("3MF file importer, exporter and inspector"),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	logger.Sync()
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
