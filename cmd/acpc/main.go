package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acpctool/internal/logging"
	"acpctool/pkg/acpc"
	"acpctool/pkg/config"
	"acpctool/pkg/watch"
)

const usage = `Usage: acpc <command> [flags]

Commands:
  compute      compute the AC-PC transform once and write the outputs
  watch        recompute whenever the landmark files change
  init-config  write a default configuration file

Run "acpc <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "compute":
		err = cmdCompute(args[1:], stdout, stderr)
	case "watch":
		err = cmdWatch(args[1:], stderr)
	case "init-config":
		err = cmdInitConfig(args[1:], stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		logging.Logger().Error(err.Error())
		if acpc.IsDegenerate(err) {
			return 3
		}
		return 1
	}
	return 0
}

// commonFlags registers the flags shared by compute and watch. Flags set on
// the command line override the configuration file.
type commonFlags struct {
	configPath     string
	line           string
	midline        string
	landmarks      string
	center         string
	out            string
	report         string
	transformedDir string
	verbose        bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "acpc.yaml", "Configuration file (YAML or TOML)")
	fs.StringVar(&c.line, "line", "", "Markups file with the AC-PC line")
	fs.StringVar(&c.midline, "midline", "", "Markups file with the midline point(s)")
	fs.StringVar(&c.landmarks, "landmarks", "", "Markups point list with AC, PC and MS labels (replaces -line/-midline)")
	fs.StringVar(&c.center, "center", "", "Origin of AC-PC space: MC, AC or PC")
	fs.StringVar(&c.out, "out", "", "Output ITK transform file (.tfm)")
	fs.StringVar(&c.report, "json", "", "Output JSON report")
	fs.StringVar(&c.transformedDir, "transformed-dir", "", "Directory for markups mapped into AC-PC space")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

func (c *commonFlags) load(fs *flag.FlagSet, stderr io.Writer) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["line"] {
		cfg.Input.LineFile = c.line
	}
	if set["midline"] {
		cfg.Input.MidlineFile = c.midline
	}
	if set["landmarks"] {
		cfg.Input.LandmarksFile = c.landmarks
	}
	if set["center"] {
		cfg.Alignment.Center = c.center
	}
	if set["out"] {
		cfg.Output.TransformFile = c.out
	}
	if set["json"] {
		cfg.Output.ReportFile = c.report
	}
	if set["transformed-dir"] {
		cfg.Output.TransformedDir = c.transformedDir
	}
	if set["v"] {
		cfg.Output.Verbose = c.verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Setup(stderr, cfg.Output.Verbose)
	return cfg, nil
}

func cmdCompute(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("compute", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags commonFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := flags.load(fs, stderr)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, logging.Logger())
	if err != nil {
		return err
	}
	t, err := p.run()
	if err != nil {
		return err
	}

	m := t.ToACPC()
	fmt.Fprintf(stdout, "AC-PC transform (native RAS -> AC-PC RAS, center %s):\n", t.Center)
	for i := 0; i < 4; i++ {
		fmt.Fprintf(stdout, "  % .6f % .6f % .6f % .6f\n", m[i][0], m[i][1], m[i][2], m[i][3])
	}
	return nil
}

func cmdWatch(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags commonFlags
	flags.register(fs)
	debounce := fs.Duration("debounce", 0, "Wait this long after the last change before recomputing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := flags.load(fs, stderr)
	if err != nil {
		return err
	}
	if *debounce > 0 {
		cfg.Watch.Debounce = config.Duration(*debounce)
	}
	logger := logging.Logger()
	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	w, err := watch.New(p.inputs(), time.Duration(cfg.Watch.Debounce), logger, func(context.Context) error {
		_, err := p.run()
		return err
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching landmarks, press Ctrl-C to stop", "files", p.inputs())
	if err := w.Run(ctx); err != nil {
		return err
	}
	runs, failures := w.Stats()
	logger.Info("stopped", "updates", runs, "failed", failures)
	return nil
}

func cmdInitConfig(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "acpc.yaml", "Configuration file to create (YAML or TOML)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", *path)
	}
	if err := config.CreateDefaultConfigFile(*path); err != nil {
		return err
	}
	logging.Setup(stderr, false).Info("wrote default configuration", "file", *path)
	return nil
}
