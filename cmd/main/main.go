package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/islandscan/islandscan/pkg/markov"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// options receives every parsed flag and argument. Commands read only the
// fields they registered.
type options struct {
	configPath string
	logLevel   string

	name     string
	sequence string
	file     string
	query    string
	input    string
	output   string
	savePath string
	plotPath string

	annotation     string
	islandsPath    string
	backgroundPath string

	inside      string
	outside     string
	insideFile  string
	outsideFile string

	precision   int
	length      int
	window      int
	stringency  int
	workers     int
	topK        int
	minFreq     int
	seed        uint64
	temperature float64

	lengthSet     bool
	stringencySet bool
	workersSet    bool

	replace   bool
	random    bool
	synthetic bool
	logScore  bool
	fast      bool
	peaks     bool
	mute      bool
	verbose   bool
	progress  bool
	rebase    bool
}

func newApp(o *options) *kingpin.Application {
	app := kingpin.New("islandscan", "Train Markov chain models of CpG islands and scan genomes for island start sites.")
	app.Version(fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate))
	app.HelpFlag.Short('h')
	app.Flag("config", "Path to the JSON configuration file.").Default("config.json").StringVar(&o.configPath)
	app.Flag("log-level", "Override the configured log level (debug, info, warn, error).").StringVar(&o.logLevel)

	train := app.Command("train", "Train a model from newline separated records and store it.")
	train.Arg("name", "Name of the stored model.").Required().StringVar(&o.name)
	train.Flag("sequence", "Training sequence given inline.").Short('q').StringVar(&o.sequence)
	train.Flag("file", "File with one training record per line.").Short('f').ExistingFileVar(&o.file)
	train.Flag("precision", "Round probabilities to this many decimals (-1 keeps them exact).").Default("-1").IntVar(&o.precision)
	train.Flag("replace", "Replace an existing model with the same name.").BoolVar(&o.replace)

	score := app.Command("score", "Score a query with the inside and outside models.")
	score.Flag("query", "Query sequence.").Short('q').StringVar(&o.query)
	score.Flag("file", "Score a random record of this file.").Short('f').ExistingFileVar(&o.file)
	score.Flag("random", "Score a random sequence.").Short('r').BoolVar(&o.random)
	score.Flag("length", "Length of the random sequence.").Short('l').IsSetByUser(&o.lengthSet).IntVar(&o.length)
	score.Flag("log", "Sum log probabilities instead of multiplying probabilities.").Short('L').BoolVar(&o.logScore)
	score.Flag("seed", "Random seed, 0 picks one.").Uint64Var(&o.seed)
	registerModelFlags(score, o)

	scanCmd := app.Command("scan", "Scan a genome with a sliding window and call island start sites.")
	scanCmd.Flag("file", "Genome file (FASTA or one fragment per line).").Short('f').ExistingFileVar(&o.file)
	scanCmd.Flag("random", "Scan a random genome, or a random excerpt of --file.").Short('r').BoolVar(&o.random)
	scanCmd.Flag("synthetic", "Scan a genome sampled from the inside model.").BoolVar(&o.synthetic)
	scanCmd.Flag("length", "Length of the random genome or excerpt.").Short('l').IsSetByUser(&o.lengthSet).IntVar(&o.length)
	scanCmd.Flag("window", "Window size, defaults to the inside model's average length.").Short('w').IntVar(&o.window)
	scanCmd.Flag("stringency", "Peak calling stringency.").Short('S').IsSetByUser(&o.stringencySet).IntVar(&o.stringency)
	scanCmd.Flag("workers", "Number of concurrent scoring workers, 0 uses every CPU.").IsSetByUser(&o.workersSet).IntVar(&o.workers)
	scanCmd.Flag("peaks", "Draw called peaks on the plot.").Short('k').BoolVar(&o.peaks)
	scanCmd.Flag("save", "Write the scan to this file.").StringVar(&o.savePath)
	scanCmd.Flag("plot", "Write a plot of the scan to this image file.").Short('P').StringVar(&o.plotPath)
	scanCmd.Flag("mute", "Only report results and warnings.").Short('M').BoolVar(&o.mute)
	scanCmd.Flag("verbose", "Log every window with a positive score.").Short('v').BoolVar(&o.verbose)
	scanCmd.Flag("progress", "Show a progress bar.").BoolVar(&o.progress)
	scanCmd.Flag("seed", "Random seed, 0 picks one.").Uint64Var(&o.seed)
	registerModelFlags(scanCmd, o)

	show := app.Command("show", "Print and plot a saved scan.")
	show.Arg("file", "Saved scan file.").Required().ExistingFileVar(&o.input)
	show.Flag("plot", "Write a plot of the scan to this image file.").Short('P').StringVar(&o.plotPath)

	prepare := app.Command("prepare", "Extract annotated islands from a genome and sample matching background records.")
	prepare.Flag("genome", "Genome file (FASTA or one fragment per line).").Short('g').Required().ExistingFileVar(&o.file)
	prepare.Flag("annotation", "Tab separated annotation with name, start and end columns.").Short('a').Required().ExistingFileVar(&o.annotation)
	prepare.Flag("islands", "Write the island records to this file.").Short('i').Required().StringVar(&o.islandsPath)
	prepare.Flag("background", "Write length matched background records to this file.").Short('b').StringVar(&o.backgroundPath)
	prepare.Flag("rebase", "Shift annotation coordinates so the first region starts at zero.").BoolVar(&o.rebase)
	prepare.Flag("seed", "Random seed, 0 picks one.").Uint64Var(&o.seed)

	generate := app.Command("generate", "Sample a sequence from a model.")
	generate.Arg("model", "Stored model name or "+referenceInside+"/"+referenceOutside+".").Required().StringVar(&o.name)
	generate.Flag("length", "Length of the sequence.").Short('l').IsSetByUser(&o.lengthSet).IntVar(&o.length)
	generate.Flag("temperature", "Sampling temperature.").Default("1.0").Float64Var(&o.temperature)
	generate.Flag("top-k", "Only sample from the k most likely successors, 0 disables.").IntVar(&o.topK)
	generate.Flag("seed", "Random seed, 0 picks one.").Uint64Var(&o.seed)

	models := app.Command("models", "Manage stored models.")
	models.Command("list", "List stored models.")
	remove := models.Command("remove", "Remove a stored model.")
	remove.Arg("name", "Model name.").Required().StringVar(&o.name)
	export := models.Command("export", "Export a stored model as JSON.")
	export.Arg("name", "Model name.").Required().StringVar(&o.name)
	export.Flag("output", "Write to this file instead of stdout.").Short('o').StringVar(&o.output)
	imp := models.Command("import", "Import a model from JSON, merging counts into an existing trained model.")
	imp.Arg("file", "Exported model file.").Required().ExistingFileVar(&o.input)
	prune := models.Command("prune", "Drop rare transitions from a trained model.")
	prune.Arg("name", "Model name.").Required().StringVar(&o.name)
	prune.Flag("min-freq", "Transitions seen at most this often are removed.").Default("1").IntVar(&o.minFreq)
	models.Command("stats", "Show statistics for every stored model.")

	return app
}

func (o *options) validate() error {
	switch {
	case o.length < 0:
		return fmt.Errorf("--length must not be negative, got %d", o.length)
	case o.stringency < 0:
		return fmt.Errorf("--stringency must not be negative, got %d", o.stringency)
	case o.workers < 0:
		return fmt.Errorf("--workers must not be negative, got %d", o.workers)
	case o.window < 0:
		return fmt.Errorf("--window must not be negative, got %d", o.window)
	}
	return nil
}

func registerModelFlags(cmd *kingpin.CmdClause, o *options) {
	cmd.Flag("fast", "Use the built-in chromosome 22 CpG island models.").Short('F').BoolVar(&o.fast)
	cmd.Flag("inside", "Stored inside model name.").StringVar(&o.inside)
	cmd.Flag("outside", "Stored outside model name.").StringVar(&o.outside)
	cmd.Flag("inside-file", "Train the inside model from this record file instead.").ExistingFileVar(&o.insideFile)
	cmd.Flag("outside-file", "Train the outside model from this record file instead.").ExistingFileVar(&o.outsideFile)
}

// cli holds the state shared by the commands of one invocation.
type cli struct {
	cfg    *Config
	opts   *options
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
	rng    *rand.Rand

	db    *sql.DB
	store *markov.Store
}

// openStore opens the model database on first use.
func (c *cli) openStore() (*markov.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	if dir := filepath.Dir(c.cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := initDB(c.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup markov schema: %w", err)
	}
	store, err := markov.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating model store: %w", err)
	}
	store.SetLogger(c.logger)
	c.db, c.store = db, store
	return store, nil
}

func (c *cli) close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", "error", err)
		}
	}
}

// withOptions appends driver options to a data source name.
func withOptions(path, opts string) string {
	if strings.Contains(path, "?") {
		return path + "&" + opts
	}
	return path + "?" + opts
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// run parses argv and executes the selected command.
func run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	o := &options{}
	app := newApp(o)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	command, err := app.Parse(argv)
	if err != nil {
		return err
	}

	cfg, err := LoadConfig(o.configPath, stderr)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level := parseLogLevel(cfg.LogLevel)
	if o.logLevel != "" {
		level = parseLogLevel(o.logLevel)
	}
	if o.mute && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if !o.lengthSet {
		o.length = cfg.RandomLength
	}
	if !o.stringencySet {
		o.stringency = cfg.Stringency
	}
	if !o.workersSet {
		o.workers = cfg.Workers
	}
	if err = o.validate(); err != nil {
		return err
	}
	if o.workers == 0 {
		o.workers = runtime.NumCPU()
	}
	o.verbose = o.verbose || cfg.Verbose

	c := &cli{
		cfg:    cfg,
		opts:   o,
		logger: logger,
		out:    stdout,
		errOut: stderr,
		rng:    newRand(o.seed),
	}
	defer c.close()

	logger.Debug("Running command", "command", command, "version", Version)
	switch command {
	case "train":
		return c.train(ctx)
	case "score":
		return c.score(ctx)
	case "scan":
		return c.scan(ctx)
	case "show":
		return c.show()
	case "prepare":
		return c.prepare()
	case "generate":
		return c.generate(ctx)
	case "models list":
		return c.listModels(ctx)
	case "models remove":
		return c.removeModel(ctx)
	case "models export":
		return c.exportModel(ctx)
	case "models import":
		return c.importModel(ctx)
	case "models prune":
		return c.pruneModel(ctx)
	case "models stats":
		return c.stats(ctx)
	}
	return fmt.Errorf("unknown command %q", command)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("Command failed", "error", err)
		os.Exit(1)
	}
}
