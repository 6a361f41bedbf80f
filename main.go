// Package main provides the cell-annotator command line tool: it imports label
// images into annotation documents, reports on documents and extracts
// per-cell features against channel images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cell-annotator/internal/config"
	"cell-annotator/internal/entity"
	"cell-annotator/internal/errs"
	"cell-annotator/internal/features"
	"cell-annotator/internal/image"
	"cell-annotator/internal/project"
	"cell-annotator/internal/version"
	"cell-annotator/pkg/geometry"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks bad command line arguments.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "extract":
		err = runExtract(ctx, args[1:], stdout, stderr)
	case "import":
		err = runImport(args[1:], stdout, stderr)
	case "info":
		err = runInfo(args[1:], stdout, stderr)
	case "render":
		err = runRender(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		err = usagef("unknown command %q", args[0])
	}

	var usage usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.As(err, &usage):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		printUsage(stderr)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  cell-annotator extract [-n|--dryrun] [-s|--strict] [-o out.csv] [--sqlite out.db] [--stats mean,median] [--config cfg.json] DOCUMENT GLOB REGEX
  cell-annotator import [--background N] [--dilate N] [--config cfg.json] LABELS DOCUMENT
  cell-annotator info DOCUMENT
  cell-annotator render [--channel IMAGE] [--select 1,2] [--alpha N] [--outline N] DOCUMENT OUT.png
  cell-annotator version`)
}

// newFlagSet returns a flag set whose parse errors become usage errors.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, positional int) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usagef("%s: %v", fs.Name(), err)
	}
	if fs.NArg() != positional {
		return usagef("%s: want %d arguments, got %d", fs.Name(), positional, fs.NArg())
	}
	return nil
}

// loadConfig reads the settings file named on the command line, or the
// user's default settings.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("extract", stderr)
	var dryRun, strict bool
	fs.BoolVar(&dryRun, "n", false, "List the channel mapping without reading images")
	fs.BoolVar(&dryRun, "dryrun", false, "Same as -n")
	fs.BoolVar(&strict, "s", false, "Fail on the first channel error")
	fs.BoolVar(&strict, "strict", false, "Same as -s")
	csvPath := fs.String("o", "", "CSV output file (default stdout)")
	sqlitePath := fs.String("sqlite", "", "Also write the table to this SQLite database")
	stats := fs.String("stats", "", "Comma-separated statistics ("+strings.Join(features.StatisticNames(), ", ")+")")
	configPath := fs.String("config", "", "Settings file")
	if err := parseFlags(fs, args, 3); err != nil {
		return err
	}
	docPath, pattern, expr := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["s"] || set["strict"] {
		cfg.Strict = strict
	}
	if set["o"] {
		cfg.CSVPath = *csvPath
	}
	if set["sqlite"] {
		cfg.SQLitePath = *sqlitePath
	}
	if set["stats"] {
		cfg.Statistics = strings.Split(*stats, ",")
	}
	statistics, err := features.StatisticsByName(cfg.Statistics)
	if err != nil {
		return usagef("extract: %v", err)
	}

	channels, err := findChannels(pattern, expr)
	if err != nil {
		return err
	}
	if dryRun {
		for _, ch := range channels {
			fmt.Fprintf(stdout, "%s\t%s\n", ch.Name, ch.Path)
		}
		return nil
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channel images match %s", pattern)
	}

	doc, err := project.Load(docPath, project.LoadOptions{})
	if err != nil {
		return err
	}
	log.Printf("Loaded %d entities from %s", doc.Manager.ActiveLen(), docPath)

	x := &features.Extractor{Statistics: statistics, Strict: cfg.Strict}
	table, err := x.Extract(ctx, doc.Manager, channels)
	if errors.Is(err, errs.ErrCancelled) && table != nil {
		// Keep the channels finished before the interrupt.
		log.Printf("Interrupted, writing %d columns extracted so far", len(table.Columns))
		if werr := writeTable(context.WithoutCancel(ctx), cfg, table, stdout); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	}
	if err != nil {
		return err
	}

	if err := writeTable(ctx, cfg, table, stdout); err != nil {
		return err
	}
	log.Printf("Extracted %d rows x %d columns", len(table.Rows), len(table.Columns))
	return nil
}

// writeTable sends the table to the CSV output and, when configured, the
// SQLite database.
func writeTable(ctx context.Context, cfg *config.Config, table *features.Table, stdout io.Writer) error {
	if cfg.CSVPath == "" {
		if err := table.WriteCSV(stdout); err != nil {
			return err
		}
	} else if err := writeCSVFile(cfg.CSVPath, table); err != nil {
		return err
	}
	if cfg.SQLitePath != "" {
		sink := features.SQLiteSink{Path: cfg.SQLitePath, Table: cfg.SQLiteTable}
		if err := sink.Write(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// findChannels maps every supported image matching pattern to the channel
// name captured by the first group of expr on its base name. Files the
// expression does not match are skipped.
func findChannels(pattern, expr string) ([]features.Channel, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, usagef("extract: bad channel expression: %v", err)
	}
	if re.NumSubexp() < 1 {
		return nil, usagef("extract: channel expression %q has no capture group", expr)
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, usagef("extract: bad image glob: %v", err)
	}
	sort.Strings(paths)

	seen := make(map[string]string)
	var channels []features.Channel
	for _, p := range paths {
		if !image.IsSupportedFormat(p) {
			continue
		}
		m := re.FindStringSubmatch(filepath.Base(p))
		if m == nil || m[1] == "" {
			log.Printf("Skipping %s: no channel name", p)
			continue
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("channel %s matches both %s and %s", m[1], prev, p)
		}
		seen[m[1]] = p
		channels = append(channels, features.Channel{Name: m[1], Path: p})
	}
	return channels, nil
}

func writeCSVFile(path string, table *features.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runImport(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("import", stderr)
	background := fs.Uint("background", 0, "Label value of the background")
	dilate := fs.Int("dilate", 0, "Grow every region by this many pixels")
	configPath := fs.String("config", "", "Settings file")
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	labelsPath, docPath := fs.Arg(0), fs.Arg(1)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["background"] {
		cfg.Background = uint32(*background)
	}
	if set["dilate"] {
		cfg.Dilate = *dilate
	}
	if cfg.Dilate < 0 {
		return usagef("import: dilate must not be negative")
	}

	labels, err := image.LoadLabels(labelsPath)
	if err != nil {
		return err
	}
	doc := project.New()
	doc.SetLabelImage(docPath, labelsPath)
	doc.Shape = []int{labels.Height, labels.Width}

	created, err := doc.Manager.GenerateFromPixelmap(labels, entity.PixmapOptions{
		Background: cfg.Background,
		Dilate:     cfg.Dilate,
	})
	if err != nil {
		return err
	}
	if err := doc.Save(docPath, project.SaveOptions{}); err != nil {
		return err
	}
	log.Printf("Imported %d entities from %s", len(created), labelsPath)
	fmt.Fprintf(stdout, "%d entities written to %s\n", len(created), docPath)
	return nil
}

func runInfo(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("info", stderr)
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	docPath := fs.Arg(0)

	doc, err := project.Load(docPath, project.LoadOptions{KeepHistorical: true})
	if err != nil {
		return err
	}
	active := doc.Manager.ActiveLen()
	fmt.Fprintf(stdout, "Document:    %s\n", docPath)
	fmt.Fprintf(stdout, "Version:     %d\n", doc.Version)
	fmt.Fprintf(stdout, "UUID:        %s\n", doc.UUID)
	if doc.LabelImage != "" {
		fmt.Fprintf(stdout, "Label image: %s\n", doc.LabelImagePath(docPath))
	}
	if len(doc.Shape) == 2 {
		fmt.Fprintf(stdout, "Shape:       %dx%d\n", doc.Shape[1], doc.Shape[0])
	}
	fmt.Fprintf(stdout, "Entities:    %d active, %d historical\n", active, doc.Manager.Len()-active)
	return nil
}

func runRender(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("render", stderr)
	channelPath := fs.String("channel", "", "Channel image drawn as the background")
	selectIDs := fs.String("select", "", "Comma-separated entity ids to highlight")
	defaults := features.DefaultRenderOptions()
	alpha := fs.Uint("alpha", uint(defaults.FillAlpha), "Region fill opacity (0-255)")
	outline := fs.Int("outline", defaults.OutlineWidth, "Contour width in pixels")
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	docPath, outPath := fs.Arg(0), fs.Arg(1)
	if *alpha > 255 {
		return usagef("render: alpha %d out of range", *alpha)
	}
	selected, err := parseIDList(*selectIDs)
	if err != nil {
		return err
	}

	doc, err := project.Load(docPath, project.LoadOptions{})
	if err != nil {
		return err
	}

	var bg *image.Channel
	if *channelPath != "" {
		if bg, err = image.LoadChannel("background", *channelPath); err != nil {
			return err
		}
	}
	width, height := renderSize(doc, bg)
	if width == 0 || height == 0 {
		return fmt.Errorf("%s: nothing to render", docPath)
	}

	opts := defaults
	opts.FillAlpha = uint8(*alpha)
	opts.OutlineWidth = *outline
	img := features.Render(doc.Manager, width, height, bg, selected, opts)

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%dx%d overlay written to %s\n", width, height, outPath)
	return nil
}

// renderSize picks the overlay size: the background channel, then the
// document shape, then the extent of the entities.
func renderSize(doc *project.Document, bg *image.Channel) (int, int) {
	if bg != nil {
		return bg.Width, bg.Height
	}
	if len(doc.Shape) == 2 {
		return doc.Shape[1], doc.Shape[0]
	}
	var r geometry.RectInt
	for _, e := range doc.Manager.Entities() {
		if e.HasGeometry() {
			r = r.Union(e.BoundingBox())
		}
	}
	return max(r.MaxX(), 0), max(r.MaxY(), 0)
}

func parseIDList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int
	for _, field := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || id < 1 {
			return nil, usagef("bad entity id %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
