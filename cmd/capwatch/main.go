package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ramkansal/capwatch/internal/fetcher"
	"github.com/ramkansal/capwatch/internal/output"
	"github.com/ramkansal/capwatch/internal/resolver"
	"github.com/ramkansal/capwatch/internal/store"
	"github.com/ramkansal/capwatch/internal/watch"
	"github.com/ramkansal/capwatch/pkg/plugin"
)

var version = "1.0.0"

// flags holds all parsed CLI options.
type flags struct {
	// Target
	url   string
	tjing bool
	watch string

	// Request
	userAgent string
	timeout   int
	noRender  bool
	chromeBin string

	// Storage / output
	db      string
	output  string
	json    bool
	verbose bool
	noColor bool

	// Meta
	showHelp    bool
	showVersion bool
}

func main() {
	enableANSI()
	f := parseFlags()

	if f.showVersion {
		fmt.Printf("capwatch v%s\n", version)
		os.Exit(0)
	}

	if f.showHelp || (f.url == "" && f.watch == "") {
		printUsage()
		if !f.showHelp {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if f.noColor {
		colorEnabled = false
	}
	log := newLogger(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	registerSignals(sig)
	go func() {
		<-sig
		fmt.Fprintf(os.Stderr, "\n\n%s Interrupt received, stopping...\n", clr("yellow", "!"))
		cancel()
	}()

	if f.watch != "" {
		runWatch(ctx, f, log)
		return
	}
	runSingle(ctx, f, log)
}

func newLogger(f *flags) zerolog.Logger {
	level := zerolog.InfoLevel
	if f.verbose {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: f.noColor}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func newEngine(cfg *resolver.Config, log zerolog.Logger) *resolver.Engine {
	opts := []resolver.Option{resolver.WithLogger(log)}
	if !cfg.DisableRender {
		opts = append(opts, resolver.WithRenderer(fetcher.NewBrowserRenderer(fetcher.BrowserRendererConfig{
			Settle:    cfg.RenderSettle,
			UserAgent: cfg.UserAgent,
			Bin:       cfg.ChromeBin,
		})))
	}
	return resolver.New(cfg, opts...)
}

func runSingle(ctx context.Context, f *flags, log zerolog.Logger) {
	if !strings.HasPrefix(f.url, "http://") && !strings.HasPrefix(f.url, "https://") {
		f.url = "https://" + f.url
	}

	cfg := buildConfig(f)
	engine := newEngine(cfg, log)
	defer engine.Close()

	start := time.Now()
	var res plugin.CapacityResult
	if f.tjing {
		res = engine.ResolveTjing(ctx, f.url, cfg.Timeout)
	} else {
		res = engine.Resolve(ctx, f.url, cfg.Timeout)
	}

	if f.db != "" {
		st, err := store.Open(ctx, f.db)
		if err != nil {
			fatal("open store: %v", err)
		}
		defer st.Close()
		if err := st.Put(ctx, f.url, f.url, res); err != nil {
			log.Warn().Err(err).Msg("failed to store result")
		}
	}

	if f.json {
		printJSON(res)
		return
	}

	printBanner()
	fmt.Printf("\n  %s %s\n\n", clr("cyan", "Target:"), f.url)
	printResult(f.url, "", res, watch.NearlyFull(res, watch.DefaultThreshold))
	fmt.Printf("\n  %s\n\n", clr("dim", "resolved in "+output.FmtDur(time.Since(start))))
}

func runWatch(ctx context.Context, f *flags, log zerolog.Logger) {
	wcfg, err := watch.LoadConfig(f.watch)
	if err != nil {
		fatal("%v", err)
	}

	cfg := buildConfig(f)
	if f.timeout <= 0 {
		cfg.Timeout = wcfg.Timeout
	}
	if wcfg.RenderTimeout > 0 {
		cfg.RenderTimeout = wcfg.RenderTimeout
	}
	if f.userAgent == "" && wcfg.UserAgent != "" {
		cfg.UserAgent = wcfg.UserAgent
	}
	if f.db != "" {
		wcfg.Database = f.db
	}
	if f.output != "" {
		wcfg.Report = f.output
	}

	engine := newEngine(cfg, log)
	defer engine.Close()

	st, err := store.Open(ctx, wcfg.Database)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer st.Close()

	rcfg := watch.RunnerConfig{
		Concurrency: wcfg.Concurrency,
		Timeout:     cfg.Timeout,
		Threshold:   wcfg.ThresholdOrDefault(),
		Store:       st,
		Logger:      log,
	}
	if !f.json {
		rcfg.OnOutcome = func(o watch.Outcome) {
			printResult(o.Competition.Name, o.Competition.URL, o.Result, o.NearlyFull)
		}
	}
	if wcfg.Report != "" {
		rcfg.Writer = output.NewTextWriter(wcfg.Report)
	}

	if !f.json {
		printBanner()
		fmt.Printf("\n  %s %s  %s %d  %s %d  %s %s\n\n",
			clr("dim", "Watch:"), f.watch,
			clr("dim", "Competitions:"), len(wcfg.Competitions),
			clr("dim", "Workers:"), wcfg.Concurrency,
			clr("dim", "Store:"), wcfg.Database,
		)
	}

	runner := watch.NewRunner(engine, rcfg)
	outcomes, err := runner.Run(ctx, wcfg.Competitions)
	if err != nil {
		log.Warn().Err(err).Msg("watch interrupted")
	}

	if f.json {
		type row struct {
			Name       string                `json:"name"`
			URL        string                `json:"url"`
			Result     plugin.CapacityResult `json:"result"`
			NearlyFull bool                  `json:"nearly_full"`
		}
		rows := make([]row, 0, len(outcomes))
		for _, o := range outcomes {
			rows = append(rows, row{o.Competition.Name, o.Competition.URL, o.Result, o.NearlyFull})
		}
		printJSON(rows)
		return
	}

	s := runner.Summary()
	fmt.Println()
	fmt.Printf("  %s\n", strings.Repeat("─", 50))
	fmt.Printf("  %s Watch complete\n", clr("green", "✓"))
	fmt.Printf("    Competitions: %s checked in %s\n",
		clr("cyan", fmt.Sprintf("%d", s.Total)), output.FmtDur(s.Duration))
	fmt.Printf("    Results:      %s resolved, %s no data, %s nearly full\n",
		clr("green", fmt.Sprintf("%d", s.Resolved)),
		clr("dim", fmt.Sprintf("%d", s.NoData)),
		clr("red", fmt.Sprintf("%d", s.NearlyFull)),
	)
	if wcfg.Report != "" {
		fmt.Printf("    Report: %s\n", clr("green", wcfg.Report))
	}
	fmt.Println()
}

func printResult(name, url string, res plugin.CapacityResult, nearlyFull bool) {
	mark := clr("green", "●")
	switch {
	case res.Note.IsFailure():
		mark = clr("red", "✗")
	case nearlyFull:
		mark = clr("yellow", "▲")
	}

	label, counts := name, output.FormatCounts(res)
	if url != "" {
		label, counts = output.Cell(name, 32), output.Cell(counts, 22)
	}
	if nearlyFull {
		counts = clr("yellow", counts)
	}
	fmt.Printf("  %s %s %s %s\n", mark, label, counts, clr("dim", "["+res.Note.String()+"]"))
	if url != "" && url != name {
		fmt.Printf("      %s\n", clr("dim", "├─ "+url))
	}
	if res.Start != "" {
		fmt.Printf("      %s %s\n", clr("dim", "├─ registration opens:"), res.Start)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode json: %v", err)
	}
}

// ---------- Flag parsing ----------

func parseFlags() *flags {
	f := &flags{}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			fatal("flag %s requires an argument", arg)
			return ""
		}
		nextInt := func() int {
			v := next()
			var n int
			fmt.Sscanf(v, "%d", &n)
			return n
		}

		switch arg {
		// Target
		case "-u", "--url":
			f.url = next()
		case "--tjing":
			f.tjing = true
		case "-w", "--watch":
			f.watch = next()

		// Request
		case "-ua", "--user-agent":
			f.userAgent = next()
		case "-t", "--timeout":
			f.timeout = nextInt()
		case "--no-render":
			f.noRender = true
		case "--chrome":
			f.chromeBin = next()

		// Storage / output
		case "--db":
			f.db = next()
		case "-o", "--output":
			f.output = next()
		case "--json":
			f.json = true
		case "-v", "--verbose":
			f.verbose = true
		case "-nc", "--no-color":
			f.noColor = true

		// Meta
		case "-h", "--help":
			f.showHelp = true
		case "-V", "--version":
			f.showVersion = true

		default:
			// Treat bare arg as URL if no URL yet
			if !strings.HasPrefix(arg, "-") && f.url == "" {
				f.url = arg
			} else {
				fmt.Fprintf(os.Stderr, "Unknown flag: %s (use --help for usage)\n", arg)
				os.Exit(1)
			}
		}
	}
	return f
}

func buildConfig(f *flags) *resolver.Config {
	cfg := resolver.DefaultConfig()
	if f.timeout > 0 {
		cfg.Timeout = time.Duration(f.timeout) * time.Second
	}
	if f.userAgent != "" {
		cfg.UserAgent = f.userAgent
	}
	cfg.DisableRender = f.noRender
	cfg.ChromeBin = f.chromeBin
	return cfg
}

// ---------- Help / banner ----------

func printUsage() {
	printBanner()
	fmt.Print(`
USAGE:
  capwatch [flags] <url>
  capwatch https://discgolfmetrix.com/2934567
  capwatch --tjing https://tjing.se/event/abc123
  capwatch -w competitions.yaml -o report.txt

TARGET:
  -u,    --url <string>              competition URL to resolve
         --tjing                     treat the URL as a Tjing event
  -w,    --watch <file>              resolve every competition in a YAML watch file

REQUEST:
  -ua,   --user-agent <string>       custom user-agent string
  -t,    --timeout <int>             time to wait for a page in seconds (default 15)
         --no-render                 never fall back to a headless browser
         --chrome <path>             chrome/chromium binary for the render fallback

OUTPUT:
         --db <path>                 sqlite database for results (watch default "capwatch.db")
  -o,    --output <string>           write a plain-text watch report to file
         --json                      print results as JSON
  -v,    --verbose                   log every strategy decision
  -nc,   --no-color                  disable colored output

META:
  -h,    --help                      show this help message
  -V,    --version                   show version

ENVIRONMENT:
  CAPWATCH_DB, CAPWATCH_TIMEOUT, CAPWATCH_USER_AGENT fill values the watch file leaves unset.

`)
}

func printBanner() {
	fmt.Println(clr("cyan", "\n  capwatch"))
	fmt.Printf("  %s  %s\n", clr("dim", "Disc golf competition capacity monitor"), clr("dim", "v"+version))
	fmt.Printf("  %s\n", clr("dim", strings.Repeat("─", 58)))
}

// ---------- Utilities ----------

var colorEnabled = true

func clr(color, text string) string {
	if !colorEnabled {
		return text
	}
	codes := map[string]string{
		"red":    "\033[31m",
		"green":  "\033[32m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
		"dim":    "\033[2m",
		"bold":   "\033[1m",
		"reset":  "\033[0m",
	}
	c, ok := codes[color]
	if !ok {
		return text
	}
	return c + text + codes["reset"]
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\n  %s %s\n\n", clr("red", "ERROR:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}
