package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"

	"github.com/asmit27rai/cardsight/internal/config"
	"github.com/asmit27rai/cardsight/internal/dataset"
	"github.com/asmit27rai/cardsight/internal/experiment"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	wordsPath := flag.String("words", "", "Word list to sample items from (overrides config)")
	sizes := flag.String("sizes", "", "Comma separated dataset sizes (overrides config)")
	exponents := flag.String("exponents", "", "Comma separated bucket exponents (overrides config)")
	hasher := flag.String("hasher", "", "Hasher name (overrides config)")
	trials := flag.Int("trials", 0, "Datasets sampled per size (overrides config)")
	seed := flag.Int64("seed", 0, "Sampling seed (overrides config)")
	asJSON := flag.Bool("json", false, "Print results as JSON")
	quiet := flag.Bool("quiet", false, "Hide the progress bar")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *wordsPath != "" {
		cfg.Dataset.WordsPath = *wordsPath
	}
	if *sizes != "" {
		if cfg.Experiment.Sizes, err = parseInts(*sizes); err != nil {
			log.Fatalf("Invalid -sizes: %v", err)
		}
	}
	if *exponents != "" {
		if cfg.Experiment.Exponents, err = parseExponents(*exponents); err != nil {
			log.Fatalf("Invalid -exponents: %v", err)
		}
	}
	if *hasher != "" {
		cfg.Estimation.Hasher = *hasher
	}
	if *trials > 0 {
		cfg.Experiment.Trials = *trials
	}
	if *seed != 0 {
		cfg.Dataset.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	words := dataset.Synthetic(100000, "word")
	if cfg.Dataset.WordsPath != "" {
		if words, err = dataset.LoadWords(cfg.Dataset.WordsPath); err != nil {
			log.Fatalf("Failed to load word list: %v", err)
		}
	}

	var bar *progressbar.ProgressBar
	runConfig := experiment.Config{
		Sizes:     cfg.Experiment.Sizes,
		Exponents: cfg.Experiment.Exponents,
		Hasher:    cfg.Estimation.Hasher,
		Trials:    cfg.Experiment.Trials,
		Workers:   cfg.Experiment.Workers,
	}
	if !*quiet {
		runConfig.OnProgress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("estimating"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Set(done)
		}
	}

	runner, err := experiment.NewRunner(runConfig)
	if err != nil {
		log.Fatalf("Failed to create experiment: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := runner.Run(ctx, dataset.NewSampler(words, cfg.Dataset.Seed))
	if err != nil {
		log.Fatalf("Experiment failed: %v", err)
	}
	if bar != nil {
		bar.Finish()
	}

	summaries := experiment.Summarize(results)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]interface{}{"results": results, "summary": summaries}); err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
		return
	}

	printResults(os.Stdout, results)
	fmt.Println()
	printSummary(os.Stdout, summaries)
}

func printResults(out io.Writer, results []experiment.Result) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "size\ttrial\tb\talgorithm\texact\testimate\terror %\ttime\t")
	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\t-\t-\t%s\t\n", r.Size, r.Trial, r.Exponent, r.Algorithm, r.Exact, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\t%.1f\t%.2f\t%v\t\n",
			r.Size, r.Trial, r.Exponent, r.Algorithm, r.Exact, r.Estimate, r.RelativeError*100, r.Duration)
	}
	tw.Flush()
}

func printSummary(out io.Writer, summaries []experiment.Summary) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "algorithm\tb\truns\tmean error %\tmax error %\t")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\t\n",
			s.Algorithm, s.Exponent, s.Runs, s.MeanRelativeError*100, s.MaxRelativeError*100)
	}
	tw.Flush()
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseExponents(s string) ([]uint8, error) {
	var out []uint8
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(field), 10, 8)
		if err != nil {
			return nil, err
		}
		out = append(out, uint8(n))
	}
	return out, nil
}
