package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Saberlve/LLM-Kit-sub000/internal/config"
	"github.com/Saberlve/LLM-Kit-sub000/internal/deduplication"
	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
	"github.com/Saberlve/LLM-Kit-sub000/internal/loader"
	"github.com/Saberlve/LLM-Kit-sub000/internal/progress"
	"github.com/Saberlve/LLM-Kit-sub000/internal/storage"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

var (
	runByAnswer        bool
	runThreshold       float64
	runNumPerm         int
	runMinAnswerLength int
	runSeed            int64
	runPriority        []string
	runOutput          string
	runDeleted         string
	runNoHistory       bool
)

var runCmd = &cobra.Command{
	Use:   "run [input-file...]",
	Short: "Deduplicate QA files",
	Long: `Load one or more QA JSON files, remove near-duplicate pairs and write
the kept records to the output file.

In by_question mode (the default) records are compared by question text and
every removed group is also written to the deleted-pairs file. In by_answer
mode records are compared by answer text, answers shorter than
--min-answer-length are dropped, and no deleted-pairs file is written.

Input files given as arguments replace input_files from the config.

Example:
  qadedup run data/fileA.json data/fileB.json
  qadedup run --threshold 0.9 --priority fileB.json,fileA.json data/*.json
  qadedup run --by-answer --min-answer-length 20 data/qa.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := runConfig(cmd, args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := &passRunner{
			cfg:      cfg,
			logger:   logger,
			interval: progress.DefaultInterval,
		}
		if !runNoHistory {
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			runner.store = s
		}

		pass, result, err := runner.run(ctx)
		if err != nil {
			return err
		}
		printPassSummary(os.Stdout, pass, result)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runByAnswer, "by-answer", false, "Compare answers instead of questions")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "Jaccard similarity threshold in (0, 1]")
	runCmd.Flags().IntVar(&runNumPerm, "num-perm", 0, "Number of MinHash permutations")
	runCmd.Flags().IntVar(&runMinAnswerLength, "min-answer-length", 0, "Drop answers shorter than this many characters (by_answer mode)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "MinHash permutation seed")
	runCmd.Flags().StringSliceVar(&runPriority, "priority", nil, "Source files from highest to lowest priority (e.g. fileA.json,fileB.json)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output file for kept records")
	runCmd.Flags().StringVar(&runDeleted, "deleted", "", "Output file for deleted groups (by_question mode)")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record the pass in the history database")
	rootCmd.AddCommand(runCmd)
}

// runConfig applies positional inputs and explicitly set flags on top of
// the loaded configuration.
func runConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if appConfig != nil {
		c := *appConfig
		cfg = &c
	}

	if len(args) > 0 {
		cfg.InputFiles = args
	}
	flags := cmd.Flags()
	if flags.Changed("by-answer") {
		cfg.DedupByAnswer = runByAnswer
	}
	if flags.Changed("threshold") {
		cfg.DedupThreshold = runThreshold
	}
	if flags.Changed("num-perm") {
		cfg.DedupNumPerm = runNumPerm
	}
	if flags.Changed("min-answer-length") {
		cfg.MinAnswerLength = runMinAnswerLength
	}
	if flags.Changed("seed") {
		cfg.Seed = runSeed
	}
	if flags.Changed("priority") {
		cfg.PriorityOrder = runPriority
	}
	if flags.Changed("output") {
		cfg.OutputFile = runOutput
	}
	if flags.Changed("deleted") {
		cfg.DeletedPairsFile = runDeleted
	}

	if len(cfg.InputFiles) == 0 {
		return nil, fmt.Errorf("no input files: pass them as arguments or set input_files")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// passRunner executes one dedup pass end to end: load, dedup, write the
// output files and record the pass in history.
type passRunner struct {
	cfg *config.Config
	// store is optional; nil skips history
	store    storage.Storage
	logger   zerolog.Logger
	interval time.Duration

	engineOpts []deduplication.Option
}

func (r *passRunner) run(ctx context.Context) (*types.PassRecord, *deduplication.Result, error) {
	raw, err := loader.LoadFiles(r.cfg.InputFiles)
	if err != nil {
		return nil, nil, err
	}

	dedupCfg := r.cfg.Dedup()
	pass := &types.PassRecord{
		ID:              events.NewPassID(),
		InputFiles:      r.cfg.InputFiles,
		OutputFile:      r.cfg.OutputFile,
		Mode:            dedupCfg.Mode,
		Threshold:       dedupCfg.Threshold,
		NumPerm:         dedupCfg.NumPerm,
		MinAnswerLength: dedupCfg.MinAnswerLength,
		Status:          types.PassProcessing,
		OriginalCount:   len(raw),
	}
	if dedupCfg.Mode.TracksDeletedGroups() {
		pass.DeletedPairsFile = r.cfg.DeletedPairsFile
	}
	log := r.logger.With().Str("pass_id", pass.ID).Logger()

	if r.store != nil {
		if err := r.store.CreatePass(ctx, pass); err != nil {
			return nil, nil, fmt.Errorf("failed to record pass: %w", err)
		}
	}

	result, err := r.execute(ctx, pass, raw, log)
	if err == nil {
		err = r.writeOutputs(pass, result)
	}
	if err == nil {
		err = r.recordOutputs(ctx, pass, result)
	}
	if err != nil {
		r.fail(ctx, pass, err, log)
		return pass, nil, err
	}

	pass.Status = types.PassCompleted
	pass.KeptCount = result.Stats.Kept
	pass.Progress = progress.Complete
	log.Info().
		Int("original", pass.OriginalCount).
		Int("kept", pass.KeptCount).
		Str("output", pass.OutputFile).
		Msg("pass recorded")
	return pass, result, nil
}

// execute runs the engine while a second goroutine relays progress to the
// history database. Events are buffered and stored once the pass returns.
func (r *passRunner) execute(ctx context.Context, pass *types.PassRecord, raw []types.RawQARecord, log zerolog.Logger) (*deduplication.Result, error) {
	relay := progress.NewRelay(r.interval)

	var buffered []*events.Event
	opts := []deduplication.Option{
		deduplication.WithLogger(r.logger),
		deduplication.WithPriorityMap(r.cfg.Priorities()),
		deduplication.WithProgress(relay.Report),
		deduplication.WithEventHook(func(e *events.Event) {
			buffered = append(buffered, e)
		}),
	}
	engine, err := deduplication.NewEngine(r.cfg.Dedup(), append(opts, r.engineOpts...)...)
	if err != nil {
		return nil, err
	}

	var result *deduplication.Result
	g, gctx := errgroup.WithContext(events.WithPassID(ctx, pass.ID))
	g.Go(func() error {
		defer relay.Close()
		res, err := engine.Run(gctx, raw)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	g.Go(func() error {
		return relay.Drain(gctx, func(percent int) {
			pass.Progress = percent
			log.Debug().Int("progress", percent).Msg("pass progress")
			if r.store == nil {
				return
			}
			if err := r.store.UpdatePassProgress(gctx, pass.ID, percent); err != nil {
				log.Warn().Err(err).Int("progress", percent).Msg("failed to record progress")
			}
			event, err := events.NewProgressEvent(pass.ID, events.ProgressData{
				Percent: percent,
				Phase:   string(deduplication.PhaseAt(percent)),
			})
			if err == nil {
				err = r.store.StoreEvent(gctx, event)
			}
			if err != nil {
				log.Warn().Err(err).Int("progress", percent).Msg("failed to store progress event")
			}
		})
	})
	err = g.Wait()

	r.storeEvents(context.WithoutCancel(ctx), buffered, log)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *passRunner) storeEvents(ctx context.Context, evts []*events.Event, log zerolog.Logger) {
	if r.store == nil {
		return
	}
	for _, e := range evts {
		if err := r.store.StoreEvent(ctx, e); err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("failed to store event")
		}
	}
}

// writeOutputs writes the kept records and, in by_question mode, the
// deleted groups. Source labels are internal and left out of the files.
func (r *passRunner) writeOutputs(pass *types.PassRecord, result *deduplication.Result) error {
	if err := loader.WriteJSON(pass.OutputFile, stripLabels(result.Kept)); err != nil {
		return fmt.Errorf("failed to write kept records: %w", err)
	}

	if !pass.Mode.TracksDeletedGroups() || pass.DeletedPairsFile == "" {
		return nil
	}
	groups := make([][]types.QARecord, 0, len(result.DeletedGroups))
	for _, g := range result.DeletedGroups {
		groups = append(groups, stripLabels(g.Records()))
	}
	if err := loader.WriteJSON(pass.DeletedPairsFile, groups); err != nil {
		return fmt.Errorf("failed to write deleted groups: %w", err)
	}
	return nil
}

func (r *passRunner) recordOutputs(ctx context.Context, pass *types.PassRecord, result *deduplication.Result) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveKeptPairs(ctx, pass.ID, result.Kept); err != nil {
		return err
	}
	if pass.Mode.TracksDeletedGroups() {
		if err := r.store.SaveDeletedGroups(ctx, pass.ID, result.DeletedGroups); err != nil {
			return err
		}
	}
	return r.store.CompletePass(ctx, pass.ID, result.Stats.Total, result.Stats.Kept)
}

// fail marks the pass failed. It runs even when ctx was cancelled.
func (r *passRunner) fail(ctx context.Context, pass *types.PassRecord, cause error, log zerolog.Logger) {
	pass.Status = types.PassFailed
	pass.ErrorMessage = cause.Error()
	log.Error().Err(cause).Msg("pass failed")

	if r.store == nil {
		return
	}
	if err := r.store.FailPass(context.WithoutCancel(ctx), pass.ID, cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to mark pass failed")
	}
}

func stripLabels(records []types.QARecord) []types.QARecord {
	out := make([]types.QARecord, len(records))
	for i, rec := range records {
		rec.SourceLabel = ""
		out[i] = rec
	}
	return out
}

func printPassSummary(w io.Writer, pass *types.PassRecord, result *deduplication.Result) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s Pass %s completed\n\n", green("✓"), pass.ID)
	fmt.Fprintf(w, "%s\n", cyan("Settings"))
	fmt.Fprintf(w, "  Mode:       %s\n", pass.Mode)
	fmt.Fprintf(w, "  Threshold:  %.2f (%d permutations)\n", pass.Threshold, pass.NumPerm)
	fmt.Fprintf(w, "  Inputs:     %s\n", strings.Join(pass.InputFiles, ", "))
	fmt.Fprintln(w)

	s := result.Stats
	fmt.Fprintf(w, "%s\n", cyan("Results"))
	fmt.Fprintf(w, "  Original:   %d records\n", s.Total)
	fmt.Fprintf(w, "  Kept:       %s records\n", green(s.Kept))
	if pass.Mode.TracksDeletedGroups() {
		fmt.Fprintf(w, "  Removed:    %s records in %d groups\n", yellow(s.Duplicates), s.Groups)
	} else {
		fmt.Fprintf(w, "  Merged:     %s records\n", yellow(s.Merged))
		fmt.Fprintf(w, "  Filtered:   %s short answers\n", yellow(s.Filtered))
	}
	fmt.Fprintf(w, "  Time:       %s\n", gray(time.Duration(s.ProcessingTimeMs)*time.Millisecond))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Kept records written to %s\n", pass.OutputFile)
	if pass.DeletedPairsFile != "" {
		fmt.Fprintf(w, "Deleted groups written to %s\n", pass.DeletedPairsFile)
	}
	fmt.Fprintln(w)
}
