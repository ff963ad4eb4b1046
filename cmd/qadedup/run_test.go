package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saberlve/LLM-Kit-sub000/internal/config"
	"github.com/Saberlve/LLM-Kit-sub000/internal/deduplication"
	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
	"github.com/Saberlve/LLM-Kit-sub000/internal/minhash"
	"github.com/Saberlve/LLM-Kit-sub000/internal/storage"
	"github.com/Saberlve/LLM-Kit-sub000/internal/tokenize"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

func init() {
	color.NoColor = true
}

type fieldsTokenizer struct{}

func (fieldsTokenizer) Tokenize(text string) tokenize.TokenSet {
	set := make(tokenize.TokenSet)
	for _, tok := range strings.Fields(text) {
		set[tok] = struct{}{}
	}
	return set
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRunner(cfg *config.Config, s storage.Storage) *passRunner {
	return &passRunner{
		cfg:        cfg,
		store:      s,
		logger:     zerolog.Nop(),
		engineOpts: []deduplication.Option{deduplication.WithTokenizer(fieldsTokenizer{})},
	}
}

func readJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

const byQuestionInput = `[
  {"question": "what is the capital of france", "answer": "paris"},
  {"question": "what is the capital of france", "answer": "paris is the capital"},
  {"question": "how many legs does a spider have", "answer": "eight"}
]`

func TestPassRunnerByQuestion(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t)

	cfg := config.Default()
	cfg.InputFiles = []string{writeInput(t, dir, "fileA.json", byQuestionInput)}
	cfg.OutputFile = filepath.Join(dir, "out", "kept.json")
	cfg.DeletedPairsFile = filepath.Join(dir, "out", "deleted.json")

	pass, result, err := newRunner(cfg, s).run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.PassCompleted, pass.Status)
	assert.Equal(t, 3, pass.OriginalCount)
	assert.Equal(t, 2, pass.KeptCount)
	assert.ElementsMatch(t, []string{"fileA_1", "fileA_2"}, result.KeptIDs())

	var kept []map[string]interface{}
	readJSON(t, cfg.OutputFile, &kept)
	require.Len(t, kept, 2)
	for _, rec := range kept {
		assert.NotContains(t, rec, "source_label")
	}

	var groups [][]types.QARecord
	readJSON(t, cfg.DeletedPairsFile, &groups)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
	assert.Equal(t, "fileA_1", groups[0][0].ID, "the kept record leads its group")
	assert.Equal(t, "fileA_0", groups[0][1].ID)

	ctx := context.Background()
	stored, err := s.GetPass(ctx, pass.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PassCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.Equal(t, 1, stored.RemovedCount())

	storedKept, err := s.GetKeptPairs(ctx, pass.ID)
	require.NoError(t, err)
	assert.Len(t, storedKept, 2)

	storedGroups, err := s.GetDeletedGroups(ctx, pass.ID)
	require.NoError(t, err)
	require.Len(t, storedGroups, 1)
	assert.Equal(t, "fileA_1", storedGroups[0].Kept.ID)

	started, err := s.GetEvents(ctx, pass.ID, events.EventFilter{Type: events.EventTypePassStarted})
	require.NoError(t, err)
	assert.Len(t, started, 1)
	completed, err := s.GetEvents(ctx, pass.ID, events.EventFilter{Type: events.EventTypePassCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	progressEvents, err := s.GetEvents(ctx, pass.ID, events.EventFilter{Type: events.EventTypeProgress})
	require.NoError(t, err)
	require.NotEmpty(t, progressEvents)
	last, err := progressEvents[len(progressEvents)-1].GetProgressData()
	require.NoError(t, err)
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, string(deduplication.PhasePartitioned), last.Phase)
}

func TestPassRunnerByAnswer(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t)

	cfg := config.Default()
	cfg.InputFiles = []string{writeInput(t, dir, "fileA.json", `[
		{"id": "fileA_0", "question": "q one", "answer": "the answer is a long shared sentence"},
		{"id": "fileA_1", "question": "q two is longer", "answer": "the answer is a long shared sentence"},
		{"id": "fileA_2", "question": "q three", "answer": "tiny"}
	]`)}
	cfg.OutputFile = filepath.Join(dir, "kept.json")
	cfg.DeletedPairsFile = filepath.Join(dir, "deleted.json")
	cfg.DedupByAnswer = true
	cfg.MinAnswerLength = 10

	pass, result, err := newRunner(cfg, s).run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.ModeByAnswer, pass.Mode)
	assert.Empty(t, pass.DeletedPairsFile)
	assert.Equal(t, []string{"fileA_1"}, result.KeptIDs())
	assert.Equal(t, []string{"fileA_0"}, result.Merged)
	assert.Equal(t, []string{"fileA_2"}, result.Filtered)

	_, err = os.Stat(cfg.DeletedPairsFile)
	assert.True(t, errors.Is(err, os.ErrNotExist), "by_answer writes no deleted-pairs file")

	groups, err := s.GetDeletedGroups(context.Background(), pass.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)

	asym, err := s.GetEvents(context.Background(), pass.ID, events.EventFilter{Type: events.EventTypeModeAsymmetry})
	require.NoError(t, err)
	assert.Len(t, asym, 1)
}

func TestPassRunnerFailure(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t)

	cfg := config.Default()
	cfg.InputFiles = []string{writeInput(t, dir, "fileA.json", byQuestionInput)}
	cfg.OutputFile = filepath.Join(dir, "kept.json")

	signer, err := minhash.NewSigner(cfg.DedupNumPerm/2, minhash.DefaultSeed)
	require.NoError(t, err)
	runner := newRunner(cfg, s)
	runner.engineOpts = append(runner.engineOpts, deduplication.WithSigner(signer))

	pass, result, err := runner.run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, deduplication.ErrConfiguration))
	assert.Nil(t, result)
	require.NotNil(t, pass)
	assert.Equal(t, types.PassFailed, pass.Status)

	stored, err := s.GetPass(context.Background(), pass.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PassFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)

	failed, err := s.GetEvents(context.Background(), pass.ID, events.EventFilter{Type: events.EventTypePassFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 1)

	_, err = os.Stat(cfg.OutputFile)
	assert.True(t, errors.Is(err, os.ErrNotExist), "a failed pass writes nothing")
}

func TestPassRunnerSameFileNameInTwoDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "b"), 0o755))

	cfg := config.Default()
	cfg.InputFiles = []string{
		writeInput(t, dir, "a/qa.json", `[{"question": "alpha beta gamma", "answer": "one"}]`),
		writeInput(t, dir, "b/qa.json", `[{"question": "delta epsilon zeta", "answer": "two"}]`),
	}
	cfg.OutputFile = filepath.Join(dir, "kept.json")
	cfg.DeletedPairsFile = filepath.Join(dir, "deleted.json")

	pass, result, err := newRunner(cfg, newTestStore(t)).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PassCompleted, pass.Status)
	assert.Equal(t, []string{"qa_0", "qa_1"}, result.KeptIDs())
}

func TestPassRunnerWithoutHistory(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.InputFiles = []string{writeInput(t, dir, "fileA.json", byQuestionInput)}
	cfg.OutputFile = filepath.Join(dir, "kept.json")
	cfg.DeletedPairsFile = filepath.Join(dir, "deleted.json")

	pass, _, err := newRunner(cfg, nil).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PassCompleted, pass.Status)
	assert.FileExists(t, cfg.OutputFile)
}

func TestPassRunnerLoadError(t *testing.T) {
	cfg := config.Default()
	cfg.InputFiles = []string{filepath.Join(t.TempDir(), "missing.json")}

	pass, _, err := newRunner(cfg, newTestStore(t)).run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, pass, "no pass is recorded when input cannot be loaded")
}

func TestPassRunnerCancelled(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t)

	cfg := config.Default()
	cfg.InputFiles = []string{writeInput(t, dir, "fileA.json", byQuestionInput)}
	cfg.OutputFile = filepath.Join(dir, "kept.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := newRunner(cfg, s)
	runner.engineOpts = append(runner.engineOpts, deduplication.WithEventHook(func(e *events.Event) {
		if e.Type == events.EventTypePassStarted {
			cancel()
		}
	}))

	pass, _, err := runner.run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	stored, err := s.GetPass(context.Background(), pass.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PassFailed, stored.Status)
}

func TestRunConfig(t *testing.T) {
	orig := appConfig
	defer func() { appConfig = orig }()

	appConfig = config.Default()
	appConfig.InputFiles = []string{"from-config.json"}

	cfg, err := runConfig(&cobra.Command{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-config.json"}, cfg.InputFiles)

	cfg, err = runConfig(&cobra.Command{}, []string{"a.json", "b.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, cfg.InputFiles)
	assert.Equal(t, []string{"from-config.json"}, appConfig.InputFiles, "the loaded config is not mutated")

	appConfig.InputFiles = nil
	_, err = runConfig(&cobra.Command{}, nil)
	assert.Error(t, err)
}

func TestPrintPassSummary(t *testing.T) {
	pass := &types.PassRecord{
		ID:               "pass-1",
		InputFiles:       []string{"fileA.json"},
		OutputFile:       "kept.json",
		DeletedPairsFile: "deleted.json",
		Mode:             types.ModeByQuestion,
		Threshold:        0.8,
		NumPerm:          128,
	}
	result := &deduplication.Result{Stats: deduplication.Stats{Total: 3, Kept: 2, Duplicates: 1, Groups: 1}}

	var buf bytes.Buffer
	printPassSummary(&buf, pass, result)
	out := buf.String()
	assert.Contains(t, out, "Pass pass-1 completed")
	assert.Contains(t, out, "Removed:    1 records in 1 groups")
	assert.Contains(t, out, "Deleted groups written to deleted.json")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Contains(t, buf.String(), "No passes recorded yet")

	buf.Reset()
	printHistory(&buf, []*types.PassRecord{
		{ID: "pass-2", Mode: types.ModeByAnswer, Status: types.PassFailed, ErrorMessage: "boom"},
		{ID: "pass-1", Mode: types.ModeByQuestion, Status: types.PassCompleted, OriginalCount: 5, KeptCount: 3},
	})
	out := buf.String()
	assert.Contains(t, out, "Recent Passes (2)")
	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, "5 -> 3 records (2 removed)")
}
