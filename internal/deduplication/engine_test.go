package deduplication

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
	"github.com/Saberlve/LLM-Kit-sub000/internal/minhash"
	"github.com/Saberlve/LLM-Kit-sub000/internal/priorities"
	"github.com/Saberlve/LLM-Kit-sub000/internal/tokenize"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// fieldsTokenizer splits on whitespace. Property tests use it so corpora
// have exactly the token sets they were built with.
type fieldsTokenizer struct{}

func (fieldsTokenizer) Tokenize(text string) tokenize.TokenSet {
	set := make(tokenize.TokenSet)
	for _, tok := range strings.Fields(text) {
		set[tok] = struct{}{}
	}
	return set
}

func newEngine(t *testing.T, mutate func(*Config), opts ...Option) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

// eventRecorder collects hook events.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *eventRecorder) hook(e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(t events.EventType) []*events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func ids(records []types.QARecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func assertPartition(t *testing.T, input []types.QARecord, result *Result) {
	t.Helper()
	total := len(result.Kept) + len(result.Merged) + len(result.Filtered)
	for _, g := range result.DeletedGroups {
		total += len(g.Duplicates)
	}
	assert.Equal(t, len(input), total, "every input record is accounted for exactly once")
	require.NoError(t, result.Validate(ids(input)))
}

func TestScenarioIdenticalQuestionsKeepLongerAnswer(t *testing.T) {
	e := newEngine(t, nil)

	input := []types.QARecord{
		{ID: "fileA_0", Question: "What is X?", Answer: "X is a thing."},
		{ID: "fileA_1", Question: "What is X?", Answer: "X is a thing with a much longer explanation."},
	}

	result, err := e.Dedup(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Kept, 1)
	assert.Equal(t, "fileA_1", result.Kept[0].ID, "tie-break keeps the longer answer")

	require.Len(t, result.DeletedGroups, 1)
	group := result.DeletedGroups[0]
	assert.Equal(t, "fileA_1", group.Kept.ID)
	require.Len(t, group.Duplicates, 1)
	assert.Equal(t, "fileA_0", group.Duplicates[0].ID)
	assert.Equal(t, []string{"fileA_1", "fileA_0"}, ids(group.Records()))

	assertPartition(t, input, result)
}

func TestScenarioShortAnswerFilteredInByAnswerMode(t *testing.T) {
	e := newEngine(t, func(c *Config) {
		c.Mode = types.ModeByAnswer
		c.MinAnswerLength = 10
	})

	input := []types.QARecord{
		{ID: "fileA_0", Question: "q zero", Answer: "short"},
		{ID: "fileA_1", Question: "q one", Answer: "Photosynthesis converts light into chemical energy."},
		{ID: "fileA_2", Question: "q two", Answer: "Mitochondria produce most cellular adenosine triphosphate."},
	}

	result, err := e.Dedup(context.Background(), input)
	require.NoError(t, err)

	assert.NotContains(t, ids(result.Kept), "fileA_0")
	assert.Empty(t, result.DeletedGroups)
	assert.Equal(t, []string{"fileA_0"}, result.Filtered)
	assert.Equal(t, 1, result.Stats.Filtered)
	assert.ElementsMatch(t, []string{"fileA_1", "fileA_2"}, ids(result.Kept))

	assertPartition(t, input, result)
}

func TestScenarioPriorityOrderBeatsLength(t *testing.T) {
	e := newEngine(t, nil, WithPriorityMap(priorities.FromOrder([]string{"fileA.json", "fileB.json"})))

	tests := []struct {
		name  string
		input []types.QARecord
	}{
		{
			name: "equal length",
			input: []types.QARecord{
				{ID: "fileB_0", Question: "Explain gradient descent", Answer: "answer b"},
				{ID: "fileA_0", Question: "Explain gradient descent", Answer: "answer a"},
			},
		},
		{
			name: "lower priority has longer answer",
			input: []types.QARecord{
				{ID: "fileB_0", Question: "Explain gradient descent", Answer: "a very long and thorough answer"},
				{ID: "fileA_0", Question: "Explain gradient descent", Answer: "short"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Dedup(context.Background(), tt.input)
			require.NoError(t, err)
			require.Len(t, result.Kept, 1)
			assert.Equal(t, "fileA_0", result.Kept[0].ID)
			assert.Equal(t, "fileA.json", result.Kept[0].SourceLabel)
			require.Len(t, result.DeletedGroups, 1)
			assert.Equal(t, "fileB_0", result.DeletedGroups[0].Duplicates[0].ID)
		})
	}
}

func TestScenarioEmptyInput(t *testing.T) {
	for _, mode := range []types.DedupMode{types.ModeByQuestion, types.ModeByAnswer} {
		t.Run(string(mode), func(t *testing.T) {
			e := newEngine(t, func(c *Config) { c.Mode = mode })

			result, err := e.Dedup(context.Background(), nil)
			require.NoError(t, err)
			assert.NotNil(t, result.Kept)
			assert.Empty(t, result.Kept)
			assert.NotNil(t, result.DeletedGroups)
			assert.Empty(t, result.DeletedGroups)
			assert.Equal(t, 0, result.Stats.Total)
		})
	}
}

// generatedCorpus builds records over a small shared vocabulary so that
// clusters overlap in ambiguous ways.
func generatedCorpus(n int, seed int64) []types.QARecord {
	rng := rand.New(rand.NewSource(seed))
	vocab := make([]string, 24)
	for i := range vocab {
		vocab[i] = fmt.Sprintf("w%02d", i)
	}

	records := make([]types.QARecord, n)
	for i := range records {
		words := make([]string, 3+rng.Intn(3))
		for j := range words {
			words[j] = vocab[rng.Intn(len(vocab))]
		}
		answer := strings.Repeat("x", rng.Intn(20))
		if i%4 == 0 {
			answer = strings.Join(words, " ")
		}
		records[i] = types.QARecord{
			ID:       fmt.Sprintf("file%d_%d", i%3, i),
			Question: strings.Join(words, " "),
			Answer:   answer,
		}
	}
	return records
}

func TestPartitionCompleteness(t *testing.T) {
	corpus := generatedCorpus(300, 7)

	for _, mode := range []types.DedupMode{types.ModeByQuestion, types.ModeByAnswer} {
		for _, threshold := range []float64{0.3, 0.5, 0.8} {
			t.Run(fmt.Sprintf("%s/%.1f", mode, threshold), func(t *testing.T) {
				e := newEngine(t, func(c *Config) {
					c.Mode = mode
					c.Threshold = threshold
				}, WithTokenizer(fieldsTokenizer{}))

				result, err := e.Dedup(context.Background(), corpus)
				require.NoError(t, err)
				assertPartition(t, corpus, result)

				if mode == types.ModeByAnswer {
					assert.Empty(t, result.DeletedGroups)
				} else {
					assert.Empty(t, result.Merged)
					assert.Empty(t, result.Filtered)
				}
			})
		}
	}
}

func TestNoOverlapAcrossPartitions(t *testing.T) {
	corpus := generatedCorpus(200, 11)
	e := newEngine(t, func(c *Config) { c.Threshold = 0.4 }, WithTokenizer(fieldsTokenizer{}))

	result, err := e.Dedup(context.Background(), corpus)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, r := range result.Kept {
		seen[r.ID]++
	}
	for _, g := range result.DeletedGroups {
		for _, d := range g.Duplicates {
			seen[d.ID]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s appears %d times", id, n)
	}
	assert.Len(t, seen, len(corpus))
}

func TestDeterminism(t *testing.T) {
	corpus := generatedCorpus(250, 3)
	pm := priorities.FromOrder([]string{"file2.json", "file0.json"})

	run := func() *Result {
		e := newEngine(t, func(c *Config) { c.Threshold = 0.5 },
			WithTokenizer(fieldsTokenizer{}), WithPriorityMap(pm))
		result, err := e.Dedup(context.Background(), corpus)
		require.NoError(t, err)
		return result
	}

	first, second := run(), run()
	assert.Equal(t, first.KeptIDs(), second.KeptIDs())
	require.Equal(t, len(first.DeletedGroups), len(second.DeletedGroups))
	for i := range first.DeletedGroups {
		assert.Equal(t, ids(first.DeletedGroups[i].Records()), ids(second.DeletedGroups[i].Records()))
	}
}

// separableCorpus has groups with disjoint vocabularies. Each group holds
// exact duplicates of a base record plus one variant with Jaccard 0.6.
func separableCorpus(groups int) []types.QARecord {
	var records []types.QARecord
	for g := 0; g < groups; g++ {
		tok := func(i int) string { return fmt.Sprintf("g%dt%d", g, i) }
		var shared []string
		for i := 0; i < 6; i++ {
			shared = append(shared, tok(i))
		}
		base := strings.Join(append(append([]string{}, shared...), tok(6), tok(7)), " ")
		variant := strings.Join(append(append([]string{}, shared...), tok(8), tok(9)), " ")

		records = append(records,
			types.QARecord{ID: fmt.Sprintf("grp%d_0", g), Question: base, Answer: "answer"},
			types.QARecord{ID: fmt.Sprintf("grp%d_1", g), Question: base, Answer: "longer answer"},
			types.QARecord{ID: fmt.Sprintf("grp%d_2", g), Question: variant, Answer: "answer"},
		)
	}
	return records
}

func TestThresholdMonotonicity(t *testing.T) {
	corpus := separableCorpus(10)
	thresholds := []float64{0.3, 0.8, 0.95, 1.0}

	var keptCounts []int
	for _, threshold := range thresholds {
		e := newEngine(t, func(c *Config) { c.Threshold = threshold }, WithTokenizer(fieldsTokenizer{}))
		result, err := e.Dedup(context.Background(), corpus)
		require.NoError(t, err)
		keptCounts = append(keptCounts, len(result.Kept))
	}

	for i := 1; i < len(keptCounts); i++ {
		assert.GreaterOrEqual(t, keptCounts[i], keptCounts[i-1],
			"threshold %.2f kept %d, threshold %.2f kept %d",
			thresholds[i], keptCounts[i], thresholds[i-1], keptCounts[i-1])
	}
	assert.Less(t, keptCounts[0], keptCounts[len(keptCounts)-1])
	// exact duplicates always merge
	assert.LessOrEqual(t, keptCounts[len(keptCounts)-1], 20)
}

func TestThresholdMonotonicityGeneratedCorpus(t *testing.T) {
	thresholds := []float64{0.3, 0.5, 0.7, 0.8, 0.9, 1.0}

	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			corpus := generatedCorpus(300, seed)

			prev := 0
			for _, threshold := range thresholds {
				e := newEngine(t, func(c *Config) { c.Threshold = threshold }, WithTokenizer(fieldsTokenizer{}))
				result, err := e.Dedup(context.Background(), corpus)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, len(result.Kept), prev, "threshold %.2f", threshold)
				prev = len(result.Kept)
			}
		})
	}
}

func TestIdempotenceOnDeduplicatedOutput(t *testing.T) {
	corpus := separableCorpus(8)
	e := newEngine(t, func(c *Config) { c.Threshold = 0.8 }, WithTokenizer(fieldsTokenizer{}))

	first, err := e.Dedup(context.Background(), corpus)
	require.NoError(t, err)

	second, err := e.Dedup(context.Background(), first.Kept)
	require.NoError(t, err)

	assert.Equal(t, first.KeptIDs(), second.KeptIDs())
	assert.Empty(t, second.DeletedGroups)
}

func TestByAnswerTracksMergedIDsOnly(t *testing.T) {
	rec := &eventRecorder{}
	e := newEngine(t, func(c *Config) {
		c.Mode = types.ModeByAnswer
		c.MinAnswerLength = 3
	}, WithTokenizer(fieldsTokenizer{}), WithEventHook(rec.hook))

	input := []types.QARecord{
		{ID: "f_0", Question: "short", Answer: "same answer text here"},
		{ID: "f_1", Question: "a much longer question", Answer: "same answer text here"},
		{ID: "f_2", Question: "other", Answer: "completely unrelated words"},
	}

	result, err := e.Dedup(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{"f_1", "f_2"}, result.KeptIDs(), "by_answer ties break on question length")
	assert.Equal(t, []string{"f_0"}, result.Merged)
	assert.Empty(t, result.DeletedGroups)
	assert.Equal(t, 1, result.Stats.Clusters)
	assert.Len(t, rec.ofType(events.EventTypeModeAsymmetry), 1)
	assertPartition(t, input, result)
}

func TestRunDefaultsMissingFields(t *testing.T) {
	rec := &eventRecorder{}
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithEventHook(rec.hook))

	raw := []types.RawQARecord{
		{ID: types.StringPtr("fileA_0"), Question: types.StringPtr("alpha beta")},
		{Question: types.StringPtr("gamma delta"), Answer: types.StringPtr("answer")},
		{ID: types.StringPtr("fileA_2"), Answer: types.StringPtr("answer")},
	}

	result, err := e.Run(events.WithPassID(context.Background(), "pass-x"), raw)
	require.NoError(t, err)
	assert.Equal(t, "pass-x", result.PassID)
	assert.Equal(t, 3, result.Stats.Total)
	assert.Contains(t, result.KeptIDs(), "record_1")

	tolerance := rec.ofType(events.EventTypeDataTolerance)
	kinds := make(map[events.ToleranceKind]string)
	for _, ev := range tolerance {
		assert.Equal(t, "pass-x", ev.PassID)
		assert.Equal(t, events.SeverityWarning, ev.Severity)
		data, err := ev.GetDataToleranceData()
		require.NoError(t, err)
		kinds[data.Kind] = data.RecordID
	}
	assert.Equal(t, "fileA_0", kinds[events.ToleranceMissingAnswer])
	assert.Equal(t, "record_1", kinds[events.ToleranceMissingID])
	assert.Equal(t, "fileA_2", kinds[events.ToleranceMissingQuestion])
}

func TestRepeatedIDsAreReassigned(t *testing.T) {
	rec := &eventRecorder{}
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithEventHook(rec.hook))

	raw := []types.RawQARecord{
		{ID: types.StringPtr("qa_0"), Question: types.StringPtr("alpha beta gamma"), Answer: types.StringPtr("one")},
		{ID: types.StringPtr("qa_0"), Question: types.StringPtr("delta epsilon zeta"), Answer: types.StringPtr("two")},
		{ID: types.StringPtr("qa_0#1"), Question: types.StringPtr("eta theta iota"), Answer: types.StringPtr("three")},
	}

	result, err := e.Run(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, result.Validate([]string{"qa_0", "qa_0#2", "qa_0#1"}))
	assert.Equal(t, []string{"qa_0", "qa_0#2", "qa_0#1"}, result.KeptIDs(), "supplied ids win over generated ones")
	assert.Equal(t, "qa.json", result.Kept[1].SourceLabel, "a reassigned id keeps its source label")

	dups := rec.ofType(events.EventTypeDataTolerance)
	require.Len(t, dups, 1)
	data, err := dups[0].GetDataToleranceData()
	require.NoError(t, err)
	assert.Equal(t, events.ToleranceDuplicateID, data.Kind)
	assert.Equal(t, "qa_0#2", data.RecordID)
	assert.Equal(t, 1, data.RecordIndex)
}

func TestMissingIDDoesNotCollideWithSuppliedID(t *testing.T) {
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}))

	raw := []types.RawQARecord{
		{ID: types.StringPtr("fileA_0"), Question: types.StringPtr("alpha beta"), Answer: types.StringPtr("a")},
		{Question: types.StringPtr("gamma delta"), Answer: types.StringPtr("b")},
		{ID: types.StringPtr("record_1"), Question: types.StringPtr("epsilon zeta"), Answer: types.StringPtr("c")},
	}

	result, err := e.Run(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"fileA_0", "record_1#1", "record_1"}, result.KeptIDs())
}

func TestSignerPermutationMismatch(t *testing.T) {
	signer, err := minhash.NewSigner(64, minhash.DefaultSeed)
	require.NoError(t, err)

	rec := &eventRecorder{}
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithSigner(signer), WithEventHook(rec.hook))

	result, err := e.Dedup(context.Background(), generatedCorpus(10, 1))
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
	assert.True(t, errors.Is(err, minhash.ErrPermutationMismatch), "got %v", err)
	assert.Len(t, rec.ofType(events.EventTypePassFailed), 1)

	matching, err := minhash.NewSigner(DefaultConfig().NumPerm, 42)
	require.NoError(t, err)
	e = newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithSigner(matching))
	_, err = e.Dedup(context.Background(), generatedCorpus(10, 1))
	assert.NoError(t, err)
}

func TestUnparseableIDRanksLowest(t *testing.T) {
	rec := &eventRecorder{}
	e := newEngine(t, nil,
		WithTokenizer(fieldsTokenizer{}),
		WithEventHook(rec.hook),
		WithPriorityMap(priorities.FromOrder([]string{"fileA.json"})))

	input := []types.QARecord{
		{ID: "standalone", Question: "same words", Answer: "the longest answer in this cluster"},
		{ID: "fileA_0", Question: "same words", Answer: "short"},
	}

	result, err := e.Dedup(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []string{"fileA_0"}, result.KeptIDs())

	tolerance := rec.ofType(events.EventTypeDataTolerance)
	require.Len(t, tolerance, 1)
	data, err := tolerance[0].GetDataToleranceData()
	require.NoError(t, err)
	assert.Equal(t, events.ToleranceUnparseableSource, data.Kind)
	assert.Equal(t, "standalone", data.RecordID)
}

func TestDedupDoesNotMutateInput(t *testing.T) {
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}))
	input := []types.QARecord{{ID: "fileA_0", Question: "a b", Answer: "c"}}

	_, err := e.Dedup(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, input[0].SourceLabel)
}

func TestProgressMilestones(t *testing.T) {
	var got []int
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithProgress(func(p int) {
		got = append(got, p)
	}))

	_, err := e.Dedup(context.Background(), generatedCorpus(50, 1))
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, 10, got[0])
	assert.Contains(t, got, 40)
	assert.Contains(t, got, 90)
	assert.Contains(t, got, 95)
	assert.Equal(t, 100, got[len(got)-1])
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "progress must not go backwards: %v", got)
	}
}

func TestProgressPanicDoesNotAbortPass(t *testing.T) {
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithProgress(func(int) {
		panic("sink exploded")
	}))

	result, err := e.Dedup(context.Background(), generatedCorpus(20, 2))
	require.NoError(t, err)
	assert.Equal(t, 20, result.Stats.Total)
}

func TestEventHookPanicDoesNotAbortPass(t *testing.T) {
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithEventHook(func(*events.Event) {
		panic("hook exploded")
	}))

	_, err := e.Dedup(context.Background(), generatedCorpus(20, 2))
	require.NoError(t, err)
}

func TestCancelledContextAbortsPass(t *testing.T) {
	rec := &eventRecorder{}
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithEventHook(rec.hook))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Dedup(ctx, generatedCorpus(10, 4))
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled))

	failed := rec.ofType(events.EventTypePassFailed)
	require.Len(t, failed, 1)
	data, err := failed[0].GetPassFailedData()
	require.NoError(t, err)
	assert.Equal(t, string(PhaseIndexing), data.Phase)
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 0

	e, err := NewEngine(cfg)
	assert.Nil(t, e)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestSetPriorityMapAppliesToNextPass(t *testing.T) {
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}))
	input := []types.QARecord{
		{ID: "fileA_0", Question: "same words", Answer: "aaaa"},
		{ID: "fileB_0", Question: "same words", Answer: "bbbb"},
	}

	e.SetPriorityMap(priorities.FromOrder([]string{"fileB.json", "fileA.json"}))
	result, err := e.Dedup(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []string{"fileB_0"}, result.KeptIDs())

	e.SetPriorityMap(priorities.FromOrder([]string{"fileA.json", "fileB.json"}))
	result, err = e.Dedup(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []string{"fileA_0"}, result.KeptIDs())
}

func TestPassEventsBracketThePass(t *testing.T) {
	rec := &eventRecorder{}
	e := newEngine(t, nil, WithTokenizer(fieldsTokenizer{}), WithEventHook(rec.hook))

	input := separableCorpus(2)
	result, err := e.Dedup(context.Background(), input)
	require.NoError(t, err)

	started := rec.ofType(events.EventTypePassStarted)
	completed := rec.ofType(events.EventTypePassCompleted)
	require.Len(t, started, 1)
	require.Len(t, completed, 1)
	assert.Equal(t, result.PassID, started[0].PassID)

	data, err := completed[0].GetPassCompletedData()
	require.NoError(t, err)
	assert.Equal(t, len(input), data.Total)
	assert.Equal(t, result.Stats.Kept, data.Kept)

	assert.Len(t, rec.ofType(events.EventTypeClusterFormed), result.Stats.Clusters)
}

func TestPhaseAt(t *testing.T) {
	tests := []struct {
		percent int
		want    Phase
	}{
		{0, PhaseIndexing},
		{10, PhaseIndexing},
		{40, PhaseResolving},
		{89, PhaseResolving},
		{90, PhaseSelecting},
		{95, PhaseSelecting},
		{100, PhasePartitioned},
	}
	for _, tt := range tests {
		if got := PhaseAt(tt.percent); got != tt.want {
			t.Errorf("PhaseAt(%d) = %s, want %s", tt.percent, got, tt.want)
		}
	}
}
