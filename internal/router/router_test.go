package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	tier      Tier
	available bool
	variants  map[Variant]bool
	calls     int
	fail      error
	text      string
}

func (f *fakeProvider) Name() string             { return f.name }
func (f *fakeProvider) Tier() Tier                { return f.tier }
func (f *fakeProvider) CostPer1KTokens() float64  { return 0 }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeProvider) Supports(v Variant) bool   { return f.variants[v] }

func (f *fakeProvider) Complete(ctx context.Context, task Task) (TaskResult, error) {
	f.calls++
	if f.fail != nil {
		return TaskResult{}, f.fail
	}
	return TaskResult{Text: f.text, Provider: f.name}, nil
}

func (f *fakeProvider) CompleteStreaming(ctx context.Context, task Task, onChunk func(StreamChunk)) (TaskResult, error) {
	result, err := f.Complete(ctx, task)
	if err != nil {
		return result, err
	}
	onChunk(StreamChunk{Text: result.Text, Done: true})
	return result, nil
}

func newFake(name string, tier Tier) *fakeProvider {
	return &fakeProvider{name: name, tier: tier, available: true, variants: map[Variant]bool{
		VariantClassification: true, VariantQuestion: true, VariantCodeGeneration: true, VariantCodeReview: true,
	}}
}

func TestDispatch_PicksCheapestAdequateTier(t *testing.T) {
	cache, err := OpenInMemoryCache(time.Minute, 10)
	require.NoError(t, err)
	defer cache.Close()

	r := New(cache, Config{})
	tiny := newFake("tiny", Tiny)
	tiny.text = "tiny result"
	r.Register(tiny)
	large := newFake("large", Large)
	large.text = "large result"
	r.Register(large)

	result, err := r.Dispatch(context.Background(), Task{Variant: VariantClassification, Text: "bug report"})
	require.NoError(t, err)
	assert.Equal(t, "tiny result", result.Text)
	assert.Equal(t, 1, tiny.calls)
	assert.Equal(t, 0, large.calls)
}

func TestDispatch_FallsThroughOnUnavailable(t *testing.T) {
	cache, err := OpenInMemoryCache(time.Minute, 10)
	require.NoError(t, err)
	defer cache.Close()

	r := New(cache, Config{})
	tiny := newFake("tiny", Tiny)
	tiny.available = false
	r.Register(tiny)
	small := newFake("small", Small)
	small.text = "small result"
	r.Register(small)

	result, err := r.Dispatch(context.Background(), Task{Variant: VariantClassification})
	require.NoError(t, err)
	assert.Equal(t, "small result", result.Text)
}

func TestDispatch_CachesResult(t *testing.T) {
	cache, err := OpenInMemoryCache(time.Minute, 10)
	require.NoError(t, err)
	defer cache.Close()

	r := New(cache, Config{})
	tiny := newFake("tiny", Tiny)
	tiny.text = "cached"
	r.Register(tiny)

	task := Task{Variant: VariantClassification, Text: "same input"}
	_, err = r.Dispatch(context.Background(), task)
	require.NoError(t, err)
	result, err := r.Dispatch(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, "cached", result.Text)
	assert.Equal(t, 1, tiny.calls, "second dispatch must hit the cache, not the provider")
}

func TestDispatch_AllProvidersFailed(t *testing.T) {
	cache, err := OpenInMemoryCache(time.Minute, 10)
	require.NoError(t, err)
	defer cache.Close()

	r := New(cache, Config{MaxRetries: 0})
	broken := newFake("broken", Tiny)
	broken.fail = &ProviderError{Class: ErrClassPermanent, Err: errors.New("boom")}
	r.Register(broken)

	_, err = r.Dispatch(context.Background(), Task{Variant: VariantClassification})
	require.Error(t, err)

	var rerr *RouterError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "AllProvidersFailed", rerr.Kind)
}

func TestDispatch_NoProviderRegistered(t *testing.T) {
	cache, err := OpenInMemoryCache(time.Minute, 10)
	require.NoError(t, err)
	defer cache.Close()

	r := New(cache, Config{})
	_, err = r.Dispatch(context.Background(), Task{Variant: VariantQuestion})
	require.Error(t, err)
}

func TestTaskFingerprint_StableForEquivalentPayload(t *testing.T) {
	a := Task{Variant: VariantCodeReview, ReviewCode: "x", ReviewRequirements: []string{"b", "a"}}
	b := Task{Variant: VariantCodeReview, ReviewCode: "x", ReviewRequirements: []string{"a", "b"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestTaskFingerprint_DiffersOnPayload(t *testing.T) {
	a := Task{Variant: VariantQuestion, Text: "one"}
	b := Task{Variant: VariantQuestion, Text: "two"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestAssessTier_Boundaries(t *testing.T) {
	assert.Equal(t, Small, AssessTier(Task{Variant: VariantCodeGeneration, GenSpec: "short"}))
	assert.Equal(t, Medium, AssessTier(Task{Variant: VariantCodeGeneration, GenSpec: string(make([]byte, 501))}))
	assert.Equal(t, Large, AssessTier(Task{Variant: VariantCodeGeneration, GenSpec: string(make([]byte, 2001))}))
}

func TestAllTiersFrom_IsInclusiveAndAscending(t *testing.T) {
	tiers := AllTiersFrom(Small)
	assert.Equal(t, []Tier{Small, Medium, Large}, tiers)
}

// slowProvider blocks inside Complete until release is closed, so a test can
// force several Dispatch calls to overlap in time.
type slowProvider struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowProvider) Name() string                         { return "slow" }
func (s *slowProvider) Tier() Tier                            { return Small }
func (s *slowProvider) CostPer1KTokens() float64              { return 0 }
func (s *slowProvider) IsAvailable(ctx context.Context) bool  { return true }
func (s *slowProvider) Supports(v Variant) bool               { return true }

func (s *slowProvider) Complete(ctx context.Context, task Task) (TaskResult, error) {
	s.calls.Add(1)
	<-s.release
	return TaskResult{Text: "slow result"}, nil
}

func (s *slowProvider) CompleteStreaming(ctx context.Context, task Task, onChunk func(StreamChunk)) (TaskResult, error) {
	return s.Complete(ctx, task)
}

func TestDispatch_CollapsesConcurrentCallsWithSameFingerprint(t *testing.T) {
	cache, err := OpenInMemoryCache(time.Minute, 10)
	require.NoError(t, err)
	defer cache.Close()

	r := New(cache, Config{})
	provider := &slowProvider{release: make(chan struct{})}
	r.Register(provider)

	task := Task{Variant: VariantQuestion, Text: "identical request"}

	const n = 5
	var wg sync.WaitGroup
	results := make([]TaskResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Dispatch(context.Background(), task)
		}(i)
	}

	// give every goroutine a chance to block inside Complete before unblocking it.
	time.Sleep(50 * time.Millisecond)
	close(provider.release)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, "slow result", results[i].Text)
	}
	assert.Equal(t, int32(1), provider.calls.Load(), "expected concurrent identical dispatches to collapse into one provider call")
}
