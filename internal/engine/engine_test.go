package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/realty-ai/internal/cache"
	"github.com/sells-group/realty-ai/internal/leadscore"
	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/provider"
	"github.com/sells-group/realty-ai/internal/provider/mocks"
	"github.com/sells-group/realty-ai/internal/resilience"
	"github.com/sells-group/realty-ai/internal/store"
	"github.com/sells-group/realty-ai/internal/validate"
	"github.com/sells-group/realty-ai/internal/valuation"
)

const tenant = "acme"

var defaultCfg = model.ProviderConfig{Provider: model.ProviderOpenAI, Credential: "sk-default"}

func intPtr(v int) *int { return &v }

func miami() model.ValuationRequest {
	return model.ValuationRequest{
		Location:     "Miami Beach, Florida",
		AreaSqFt:     1450,
		PropertyType: "apartment",
		Bedrooms:     intPtr(3),
		Bathrooms:    intPtr(2),
		Market:       "miami",
		Currency:     "USD",
	}
}

type fixture struct {
	engine *Engine
	store  *store.SQLiteStore
	mock   *mocks.MockProvider
	mr     *miniredis.Miniredis
}

func newFixture(t *testing.T, withCache bool, opts ...func(*Options)) *fixture {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := &fixture{store: st, mock: mocks.NewMockProvider(t)}
	factory := func(cfg model.ProviderConfig) (provider.Provider, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return f.mock, nil
	}

	o := Options{
		Valuations: valuation.NewService(factory, nil),
		Leads:      leadscore.NewService(factory, nil),
		Store:      st,
		Retry:      resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		Circuit:    resilience.NewCircuitBreakerConfig(5, 60),
		Default:    defaultCfg,
	}
	if withCache {
		f.mr = miniredis.RunT(t)
		c, err := cache.New("redis://"+f.mr.Addr(), time.Hour)
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() }) //nolint:errcheck
		o.Cache = c
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.engine = New(o)
	return f
}

func completed(text string) *provider.Completion {
	return &provider.Completion{Text: text, Model: "gpt-4o-mini"}
}

const miamiJSON = `{"estimatedValue":820000,"confidence":0.89,"factors":{"location":0.4,"size":0.3,"amenities":0.1,"market":0.15,"yearBuilt":0.05},"comparables":[],"summary":"...","marketInsights":["..."]}`

func TestValuate_PersistsAndCaches(t *testing.T) {
	f := newFixture(t, true)
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(completed(miamiJSON), nil).Once()

	ctx := context.Background()
	first, err := f.engine.Valuate(ctx, tenant, miami())
	require.NoError(t, err)
	assert.InDelta(t, 820000, first.EstimatedValue, 0)

	second, err := f.engine.Valuate(ctx, tenant, miami())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	recs, err := f.engine.ValuationHistory(ctx, tenant, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.ProviderOpenAI, recs[0].Provider)
	assert.Equal(t, "gpt-4o-mini", recs[0].Model)

	key, err := cache.Key(kindValuation, tenant, defaultCfg, miami())
	require.NoError(t, err)
	assert.Equal(t, time.Hour, f.mr.TTL(key))
}

func TestValuate_FallbackNotCachedByDefault(t *testing.T) {
	f := newFixture(t, true)
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(completed("I am unable to value this property."), nil).Twice()

	for range 2 {
		res, err := f.engine.Valuate(context.Background(), tenant, miami())
		require.NoError(t, err)
		assert.Equal(t, validate.FallbackValuation(), res)
	}

	key, err := cache.Key(kindValuation, tenant, defaultCfg, miami())
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(key))
}

func TestValuate_FallbackCachedForFallbackTTL(t *testing.T) {
	f := newFixture(t, true, func(o *Options) { o.FallbackTTL = time.Minute })
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(completed("I am unable to value this property."), nil).Once()

	ctx := context.Background()
	for range 2 {
		res, err := f.engine.Valuate(ctx, tenant, miami())
		require.NoError(t, err)
		assert.Equal(t, validate.FallbackValuation(), res)
	}

	key, err := cache.Key(kindValuation, tenant, defaultCfg, miami())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, f.mr.TTL(key))

	f.mr.FastForward(2 * time.Minute)
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(completed(miamiJSON), nil).Once()
	res, err := f.engine.Valuate(ctx, tenant, miami())
	require.NoError(t, err)
	assert.InDelta(t, 820000, res.EstimatedValue, 0)
}

func TestScoreLead_FallbackNotCachedByDefault(t *testing.T) {
	f := newFixture(t, true)
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(completed("n/a"), nil).Twice()

	for range 2 {
		res, err := f.engine.ScoreLead(context.Background(), tenant, "", model.LeadScoringRequest{Timeline: "next quarter"})
		require.NoError(t, err)
		assert.Equal(t, validate.FallbackLeadScore(), res)
	}
}

func TestValuate_CancelledCallerDoesNotFailSharedCall(t *testing.T) {
	f := newFixture(t, false)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _, _ string) (*provider.Completion, error) {
			once.Do(func() { close(started) })
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return completed(miamiJSON), nil
			}
		}, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.engine.Valuate(firstCtx, tenant, miami())
		firstErr <- err
	}()
	<-started

	type outcome struct {
		res model.ValuationResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := f.engine.Valuate(context.Background(), tenant, miami())
		second <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller still waiting")
	}

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.InDelta(t, 820000, got.res.EstimatedValue, 0)
}

// flakyStore fails the first failures valuation writes with err.
type flakyStore struct {
	*store.SQLiteStore
	failures int
	err      error
	calls    int
}

func (s *flakyStore) SaveValuation(ctx context.Context, rec *model.ValuationRecord) error {
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	return s.SQLiteStore.SaveValuation(ctx, rec)
}

func TestValuate_RetriesTransientSave(t *testing.T) {
	var fs *flakyStore
	f := newFixture(t, false, func(o *Options) {
		fs = &flakyStore{
			SQLiteStore: o.Store.(*store.SQLiteStore),
			failures:    1,
			err:         resilience.NewTransientError(errors.New("database is locked"), 0),
		}
		o.Store = fs
	})
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(completed(miamiJSON), nil).Once()

	_, err := f.engine.Valuate(context.Background(), tenant, miami())
	require.NoError(t, err)
	assert.Equal(t, 2, fs.calls)

	recs, err := f.engine.ValuationHistory(context.Background(), tenant, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestValuate_PermanentSaveFailure(t *testing.T) {
	var fs *flakyStore
	f := newFixture(t, false, func(o *Options) {
		fs = &flakyStore{SQLiteStore: o.Store.(*store.SQLiteStore), failures: 5, err: errors.New("disk full")}
		o.Store = fs
	})
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(completed(miamiJSON), nil).Once()

	res, err := f.engine.Valuate(context.Background(), tenant, miami())
	require.NoError(t, err, "a failed write does not fail the valuation")
	assert.InDelta(t, 820000, res.EstimatedValue, 0)
	assert.Equal(t, 1, fs.calls)
}

func TestValuate_InvalidRequest(t *testing.T) {
	f := newFixture(t, false)

	req := miami()
	req.Location = " "
	_, err := f.engine.Valuate(context.Background(), tenant, req)

	var reqErr *model.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "location", reqErr.Field)
}

func TestProviderFor(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	cfg, err := f.engine.ProviderFor(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, defaultCfg, cfg)

	require.NoError(t, f.engine.SaveSettings(ctx, &model.TenantSettings{
		TenantID: tenant,
		Provider: "ANTHROPIC",
		APIKey:   "sk-ant-tenant",
	}))
	cfg, err = f.engine.ProviderFor(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "sk-ant-tenant", cfg.Credential)

	noDefault := newFixture(t, false, func(o *Options) { o.Default = model.ProviderConfig{} })
	_, err = noDefault.engine.ProviderFor(ctx, "newcomer")
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "provider", cfgErr.Field)
}

func TestSaveSettings_Invalid(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	err := f.engine.SaveSettings(ctx, &model.TenantSettings{TenantID: tenant, Provider: model.ProviderCustom, APIKey: "k"})
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))

	got, err := f.engine.Settings(ctx, tenant)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValuate_RetriesTransient(t *testing.T) {
	f := newFixture(t, false)
	busy := &provider.UpstreamError{Provider: model.ProviderOpenAI, StatusCode: 503, Reason: provider.ReasonServerError, Err: errors.New("busy")}
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil, busy).Once()
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(completed(miamiJSON), nil).Once()

	res, err := f.engine.Valuate(context.Background(), tenant, miami())
	require.NoError(t, err)
	assert.InDelta(t, 0.89, res.Confidence, 0)
}

func TestValuate_NoRetryOnUnauthorized(t *testing.T) {
	f := newFixture(t, false)
	denied := &provider.UpstreamError{Provider: model.ProviderOpenAI, StatusCode: 401, Reason: provider.ReasonUnauthorized, Err: errors.New("bad key")}
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil, denied).Once()

	_, err := f.engine.Valuate(context.Background(), tenant, miami())
	assert.Same(t, denied, err)
	assert.Equal(t, resilience.CircuitClosed, f.engine.CircuitStates()["openai"])
}

func TestValuate_CircuitOpens(t *testing.T) {
	f := newFixture(t, false, func(o *Options) {
		o.Retry = resilience.RetryConfig{MaxAttempts: 1}
		o.Circuit = resilience.NewCircuitBreakerConfig(1, 60)
	})
	busy := &provider.UpstreamError{Provider: model.ProviderOpenAI, StatusCode: 503, Reason: provider.ReasonServerError, Err: errors.New("busy")}
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil, busy).Once()

	_, err := f.engine.Valuate(context.Background(), tenant, miami())
	require.Error(t, err)

	_, err = f.engine.Valuate(context.Background(), tenant, miami())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, resilience.CircuitOpen, f.engine.CircuitStates()["openai"])
}

func TestBreakerName(t *testing.T) {
	assert.Equal(t, "openai", breakerName(model.ProviderConfig{Provider: model.ProviderOpenAI, Endpoint: "ignored"}))
	assert.Equal(t, "custom:http://a/v1", breakerName(model.ProviderConfig{Provider: model.ProviderCustom, Endpoint: "http://a/v1"}))
}

func TestScoreLead_Records(t *testing.T) {
	f := newFixture(t, false)
	f.mock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(completed(`{"score":77,"priority":"high","factors":{"timeline":0.9},"recommendations":["Call"]}`), nil).Once()

	ctx := context.Background()
	res, err := f.engine.ScoreLead(ctx, tenant, "lead-9", model.LeadScoringRequest{Timeline: "this month"})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, res.Priority)

	recs, err := f.engine.LeadHistory(ctx, tenant, "lead-9", 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "this month", recs[0].Request.Timeline)
}

func TestScoreLeads_OrderAndPartialFailure(t *testing.T) {
	f := newFixture(t, false)

	for i := 0; i < 5; i++ {
		loc := fmt.Sprintf("City %d", i)
		if i == 2 {
			f.mock.On("Complete", mock.Anything, mock.Anything,
				mock.MatchedBy(func(u string) bool { return strings.Contains(u, loc) }),
			).Return(nil, &provider.UpstreamError{Provider: model.ProviderOpenAI, StatusCode: 400, Reason: provider.ReasonBadRequest, Err: errors.New("bad")}).Once()
			continue
		}
		f.mock.On("Complete", mock.Anything, mock.Anything,
			mock.MatchedBy(func(u string) bool { return strings.Contains(u, loc) }),
		).Return(completed(fmt.Sprintf(`{"score":%d,"priority":"low"}`, 10+i)), nil).Once()
	}

	inputs := make([]LeadInput, 5)
	for i := range inputs {
		inputs[i] = LeadInput{
			LeadID:             fmt.Sprintf("lead-%d", i),
			LeadScoringRequest: model.LeadScoringRequest{Location: fmt.Sprintf("City %d", i)},
		}
	}

	out, err := f.engine.ScoreLeads(context.Background(), tenant, inputs, 3)
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, o := range out {
		assert.Equal(t, fmt.Sprintf("lead-%d", i), o.LeadID)
		if i == 2 {
			assert.Nil(t, o.Result)
			assert.Contains(t, o.Error, "upstream openai")
			continue
		}
		require.NotNil(t, o.Result)
		assert.InDelta(t, float64(10+i), o.Result.Score, 0)
	}

	recs, err := f.engine.LeadHistory(context.Background(), tenant, "", 50)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}

func TestScoreLeads_NoProvider(t *testing.T) {
	f := newFixture(t, false, func(o *Options) { o.Default = model.ProviderConfig{} })

	_, err := f.engine.ScoreLeads(context.Background(), tenant, []LeadInput{{}}, 2)
	var cfgErr *model.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}
