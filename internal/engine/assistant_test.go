package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskmate/deskmate/internal/cache"
	"github.com/deskmate/deskmate/internal/metering"
	"github.com/deskmate/deskmate/internal/playbook"
	"github.com/deskmate/deskmate/internal/provider"
)

type fakeAssistantAPI struct {
	createCalls  int
	modifyCalls  int
	deleteCalls  int
	uploadCalls  int
	storeCalls   int
	lastSpec     provider.AssistantSpec
	deleteErr    error
	nextDeleteID string
}

func (f *fakeAssistantAPI) CreateAssistant(ctx context.Context, spec provider.AssistantSpec) (string, error) {
	f.createCalls++
	f.lastSpec = spec
	return fmt.Sprintf("asst_%d", f.createCalls), nil
}

func (f *fakeAssistantAPI) ModifyAssistant(ctx context.Context, assistantID string, spec provider.AssistantSpec) error {
	f.modifyCalls++
	f.lastSpec = spec
	return nil
}

func (f *fakeAssistantAPI) DeleteAssistant(ctx context.Context, assistantID string) error {
	f.deleteCalls++
	f.nextDeleteID = assistantID
	return f.deleteErr
}

func (f *fakeAssistantAPI) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	f.uploadCalls++
	return "file_1", nil
}

func (f *fakeAssistantAPI) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	f.storeCalls++
	return "vs_1", nil
}

func newLifecycleEngine(t *testing.T, api *fakeAssistantAPI) *Engine {
	t.Helper()
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })

	chat := chatFunc(func(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
		return textResponse("ok"), nil
	})
	return New(chat, store, metering.NewMeter(64), NewRegistry(), DefaultConfig(), nil,
		WithAssistants(api))
}

func TestCreateAssistantCompilesPlaybook(t *testing.T) {
	api := &fakeAssistantAPI{}
	eng := newLifecycleEngine(t, api)
	profile := testProfile()

	id, err := eng.CreateAssistant(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, "asst_1", id)

	assert.Equal(t, "Maya", api.lastSpec.Name)
	assert.Equal(t, "vs_1", api.lastSpec.VectorStoreID)
	assert.Equal(t, playbook.CompileAll(profile).String(), api.lastSpec.Instructions)
	assert.Contains(t, api.lastSpec.Instructions, "### BEGIN:SECURITY ###")

	stored, ok := eng.Instructions(id)
	require.True(t, ok)
	assert.Equal(t, api.lastSpec.Instructions, stored)
}

func TestContentFilterUploadedOnce(t *testing.T) {
	api := &fakeAssistantAPI{}
	eng := newLifecycleEngine(t, api)

	_, err := eng.CreateAssistant(context.Background(), testProfile())
	require.NoError(t, err)
	_, err = eng.CreateAssistant(context.Background(), testProfile())
	require.NoError(t, err)

	assert.Equal(t, 2, api.createCalls)
	assert.Equal(t, 1, api.uploadCalls)
	assert.Equal(t, 1, api.storeCalls)
}

func TestUpdateSectionSplicesInPlace(t *testing.T) {
	api := &fakeAssistantAPI{}
	eng := newLifecycleEngine(t, api)
	profile := testProfile()

	id, err := eng.CreateAssistant(context.Background(), profile)
	require.NoError(t, err)
	original, _ := eng.Instructions(id)

	profile.Personality.Tone = "playful"
	require.NoError(t, eng.UpdateAssistantSection(context.Background(), id, playbook.SectionPersonality, profile))

	assert.Equal(t, 1, api.modifyCalls)
	updated, _ := eng.Instructions(id)
	assert.NotEqual(t, original, updated)
	assert.Contains(t, updated, "playful")
	// untouched sections keep their exact bytes
	core, ok := playbook.CompileAll(profile).Section(playbook.SectionCoreInfo)
	require.True(t, ok)
	assert.Contains(t, updated, core.Body)
}

func TestUpdateSectionNoopSkipsRemoteCall(t *testing.T) {
	api := &fakeAssistantAPI{}
	eng := newLifecycleEngine(t, api)
	profile := testProfile()

	id, err := eng.CreateAssistant(context.Background(), profile)
	require.NoError(t, err)

	// same profile, same section bytes: nothing to push
	require.NoError(t, eng.UpdateAssistantSection(context.Background(), id, playbook.SectionPersonality, profile))
	assert.Equal(t, 0, api.modifyCalls)
}

func TestUpdateSectionRecompilesOnDamagedMarkers(t *testing.T) {
	api := &fakeAssistantAPI{}
	eng := newLifecycleEngine(t, api)
	profile := testProfile()

	id, err := eng.CreateAssistant(context.Background(), profile)
	require.NoError(t, err)

	// simulate external corruption of the stored playbook
	eng.mu.Lock()
	eng.states[id].instructions = "garbage with no markers"
	eng.mu.Unlock()

	require.NoError(t, eng.UpdateAssistantSection(context.Background(), id, playbook.SectionTools, profile))
	assert.Equal(t, 1, api.modifyCalls)

	updated, _ := eng.Instructions(id)
	assert.Equal(t, playbook.CompileAll(profile).String(), updated)
}

func TestUpdateSectionUnknownAssistant(t *testing.T) {
	eng := newLifecycleEngine(t, &fakeAssistantAPI{})
	err := eng.UpdateAssistantSection(context.Background(), "asst_missing", playbook.SectionTools, testProfile())
	require.Error(t, err)
}

func TestDeleteAssistantIsIdempotent(t *testing.T) {
	api := &fakeAssistantAPI{}
	eng := newLifecycleEngine(t, api)

	id, err := eng.CreateAssistant(context.Background(), testProfile())
	require.NoError(t, err)

	require.NoError(t, eng.DeleteAssistant(context.Background(), id))
	_, ok := eng.Instructions(id)
	assert.False(t, ok)

	// the remote side now 404s; delete still succeeds
	api.deleteErr = fmt.Errorf("gone: %w", provider.ErrNotFound)
	require.NoError(t, eng.DeleteAssistant(context.Background(), id))
	assert.Equal(t, 2, api.deleteCalls)
}

func TestDeleteAssistantSurfacesRealFailures(t *testing.T) {
	api := &fakeAssistantAPI{deleteErr: fmt.Errorf("%w: 503", provider.ErrUnavailable)}
	eng := newLifecycleEngine(t, api)

	id, err := eng.CreateAssistant(context.Background(), testProfile())
	require.NoError(t, err)

	err = eng.DeleteAssistant(context.Background(), id)
	require.Error(t, err)
	// state survives so the delete can be retried
	_, ok := eng.Instructions(id)
	assert.True(t, ok)
}

func TestAssistantSpecUsesProfileModel(t *testing.T) {
	api := &fakeAssistantAPI{}
	eng := newLifecycleEngine(t, api)

	profile := testProfile()
	profile.Model = "gpt-4o"
	_, err := eng.CreateAssistant(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", api.lastSpec.Model)
	assert.InDelta(t, 0.6, api.lastSpec.Temperature, 0.001)

	profile.Model = ""
	profile.Personality.Temperature = 0
	_, err = eng.CreateAssistant(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DefaultModel, api.lastSpec.Model)
	assert.InDelta(t, DefaultConfig().Temperature, api.lastSpec.Temperature, 0.001)
}

func TestGenerateCachesByPromptAndModel(t *testing.T) {
	calls := 0
	eng := newTestEngine(t, chatFunc(func(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
		calls++
		require.Len(t, req.Messages, 1)
		return textResponse("Spring cleaning offer: 20% off!"), nil
	}))

	first, err := eng.Generate(context.Background(), "Write a promo post", "")
	require.NoError(t, err)

	second, err := eng.Generate(context.Background(), "Write a promo post", "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	// a different model misses the cache
	_, err = eng.Generate(context.Background(), "Write a promo post", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	calls := 0
	chat := chatFunc(func(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("%w: overloaded", provider.ErrUnavailable)
		}
		return textResponse("done"), nil
	})
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	config := DefaultConfig()
	config.RetryBackoff = time.Millisecond
	eng := New(chat, store, metering.NewMeter(64), NewRegistry(), config, nil)

	text, err := eng.Generate(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, 3, calls)
}

func TestGenerateSkipsCacheWriteWhenCancelled(t *testing.T) {
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	eng := newTestEngine(t, chatFunc(func(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
		calls++
		// the caller gives up while the provider is mid-flight
		cancel()
		return textResponse("late answer"), nil
	}))

	text, err := eng.Generate(ctx, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "late answer", text)

	// nothing was cached, so a fresh context calls the provider again
	_, err = eng.Generate(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGenerateDoesNotRetryRejections(t *testing.T) {
	calls := 0
	eng := newTestEngine(t, chatFunc(func(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
		calls++
		return nil, fmt.Errorf("%w: bad prompt", provider.ErrRejected)
	}))

	_, err := eng.Generate(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	stats := eng.Stats(time.Minute)
	assert.Equal(t, 1, stats.TotalRequests)
}
