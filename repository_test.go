package courier

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_UpdateQueuesAndPersists(t *testing.T) {
	h := newSyncHarness(t, nil)

	require.NoError(t, h.repo.UpdatePreference(KeyWakeWordSensitivity, IntValue(1)))

	v, err := h.repo.Get(KeyWakeWordSensitivity)
	require.NoError(t, err)
	assert.Equal(t, FloatValue(1), v, "ints are widened for float keys")

	assert.True(t, h.repo.HasPendingChanges())
	entries := h.repo.PendingChanges()
	require.Len(t, entries, 1)
	assert.Equal(t, KeyWakeWordSensitivity, entries[0].Key)

	pending, err := h.store.LoadPendingChanges()
	require.NoError(t, err)
	assert.Equal(t, entries, pending)
}

func TestRepository_UnknownKeyRejected(t *testing.T) {
	h := newSyncHarness(t, nil)

	err := h.repo.UpdatePreference("darkMode", BoolValue(true))
	var uke *UnknownPreferenceKeyError
	require.ErrorAs(t, err, &uke)

	assert.False(t, h.repo.HasPendingChanges())
	stats, err := h.store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PreferenceCount)
}

func TestRepository_UpdatePreferencesIsAllOrNothing(t *testing.T) {
	h := newSyncHarness(t, nil)

	err := h.repo.UpdatePreferences(Preferences{
		KeyVoiceLanguage:       StringValue("sv"),
		KeyConversationTimeout: IntValue(1),
	})
	var ive *InvalidValueError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, KeyConversationTimeout, ive.Key)

	assert.Equal(t, 0, h.repo.GetPendingChangesCount())
	v, err := h.repo.Get(KeyVoiceLanguage)
	require.NoError(t, err)
	assert.Equal(t, StringValue("en"), v)

	require.NoError(t, h.repo.UpdatePreferences(Preferences{
		KeyVoiceLanguage:       StringValue("sv"),
		KeyConversationTimeout: IntValue(90),
	}))
	assert.Equal(t, 2, h.repo.GetPendingChangesCount())
}

func TestRepository_NonFiniteFloatRejected(t *testing.T) {
	h := newSyncHarness(t, &mockGateway{})

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := h.repo.UpdatePreference(KeyWakeWordSensitivity, FloatValue(f))
		var ive *InvalidValueError
		require.ErrorAs(t, err, &ive, "%v", f)
	}
	assert.False(t, h.repo.HasPendingChanges())

	require.NoError(t, h.repo.UpdatePreference(KeyAutoAnswerEnabled, BoolValue(true)))
	require.True(t, h.repo.SyncWithBackend(context.Background(), 1), "later writes still sync")
	assert.False(t, h.repo.HasPendingChanges())
}

func TestRepository_EmptyUpdateIsNoop(t *testing.T) {
	h := newSyncHarness(t, nil)
	require.NoError(t, h.repo.UpdatePreferences(nil))
	assert.False(t, h.repo.HasPendingChanges())
}

func TestRepository_SubscribeReceivesCurrentThenChanges(t *testing.T) {
	h := newSyncHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.repo.Subscribe(ctx)

	first := <-ch
	assert.Equal(t, DefaultPreferences(), first)

	require.NoError(t, h.repo.UpdatePreference(KeyAutoAnswerEnabled, BoolValue(true)))

	select {
	case prefs := <-ch:
		assert.True(t, prefs.AutoAnswerEnabled())
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}
}

func TestRepository_SubscribeKeepsLatestOnly(t *testing.T) {
	h := newSyncHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.repo.Subscribe(ctx)
	for _, lang := range []string{"de", "fr", "it"} {
		require.NoError(t, h.repo.UpdatePreference(KeyVoiceLanguage, StringValue(lang)))
	}

	prefs := <-ch
	assert.Equal(t, "it", prefs.VoiceLanguage())

	select {
	case extra := <-ch:
		t.Fatalf("unexpected buffered update: %v", extra)
	default:
	}
}

func TestRepository_SubscribeClosesOnCancel(t *testing.T) {
	h := newSyncHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch := h.repo.Subscribe(ctx)
	<-ch
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestRepository_ForceSyncNotifiesSubscribers(t *testing.T) {
	gw := &mockGateway{
		fetchFn: func(ctx context.Context, userID int64) (map[string]Value, error) {
			return map[string]Value{"ttsVoice": StringValue("coral")}, nil
		},
	}
	h := newSyncHarness(t, gw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.repo.Subscribe(ctx)
	<-ch

	require.True(t, h.repo.ForceSync(context.Background(), 1))
	select {
	case prefs := <-ch:
		assert.Equal(t, "coral", prefs.TTSVoice())
	case <-time.After(time.Second):
		t.Fatal("pulled values were not broadcast")
	}
}

func TestRepository_SyncOnWrite(t *testing.T) {
	gw := &mockGateway{}
	h := newSyncHarness(t, gw)
	h.repo.syncOnWrite = true
	h.repo.userID = 3
	h.repo.syncTimeout = time.Second

	require.NoError(t, h.repo.UpdatePreference(KeyAutoReplyEnabled, BoolValue(true)))
	h.repo.wait()

	assert.Equal(t, int32(1), gw.syncCalls.Load())
	assert.False(t, h.repo.HasPendingChanges())
}

func TestRepository_SyncOnWriteFailureKeepsPending(t *testing.T) {
	gw := &mockGateway{
		syncFn: func(ctx context.Context, req *PreferenceSyncRequest) (*PreferenceSyncResponse, error) {
			return nil, &TransportError{Operation: "sync_preferences", Err: errNetwork}
		},
	}
	h := newSyncHarness(t, gw)
	h.repo.syncOnWrite = true
	h.repo.userID = 3
	h.repo.syncTimeout = time.Second

	require.NoError(t, h.repo.UpdatePreference(KeyAutoReplyEnabled, BoolValue(true)))
	h.repo.wait()

	assert.True(t, h.repo.HasPendingChanges())
}

func TestRepository_OfflineStatus(t *testing.T) {
	h := newSyncHarness(t, nil)
	require.NoError(t, h.repo.UpdatePreference(KeyTTSVoice, StringValue("sage")))

	assert.False(t, h.repo.SyncWithBackend(context.Background(), 1))
	st := h.repo.Status()
	assert.True(t, st.Offline)
	assert.Equal(t, 1, st.PendingChanges)
	assert.Equal(t, "Changes pending sync", st.Message())
}
