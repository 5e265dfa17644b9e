package courier

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_RecordReplacesEarlierWrite(t *testing.T) {
	l := NewLedger()
	first := l.Record(KeyAutoAnswerEnabled, BoolValue(true))
	second := l.Record(KeyAutoAnswerEnabled, BoolValue(false))

	assert.Greater(t, second.Rev, first.Rev)
	assert.Equal(t, 1, l.Count())

	got, ok := l.Get(KeyAutoAnswerEnabled)
	require.True(t, ok)
	assert.Equal(t, BoolValue(false), got.Value)
}

func TestLedger_SnapshotIsIndependentCopy(t *testing.T) {
	l := NewLedger()
	l.Record(KeyVoiceLanguage, StringValue("en"))

	snap := l.Snapshot()
	l.Record(KeyTTSVoice, StringValue("alloy"))

	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 2, l.Count())
	assert.Equal(t, Preferences{KeyVoiceLanguage: StringValue("en")}, snap.Values())
}

func TestLedger_ClearKeepsKeysWrittenAfterSnapshot(t *testing.T) {
	l := NewLedger()
	l.Record(KeyAutoAnswerEnabled, BoolValue(true))
	l.Record(KeyWakeWordSensitivity, FloatValue(0.7))

	snap := l.Snapshot()

	// Arrives while the snapshot is in flight.
	l.Record(KeyAutoAnswerEnabled, BoolValue(false))

	cleared := l.Clear(snap)
	assert.Equal(t, []PreferenceKey{KeyWakeWordSensitivity}, cleared)
	assert.Equal(t, 1, l.Count())

	got, ok := l.Get(KeyAutoAnswerEnabled)
	require.True(t, ok)
	assert.Equal(t, BoolValue(false), got.Value)
}

func TestLedger_ClearTwiceIsHarmless(t *testing.T) {
	l := NewLedger()
	l.Record(KeyTTSVoice, StringValue("echo"))
	snap := l.Snapshot()

	assert.Len(t, l.Clear(snap), 1)
	assert.Empty(t, l.Clear(snap))
	assert.False(t, l.HasPending())
}

func TestLedger_ChangedSince(t *testing.T) {
	l := NewLedger()
	l.Record(KeyAutoReplyEnabled, BoolValue(true))
	snap := l.Snapshot()

	assert.False(t, l.ChangedSince(KeyAutoReplyEnabled, snap))
	assert.False(t, l.ChangedSince(KeyTTSVoice, snap), "absent key")

	l.Record(KeyTTSVoice, StringValue("shimmer"))
	assert.True(t, l.ChangedSince(KeyTTSVoice, snap), "new key")

	l.Record(KeyAutoReplyEnabled, BoolValue(false))
	assert.True(t, l.ChangedSince(KeyAutoReplyEnabled, snap), "newer revision")
}

func TestLedger_RestoreAdvancesClock(t *testing.T) {
	l := NewLedger()
	l.Restore([]LedgerEntry{
		{Key: KeyVoiceLanguage, Value: StringValue("fr"), Rev: 40},
		{Key: KeyTTSVoice, Value: StringValue("onyx"), Rev: 12},
	})
	assert.Equal(t, 2, l.Count())

	next := l.Record(KeyAutoAnswerEnabled, BoolValue(true))
	assert.Greater(t, next.Rev, uint64(40))
}

func TestLedger_PutNeverDowngrades(t *testing.T) {
	l := NewLedger()
	newer := l.Record(KeyTTSVoice, StringValue("new"))
	l.put(LedgerEntry{Key: KeyTTSVoice, Value: StringValue("old"), Rev: newer.Rev - 1})

	got, _ := l.Get(KeyTTSVoice)
	assert.Equal(t, StringValue("new"), got.Value)
}

func TestLedger_ConcurrentRecordsGetDistinctRevisions(t *testing.T) {
	l := NewLedger()
	const n = 100

	revs := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			revs <- l.Record(KeyConversationTimeout, IntValue(60)).Rev
		}()
	}
	wg.Wait()
	close(revs)

	seen := make(map[uint64]bool)
	var maxRev uint64
	for r := range revs {
		assert.False(t, seen[r], "duplicate revision %d", r)
		seen[r] = true
		if r > maxRev {
			maxRev = r
		}
	}

	got, _ := l.Get(KeyConversationTimeout)
	assert.Equal(t, maxRev, got.Rev)
}

func TestLedgerSnapshot_EntriesSorted(t *testing.T) {
	l := NewLedger()
	l.Record(KeyVoiceLanguage, StringValue("en"))
	l.Record(KeyAutoAnswerEnabled, BoolValue(true))
	l.Record(KeyTTSVoice, StringValue("nova"))

	entries := l.Snapshot().Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, KeyAutoAnswerEnabled, entries[0].Key)
	assert.Equal(t, KeyTTSVoice, entries[1].Key)
	assert.Equal(t, KeyVoiceLanguage, entries[2].Key)
}
