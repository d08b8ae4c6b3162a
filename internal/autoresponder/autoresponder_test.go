package autoresponder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSafeRejectsDangerousSubstrings(t *testing.T) {
	assert.False(t, IsSafe("Are you sure you want to delete all files?"))
	assert.False(t, IsSafe("This will permanently remove the directory"))
	assert.True(t, IsSafe("Would you like to run the tests now?"))
}

func TestDetectScansMostRecentLinesFirst(t *testing.T) {
	r := New(0, nil)
	lines := []string{
		"some earlier chatter",
		"Would you like to continue?",
		"unrelated trailing line",
	}
	p, ok := r.detect(lines)
	require.True(t, ok)
	assert.Equal(t, "General confirmation prompts", p.Description)
}

func TestDetectIgnoresBeyondLastFiveLines(t *testing.T) {
	r := New(0, nil)
	lines := []string{
		"is this correct",
		"line2", "line3", "line4", "line5", "line6",
	}
	_, ok := r.detect(lines)
	assert.False(t, ok)
}

type fakeSource struct {
	mu       sync.Mutex
	eligible []EligibleSession
	sent     map[string]string
}

func (f *fakeSource) ListEligible() []EligibleSession { return f.eligible }
func (f *fakeSource) SendInput(id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = make(map[string]string)
	}
	f.sent[id] = text
	return nil
}

func TestRunSendsReplyOnMatch(t *testing.T) {
	r := New(20*time.Millisecond, nil)
	src := &fakeSource{eligible: []EligibleSession{
		{ID: "s1", RecentLines: []string{"Is this correct? (y/n)"}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	r.Run(ctx, src)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, "yes", src.sent["s1"])
}
