package reaper

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dairui1/claudia/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSweepNoEntries(t *testing.T) {
	src := &MockSessionSource{}
	r := New(src, time.Minute, testLogger())

	src.On("HealthSnapshot").Return([]HealthEntry{})

	r.sweep(context.Background())

	src.AssertExpectations(t)
	src.AssertNotCalled(t, "MarkCrashed")
}

func TestSweepMarksDeadRunningSession(t *testing.T) {
	src := &MockSessionSource{}
	r := New(src, time.Minute, testLogger())

	src.On("HealthSnapshot").Return([]HealthEntry{
		{ID: "s1", Status: protocol.StatusRunning, Alive: false},
	})
	src.On("MarkCrashed", "s1", errCrashedMessage).Return(nil)

	r.sweep(context.Background())

	src.AssertExpectations(t)
}

func TestSweepIgnoresAliveSessions(t *testing.T) {
	src := &MockSessionSource{}
	r := New(src, time.Minute, testLogger())

	src.On("HealthSnapshot").Return([]HealthEntry{
		{ID: "s1", Status: protocol.StatusRunning, Alive: true},
	})

	r.sweep(context.Background())

	src.AssertNotCalled(t, "MarkCrashed")
}

func TestSweepIgnoresPausedAndInitializing(t *testing.T) {
	src := &MockSessionSource{}
	r := New(src, time.Minute, testLogger())

	src.On("HealthSnapshot").Return([]HealthEntry{
		{ID: "s1", Status: protocol.StatusPaused, Alive: false},
		{ID: "s2", Status: protocol.StatusInitializing, Alive: false},
	})

	r.sweep(context.Background())

	src.AssertNotCalled(t, "MarkCrashed")
}

func TestSweepIgnoresAlreadyTerminal(t *testing.T) {
	src := &MockSessionSource{}
	r := New(src, time.Minute, testLogger())

	src.On("HealthSnapshot").Return([]HealthEntry{
		{ID: "s1", Status: protocol.StatusCompleted, Alive: false},
		{ID: "s2", Status: protocol.StatusTerminated, Alive: false},
	})

	r.sweep(context.Background())

	src.AssertNotCalled(t, "MarkCrashed")
}

func TestSweepLogsButContinuesOnMarkCrashedError(t *testing.T) {
	src := &MockSessionSource{}
	r := New(src, time.Minute, testLogger())

	src.On("HealthSnapshot").Return([]HealthEntry{
		{ID: "s1", Status: protocol.StatusReady, Alive: false},
		{ID: "s2", Status: protocol.StatusLoading, Alive: false},
	})
	src.On("MarkCrashed", "s1", errCrashedMessage).Return(assertErr)
	src.On("MarkCrashed", "s2", errCrashedMessage).Return(nil)

	r.sweep(context.Background())

	src.AssertExpectations(t)
}

var assertErr = mockError{"boom"}

type mockError struct{ msg string }

func (e mockError) Error() string { return e.msg }
