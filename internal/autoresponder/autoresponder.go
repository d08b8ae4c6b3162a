// Package autoresponder implements a poll loop that scans each opted-in,
// Ready session's recent output for a recognized prompt and sends back a
// canned reply. It also exports IsSafe, a guard against destructive-sounding
// output; the poll loop itself does not apply it.
package autoresponder

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/time/rate"
)

// Pattern is one recognized prompt and the reply it triggers.
type Pattern struct {
	Regex       *regexp.Regexp
	Reply       string
	Description string
}

const DefaultPollInterval = 2 * time.Second

func defaultPatterns() []Pattern {
	return []Pattern{
		{
			Regex:       regexp.MustCompile(`(?i)(continue|proceed|yes/no|y/n)\s*[?:]?\s*$`),
			Reply:       "yes",
			Description: "General confirmation prompts",
		},
		{
			Regex:       regexp.MustCompile(`(?i)press enter to continue`),
			Reply:       "",
			Description: "Press enter prompts",
		},
		{
			Regex:       regexp.MustCompile(`(?i)would you like to`),
			Reply:       "yes",
			Description: "Would you like prompts",
		},
		{
			Regex:       regexp.MustCompile(`(?i)is this correct`),
			Reply:       "yes",
			Description: "Confirmation prompts",
		},
	}
}

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)delete`),
	regexp.MustCompile(`(?i)remove`),
	regexp.MustCompile(`(?i)force`),
	regexp.MustCompile(`(?i)overwrite`),
	regexp.MustCompile(`(?i)destructive`),
	regexp.MustCompile(`(?i)permanent`),
	regexp.MustCompile(`(?i)cannot be undone`),
	regexp.MustCompile(`(?i)are you sure`),
}

// IsSafe reports whether text contains none of the dangerous-operation
// substrings. The default pattern table does not call this itself (its
// four patterns are conservative by construction); it is exported for
// callers that register their own, broader patterns and want the same
// guard applied.
func IsSafe(text string) bool {
	for _, re := range dangerousPatterns {
		if re.MatchString(text) {
			return false
		}
	}
	return true
}

// EligibleSession is one candidate for auto-response: an opted-in,
// Ready session with its most recent output lines (oldest first, at
// most 5).
type EligibleSession struct {
	ID          string
	RecentLines []string
}

// SessionSource is the subset of the Session Manager the responder needs.
type SessionSource interface {
	ListEligible() []EligibleSession
	SendInput(id string, text string) error
}

// Responder runs the poll loop.
type Responder struct {
	patterns []Pattern
	interval time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a Responder with the four default patterns. interval <= 0
// uses DefaultPollInterval.
func New(interval time.Duration, logger *slog.Logger) *Responder {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		patterns: defaultPatterns(),
		interval: interval,
		// Bounds how often this responder writes to any child's stdin in
		// aggregate, so a misbehaving or looping prompt can't flood it.
		limiter: rate.NewLimiter(rate.Every(interval/2), 5),
		logger:  logger,
	}
}

// AddPattern registers an additional prompt pattern, appended after the
// defaults.
func (r *Responder) AddPattern(pattern, reply, description string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, Pattern{Regex: re, Reply: reply, Description: description})
	return nil
}

// Run polls source on Responder.interval until ctx is done.
func (r *Responder) Run(ctx context.Context, source SessionSource) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(source)
		}
	}
}

func (r *Responder) tick(source SessionSource) {
	for _, s := range source.ListEligible() {
		pattern, ok := r.detect(s.RecentLines)
		if !ok {
			continue
		}
		if !r.limiter.Allow() {
			continue
		}
		if err := source.SendInput(s.ID, pattern.Reply); err != nil {
			r.logger.Warn("auto-responder: send failed", "session_id", s.ID, "error", err)
		}
	}
}

// detect scans up to the last 5 lines, most recent first. For the first
// line any pattern matches, it returns the earliest-registered pattern
// that matches that line.
func (r *Responder) detect(lines []string) (Pattern, bool) {
	n := len(lines)
	scanned := 0
	for i := n - 1; i >= 0 && scanned < 5; i, scanned = i-1, scanned+1 {
		for _, p := range r.patterns {
			if p.Regex.MatchString(lines[i]) {
				return p, true
			}
		}
	}
	return Pattern{}, false
}
