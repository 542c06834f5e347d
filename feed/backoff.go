package feed

import "time"

// Default retry settings.
const (
	DefaultRetryMax  = 30 * time.Second
	DefaultRetryStep = 2 * time.Second
)

// RetryConfig configures reconnection after transport failures.
type RetryConfig struct {
	// Enabled turns automatic reconnection on. Disabling it is terminal.
	Enabled bool
	// Max caps the reconnect delay. Zero means the delay grows without bound.
	Max time.Duration
	// Step is added to the delay after every consecutive failure.
	Step time.Duration
}

// DefaultRetryConfig returns the default policy: enabled, 2s step, 30s ceiling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled: true,
		Max:     DefaultRetryMax,
		Step:    DefaultRetryStep,
	}
}

// RetryState is the mutable reconnect state of one consumer.
//
// CurrentDelay is never reset by a successful connection: it only grows
// until it reaches the ceiling and then holds there.
type RetryState struct {
	Enabled      bool
	CurrentDelay time.Duration
	Attempts     int
}

// Backoff computes reconnect delays.
type Backoff struct {
	Max  time.Duration
	Step time.Duration
}

// NewBackoff creates a backoff policy from a retry config.
func NewBackoff(cfg RetryConfig) Backoff {
	return Backoff{Max: cfg.Max, Step: cfg.Step}
}

// Next returns the delay to wait before the upcoming attempt and the
// state after this failure.
//
// The returned delay is the current delay before the increment, so the
// first failure reconnects immediately. With Max > 0 the next delay is
// capped at Max; with Max == 0 it grows by Step forever.
func (b Backoff) Next(state RetryState) (time.Duration, RetryState) {
	delay := state.CurrentDelay

	next := state.CurrentDelay + b.Step
	if b.Max > 0 && next > b.Max {
		next = b.Max
	}

	return delay, RetryState{
		Enabled:      state.Enabled,
		CurrentDelay: next,
		Attempts:     state.Attempts + 1,
	}
}
