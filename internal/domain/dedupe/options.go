package dedupe

// Option applies a configuration option to the memory tracker.
type Option func(*memoryTracker)

// WithMaxKeys sets how many keys are remembered.
// maxKeys <= 0 disables eviction.
func WithMaxKeys(maxKeys int) Option {
	return func(t *memoryTracker) {
		t.maxKeys = maxKeys
	}
}
