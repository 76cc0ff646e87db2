package checked

// defaultHistorySize is the number of recent operations a tracker
// retains for its violation dumps.
const defaultHistorySize = 32

// config holds the tracker knobs set through Options.
type config struct {
	panics   bool
	affinity bool
	histSize int
}

// defaultConfig returns the config a bare New starts from.
func defaultConfig() config {
	return config{
		histSize: defaultHistorySize,
	}
}

// Option configures a Tracker at construction time.
type Option func(*config)

// WithPanics makes the tracker panic on a violation instead of recording
// it for Err. Useful in tests that want the failing stack right at the
// misuse. A panicking operation registers no borrow, since its token
// never reaches the caller.
func WithPanics() Option {
	return func(c *config) {
		c.panics = true
	}
}

// WithHistorySize sets how many recent borrow operations the tracker
// retains for violation dumps and History. Zero or negative disables
// the history entirely.
func WithHistorySize(n int) Option {
	return func(c *config) {
		c.histSize = n
	}
}

// WithGoroutineAffinity additionally flags releasing or reborrowing an
// exclusive borrow from a goroutine other than the one that took it.
// The diagnostic is precise only for goroutines started with Go; for
// plain goroutines the identity is one-shot and misuse can go unseen or,
// rarely, misfire. Off by default for that reason.
func WithGoroutineAffinity() Option {
	return func(c *config) {
		c.affinity = true
	}
}
