package reactor

// config holds the resolved settings used by Create.
type config struct {
	clock           Clock
	priorities      int
	logger          Logger
	backendOverride string
}

// Option configures a Reactor at construction time.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(cfg *config) { f(cfg) }

// WithClock overrides the time source a Reactor reads from. Useful for
// tests that need to observe or simulate backward clock jumps.
func WithClock(c Clock) Option {
	return optionFunc(func(cfg *config) { cfg.clock = c })
}

// WithPriorities sets the number of dispatch priority levels. Values
// below 1 are clamped to 1.
func WithPriorities(n int) Option {
	return optionFunc(func(cfg *config) { cfg.priorities = n })
}

// WithLogger installs a structured logger. The default is NoOpLogger.
func WithLogger(l Logger) Option {
	return optionFunc(func(cfg *config) { cfg.logger = l })
}

// WithBackendOverride pins backend selection to the named backend
// ("epoll", "kqueue", or "poll"), bypassing the EVENT_NO* environment
// checks for every other candidate. An unknown or unavailable name
// makes Create return ErrNoBackend.
func WithBackendOverride(name string) Option {
	return optionFunc(func(cfg *config) { cfg.backendOverride = name })
}

// resolveOptions applies opts over a default config (one priority level,
// everything else zero), skipping nils.
func resolveOptions(opts []Option) *config {
	cfg := &config{priorities: 1}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
