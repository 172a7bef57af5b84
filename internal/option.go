package internal

// Option is a functional option for assembling a filedex process.
type Option func(*application)

// application collects the startup inputs for Run and RunMCP before the
// registry and server wiring happens.
type application struct {
	config *Config
}

// WithConfig sets the effective configuration for the process.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
