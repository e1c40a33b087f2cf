package profile

import (
	"github.com/spf13/pflag"
)

// Flags holds CLI flag names for profiling configuration, allowing
// callers to customize flag names while keeping sensible defaults via
// [NewConfig].
type Flags struct {
	CPUProfile    string
	HeapProfile   string
	AllocsProfile string
}

// NewConfig creates a new [Config] embedding these flag names.
func (f Flags) NewConfig() *Config {
	return &Config{
		Flags: f,
	}
}

// Config holds CLI flag values for profiling configuration.
type Config struct {
	CPUProfile    string
	HeapProfile   string
	AllocsProfile string
	Flags         Flags
}

// NewConfig returns a new [Config] with default flag names.
func NewConfig() *Config {
	f := Flags{
		CPUProfile:    "cpu-profile",
		HeapProfile:   "heap-profile",
		AllocsProfile: "allocs-profile",
	}

	return f.NewConfig()
}

// RegisterFlags adds profiling flags to the given [*pflag.FlagSet].
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.CPUProfile, c.Flags.CPUProfile, "",
		"write a CPU profile to the given file")
	flags.StringVar(&c.HeapProfile, c.Flags.HeapProfile, "",
		"write a heap profile to the given file on exit")
	flags.StringVar(&c.AllocsProfile, c.Flags.AllocsProfile, "",
		"write an allocs profile to the given file on exit")
}

// NewProfiler creates a [Profiler] using this [Config].
func (c *Config) NewProfiler() *Profiler {
	return &Profiler{Config: *c}
}
