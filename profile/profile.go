// Package profile controls runtime profiling sessions for the tealeaf
// CLI, with pflag registration in the same Config/Flags pattern as
// [github.com/krishjag/tealeaf/log].
package profile

import (
	"fmt"
	"os"
	"runtime/pprof"
)

// Profiler controls the lifecycle of runtime profiling sessions.
//
// Call [Profiler.Start] before the profiled work and [Profiler.Stop]
// after it to write all enabled profiles. Create instances with
// [Config.NewProfiler].
type Profiler struct {
	cpuFile *os.File
	Config
}

// Start begins CPU profiling if enabled. Call [Profiler.Stop] when the
// profiled work is complete to write snapshot profiles.
func (p *Profiler) Start() error {
	if p.CPUProfile == "" {
		return nil
	}

	f, err := os.Create(p.CPUProfile)
	if err != nil {
		return fmt.Errorf("creating CPU profile: %w", err)
	}

	p.cpuFile = f

	err = pprof.StartCPUProfile(f)
	if err != nil {
		_ = p.cpuFile.Close()
		p.cpuFile = nil

		return fmt.Errorf("starting CPU profile: %w", err)
	}

	return nil
}

// Stop stops CPU profiling and writes all enabled snapshot profiles.
func (p *Profiler) Stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()

		err := p.cpuFile.Close()
		if err != nil {
			return fmt.Errorf("closing CPU profile: %w", err)
		}

		p.cpuFile = nil
	}

	return p.writeSnapshots()
}

// writeSnapshots writes all enabled snapshot profiles.
func (p *Profiler) writeSnapshots() error {
	profiles := []struct {
		name string
		path string
	}{
		{"heap", p.HeapProfile},
		{"allocs", p.AllocsProfile},
	}

	for _, prof := range profiles {
		if prof.path == "" {
			continue
		}

		err := p.writeProfile(prof.name, prof.path)
		if err != nil {
			return fmt.Errorf("write %s profile: %w", prof.name, err)
		}
	}

	return nil
}

// writeProfile writes a named pprof profile to the given file path.
func (p *Profiler) writeProfile(name, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s profile: %w", name, err)
	}

	prof := pprof.Lookup(name)
	if prof == nil {
		_ = f.Close()

		return fmt.Errorf("unknown profile: %s", name)
	}

	err = prof.WriteTo(f, 0)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("write %s profile: %w", name, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("write %s profile: %w", name, err)
	}

	return nil
}
