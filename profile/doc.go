// Package profile provides optional runtime profiling for razr.
//
// Profiling is built on [github.com/pkg/profile] and must be enabled at
// build time with the "pprof" build tag. Without the tag every operation is a
// no-op and [Modes] is empty, so the CLI hides its profiling flags.
//
// Supported modes are allocs, block, clock, cpu, goroutine, heap, mem, mutex,
// thread, and trace:
//
//	ctrl := profile.Profiler{Mode: "cpu", Path: dir, Quiet: true}.Start()
//	defer ctrl.Stop()
//
// Profile files are written to Path with names matching the mode, e.g.
// cpu.pprof. From the command line:
//
//	go build -tags pprof .
//	./razr --pprof-mode cpu render page.razr
//	go tool pprof -http=: ~/.cache/razr/pprof/cpu.pprof
//
// The tagged build also imports [net/http/pprof], registering its handlers
// on [net/http.DefaultServeMux] for programs embedding the engine in a
// server.
package profile

// Tag is the build tag required to enable pprof profiling.
const Tag = `pprof`
