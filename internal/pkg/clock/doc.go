// Package clock provides a tiny time abstraction.
//
// Production code should depend on the Clocker interface instead of calling
// time.Now() directly. Tests pass a Manual clock and advance it explicitly,
// so window and timestamp logic stays deterministic.
package clock
