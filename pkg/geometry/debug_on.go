//go:build petdebug

package geometry

// Built with -tags petdebug every inverse solve re-projects its result and
// panics when it lands further than one ring spacing away.
const debugChecks = true
