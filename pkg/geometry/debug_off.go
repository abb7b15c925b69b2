//go:build !petdebug

package geometry

const debugChecks = false
