// Package idgen generates unique identifiers for sessions, turns and
// approval requests. Tests stub NewFunc to obtain stable ids.
package idgen
