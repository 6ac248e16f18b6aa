// Package policy defines the per-tool execution policy (ask/auto/deny with
// allow and block lists) consulted before every tool dispatch.
package policy
