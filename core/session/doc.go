// Package session keeps per-conversation state for the concierge flow.
// Sessions are transient and live only in process memory.
package session
