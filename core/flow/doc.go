// Package flow is the conversation state machine of the concierge.
//
// Each state owns an ordered list of rules; the first rule whose predicate
// matches the input wins, so tie-breaks such as "fee" before "join" are fixed
// by table order. Menu text and keyword sets live in an embedded YAML catalog
// that can be replaced from a file.
package flow
