// Package core defines the shared domain types of cartpilot: grocery items
// and their categories, delivery addresses, cart snapshots owned by the
// remote service, the typed error taxonomy and the ToolContext handed to
// tool executions. It has no dependencies on the orchestration packages so
// every other package can import it freely.
package core
