// Package taskboard provides type-safe Go definitions and Redis schema patterns
// for the shared coordination state of the brewery stack. The board is where all
// participants (the coordinator daemon, the brewctl CLI, and the individual
// Claude instances) exchange tasks, resource reservations, and liveness
// heartbeats via well-defined data structures stored in Redis.
//
// All Redis keys and channels are namespaced by project name so multiple
// projects can safely coexist on a single Redis server.
package taskboard
