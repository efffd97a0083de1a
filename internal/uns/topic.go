// Package uns publishes stack state into the brewery's MQTT Unified Namespace.
//
// The UNS convention places every payload under a hierarchical topic rooted at
// the physical location: {site}/{area}/{line}/... Coordination payloads live
// under a "coordination" node next to the process data so dashboards can
// subscribe to one tree.
package uns

import "strings"

// Root is the location prefix every topic is built under.
// Area and Line are optional; empty segments are skipped.
type Root struct {
	Site string
	Area string
	Line string
}

// Join builds a topic path under the root. Every segment is sanitised; empty
// segments are dropped.
func (r Root) Join(segments ...string) string {
	parts := make([]string, 0, 3+len(segments))
	for _, seg := range []string{r.Site, r.Area, r.Line} {
		if seg != "" {
			parts = append(parts, Sanitize(seg))
		}
	}
	for _, seg := range segments {
		if seg != "" {
			parts = append(parts, Sanitize(seg))
		}
	}
	return strings.Join(parts, "/")
}

// TaskStatusTopic returns the topic carrying one task's status document.
func (r Root) TaskStatusTopic(taskID string) string {
	return r.Join("coordination", "tasks", taskID, "status")
}

// AvailabilityTopic returns the retained availability topic for an instance.
func (r Root) AvailabilityTopic(instanceName string) string {
	return r.Join("coordination", "instances", instanceName, "availability")
}

// BoardSnapshotTopic returns the topic carrying the whole-board summary.
func (r Root) BoardSnapshotTopic() string {
	return r.Join("coordination", "board")
}

// Sanitize makes a string safe for use as a single MQTT topic segment:
// lowercased, spaces collapsed to underscores, and the MQTT wildcard and
// separator characters (+ # /) stripped.
func Sanitize(segment string) string {
	segment = strings.ToLower(strings.TrimSpace(segment))
	segment = strings.ReplaceAll(segment, " ", "_")

	var b strings.Builder
	for _, ch := range segment {
		switch ch {
		case '+', '#', '/':
			// drop
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}
