// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Verdict and error events are gated individually by the
// notifications config section so operators can subscribe to failures without
// a message per moderated recording.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
