// Package workflow advances moderation records through the configured
// processing stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// records into the registered stage handlers (ingest, frames, analysis) while
// capturing progress and failure metadata. It also aggregates queue stats,
// calls stage health checks, and emits queue-level notifications when
// processing starts or completes.
//
// Each stage runs under its own timeout from the workflow config section so a
// hung ffmpeg invocation or detection service cannot wedge the daemon. The
// analysis stage records the final verdict itself; the manager only advances
// a record to the stage's done status when the handler left it in the
// processing status.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition records; this package is
// the authoritative home for that coordination logic.
package workflow
