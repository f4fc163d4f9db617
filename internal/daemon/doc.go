// Package daemon hosts the long-running moderation service. It owns the
// single-instance lock, the workflow manager lifecycle, and the local HTTP
// API that the CLI talks to. Submissions are validated here before they
// enter the queue so the pipeline only ever sees resolvable source files.
package daemon
