// Package services holds cross-cutting helpers shared by workflow stages:
// sentinel error markers with failure-status classification, and context
// annotation for correlation of log records.
//
// Subpackages wrap the external model services the pipeline calls.
package services
