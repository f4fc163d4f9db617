package stage

import "fmt"

// Health summarizes the readiness of a workflow stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// MissingBinary reports a stage blocked on an absent media tool. Ingest and
// analysis both shell out to ffmpeg-family binaries, so the detail wording
// is shared here.
func MissingBinary(name, binary string) Health {
	return Unhealthy(name, fmt.Sprintf("binary %q not found", binary))
}
