// Package keyframe locates scene changes in a recording by measuring
// inter-frame pixel change and picking peaks in the resulting signal.
package keyframe

// Frame is one extracted keyframe: the uploaded image URL and the playback
// time in seconds it was sampled at.
type Frame struct {
	URL  string  `json:"frame_url"`
	Time float64 `json:"frame_time"`
}
