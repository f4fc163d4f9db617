package keyframe

import (
	"image"

	"gocv.io/x/gocv"
)

// Differ measures how much each frame differs from the previous one. The
// magnitude is the count of pixels that grew brighter since the last frame,
// computed on blurred grayscale images so sensor noise does not register.
type Differ struct {
	prev gocv.Mat
	has  bool
}

// NewDiffer returns a Differ ready for the first frame.
func NewDiffer() *Differ {
	return &Differ{prev: gocv.NewMat()}
}

// Close releases the retained previous frame.
func (d *Differ) Close() {
	d.prev.Close()
}

// Next consumes a frame and returns its change magnitude. The first frame
// always reports zero. A frame whose size differs from the previous one
// (e.g. a mid-stream resolution change) is compared after resizing the
// previous frame to match.
func (d *Differ) Next(frame gocv.Mat) int {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(9, 9), 0, 0, gocv.BorderDefault)

	if !d.has {
		d.prev.Close()
		d.prev = blurred
		d.has = true
		return 0
	}

	if d.prev.Rows() != blurred.Rows() || d.prev.Cols() != blurred.Cols() {
		resized := gocv.NewMat()
		gocv.Resize(d.prev, &resized, image.Pt(blurred.Cols(), blurred.Rows()), 0, 0, gocv.InterpolationArea)
		d.prev.Close()
		d.prev = resized
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(blurred, d.prev, &diff)
	magnitude := gocv.CountNonZero(diff)

	d.prev.Close()
	d.prev = blurred
	return magnitude
}
