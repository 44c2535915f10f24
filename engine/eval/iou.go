package eval

import "github.com/visionset/lens/engine/domain"

// IoU computes intersection-over-union for two axis-aligned boxes per the
// xyxy formulation in §4.7. Degenerate (zero-area) unions yield 0 rather
// than dividing by zero.
func IoU(a, b domain.BBox) float64 {
	ax1, ay1, ax2, ay2 := a.XYXY()
	bx1, by1, bx2, by2 := b.XYXY()

	ix1, iy1 := max(ax1, bx1), max(ay1, by1)
	ix2, iy2 := min(ax2, bx2), min(ay2, by2)

	iw, ih := max(0, ix2-ix1), max(0, iy2-iy1)
	intersection := iw * ih

	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
