package compose

import "image"

// edgeMargin is the gap between canvas edges and insets (PIP, name
// card, corner-anchored overlays).
const edgeMargin = 32

// fillCropRect returns the sub-rectangle of a srcW x srcH source that
// matches the dst aspect ratio, centered, for aspect-fill scaling. The
// returned rectangle never exceeds the source bounds.
func fillCropRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rect(0, 0, srcW, srcH)
	}
	// Compare srcW/srcH against dstW/dstH without division.
	if srcW*dstH > dstW*srcH {
		// Source is wider: keep full height, crop width.
		w := srcH * dstW / dstH
		x := (srcW - w) / 2
		return image.Rect(x, 0, x+w, srcH)
	}
	// Source is taller or equal: keep full width, crop height.
	h := srcW * dstH / dstW
	y := (srcH - h) / 2
	return image.Rect(0, y, srcW, y+h)
}

// pipRect returns the square PIP destination rectangle for the given
// corner and size on a canvasW x canvasH canvas.
func pipRect(pos Corner, size PIPSize, canvasW, canvasH int) image.Rectangle {
	side, ok := pipDiameter[size]
	if !ok {
		side = pipDiameter[PIPMedium]
	}
	var x, y int
	switch pos {
	case TopLeft:
		x, y = edgeMargin, edgeMargin
	case TopRight:
		x, y = canvasW-edgeMargin-side, edgeMargin
	case BottomLeft:
		x, y = edgeMargin, canvasH-edgeMargin-side
	default: // BottomRight
		x, y = canvasW-edgeMargin-side, canvasH-edgeMargin-side
	}
	return image.Rect(x, y, x+side, y+side)
}

// anchorRect places a w x h box at the given anchor on the canvas.
// Corner anchors sit edgeMargin in from both edges; center is exact.
func anchorRect(a Anchor, canvasW, canvasH, w, h int) image.Rectangle {
	var x, y int
	switch a {
	case AnchorTopLeft:
		x, y = edgeMargin, edgeMargin
	case AnchorTopRight:
		x, y = canvasW-edgeMargin-w, edgeMargin
	case AnchorBottomLeft:
		x, y = edgeMargin, canvasH-edgeMargin-h
	case AnchorBottomRight:
		x, y = canvasW-edgeMargin-w, canvasH-edgeMargin-h
	default: // AnchorCenter
		x, y = (canvasW-w)/2, (canvasH-h)/2
	}
	return image.Rect(x, y, x+w, y+h)
}

// overlaySize scales an image's natural size by the overlay scale
// factor, clamping so the result always fits the canvas.
func overlaySize(naturalW, naturalH int, scale float64, canvasW, canvasH int) (int, int) {
	w := int(float64(naturalW) * scale)
	h := int(float64(naturalH) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	maxW := canvasW - 2*edgeMargin
	maxH := canvasH - 2*edgeMargin
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if h > maxH {
		w = w * maxH / h
		h = maxH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
