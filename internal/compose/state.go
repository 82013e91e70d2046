package compose

// LayoutMode selects one of the three fixed compositions.
type LayoutMode string

const (
	LayoutFaceCard  LayoutMode = "face_card"
	LayoutFaceOnly  LayoutMode = "face_only"
	LayoutScreenPIP LayoutMode = "screen_pip"
)

// Corner is a canvas corner used for PIP placement.
type Corner string

const (
	TopLeft     Corner = "top-left"
	TopRight    Corner = "top-right"
	BottomLeft  Corner = "bottom-left"
	BottomRight Corner = "bottom-right"
)

// Anchor positions an overlay: a corner or dead center.
type Anchor string

const (
	AnchorCenter      Anchor = "center"
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
)

// PIPSize selects the inset diameter.
type PIPSize string

const (
	PIPSmall  PIPSize = "small"
	PIPMedium PIPSize = "medium"
	PIPLarge  PIPSize = "large"
)

// PIPShape selects the inset clip path.
type PIPShape string

const (
	PIPCircle PIPShape = "circle"
	PIPSquare PIPShape = "square"
)

// pipDiameter maps size names to pixel diameters.
var pipDiameter = map[PIPSize]int{
	PIPSmall:  200,
	PIPMedium: 280,
	PIPLarge:  360,
}

// NameCard is the lower-third text block.
type NameCard struct {
	Name  string
	Title string
}

// OverlayState is the single overlay slot's placement parameters.
type OverlayState struct {
	Opacity float64 // [0,1]
	Scale   float64 // (0,1] of the image's natural size
	Anchor  Anchor
}

// State is the full composition state read once per rendered frame.
type State struct {
	Layout      LayoutMode
	PIPPosition Corner
	PIPSize     PIPSize
	PIPShape    PIPShape
	NameCard    NameCard
	Overlay     OverlayState
}

func defaultState() State {
	return State{
		Layout:      LayoutFaceOnly,
		PIPPosition: BottomRight,
		PIPSize:     PIPMedium,
		PIPShape:    PIPCircle,
		Overlay: OverlayState{
			Opacity: 1.0,
			Scale:   0.4,
			Anchor:  AnchorBottomRight,
		},
	}
}

// StateUpdate is a partial composition update; nil fields keep their
// current value. Last write wins per field.
type StateUpdate struct {
	Layout      *LayoutMode
	PIPPosition *Corner
	PIPSize     *PIPSize
	PIPShape    *PIPShape
	Name        *string
	Title       *string
}

// OverlayUpdate is a partial overlay-placement update.
type OverlayUpdate struct {
	Opacity *float64
	Scale   *float64
	Anchor  *Anchor
}

func (s *State) apply(u StateUpdate) {
	if u.Layout != nil {
		s.Layout = *u.Layout
	}
	if u.PIPPosition != nil {
		s.PIPPosition = *u.PIPPosition
	}
	if u.PIPSize != nil {
		s.PIPSize = *u.PIPSize
	}
	if u.PIPShape != nil {
		s.PIPShape = *u.PIPShape
	}
	if u.Name != nil {
		s.NameCard.Name = *u.Name
	}
	if u.Title != nil {
		s.NameCard.Title = *u.Title
	}
}

func (s *State) applyOverlay(u OverlayUpdate) {
	if u.Opacity != nil {
		o := *u.Opacity
		if o < 0 {
			o = 0
		} else if o > 1 {
			o = 1
		}
		s.Overlay.Opacity = o
	}
	if u.Scale != nil {
		sc := *u.Scale
		if sc <= 0 {
			sc = 0.1
		} else if sc > 1 {
			sc = 1
		}
		s.Overlay.Scale = sc
	}
	if u.Anchor != nil {
		s.Overlay.Anchor = *u.Anchor
	}
}
