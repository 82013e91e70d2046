package compose

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	nameFontSize  = 42
	titleFontSize = 28
	cardPadding   = 24
	cardLineGap   = 10
	cardRadius    = 12
)

var (
	cardBackground = color.RGBA{R: 12, G: 12, B: 16, A: 208}
	nameColor      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	titleColor     = color.RGBA{R: 196, G: 200, B: 208, A: 255}
)

var (
	faceOnce  sync.Once
	nameFace  font.Face
	titleFace font.Face
	faceErr   error
)

func loadFaces() (font.Face, font.Face, error) {
	faceOnce.Do(func() {
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			faceErr = fmt.Errorf("parse bold font: %w", err)
			return
		}
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			faceErr = fmt.Errorf("parse regular font: %w", err)
			return
		}
		nameFace, err = opentype.NewFace(bold, &opentype.FaceOptions{
			Size: nameFontSize, DPI: 72, Hinting: font.HintingFull,
		})
		if err != nil {
			faceErr = fmt.Errorf("name face: %w", err)
			return
		}
		titleFace, err = opentype.NewFace(regular, &opentype.FaceOptions{
			Size: titleFontSize, DPI: 72, Hinting: font.HintingFull,
		})
		if err != nil {
			faceErr = fmt.Errorf("title face: %w", err)
		}
	})
	return nameFace, titleFace, faceErr
}

// drawNameCard renders the lower-third text block at the bottom-left
// of the canvas. An empty name suppresses the card entirely.
func drawNameCard(dst *image.RGBA, card NameCard, canvasW, canvasH int) {
	if card.Name == "" {
		return
	}
	nf, tf, err := loadFaces()
	if err != nil {
		log.Error("name card fonts unavailable", "error", err)
		return
	}

	nameW := font.MeasureString(nf, card.Name).Ceil()
	nameM := nf.Metrics()
	w := nameW
	h := nameM.Ascent.Ceil() + nameM.Descent.Ceil()

	var titleM font.Metrics
	if card.Title != "" {
		titleM = tf.Metrics()
		if tw := font.MeasureString(tf, card.Title).Ceil(); tw > w {
			w = tw
		}
		h += cardLineGap + titleM.Ascent.Ceil() + titleM.Descent.Ceil()
	}

	panel := image.Rect(
		edgeMargin,
		canvasH-edgeMargin-h-2*cardPadding,
		edgeMargin+w+2*cardPadding,
		canvasH-edgeMargin,
	)
	// Mask is in destination coordinates; the mask point must be
	// panel.Min so DrawMask samples it at the panel pixels.
	mask := &roundedMask{rect: panel, radius: cardRadius}
	xdraw.DrawMask(dst, panel, image.NewUniform(cardBackground), image.Point{}, mask, panel.Min, xdraw.Over)

	baseline := panel.Min.Y + cardPadding + nameM.Ascent.Ceil()
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(nameColor),
		Face: nf,
		Dot:  fixed.P(panel.Min.X+cardPadding, baseline),
	}
	drawer.DrawString(card.Name)

	if card.Title != "" {
		baseline += nameM.Descent.Ceil() + cardLineGap + titleM.Ascent.Ceil()
		drawer.Src = image.NewUniform(titleColor)
		drawer.Face = tf
		drawer.Dot = fixed.P(panel.Min.X+cardPadding, baseline)
		drawer.DrawString(card.Title)
	}
}
