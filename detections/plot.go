package detections

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var palette = []color.NRGBA{
	{0xFF, 0x38, 0x38, 0xFF},
	{0xFF, 0x9D, 0x97, 0xFF},
	{0xFF, 0x70, 0x1F, 0xFF},
	{0xFF, 0xB2, 0x1D, 0xFF},
	{0xCF, 0xD2, 0x31, 0xFF},
	{0x48, 0xF9, 0x0A, 0xFF},
	{0x92, 0xCC, 0x17, 0xFF},
	{0x3D, 0xDB, 0x86, 0xFF},
	{0x1A, 0x93, 0x34, 0xFF},
	{0x00, 0xD4, 0xBB, 0xFF},
	{0x2C, 0x99, 0xA8, 0xFF},
	{0x00, 0xC2, 0xFF, 0xFF},
	{0x34, 0x45, 0x93, 0xFF},
	{0x64, 0x73, 0xFF, 0xFF},
	{0x00, 0x18, 0xEC, 0xFF},
	{0x84, 0x38, 0xFF, 0xFF},
	{0x52, 0x00, 0x85, 0xFF},
	{0xCB, 0x38, 0xFF, 0xFF},
	{0xFF, 0x95, 0xC8, 0xFF},
	{0xFF, 0x37, 0xC7, 0xFF},
}

func classColor(id int) color.NRGBA {
	if id < 0 {
		id = -id
	}
	return palette[id%len(palette)]
}

// Plot returns a copy of the source image with every detection drawn as a
// box and a "label confidence" tag. The source is left untouched.
func (r *Result) Plot() *image.NRGBA {
	canvas := imaging.Clone(r.Source)
	b := canvas.Bounds()
	lineWidth := max(int(math.Round(float64(b.Dx()+b.Dy())/2*0.003)), 2)

	for _, det := range r.Detections {
		c := classColor(det.ClassID)
		rect := image.Rect(
			int(math.Round(det.BBox[0])),
			int(math.Round(det.BBox[1])),
			int(math.Round(det.BBox[2])),
			int(math.Round(det.BBox[3])),
		).Intersect(b)
		if rect.Empty() {
			continue
		}
		drawBox(canvas, rect, c, lineWidth)
		label := fmt.Sprintf("%s %.2f", className(r.names, det.ClassID), det.Confidence)
		drawLabel(canvas, rect.Min, label, c)
	}

	return canvas
}

func drawBox(dst draw.Image, rect image.Rectangle, c color.Color, width int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width),
		image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y),
		image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(rect), src, image.Point{}, draw.Src)
	}
}

// drawLabel places the tag above the box corner, or inside it when the box
// touches the top edge.
func drawLabel(dst draw.Image, corner image.Point, label string, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
	}

	textW := d.MeasureString(label).Ceil()
	textH := face.Metrics().Height.Ceil()
	const pad = 2

	top := corner.Y - textH - 2*pad
	if top < dst.Bounds().Min.Y {
		top = corner.Y
	}
	tag := image.Rect(corner.X, top, corner.X+textW+2*pad, top+textH+2*pad).Intersect(dst.Bounds())
	draw.Draw(dst, tag, image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.P(corner.X+pad, top+pad+face.Metrics().Ascent.Ceil())
	d.DrawString(label)
}
