// Package preview renders a print job into a PNG approximating the paper
// ticket, so operators can inspect a ticket from the dashboard without
// burning paper.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/skip2/go-qrcode"

	"github.com/gakushoku/kitchen-terminal/internal/printer"
)

// 80mm paper at 203dpi.
const paperWidth = 576

const baseFontSize = 24

// Candidate fonts, preferring ones with CJK coverage.
var systemFonts = []string{
	"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
	"/System/Library/Fonts/Hiragino Sans GB.ttc",
	"/System/Library/Fonts/Helvetica.ttc",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
}

// Renderer converts job instructions to an image. Not safe for concurrent
// use; create one per render.
type Renderer struct {
	width  int
	height int
	ctx    *gg.Context
	y      float64

	align  string
	scale  int
	bold   bool
	cutY   float64
	hasCut bool
}

// NewRenderer creates a renderer for one ticket.
func NewRenderer() *Renderer {
	initialHeight := 1200

	ctx := gg.NewContext(paperWidth, initialHeight)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)

	return &Renderer{
		width:  paperWidth,
		height: initialHeight,
		ctx:    ctx,
		y:      20,
		align:  printer.AlignLeft,
		scale:  1,
	}
}

// Render walks the job's instructions and returns the ticket image,
// cropped to content, with a scannable order-ID code block at the bottom.
func (r *Renderer) Render(job *printer.Job) (image.Image, error) {
	for _, ins := range job.Instructions {
		switch ins.Op {
		case printer.OpAlign:
			r.align = ins.Align
		case printer.OpSize:
			r.scale = ins.Width
			if r.scale < 1 {
				r.scale = 1
			}
		case printer.OpStyle:
			r.bold = ins.Bold
		case printer.OpText:
			if err := r.renderText(ins.Text); err != nil {
				return nil, err
			}
		case printer.OpFeed:
			r.y += float64(ins.Lines) * baseFontSize
		case printer.OpCut:
			r.cutY = r.y
			r.hasCut = true
		}
	}

	if job.OrderID != "" {
		if err := r.renderCodes(job.OrderID); err != nil {
			return nil, err
		}
	}

	return r.crop(), nil
}

func (r *Renderer) renderText(text string) error {
	size := baseFontSize * float64(r.scale)

	if err := r.loadFont(size); err != nil {
		return err
	}

	textWidth, textHeight := r.ctx.MeasureString(text)

	var x float64
	switch r.align {
	case printer.AlignCenter:
		x = float64(r.width)/2 - textWidth/2
	case printer.AlignRight:
		x = float64(r.width) - textWidth - 5
	default:
		x = 5
	}

	r.ensureHeight(int(textHeight) + 20)
	r.ctx.DrawString(text, x, r.y+textHeight)
	if r.bold {
		// Poor man's bold: overstrike one pixel to the right.
		r.ctx.DrawString(text, x+1, r.y+textHeight)
	}

	r.y += textHeight + 10

	return nil
}

func (r *Renderer) loadFont(size float64) error {
	for _, font := range systemFonts {
		if _, err := os.Stat(font); err == nil {
			if err := r.ctx.LoadFontFace(font, size); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("no usable font found")
}

// renderCodes draws a CODE128 barcode and a QR code of the order ID.
func (r *Renderer) renderCodes(orderID string) error {
	bc, err := code128.Encode(orderID)
	if err != nil {
		return fmt.Errorf("encode barcode: %w", err)
	}
	scaled, err := barcode.Scale(bc, r.width-40, 80)
	if err != nil {
		return fmt.Errorf("scale barcode: %w", err)
	}

	r.ensureHeight(scaled.Bounds().Dy() + 20)
	r.ctx.DrawImage(scaled, (r.width-scaled.Bounds().Dx())/2, int(r.y))
	r.y += float64(scaled.Bounds().Dy()) + 20

	qr, err := qrcode.New(orderID, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	qrImg := imaging.Resize(qr.Image(256), 160, 160, imaging.NearestNeighbor)

	r.ensureHeight(qrImg.Bounds().Dy() + 20)
	r.ctx.DrawImage(qrImg, (r.width-qrImg.Bounds().Dx())/2, int(r.y))
	r.y += float64(qrImg.Bounds().Dy()) + 20

	return nil
}

func (r *Renderer) ensureHeight(needed int) {
	if int(r.y)+needed <= r.height {
		return
	}

	newHeight := r.height * 2
	for int(r.y)+needed > newHeight {
		newHeight *= 2
	}

	next := gg.NewContext(r.width, newHeight)
	next.SetColor(color.White)
	next.Clear()
	next.DrawImage(r.ctx.Image(), 0, 0)
	next.SetColor(color.Black)

	r.ctx = next
	r.height = newHeight
}

func (r *Renderer) crop() image.Image {
	bottom := int(r.y) + 20
	if r.hasCut && int(r.cutY) > bottom {
		bottom = int(r.cutY)
	}
	if bottom > r.height {
		bottom = r.height
	}
	return imaging.Crop(r.ctx.Image(), image.Rect(0, 0, r.width, bottom))
}

// RenderPNG renders a job and writes it as PNG.
func RenderPNG(job *printer.Job, w io.Writer) error {
	img, err := NewRenderer().Render(job)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
