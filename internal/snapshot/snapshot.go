// Package snapshot renders a GameView as a static PNG for displays that cannot
// run the interactive UI, such as e-ink readers.
package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-board-client/internal/notation"
	"github.com/park285/cheese-board-client/pkg/boarddto"
)

const (
	DefaultSize = 480
	minSize     = 64
	maxSize     = 2048

	lightSquare = "#f0d9b5"
	darkSquare  = "#b58863"
	lastLight   = "#cdd26a"
	lastDark    = "#aaa23a"
	markColor   = "#3a6ea5"
	whitePiece  = "#ffffff"
	blackPiece  = "#222222"
)

type Options struct {
	Size            int
	ShowCoordinates bool
	// Marks are squares to dot, e.g. advisory destinations of a selected piece.
	Marks []notation.Square
}

// Render draws the board of v from the player's side.
func Render(v boarddto.GameView, o Options) (*image.RGBA, error) {
	size := o.Size
	if size <= 0 {
		size = DefaultSize
	}
	if size < minSize || size > maxSize {
		return nil, fmt.Errorf("snapshot size %d out of range", size)
	}
	size -= size % 8
	sq := size / 8
	flip := v.Orientation == "black"

	svg := boardSVG(v, o.Marks, sq, flip)
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	for row := 0; row < 8; row++ {
		for file := 0; file < 8; file++ {
			letter := v.Board[row][file]
			if letter == "" {
				continue
			}
			x, y := screen(file, row, flip)
			drawGlyph(img, image.Rect(x*sq, y*sq, (x+1)*sq, (y+1)*sq), strings.ToUpper(letter), glyphColor(letter))
		}
	}
	if o.ShowCoordinates {
		drawCoordinates(img, sq, flip)
	}
	return img, nil
}

// RenderPNG renders v and encodes it as PNG.
func RenderPNG(v boarddto.GameView, o Options) ([]byte, error) {
	img, err := Render(v, o)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// screen maps a storage cell (row 0 = rank 8) to its on-screen column and row.
func screen(file, row int, flip bool) (int, int) {
	if flip {
		return 7 - file, 7 - row
	}
	return file, row
}

func boardSVG(v boarddto.GameView, marks []notation.Square, sq int, flip bool) string {
	size := sq * 8
	last := map[[2]int]bool{}
	if len(v.LastMove) >= 4 {
		if m, err := notation.Decode(v.LastMove); err == nil {
			last[[2]int{m.From.File, 7 - m.From.Rank}] = true
			last[[2]int{m.To.File, 7 - m.To.Rank}] = true
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, size, size, size, size)
	for row := 0; row < 8; row++ {
		for file := 0; file < 8; file++ {
			x, y := screen(file, row, flip)
			dark := (file+row)%2 == 1
			fill := lightSquare
			switch {
			case last[[2]int{file, row}] && dark:
				fill = lastDark
			case last[[2]int{file, row}]:
				fill = lastLight
			case dark:
				fill = darkSquare
			}
			fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`, x*sq, y*sq, sq, sq, fill)

			letter := v.Board[row][file]
			if letter == "" {
				continue
			}
			fillPiece, stroke := whitePiece, blackPiece
			if letter == strings.ToLower(letter) {
				fillPiece, stroke = blackPiece, whitePiece
			}
			cx, cy := x*sq+sq/2, y*sq+sq/2
			fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="%s" stroke="%s" stroke-width="%d"/>`,
				cx, cy, sq*38/100, fillPiece, stroke, max(1, sq/30))
		}
	}
	for _, m := range marks {
		if !m.Valid() {
			continue
		}
		x, y := screen(m.File, 7-m.Rank, flip)
		fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="%s"/>`, x*sq+sq/2, y*sq+sq/2, max(2, sq/8), markColor)
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func glyphColor(letter string) color.Color {
	if letter == strings.ToLower(letter) {
		return color.White
	}
	return color.Black
}

// drawGlyph scales a basicfont letter up to roughly half the cell height.
func drawGlyph(dst *image.RGBA, cell image.Rectangle, text string, clr color.Color) {
	face := basicfont.Face7x13
	glyph := image.NewRGBA(image.Rect(0, 0, face.Advance*len(text), face.Height))
	d := &font.Drawer{
		Dst:  glyph,
		Src:  image.NewUniform(clr),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)

	k := max(1, cell.Dy()/(face.Height*2))
	w, h := glyph.Bounds().Dx()*k, glyph.Bounds().Dy()*k
	x := cell.Min.X + (cell.Dx()-w)/2
	y := cell.Min.Y + (cell.Dy()-h)/2
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x, y, x+w, y+h), glyph, glyph.Bounds(), xdraw.Over, nil)
}

func drawCoordinates(img *image.RGBA, sq int, flip bool) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: face}
	for i := 0; i < 8; i++ {
		file, rank := i, 7-i
		if flip {
			file, rank = 7-i, i
		}
		d.Dot = fixed.P(i*sq+sq-face.Advance-2, 8*sq-3)
		d.DrawString(string(rune('a' + file)))
		d.Dot = fixed.P(2, i*sq+face.Ascent+1)
		d.DrawString(string(rune('1' + rank)))
	}
}
