// Package render draws the records table as a PNG image.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strconv"

	"github.com/fogleman/gg"

	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

const (
	colUser     = 220.0
	colMovement = 200.0
	colDate     = 140.0
	colWeight   = 120.0
	rowHeight   = 34.0
	titleHeight = 56.0
	padding     = 20.0
	fontSize    = 16.0
)

var (
	headerFill = color.RGBA{0x2E, 0x86, 0xAB, 0xff}
	stripeFill = color.RGBA{0xF7, 0xFA, 0xFC, 0xff}
	gridColor  = color.RGBA{0xCC, 0xCC, 0xCC, 0xff}

	// fontCandidates are tried when no font is configured. The built-in
	// face has no Cyrillic glyphs.
	fontCandidates = []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/Library/Fonts/Arial Unicode.ttf",
		`C:\Windows\Fonts\arial.ttf`,
	}
)

// Labels are the texts drawn on the table.
type Labels struct {
	Title    string
	Empty    string
	User     string
	Movement string
	Date     string
	Weight   string
}

// DefaultLabels returns the Russian labels.
func DefaultLabels() Labels {
	return Labels{
		Title:    "Таблица рекордов",
		Empty:    "Нет записей",
		User:     "Имя",
		Movement: "Движение",
		Date:     "Дата",
		Weight:   "Вес (кг)",
	}
}

// Renderer draws record tables.
type Renderer struct {
	fontPath string
	labels   Labels
}

// New creates a renderer. An empty fontPath picks the first installed
// candidate font, falling back to the built-in face.
func New(fontPath string, labels Labels) *Renderer {
	if fontPath == "" {
		for _, p := range fontCandidates {
			if _, err := os.Stat(p); err == nil {
				fontPath = p
				break
			}
		}
	}
	return &Renderer{fontPath: fontPath, labels: labels}
}

func (r *Renderer) loadFont(dc *gg.Context, points float64) error {
	if r.fontPath == "" {
		return nil
	}
	if err := dc.LoadFontFace(r.fontPath, points); err != nil {
		return fmt.Errorf("load font %s: %w", r.fontPath, err)
	}
	return nil
}

// Table renders records as a PNG. An empty set renders the "no records" card.
func (r *Renderer) Table(records []store.Record) ([]byte, error) {
	if len(records) == 0 {
		return r.empty()
	}

	cols := []float64{colUser, colMovement, colDate, colWeight}
	width := padding * 2
	for _, w := range cols {
		width += w
	}
	height := padding*2 + titleHeight + rowHeight*float64(len(records)+1)

	dc := gg.NewContext(int(width), int(height))
	dc.SetColor(color.White)
	dc.Clear()

	if err := r.loadFont(dc, fontSize+4); err != nil {
		return nil, err
	}
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(r.labels.Title, width/2, padding+titleHeight/2, 0.5, 0.5)

	if err := r.loadFont(dc, fontSize); err != nil {
		return nil, err
	}

	header := []string{r.labels.User, r.labels.Movement, r.labels.Date, r.labels.Weight}
	top := padding + titleHeight
	drawRow(dc, header, cols, top, headerFill, color.White)

	for i, rec := range records {
		fill := color.Color(color.White)
		if (i+1)%2 == 0 {
			fill = stripeFill
		}
		cells := []string{rec.User, rec.Movement, rec.Date, FormatWeight(rec.Weight)}
		drawRow(dc, cells, cols, top+rowHeight*float64(i+1), fill, color.Black)
	}

	return encode(dc)
}

func (r *Renderer) empty() ([]byte, error) {
	dc := gg.NewContext(600, 200)
	dc.SetColor(color.White)
	dc.Clear()
	if err := r.loadFont(dc, fontSize+6); err != nil {
		return nil, err
	}
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(r.labels.Empty, 300, 100, 0.5, 0.5)
	return encode(dc)
}

func drawRow(dc *gg.Context, cells []string, cols []float64, y float64, fill, text color.Color) {
	x := padding
	for i, w := range cols {
		dc.DrawRectangle(x, y, w, rowHeight)
		dc.SetColor(fill)
		dc.FillPreserve()
		dc.SetColor(gridColor)
		dc.SetLineWidth(1)
		dc.Stroke()

		dc.SetColor(text)
		dc.DrawStringAnchored(cells[i], x+w/2, y+rowHeight/2, 0.5, 0.35)
		x += w
	}
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatWeight prints a weight without a trailing ".0".
func FormatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
