package transcript

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/encoding/charmap"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/media"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
)

const (
	pdfTitle           = "Histórico de Conversa - Chatwoot"
	historyHeading     = "Histórico da Conversa:"
	summaryHeading     = "Resumo da Conversa"
	emptyConversation  = "Nenhuma mensagem encontrada nesta conversa."
	imageNotRenderable = "[Imagem não disponível para visualização]"
	footerFmt          = "Página %d de {nb}"
	fontFamily         = "Helvetica"
	formatPDF          = "pdf"
)

// Layout in millimetres.
const (
	pageMargin     = 20.0
	footerOffset   = -15.0
	lineHeight     = 5.0
	blockGap       = 3.0
	imageMaxWidth  = 140.0
	imageMaxHeight = 105.0
	imageMaxPixels = 1600
	pixelsPerMM    = 96.0 / 25.4
	jpegQuality    = 85
)

// RenderPDF renders the document as a paginated PDF. Images are embedded,
// PDF files get a framed note and every page carries a page counter.
func (a *Assembler) RenderPDF(doc Document) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("render pdf: panic: %v", r)
		}
	}()

	r := newPDFRenderer(a)

	r.title(doc)
	r.contactInfo(doc.Contact)
	r.history(doc.Records)
	r.summary(doc)

	if r.pdf.Err() {
		return nil, fmt.Errorf("render pdf: %w", r.pdf.Error())
	}

	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	observability.TranscriptsRendered.WithLabelValues(formatPDF).Inc()

	return buf.Bytes(), nil
}

type pdfRenderer struct {
	a      *Assembler
	pdf    *fpdf.Fpdf
	images int
}

func newPDFRenderer(a *Assembler) *pdfRenderer {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("")
	pdf.SetTitle(pdfTitle, true)

	pdf.SetFooterFunc(func() {
		pdf.SetY(footerOffset)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, cp1252(fmt.Sprintf(footerFmt, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	return &pdfRenderer{a: a, pdf: pdf}
}

func (r *pdfRenderer) title(doc Document) {
	r.pdf.SetFont(fontFamily, "B", 16)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.CellFormat(0, 10, cp1252(pdfTitle), "", 1, "C", false, 0, "")

	r.pdf.SetFont(fontFamily, "", 9)
	r.pdf.SetTextColor(100, 100, 100)
	r.pdf.CellFormat(0, lineHeight, cp1252("Gerado em "+doc.GeneratedAt.Format(timestampLayout)), "", 1, "C", false, 0, "")
	r.pdf.Ln(blockGap)
}

func (r *pdfRenderer) contactInfo(c domain.ContactProfile) {
	r.pdf.SetFont(fontFamily, "B", 12)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.CellFormat(0, 7, cp1252("Informações do Contato:"), "", 1, "L", false, 0, "")

	r.pdf.SetFont(fontFamily, "", 10)

	fields := []struct{ label, value string }{
		{"Nome", c.DisplayName()},
		{"Email", c.Email},
		{"Telefone", c.Phone},
		{"Empresa", c.Company},
		{"CPF", c.NationalID},
		{"Processo", c.CaseReference},
		{"Profissão", c.Profession},
	}

	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}

		r.pdf.MultiCell(0, lineHeight, cp1252(f.label+": "+f.value), "", "L", false)
	}

	r.pdf.Ln(blockGap)
	r.separator()
}

func (r *pdfRenderer) history(records []domain.EnrichedRecord) {
	r.pdf.SetFont(fontFamily, "B", 12)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.CellFormat(0, 7, cp1252(historyHeading), "", 1, "L", false, 0, "")
	r.pdf.Ln(2)

	if len(records) == 0 {
		r.pdf.SetFont(fontFamily, "I", 10)
		r.pdf.MultiCell(0, lineHeight, cp1252(emptyConversation), "", "L", false)

		return
	}

	for _, rec := range records {
		r.record(rec)
		r.separator()
	}
}

func (r *pdfRenderer) record(rec domain.EnrichedRecord) {
	r.pdf.SetFont(fontFamily, "B", 10)
	r.pdf.SetTextColor(40, 40, 40)
	r.pdf.MultiCell(0, lineHeight, cp1252(r.a.header(rec)), "", "L", false)

	r.pdf.SetFont(fontFamily, "", 10)
	r.pdf.SetTextColor(0, 0, 0)

	switch rec.Kind {
	case domain.KindAudio:
		r.pdf.SetFont(fontFamily, "I", 10)
		r.text(audioLine(rec))
	case domain.KindImage:
		r.text("[Imagem]: " + fileLabel(rec, defaultImageName))
		r.imageOrPlaceholder(rec, ImageUnavailable)
	case domain.KindFile:
		r.text("[Arquivo]: " + fileLabel(rec, defaultFileName))
		r.fileBody(rec)
	default:
		r.text(rec.Content)
	}
}

func (r *pdfRenderer) fileBody(rec domain.EnrichedRecord) {
	if !rec.Succeeded() {
		r.note(FileUnavailable)
		return
	}

	switch rec.Category() {
	case domain.CategoryPDF:
		r.framed(pdfAttachedNote)
	case domain.CategoryImage:
		r.imageOrPlaceholder(rec, FileUnavailable)
	default:
		r.note(fileAttachedNote)
	}
}

func (r *pdfRenderer) imageOrPlaceholder(rec domain.EnrichedRecord, unavailable string) {
	if !rec.Succeeded() {
		r.note(unavailable)
		return
	}

	if !r.embedImage(rec.DataURI) {
		r.note(imageNotRenderable)
	}
}

func (r *pdfRenderer) text(s string) {
	r.pdf.MultiCell(0, lineHeight, cp1252(s), "", "L", false)
}

func (r *pdfRenderer) note(s string) {
	r.pdf.SetFont(fontFamily, "I", 9)
	r.pdf.SetTextColor(110, 110, 110)
	r.pdf.MultiCell(0, lineHeight, cp1252(s), "", "L", false)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.SetFont(fontFamily, "", 10)
}

func (r *pdfRenderer) framed(s string) {
	r.pdf.Ln(1)
	r.pdf.SetDrawColor(150, 150, 150)
	r.pdf.SetFillColor(245, 245, 245)
	r.pdf.SetFont(fontFamily, "I", 9)
	r.pdf.CellFormat(0, 10, cp1252(s), "1", 1, "C", true, 0, "")
	r.pdf.SetFont(fontFamily, "", 10)
	r.pdf.Ln(1)
}

func (r *pdfRenderer) separator() {
	pageW, _ := r.pdf.GetPageSize()
	left, _, right, _ := r.pdf.GetMargins()

	y := r.pdf.GetY() + 2
	r.pdf.SetDrawColor(200, 200, 200)
	r.pdf.Line(left, y, pageW-right, y)
	r.pdf.SetY(y + blockGap)
}

// embedImage places the image below the cursor, breaking the page when it
// does not fit. It reports false when the data cannot be embedded.
func (r *pdfRenderer) embedImage(dataURI string) bool {
	_, data, err := media.DecodeDataURI(dataURI)
	if err != nil || len(data) == 0 {
		return false
	}

	imgType, payload, px, err := normalizeImage(data)
	if err != nil {
		return false
	}

	r.images++
	name := fmt.Sprintf("image-%d", r.images)
	opts := fpdf.ImageOptions{ImageType: imgType}

	r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(payload))

	if r.pdf.Err() {
		r.pdf.ClearError()
		return false
	}

	w, h := fitImage(px)

	_, pageH := r.pdf.GetPageSize()
	left, _, _, bottom := r.pdf.GetMargins()

	if r.pdf.GetY()+h > pageH-bottom {
		r.pdf.AddPage()
	}

	y := r.pdf.GetY() + 1
	r.pdf.ImageOptions(name, left, y, w, h, false, opts, 0, "")
	r.pdf.SetY(y + h + 1)

	return true
}

func (r *pdfRenderer) summary(doc Document) {
	r.pdf.AddPage()

	r.pdf.SetFont(fontFamily, "B", 14)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.CellFormat(0, 10, cp1252(summaryHeading), "", 1, "L", false, 0, "")
	r.pdf.Ln(2)

	r.pdf.SetFont(fontFamily, "", 11)

	lines := []string{
		fmt.Sprintf("Total de mensagens: %d", doc.Counts.Total()),
		fmt.Sprintf("Mensagens de texto: %d", doc.Counts.Text),
		fmt.Sprintf("Áudios transcritos: %d", transcribedAudio(doc.Records)),
		fmt.Sprintf("Imagens: %d", doc.Counts.Image),
		fmt.Sprintf("Arquivos: %d", doc.Counts.File),
		"Data do relatório: " + doc.GeneratedAt.Format(timestampLayout),
	}

	for _, line := range lines {
		r.pdf.CellFormat(0, 7, cp1252(line), "", 1, "L", false, 0, "")
	}
}

func transcribedAudio(records []domain.EnrichedRecord) int {
	n := 0

	for _, rec := range records {
		if rec.Kind == domain.KindAudio && rec.Succeeded() {
			n++
		}
	}

	return n
}

// normalizeImage decodes the image, shrinks it to a bounded pixel size and
// re-encodes it as JPEG or 8-bit PNG, the two formats the PDF writer embeds
// without surprises.
func normalizeImage(data []byte) (string, []byte, image.Point, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, image.Point{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return "", nil, image.Point{}, fmt.Errorf("decode image: empty bounds %v", bounds)
	}

	size := shrink(image.Pt(bounds.Dx(), bounds.Dy()), imageMaxPixels)
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	var buf bytes.Buffer

	if format == "jpeg" {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return "", nil, image.Point{}, fmt.Errorf("encode jpeg: %w", err)
		}

		return "JPG", buf.Bytes(), size, nil
	}

	if err := png.Encode(&buf, dst); err != nil {
		return "", nil, image.Point{}, fmt.Errorf("encode png: %w", err)
	}

	return "PNG", buf.Bytes(), size, nil
}

func shrink(p image.Point, maxSide int) image.Point {
	longest := max(p.X, p.Y)
	if longest <= maxSide {
		return p
	}

	return image.Pt(max(1, p.X*maxSide/longest), max(1, p.Y*maxSide/longest))
}

// fitImage converts pixels to millimetres and scales down into the image box.
func fitImage(px image.Point) (float64, float64) {
	w := float64(px.X) / pixelsPerMM
	h := float64(px.Y) / pixelsPerMM

	scale := min(1, imageMaxWidth/w, imageMaxHeight/h)

	return w * scale, h * scale
}

// cp1252 encodes text for the PDF core fonts. Runes outside Windows-1252
// become '?'.
func cp1252(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}

		b.WriteByte('?')
	}

	return b.String()
}
