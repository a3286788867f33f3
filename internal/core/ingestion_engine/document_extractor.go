package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"code.sajari.com/docconv"
	"github.com/PuerkitoBio/goquery"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
)

// Extraction methods recorded on the document.
const (
	ExtractedFromStoredText = "stored_text"
	ExtractedFromPDF        = "docconv_pdf"
	ExtractedFromURL        = "html_fetch"
)

// ExtractResult is the raw text pulled out of a source, plus the pointers
// the pipeline persists on success.
type ExtractResult struct {
	Text            string
	Source          string
	CharCount       int
	SnapshotPointer string
	StoragePointer  string
}

// DocumentExtractor produces raw text for each supported source kind.
type DocumentExtractor struct {
	obj        core.ObjectClient
	httpClient *http.Client
	cfg        *IngestConfig
	log        *logger.Logger

	// pdfToText is swappable so tests do not depend on the pdftotext
	// binary docconv shells out to.
	pdfToText func(raw []byte) (string, error)
}

func NewDocumentExtractor(obj core.ObjectClient, cfg *IngestConfig, log *logger.Logger) *DocumentExtractor {
	return &DocumentExtractor{
		obj:        obj,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		cfg:        cfg,
		log:        log.With("component", "DocumentExtractor"),
		pdfToText:  docconvPDFToText,
	}
}

func docconvPDFToText(raw []byte) (string, error) {
	converted, err := docconv.Convert(bytes.NewReader(raw), "application/pdf", false)
	if err != nil {
		return "", err
	}
	return converted.Body, nil
}

// Extract dispatches on the document's source type and returns its raw text,
// or a classified error.
func (e *DocumentExtractor) Extract(ctx context.Context, doc *models.Document) (*ExtractResult, error) {
	var (
		res *ExtractResult
		err error
	)
	switch doc.SourceType {
	case models.SourceStoredText:
		res, err = e.extractStoredText(ctx, doc)
	case models.SourceStoredPDF:
		res, err = e.extractStoredPDF(ctx, doc)
	case models.SourceFetchedURL:
		res, err = e.extractFetchedURL(ctx, doc)
	default:
		return nil, core.NewError(core.CodeUnsupportedSource, "unsupported source type %q", doc.SourceType)
	}
	if err != nil {
		return nil, err
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return nil, core.NewError(core.CodeProcessing, "extraction produced no text for document %s", doc.ID)
	}
	res.CharCount = len(res.Text)
	return res, nil
}

func (e *DocumentExtractor) extractStoredText(ctx context.Context, doc *models.Document) (*ExtractResult, error) {
	raw, err := e.obj.GetFile(ctx, e.cfg.Bucket, doc.StoragePointer)
	if err != nil {
		return nil, core.WrapError(core.CodeProcessing, fmt.Errorf("read stored text: %w", err))
	}
	return &ExtractResult{Text: string(raw), Source: ExtractedFromStoredText}, nil
}

func (e *DocumentExtractor) extractStoredPDF(ctx context.Context, doc *models.Document) (*ExtractResult, error) {
	raw, err := e.obj.GetFile(ctx, e.cfg.Bucket, doc.StoragePointer)
	if err != nil {
		return nil, core.WrapError(core.CodeProcessing, fmt.Errorf("read stored pdf: %w", err))
	}

	body, err := e.pdfToText(raw)
	if err != nil {
		return nil, core.WrapError(core.CodeProcessing, fmt.Errorf("pdf convert: %w", err))
	}

	text := strings.TrimSpace(body)
	if len(text) < e.cfg.MinExtractedChars {
		// Heuristic for image-only or corrupted PDFs: nothing usable came out.
		return nil, core.NewError(core.CodePDFExtraction,
			"pdf text extraction yielded %d chars (minimum %d)", len(text), e.cfg.MinExtractedChars)
	}
	return &ExtractResult{Text: text, Source: ExtractedFromPDF}, nil
}

func (e *DocumentExtractor) extractFetchedURL(ctx context.Context, doc *models.Document) (*ExtractResult, error) {
	if doc.SourceURL == "" {
		return nil, core.NewError(core.CodeConfiguration, "document %s has source type %s but no source_url", doc.ID, doc.SourceType)
	}

	html, err := e.fetch(ctx, doc.SourceURL)
	if err != nil {
		return nil, err
	}

	text, err := htmlToText(html)
	if err != nil {
		return nil, core.WrapError(core.CodeProcessing, fmt.Errorf("parse html: %w", err))
	}

	res := &ExtractResult{Text: text, Source: ExtractedFromURL}

	// Snapshot persistence is best effort: a failed upload is logged, not
	// escalated.
	htmlKey := fmt.Sprintf("snapshots/%s.html", doc.ID)
	textKey := fmt.Sprintf("snapshots/%s.txt", doc.ID)
	if err := e.obj.UploadFile(ctx, e.cfg.Bucket, htmlKey, html, "text/html"); err != nil {
		e.log.Warn("html snapshot upload failed", "doc_id", doc.ID, "error", err)
	} else if err := e.obj.UploadFile(ctx, e.cfg.Bucket, textKey, []byte(text), "text/plain"); err != nil {
		e.log.Warn("text snapshot upload failed", "doc_id", doc.ID, "error", err)
	} else {
		res.SnapshotPointer = textKey
		if doc.StoragePointer == "" {
			res.StoragePointer = textKey
		}
	}

	return res, nil
}

func (e *DocumentExtractor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.CodeConfiguration, fmt.Errorf("build request for %s: %w", url, err))
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return buf.Bytes(), nil
}

// htmlToText strips chrome and boilerplate elements and flattens the rest to
// whitespace-normalized text.
func htmlToText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, nav, header, footer").Remove()

	root := doc.Find("body")
	text := root.Text()
	if root.Length() == 0 {
		text = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
