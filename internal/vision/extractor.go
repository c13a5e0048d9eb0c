// Package vision extracts structured fields from photos of identity and
// vehicle documents.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/gemini"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	ErrUnknownKind   = errors.New("unknown_document_kind")
	ErrInvalidImage  = errors.New("invalid_image")
	ErrImageDownload = errors.New("image_download_failed")
	ErrExtraction    = errors.New("extraction_failed")
)

const maxImageBytes = 10 << 20

// Extraction is the outcome of one analysis. Recognized is false when the
// image is not the requested document; Fields is then empty.
type Extraction struct {
	Kind       Kind              `json:"kind"`
	Recognized bool              `json:"recognized"`
	Fields     map[string]string `json:"fields,omitempty"`
	Message    string            `json:"message"`
}

type Extractor interface {
	Extract(ctx context.Context, kind Kind, imageURL string) (Extraction, error)
}

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	Generator gemini.Generator
}

type GeminiExtractor struct {
	generator gemini.Generator
	model     string
	http      *http.Client
	log       *zap.Logger
}

func New(p Params) Extractor {
	return NewGeminiExtractor(p.Generator, p.Cfg.Gemini.VisionModel, p.Cfg.Gemini.Timeout, p.Log)
}

func NewGeminiExtractor(generator gemini.Generator, model string, timeout time.Duration, log *zap.Logger) *GeminiExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash-exp"
	}
	return &GeminiExtractor{
		generator: generator,
		model:     model,
		http:      &http.Client{Timeout: timeout},
		log:       log.Named("vision"),
	}
}

func (e *GeminiExtractor) Extract(ctx context.Context, kind Kind, imageURL string) (Extraction, error) {
	doc, ok := documents[kind]
	if !ok {
		return Extraction{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	data, mimeType, err := e.download(ctx, imageURL)
	if err != nil {
		return Extraction{}, err
	}

	resp, err := e.generator.GenerateContent(ctx, e.model,
		[]*genai.Content{{
			Role: string(genai.RoleUser),
			Parts: []*genai.Part{
				genai.NewPartFromBytes(data, mimeType),
				genai.NewPartFromText("Analyse ce document."),
			},
		}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(doc.instruction)}},
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema(doc),
		},
	)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return decode(kind, doc, gemini.Text(resp))
}

func decode(kind Kind, doc document, raw string) (Extraction, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Extraction{}, fmt.Errorf("%w: empty response", ErrExtraction)
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	out := Extraction{Kind: kind}
	if match, ok := values[matchField].(bool); !ok || !match {
		out.Message = fmt.Sprintf("Cette image ne semble pas être une %s. Merci d'envoyer une photo lisible du document.", doc.label)
		return out, nil
	}

	out.Recognized = true
	out.Fields = make(map[string]string, len(doc.fields))
	for _, f := range doc.fields {
		v, ok := values[f.name]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" || strings.EqualFold(s, notPresent) {
			continue
		}
		out.Fields[f.name] = s
	}
	out.Message = "Informations extraites avec succès"
	return out, nil
}

func (e *GeminiExtractor) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	u, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidImage, imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: http %d", ErrImageDownload, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageDownload, err)
	}
	if len(data) == 0 || len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("%w: image size %d bytes", ErrInvalidImage, len(data))
	}

	mimeType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		return nil, "", fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, mimeType)
	}
	e.log.Debug("image downloaded", zap.String("mime_type", mimeType), zap.Int("bytes", len(data)))
	return data, mimeType, nil
}
