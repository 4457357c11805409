// Package upstage provides a document parser using Upstage Document Parse
// API. It is the layout-analysis route for scanned or image-heavy PDFs whose
// text layer is missing or unreliable.
package upstage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/llm"
	"github.com/roboco-io/chaptermd/internal/parser"
)

const (
	// DefaultBaseURL is the default Upstage API endpoint.
	DefaultBaseURL = "https://api.upstage.ai/v1/document-ai/document-parse"
	// DefaultModel is the default document parse model.
	DefaultModel = "document-parse"
	// ProviderName is the parser identifier.
	ProviderName = "upstage"
	// EnvAPIKey is read when Config.APIKey is empty.
	EnvAPIKey = "UPSTAGE_API_KEY"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("Upstage API key not configured (set " + EnvAPIKey + " or provide via config)")

// Config holds the configuration for the Upstage parser.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retries int
}

// Parser implements the document parser using Upstage Document Parse API.
type Parser struct {
	apiKey  string
	baseURL string
	model   string
	retries int
	client  *http.Client
	backoff func(int) time.Duration
}

// APIResponse represents the response from Upstage Document Parse API.
type APIResponse struct {
	API      string    `json:"api"`
	Model    string    `json:"model"`
	Content  Content   `json:"content"`
	Elements []Element `json:"elements"`
	Usage    struct {
		Pages int `json:"pages"`
	} `json:"usage"`
}

// Content holds one element's content in the requested formats.
type Content struct {
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
	Text     string `json:"text"`
}

// Element represents a parsed document element.
type Element struct {
	ID             int     `json:"id"`
	Category       string  `json:"category"`
	Page           int     `json:"page"`
	Content        Content `json:"content"`
	Base64Encoding string  `json:"base64_encoding,omitempty"`
}

// New creates a new Upstage document parser.
func New(cfg Config) (*Parser, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(EnvAPIKey)
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 180 * time.Second // 3 minutes for large documents
	}

	retries := cfg.Retries
	if retries <= 0 {
		retries = llm.MaxRetries
	}

	return &Parser{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		retries: retries,
		client:  &http.Client{Timeout: timeout},
		backoff: llm.Backoff,
	}, nil
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return ProviderName
}

// Open binds the parser to one file so it satisfies parser.Parser.
func (p *Parser) Open(ctx context.Context, path string) parser.Parser {
	return &fileParser{ctx: ctx, api: p, path: path}
}

type fileParser struct {
	ctx  context.Context
	api  *Parser
	path string
}

func (f *fileParser) Parse() (*ir.Document, error) { return f.api.Parse(f.ctx, f.path) }
func (f *fileParser) Close() error                 { return nil }

// Parse sends the document at filePath to the API and converts the
// returned elements to an IR document.
func (p *Parser) Parse(ctx context.Context, filePath string) (*ir.Document, error) {
	resp, err := p.Request(ctx, filePath)
	if err != nil {
		return nil, err
	}
	doc := ToIR(resp)
	doc.Metadata.Source = filepath.Base(filePath)
	doc.Metadata.Format = parser.DetectFormat(filePath).String()
	return doc, nil
}

// Request uploads the file and returns the raw API response. Transient
// failures are retried with backoff.
func (p *Parser) Request(ctx context.Context, filePath string) (*APIResponse, error) {
	body, contentType, err := p.form(filePath)
	if err != nil {
		return nil, err
	}
	return llm.Retry(ctx, p.retries, p.backoff, func() (*APIResponse, error) {
		return p.send(ctx, body, contentType)
	})
}

// form builds the multipart request body.
func (p *Parser) form(filePath string) ([]byte, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"model", p.model},
		{"output_formats", `["html", "markdown", "text"]`},
		{"base64_encoding", `["figure"]`},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write %s field: %w", f[0], err)
		}
	}

	part, err := writer.CreateFormFile("document", filepath.Base(filePath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (p *Parser) send(ctx context.Context, body []byte, contentType string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, llm.Classify(fmt.Errorf("API request failed: %w", err), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, llm.Classify(fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data)), resp.StatusCode)
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}
	return &apiResp, nil
}

// ToIR converts an API response to an IR document. Page headers and
// footers are dropped; captions attach to the preceding figure or table.
func ToIR(resp *APIResponse) *ir.Document {
	doc := ir.NewDocument()
	var last *ir.Block

	add := func(b ir.Block) {
		doc.Append(b)
		last = &doc.Content[len(doc.Content)-1]
	}

	for _, elem := range resp.Elements {
		text := strings.TrimSpace(elem.Content.Text)
		switch elem.Category {
		case "header", "footer":
			continue

		case "heading1", "heading2", "heading3", "heading4", "heading5", "heading6":
			level, _ := strconv.Atoi(strings.TrimPrefix(elem.Category, "heading"))
			if text != "" {
				add(ir.NewHeading(level, text).Block())
			}

		case "caption":
			if last != nil && attachCaption(last, text) {
				continue
			}
			if text != "" {
				add(ir.NewParagraph(text).Block())
			}

		case "table":
			if table := ParseHTMLTable(elem.Content.HTML); table != nil {
				add(table.Block())
			} else if text != "" {
				add(ir.NewParagraph(text).Block())
			}

		case "list", "index":
			if list := parseList(elem.Content.Markdown, elem.Content.Text); list != nil {
				add(list.Block())
			}

		case "figure", "chart":
			img := figure(elem)
			if img == nil {
				if text != "" {
					add(ir.NewParagraph(text).Block())
				}
				continue
			}
			doc.AddResource(img.Ref)
			add(img.Block())

		case "equation":
			if text != "" {
				add(ir.NewCode(text, "latex").Block())
			}

		default:
			if text != "" {
				add(ir.NewParagraph(text).Block())
			}
		}
	}

	if len(doc.Content) > 0 && doc.Content[0].Type == ir.BlockTypeHeading {
		doc.Metadata.Title = doc.Content[0].Heading.Text()
	}
	return doc
}

func attachCaption(b *ir.Block, text string) bool {
	if text == "" {
		return false
	}
	switch {
	case b.Type == ir.BlockTypeImage && b.Image.Caption == "":
		b.Image.Caption = text
		return true
	case b.Type == ir.BlockTypeTable && b.Table.Caption == "":
		b.Table.Caption = text
		return true
	}
	return false
}

// figure decodes the cropped figure image returned for base64_encoding.
func figure(elem Element) *ir.ImageBlock {
	if elem.Base64Encoding == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(elem.Base64Encoding)
	if err != nil {
		data = nil
	}
	ref := ir.NewResource(fmt.Sprintf("upstage:%s-%d", elem.Category, elem.ID), "", data)
	img := ir.NewImage(ref)
	img.Alt = strings.TrimSpace(elem.Content.Text)
	return img
}

// parseList parses list content to IR list.
func parseList(markdown, text string) *ir.ListBlock {
	content := markdown
	if content == "" {
		content = text
	}
	if content == "" {
		return nil
	}

	lines := strings.Split(content, "\n")

	// Determine if ordered or unordered
	firstLine := strings.TrimSpace(lines[0])
	isOrdered := len(firstLine) > 0 && (firstLine[0] >= '0' && firstLine[0] <= '9')

	var list *ir.ListBlock
	if isOrdered {
		list = ir.NewOrderedList()
	} else {
		list = ir.NewUnorderedList()
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Remove list markers
		line = strings.TrimLeft(line, "0123456789.-*+•) ")
		if line != "" {
			list.AddItem(line)
		}
	}

	if list.IsEmpty() {
		return nil
	}
	return list
}
