package output

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roboco-io/chaptermd/internal/assets"
	"github.com/roboco-io/chaptermd/internal/diag"
)

// SchemaVersion is the manifest format version.
const SchemaVersion = "1.0"

//go:embed manifest.schema.json
var manifestSchema []byte

const manifestSchemaURL = "manifest.schema.json"

// ErrInvalidManifest is returned when a manifest does not match its schema.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the machine-readable description of a run.
type Manifest struct {
	SchemaVersion string           `json:"schema_version"`
	Generator     string           `json:"generator"`
	Document      DocumentInfo     `json:"document"`
	Parameters    Parameters       `json:"parameters"`
	Chapters      []ChapterEntry   `json:"chapters"`
	Assets        []assets.Asset   `json:"assets"`
	MissingAssets []assets.Missing `json:"missing_assets"`
	ChapterCount  int              `json:"chapter_count"`
	AssetCount    int              `json:"asset_count"`
	Degraded      bool             `json:"degraded"`
	Diagnostics   []diag.Entry     `json:"diagnostics"`
}

// DocumentInfo identifies the source document.
type DocumentInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
	Format string `json:"format,omitempty"`
	Locale string `json:"locale,omitempty"`
	Author string `json:"author,omitempty"`
}

// Parameters records the options the run was made with.
type Parameters struct {
	SplitLevel     int    `json:"split_level"`
	AssetsDir      string `json:"assets_dir"`
	ChaptersDir    string `json:"chapters_dir"`
	ChapterPattern string `json:"chapter_pattern"`
	FrontMatter    bool   `json:"front_matter"`
	Navigation     bool   `json:"navigation"`
	DryRun         bool   `json:"dry_run"`
	Renderer       string `json:"renderer,omitempty"`
	Fallback       string `json:"fallback,omitempty"`
}

// ChapterEntry describes one chapter file.
type ChapterEntry struct {
	Ordinal  int      `json:"ordinal"`
	File     string   `json:"file"`
	Title    string   `json:"title"`
	Slug     string   `json:"slug"`
	Assets   []string `json:"assets"`
	Renderer string   `json:"renderer,omitempty"`
	Degraded bool     `json:"degraded"`
	Warnings []string `json:"warnings,omitempty"`
	Blocks   int      `json:"blocks"`
}

// BuildManifest assembles the manifest from the run results. Collections
// are never nil so the JSON always carries arrays.
func BuildManifest(doc DocumentInfo, params Parameters, generator string, chapters []ChapterOutput, store *assets.Store, diags []diag.Entry) *Manifest {
	m := &Manifest{
		SchemaVersion: SchemaVersion,
		Generator:     generator,
		Document:      doc,
		Parameters:    params,
		Chapters:      make([]ChapterEntry, 0, len(chapters)),
		Assets:        []assets.Asset{},
		MissingAssets: []assets.Missing{},
		Diagnostics:   []diag.Entry{},
	}
	for _, ch := range chapters {
		entry := ChapterEntry{
			Ordinal:  ch.Ordinal,
			File:     ch.File,
			Title:    ch.Title,
			Slug:     ch.Slug,
			Assets:   ch.Assets,
			Renderer: ch.Renderer,
			Degraded: ch.Degraded,
			Warnings: ch.Warnings,
			Blocks:   ch.Blocks,
		}
		if entry.Assets == nil {
			entry.Assets = []string{}
		}
		m.Degraded = m.Degraded || ch.Degraded
		m.Chapters = append(m.Chapters, entry)
	}
	if store != nil {
		m.Assets = append(m.Assets, store.Assets()...)
		m.MissingAssets = append(m.MissingAssets, store.Missing()...)
	}
	for i := range m.Assets {
		if m.Assets[i].Chapters == nil {
			m.Assets[i].Chapters = []int{}
		}
	}
	m.Diagnostics = append(m.Diagnostics, diags...)
	diag.Sort(m.Diagnostics)
	m.ChapterCount = len(m.Chapters)
	m.AssetCount = len(m.Assets)
	if len(m.MissingAssets) > 0 {
		m.Degraded = true
	}
	return m
}

// Marshal encodes the manifest as indented JSON with a trailing newline.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Chapter returns the entry with the given ordinal.
func (m *Manifest) Chapter(ordinal int) (ChapterEntry, bool) {
	for _, ch := range m.Chapters {
		if ch.Ordinal == ordinal {
			return ch, true
		}
	}
	return ChapterEntry{}, false
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func manifestValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(manifestSchemaURL, bytes.NewReader(manifestSchema)); err != nil {
			schemaErr = fmt.Errorf("add manifest schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(manifestSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateManifest checks encoded manifest JSON against the embedded schema.
func ValidateManifest(data []byte) error {
	schema, err := manifestValidator()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := schema.Validate(payload); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(schemaIssues(verr), "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return nil
}

func schemaIssues(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + err.Message}
	}
	var out []string
	for _, cause := range err.Causes {
		out = append(out, schemaIssues(cause)...)
	}
	return out
}
