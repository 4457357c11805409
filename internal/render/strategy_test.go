package render

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/llm"
	"github.com/roboco-io/chaptermd/internal/split"
)

func sampleChapter() *split.Chapter {
	return &split.Chapter{
		Ordinal: 1,
		Title:   "Intro",
		Blocks: []ir.Block{
			ir.NewHeading(1, "Intro").Block(),
			ir.NewParagraphInlines(ir.Text("a < b "), ir.Strong(ir.Text("x"))).Block(),
			(&ir.ImageBlock{Path: "../assets/a.png", Alt: "A"}).Block(),
		},
	}
}

func TestHTML_Render(t *testing.T) {
	got, err := NewHTML().Render(context.Background(), sampleChapter())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<h1>Intro</h1>\n<p>a &lt; b <strong>x</strong></p>\n<img src=\"../assets/a.png\" alt=\"A\"/>\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestHTML_TableWithHeader(t *testing.T) {
	table := ir.NewTableFromRows([][]string{{"H"}, {"v"}})
	table.SetHeaderRow()
	ch := &split.Chapter{Blocks: []ir.Block{table.Block()}}

	got, _ := NewHTML().Render(context.Background(), ch)
	want := "<table><thead><tr><th>H</th></tr></thead><tbody><tr><td>v</td></tr></tbody></table>\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDryRun_EmitsIntermediateText(t *testing.T) {
	ch := sampleChapter()
	dry, _ := NewDryRun().Render(context.Background(), ch)
	fragment, _ := NewHTML().Render(context.Background(), ch)
	if dry != fragment {
		t.Errorf("expected dry run to pass the intermediate text through")
	}
}

type stubRenderer struct {
	name string
	out  string
	err  error
}

func (s *stubRenderer) Name() string { return s.name }
func (s *stubRenderer) Render(ctx context.Context, ch *split.Chapter) (string, error) {
	return s.out, s.err
}

func TestWithFallback(t *testing.T) {
	primaryErr := errors.New("model unavailable")
	var reported []int

	r := WithFallback(
		&stubRenderer{name: "llm:fake", err: primaryErr},
		&stubRenderer{name: "markdown", out: "# Intro\n"},
		func(ch *split.Chapter, err error) {
			if !errors.Is(err, primaryErr) {
				t.Errorf("unexpected fallback cause %v", err)
			}
			reported = append(reported, ch.Ordinal)
		},
	)

	out, err := r.Render(context.Background(), sampleChapter())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "# Intro\n" {
		t.Errorf("expected secondary output, got %q", out)
	}
	if len(reported) != 1 || reported[0] != 1 {
		t.Errorf("expected fallback reported for chapter 1, got %v", reported)
	}
	if r.Name() != "llm:fake" {
		t.Errorf("expected primary name, got %s", r.Name())
	}
}

func TestWithFallback_CancellationIsNotDegradation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false

	r := WithFallback(
		&stubRenderer{name: "p", err: context.Canceled},
		&stubRenderer{name: "s", out: "x"},
		func(*split.Chapter, error) { called = true },
	)

	if _, err := r.Render(ctx, sampleChapter()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("expected no fallback on cancellation")
	}
}

type fakeProvider struct {
	responses []string
	errs      []error
	requests  []llm.FormatRequest
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Validate() error { return nil }
func (f *fakeProvider) Format(ctx context.Context, req llm.FormatRequest) (*llm.FormatResult, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &llm.FormatResult{
		Markdown: f.responses[i],
		Model:    "fake-1",
		Usage:    llm.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

func newTestLLM(p llm.Provider) *LLM {
	r := NewLLM(p, llm.FormatOptions{Language: "en"}, nil)
	r.Wait = func(int) time.Duration { return 0 }
	return r
}

func TestLLM_Render(t *testing.T) {
	p := &fakeProvider{responses: []string{"# Intro\n\nFormatted."}}
	r := newTestLLM(p)

	out, err := r.Render(context.Background(), sampleChapter())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "# Intro\n\nFormatted.\n" {
		t.Errorf("unexpected output %q", out)
	}
	if len(p.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(p.requests))
	}
	req := p.requests[0]
	if req.Title != "Intro" || !strings.Contains(req.Content, "<h1>Intro</h1>") {
		t.Errorf("unexpected request %+v", req)
	}
	if req.Options.Prompt != llm.DefaultPrompt {
		t.Error("expected default prompt")
	}
	if r.Usage().TotalTokens != 15 {
		t.Errorf("expected usage 15, got %d", r.Usage().TotalTokens)
	}
}

func TestLLM_RetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{
		responses: []string{"", "", "ok"},
		errs:      []error{&llm.RetryableError{StatusCode: 429}, &llm.RetryableError{StatusCode: 503}},
	}

	out, err := newTestLLM(p).Render(context.Background(), sampleChapter())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok\n" || len(p.requests) != 3 {
		t.Errorf("expected success on third call, got %q after %d calls", out, len(p.requests))
	}
}

func TestLLM_Failures(t *testing.T) {
	permanent := errors.New("invalid api key")
	p := &fakeProvider{errs: []error{permanent}}
	if _, err := newTestLLM(p).Render(context.Background(), sampleChapter()); !errors.Is(err, permanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if len(p.requests) != 1 {
		t.Errorf("expected no retry for permanent error, got %d calls", len(p.requests))
	}

	empty := &fakeProvider{responses: []string{"   "}}
	if _, err := newTestLLM(empty).Render(context.Background(), sampleChapter()); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}
