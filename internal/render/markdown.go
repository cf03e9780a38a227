// Package render turns a finished response set into the downloadable
// proposal artifact. The only implementation writes markdown through an
// afero filesystem so tests and embedders can run fully in memory.
package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/petrijr/resposta/pkg/api"
)

// reviewNoteThreshold marks answers that get an inline review note in
// the rendered document.
const reviewNoteThreshold = 0.5

// MarkdownRenderer writes one .md artifact per workflow under dir.
type MarkdownRenderer struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

var _ api.DocumentRenderer = (*MarkdownRenderer)(nil)

// NewMarkdownRenderer creates a renderer writing to dir on fs.
func NewMarkdownRenderer(fs afero.Fs, dir string) *MarkdownRenderer {
	return &MarkdownRenderer{fs: fs, dir: dir, now: time.Now}
}

// Render writes the artifact for in and returns its path, named
// <workflow-id>.md under the renderer's directory.
func (r *MarkdownRenderer) Render(ctx context.Context, in api.RenderInput) (string, error) {
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	var content string
	if in.Pipeline == api.PipelineQuickProposal {
		content = r.quickProposal(in)
	} else {
		content = r.rfpResponse(in)
	}

	path := filepath.Join(r.dir, in.WorkflowID+".md")
	if err := afero.WriteFile(r.fs, path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// ReadArtifact returns the artifact bytes at path.
func (r *MarkdownRenderer) ReadArtifact(ctx context.Context, path string) ([]byte, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (r *MarkdownRenderer) rfpResponse(in api.RenderInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# RFP Response Document\n\n")
	fmt.Fprintf(&b, "Client: %s  \n", in.ClientName)
	fmt.Fprintf(&b, "Date: %s  \n", r.now().Format("January 2, 2006"))
	fmt.Fprintf(&b, "Reference: %s\n\n", in.WorkflowID)
	b.WriteString("---\n")

	if in.Review != nil {
		b.WriteString("\n## Review Summary\n\n")
		fmt.Fprintf(&b, "- Overall quality: %s\n", in.Review.OverallQuality)
		fmt.Fprintf(&b, "- Completeness: %.2f\n", in.Review.CompletenessScore)
		fmt.Fprintf(&b, "- Confidence bands (high/medium/low): %d/%d/%d\n",
			in.Review.HighConfidenceCount, in.Review.MediumConfidenceCount, in.Review.LowConfidenceCount)
		for _, issue := range in.Review.Issues {
			fmt.Fprintf(&b, "- Issue: %s\n", issue)
		}
		b.WriteString("\n---\n")
	}

	for i, resp := range in.Responses {
		fmt.Fprintf(&b, "\n### Question %d\n\n", i+1)
		fmt.Fprintf(&b, "%s\n\n", resp.Question)
		b.WriteString("**Answer:**\n\n")
		fmt.Fprintf(&b, "%s\n", resp.AnswerText)
		if resp.Confidence < reviewNoteThreshold {
			b.WriteString("\n*(Note: This answer may require additional review)*\n")
		}
		b.WriteString("\n---\n")
	}

	return b.String()
}

func (r *MarkdownRenderer) quickProposal(in api.RenderInput) string {
	var b strings.Builder

	industry := in.Industry
	if industry == "" {
		industry = "N/A"
	}

	fmt.Fprintf(&b, "# Sales Proposal\n\n")
	fmt.Fprintf(&b, "Client: %s  \n", in.ClientName)
	fmt.Fprintf(&b, "Industry: %s  \n", industry)
	fmt.Fprintf(&b, "Date: %s\n", r.now().Format("January 2, 2006"))

	for _, resp := range in.Responses {
		fmt.Fprintf(&b, "\n## %s\n\n", resp.Question)
		fmt.Fprintf(&b, "%s\n", resp.AnswerText)
	}

	b.WriteString("\n---\n\n## Next Steps\n\n")
	b.WriteString("1. Review this proposal\n")
	b.WriteString("2. Schedule a discovery call\n")
	b.WriteString("3. Discuss customization options\n")
	b.WriteString("4. Finalize agreement\n")
	b.WriteString("\nContact us to move forward!\n")

	return b.String()
}
