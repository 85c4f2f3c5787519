// Package generate turns retrieved statute chunks into cited answers.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexrag/lexrag/internal/llm"
	"github.com/lexrag/lexrag/internal/memory"
	"github.com/lexrag/lexrag/internal/retriever"
)

// systemPrompt frames the model as a Title 18 specialist. Citation
// discipline lives here rather than in post-processing: the model is told
// to cite inline, and ExtractCitations verifies what it produced.
const systemPrompt = `You are an expert legal assistant specializing in U.S. Code Title 18 (Federal Criminal Law).

Your responsibilities:
1. Provide accurate answers about federal crimes, punishments, and legal procedures
2. ALWAYS cite the relevant statute numbers (e.g., "18 U.S.C. § 2113") in your answers
3. When describing crimes, include the elements that must be proven
4. When describing punishments, include minimum and maximum sentences and fines
5. Clarify exceptions and special provisions when relevant
6. If the provided text does not answer the question, say so rather than guessing

Answer with clear, authoritative language and inline statute citations.`

// Answer is a generated response with its verified citations and sources.
type Answer struct {
	Text      string             `json:"answer"`
	Citations []Citation         `json:"citations"`
	Sources   []retriever.Result `json:"sources"`
	Model     string             `json:"model"`
	Fallback  bool               `json:"fallback,omitempty"`
}

// Options configures a Generator.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      *slog.Logger
}

// Generator builds legal prompts from ranked chunks and calls the LLM.
type Generator struct {
	client llm.LLM
	opts   Options
	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(client llm.LLM, opts Options) *Generator {
	if opts.Temperature <= 0 {
		opts.Temperature = llm.DefaultTemperature
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{client: client, opts: opts, logger: opts.Logger}
}

// Answer generates a cited answer to the query from the retrieved chunks,
// with optional conversation history for follow-up questions. When the LLM
// is unreachable it degrades to a fallback answer built from the sources
// themselves, so the chat surface stays usable without a model server.
func (g *Generator) Answer(ctx context.Context, query string, results []retriever.Result, history []memory.Message) *Answer {
	prompt := g.buildPrompt(query, results, history)

	text, err := g.client.Generate(ctx, prompt, g.generateOptions())
	if err != nil {
		g.logger.Error("generation failed, using fallback answer", "error", err)
		return g.fallback(results)
	}

	return &Answer{
		Text:      text,
		Citations: ExtractCitations(text, results),
		Sources:   results,
		Model:     g.opts.Model,
	}
}

// AnswerStream streams the generated answer token by token. The final
// Answer, with citations extracted from the accumulated text, is delivered
// through the done callback after the stream ends.
func (g *Generator) AnswerStream(ctx context.Context, query string, results []retriever.Result, history []memory.Message, done func(*Answer)) (<-chan llm.StreamChunk, error) {
	prompt := g.buildPrompt(query, results, history)

	inner, err := g.client.GenerateStream(ctx, prompt, g.generateOptions())
	if err != nil {
		return nil, fmt.Errorf("starting generation stream: %w", err)
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var full strings.Builder
		for chunk := range inner {
			full.WriteString(chunk.Token)
			out <- chunk
		}
		if done != nil {
			text := full.String()
			done(&Answer{
				Text:      text,
				Citations: ExtractCitations(text, results),
				Sources:   results,
				Model:     g.opts.Model,
			})
		}
	}()
	return out, nil
}

func (g *Generator) generateOptions() llm.GenerateOptions {
	return llm.GenerateOptions{
		Model:        g.opts.Model,
		SystemPrompt: systemPrompt,
		Temperature:  g.opts.Temperature,
		MaxTokens:    g.opts.MaxTokens,
	}
}

// buildPrompt lays out history, statute context, and the question. Scores
// are omitted from the context so they cannot bias the model.
func (g *Generator) buildPrompt(query string, results []retriever.Result, history []memory.Message) string {
	var sb strings.Builder

	if len(history) > 0 {
		sb.WriteString("## Conversation History\n\n")
		sb.WriteString(memory.FormatForPrompt(history))
		sb.WriteString("\n")
	}

	sb.WriteString("## Relevant Legal Text\n\n")
	for i, res := range results {
		sb.WriteString(fmt.Sprintf("[Doc %d]", i+1))
		if res.Chunk.Metadata.Section != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", res.Chunk.Metadata.Section))
		}
		if res.Chunk.Metadata.Page > 0 {
			sb.WriteString(fmt.Sprintf(" (page %d)", res.Chunk.Metadata.Page))
		}
		sb.WriteString("\n")
		sb.WriteString(res.Chunk.Text)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Question\n")
	sb.WriteString(query)
	sb.WriteString("\n\n## Answer (cite specific statute numbers)\n")
	return sb.String()
}

// fallback presents the retrieved text directly when no model is available.
func (g *Generator) fallback(results []retriever.Result) *Answer {
	var sb strings.Builder
	sb.WriteString("Based on the following relevant legal text:\n\n")
	var citations []Citation
	for _, res := range results {
		if section := res.Chunk.Metadata.Section; section != "" {
			sb.WriteString(section)
			sb.WriteString("\n")
			citations = append(citations, Citation{
				Statute: normalizeStatute(section),
				Page:    res.Chunk.Metadata.Page,
			})
		}
		sb.WriteString(res.Chunk.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("For a detailed answer, please consult an attorney.")

	return &Answer{
		Text:      sb.String(),
		Citations: citations,
		Sources:   results,
		Model:     "fallback",
		Fallback:  true,
	}
}
