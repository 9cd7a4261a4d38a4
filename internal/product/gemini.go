package product

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

// Module wires the Gemini-backed product lookup.
var Module = fx.Provide(NewGeminiLookup)

const searchPrompt = `You are a product search assistant for a shared shopping list.
Find up to 3 product options matching the user's query, preferring items sold at major US retailers.
Respond with ONLY a JSON array, no prose, where each element has:
  "title": product name (string, required)
  "price": approximate unit price as a number, or null if unknown
  "url": an absolute https product page URL, or null if unsure
  "image_url": a direct product image URL, or null
Return [] if nothing relevant exists.`

// GeminiLookup implements Lookup on top of the hosted Gemini model.
type GeminiLookup struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiLookup builds the lookup and ties the client to the Fx
// lifecycle.
func NewGeminiLookup(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Lookup, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.LLM.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return &GeminiLookup{
		client: client,
		model:  cfg.LLM.Model,
		logger: logger,
	}, nil
}

// Search asks the model for candidates and keeps only verifiable ones.
func (g *GeminiLookup) Search(ctx context.Context, query string) ([]Candidate, error) {
	model := g.client.GenerativeModel(g.model)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(searchPrompt)},
	}

	res, err := model.GenerateContent(ctx, genai.Text("Find products for: "+query))
	if err != nil {
		return nil, errorbank.External("product search failed", errorbank.WithCause(err))
	}

	raw := collectText(res)
	if raw == "" {
		return nil, ErrNotFound
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		g.logger.Warn("unparseable product search response", zap.String("query", query), zap.Error(err))
		return nil, ErrNotFound
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	g.logger.Info("product search completed", zap.String("query", query), zap.Int("candidates", len(candidates)))
	return candidates, nil
}

func collectText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}

type rawCandidate struct {
	Title    string   `json:"title"`
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	URL      string   `json:"url"`
	ImageURL string   `json:"image_url"`
}

// parseCandidates decodes the model's JSON list and drops entries that
// fail validation rather than propagating them.
func parseCandidates(raw string) ([]Candidate, error) {
	raw = stripFences(raw)

	var rows []rawCandidate
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		// Some models wrap the list in an object.
		var wrapped map[string][]rawCandidate
		if err2 := json.Unmarshal([]byte(raw), &wrapped); err2 != nil {
			return nil, err
		}
		for _, v := range wrapped {
			rows = v
			break
		}
	}

	var out []Candidate
	for _, row := range rows {
		title := strings.TrimSpace(row.Title)
		if title == "" {
			title = strings.TrimSpace(row.Name)
		}
		if title == "" {
			continue
		}

		c := Candidate{Title: title}
		if row.Price != nil && *row.Price >= 0 {
			c.Price = row.Price
		}
		if isAbsoluteURL(row.URL) {
			c.CanonicalURL = row.URL
		}
		if isAbsoluteURL(row.ImageURL) {
			c.ImageURL = row.ImageURL
		}
		out = append(out, c)
	}
	return out, nil
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

func isAbsoluteURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
