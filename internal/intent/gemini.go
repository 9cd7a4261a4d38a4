package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

// Module wires the Gemini-backed interpreter.
var Module = fx.Provide(NewGeminiInterpreter)

const classifierPrompt = `You are the intent classifier for a shared shopping-list Slack assistant.
Classify the user's message into exactly one intent by calling the matching function:
- add_item: the user wants a product added. product_ref is a URL, a product description, or a reference to a previously shown candidate (e.g. "the first one"). quantity defaults to 1 only when the user clearly stated it before; otherwise pass 0 so the assistant asks.
- search_products: the user wants product suggestions.
- show_list: the user wants to see the current list.
- delete_item: the user wants an item removed. item_ref is an id ("item 5") or a description.
- no_action: greetings, thanks, or anything unrelated; put a short friendly reply in reply.
If the conversation state shows candidates and the message is just a number or "the second one", that is add_item with the pending selection.`

// GeminiInterpreter classifies messages with Gemini function calling.
type GeminiInterpreter struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiInterpreter builds the interpreter and ties the client to
// the Fx lifecycle.
func NewGeminiInterpreter(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Interpreter, error) {
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

	return &GeminiInterpreter{
		client: client,
		model:  cfg.LLM.Model,
		logger: logger,
	}, nil
}

func classifierTools() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "add_item",
				Description: "Add a product to the shopping list.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"product_ref": {Type: genai.TypeString, Description: "Product URL, description, or reference to a shown candidate."},
						"quantity":    {Type: genai.TypeInteger, Description: "Units requested; 0 when the user has not said yet."},
					},
					Required: []string{"product_ref"},
				},
			},
			{
				Name:        "search_products",
				Description: "Search for product suggestions.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {Type: genai.TypeString, Description: "Free-text product query."},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        "show_list",
				Description: "Show the current shopping list.",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
			{
				Name:        "delete_item",
				Description: "Delete an item from the shopping list.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"item_ref": {Type: genai.TypeString, Description: "Item id or description of the item to delete."},
					},
					Required: []string{"item_ref"},
				},
			},
			{
				Name:        "no_action",
				Description: "The message needs no list operation.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"reply": {Type: genai.TypeString, Description: "Short friendly reply to send back."},
					},
				},
			},
		},
	}}
}

// Interpret sends the message plus a compact rendering of the
// conversation state to the model and maps the returned function call
// onto an Intent.
func (g *GeminiInterpreter) Interpret(ctx context.Context, msg Message, state *State) (Intent, error) {
	model := g.client.GenerativeModel(g.model)
	model.Tools = classifierTools()
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(classifierPrompt)},
	}

	input := fmt.Sprintf("[User: id=%s name=%s]\n%s%s", msg.UserID, msg.UserName, renderState(state), msg.Text)

	res, err := model.GenerateContent(ctx, genai.Text(input))
	if err != nil {
		return Intent{}, errorbank.External("intent classification failed", errorbank.WithCause(err))
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return Intent{Kind: KindNone}, nil
	}

	for _, part := range res.Candidates[0].Content.Parts {
		if call, ok := part.(genai.FunctionCall); ok {
			return intentFromCall(call), nil
		}
	}

	// Plain text means the model chose to just talk.
	if text, ok := res.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return Intent{Kind: KindNone, Reply: strings.TrimSpace(string(text))}, nil
	}
	return Intent{Kind: KindNone}, nil
}

func intentFromCall(call genai.FunctionCall) Intent {
	switch call.Name {
	case "add_item":
		return Intent{
			Kind:       KindAddItem,
			ProductRef: argString(call.Args, "product_ref"),
			Quantity:   argInt(call.Args, "quantity"),
		}
	case "search_products":
		return Intent{Kind: KindSearch, Query: argString(call.Args, "query")}
	case "show_list":
		return Intent{Kind: KindShowList}
	case "delete_item":
		return Intent{Kind: KindDeleteItem, ItemRef: argString(call.Args, "item_ref")}
	default:
		return Intent{Kind: KindNone, Reply: argString(call.Args, "reply")}
	}
}

func renderState(state *State) string {
	if state == nil || (len(state.Candidates) == 0 && state.Chosen == nil) {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("[Conversation state]\n")
	if state.Chosen != nil {
		fmt.Fprintf(&sb, "chosen product awaiting quantity: %s\n", state.Chosen.Title)
	}
	for i, c := range state.Candidates {
		fmt.Fprintf(&sb, "candidate %d: %s\n", i+1, c.Title)
	}
	sb.WriteString("[End state]\n")
	return sb.String()
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
