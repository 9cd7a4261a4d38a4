package intent

import "context"

// Kind enumerates what a user message asks the assistant to do.
type Kind string

const (
	KindAddItem    Kind = "add_item"
	KindSearch     Kind = "search"
	KindShowList   Kind = "show_list"
	KindDeleteItem Kind = "delete_item"
	KindNone       Kind = "none"
)

// Intent is the classified meaning of one chat message. The core
// trusts this classification; it performs no language understanding of
// its own.
type Intent struct {
	Kind Kind

	// AddItem: a product URL, a description, or a selection from the
	// pending candidates in conversation state, plus a quantity.
	ProductRef string
	Quantity   int

	// Search: the free-text product query.
	Query string

	// DeleteItem: an item id or description.
	ItemRef string

	// None: optional conversational reply to relay back.
	Reply string
}

// Message is one inbound chat message with its sender identity.
type Message struct {
	Text     string
	UserID   string
	UserName string
	Channel  string
	ThreadTS string
}

// Interpreter maps free-text messages onto intents, given the keyed
// conversation state for the thread.
type Interpreter interface {
	Interpret(ctx context.Context, msg Message, state *State) (Intent, error)
}
