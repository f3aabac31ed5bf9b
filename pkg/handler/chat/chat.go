// Package chat answers greetings, help requests and small talk.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/zen-systems/finquery/pkg/adapter"
	"github.com/zen-systems/finquery/pkg/handler"
	"github.com/zen-systems/finquery/pkg/retry"
)

// Reply types.
const (
	TypeGreeting     = "greeting"
	TypeHelp         = "help"
	TypeConversation = "conversation"
	TypeError        = "error"
)

const apology = "Sorry, I am having technical difficulties right now. Please try again later."

const helpMessage = `I can help you:
1. Search the web for the latest financial news about companies
2. Look up stock prices and market data
3. Query the database of DJIA companies and their price history
4. Chart stock market data
5. Answer general questions about finance and investing

You can ask things like:
- "What was Apple's closing price yesterday?"
- "Latest news about Boeing"
- "Information about Microsoft"
- "Plot the closing prices of AAPL and MSFT in 2023"`

var greetings = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
	"xin chào", "chào", "alo",
}

var helpRequests = []string{
	"who are you", "what can you do", "help me", "help", "how do i", "capabilities",
}

// Responder implements handler.Conversation.
type Responder struct {
	llm    adapter.Invoker
	policy retry.Policy
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Responder.
type Option func(*Responder)

// WithRetryPolicy sets the retry policy for model calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Responder) {
		r.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a conversational responder.
func New(llm adapter.Invoker, opts ...Option) *Responder {
	r := &Responder{
		llm:    llm,
		policy: retry.DefaultPolicy(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond answers message. Greetings and help requests get canned replies;
// anything else goes to the model. A model failure yields an apology with
// type "error" rather than an error.
func (r *Responder) Respond(ctx context.Context, message string) (*handler.Reply, error) {
	if reply := r.standardReply(message); reply != nil {
		return reply, nil
	}

	prompt := buildPrompt(message)
	text, err := retry.Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.llm.Invoke(ctx, prompt)
	}, retry.WithOnRetry(func(attempt int, err error) {
		r.logger.Warn("conversation reply failed, retrying", "attempt", attempt, "error", err)
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Error("conversation reply failed", "error", err)
		return &handler.Reply{Type: TypeError, Message: apology}, nil
	}
	return &handler.Reply{Type: TypeConversation, Message: strings.TrimSpace(text)}, nil
}

func (r *Responder) standardReply(message string) *handler.Reply {
	normalized := normalize(message)
	switch {
	case containsPhrase(normalized, greetings):
		return &handler.Reply{
			Type: TypeGreeting,
			Message: fmt.Sprintf("%s! I am a financial information assistant. "+
				"I can help with company information, stock prices or financial news.", timeOfDayGreeting(r.now())),
		}
	case containsPhrase(normalized, helpRequests):
		return &handler.Reply{Type: TypeHelp, Message: helpMessage}
	default:
		return nil
	}
}

func timeOfDayGreeting(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "Good morning"
	case h >= 12 && h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

// normalize lowercases message and collapses punctuation to single spaces so
// phrases match on word boundaries.
func normalize(message string) string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	return " " + strings.Join(fields, " ") + " "
}

func containsPhrase(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(normalized, " "+p+" ") {
			return true
		}
	}
	return false
}

func buildPrompt(message string) string {
	return "You are a financial information assistant. Reply politely, professionally and to the point.\n\n" +
		"User message:\n" + message + "\n\nYour reply (friendly but professional):"
}
