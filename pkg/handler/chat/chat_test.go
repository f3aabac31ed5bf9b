package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/finquery/pkg/retry"
)

type countingInvoker struct {
	calls    int
	failures int
	response string
}

func (c *countingInvoker) Invoke(context.Context, string) (string, error) {
	c.calls++
	if c.calls <= c.failures {
		return "", errors.New("unavailable")
	}
	return c.response, nil
}

var fastPolicy = retry.Policy{MaxAttempts: 3}

func TestGreeting(t *testing.T) {
	llm := &countingInvoker{}
	r := New(llm)

	cases := map[int]string{7: "Good morning", 13: "Good afternoon", 22: "Good evening", 3: "Good evening"}
	for hour, want := range cases {
		r.now = func() time.Time { return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC) }
		reply, err := r.Respond(context.Background(), "Xin chào")
		require.NoError(t, err)
		assert.Equal(t, TypeGreeting, reply.Type)
		assert.Contains(t, reply.Message, want)
	}
	assert.Zero(t, llm.calls)
}

func TestGreetingNeedsWordBoundary(t *testing.T) {
	llm := &countingInvoker{response: "Charts need data."}
	reply, err := New(llm, WithRetryPolicy(fastPolicy)).Respond(context.Background(), "this chart is weird")
	require.NoError(t, err)
	assert.Equal(t, TypeConversation, reply.Type)
	assert.Equal(t, 1, llm.calls)
}

func TestHelp(t *testing.T) {
	reply, err := New(&countingInvoker{}).Respond(context.Background(), "What can you do?")
	require.NoError(t, err)
	assert.Equal(t, TypeHelp, reply.Type)
	assert.Contains(t, reply.Message, "DJIA")
}

func TestConversationRetries(t *testing.T) {
	llm := &countingInvoker{failures: 2, response: "  Dividends are payouts.  "}
	reply, err := New(llm, WithRetryPolicy(fastPolicy)).Respond(context.Background(), "Explain dividends")
	require.NoError(t, err)
	assert.Equal(t, TypeConversation, reply.Type)
	assert.Equal(t, "Dividends are payouts.", reply.Message)
	assert.Equal(t, 3, llm.calls)
}

func TestConversationApologizes(t *testing.T) {
	llm := &countingInvoker{failures: 10}
	reply, err := New(llm, WithRetryPolicy(fastPolicy)).Respond(context.Background(), "Explain dividends")
	require.NoError(t, err)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, apology, reply.Message)
	assert.Equal(t, 3, llm.calls)
}
