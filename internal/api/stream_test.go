package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseHandler(t *testing.T, query string, events []string, hold bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathChatStream, r.URL.Path)
		assert.Equal(t, query, r.URL.Query().Get("q"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprint(w, ev)
			flusher.Flush()
		}
		if hold {
			<-r.Context().Done()
		}
	}
}

func TestStreamChat_ClosesOnFirstEvent(t *testing.T) {
	h := sseHandler(t, "매출 추이", []string{"data: first chunk\n\n", "data: second chunk\n\n"}, true)
	c, _ := newTestClient(t, h, func(cfg *Config) { cfg.CloseOnFirstEvent = true })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	answer, err := c.StreamChat(ctx, "매출 추이")
	require.NoError(t, err)
	assert.Equal(t, "first chunk", answer)
}

func TestStreamChat_AccumulatesUntilDone(t *testing.T) {
	h := sseHandler(t, "q", []string{
		": keep-alive\n\n",
		"data: Hel\n\n",
		"event: token\ndata: lo\n\n",
		"data: [DONE]\n\n",
	}, true)
	c, _ := newTestClient(t, h)

	var seen []string
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	answer, err := c.StreamChatFunc(ctx, "q", func(d string) { seen = append(seen, d) })
	require.NoError(t, err)
	assert.Equal(t, "Hello", answer)
	assert.Equal(t, []string{"Hel", "lo"}, seen)
}

func TestStreamChat_AccumulatesUntilEOF(t *testing.T) {
	c, _ := newTestClient(t, sseHandler(t, "q", []string{"data: a\n\n", "data: b"}, false))

	answer, err := c.StreamChat(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ab", answer)
}

func TestStreamChat_HTTPError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stream unavailable", http.StatusBadGateway)
	}), func(cfg *Config) { cfg.CloseOnFirstEvent = true })

	answer, err := c.StreamChat(context.Background(), "q")
	require.Error(t, err)
	assert.Empty(t, answer)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
}

func TestStreamChat_IgnoresRequestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(600 * time.Millisecond)
		if r.URL.Path == PathHealth {
			fmt.Fprint(w, `{"gateway_ok":true}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: late answer\n\n")
	})
	c, _ := newTestClient(t, slow, func(cfg *Config) {
		cfg.Timeout = 200 * time.Millisecond
		cfg.CloseOnFirstEvent = true
	})

	answer, err := c.StreamChat(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "late answer", answer)

	_, err = c.Health(context.Background())
	require.Error(t, err, "request/response calls keep their timeout")
}

func TestStreamChat_CancelStalledStream(t *testing.T) {
	c, _ := newTestClient(t, sseHandler(t, "q", nil, true), func(cfg *Config) { cfg.CloseOnFirstEvent = true })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.StreamChat(ctx, "q")
	require.Error(t, err)
}

func TestEventReader_Framing(t *testing.T) {
	in := "id: 1\nevent: answer\ndata: line one\ndata: line two\r\n\r\n:comment\n\ndata:no-space\n\n"
	er := newEventReader(strings.NewReader(in))

	ev, err := er.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Type: "answer", ID: "1", Data: "line one\nline two"}, ev)

	ev, err = er.Next()
	require.NoError(t, err)
	assert.Equal(t, "no-space", ev.Data)

	_, err = er.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventReader_EventWithoutDataIsSkipped(t *testing.T) {
	er := newEventReader(strings.NewReader("event: ping\n\ndata: x\n\n"))
	ev, err := er.Next()
	require.NoError(t, err)
	assert.Equal(t, "x", ev.Data)
	assert.Empty(t, ev.Type)
}
