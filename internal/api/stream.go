package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// streamDone is the data payload some backends send to end a stream.
const streamDone = "[DONE]"

// Event is one server-sent event.
type Event struct {
	Type string
	ID   string
	Data string
}

// StreamChat consumes GET /api/chat/stream?q=query and returns the answer.
// See StreamChatFunc.
func (c *Client) StreamChat(ctx context.Context, query string) (string, error) {
	return c.StreamChatFunc(ctx, query, nil)
}

// StreamChatFunc opens a single event-stream connection with no retry. When
// the client has CloseOnFirstEvent set, the first event's data is the whole
// answer and the connection is closed right after it. Otherwise event data is
// concatenated until a "[DONE]" event or the server closes the stream.
// onEvent, when non-nil, is called with each event's data as it arrives.
// Cancelling ctx is the only way to abandon a stalled stream.
func (c *Client) StreamChatFunc(ctx context.Context, query string, onEvent func(data string)) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	endpoint := PathChatStream
	target := c.url(endpoint) + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		c.record(endpoint, "error", start)
		return "", fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.record(endpoint, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newHTTPError(http.MethodGet, endpoint, resp)
	}

	var answer strings.Builder
	events := newEventReader(resp.Body)
	for {
		ev, err := events.Next()
		if errors.Is(err, io.EOF) {
			return answer.String(), nil
		}
		if err != nil {
			return answer.String(), fmt.Errorf("read %s: %w", endpoint, err)
		}
		if ev.Data == streamDone {
			return answer.String(), nil
		}
		answer.WriteString(ev.Data)
		if onEvent != nil {
			onEvent(ev.Data)
		}
		if c.closeOnFirstEvent {
			c.logger.Debug("closing stream after first event", "elapsed", time.Since(start))
			return answer.String(), nil
		}
	}
}

// eventReader parses the text/event-stream framing: "field: value" lines,
// events dispatched on a blank line, multiple data lines joined with "\n",
// lines starting with ':' ignored.
type eventReader struct {
	r *bufio.Reader
}

func newEventReader(r io.Reader) *eventReader {
	return &eventReader{r: bufio.NewReader(r)}
}

// Next returns the next event. A trailing event without its blank line is
// still returned before io.EOF.
func (er *eventReader) Next() (Event, error) {
	var ev Event
	var data []string
	pending := false

	for {
		line, err := er.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Event{}, err
		}
		eof := errors.Is(err, io.EOF)
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if pending && len(data) > 0 {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			if eof {
				return Event{}, io.EOF
			}
			ev, data, pending = Event{}, nil, false
			continue
		}

		if !strings.HasPrefix(line, ":") {
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "data":
				data = append(data, value)
				pending = true
			case "event":
				ev.Type = value
				pending = true
			case "id":
				ev.ID = value
			}
		}

		if eof {
			if pending && len(data) > 0 {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			return Event{}, io.EOF
		}
	}
}
