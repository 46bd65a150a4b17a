package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/creastat/convstore"
)

// ErrEmptyReply is returned when the model produced no usable text.
var ErrEmptyReply = errors.New("model returned an empty reply")

type structuredReply struct {
	Reply    string   `json:"reply"`
	Speech   string   `json:"speech"`
	Keywords []string `json:"keywords"`
	Title    string   `json:"title"`
}

// ParseReply decodes the model output. Output that is not the expected JSON object is
// used verbatim as both text and speech.
func ParseReply(raw string, wantTitle bool) (*convstore.InferenceReply, error) {
	body := stripFence(strings.TrimSpace(raw))
	if body == "" {
		return nil, ErrEmptyReply
	}

	var sr structuredReply
	if err := json.Unmarshal([]byte(body), &sr); err != nil || strings.TrimSpace(sr.Reply) == "" {
		return &convstore.InferenceReply{Text: body, Speech: body, Keywords: []string{}}, nil
	}

	reply := &convstore.InferenceReply{
		Text:     strings.TrimSpace(sr.Reply),
		Speech:   strings.TrimSpace(sr.Speech),
		Keywords: make([]string, 0, len(sr.Keywords)),
	}
	if reply.Speech == "" {
		reply.Speech = reply.Text
	}
	for _, k := range sr.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			reply.Keywords = append(reply.Keywords, k)
		}
	}
	if wantTitle {
		if t := strings.TrimSpace(sr.Title); t != "" && !convstore.IsUntitled(t) {
			reply.Title = t
		}
	}
	return reply, nil
}

// stripFence removes a surrounding markdown code fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Wrap tags a backend failure as an inference error.
func Wrap(backend string, err error) error {
	return fmt.Errorf("%w: %s: %v", convstore.ErrInference, backend, err)
}
