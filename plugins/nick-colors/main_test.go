package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestColorForIsStableAndCaseInsensitive(t *testing.T) {
	if colorFor("Bob") != colorFor("bob") {
		t.Fatal("color depends on case")
	}
	if colorFor("bob") != colorFor("bob") {
		t.Fatal("color is not stable")
	}
}

func TestHandleColorsTheArgument(t *testing.T) {
	p := &plugin{out: bufio.NewWriter(&bytes.Buffer{})}
	params, _ := json.Marshal(HandleParams{Nick: "bob", Words: []string{".color", "alice"}})
	resp := p.handle(Request{JSONRPC: "2.0", ID: float64(1), Method: "handle", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	replies := resp.Result.(map[string]interface{})["replies"].([]Reply)
	if len(replies) != 1 || !strings.Contains(replies[0].Message, "alice") || replies[0].Addressee != "bob" {
		t.Fatalf("unexpected replies: %+v", replies)
	}
	if !strings.HasPrefix(replies[0].Message, "\x03") {
		t.Fatalf("reply is not colored: %q", replies[0].Message)
	}
}

func TestKickEventLogs(t *testing.T) {
	var buf bytes.Buffer
	p := &plugin{out: bufio.NewWriter(&buf)}
	params, _ := json.Marshal(EventParams{Type: "channel.kicked", Data: map[string]interface{}{"channel": "##garybot"}})
	p.event(Request{JSONRPC: "2.0", Method: "event", Params: params})

	var got Request
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("bad notification %q: %v", buf.String(), err)
	}
	if got.Method != "log" || !strings.Contains(string(got.Params), "##garybot") {
		t.Fatalf("unexpected notification: %s", buf.String())
	}
}
