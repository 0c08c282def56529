// Command nick-colors is a garybot plugin answering ".color <nick>" with the
// nick painted in its stable mIRC color.
package main

import (
	"bufio"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// JSON-RPC structures
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type HandleParams struct {
	Nick  string   `json:"nick"`
	Words []string `json:"words"`
}

type EventParams struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type Reply struct {
	Message   string `json:"message"`
	Addressee string `json:"addressee,omitempty"`
}

// mIRC color codes readable on both light and dark backgrounds
var colors = []int{2, 3, 4, 5, 6, 7, 9, 10, 11, 12, 13}

// colorFor returns a consistent color for a nickname
func colorFor(nickname string) int {
	hash := md5.Sum([]byte(strings.ToLower(nickname)))
	return colors[int(hash[0])%len(colors)]
}

func paint(nickname string) string {
	return fmt.Sprintf("\x03%02d%s\x0f", colorFor(nickname), nickname)
}

type plugin struct {
	out *bufio.Writer
}

func (p *plugin) write(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[nick-colors] Error marshaling: %v\n", err)
		return
	}
	p.out.Write(data)
	p.out.WriteString("\n")
	p.out.Flush()
}

// log sends a log notification to the bot
func (p *plugin) log(level, message string) {
	p.write(Request{JSONRPC: "2.0", Method: "log", Params: mustJSON(map[string]string{
		"level":   level,
		"message": message,
	})})
}

func mustJSON(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func (p *plugin) handle(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]interface{}{
			"name":        "nick-colors",
			"version":     "1.0.0",
			"description": "Shows the color a nickname hashes to",
			"events":      []string{"channel.kicked"},
		}
	case "handle":
		var hp HandleParams
		if err := json.Unmarshal(req.Params, &hp); err != nil {
			resp.Error = &RPCError{Code: -32602, Message: "invalid params"}
			break
		}
		nick := hp.Nick
		if len(hp.Words) > 1 {
			nick = hp.Words[1]
		}
		resp.Result = map[string]interface{}{
			"replies": []Reply{{Message: paint(nick), Addressee: hp.Nick}},
		}
	default:
		resp.Error = &RPCError{Code: -32601, Message: "Method not found: " + req.Method}
	}
	return resp
}

func (p *plugin) event(req Request) {
	var ep EventParams
	if err := json.Unmarshal(req.Params, &ep); err != nil {
		return
	}
	if ep.Type == "channel.kicked" {
		p.log("warn", fmt.Sprintf("kicked from %v", ep.Data["channel"]))
	}
}

func main() {
	p := &plugin{out: bufio.NewWriter(os.Stdout)}
	reader := bufio.NewReaderSize(os.Stdin, 4096)

	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			var req Request
			if jerr := json.Unmarshal([]byte(line), &req); jerr != nil {
				fmt.Fprintf(os.Stderr, "[nick-colors] Error parsing request: %v\n", jerr)
			} else if req.ID == nil {
				if req.Method == "event" {
					p.event(req)
				}
			} else {
				p.write(p.handle(req))
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "[nick-colors] Error reading from stdin: %v\n", err)
			os.Exit(1)
		}
	}
}
