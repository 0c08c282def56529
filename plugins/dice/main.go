// Command dice is a garybot plugin answering ".roll NdM".
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
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

type Reply struct {
	Message   string `json:"message"`
	Addressee string `json:"addressee,omitempty"`
}

const (
	maxDice  = 20
	maxSides = 1000
	usage    = "Missing arguments. Correct usage is: .roll [N]d[M]"
)

// parseRoll reads "NdM" or "dM". N defaults to 1.
func parseRoll(notation string) (count, sides int, err error) {
	n, m, ok := strings.Cut(strings.ToLower(notation), "d")
	if !ok {
		return 0, 0, fmt.Errorf("not a roll: %q", notation)
	}
	count = 1
	if n != "" {
		if count, err = strconv.Atoi(n); err != nil {
			return 0, 0, fmt.Errorf("bad dice count %q", n)
		}
	}
	if sides, err = strconv.Atoi(m); err != nil {
		return 0, 0, fmt.Errorf("bad side count %q", m)
	}
	if count < 1 || count > maxDice || sides < 2 || sides > maxSides {
		return 0, 0, fmt.Errorf("roll out of range: %q", notation)
	}
	return count, sides, nil
}

func roll(count, sides int, intn func(int) int) (total int, faces []string) {
	for i := 0; i < count; i++ {
		face := intn(sides) + 1
		total += face
		faces = append(faces, strconv.Itoa(face))
	}
	return total, faces
}

func handle(p HandleParams, intn func(int) int) []Reply {
	if len(p.Words) < 2 {
		return []Reply{{Message: usage, Addressee: p.Nick}}
	}
	count, sides, err := parseRoll(p.Words[1])
	if err != nil {
		return []Reply{{Message: usage, Addressee: p.Nick}}
	}
	total, faces := roll(count, sides, intn)
	if count == 1 {
		return []Reply{{Message: fmt.Sprintf("rolled %d", total), Addressee: p.Nick}}
	}
	msg := fmt.Sprintf("rolled %d (%s)", total, strings.Join(faces, " + "))
	return []Reply{{Message: msg, Addressee: p.Nick}}
}

func respond(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]interface{}{
			"name":        "dice",
			"version":     "1.0.0",
			"description": "Rolls dice",
		}
	case "handle":
		var p HandleParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			resp.Error = &RPCError{Code: -32602, Message: "invalid params"}
			break
		}
		resp.Result = map[string]interface{}{"replies": handle(p, rand.IntN)}
	default:
		resp.Error = &RPCError{Code: -32601, Message: "Method not found: " + req.Method}
	}
	return resp
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			continue
		}
		// Notifications get no response
		if req.ID == nil {
			continue
		}

		if data, err := json.Marshal(respond(req)); err == nil {
			writer.Write(data)
			writer.WriteString("\n")
			writer.Flush()
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
	}
}
