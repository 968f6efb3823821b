// bridgecli invokes one whitelisted orchestrator operation over the bridge
// websocket and prints the JSON response.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/gorilla/websocket"

	"skirmish.ai/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://127.0.0.1:9091/v1/bridge", "bridge ws url")
		args   = flag.String("args", "[]", "positional arguments, JSON array")
		kwargs = flag.String("kwargs", "{}", "named arguments, JSON object")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[bridgecli] ", log.LstdFlags)
	if flag.NArg() != 1 {
		logger.Fatalf("usage: bridgecli [flags] <operation>")
	}

	req := protocol.BridgeRequest{Attr: flag.Arg(0)}
	if err := json.Unmarshal([]byte(*args), &req.Args); err != nil {
		logger.Fatalf("parse -args: %v", err)
	}
	if err := json.Unmarshal([]byte(*kwargs), &req.Kwargs); err != nil {
		logger.Fatalf("parse -kwargs: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(req); err != nil {
		logger.Fatalf("send request: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read response: %v", err)
	}

	var pretty json.RawMessage = msg
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		os.Stdout.Write(msg)
		return
	}
	os.Stdout.Write(append(out, '\n'))
}
