// Command wsecho is a minimal echo server demonstrating the websocket
// package end to end: accept a TCP connection, upgrade it, and echo back
// every message received until the peer closes.
package main

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/vitalvas/wsendpoint/websocket"
)

func main() {
	ln, err := net.Listen("tcp", ":8080")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("wsecho listening on ws://localhost:8080/ws")

	cfg := websocket.NewConfig()
	cfg.PerMessageDeflate.Enabled = true

	upgrader := &websocket.Upgrader{Config: cfg}

	for {
		raw, err := ln.Accept()
		if err != nil {
			log.Println("accept:", err)
			continue
		}
		go serve(upgrader, raw)
	}
}

func serve(upgrader *websocket.Upgrader, raw net.Conn) {
	conn, err := upgrader.Upgrade(raw)
	if err != nil {
		log.Println("upgrade:", err)
		_ = raw.Close()
		return
	}
	defer conn.Abort()

	conn.StartPingLoop(context.Background())

	buf := make([]byte, 4096)
	for {
		msg, err := conn.Receive(buf)
		if err != nil {
			return
		}
		if err := conn.Send(msg.Type, msg.Data, msg.EndOfMessage); err != nil {
			return
		}
	}
}
