package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs streams the session events of contextID to the peer until either
// side closes.
func ServeWs(hub *Hub, c *websocket.Conn, contextID string) {
	client := &Client{Hub: hub, Conn: c, ContextID: contextID, Send: make(chan []byte, sendBuffer)}
	hub.Register(client)

	go client.writePump()
	client.readPump()
}
