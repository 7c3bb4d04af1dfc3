package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches an upgraded connection to the hub and blocks until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, reviewerID string) {
	client := &Client{Hub: hub, Conn: c, ReviewerID: reviewerID, Send: make(chan []byte, sendBuffer)}
	hub.register <- client

	go client.writePump()
	client.readPump()
}
