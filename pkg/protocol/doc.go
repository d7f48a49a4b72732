// ABOUTME: Lavalink wire protocol package
// ABOUTME: Defines protocol messages, the WebSocket connection and the REST client
// Package protocol implements the Lavalink node wire protocol.
//
// It provides the JSON message types for both protocol versions, a
// WebSocket connection (Conn) that authenticates and delivers raw frames,
// and a REST client for loading tracks and driving players.
//
// Example:
//
//	conn, err := protocol.Dial(ctx, protocol.DialConfig{
//	    URL:      "ws://localhost:2333/v4/websocket",
//	    Password: "youshallnotpass",
//	    UserID:   "123456789012345678",
//	})
//	err = conn.Listen(ctx, func(data []byte) {
//	    msg, err := protocol.Parse(data)
//	    ...
//	})
//
// Most users want the higher level lava package instead.
package protocol
