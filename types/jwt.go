package types

import "github.com/golang-jwt/jwt/v5"

// SocketTicketPurpose marks tokens that may only be used for the websocket handshake.
const SocketTicketPurpose = "ws"

// Claims represents the JWT claims
type Claims struct {
	UserID  uint   `json:"user_id"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}
