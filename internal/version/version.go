// ABOUTME: Version constants for lava-go
// ABOUTME: Used in the Client-Name handshake header and the dashboard
package version

const (
	Version = "0.3.0"
	Product = "lava-go"
)

// ClientName is the value sent in the Client-Name handshake header.
func ClientName() string {
	return Product + "/" + Version
}
