// ABOUTME: Voice connection credentials for a player
// ABOUTME: Collected from gateway updates and forwarded to the node
package lava

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/lavaclient/lava-go/pkg/protocol"
)

// VoiceState is everything a node needs to join a voice channel.
type VoiceState struct {
	ChannelID *snowflake.ID
	SessionID string
	Token     string
	Endpoint  string
}

// Complete reports whether every credential is present.
func (v VoiceState) Complete() bool {
	return v.ChannelID != nil && v.SessionID != "" && v.Token != "" && v.Endpoint != ""
}

func (v VoiceState) wire() *protocol.VoiceState {
	return &protocol.VoiceState{
		Token:     v.Token,
		Endpoint:  v.Endpoint,
		SessionID: v.SessionID,
		ChannelID: v.ChannelID,
	}
}

func (v VoiceState) equal(o VoiceState) bool {
	sameChannel := (v.ChannelID == nil) == (o.ChannelID == nil) &&
		(v.ChannelID == nil || *v.ChannelID == *o.ChannelID)
	return sameChannel && v.SessionID == o.SessionID && v.Token == o.Token && v.Endpoint == o.Endpoint
}

// VoiceStateUpdate is the bot's own voice state from the gateway. A nil
// ChannelID means the bot left voice.
type VoiceStateUpdate struct {
	ChannelID *snowflake.ID
	SessionID string
}

// VoiceServerUpdate is the voice server assignment from the gateway. An empty
// Endpoint means the server is being reallocated.
type VoiceServerUpdate struct {
	Token    string
	Endpoint string
}
