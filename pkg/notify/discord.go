package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/charmbracelet/log"
	"github.com/mklimuk/board-pilot/pkg/state"
)

// Discord announces sync events to a single channel.
type Discord struct {
	Session   *discordgo.Session
	ChannelID string
}

// NewDiscord creates a Discord announcer. The session is opened here; Close
// must be called on shutdown.
func NewDiscord(token, channelID string) (*Discord, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening Discord session: %w", err)
	}
	return &Discord{Session: dg, ChannelID: channelID}, nil
}

func (d *Discord) Announce(evt state.Event) {
	text := FormatEvent(evt)
	go func() {
		if _, err := d.Session.ChannelMessageSend(d.ChannelID, text); err != nil {
			log.Warnf("discord announce failed: %v", err)
		}
	}()
}

// Close shuts down the websocket connection
func (d *Discord) Close() error {
	return d.Session.Close()
}
