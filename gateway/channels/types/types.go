// Package types - Shared types and interfaces for channels
// Imported by the channel implementations and by the agent that serves them
package types

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ChannelType represents the type of communication channel
type ChannelType string

const (
	ChannelDiscord ChannelType = "discord"
	ChannelLocal   ChannelType = "local" // `relaybot ask`
)

// MaxMessageLen is Discord's hard per-message character ceiling.
const MaxMessageLen = 2000

// Interaction is one inbound slash-command invocation.
type Interaction struct {
	Channel       ChannelType `json:"channel"`
	ID            string      `json:"id"`
	Token         string      `json:"token"`
	ApplicationID string      `json:"applicationId"`
	CommandName   string      `json:"commandName"`
	UserID        string      `json:"userId"`
	DisplayName   string      `json:"displayName"`
	GuildID       string      `json:"guildId,omitempty"` // empty for DMs
	GuildName     string      `json:"guildName,omitempty"`
	ChannelID     string      `json:"channelId,omitempty"`
	Message       string      `json:"message"`
}

// Attachment is a single file sent alongside a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// LoadAttachment reads path into an Attachment named after the file.
func LoadAttachment(path, contentType string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return &Attachment{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}

// Responder replies to one interaction.
type Responder interface {
	// Defer acknowledges the interaction before long-running work starts.
	Defer(ctx context.Context) error
	// Send delivers one message of at most MaxMessageLen characters, optionally with a file.
	Send(ctx context.Context, content string, file *Attachment) error
}

// Handler serves interactions. Implementations own all error reporting.
type Handler interface {
	HandleInteraction(ctx context.Context, in Interaction, r Responder)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, in Interaction, r Responder)

// HandleInteraction implements Handler
func (f HandlerFunc) HandleInteraction(ctx context.Context, in Interaction, r Responder) {
	f(ctx, in, r)
}
