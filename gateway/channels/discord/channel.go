// Package discord provides the Discord slash-command channel: a gateway
// websocket client for interactions and the REST calls that answer them
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/gateway/channels/types"
)

const (
	interactionTypeCommand = 2
	optionTypeString       = 3
	commandTypeChatInput   = 1

	// MessageOption is the slash command's single required argument.
	MessageOption = "message"

	minBackoff = time.Second
	maxBackoff = time.Minute
)

// Config for the Discord channel
type Config struct {
	Token              string
	ApplicationID      string // resolved from the token when empty
	CommandName        string
	CommandDescription string
	APIBase            string
	GatewayURL         string
	HTTPClient         *http.Client
}

// DiscordChannel receives slash commands over the gateway and answers them over REST.
type DiscordChannel struct {
	token       string
	commandName string
	description string
	gatewayURL  string
	rest        *restClient
	handler     types.Handler
	logger      *zap.Logger

	mu     sync.RWMutex
	appID  string
	guilds map[string]string // guild ID -> name, from GUILD_CREATE

	inflight sync.WaitGroup
}

// NewDiscordChannel creates a new Discord channel
func NewDiscordChannel(cfg Config, handler types.Handler, logger *zap.Logger) (*DiscordChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	if cfg.CommandName == "" {
		return nil, fmt.Errorf("command name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	desc := cfg.CommandDescription
	if desc == "" {
		desc = "Ask the AI assistant"
	}
	logger = logger.Named("discord")
	return &DiscordChannel{
		token:       cfg.Token,
		commandName: cfg.CommandName,
		description: desc,
		gatewayURL:  cfg.GatewayURL,
		rest:        &restClient{base: cfg.APIBase, token: cfg.Token, http: client, logger: logger},
		handler:     handler,
		logger:      logger,
		appID:       cfg.ApplicationID,
		guilds:      make(map[string]string),
	}, nil
}

func (c *DiscordChannel) ChannelInfo() types.ChannelType { return types.ChannelDiscord }

// Start serves the gateway until ctx is cancelled, reconnecting with backoff.
// It returns nil on cancellation and ErrAuthFailed when the token is rejected.
// In-flight interactions are waited for before returning.
func (c *DiscordChannel) Start(ctx context.Context) error {
	defer c.inflight.Wait()

	backoff := minBackoff
	for {
		started := time.Now()
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			c.logger.Info("discord channel stopped")
			return nil
		}
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		if time.Since(started) > maxBackoff {
			backoff = minBackoff
		}
		c.logger.Warn("gateway session ended, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// RegisterCommand overwrites the global commands with the single relay command.
func (c *DiscordChannel) RegisterCommand(ctx context.Context) error {
	appID, err := c.applicationID(ctx)
	if err != nil {
		return err
	}
	cmd := commandDef{
		Name:        c.commandName,
		Description: c.description,
		Type:        commandTypeChatInput,
		Options: []commandOption{{
			Type:        optionTypeString,
			Name:        MessageOption,
			Description: "Your message to the AI",
			Required:    true,
		}},
	}
	if err := c.rest.overwriteCommands(ctx, appID, []commandDef{cmd}); err != nil {
		return fmt.Errorf("register command: %w", err)
	}
	c.logger.Info("slash command registered", zap.String("command", c.commandName), zap.String("application", appID))
	return nil
}

func (c *DiscordChannel) applicationID(ctx context.Context) (string, error) {
	c.mu.RLock()
	id := c.appID
	c.mu.RUnlock()
	if id != "" {
		return id, nil
	}
	id, err := c.rest.currentApplication(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve application id: %w", err)
	}
	c.mu.Lock()
	c.appID = id
	c.mu.Unlock()
	return id, nil
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

type interactionPayload struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Type          int    `json:"type"`
	Token         string `json:"token"`
	GuildID       string `json:"guild_id"`
	ChannelID     string `json:"channel_id"`
	Member        *struct {
		Nick string      `json:"nick"`
		User discordUser `json:"user"`
	} `json:"member"`
	User *discordUser `json:"user"`
	Data struct {
		Name    string `json:"name"`
		Options []struct {
			Name  string          `json:"name"`
			Type  int             `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"options"`
	} `json:"data"`
}

// dispatch handles one gateway event. Interactions run on their own goroutine.
func (c *DiscordChannel) dispatch(ctx context.Context, event string, data json.RawMessage) {
	switch event {
	case "READY":
		var ready struct {
			SessionID   string      `json:"session_id"`
			User        discordUser `json:"user"`
			Application struct {
				ID string `json:"id"`
			} `json:"application"`
		}
		if err := json.Unmarshal(data, &ready); err != nil {
			c.logger.Warn("bad READY payload", zap.Error(err))
			return
		}
		c.mu.Lock()
		if c.appID == "" {
			c.appID = ready.Application.ID
		}
		c.mu.Unlock()
		c.logger.Info("gateway ready", zap.String("user", ready.User.Username), zap.String("session", ready.SessionID))
	case "GUILD_CREATE":
		var g struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &g) == nil && g.ID != "" {
			c.mu.Lock()
			c.guilds[g.ID] = g.Name
			c.mu.Unlock()
		}
	case "INTERACTION_CREATE":
		var p interactionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			c.logger.Warn("bad interaction payload", zap.Error(err))
			return
		}
		in, ok := c.toInteraction(p)
		if !ok {
			return
		}
		// turns outlive a shutdown signal; Start waits for them
		hctx := context.WithoutCancel(ctx)
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			c.handler.HandleInteraction(hctx, in, c.Responder(in))
		}()
	}
}

// toInteraction keeps only invocations of the relay command.
func (c *DiscordChannel) toInteraction(p interactionPayload) (types.Interaction, bool) {
	if p.Type != interactionTypeCommand || p.Data.Name != c.commandName {
		return types.Interaction{}, false
	}
	in := types.Interaction{
		Channel:       types.ChannelDiscord,
		ID:            p.ID,
		Token:         p.Token,
		ApplicationID: p.ApplicationID,
		CommandName:   p.Data.Name,
		GuildID:       p.GuildID,
		ChannelID:     p.ChannelID,
	}

	var u discordUser
	switch {
	case p.Member != nil:
		u = p.Member.User
		in.DisplayName = p.Member.Nick
	case p.User != nil:
		u = *p.User
	}
	in.UserID = u.ID
	if in.DisplayName == "" {
		in.DisplayName = u.GlobalName
	}
	if in.DisplayName == "" {
		in.DisplayName = u.Username
	}

	for _, opt := range p.Data.Options {
		if opt.Name == MessageOption {
			if err := json.Unmarshal(opt.Value, &in.Message); err != nil {
				c.logger.Warn("message option is not a string",
					zap.String("interaction", p.ID), zap.String("value", string(opt.Value)), zap.Error(err))
			}
		}
	}

	if in.GuildID != "" {
		c.mu.RLock()
		in.GuildName = c.guilds[in.GuildID]
		c.mu.RUnlock()
	}
	if in.ApplicationID == "" {
		c.mu.RLock()
		in.ApplicationID = c.appID
		c.mu.RUnlock()
	}
	return in, true
}

// Responder answers one interaction through deferred response and followups.
func (c *DiscordChannel) Responder(in types.Interaction) types.Responder {
	return &interactionResponder{rest: c.rest, in: in}
}

type interactionResponder struct {
	rest *restClient
	in   types.Interaction
}

func (r *interactionResponder) Defer(ctx context.Context) error {
	return r.rest.deferInteraction(ctx, r.in.ID, r.in.Token)
}

func (r *interactionResponder) Send(ctx context.Context, content string, file *types.Attachment) error {
	return r.rest.followup(ctx, r.in.ApplicationID, r.in.Token, content, file)
}
