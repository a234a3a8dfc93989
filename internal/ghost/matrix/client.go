// Package matrix carries Ghost conversations over Matrix rooms.
//
// Every (room, sender) pair is its own conversation. Only text messages are
// handled; the room transport has no audio.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Ghost/common/retry"
	"github.com/bdobrica/Ghost/internal/ghost/kv"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms lists the room IDs Ghost joins and answers in.
	Rooms []string
	// State keeps the sync position. When nil, mautrix keeps it in memory
	// and room history is replayed on every restart.
	State kv.Store
}

// Enabled reports whether enough is configured to connect.
func (c Config) Enabled() bool {
	return c.Homeserver != "" && c.UserID != "" && c.AccessToken != ""
}

// Message is an incoming text message.
type Message struct {
	RoomID  string
	Sender  string
	EventID string
	Body    string
}

// SessionID is the conversation key for the message's room and sender.
func (m Message) SessionID() string {
	return "matrix:" + m.RoomID + ":" + m.Sender
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg Message)

// Client wraps the Matrix client.
type Client struct {
	client     *mautrix.Client
	config     *Config
	stopCh     chan struct{}
	msgHandler MessageHandler
	sendRetry  retry.Config
}

// New creates a new Matrix client.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}

	c := &Client{
		client:    client,
		config:    config,
		stopCh:    make(chan struct{}),
		sendRetry: retry.DefaultConfig,
	}

	if config.State != nil {
		client.Store = NewSyncState(config.State)
	} else {
		slog.Warn("Matrix sync store: no DB configured, using in-memory store (history will replay on restart)")
	}

	return c, nil
}

// Start joins the configured rooms and begins syncing in the background.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleEvent)

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("matrix: join room %s: %w", roomID, err)
		}
	}

	// Reconnect with exponential back-off; a transient homeserver error must
	// not leave Ghost deaf to new messages.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, backoffMax)
				continue
			}
			return
		}
	}()

	return nil
}

// Stop stops syncing.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendReply posts text to a room as a formatted message, retrying transient
// failures.
func (c *Client) SendReply(ctx context.Context, roomID, text string) error {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          text,
		Format:        event.FormatHTML,
		FormattedBody: FormatHTML(text),
	}
	err := retry.Do(ctx, c.sendRetry, func() error {
		_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
		return err
	})
	if err != nil {
		return fmt.Errorf("matrix: send reply: %w", err)
	}
	return nil
}

// SetTyping sets the typing indicator.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("matrix: set typing: %w", err)
	}
	return nil
}

// IsWatchedRoom reports whether Ghost answers in roomID. With no rooms
// configured every joined room is watched.
func (c *Client) IsWatchedRoom(roomID string) bool {
	return len(c.config.Rooms) == 0 || slices.Contains(c.config.Rooms, roomID)
}

func (c *Client) handleEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}
	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}
	if !c.IsWatchedRoom(evt.RoomID.String()) {
		return
	}
	if c.msgHandler != nil {
		c.msgHandler(ctx, Message{
			RoomID:  evt.RoomID.String(),
			Sender:  evt.Sender.String(),
			EventID: evt.ID.String(),
			Body:    msgContent.Body,
		})
	}
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("matrix: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}

var ruleLine = regexp.MustCompile(`(?m)^-{3,}$`)

// FormatHTML renders a reply for Matrix clients. Replies with rule lines,
// such as the expense bill, become a preformatted block so their columns
// line up; anything else keeps its line breaks.
func FormatHTML(text string) string {
	escaped := html.EscapeString(text)
	if ruleLine.MatchString(text) {
		return "<pre><code>" + escaped + "</code></pre>"
	}
	return strings.ReplaceAll(escaped, "\n", "<br/>")
}
