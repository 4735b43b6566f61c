package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/huddle/internal/store"
)

// DefaultGlobalRoom is the room every active connection is subscribed to.
const DefaultGlobalRoom = "general"

// Options tunes a Router.
type Options struct {
	GlobalRoom    string
	MaxTextLength int
	Directory     Directory
	Metrics       *Metrics
}

// Router processes client commands and fans events out to subscribers.
// Commands of one connection are handled in order by a dedicated
// goroutine; different connections proceed concurrently.
type Router struct {
	store      RoomStore
	directory  Directory
	globalRoom string
	log        *zerolog.Logger
	metrics    *Metrics

	sessions *SessionRegistry
	subs     *Subscriptions
	typing   *TypingTracker
	relay    *Relay

	mu      sync.RWMutex
	clients map[string]*Client

	// serialize snapshot+fanout so the last broadcast reflects the last change
	presenceMu sync.Mutex
	typingMu   sync.Mutex
}

// NewRouter creates a router backed by st.
func NewRouter(st RoomStore, logger *zerolog.Logger, opts Options) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.GlobalRoom == "" {
		opts.GlobalRoom = DefaultGlobalRoom
	}
	return &Router{
		store:      st,
		directory:  opts.Directory,
		globalRoom: opts.GlobalRoom,
		log:        logger,
		metrics:    opts.Metrics,
		sessions:   NewSessionRegistry(),
		subs:       NewSubscriptions(),
		typing:     NewTypingTracker(),
		relay:      NewRelay(st, opts.GlobalRoom, opts.MaxTextLength, logger, opts.Metrics),
		clients:    make(map[string]*Client),
	}
}

func (r *Router) GlobalRoom() string {
	return r.globalRoom
}

// Run blocks until ctx is done, then disconnects every client.
func (r *Router) Run(ctx context.Context) {
	<-ctx.Done()
	r.log.Info().Msg("router shutting down")

	r.mu.RLock()
	clients := lo.Values(r.clients)
	r.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
	for _, c := range clients {
		<-c.Done()
	}
}

// RegisterClient opens c and starts serving its commands. ctx bounds the
// lifetime of the connection.
func (r *Router) RegisterClient(ctx context.Context, c *Client) {
	cctx, cancel := context.WithCancel(ctx)
	c.setCancel(cancel)

	r.mu.Lock()
	r.clients[c.ID] = c
	r.mu.Unlock()
	r.subs.Open(c.ID)
	r.updateGauges()

	go r.serve(cctx, c)
}

// UnregisterClient runs the disconnect transition of c and waits for it.
func (r *Router) UnregisterClient(c *Client) {
	c.Close()
	<-c.Done()
}

func (r *Router) serve(ctx context.Context, c *Client) {
	defer r.disconnect(c)
	for {
		select {
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case <-c.quit:
				return
			default:
			}
			r.handle(ctx, c, cmd)
		}
	}
}

func (r *Router) handle(ctx context.Context, c *Client, cmd *Command) {
	ev := newAck(cmd)
	var err error
	switch cmd.Kind {
	case CommandJoin:
		err = r.join(ctx, c, cmd, ev)
	case CommandSendMessage:
		err = r.sendMessage(ctx, c, cmd, ev)
	case CommandStartTyping:
		err = r.startTyping(c, cmd, ev)
	case CommandStopTyping:
		err = r.stopTyping(c, cmd, ev)
	case CommandJoinRoom:
		err = r.joinRoom(ctx, c, cmd, ev)
	case CommandLeaveRoom:
		err = r.leaveRoom(c, cmd, ev)
	case CommandGetOnlineMembers:
		if _, err = r.requireActive(c); err == nil {
			ev.Room = cmd.Room
			ev.Users = r.onlineMembers(cmd.Room)
		}
	case CommandCheckUserOnline:
		if _, err = r.requireActive(c); err == nil {
			ev.User = cmd.User
			ev.Online = r.sessions.IsOnline(cmd.User)
		}
	case CommandHistory:
		err = r.history(ctx, c, cmd, ev)
	default:
		err = coreError(ErrCodeBadRequest, "unknown command")
	}
	if err != nil {
		ev.Error = toCoreError(err)
		logEv := r.log.Debug()
		if ev.Error.Code == ErrCodePersistence {
			logEv = r.log.Warn()
		}
		logEv.Err(err).Str("client_id", c.ID).Str("command", cmd.Kind.String()).Msg("command failed")
	}
	r.metrics.observeCommand(cmd.Kind, ev)
	r.metrics.observeDelivery(c.deliver(ev))
}

func (r *Router) join(ctx context.Context, c *Client, cmd *Command, ev *Event) error {
	user := strings.TrimSpace(cmd.User)
	if user == "" {
		return coreError(ErrCodeValidation, "user is required")
	}
	if r.directory != nil {
		ok, err := r.directory.Exists(ctx, user)
		if err != nil {
			return &PersistenceError{Op: "lookup user", Err: err}
		}
		if !ok {
			return coreError(ErrCodeNotFound, "unknown user")
		}
	}

	rejoin := c.State() == StateActive && c.User() == user
	if c.State() == StateActive && !rejoin {
		r.endSession(c, false)
	}

	online := r.sessions.Register(c.ID, user)
	groups, err := r.store.ListGroupsByMember(ctx, user)
	if err != nil {
		if !rejoin {
			r.subs.LeaveAll(c.ID)
			_, offline := r.sessions.Unregister(c.ID)
			c.deactivate()
			// A concurrent join may already have broadcast this user as online.
			if offline {
				r.broadcastOnline()
			}
			r.updateGauges()
		}
		return &PersistenceError{Op: "list groups", Err: err}
	}

	c.activate(user)
	rooms := []string{r.globalRoom}
	r.subs.JoinRoom(c.ID, r.globalRoom)
	for _, g := range groups {
		if r.subs.JoinRoom(c.ID, g.ID) {
			rooms = append(rooms, g.ID)
		}
	}
	r.broadcastOnline()
	r.updateGauges()
	r.log.Info().Str("client_id", c.ID).Str("user", user).Int("groups", len(groups)).Msg("session joined")

	ev.User = user
	ev.Users = online
	ev.Rooms = rooms
	ev.Groups = groups
	return nil
}

func (r *Router) sendMessage(ctx context.Context, c *Client, cmd *Command, ev *Event) error {
	user, err := r.requireActive(c)
	if err != nil {
		return err
	}
	room := r.roomOrGlobal(cmd.Room)
	if !r.subs.IsSubscribed(c.ID, room) {
		return coreError(ErrCodeNotInRoom, "not subscribed to room")
	}
	msg, err := r.deliver(ctx, room, user, cmd.Text)
	if err != nil {
		return err
	}
	ev.Room = room
	ev.Message = msg
	return nil
}

// PostMessage persists and broadcasts a message that did not arrive over a
// live connection. Callers are responsible for authorizing the sender.
func (r *Router) PostMessage(ctx context.Context, roomID, senderID, text string) (*store.Message, error) {
	return r.deliver(ctx, r.roomOrGlobal(roomID), senderID, text)
}

func (r *Router) deliver(ctx context.Context, room, sender, text string) (*store.Message, error) {
	targets := r.subs.SubscribersOf(room)
	msg, err := r.relay.Deliver(ctx, room, sender, text)
	if err != nil {
		return nil, err
	}
	r.sendTo(targets, &Event{Kind: EventNewMessage, Room: room, User: sender, Message: msg})
	return msg, nil
}

func (r *Router) startTyping(c *Client, cmd *Command, ev *Event) error {
	user, err := r.requireActive(c)
	if err != nil {
		return err
	}
	room := r.roomOrGlobal(cmd.Room)
	if !r.subs.IsSubscribed(c.ID, room) {
		return coreError(ErrCodeNotInRoom, "not subscribed to room")
	}
	if prev := r.typing.SetTyping(user, room); prev != "" {
		r.broadcastTyping(prev)
	}
	r.broadcastTyping(room)
	ev.Room = room
	return nil
}

func (r *Router) stopTyping(c *Client, cmd *Command, ev *Event) error {
	user, err := r.requireActive(c)
	if err != nil {
		return err
	}
	room := r.roomOrGlobal(cmd.Room)
	cleared, ok := r.typing.ClearTyping(user)
	if ok && cleared != room {
		r.broadcastTyping(cleared)
	}
	r.broadcastTyping(room)
	ev.Room = room
	return nil
}

func (r *Router) joinRoom(ctx context.Context, c *Client, cmd *Command, ev *Event) error {
	user, err := r.requireActive(c)
	if err != nil {
		return err
	}
	room := strings.TrimSpace(cmd.Room)
	if room == "" {
		return coreError(ErrCodeValidation, "room is required")
	}
	ev.Room = room
	if room != r.globalRoom {
		group, err := r.store.GetGroup(ctx, room)
		if errors.Is(err, store.ErrNotFound) {
			return coreError(ErrCodeNotFound, "group not found")
		}
		if err != nil {
			return &PersistenceError{Op: "get group", Err: err}
		}
		if !group.HasMember(user) {
			return coreError(ErrCodeNotMember, "not a member of this group")
		}
		ev.Group = group
	}
	r.subs.JoinRoom(c.ID, room)
	r.updateGauges()
	return nil
}

func (r *Router) leaveRoom(c *Client, cmd *Command, ev *Event) error {
	user, err := r.requireActive(c)
	if err != nil {
		return err
	}
	room := r.roomOrGlobal(cmd.Room)
	if !r.subs.LeaveRoom(c.ID, room) {
		return coreError(ErrCodeNotInRoom, "not subscribed to room")
	}
	if current, ok := r.typing.RoomOf(user); ok && current == room {
		r.typing.ClearTyping(user)
		r.broadcastTyping(room)
	}
	r.updateGauges()
	ev.Room = room
	return nil
}

func (r *Router) history(ctx context.Context, c *Client, cmd *Command, ev *Event) error {
	if _, err := r.requireActive(c); err != nil {
		return err
	}
	room := r.roomOrGlobal(cmd.Room)
	if !r.subs.IsSubscribed(c.ID, room) {
		return coreError(ErrCodeNotInRoom, "not subscribed to room")
	}
	msgs, err := r.store.ListMessages(ctx, room)
	if err != nil {
		return &PersistenceError{Op: "list messages", Err: err}
	}
	ev.Room = room
	ev.Messages = msgs
	return nil
}

func (r *Router) onlineMembers(room string) []string {
	if room == "" {
		return []string{}
	}
	users := make([]string, 0)
	for _, connID := range r.subs.SubscribersOf(room) {
		if u, ok := r.sessions.UserOf(connID); ok {
			users = append(users, u)
		}
	}
	users = lo.Uniq(users)
	sort.Strings(users)
	return users
}

// disconnect is the final transition of every connection.
func (r *Router) disconnect(c *Client) {
	r.subs.DropConnection(c.ID)
	r.endSession(c, true)

	r.mu.Lock()
	delete(r.clients, c.ID)
	r.mu.Unlock()
	r.updateGauges()
	r.log.Debug().Str("client_id", c.ID).Msg("client disconnected")
	c.markClosed()
}

// endSession unbinds c from its user and clears dependent state. When
// closing is false the connection stays open for a new join.
func (r *Router) endSession(c *Client, closing bool) {
	if !closing {
		r.subs.LeaveAll(c.ID)
	}
	user, offline := r.sessions.Unregister(c.ID)
	c.deactivate()
	if user == "" {
		return
	}
	if room, ok := r.typing.ClearTyping(user); ok {
		r.broadcastTyping(room)
	}
	if offline {
		r.broadcastOnline()
	}
}

func (r *Router) requireActive(c *Client) (string, error) {
	if c.State() != StateActive {
		return "", coreError(ErrCodeUnauthenticated, "join first")
	}
	return c.User(), nil
}

func (r *Router) roomOrGlobal(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return r.globalRoom
	}
	return room
}

func (r *Router) client(id string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[id]
}

func (r *Router) sendTo(connIDs []string, ev *Event) {
	for _, id := range connIDs {
		if c := r.client(id); c != nil {
			r.metrics.observeDelivery(c.deliver(ev))
		}
	}
}

func (r *Router) broadcastOnline() {
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	ev := &Event{Kind: EventOnlineUsers, Users: r.sessions.Online()}
	r.mu.RLock()
	clients := lo.Values(r.clients)
	r.mu.RUnlock()
	for _, c := range clients {
		if c.State() == StateActive {
			r.metrics.observeDelivery(c.deliver(ev))
		}
	}
}

func (r *Router) broadcastTyping(room string) {
	r.typingMu.Lock()
	defer r.typingMu.Unlock()

	typing := r.typing.ListTypingIn(room)
	for _, id := range r.subs.SubscribersOf(room) {
		c := r.client(id)
		if c == nil {
			continue
		}
		users := lo.Without(typing, c.User())
		r.metrics.observeDelivery(c.deliver(&Event{Kind: EventTyping, Room: room, Users: users}))
	}
}

func (r *Router) updateGauges() {
	if r.metrics == nil {
		return
	}
	r.metrics.setGauges(r.sessions.ConnectionCount(), len(r.sessions.Online()), r.subs.RoomCount())
}

// IsOnline reports whether user has any live session.
func (r *Router) IsOnline(user string) bool {
	return r.sessions.IsOnline(user)
}

// OnlineUsers returns the sorted online set.
func (r *Router) OnlineUsers() []string {
	return r.sessions.Online()
}

// OnlineMembers returns the members of a group that are currently online.
func (r *Router) OnlineMembers(ctx context.Context, groupID string) ([]string, error) {
	return r.sessions.ListMembersOf(ctx, groupID, func(ctx context.Context, id string) ([]string, error) {
		g, err := r.store.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		return g.Members, nil
	})
}
