// Package ircserver implements the IRC protocol state machine: it tracks
// sessions, nicknames and channels, and turns one inbound IRC message at a
// time into an ordered batch of replies, each tagged with the connections
// that must receive it.
//
// The package never touches a socket. Feeding it messages and delivering the
// reply batches is the event loop's job; because all output is generated in
// response to input, the state machine is directly testable without any
// network.
package ircserver

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/plexirc/plexirc/internal/config"

	"gopkg.in/sorcix/irc.v2"
)

const serverVersion = "1.0"

var (
	// ErrNoSuchSession is returned when the file descriptor is not (or no
	// longer) associated with a session.
	ErrNoSuchSession = errors.New("no such session")

	// ErrSessionLimitReached is returned when the number of sessions
	// exceeds the configured limit.
	ErrSessionLimitReached = errors.New("MaxSessions limit reached")
)

var messagesProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: "irc",
		Name:      "messages_processed",
		Help:      "Number of messages processed by message command",
	},
	[]string{"command"},
)

func init() {
	prometheus.MustRegister(messagesProcessed)
}

// Session is the protocol-level state of one TCP connection.
type Session struct {
	Fd int
	IP string

	Nick     string
	Username string
	Realname string
	Hostname string

	// passwordOK is latched by a correct PASS and never reset.
	passwordOK bool

	// authenticated is latched the first time passwordOK, Nick and
	// Username are all set; the welcome burst is emitted exactly once, at
	// that transition.
	authenticated bool

	// Channels enumerates the names of the channels this session is in.
	Channels map[string]bool

	Created time.Time

	ircPrefix irc.Prefix
}

func (s *Session) registered() bool {
	return s.Nick != "" && s.Username != ""
}

// updateIrcPrefix MUST be called whenever the Nick field changes.
func (s *Session) updateIrcPrefix() {
	s.ircPrefix = irc.Prefix{Name: s.Nick}
}

type channel struct {
	// name is the (case-sensitive!) original name this channel had when it
	// was first created.
	name string

	topic string

	// members is kept in join order. The first member of a fresh channel
	// becomes its operator; broadcasts walk the slice front to back.
	members   []*Session
	operators map[*Session]bool

	// invited holds sessions whitelisted by INVITE. Entries are consumed
	// by the next JOIN that admits the session; a rejected JOIN leaves them.
	invited map[*Session]bool

	// Flag modes, indexed by their letter (currently 'i' and 't'). We
	// waste a few bytes per channel for clearer code.
	modes ['z']bool

	key       string // +k, empty when unset
	userLimit int    // +l, 0 when unset
}

func (c *channel) isMember(s *Session) bool {
	for _, member := range c.members {
		if member == s {
			return true
		}
	}
	return false
}

func (c *channel) isOperator(s *Session) bool {
	return c.operators[s]
}

// addMember admits s, as an operator if op is set. Adding an existing member
// or exceeding the user limit is a silent no-op; callers answer the
// appropriate numeric before admission, not after.
func (c *channel) addMember(s *Session, op bool) {
	if c.isMember(s) {
		return
	}
	if c.userLimit > 0 && len(c.members) >= c.userLimit {
		return
	}
	c.members = append(c.members, s)
	if op {
		c.operators[s] = true
	}
}

func (c *channel) removeMember(s *Session) {
	for idx, member := range c.members {
		if member == s {
			c.members = append(c.members[:idx], c.members[idx+1:]...)
			break
		}
	}
	delete(c.operators, s)
	delete(c.invited, s)
}

// IRCServer is the process-wide directory: every session, bound nickname and
// channel, plus the configuration they are checked against.
type IRCServer struct {
	mu sync.Mutex

	// sessions contains the state of every connection, keyed by the
	// connection's file descriptor.
	sessions map[int]*Session

	// nicks maps bound nicknames to their session. Keys are byte-exact;
	// only sessions with a non-empty nickname appear here.
	nicks map[string]*Session

	// channels maps channel names (byte-exact, leading '#') to channels.
	// Channels exist exactly as long as they have members.
	channels map[string]*channel

	// password is the connection password every session must supply via
	// PASS before it can authenticate.
	password string

	// ServerPrefix is the prefix for output messages that come from the
	// server, as opposed to from a client.
	ServerPrefix *irc.Prefix

	// ServerCreation is the time at which the IRCServer object was
	// created. Used for the RPL_CREATED message.
	ServerCreation time.Time

	Config config.Network
}

// NewIRCServer returns a new IRC server that answers with servername in its
// prefix and admits sessions presenting password.
func NewIRCServer(servername, password string, serverCreation time.Time) *IRCServer {
	return &IRCServer{
		sessions:       make(map[int]*Session),
		nicks:          make(map[string]*Session),
		channels:       make(map[string]*channel),
		password:       password,
		ServerPrefix:   &irc.Prefix{Name: servername},
		ServerCreation: serverCreation,
		Config:         config.DefaultConfig,
	}
}

// CreateSession creates a new session (equivalent to an IRC connection).
func (i *IRCServer) CreateSession(fd int, ip string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if got, limit := uint64(len(i.sessions)), i.Config.MaxSessions; limit > 0 && got >= limit {
		return ErrSessionLimitReached
	}
	i.sessions[fd] = &Session{
		Fd:       fd,
		IP:       ip,
		Hostname: ip,
		Channels: make(map[string]bool),
		Created:  time.Now(),
	}
	return nil
}

// DeleteSession tears down the session behind fd: its channels hear a QUIT,
// its memberships are removed (channels left empty disappear with it) and
// its nickname becomes available again. The returned reply batch carries the
// QUIT broadcast for the session's common channels.
func (i *IRCServer) DeleteSession(fd int) *Replyctx {
	i.mu.Lock()
	defer i.mu.Unlock()

	s, ok := i.sessions[fd]
	reply := &Replyctx{session: s}
	if !ok {
		return reply
	}

	if s.Nick != "" {
		i.sendCommonChannels(s, reply, &irc.Message{
			Prefix:  &s.ircPrefix,
			Command: irc.QUIT,
			Params:  []string{"Connection closed"},
		})
	}

	for _, c := range i.channels {
		c.removeMember(s)
		i.maybeDeleteChannel(c)
	}
	if s.Nick != "" && i.nicks[s.Nick] == s {
		delete(i.nicks, s.Nick)
	}
	delete(i.sessions, fd)
	return reply
}

// GetSession returns the session behind fd, or ErrNoSuchSession.
func (i *IRCServer) GetSession(fd int) (*Session, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if s, ok := i.sessions[fd]; ok {
		return s, nil
	}
	return nil, ErrNoSuchSession
}

// NumSessions returns the current number of sessions.
func (i *IRCServer) NumSessions() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sessions)
}

// NumChannels returns the current number of channels.
func (i *IRCServer) NumChannels() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.channels)
}

// maybeDeleteChannel destroys c if its last member just left. Empty channels
// are never reachable from the directory.
func (i *IRCServer) maybeDeleteChannel(c *channel) {
	if len(c.members) > 0 {
		return
	}
	delete(i.channels, c.name)
}

func nickOrStar(s *Session) string {
	if s.Nick == "" {
		return "*"
	}
	return s.Nick
}

// maybeWelcome latches the authenticated flag and emits the 001–004 welcome
// burst the first time a correct PASS, a nickname and a username are all
// present. The three can arrive in any order.
func (i *IRCServer) maybeWelcome(s *Session, reply *Replyctx) {
	if s.authenticated || !s.passwordOK || !s.registered() {
		return
	}
	s.authenticated = true

	i.sendUser(s, reply, &irc.Message{
		Prefix:  i.ServerPrefix,
		Command: irc.RPL_WELCOME,
		Params:  []string{s.Nick, "Welcome to the Internet Relay Network " + s.Nick},
	})
	i.sendUser(s, reply, &irc.Message{
		Prefix:  i.ServerPrefix,
		Command: irc.RPL_YOURHOST,
		Params:  []string{s.Nick, "Your host is " + i.ServerPrefix.Name + ", running version " + serverVersion},
	})
	i.sendUser(s, reply, &irc.Message{
		Prefix:  i.ServerPrefix,
		Command: irc.RPL_CREATED,
		Params:  []string{s.Nick, "This server was created " + i.ServerCreation.UTC().Format(time.RFC1123)},
	})
	i.sendUser(s, reply, &irc.Message{
		Prefix:  i.ServerPrefix,
		Command: irc.RPL_MYINFO,
		Params:  []string{s.Nick, i.ServerPrefix.Name, serverVersion, "o", "o"},
	})
}

// ProcessMessage modifies state in response to msg and returns the ordered
// batch of replies it generated. Pre-state common to all commands (known
// verb, authentication, parameter count) is enforced here; everything else
// is up to the individual handler.
func (i *IRCServer) ProcessMessage(fd int, msg *irc.Message) *Replyctx {
	i.mu.Lock()
	defer i.mu.Unlock()

	s, ok := i.sessions[fd]
	reply := &Replyctx{session: s}
	if !ok || msg == nil {
		return reply
	}

	command := strings.ToUpper(msg.Command)
	messagesProcessed.WithLabelValues(command).Inc()

	cmd, ok := Commands[command]
	if !ok {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_UNKNOWNCOMMAND,
			Params:  []string{"*", command, "Unknown command"},
		})
		return reply
	}

	if cmd.RequiresAuth && !s.authenticated {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NOTREGISTERED,
			Params:  []string{"*", "You have not registered"},
		})
		return reply
	}

	if len(msg.Params) < cmd.MinParams {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NEEDMOREPARAMS,
			Params:  []string{nickOrStar(s), command, "Not enough parameters"},
		})
		return reply
	}

	cmd.Func(i, s, reply, msg)
	return reply
}

// Reply is one rendered IRC line together with the set of connections it
// must be delivered to.
type Reply struct {
	Data string

	// InterestingFor enumerates the recipients by file descriptor.
	InterestingFor map[int]bool
}

// Replyctx is a reply context, i.e. the ordered replies accumulated while
// handling one message. A reply context object is passed to all cmd*
// functions and filled through the send* helpers.
type Replyctx struct {
	session  *Session
	Messages []*Reply

	// lastmsg tracks the last sent message, so that send() can return the
	// same reply multiple times when being called in a continuation.
	lastmsg *irc.Message
}

// send renders msg and appends it to reply.
func (i *IRCServer) send(reply *Replyctx, msg *irc.Message) *Reply {
	if reply.lastmsg == msg {
		return reply.Messages[len(reply.Messages)-1]
	}
	r := &Reply{
		Data:           msg.String(),
		InterestingFor: make(map[int]bool),
	}
	reply.Messages = append(reply.Messages, r)
	reply.lastmsg = msg
	return r
}

// sendUser sends msg to user.
func (i *IRCServer) sendUser(user *Session, reply *Replyctx, msg *irc.Message) *irc.Message {
	r := i.send(reply, msg)
	r.InterestingFor[user.Fd] = true
	return msg
}

// sendChannel sends msg to every member of c, in join order.
func (i *IRCServer) sendChannel(c *channel, reply *Replyctx, msg *irc.Message) *irc.Message {
	r := i.send(reply, msg)
	for _, member := range c.members {
		r.InterestingFor[member.Fd] = true
	}
	return msg
}

// sendChannelButOne sends msg to every member of c except user.
func (i *IRCServer) sendChannelButOne(c *channel, user *Session, reply *Replyctx, msg *irc.Message) *irc.Message {
	r := i.send(reply, msg)
	for _, member := range c.members {
		if member == user {
			continue
		}
		r.InterestingFor[member.Fd] = true
	}
	return msg
}

// sendCommonChannels sends msg to every user sharing at least one channel
// with user, excluding user itself.
func (i *IRCServer) sendCommonChannels(user *Session, reply *Replyctx, msg *irc.Message) *irc.Message {
	r := i.send(reply, msg)
	for channelname := range user.Channels {
		c, ok := i.channels[channelname]
		if !ok {
			continue
		}
		for _, member := range c.members {
			if member == user {
				continue
			}
			r.InterestingFor[member.Fd] = true
		}
	}
	return msg
}
