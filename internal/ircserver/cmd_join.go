package ircserver

import (
	"strings"

	"gopkg.in/sorcix/irc.v2"
)

func init() {
	Commands["JOIN"] = &ircCommand{
		Func:         (*IRCServer).cmdJoin,
		MinParams:    1,
		RequiresAuth: true,
	}
}

func (i *IRCServer) cmdJoin(s *Session, reply *Replyctx, msg *irc.Message) {
	channelname := msg.Params[0]
	if !strings.HasPrefix(channelname, "#") {
		channelname = "#" + channelname
	}
	var key string
	if len(msg.Params) > 1 {
		key = msg.Params[1]
	}

	c, ok := i.channels[channelname]
	if !ok {
		if got, limit := uint64(len(i.channels)), i.Config.MaxChannels; limit > 0 && got >= limit {
			i.sendUser(s, reply, &irc.Message{
				Prefix:  i.ServerPrefix,
				Command: irc.ERR_NOSUCHCHANNEL,
				Params:  []string{s.Nick, channelname, "No such channel"},
			})
			return
		}
		c = &channel{
			name:      channelname,
			operators: make(map[*Session]bool),
			invited:   make(map[*Session]bool),
		}
		i.channels[channelname] = c
	} else {
		if c.isMember(s) {
			return
		}
		if c.key != "" && key != c.key {
			i.sendUser(s, reply, &irc.Message{
				Prefix:  i.ServerPrefix,
				Command: irc.ERR_BADCHANNELKEY,
				Params:  []string{s.Nick, channelname, "Cannot join channel (+k)"},
			})
			return
		}
		if c.modes['i'] && !c.invited[s] {
			i.sendUser(s, reply, &irc.Message{
				Prefix:  i.ServerPrefix,
				Command: irc.ERR_INVITEONLYCHAN,
				Params:  []string{s.Nick, channelname, "Cannot join channel (+i)"},
			})
			return
		}
		if c.userLimit > 0 && len(c.members) >= c.userLimit {
			i.sendUser(s, reply, &irc.Message{
				Prefix:  i.ServerPrefix,
				Command: irc.ERR_CHANNELISFULL,
				Params:  []string{s.Nick, channelname, "Cannot join channel (+l)"},
			})
			return
		}
	}

	// Invites are only valid once.
	delete(c.invited, s)

	// The first member of a fresh channel becomes its operator.
	c.addMember(s, len(c.members) == 0)
	s.Channels[channelname] = true

	i.sendChannel(c, reply, &irc.Message{
		Prefix:  &s.ircPrefix,
		Command: irc.JOIN,
		Params:  []string{channelname},
	})
}
