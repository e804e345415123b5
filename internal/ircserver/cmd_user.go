package ircserver

import "gopkg.in/sorcix/irc.v2"

func init() {
	Commands["USER"] = &ircCommand{
		Func:      (*IRCServer).cmdUser,
		MinParams: 1,
	}
}

func (i *IRCServer) cmdUser(s *Session, reply *Replyctx, msg *irc.Message) {
	// We keep the username for the registration check and the realname
	// because some people actually set it.
	s.Username = msg.Params[0]
	if len(msg.Params) > 1 {
		s.Realname = msg.Trailing()
	} else {
		s.Realname = "Unknown"
	}
	i.maybeWelcome(s, reply)
}
