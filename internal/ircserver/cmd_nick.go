package ircserver

import "gopkg.in/sorcix/irc.v2"

func init() {
	Commands["NICK"] = &ircCommand{
		Func: (*IRCServer).cmdNick,
	}
}

func (i *IRCServer) cmdNick(s *Session, reply *Replyctx, msg *irc.Message) {
	var nick string
	if len(msg.Params) > 0 {
		nick = msg.Params[0]
	}
	if nick == "" {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NONICKNAMEGIVEN,
			Params:  []string{"*", "No nickname given"},
		})
		return
	}

	if _, ok := i.nicks[nick]; ok {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NICKNAMEINUSE,
			Params:  []string{nickOrStar(s), nick, "Nickname is already in use"},
		})
		return
	}

	oldPrefix := s.ircPrefix
	wasRegistered := s.registered()

	if s.Nick != "" {
		delete(i.nicks, s.Nick)
	}
	s.Nick = nick
	i.nicks[nick] = s
	s.updateIrcPrefix()

	if wasRegistered {
		// Channel membership is tracked per session, so a rename needs no
		// channel fixup, only propagation to everyone who can see the user.
		i.sendCommonChannels(s, reply,
			i.sendUser(s, reply, &irc.Message{
				Prefix:  &oldPrefix,
				Command: irc.NICK,
				Params:  []string{nick},
			}))
		return
	}

	i.maybeWelcome(s, reply)
}
