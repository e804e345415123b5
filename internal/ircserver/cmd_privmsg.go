package ircserver

import (
	"strings"

	"gopkg.in/sorcix/irc.v2"
)

func init() {
	Commands["PRIVMSG"] = &ircCommand{
		Func:         (*IRCServer).cmdPrivmsg,
		MinParams:    2,
		RequiresAuth: true,
	}
}

func (i *IRCServer) cmdPrivmsg(s *Session, reply *Replyctx, msg *irc.Message) {
	target := msg.Params[0]

	if strings.HasPrefix(target, "#") {
		c, ok := i.channels[target]
		if !ok {
			i.sendUser(s, reply, &irc.Message{
				Prefix:  i.ServerPrefix,
				Command: irc.ERR_NOSUCHCHANNEL,
				Params:  []string{s.Nick, target, "No such channel"},
			})
			return
		}
		if !c.isMember(s) {
			i.sendUser(s, reply, &irc.Message{
				Prefix:  i.ServerPrefix,
				Command: irc.ERR_CANNOTSENDTOCHAN,
				Params:  []string{s.Nick, target, "Cannot send to channel"},
			})
			return
		}
		i.sendChannelButOne(c, s, reply, &irc.Message{
			Prefix:  &s.ircPrefix,
			Command: irc.PRIVMSG,
			Params:  []string{target, msg.Trailing()},
		})
		return
	}

	session, ok := i.nicks[target]
	if !ok {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NOSUCHNICK,
			Params:  []string{s.Nick, target, "No such nick/channel"},
		})
		return
	}
	i.sendUser(session, reply, &irc.Message{
		Prefix:  &s.ircPrefix,
		Command: irc.PRIVMSG,
		Params:  []string{target, msg.Trailing()},
	})
}
