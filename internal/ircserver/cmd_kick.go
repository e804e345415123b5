package ircserver

import "gopkg.in/sorcix/irc.v2"

func init() {
	Commands["KICK"] = &ircCommand{
		Func:         (*IRCServer).cmdKick,
		MinParams:    2,
		RequiresAuth: true,
	}
}

func (i *IRCServer) cmdKick(s *Session, reply *Replyctx, msg *irc.Message) {
	channelname := msg.Params[0]
	c, ok := i.channels[channelname]
	if !ok {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NOSUCHCHANNEL,
			Params:  []string{s.Nick, channelname, "No such channel"},
		})
		return
	}

	if !c.isMember(s) {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NOTONCHANNEL,
			Params:  []string{s.Nick, channelname, "You're not on that channel"},
		})
		return
	}

	if !c.isOperator(s) {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_CHANOPRIVSNEEDED,
			Params:  []string{s.Nick, channelname, "You're not channel operator"},
		})
		return
	}

	target, ok := i.nicks[msg.Params[1]]
	if !ok {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NOSUCHNICK,
			Params:  []string{s.Nick, msg.Params[1], "No such nick/channel"},
		})
		return
	}

	if !c.isMember(target) {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_USERNOTINCHANNEL,
			Params:  []string{s.Nick, msg.Params[1], channelname, "They aren't on that channel"},
		})
		return
	}

	reason := s.Nick
	if len(msg.Params) > 2 {
		reason = msg.Trailing()
	}

	// Everyone hears the KICK, including the kicker and the target; only
	// then does the target leave.
	i.sendChannel(c, reply, &irc.Message{
		Prefix:  &s.ircPrefix,
		Command: irc.KICK,
		Params:  []string{channelname, target.Nick, reason},
	})

	c.removeMember(target)
	delete(target.Channels, channelname)
	i.maybeDeleteChannel(c)
}
