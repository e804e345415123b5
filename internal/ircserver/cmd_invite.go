package ircserver

import "gopkg.in/sorcix/irc.v2"

func init() {
	Commands["INVITE"] = &ircCommand{
		Func:         (*IRCServer).cmdInvite,
		MinParams:    2,
		RequiresAuth: true,
	}
}

func (i *IRCServer) cmdInvite(s *Session, reply *Replyctx, msg *irc.Message) {
	nickname := msg.Params[0]
	channelname := msg.Params[1]

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

	target, ok := i.nicks[nickname]
	if !ok {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_NOSUCHNICK,
			Params:  []string{s.Nick, nickname, "No such nick/channel"},
		})
		return
	}

	if c.isMember(target) {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_USERONCHANNEL,
			Params:  []string{s.Nick, target.Nick, channelname, "is already on channel"},
		})
		return
	}

	// The whitelist entry satisfies a later +i check and is consumed by
	// the target's next successful JOIN.
	c.invited[target] = true

	i.sendUser(target, reply, &irc.Message{
		Prefix:  &s.ircPrefix,
		Command: irc.INVITE,
		Params:  []string{target.Nick, channelname},
	})
	i.sendUser(s, reply, &irc.Message{
		Prefix:  i.ServerPrefix,
		Command: irc.RPL_INVITING,
		Params:  []string{s.Nick, target.Nick, channelname},
	})
}
