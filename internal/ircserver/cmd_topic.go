package ircserver

import (
	"strings"

	"gopkg.in/sorcix/irc.v2"
)

func init() {
	Commands["TOPIC"] = &ircCommand{
		Func:         (*IRCServer).cmdTopic,
		MinParams:    1,
		RequiresAuth: true,
	}
}

func (i *IRCServer) cmdTopic(s *Session, reply *Replyctx, msg *irc.Message) {
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

	newTopic := strings.Join(msg.Params[1:], " ")

	// "TOPIC #chan", i.e. read the topic.
	if newTopic == "" {
		if c.topic == "" {
			i.sendUser(s, reply, &irc.Message{
				Prefix:  i.ServerPrefix,
				Command: irc.RPL_NOTOPIC,
				Params:  []string{s.Nick, channelname, "No topic is set"},
			})
			return
		}
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.RPL_TOPIC,
			Params:  []string{s.Nick, channelname, c.topic},
		})
		return
	}

	if c.modes['t'] && !c.isOperator(s) {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_CHANOPRIVSNEEDED,
			Params:  []string{s.Nick, channelname, "You're not channel operator"},
		})
		return
	}

	c.topic = newTopic

	i.sendChannel(c, reply, &irc.Message{
		Prefix:  &s.ircPrefix,
		Command: irc.TOPIC,
		Params:  []string{channelname, newTopic},
	})
}
