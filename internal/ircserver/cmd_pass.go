package ircserver

import (
	"strings"

	"gopkg.in/sorcix/irc.v2"
)

func init() {
	Commands["PASS"] = &ircCommand{
		Func:      (*IRCServer).cmdPass,
		MinParams: 1,
	}
}

func (i *IRCServer) cmdPass(s *Session, reply *Replyctx, msg *irc.Message) {
	if strings.Join(msg.Params, " ") != i.password {
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.ERR_PASSWDMISMATCH,
			Params:  []string{"*", "Password incorrect"},
		})
		return
	}

	// A correct PASS is accepted silently, per RFC 1459. It also sticks
	// when it arrives after NICK/USER, so the three commands may come in
	// any order.
	s.passwordOK = true
	i.maybeWelcome(s, reply)
}
