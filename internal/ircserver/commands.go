package ircserver

import "gopkg.in/sorcix/irc.v2"

// Commands maps an upper-case IRC verb to its handler. Entries are
// registered from init functions in the cmd_*.go files, so adding a verb
// never means editing the dispatcher.
var Commands = make(map[string]*ircCommand)

type ircCommand struct {
	Func func(*IRCServer, *Session, *Replyctx, *irc.Message)

	// MinParams ensures that enough parameters were specified.
	// irc.ERR_NEEDMOREPARAMS is returned in case less than MinParams
	// parameters were found, otherwise Func is called.
	MinParams int

	// RequiresAuth rejects the command with irc.ERR_NOTREGISTERED until
	// the session has completed PASS + NICK + USER.
	RequiresAuth bool
}
