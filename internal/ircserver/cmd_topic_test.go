package ircserver

import (
	"testing"

	"gopkg.in/sorcix/irc.v2"
)

func TestTopic(t *testing.T) {
	i, fds := stdIRCServer()

	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("TOPIC #dev")),
		":plexirc.local 403 alice #dev :No such channel")

	i.ProcessMessage(fds["alice"], irc.ParseMessage("JOIN #dev"))
	i.ProcessMessage(fds["bob"], irc.ParseMessage("JOIN #dev"))

	mustMatchMsg(t,
		i.ProcessMessage(fds["carol"], irc.ParseMessage("TOPIC #dev")),
		":plexirc.local 442 carol #dev :You're not on that channel")

	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("TOPIC #dev")),
		":plexirc.local 331 alice #dev :No topic is set")

	got := i.ProcessMessage(fds["bob"], irc.ParseMessage("TOPIC #dev :standup at ten"))
	mustMatchMsg(t, got, ":bob TOPIC #dev :standup at ten")
	if !got.Messages[0].InterestingFor[fds["alice"]] || !got.Messages[0].InterestingFor[fds["bob"]] {
		t.Fatalf("TOPIC change not broadcast to all members")
	}

	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("TOPIC #dev")),
		":plexirc.local 332 alice #dev :standup at ten")
}

func TestTopicRestricted(t *testing.T) {
	i, fds := stdIRCServer()

	i.ProcessMessage(fds["alice"], irc.ParseMessage("JOIN #dev"))
	i.ProcessMessage(fds["bob"], irc.ParseMessage("JOIN #dev"))
	i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +t"))

	// With +t set, only operators may change the topic; anyone may read it.
	mustMatchMsg(t,
		i.ProcessMessage(fds["bob"], irc.ParseMessage("TOPIC #dev :my topic")),
		":plexirc.local 482 bob #dev :You're not channel operator")
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("TOPIC #dev :release friday")),
		":alice TOPIC #dev :release friday")
	mustMatchMsg(t,
		i.ProcessMessage(fds["bob"], irc.ParseMessage("TOPIC #dev")),
		":plexirc.local 332 bob #dev :release friday")

	i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev -t"))
	mustMatchMsg(t,
		i.ProcessMessage(fds["bob"], irc.ParseMessage("TOPIC #dev :my topic")),
		":bob TOPIC #dev :my topic")
}
