package ircserver

import (
	"testing"

	"gopkg.in/sorcix/irc.v2"
)

func TestModeQuery(t *testing.T) {
	i, fds := stdIRCServer()

	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev")),
		":plexirc.local 403 alice #dev :No such channel")

	i.ProcessMessage(fds["alice"], irc.ParseMessage("JOIN #dev"))
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev")),
		":plexirc.local 324 alice #dev +")

	i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +i"))
	i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +k sesame"))
	i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +l 5"))
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev")),
		":plexirc.local 324 alice #dev +ikl sesame 5")
}

func TestModeAuthorization(t *testing.T) {
	i, fds := stdIRCServer()

	i.ProcessMessage(fds["alice"], irc.ParseMessage("JOIN #dev"))
	i.ProcessMessage(fds["bob"], irc.ParseMessage("JOIN #dev"))

	mustMatchMsg(t,
		i.ProcessMessage(fds["carol"], irc.ParseMessage("MODE #dev +t")),
		":plexirc.local 442 carol #dev :You're not on that channel")
	mustMatchMsg(t,
		i.ProcessMessage(fds["bob"], irc.ParseMessage("MODE #dev +t")),
		":plexirc.local 482 bob #dev :You're not channel operator")
}

func TestModeToggles(t *testing.T) {
	i, fds := stdIRCServer()

	i.ProcessMessage(fds["alice"], irc.ParseMessage("JOIN #dev"))
	i.ProcessMessage(fds["bob"], irc.ParseMessage("JOIN #dev"))

	got := i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +it"))
	mustMatchMsg(t, got, ":alice MODE #dev +it")
	if !got.Messages[0].InterestingFor[fds["bob"]] {
		t.Fatalf("MODE change not broadcast to all members")
	}

	// Toggling back restores the prior state.
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev -it")),
		":alice MODE #dev -it")
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev")),
		":plexirc.local 324 alice #dev +")

	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +k sesame")),
		":alice MODE #dev +k sesame")
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev -k")),
		":alice MODE #dev -k")
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +l 5")),
		":alice MODE #dev +l 5")
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev -l")),
		":alice MODE #dev -l")
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev")),
		":plexirc.local 324 alice #dev +")
}

func TestModeOperatorGrant(t *testing.T) {
	i, fds := stdIRCServer()

	i.ProcessMessage(fds["alice"], irc.ParseMessage("JOIN #dev"))
	i.ProcessMessage(fds["bob"], irc.ParseMessage("JOIN #dev"))

	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +o carol")),
		":plexirc.local 401 alice carol :No such nick/channel")

	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +o bob")),
		":alice MODE #dev +o bob")
	mustMatchMsg(t,
		i.ProcessMessage(fds["bob"], irc.ParseMessage("MODE #dev +t")),
		":bob MODE #dev +t")

	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev -o bob")),
		":alice MODE #dev -o bob")
	mustMatchMsg(t,
		i.ProcessMessage(fds["bob"], irc.ParseMessage("MODE #dev -t")),
		":plexirc.local 482 bob #dev :You're not channel operator")
}

func TestModeErrors(t *testing.T) {
	i, fds := stdIRCServer()

	i.ProcessMessage(fds["alice"], irc.ParseMessage("JOIN #dev"))

	// An unknown letter stops the scan.
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +z")),
		":plexirc.local 472 alice z :is unknown mode char to me")

	// A parameter-taking mode without its parameter stops the scan.
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +k")),
		":plexirc.local 461 alice MODE :Not enough parameters")
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +l")),
		":plexirc.local 461 alice MODE :Not enough parameters")
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +o")),
		":plexirc.local 461 alice MODE :Not enough parameters")

	// Mixed signs apply in order; additions are summarized before
	// removals.
	i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev +i"))
	mustMatchMsg(t,
		i.ProcessMessage(fds["alice"], irc.ParseMessage("MODE #dev -i+t")),
		":alice MODE #dev +t-i")
}
