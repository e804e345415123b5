package ircserver

import (
	"strconv"

	"gopkg.in/sorcix/irc.v2"
)

func init() {
	Commands["MODE"] = &ircCommand{
		Func:         (*IRCServer).cmdMode,
		MinParams:    1,
		RequiresAuth: true,
	}
}

func (i *IRCServer) cmdMode(s *Session, reply *Replyctx, msg *irc.Message) {
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

	// Bare "MODE #chan" queries the current modes.
	if len(msg.Params) == 1 {
		modestr := "+"
		var params []string
		for mode := 'A'; mode < 'z'; mode++ {
			if c.modes[mode] {
				modestr += string(mode)
			}
		}
		if c.key != "" {
			modestr += "k"
			params = append(params, c.key)
		}
		if c.userLimit > 0 {
			modestr += "l"
			params = append(params, strconv.Itoa(c.userLimit))
		}
		i.sendUser(s, reply, &irc.Message{
			Prefix:  i.ServerPrefix,
			Command: irc.RPL_CHANNELMODEIS,
			Params:  append([]string{s.Nick, channelname, modestr}, params...),
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

	// The mode string is scanned left to right under a +/- sign state;
	// parameter-taking modes consume from the positional parameter queue.
	// An unknown letter (472) or a missing parameter (461) stops the scan;
	// whatever was applied before stays applied but is not broadcast.
	params := msg.Params[2:]
	var applied modeCmds
	adding := true
	for _, char := range msg.Params[1] {
		sign := "+"
		if !adding {
			sign = "-"
		}
		switch char {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'i', 't':
			c.modes[char] = adding
			applied = append(applied, modeCmd{Mode: sign + string(char)})
		case 'k':
			if !adding {
				c.key = ""
				applied = append(applied, modeCmd{Mode: "-k"})
				break
			}
			if len(params) == 0 {
				i.sendUser(s, reply, &irc.Message{
					Prefix:  i.ServerPrefix,
					Command: irc.ERR_NEEDMOREPARAMS,
					Params:  []string{s.Nick, "MODE", "Not enough parameters"},
				})
				return
			}
			c.key = params[0]
			applied = append(applied, modeCmd{Mode: "+k", Param: params[0]})
			params = params[1:]
		case 'o':
			if len(params) == 0 {
				i.sendUser(s, reply, &irc.Message{
					Prefix:  i.ServerPrefix,
					Command: irc.ERR_NEEDMOREPARAMS,
					Params:  []string{s.Nick, "MODE", "Not enough parameters"},
				})
				return
			}
			target, ok := i.nicks[params[0]]
			if !ok || !c.isMember(target) {
				i.sendUser(s, reply, &irc.Message{
					Prefix:  i.ServerPrefix,
					Command: irc.ERR_NOSUCHNICK,
					Params:  []string{s.Nick, params[0], "No such nick/channel"},
				})
				return
			}
			if adding {
				c.operators[target] = true
			} else {
				delete(c.operators, target)
			}
			applied = append(applied, modeCmd{Mode: sign + "o", Param: params[0]})
			params = params[1:]
		case 'l':
			if !adding {
				c.userLimit = 0
				applied = append(applied, modeCmd{Mode: "-l"})
				break
			}
			if len(params) == 0 {
				i.sendUser(s, reply, &irc.Message{
					Prefix:  i.ServerPrefix,
					Command: irc.ERR_NEEDMOREPARAMS,
					Params:  []string{s.Nick, "MODE", "Not enough parameters"},
				})
				return
			}
			if limit, err := strconv.Atoi(params[0]); err == nil && limit > 0 {
				c.userLimit = limit
				applied = append(applied, modeCmd{Mode: "+l", Param: params[0]})
			}
			params = params[1:]
		default:
			i.sendUser(s, reply, &irc.Message{
				Prefix:  i.ServerPrefix,
				Command: irc.ERR_UNKNOWNMODE,
				Params:  []string{s.Nick, string(char), "is unknown mode char to me"},
			})
			return
		}
	}

	if len(applied) == 0 {
		return
	}
	i.sendChannel(c, reply, &irc.Message{
		Prefix:  &s.ircPrefix,
		Command: irc.MODE,
		Params:  append([]string{channelname}, applied.IRCParams()...),
	})
}
