package netloop

import "bytes"

// conn tracks the transport state of one accepted connection: the raw file
// descriptor, the peer address, and the inbound/outbound byte queues. The
// framing unit is a bare '\n'; a preceding '\r' is stripped on extraction.
type conn struct {
	fd int
	ip string

	inbound  []byte
	outbound []byte

	// wantWrite mirrors whether EPOLLOUT is currently registered for fd.
	wantWrite bool
}

func (c *conn) appendInbound(p []byte) {
	c.inbound = append(c.inbound, p...)
}

// extractLine returns the next complete line, excluding the terminating
// '\n' and an optional preceding '\r', and removes the consumed prefix from
// the inbound queue. ok is false (and the queue untouched) when no complete
// line is buffered.
func (c *conn) extractLine() (line []byte, ok bool) {
	idx := bytes.IndexByte(c.inbound, '\n')
	if idx == -1 {
		return nil, false
	}
	line = c.inbound[:idx]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	line = append([]byte(nil), line...)
	c.inbound = c.inbound[idx+1:]
	return line, true
}

func (c *conn) appendOutbound(p []byte) {
	c.outbound = append(c.outbound, p...)
}

// consumeOutbound drops the first n bytes, i.e. the prefix a send managed to
// put on the wire.
func (c *conn) consumeOutbound(n int) {
	if n >= len(c.outbound) {
		c.outbound = c.outbound[:0]
		return
	}
	c.outbound = c.outbound[:copy(c.outbound, c.outbound[n:])]
}
