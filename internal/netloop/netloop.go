// Package netloop drives all socket I/O for the server: a single-threaded
// epoll loop accepts connections, frames '\n'-terminated lines out of
// non-blocking reads, feeds them to the protocol state machine and delivers
// the reply batches without ever blocking on a peer.
//
// All server state is only ever touched from the loop goroutine; the one
// blocking call is the readiness wait.
package netloop

import (
	"fmt"
	"net"

	"github.com/armon/go-metrics"
	"github.com/stapelberg/glog"
	"golang.org/x/sys/unix"
	"gopkg.in/sorcix/irc.v2"

	"github.com/plexirc/plexirc/internal/ircserver"
)

// recvChunk is the size of the stack buffer each readable notification is
// drained into. A single notification may still yield many lines.
const recvChunk = 1024

// Loop multiplexes the listening socket and all client connections.
type Loop struct {
	epfd     int
	listenfd int
	wakefd   int

	conns map[int]*conn

	srv *ircserver.IRCServer

	// receiveQueueBytes caps a connection's unframed inbound bytes; a peer
	// exceeding it without completing a line is disconnected.
	receiveQueueBytes int
}

// NewLoop binds a non-blocking listener to port (0 picks an ephemeral port)
// and prepares the readiness-watch set. Run starts serving.
func NewLoop(port int, srv *ircserver.IRCServer, receiveQueueBytes int) (*Loop, error) {
	listenfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %v", err)
	}
	if err := unix.SetsockoptInt(listenfd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(listenfd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %v", err)
	}
	if err := unix.Bind(listenfd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(listenfd)
		return nil, fmt.Errorf("bind port %d: %v", port, err)
	}
	if err := unix.Listen(listenfd, unix.SOMAXCONN); err != nil {
		unix.Close(listenfd)
		return nil, fmt.Errorf("listen: %v", err)
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(listenfd)
		return nil, fmt.Errorf("epoll_create1: %v", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(listenfd)
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %v", err)
	}

	for _, fd := range []int{listenfd, wakefd} {
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}); err != nil {
			unix.Close(listenfd)
			unix.Close(wakefd)
			unix.Close(epfd)
			return nil, fmt.Errorf("epoll_ctl: %v", err)
		}
	}

	return &Loop{
		epfd:              epfd,
		listenfd:          listenfd,
		wakefd:            wakefd,
		conns:             make(map[int]*conn),
		srv:               srv,
		receiveQueueBytes: receiveQueueBytes,
	}, nil
}

// Port reports the TCP port the listener is bound to.
func (l *Loop) Port() int {
	sa, err := unix.Getsockname(l.listenfd)
	if err != nil {
		return 0
	}
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return sa4.Port
	}
	return 0
}

// Run serves until Stop is called. It returns nil on a requested stop and
// the readiness-wait error on a fatal one; either way every socket has been
// closed exactly once by the time it returns.
func (l *Loop) Run() error {
	events := make([]unix.EpollEvent, 64)
	for {
		n, err := unix.EpollWait(l.epfd, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			l.shutdown()
			return fmt.Errorf("epoll_wait: %v", err)
		}

		for _, ev := range events[:n] {
			fd := int(ev.Fd)

			if fd == l.wakefd {
				l.shutdown()
				return nil
			}
			if fd == l.listenfd {
				l.acceptAll()
				continue
			}

			c, ok := l.conns[fd]
			if !ok {
				continue
			}
			if ev.Events&unix.EPOLLIN != 0 {
				l.readable(c)
				if _, ok := l.conns[fd]; !ok {
					continue
				}
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				l.flush(c)
				if _, ok := l.conns[fd]; !ok {
					continue
				}
			}
			if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				l.disconnect(c)
			}
		}
	}
}

// Stop wakes the loop; Run tears everything down and returns.
func (l *Loop) Stop() {
	var one [8]byte
	one[0] = 1
	unix.Write(l.wakefd, one[:])
}

// acceptAll accepts as many connections as succeed without blocking.
func (l *Loop) acceptAll() {
	for {
		fd, sa, err := unix.Accept4(l.listenfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err != unix.EAGAIN {
				glog.Errorf("accept: %v", err)
			}
			return
		}
		ip := peerIP(sa)

		if err := l.srv.CreateSession(fd, ip); err != nil {
			glog.Errorf("refusing connection from %s: %v", ip, err)
			unix.Close(fd)
			continue
		}
		if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}); err != nil {
			glog.Errorf("epoll_ctl fd %d: %v", fd, err)
			l.srv.DeleteSession(fd)
			unix.Close(fd)
			continue
		}
		l.conns[fd] = &conn{fd: fd, ip: ip}
		metrics.IncrCounter([]string{"connections", "accepted"}, 1)
		glog.Infof("new connection from %s (fd %d)", ip, fd)
	}
}

func peerIP(sa unix.Sockaddr) string {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(sa.Addr[:]).String()
	case *unix.SockaddrInet6:
		return net.IP(sa.Addr[:]).String()
	}
	return "unknown"
}

// readable drains one recv chunk into the connection's inbound queue and
// dispatches every complete line. recv of 0 bytes (EOF) or a hard error
// disconnects.
func (l *Loop) readable(c *conn) {
	var buf [recvChunk]byte
	n, err := unix.Read(c.fd, buf[:])
	if err == unix.EAGAIN {
		return
	}
	if err != nil || n == 0 {
		if err != nil {
			glog.Infof("read from fd %d: %v", c.fd, err)
		}
		l.disconnect(c)
		return
	}
	metrics.IncrCounter([]string{"bytes", "received"}, float32(n))
	c.appendInbound(buf[:n])
	l.drainLines(c)
}

func (l *Loop) drainLines(c *conn) {
	for {
		line, ok := c.extractLine()
		if !ok {
			if len(c.inbound) > l.receiveQueueBytes {
				glog.Errorf("fd %d exceeded the receive queue cap (%d buffered bytes), disconnecting", c.fd, len(c.inbound))
				l.disconnect(c)
			}
			return
		}
		if len(line) == 0 {
			continue
		}
		msg := irc.ParseMessage(string(line))
		if msg == nil {
			continue
		}
		l.deliver(l.srv.ProcessMessage(c.fd, msg))
		if _, ok := l.conns[c.fd]; !ok {
			return
		}
	}
}

// deliver appends each reply to every recipient's outbound queue, in reply
// order, and then attempts one opportunistic flush per touched connection.
// Bytes the socket does not take immediately stay queued and drain on the
// next writable notification.
func (l *Loop) deliver(reply *ircserver.Replyctx) {
	touched := make(map[int]*conn)
	for _, msg := range reply.Messages {
		wire := append([]byte(msg.Data), '\r', '\n')
		for fd := range msg.InterestingFor {
			c, ok := l.conns[fd]
			if !ok {
				continue
			}
			c.appendOutbound(wire)
			touched[fd] = c
		}
	}
	for _, c := range touched {
		l.flush(c)
	}
}

// flush writes as much pending outbound as the socket accepts right now.
func (l *Loop) flush(c *conn) {
	for len(c.outbound) > 0 {
		n, err := unix.Write(c.fd, c.outbound)
		if err == unix.EAGAIN {
			break
		}
		if err != nil {
			// The next readiness notification on this fd reports the
			// failure; until then the bytes stay queued.
			glog.Infof("write to fd %d: %v", c.fd, err)
			break
		}
		metrics.IncrCounter([]string{"bytes", "sent"}, float32(n))
		c.consumeOutbound(n)
	}
	l.updateWriteInterest(c)
}

// updateWriteInterest registers EPOLLOUT while outbound bytes are pending
// and drops it once the queue drained.
func (l *Loop) updateWriteInterest(c *conn) {
	want := len(c.outbound) > 0
	if want == c.wantWrite {
		return
	}
	events := uint32(unix.EPOLLIN)
	if want {
		events |= unix.EPOLLOUT
	}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, c.fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(c.fd),
	}); err != nil {
		glog.Errorf("epoll_ctl fd %d: %v", c.fd, err)
		return
	}
	c.wantWrite = want
}

// disconnect tears one connection down: the directory broadcasts the QUIT
// to the session's channels, then the fd leaves the watch set and is closed
// exactly once.
func (l *Loop) disconnect(c *conn) {
	if _, ok := l.conns[c.fd]; !ok {
		return
	}
	delete(l.conns, c.fd)
	l.deliver(l.srv.DeleteSession(c.fd))
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
	unix.Close(c.fd)
	metrics.IncrCounter([]string{"connections", "closed"}, 1)
	glog.Infof("connection from %s closed (fd %d)", c.ip, c.fd)
}

// shutdown closes every socket. Sessions are torn down through the
// directory so that its invariants hold until the very end.
func (l *Loop) shutdown() {
	for fd, c := range l.conns {
		delete(l.conns, fd)
		l.srv.DeleteSession(fd)
		unix.Close(c.fd)
	}
	unix.Close(l.listenfd)
	unix.Close(l.wakefd)
	unix.Close(l.epfd)
}
