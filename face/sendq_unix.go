//go:build linux

package face

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	fwlog "github.com/lci-net/lcifwd/std/log"
)

// syscallConn is satisfied by *net.TCPConn, *net.UDPConn, and
// *net.UnixConn.
type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// sendQueueSize reports the kernel send-queue depth of conn via
// ioctl(SIOCOUTQ), ported from the teacher's
// impl.SyscallGetSocketSendQueueSize (the unix variant of that file
// was not part of the retrieved source, so this is written directly
// against the SIOCOUTQ ioctl it wraps).
func sendQueueSize(conn net.Conn) uint64 {
	sc, ok := conn.(syscallConn)
	if !ok {
		return 0
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		fwlog.Log.Warn(conn, "unable to get raw connection to read socket send-queue size", "err", err)
		return 0
	}

	var size int
	var ctrlErr error
	err = raw.Control(func(fd uintptr) {
		size, ctrlErr = unix.IoctlGetInt(int(fd), unix.SIOCOUTQ)
	})
	if err != nil || ctrlErr != nil {
		return 0
	}
	if size < 0 {
		return 0
	}
	return uint64(size)
}
