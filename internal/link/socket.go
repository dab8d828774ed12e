package link

import (
	"context"
	"io"
	"log"
	"net"
	"time"
)

// TCPDialer returns a Dialer for a network-bridged sniffer unit.
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (io.ReadCloser, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		configureKeepalive(conn, addr)
		return conn, nil
	}
}

// configureKeepalive tightens TCP keepalive so dead bridges are noticed in
// seconds rather than kernel-default minutes.
func configureKeepalive(conn net.Conn, addr string) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		log.Printf("Warning: failed to set keepalive for %s: %v", addr, err)
	}
	if err := tcpConn.SetKeepAlivePeriod(2 * time.Second); err != nil {
		log.Printf("Warning: failed to set keepalive period for %s: %v", addr, err)
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		log.Printf("Warning: failed to set no delay for %s: %v", addr, err)
	}
}

// SocketRemediation is the guidance surfaced when the network bridge is
// unreachable.
func SocketRemediation(addr string) []string {
	return []string{
		"Check that the bridge host is powered and on the network",
		"Verify the configured address: " + addr,
		"Confirm no firewall is blocking the bridge port",
	}
}
