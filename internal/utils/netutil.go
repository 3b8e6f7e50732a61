package utils

import (
	"net"
	"strconv"
	"time"
)

/**
 * Check whether something accepts TCP connections on a local port
 * @param {int} port - Port to probe on localhost
 * @param {time.Duration} timeout - Connect timeout, must be bounded
 * @returns {bool} true when a listener accepted the connection
 * @description
 * - A refused or timed out connect means nobody is listening
 */
func CheckPortConnectable(port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = time.Second
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

