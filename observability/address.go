package observability

import "net"

// GetOutboundIP -> the local address used for outbound traffic, "" when the host has no route
func GetOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer func() {
		_ = conn.Close()
	}()
	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return localAddr.IP.String()
}

// Address joins the outbound IP and port, leaving the port off when it is empty.
func Address(port string) string {
	ip := GetOutboundIP()
	if port == "" {
		return ip
	}
	return net.JoinHostPort(ip, port)
}
