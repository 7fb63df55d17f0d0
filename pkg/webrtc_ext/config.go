package webrtc_ext

// Configuration of the WebRTC API for the SFU.
type Config struct {
	// STUN/TURN servers handed to every peer connection.
	ICEServers []string `yaml:"iceServers"`
	// Public IP addresses of the SFU, for 1:1 NAT mapping.
	PublicIPs []string `yaml:"ipAddresses"`
	// UDP port range used for media. Zero means ephemeral ports.
	PortRange PortRange `yaml:"portRange"`
}

type PortRange struct {
	Min uint16 `yaml:"min"`
	Max uint16 `yaml:"max"`
}
