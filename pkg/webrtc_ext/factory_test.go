package webrtc_ext

import "testing"

func TestNewPeerConnectionFactory(t *testing.T) {
	factory, err := NewPeerConnectionFactory(Config{})
	if err != nil {
		t.Fatalf("failed to create factory: %v", err)
	}

	connection, err := factory.CreatePeerConnection()
	if err != nil {
		t.Fatalf("failed to create peer connection: %v", err)
	}
	defer connection.Close()
}

func TestNewPeerConnectionFactoryInvalidPortRange(t *testing.T) {
	_, err := NewPeerConnectionFactory(Config{PortRange: PortRange{Min: 9000, Max: 8000}})
	if err == nil {
		t.Fatal("expected an error for an inverted port range")
	}
}

func TestFactoryAppliesICEServers(t *testing.T) {
	factory, err := NewPeerConnectionFactory(Config{ICEServers: []string{"stun:stun.example.com:3478"}})
	if err != nil {
		t.Fatalf("failed to create factory: %v", err)
	}

	servers := factory.configuration.ICEServers
	if len(servers) != 1 || len(servers[0].URLs) != 1 {
		t.Fatalf("got %+v, expected one ICE server", servers)
	}
	if servers[0].URLs[0] != "stun:stun.example.com:3478" {
		t.Errorf("got %q, expected the configured URL", servers[0].URLs[0])
	}
}
