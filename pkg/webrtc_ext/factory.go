package webrtc_ext

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// Peer connection factory is used to construct new (pre-configured) peer connections.
type PeerConnectionFactory struct {
	api           *webrtc.API
	configuration webrtc.Configuration
}

func NewPeerConnectionFactory(config Config) (*PeerConnectionFactory, error) {
	api, err := createWebRTCAPI(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC API: %w", err)
	}

	configuration := webrtc.Configuration{}
	if len(config.ICEServers) > 0 {
		configuration.ICEServers = []webrtc.ICEServer{{URLs: config.ICEServers}}
	}

	return &PeerConnectionFactory{api, configuration}, nil
}

// Creates a peer connection backed by the shared API.
func (f *PeerConnectionFactory) CreatePeerConnection() (*webrtc.PeerConnection, error) {
	return f.api.NewPeerConnection(f.configuration)
}
