// Package webrtc implements the secondary peer-data-channel transport: a
// single active peer connection negotiated via SDP offer/answer, handed
// off to the transport package's Swappable writer once its data channel
// opens.
package webrtc

import (
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"
)

// DCHandler is called when the data channel opens on the active peer
// connection.
type DCHandler func(dc *webrtc.DataChannel)

// PeerManager negotiates and tracks the single peer connection used for
// the secondary transport.
type PeerManager struct {
	mu         sync.Mutex
	pc         *webrtc.PeerConnection
	iceServers []webrtc.ICEServer
	dcHandler  DCHandler
}

// NewPeerManager creates a PeerManager with the given ICE servers. Pass
// nil for host-only ICE (same-LAN only).
func NewPeerManager(iceServers []webrtc.ICEServer) *PeerManager {
	return &PeerManager{iceServers: iceServers}
}

// OnDC registers a callback fired when the data channel opens.
func (pm *PeerManager) OnDC(handler DCHandler) {
	pm.mu.Lock()
	pm.dcHandler = handler
	pm.mu.Unlock()
}

// HandleOffer processes a browser's SDP offer, replacing any prior peer
// connection, and returns the answer SDP.
func (pm *PeerManager) HandleOffer(sdpOffer string) (string, error) {
	config := webrtc.Configuration{ICEServers: pm.iceServers}

	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return "", fmt.Errorf("new peer connection: %w", err)
	}

	pm.mu.Lock()
	if pm.pc != nil {
		pm.pc.Close()
	}
	pm.pc = pc
	pm.mu.Unlock()

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() {
			log.Printf("[P2P] data channel %q opened", dc.Label())
			pm.mu.Lock()
			handler := pm.dcHandler
			pm.mu.Unlock()
			if handler != nil {
				handler(dc)
			}
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("[P2P] peer connection state: %s", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			pm.mu.Lock()
			if pm.pc == pc {
				pm.pc = nil
			}
			pm.mu.Unlock()
		}
	})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdpOffer}
	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return "", fmt.Errorf("set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", fmt.Errorf("set local description: %w", err)
	}
	<-gatherComplete

	localDesc := pc.LocalDescription()
	if localDesc == nil {
		pc.Close()
		return "", fmt.Errorf("no local description after ICE gathering")
	}
	return localDesc.SDP, nil
}

// Close shuts down the active peer connection, if any.
func (pm *PeerManager) Close() {
	pm.mu.Lock()
	pc := pm.pc
	pm.pc = nil
	pm.mu.Unlock()
	if pc != nil {
		pc.Close()
	}
}
