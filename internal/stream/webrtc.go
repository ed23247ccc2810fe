package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/rtradio/internal/audio"
)

// OpusConfig controls the encoder used for every WebRTC peer.
type OpusConfig struct {
	Bitrate        int  // bits per second
	FEC            bool // in-band forward error correction
	PacketLossPerc int  // expected loss, tunes FEC redundancy
}

// DefaultOpusConfig is tuned for music over lossy networks.
var DefaultOpusConfig = OpusConfig{Bitrate: 128000, FEC: true, PacketLossPerc: 5}

// CheckOpusFormat reports whether f can be encoded as Opus. Opus takes
// 8, 12, 16, 24 or 48 kHz with one or two channels.
func CheckOpusFormat(f audio.Format) error {
	switch f.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return fmt.Errorf("stream: opus cannot encode %d Hz", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("stream: opus cannot encode %d channels", f.Channels)
	}
	return nil
}

// WebRTCHandler serves WebRTC SDP negotiation for low-latency Opus streaming.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	format      audio.Format
	opus        OpusConfig
	logger      *slog.Logger

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

// NewWebRTCHandler creates a WebRTC stream handler.
func NewWebRTCHandler(b *Broadcaster, format audio.Format, cfg OpusConfig, logger *slog.Logger) *WebRTCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebRTCHandler{
		broadcaster: b,
		format:      format,
		opus:        cfg,
		logger:      logger,
		peers:       make(map[string]*webrtc.PeerConnection),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	enc, err := h.newEncoder()
	if err != nil {
		h.logger.Error("opus encoder", "err", err)
		http.Error(w, "create encoder failed", http.StatusInternalServerError)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"radio-"+id,
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}

	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}
	select {
	case <-gatherComplete:
	case <-r.Context().Done():
		pc.Close()
		return
	}

	h.mu.Lock()
	h.peers[id] = pc
	h.mu.Unlock()

	log := h.logger.With("peer", id)
	log.Info("webrtc peer connected", "peers", h.PeerCount())

	listener := h.broadcaster.Subscribe()
	go h.streamToPeer(log, listener, enc, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			h.broadcaster.Unsubscribe(listener)
			h.removePeer(id)
			pc.Close()
			log.Info("webrtc peer disconnected", "state", s.String(), "peers", h.PeerCount(), "dropped_frames", listener.Dropped())
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

func (h *WebRTCHandler) newEncoder() (*opus.Encoder, error) {
	enc, err := opus.NewEncoder(h.format.SampleRate, h.format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("stream: new opus encoder: %w", err)
	}
	if err := enc.SetBitrate(h.opus.Bitrate); err != nil {
		return nil, fmt.Errorf("stream: opus bitrate: %w", err)
	}
	if h.opus.FEC {
		if err := enc.SetInBandFEC(true); err != nil {
			return nil, fmt.Errorf("stream: opus fec: %w", err)
		}
		if err := enc.SetPacketLossPerc(h.opus.PacketLossPerc); err != nil {
			return nil, fmt.Errorf("stream: opus packet loss: %w", err)
		}
	}
	return enc, nil
}

func (h *WebRTCHandler) streamToPeer(log *slog.Logger, l *Listener, enc *opus.Encoder, track *webrtc.TrackLocalStaticSample) {
	defer h.broadcaster.Unsubscribe(l)

	opusBuf := make([]byte, 4000)
	dur := h.format.FrameDuration()
	for {
		select {
		case <-l.done:
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, opusBuf)
			if err != nil {
				log.Warn("opus encode", "err", err)
				continue
			}
			if err := track.WriteSample(media.Sample{Data: opusBuf[:n], Duration: dur}); err != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) removePeer(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
}

// Close hangs up every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*webrtc.PeerConnection)
	h.mu.Unlock()
	for _, pc := range peers {
		pc.Close()
	}
}
