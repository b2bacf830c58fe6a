// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/ice/v4"

	"github.com/corvid-labs/rtc/internal/piolog"
	"github.com/corvid-labs/rtc/rtcerr"
)

// IceTransport is the bottom of the pipeline: connectivity
// establishment, candidate gathering, and the selected UDP path
// everything above it sends raw bytes over (spec §4.4). It wraps
// pion/ice/v4's Agent; the specified contract (inputs, products,
// failure modes) lives here, the RFC 8445 state machine itself lives
// in the wrapped library.
type IceTransport struct {
	baseTransport

	agent       *ice.Agent
	controlling bool
	conn        *ice.Conn
	onCandidate func(IceCandidate)
	mid         string
	closeOnce   sync.Once
}

// ErrIceFailed and ErrGatheringFailed are the two named failure
// modes spec §4.4 calls out.
var (
	ErrIceFailed       = rtcerr.New(rtcerr.TransportFailed, "IceTransport: no pair nominated before gathering deadline")
	ErrGatheringFailed = rtcerr.New(rtcerr.TransportFailed, "IceTransport: no local candidate could be produced")
)

// NewIceTransport builds an ICE agent for one media/application
// section (mid), configured from cfg. controlling selects the ICE
// role; per spec §4.4 this is derived from offer/answer order by the
// caller (the offerer controls).
func NewIceTransport(cfg Configuration, mid string, controlling bool) (*IceTransport, error) {
	ac, err := buildAgentConfig(cfg)
	if err != nil {
		return nil, err
	}

	agent, err := ice.NewAgent(ac)
	if err != nil {
		return nil, rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.New", err)
	}

	t := &IceTransport{
		agent:       agent,
		controlling: controlling,
		mid:         mid,
	}
	t.st = Disconnected

	if err := agent.OnCandidate(func(c ice.Candidate) error {
		if c == nil {
			return nil
		}
		t.mu.Lock()
		cb := t.onCandidate
		t.mu.Unlock()
		if cb != nil {
			cb(IceCandidate{Mid: mid, Value: c.Marshal()})
		}
		return nil
	}); err != nil {
		return nil, rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.New", err)
	}

	if err := agent.OnConnectionStateChange(func(s ice.ConnectionState) error {
		switch s {
		case ice.ConnectionStateChecking:
			t.setState(Connecting)
		case ice.ConnectionStateConnected:
			t.setState(Connected)
		case ice.ConnectionStateCompleted:
			t.setState(Completed)
		case ice.ConnectionStateDisconnected:
			t.setState(Disconnected)
		case ice.ConnectionStateFailed, ice.ConnectionStateClosed:
			t.fail(ErrIceFailed)
		}
		return nil
	}); err != nil {
		return nil, rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.New", err)
	}

	return t, nil
}

// OnCandidate installs the callback invoked for each locally gathered
// candidate (spec §4.4: "emitted individually").
func (t *IceTransport) OnCandidate(fn func(IceCandidate)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCandidate = fn
}

// LocalUserCredentials returns the locally generated ufrag/pwd to
// embed in the local Description.
func (t *IceTransport) LocalUserCredentials() (string, string, error) {
	ufrag, pwd, err := t.agent.GetLocalUserCredentials()
	if err != nil {
		return "", "", rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.LocalUserCredentials", err)
	}
	return ufrag, pwd, nil
}

// GatherCandidates starts asynchronous candidate gathering.
func (t *IceTransport) GatherCandidates() error {
	if err := t.agent.GatherCandidates(); err != nil {
		return rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.GatherCandidates", err)
	}
	return nil
}

// AddRemoteCandidate feeds one trickled remote candidate line to the
// agent. Valid any time after the remote description has been applied
// (spec §4.7).
func (t *IceTransport) AddRemoteCandidate(line string) error {
	c, err := ice.UnmarshalCandidate(line)
	if err != nil {
		return rtcerr.Wrap(rtcerr.ProtocolError, "IceTransport.AddRemoteCandidate", err)
	}
	if err := t.agent.AddRemoteCandidate(c); err != nil {
		return rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.AddRemoteCandidate", err)
	}
	return nil
}

// connect performs the ICE Dial (controlling) or Accept (controlled)
// with the remote ufrag/pwd and gathering deadline from cfg. Called by
// the owning PeerConnection once both local and remote credentials are
// known.
func (t *IceTransport) connect(ctx context.Context, remoteUfrag, remotePwd string, gatheringTimeout time.Duration) error {
	if err := t.agent.SetRemoteCredentials(remoteUfrag, remotePwd); err != nil {
		return rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.connect", err)
	}

	if gatheringTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gatheringTimeout)
		defer cancel()
	}

	var conn *ice.Conn
	var err error
	if t.controlling {
		conn, err = t.agent.Dial(ctx, remoteUfrag, remotePwd)
	} else {
		conn, err = t.agent.Accept(ctx, remoteUfrag, remotePwd)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ErrIceFailed
		}
		return rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.connect", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// Conn returns the underlying connected net.Conn once connect has
// completed. The pipeline mux (mux.go) wraps this single connection to
// demultiplex DTLS records from RTP/RTCP packets, per spec §4.1.
func (t *IceTransport) Conn() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *IceTransport) start() error {
	return nil // connect() is the real entry point; start is a no-op to satisfy transport.
}

func (t *IceTransport) stop() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		t.agent.Close()
	})
	return nil
}

// send writes a raw datagram (STUN, DTLS record, or TURN-channel
// framed data — whatever the upper layer produced) over the selected
// pair. Always synchronous at this layer: ICE has no internal
// buffering contract of its own beyond the OS socket.
func (t *IceTransport) send(m *Message) (bool, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return false, rtcerr.New(rtcerr.NotOpen, "IceTransport.send")
	}
	if _, err := conn.Write(m.Payload); err != nil {
		return false, rtcerr.Wrap(rtcerr.TransportFailed, "IceTransport.send", err)
	}
	return true, nil
}

// SelectedPair returns the local/remote addresses of the nominated
// pair, or an error if none has been nominated yet.
func (t *IceTransport) SelectedPair() (local, remote net.Addr, err error) {
	pair, err := t.agent.GetSelectedCandidatePair()
	if err != nil {
		return nil, nil, rtcerr.Wrap(rtcerr.NotAvailable, "IceTransport.SelectedPair", err)
	}
	if pair == nil {
		return nil, nil, rtcerr.New(rtcerr.NotAvailable, "IceTransport.SelectedPair")
	}
	return &net.UDPAddr{IP: net.ParseIP(pair.Local.Address()), Port: pair.Local.Port()},
		&net.UDPAddr{IP: net.ParseIP(pair.Remote.Address()), Port: pair.Remote.Port()}, nil
}

func buildAgentConfig(cfg Configuration) (*ice.AgentConfig, error) {
	ac := &ice.AgentConfig{
		LoggerFactory: piolog.NewFactory(nil),
		Net:           cfg.Net,
	}

	if cfg.PortRangeBegin != 0 && cfg.PortRangeEnd != 0 {
		ac.PortMin = cfg.PortRangeBegin
		ac.PortMax = cfg.PortRangeEnd
	}

	if cfg.IceTransportPolicy == PolicyRelay {
		ac.CandidateTypes = []ice.CandidateType{ice.CandidateTypeRelay}
	}

	if cfg.EnableMDNS {
		ac.MulticastDNSMode = ice.MulticastDNSModeQueryAndGather
	}

	for _, s := range cfg.IceServers {
		for _, u := range s.URLs {
			parsed, err := ice.ParseURL(u)
			if err != nil {
				return nil, fmt.Errorf("rtc: parsing ICE server URL %q: %w", u, err)
			}
			if s.Username != "" {
				parsed.Username = s.Username
				parsed.Password = s.Credential
			}
			ac.Urls = append(ac.Urls, parsed)
		}
	}

	return ac, nil
}
