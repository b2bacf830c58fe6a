// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/sctp"

	"github.com/corvid-labs/rtc/internal/piolog"
	"github.com/corvid-labs/rtc/internal/processor"
	"github.com/corvid-labs/rtc/internal/queue"
	"github.com/corvid-labs/rtc/rtcerr"
)

// PPIDs follow the data-channel specification's historical,
// non-monotonic ordering (spec §4.6): control is 50, then string,
// binary-partial, binary, string-partial, then a gap, then the two
// "empty" ids.
const (
	ppidControl       = sctp.PayloadProtocolIdentifier(50)
	ppidString        = sctp.PayloadProtocolIdentifier(51)
	ppidBinaryPartial = sctp.PayloadProtocolIdentifier(52)
	ppidBinary        = sctp.PayloadProtocolIdentifier(53)
	ppidStringPartial = sctp.PayloadProtocolIdentifier(54)
	ppidStringEmpty   = sctp.PayloadProtocolIdentifier(56)
	ppidBinaryEmpty   = sctp.PayloadProtocolIdentifier(57)
)

// defaultSctpPort is the fixed port pair spec §4.6 says the
// application m-line uses absent negotiation otherwise.
const defaultSctpPort = 5000

// outboundSctpMessage is one item in SctpTransport's send Queue: a
// message plus which stream it targets.
type outboundSctpMessage struct {
	streamID uint16
	msg      *Message
}

// SctpTransport is the data-channel transport: one SCTP association
// over a DtlsTransport's connection, one sctp.Stream per DataChannel,
// DCEP-driven open handshake, per-stream reliability, and
// buffered-amount accounting (spec §4.6).
type SctpTransport struct {
	baseTransport

	assoc *sctp.Association

	sendQueue *queue.Queue[outboundSctpMessage]
	processor *processor.Processor

	mu             sync.Mutex
	streams        map[uint16]*sctp.Stream
	bufferedAmount map[uint16]int

	onStreamMessage func(streamID uint16, msg *Message)
	onStreamReset   func(streamID uint16)
	onBufferedLow   func(streamID uint16)

	cleanupTimeout time.Duration
}

// NewSctpTransport issues (isClient) or waits for (peer) the SCTP
// INIT over lower, per spec §4.6: "association setup is issued only
// by the DTLS-client side". pool backs the write-pump Processor.
// cleanupTimeout bounds stop()'s graceful-shutdown wait; callers pass
// Configuration.CleanupTimeout (spec §9's open question about the
// hard-coded 10s constant resolved by making it configurable here).
func NewSctpTransport(lower net.Conn, isClient bool, sendBufferLimit int, pool *processor.Pool, cleanupTimeout time.Duration) (*SctpTransport, error) {
	if cleanupTimeout <= 0 {
		cleanupTimeout = 10 * time.Second
	}
	config := sctp.Config{
		NetConn:       lower,
		LoggerFactory: piolog.NewFactory(nil),
	}

	var assoc *sctp.Association
	var err error
	if isClient {
		assoc, err = sctp.Client(config)
	} else {
		assoc, err = sctp.Server(config)
	}
	if err != nil {
		return nil, rtcerr.Wrap(rtcerr.TransportFailed, "SctpTransport.New", err)
	}

	if sendBufferLimit <= 0 {
		sendBufferLimit = 16 * 1024 * 1024
	}

	t := &SctpTransport{
		assoc:          assoc,
		streams:        make(map[uint16]*sctp.Stream),
		bufferedAmount: make(map[uint16]int),
		cleanupTimeout: cleanupTimeout,
	}
	t.st = Connected
	t.sendQueue = queue.New(sendBufferLimit, func(o outboundSctpMessage) int { return o.msg.Size() })
	t.processor = processor.New(pool)

	go t.acceptLoop()
	go t.sendPump()

	return t, nil
}

// acceptLoop accepts peer-opened streams (the DCEP responder side of
// every channel, plus any channel the peer initiated).
func (t *SctpTransport) acceptLoop() {
	for {
		stream, err := t.assoc.AcceptStream()
		if err != nil {
			t.fail(rtcerr.Wrap(rtcerr.TransportFailed, "SctpTransport.acceptLoop", err))
			return
		}
		t.trackStream(stream)
		go t.readStream(stream)
	}
}

func (t *SctpTransport) trackStream(stream *sctp.Stream) {
	t.mu.Lock()
	t.streams[stream.StreamIdentifier()] = stream
	t.mu.Unlock()
}

// OpenStream opens a locally-initiated stream for streamID with the
// given reliability, per spec §4.6's per-stream SCTP socket options.
// A stream the peer already opened (tracked by acceptLoop) is reused
// and only has its reliability applied.
func (t *SctpTransport) OpenStream(streamID uint16, reliability Reliability) (*sctp.Stream, error) {
	t.mu.Lock()
	stream, tracked := t.streams[streamID]
	t.mu.Unlock()
	if !tracked {
		var err error
		stream, err = t.assoc.OpenStream(streamID, ppidBinary)
		if err != nil {
			return nil, rtcerr.Wrap(rtcerr.TransportFailed, "SctpTransport.OpenStream", err)
		}
	}

	if reliability.Kind == PartialRexmit {
		stream.SetReliabilityParams(reliability.Unordered, sctp.ReliabilityTypeRexmit, reliability.Rexmit)
	} else if reliability.Kind == PartialTimed {
		stream.SetReliabilityParams(reliability.Unordered, sctp.ReliabilityTypeTimed, uint32(reliability.Timed/time.Millisecond))
	} else {
		stream.SetReliabilityParams(reliability.Unordered, sctp.ReliabilityTypeReliable, 0)
	}

	if !tracked {
		t.trackStream(stream)
		go t.readStream(stream)
	}
	return stream, nil
}

func (t *SctpTransport) readStream(stream *sctp.Stream) {
	streamID := stream.StreamIdentifier()
	buf := make([]byte, 1<<16)
	var partial []byte

	for {
		n, ppid, err := stream.ReadSCTP(buf)
		if err != nil {
			t.mu.Lock()
			cb := t.onStreamReset
			t.mu.Unlock()
			if cb != nil {
				cb(streamID)
			}
			return
		}

		switch ppid {
		case ppidBinaryPartial, ppidStringPartial:
			partial = append(partial, buf[:n]...)
			continue
		case ppidBinaryEmpty:
			t.deliverStreamMessage(streamID, &Message{Type: Binary, Payload: nil})
			continue
		case ppidStringEmpty:
			t.deliverStreamMessage(streamID, &Message{Type: String, Payload: nil})
			continue
		case ppidControl:
			t.handleControl(streamID, buf[:n])
			continue
		}

		payload := buf[:n]
		if len(partial) > 0 {
			payload = append(partial, payload...)
			partial = nil
		}

		msgType := Binary
		if ppid == ppidString {
			msgType = String
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		t.deliverStreamMessage(streamID, &Message{Type: msgType, Payload: out})
	}
}

func (t *SctpTransport) deliverStreamMessage(streamID uint16, msg *Message) {
	id := streamID
	msg.StreamID = &id
	t.mu.Lock()
	cb := t.onStreamMessage
	t.mu.Unlock()
	if cb != nil {
		cb(streamID, msg)
	}
}

func (t *SctpTransport) handleControl(streamID uint16, b []byte) {
	if isDcepOpen(b) {
		t.deliverStreamMessage(streamID, &Message{Type: Control, Payload: append([]byte(nil), b...)})
		return
	}
	if isDcepAck(b) {
		t.deliverStreamMessage(streamID, &Message{Type: Control, Payload: append([]byte(nil), b...)})
		return
	}
}

// OnStreamMessage installs the callback for every decoded (and, for
// PARTIAL-tagged sequences, reassembled) application message, tagged
// with its stream id.
func (t *SctpTransport) OnStreamMessage(fn func(streamID uint16, msg *Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStreamMessage = fn
}

// OnStreamReset installs the callback fired when a stream the peer
// held is torn down (SCTP_RESET_STREAMS or association-level error).
func (t *SctpTransport) OnStreamReset(fn func(streamID uint16)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStreamReset = fn
}

// OnBufferedAmountLow installs the callback fired after every write
// that lowers a stream's buffered amount. SctpTransport keeps no
// thresholds: DataChannel.checkBufferedAmount turns these calls into
// one notification per crossing of the channel's low threshold (spec
// §4.6, §8). The amount is tracked here since pion/sctp exposes only a
// BufferedAmount() accessor; see writeOne.
func (t *SctpTransport) OnBufferedAmountLow(fn func(streamID uint16)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onBufferedLow = fn
}

// SendControl writes a raw DCEP control message (OPEN or ACK) on
// streamID, bypassing the outbound Queue: control messages are never
// subject to backpressure accounting.
func (t *SctpTransport) SendControl(streamID uint16, payload []byte) error {
	t.mu.Lock()
	stream, ok := t.streams[streamID]
	t.mu.Unlock()
	if !ok {
		return rtcerr.New(rtcerr.NotOpen, "SctpTransport.SendControl")
	}
	if _, err := stream.WriteSCTP(payload, ppidControl); err != nil {
		return rtcerr.Wrap(rtcerr.TransportFailed, "SctpTransport.SendControl", err)
	}
	return nil
}

// Send enqueues msg for streamID on the outbound Queue; the write pump
// splits/tags it with the right PPID and hands it to the library. This
// never blocks past the configured send buffer limit (spec §4.6's
// "send path").
func (t *SctpTransport) Send(streamID uint16, msg *Message) {
	t.addBuffered(streamID, msg.Size())
	t.sendQueue.Push(outboundSctpMessage{streamID: streamID, msg: msg})
}

func (t *SctpTransport) addBuffered(streamID uint16, n int) {
	t.mu.Lock()
	t.bufferedAmount[streamID] += n
	t.mu.Unlock()
}

// BufferedAmount returns the bytes handed to SCTP for streamID but not
// yet acknowledged as transmitted (spec §3 TrackState / §4.8).
func (t *SctpTransport) BufferedAmount(streamID uint16) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bufferedAmount[streamID]
}

// sendPump is the write-pump thread spec §4.6 describes: it pops the
// outbound queue, classifies by message type and emptiness to pick the
// right PPID, writes to the library, and updates bufferedAmount,
// firing onBufferedAmountLow whenever a write lowers it (writeOne).
func (t *SctpTransport) sendPump() {
	for {
		item, ok := t.sendQueue.Pop()
		if !ok {
			return
		}

		t.processor.Enqueue(func() {
			t.writeOne(item)
		})
	}
}

func (t *SctpTransport) writeOne(item outboundSctpMessage) {
	t.mu.Lock()
	stream, ok := t.streams[item.streamID]
	t.mu.Unlock()
	if !ok {
		return
	}

	ppid, payload := ppidFor(item.msg)
	_, err := stream.WriteSCTP(payload, ppid)

	t.mu.Lock()
	before := t.bufferedAmount[item.streamID]
	t.bufferedAmount[item.streamID] -= item.msg.Size()
	if t.bufferedAmount[item.streamID] < 0 {
		t.bufferedAmount[item.streamID] = 0
	}
	after := t.bufferedAmount[item.streamID]
	cb := t.onBufferedLow
	streamID := item.streamID
	t.mu.Unlock()

	if err != nil {
		t.fail(rtcerr.Wrap(rtcerr.TransportFailed, "SctpTransport.writeOne", err))
		return
	}
	if cb != nil && after < before {
		cb(streamID)
	}
}

func ppidFor(msg *Message) (sctp.PayloadProtocolIdentifier, []byte) {
	switch msg.Type {
	case String:
		if len(msg.Payload) == 0 {
			return ppidStringEmpty, []byte{0}
		}
		return ppidString, msg.Payload
	default:
		if len(msg.Payload) == 0 {
			return ppidBinaryEmpty, []byte{0}
		}
		return ppidBinary, msg.Payload
	}
}

// ResetStream issues SCTP_RESET_STREAMS for streamID (spec §4.6).
func (t *SctpTransport) ResetStream(streamID uint16) error {
	t.mu.Lock()
	stream, ok := t.streams[streamID]
	delete(t.streams, streamID)
	delete(t.bufferedAmount, streamID)
	t.mu.Unlock()
	if !ok {
		return rtcerr.New(rtcerr.NotOpen, "SctpTransport.ResetStream")
	}
	return stream.Close()
}

func (t *SctpTransport) start() error { return nil }

// stop performs the graceful-close sequence of spec §4.6: SHUTDOWN and
// wait for SHUTDOWN-COMPLETE, bounded by timeout. On timeout stop
// returns an error and leaves the association's Close running; the
// association is not aborted.
func (t *SctpTransport) stop() error {
	return t.shutdown(t.cleanupTimeout)
}

func (t *SctpTransport) shutdown(timeout time.Duration) error {
	t.sendQueue.Stop()
	t.processor.Destroy()

	done := make(chan error, 1)
	go func() { done <- t.assoc.Close() }()

	select {
	case err := <-done:
		if err != nil {
			return rtcerr.Wrap(rtcerr.TransportFailed, "SctpTransport.stop", err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("rtc: SctpTransport.stop: graceful shutdown timed out, association left to finalizer")
	}
}

func (t *SctpTransport) send(m *Message) (bool, error) {
	if m.StreamID == nil {
		return false, rtcerr.New(rtcerr.InvalidArgument, "SctpTransport.send: missing StreamID")
	}
	t.Send(*m.StreamID, m)
	return true, nil
}
