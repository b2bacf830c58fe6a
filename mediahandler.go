// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

// MediaHandler is one link in a Track's media pipeline (spec §4.9).
// incoming processes a packet arriving from the network before it
// reaches the user; outgoing processes a packet the user is about to
// send before it reaches the network. Either may return nil to drop
// the packet. Handlers never block: SR/NACK timers and packetization
// are all synchronous, CPU-only transforms.
type MediaHandler interface {
	incoming(msg *Message) *Message
	outgoing(msg *Message) *Message
}

// mediaHandlerChain composes handlers head-to-tail for outbound
// traffic and tail-to-head for inbound, matching spec §4.9: "Handlers
// are composed head-to-tail for outbound and tail-to-head for
// inbound."
type mediaHandlerChain struct {
	handlers []MediaHandler
}

func newMediaHandlerChain(handlers ...MediaHandler) *mediaHandlerChain {
	return &mediaHandlerChain{handlers: handlers}
}

func (c *mediaHandlerChain) add(h MediaHandler) {
	c.handlers = append(c.handlers, h)
}

func (c *mediaHandlerChain) processOutgoing(msg *Message) *Message {
	for _, h := range c.handlers {
		if msg == nil {
			return nil
		}
		msg = h.outgoing(msg)
	}
	return msg
}

func (c *mediaHandlerChain) processIncoming(msg *Message) *Message {
	for i := len(c.handlers) - 1; i >= 0; i-- {
		if msg == nil {
			return nil
		}
		msg = c.handlers[i].incoming(msg)
	}
	return msg
}
