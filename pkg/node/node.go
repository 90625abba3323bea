package node

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ryandielhenn/glomers/pkg/proto"
)

// Node hosts one handler on a pair of line-delimited streams.
// It is single-threaded: one input line is decoded, handled and its
// replies flushed before the next line is read.
type Node[P proto.Payload] struct {
	codec *proto.Codec[P]
	in    *bufio.Reader
	out   *bufio.Writer
	log   *zap.Logger
	info  proto.Init
}

type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger used for lifecycle and per-message events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func New[P proto.Payload](codec *proto.Codec[P], r io.Reader, w io.Writer, opts ...Option) *Node[P] {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Node[P]{
		codec: codec,
		in:    bufio.NewReader(r),
		out:   bufio.NewWriter(w),
		log:   o.log,
	}
}

// Info returns the identity established by the handshake.
func (n *Node[P]) Info() proto.Init { return n.info }

// Run performs the handshake, builds the handler and dispatches messages
// until the input is exhausted. A clean EOF after the handshake returns nil;
// every other failure stops the loop and is returned.
func (n *Node[P]) Run(newHandler Factory[P]) error {
	info, initID, err := Handshake(n.in, n.out)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	n.info = info
	n.log = n.log.With(zap.String("node", info.NodeID))
	n.log.Info("handshake complete", zap.Int("roster", len(info.NodeIDs)), zapID("init_msg_id", initID))

	h, err := newHandler(info)
	if err != nil {
		return fmt.Errorf("init handler: %w", err)
	}

	for {
		line, err := readLine(n.in)
		if errors.Is(err, io.EOF) {
			n.log.Info("input closed")
			return nil
		}
		if err != nil {
			return err
		}
		msg, err := n.codec.Decode(line)
		if err != nil {
			return err
		}
		if err := n.dispatch(h, msg); err != nil {
			return err
		}
	}
}

func (n *Node[P]) dispatch(h Handler[P], msg proto.Message[P]) error {
	typ := msg.Body.Payload.Type()
	n.log.Debug("recv", zap.String("type", typ), zap.String("src", msg.Src), zapID("msg_id", msg.Body.MsgID))

	replies, err := h.Handle(msg)
	if err != nil {
		return &HandlerError{Type: typ, MsgID: msg.Body.MsgID, Err: err}
	}
	return writeMessages(n.out, replies)
}

func zapID(key string, id *uint64) zap.Field {
	if id == nil {
		return zap.Skip()
	}
	return zap.Uint64(key, *id)
}
