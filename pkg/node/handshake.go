package node

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ryandielhenn/glomers/pkg/proto"
)

// Handshake consumes exactly one line from in, which must be an init
// envelope, and writes the init_ok reply to out before returning.
// The returned id is the init message's msg_id, if it had one.
func Handshake(in *bufio.Reader, out *bufio.Writer) (proto.Init, *uint64, error) {
	line, err := readLine(in)
	if errors.Is(err, io.EOF) {
		return proto.Init{}, nil, ErrNoInit
	}
	if err != nil {
		return proto.Init{}, nil, err
	}

	msg, err := proto.InitCodec.Decode(line)
	if err != nil {
		return proto.Init{}, nil, fmt.Errorf("%w: %w", ErrMalformedInit, err)
	}
	info := *msg.Body.Payload.(*proto.Init)
	if info.NodeID == "" {
		return proto.Init{}, nil, fmt.Errorf("%w: empty node_id", ErrMalformedInit)
	}

	reply := proto.Reply(msg, proto.Next(msg.Body.MsgID), proto.Payload(&proto.InitOk{}))
	if err := writeMessages(out, []proto.Message[proto.Payload]{reply}); err != nil {
		return proto.Init{}, nil, err
	}
	return info, msg.Body.MsgID, nil
}

// readLine returns the next non-blank line. A final line without a
// trailing newline is still returned; io.EOF means the input is exhausted.
func readLine(in *bufio.Reader) ([]byte, error) {
	for {
		line, err := in.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, &TransportError{Op: "read", Err: err}
			}
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
	}
}

// writeMessages encodes msgs in order and flushes them as one unit.
func writeMessages[P proto.Payload](out *bufio.Writer, msgs []proto.Message[P]) error {
	for _, m := range msgs {
		data, err := proto.Encode(m)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
	}
	if err := out.Flush(); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}
