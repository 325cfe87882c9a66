package server

import (
	"connectrpc.com/connect"
	"github.com/chazu/mpdump/vm/wire"
)

// CodecName is the Connect codec name, and so the content subtype, used by
// the render service.
const CodecName = "cbor"

// cborCodec marshals messages with the canonical CBOR settings of package
// wire, so values inside messages travel as wire Envelopes.
type cborCodec struct{}

// Codec returns the codec clients must use to talk to the render service.
func Codec() connect.Codec { return cborCodec{} }

func (cborCodec) Name() string { return CodecName }

func (cborCodec) Marshal(msg any) ([]byte, error) {
	return wire.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg any) error {
	return wire.Unmarshal(data, msg)
}
