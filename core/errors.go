package core

import "errors"

// Packets that do not parse are dropped without a reply. The sentinel allows the
// server loop to distinguish a decoding problem from an I/O one.
var ErrMalformedPacket = errors.New("malformed radius packet")
