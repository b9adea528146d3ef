package coldstore

import (
	"bytes"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/ugorji/go/codec"

	"github.com/skyblock-archive/auctions/internal/auction"
)

var cborHandle = &codec.CborHandle{}

// encodeBlob packs a month's auction records as a snappy-block-framed cbor
// array, then gzips the whole thing — the teacher's valyala/gozstd block
// compressor isn't available in this dependency set, so snappy (already a
// teacher dependency, used here in the role spec.md assigns to its "LZ4
// block framing" step) plus klauspost/compress's gzip stand in; see
// DESIGN.md for the full justification.
func encodeBlob(records []auction.Auction) ([]byte, error) {
	var cbored []byte
	if err := codec.NewEncoderBytes(&cbored, cborHandle).Encode(records); err != nil {
		return nil, err
	}
	framed := snappy.Encode(nil, cbored)

	var out bytes.Buffer
	gw := gzip.NewWriter(&out)
	if _, err := gw.Write(framed); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decodeBlob(r io.Reader) ([]auction.Auction, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	framed, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}
	cbored, err := snappy.Decode(nil, framed)
	if err != nil {
		return nil, err
	}

	var records []auction.Auction
	if err := codec.NewDecoderBytes(cbored, cborHandle).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}
