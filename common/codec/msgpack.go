package codec

import (
	"io"

	"github.com/ugorji/go/codec"
)

// MP is canonical msgpack: struct fields as arrays in declaration order,
// map keys sorted regardless of map type.
var MP = mpCodec{}

type mpCodec struct{}

var mpHandle = func() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.StructToArray = true
	mh.Canonical = true
	return mh
}()

func (c mpCodec) Name() string {
	return "msgpack"
}

func (c mpCodec) Marshal(w io.Writer, v interface{}) error {
	e := codec.NewEncoder(w, mpHandle)
	return e.Encode(v)
}

func (c mpCodec) Unmarshal(r io.Reader, v interface{}) error {
	d := codec.NewDecoder(r, mpHandle)
	return d.Decode(v)
}

func (c mpCodec) MarshalToBytes(v interface{}) ([]byte, error) {
	return marshalToBytes(c, v)
}

func (c mpCodec) UnmarshalFromBytes(b []byte, v interface{}) ([]byte, error) {
	return unmarshalFromBytes(c, b, v)
}
