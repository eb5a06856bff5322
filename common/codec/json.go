package codec

import (
	"encoding/json"
	"io"
)

var JSON = jsonCodec{}

type jsonCodec struct{}

func (c jsonCodec) Name() string {
	return "json"
}

func (c jsonCodec) Marshal(w io.Writer, v interface{}) error {
	e := json.NewEncoder(w)
	return e.Encode(v)
}

func (c jsonCodec) Unmarshal(r io.Reader, v interface{}) error {
	d := json.NewDecoder(r)
	return d.Decode(v)
}

func (c jsonCodec) MarshalToBytes(v interface{}) ([]byte, error) {
	return marshalToBytes(c, v)
}

func (c jsonCodec) UnmarshalFromBytes(b []byte, v interface{}) ([]byte, error) {
	return unmarshalFromBytes(c, b, v)
}
