package codec

import (
	"bytes"
	"io"

	"github.com/rondochain/rondo/common/errors"
	"github.com/rondochain/rondo/common/log"
)

// Codec serializes consensus data. Implementations must be canonical:
// the same value always yields the same bytes.
type Codec interface {
	Name() string
	Marshal(w io.Writer, v interface{}) error
	Unmarshal(r io.Reader, v interface{}) error
}

func marshalToBytes(c Codec, v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := c.Marshal(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalFromBytes(c Codec, b []byte, v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(b)
	if err := c.Unmarshal(buf, v); err != nil {
		return b, err
	}
	return buf.Bytes(), nil
}

// BC is the codec for all persisted and wire-visible consensus structures.
var BC = MP

func Marshal(w io.Writer, v interface{}) error {
	return BC.Marshal(w, v)
}

func Unmarshal(r io.Reader, v interface{}) error {
	return BC.Unmarshal(r, v)
}

func MarshalToBytes(v interface{}) ([]byte, error) {
	return marshalToBytes(BC, v)
}

func UnmarshalFromBytes(b []byte, v interface{}) ([]byte, error) {
	return unmarshalFromBytes(BC, b, v)
}

func MustMarshalToBytes(v interface{}) []byte {
	bs, err := MarshalToBytes(v)
	if err != nil {
		log.Panicf("fail to marshal v=%+v err=%+v", v, err)
	}
	return bs
}

func MustUnmarshalFromBytes(b []byte, v interface{}) []byte {
	bs, err := UnmarshalFromBytes(b, v)
	if err != nil {
		log.Panicf("fail to unmarshal bs=%x err=%+v", b, err)
	}
	return bs
}

var ErrInvalidFormat = errors.CriticalFormatError.New("InvalidFormat")
