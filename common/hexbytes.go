package common

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
)

type HexBytes []byte

func (hs HexBytes) MarshalJSON() ([]byte, error) {
	if hs == nil {
		return []byte("null"), nil
	}
	s := "0x" + hex.EncodeToString(hs)
	return json.Marshal(s)
}

func (hs *HexBytes) UnmarshalJSON(b []byte) error {
	var os *string
	if err := json.Unmarshal(b, &os); err != nil {
		return err
	}
	if os == nil {
		*hs = nil
		return nil
	}
	s := *os
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	bin, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*hs = bin
	return nil
}

func (hs HexBytes) Bytes() []byte {
	if hs == nil {
		return nil
	}
	return hs[:]
}

func (hs HexBytes) String() string {
	if hs == nil {
		return "null"
	}
	return "0x" + hex.EncodeToString(hs)
}

func (hs HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(hs, other)
}
