package consensus

import (
	"encoding/binary"

	"github.com/rondochain/rondo/common/codec"
	"github.com/rondochain/rondo/common/db"
	"github.com/rondochain/rondo/common/errors"
)

// Chain property keys.
var (
	keyCurrentRound = []byte("current_round")
	keyCurrentTerm  = []byte("current_term")
	keyLIBHeight    = []byte("lib_height")
	keyLIBRound     = []byte("lib_round")
	keyStartTime    = []byte("start_time")
)

// roundStore persists rounds keyed by round number. Round numbers are
// monotonic and never reused; historical rounds are retained for audit
// and LIB computation.
type roundStore struct {
	database db.Database
}

func newRoundStore(database db.Database) *roundStore {
	return &roundStore{database: database}
}

func roundKey(n int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(n))
	return key
}

func (s *roundStore) GetRound(n int64) (*Round, error) {
	bk, err := s.database.GetBucket(db.Rounds)
	if err != nil {
		return nil, err
	}
	bs, err := bk.Get(roundKey(n))
	if err != nil {
		return nil, err
	}
	if bs == nil {
		return nil, CodeRoundNotFound.Errorf("NoRound(number=%d)", n)
	}
	var round Round
	if _, err := codec.UnmarshalFromBytes(bs, &round); err != nil {
		return nil, errors.CriticalFormatError.Wrapf(err,
			"FailToDecodeRound(number=%d)", n)
	}
	return &round, nil
}

func (s *roundStore) PutRound(round *Round) error {
	bk, err := s.database.GetBucket(db.Rounds)
	if err != nil {
		return err
	}
	bs, err := codec.MarshalToBytes(round)
	if err != nil {
		return err
	}
	return bk.Set(roundKey(round.RoundNumber), bs)
}

func (s *roundStore) getProperty(key []byte) (int64, error) {
	bk, err := s.database.GetBucket(db.ChainProperty)
	if err != nil {
		return 0, err
	}
	bs, err := bk.Get(key)
	if err != nil {
		return 0, err
	}
	if len(bs) == 0 {
		return 0, nil
	}
	if len(bs) != 8 {
		return 0, errors.CriticalFormatError.Errorf(
			"InvalidProperty(key=%s,len=%d)", key, len(bs))
	}
	return int64(binary.BigEndian.Uint64(bs)), nil
}

func (s *roundStore) setProperty(key []byte, value int64) error {
	bk, err := s.database.GetBucket(db.ChainProperty)
	if err != nil {
		return err
	}
	bs := make([]byte, 8)
	binary.BigEndian.PutUint64(bs, uint64(value))
	return bk.Set(key, bs)
}

func (s *roundStore) CurrentRoundNumber() (int64, error) {
	return s.getProperty(keyCurrentRound)
}

func (s *roundStore) SetCurrentRoundNumber(n int64) error {
	return s.setProperty(keyCurrentRound, n)
}

func (s *roundStore) CurrentTermNumber() (int64, error) {
	return s.getProperty(keyCurrentTerm)
}

func (s *roundStore) SetCurrentTermNumber(n int64) error {
	return s.setProperty(keyCurrentTerm, n)
}

func (s *roundStore) LIBHeight() (int64, error) {
	return s.getProperty(keyLIBHeight)
}

func (s *roundStore) SetLIBHeight(h int64) error {
	return s.setProperty(keyLIBHeight, h)
}

func (s *roundStore) LIBRoundNumber() (int64, error) {
	return s.getProperty(keyLIBRound)
}

func (s *roundStore) SetLIBRoundNumber(n int64) error {
	return s.setProperty(keyLIBRound, n)
}

func (s *roundStore) StartTime() (int64, error) {
	return s.getProperty(keyStartTime)
}

func (s *roundStore) SetStartTime(t int64) error {
	return s.setProperty(keyStartTime, t)
}
