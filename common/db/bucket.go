package db

type Bucket interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key []byte, value []byte) error
	Delete(key []byte) error
}

type BucketID string

//	Bucket ID
const (
	// Rounds maps encoded round snapshots from the round number.
	Rounds BucketID = "R"

	// ChainProperty is general key value map for chain property
	// (current round number, current term number, LIB height).
	ChainProperty BucketID = "C"
)
