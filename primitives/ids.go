package primitives

// L1BlockId and L2BlockId are distinguishable wrapper types over Buf32 so the
// type system keeps the two ID spaces from ever being confused, the same way
// the teacher distinguishes a UTXO's 32-byte txid from a block hash by
// wrapping it in consensus.Outpoint rather than passing bare [32]byte around.

type L1BlockId struct {
	buf Buf32
}

type L2BlockId struct {
	buf Buf32
}

func NewL1BlockId(b Buf32) L1BlockId { return L1BlockId{buf: b} }
func NewL2BlockId(b Buf32) L2BlockId { return L2BlockId{buf: b} }

func (id L1BlockId) Buf32() Buf32  { return id.buf }
func (id L1BlockId) String() string { return id.buf.String() }
func (id L1BlockId) IsZero() bool   { return id.buf.IsZero() }

func (id L2BlockId) Buf32() Buf32  { return id.buf }
func (id L2BlockId) String() string { return id.buf.String() }
func (id L2BlockId) IsZero() bool   { return id.buf.IsZero() }

func (id L1BlockId) MarshalJSON() ([]byte, error) { return id.buf.MarshalJSON() }
func (id *L1BlockId) UnmarshalJSON(data []byte) error {
	return id.buf.UnmarshalJSON(data)
}

func (id L2BlockId) MarshalJSON() ([]byte, error) { return id.buf.MarshalJSON() }
func (id *L2BlockId) UnmarshalJSON(data []byte) error {
	return id.buf.UnmarshalJSON(data)
}
