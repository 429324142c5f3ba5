package l1reader

import (
	"fmt"

	"github.com/alpenvertex/vertex-node/params"
)

// DepositParseError is the typed taxonomy of deposit-request script parse
// failures, grounded 1:1 on
// original_source/crates/tx-parser/src/deposit/error.rs's DepositParseError.
type DepositParseError struct {
	kind string
	arg  int
}

func (e *DepositParseError) Error() string {
	switch e.kind {
	case "invalid_dest_address":
		return fmt.Sprintf("l1reader: invalid destination address length %d", e.arg)
	default:
		return "l1reader: " + e.kind
	}
}

var (
	ErrNoOpReturn         = &DepositParseError{kind: "no_op_return"}
	ErrNoData             = &DepositParseError{kind: "no_data"}
	ErrMagicBytesMismatch = &DepositParseError{kind: "magic_bytes_mismatch"}
	ErrLeafHashLenMismatch = &DepositParseError{kind: "leaf_hash_len_mismatch"}
)

func errInvalidDestAddress(length int) error {
	return &DepositParseError{kind: "invalid_dest_address", arg: length}
}

const opReturn = 0x6a
const opPushData1 = 0x4c

// DepositRequestScriptInfo is what parseDepositRequestScript extracts from a
// deposit-request output's scriptPubKey.
type DepositRequestScriptInfo struct {
	TapCtrlBlkHash [32]byte
	DestAddress    []byte
}

// parseDepositRequestScript parses an OP_RETURN deposit-request script of
// the form OP_RETURN <push: magic_bytes || tap_ctrl_blk_hash(32) ||
// dest_address>, per spec.md §9/§4.C and
// original_source/crates/tx-parser/src/deposit/deposit_request.rs's
// parse_deposit_request_script.
func parseDepositRequestScript(script []byte, p params.RollupParams) (DepositRequestScriptInfo, error) {
	if len(script) < 1 || script[0] != opReturn {
		return DepositRequestScriptInfo{}, ErrNoOpReturn
	}

	data, ok := nextPush(script[1:])
	if !ok {
		return DepositRequestScriptInfo{}, ErrNoData
	}
	if len(data) > 80 {
		return DepositRequestScriptInfo{}, ErrNoData
	}

	magic := p.MagicBytes
	if len(data) < len(magic) || !bytesEqual(data[:len(magic)], magic) {
		return DepositRequestScriptInfo{}, ErrMagicBytesMismatch
	}
	data = data[len(magic):]

	if len(data) < 32 {
		return DepositRequestScriptInfo{}, ErrLeafHashLenMismatch
	}
	var ctrlHash [32]byte
	copy(ctrlHash[:], data[:32])

	address := data[32:]
	if len(address) != int(p.AddressLength) {
		return DepositRequestScriptInfo{}, errInvalidDestAddress(len(address))
	}

	return DepositRequestScriptInfo{TapCtrlBlkHash: ctrlHash, DestAddress: append([]byte(nil), address...)}, nil
}

// nextPush reads a single push-data opcode (direct push of 1-75 bytes, or
// OP_PUSHDATA1 for up to 255) from the start of b, per Bitcoin script
// encoding. Deposit-request scripts never need OP_PUSHDATA2/4 since the
// whole push is capped at 80 bytes.
func nextPush(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	op := b[0]
	switch {
	case op >= 1 && op <= 75:
		n := int(op)
		if len(b) < 1+n {
			return nil, false
		}
		return b[1 : 1+n], true
	case op == opPushData1:
		if len(b) < 2 {
			return nil, false
		}
		n := int(b[1])
		if len(b) < 2+n {
			return nil, false
		}
		return b[2 : 2+n], true
	default:
		return nil, false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TxOutput is the minimal shape of a Bitcoin transaction output this reader
// needs: value plus the raw scriptPubKey bytes.
type TxOutput struct {
	ValueSats    uint64
	ScriptPubKey []byte
}

// Tx is the minimal shape of a Bitcoin transaction this reader needs to
// extract a deposit request from.
type Tx struct {
	Outputs []TxOutput
}

// DepositRequestInfo is the parsed deposit intent extracted from a
// transaction, per original_source's DepositRequestInfo.
type DepositRequestInfo struct {
	AmountSats     uint64
	DestAddress    []byte
	TapCtrlBlkHash [32]byte
}

// ExtractDepositRequestInfo extracts a DepositRequestInfo from tx if it
// matches the deposit-request shape: output #0 carries the fixed deposit
// quantity, output #1 carries the OP_RETURN deposit-request script.
// Grounded on
// original_source/crates/tx-parser/src/deposit/deposit_request.rs's
// extract_deposit_request_info. Returns ok=false (not an error) when tx
// simply isn't a deposit-request tx — most L1 transactions aren't, and that
// isn't a parse failure.
func ExtractDepositRequestInfo(tx Tx, p params.RollupParams) (DepositRequestInfo, bool) {
	if len(tx.Outputs) < 2 {
		return DepositRequestInfo{}, false
	}
	out0, out1 := tx.Outputs[0], tx.Outputs[1]
	if out0.ValueSats != p.DepositQuantity {
		return DepositRequestInfo{}, false
	}
	info, err := parseDepositRequestScript(out1.ScriptPubKey, p)
	if err != nil {
		return DepositRequestInfo{}, false
	}
	return DepositRequestInfo{
		AmountSats:     out0.ValueSats,
		DestAddress:    info.DestAddress,
		TapCtrlBlkHash: info.TapCtrlBlkHash,
	}, true
}
