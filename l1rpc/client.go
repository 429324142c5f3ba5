// Package l1rpc talks to a bitcoind instance over its JSON-RPC interface,
// the one genuinely external collaborator spec.md §9 calls out as
// "implementations may be swapped for a deterministic test double": no
// Bitcoin Core RPC client or secp256k1/consensus-transaction library
// appears anywhere in the example pack, so this package stays on
// net/http + encoding/json, the same stdlib-only transport idiom rpcsrv
// already uses for its own wire format, rather than fabricating a
// dependency the corpus never reaches for.
//
// Client implements broadcaster.L1Client, rpcsrv.TxBroadcaster,
// rpcsrv.TxIder, inscription.WalletSigner and inscription.UtxoSource.
// It does not implement inscription.TaprootKeyer: taproot key tweaking and
// Schnorr signing need secp256k1, which this pack never retrieves either
// (see DESIGN.md).
package l1rpc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alpenvertex/vertex-node/inscription"
	"github.com/alpenvertex/vertex-node/primitives"
)

// Client is a minimal bitcoind JSON-RPC 1.0 client: one HTTP endpoint,
// basic auth, one method call per request/response round trip.
type Client struct {
	endpoint string
	user     string
	password string
	http     *http.Client
}

func New(endpoint, user, password string) *Client {
	return &Client{
		endpoint: endpoint,
		user:     user,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Id      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("l1rpc: bitcoind error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Jsonrpc: "1.0", Id: "vertex", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("l1rpc: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("l1rpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("l1rpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("l1rpc: %s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// BroadcastTx implements broadcaster.L1Client and rpcsrv.TxBroadcaster via
// bitcoind's sendrawtransaction.
func (c *Client) BroadcastTx(ctx context.Context, raw []byte) error {
	return c.call(ctx, "sendrawtransaction", []interface{}{hex.EncodeToString(raw)}, nil)
}

type getTransactionResult struct {
	Confirmations int64 `json:"confirmations"`
	BlockHeight   int64 `json:"blockheight"`
}

// GetStatus implements broadcaster.L1Client. A negative confirmation count
// means the tx was replaced (evicted) by a conflicting transaction, per
// bitcoind's gettransaction semantics.
func (c *Client) GetStatus(ctx context.Context, txid primitives.Buf32) (confirmedHeight uint64, confirmed bool, evicted bool, err error) {
	var res getTransactionResult
	if err := c.call(ctx, "gettransaction", []interface{}{hex.EncodeToString(reverseBytes(txid.Bytes()))}, &res); err != nil {
		return 0, false, false, err
	}
	switch {
	case res.Confirmations < 0:
		return 0, false, true, nil
	case res.Confirmations == 0:
		return 0, false, false, nil
	default:
		return uint64(res.BlockHeight), true, false, nil
	}
}

// Txid implements rpcsrv.TxIder: a Bitcoin txid is the double-SHA256 of
// the raw transaction bytes, reversed to the network's customary display
// order. This is ordinary hashing, not consensus transaction parsing, so
// it stays local rather than round tripping to bitcoind.
func (c *Client) Txid(raw []byte) (primitives.Buf32, error) {
	return TxidOf(raw), nil
}

// TxidOf computes the txid of raw transaction bytes directly.
func TxidOf(raw []byte) primitives.Buf32 {
	first := sha256.Sum256(raw)
	second := sha256.Sum256(first[:])
	var out primitives.Buf32
	copy(out[:], reverseBytes(second[:]))
	return out
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

type signRawTransactionResult struct {
	Hex      string `json:"hex"`
	Complete bool   `json:"complete"`
}

// SignRawTransactionWithWallet implements inscription.WalletSigner.
func (c *Client) SignRawTransactionWithWallet(ctx context.Context, raw []byte) ([]byte, error) {
	var res signRawTransactionResult
	if err := c.call(ctx, "signrawtransactionwithwallet", []interface{}{hex.EncodeToString(raw)}, &res); err != nil {
		return nil, err
	}
	if !res.Complete {
		return nil, fmt.Errorf("l1rpc: wallet left inputs unsigned")
	}
	return hex.DecodeString(res.Hex)
}

type unspentEntry struct {
	Txid          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Amount        float64 `json:"amount"`
	Confirmations int64   `json:"confirmations"`
}

// SelectFundingUtxo implements inscription.UtxoSource: it lists the
// wallet's unspent outputs and picks the first confirmed one able to cover
// minValue, the same "first fit" selection original_source's funding_utxo
// lookup uses rather than coin-selection optimization.
func (c *Client) SelectFundingUtxo(ctx context.Context, minValue uint64) (inscription.TxInput, uint64, error) {
	var utxos []unspentEntry
	if err := c.call(ctx, "listunspent", []interface{}{1}, &utxos); err != nil {
		return inscription.TxInput{}, 0, err
	}
	for _, u := range utxos {
		valueSats := uint64(u.Amount * 1e8)
		if valueSats < minValue {
			continue
		}
		txidBytes, err := hex.DecodeString(u.Txid)
		if err != nil {
			return inscription.TxInput{}, 0, fmt.Errorf("l1rpc: bad txid from listunspent: %w", err)
		}
		var prevTxid primitives.Buf32
		copy(prevTxid[:], reverseBytes(txidBytes))
		return inscription.TxInput{PrevTxid: prevTxid, PrevVout: u.Vout}, valueSats, nil
	}
	return inscription.TxInput{}, 0, fmt.Errorf("l1rpc: no unspent output >= %d sats", minValue)
}

type blockchainInfoResult struct {
	Blocks int64 `json:"blocks"`
}

type blockHashResult = string

// TipHeight returns bitcoind's current best block height, for seeding
// statusbus.L1Status on startup and as the poll target for the L1 block
// ingestion loop driving l1reader.Tracker.
func (c *Client) TipHeight(ctx context.Context) (uint64, error) {
	var res blockchainInfoResult
	if err := c.call(ctx, "getblockchaininfo", nil, &res); err != nil {
		return 0, err
	}
	return uint64(res.Blocks), nil
}

type blockHeaderResult struct {
	Hash          string `json:"hash"`
	Height        int64  `json:"height"`
	PreviousBlock string `json:"previousblockhash"`
}

// HeaderAt returns the block id and parent id for the block at height,
// the minimal information l1reader.Tracker.OnBlock needs to derive
// SyncEvents — getblockheader rather than getblock, since the ingestion
// loop only tracks chain shape, not transaction contents.
func (c *Client) HeaderAt(ctx context.Context, height uint64) (id, parent primitives.L1BlockId, err error) {
	hash, err := c.BlockHash(ctx, height)
	if err != nil {
		return primitives.L1BlockId{}, primitives.L1BlockId{}, err
	}
	var res blockHeaderResult
	if err := c.call(ctx, "getblockheader", []interface{}{hex.EncodeToString(reverseBytes(hash[:]))}, &res); err != nil {
		return primitives.L1BlockId{}, primitives.L1BlockId{}, err
	}
	id = primitives.NewL1BlockId(hash)
	if res.PreviousBlock == "" {
		return id, primitives.L1BlockId{}, nil
	}
	prevRaw, err := hex.DecodeString(res.PreviousBlock)
	if err != nil {
		return primitives.L1BlockId{}, primitives.L1BlockId{}, fmt.Errorf("l1rpc: bad previousblockhash: %w", err)
	}
	var prevBuf primitives.Buf32
	copy(prevBuf[:], reverseBytes(prevRaw))
	return id, primitives.NewL1BlockId(prevBuf), nil
}

// BlockHash returns the hash of the block at height, for building
// primitives.L1BlockId values the manifest-polling loop would otherwise
// get from a full L1 reader (not retrieved into this pack; see DESIGN.md).
func (c *Client) BlockHash(ctx context.Context, height uint64) (primitives.Buf32, error) {
	var hashHex blockHashResult
	if err := c.call(ctx, "getblockhash", []interface{}{height}, &hashHex); err != nil {
		return primitives.Buf32{}, err
	}
	raw, err := hex.DecodeString(hashHex)
	if err != nil {
		return primitives.Buf32{}, fmt.Errorf("l1rpc: bad block hash: %w", err)
	}
	var out primitives.Buf32
	copy(out[:], reverseBytes(raw))
	return out, nil
}
