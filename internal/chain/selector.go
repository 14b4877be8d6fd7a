package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// selectorMask truncates a keccak256 hash to 250 bits, the Starknet
// entry-point selector encoding (sn_keccak).
var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector returns the sn_keccak entry-point selector for a function name
// as a 0x-prefixed felt.
func Selector(name string) string {
	h := crypto.Keccak256([]byte(name))
	v := new(big.Int).SetBytes(h)
	v.And(v, selectorMask)
	return hexutil.EncodeBig(v)
}
