package script

import (
	"github.com/btcsuite/btcd/txscript"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// Template returns a zero-filled output script of the given kind, sized
// like a real one. OP_RETURN templates carry an 80-byte payload. Unknown
// kinds return nil.
func Template(kind types.ScriptKind) []byte {
	b := txscript.NewScriptBuilder()
	switch kind {
	case types.ScriptKindP2PKH:
		b.AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
			AddData(make([]byte, 20)).
			AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG)
	case types.ScriptKindP2SH:
		b.AddOp(txscript.OP_HASH160).AddData(make([]byte, 20)).AddOp(txscript.OP_EQUAL)
	case types.ScriptKindP2WPKH:
		b.AddOp(txscript.OP_0).AddData(make([]byte, 20))
	case types.ScriptKindP2WSH:
		b.AddOp(txscript.OP_0).AddData(make([]byte, 32))
	case types.ScriptKindP2TR:
		b.AddOp(txscript.OP_1).AddData(make([]byte, 32))
	case types.ScriptKindOpReturn:
		b.AddOp(txscript.OP_RETURN).AddData(make([]byte, 80))
	default:
		return nil
	}
	pkScript, err := b.Script()
	if err != nil {
		return nil
	}
	return pkScript
}
