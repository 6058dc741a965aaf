package blockheaderstore

import (
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
)

func binaryUint64(value uint64) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(value)
	return writer.Bytes()
}

func binaryReader(data []byte) *binaryserialization.Reader {
	return binaryserialization.NewReader(data)
}
