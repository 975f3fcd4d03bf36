package vault

import (
	"encoding/binary"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

type txnBeginBody struct {
	txnID [16]byte
	ts    int64
}

func encodeTxnBegin(b txnBeginBody) []byte {
	buf := make([]byte, 16+8)
	copy(buf[0:16], b.txnID[:])
	binary.LittleEndian.PutUint64(buf[16:24], uint64(b.ts))
	return buf
}

func decodeTxnBegin(buf []byte) (txnBeginBody, error) {
	var b txnBeginBody
	if len(buf) != 24 {
		return b, vaulterr.ErrUnexpectedEOF
	}
	copy(b.txnID[:], buf[0:16])
	b.ts = int64(binary.LittleEndian.Uint64(buf[16:24]))
	return b, nil
}

// encryptedBlobObjectBody stores a sealed blob (nonce||ciphertext||tag, as
// produced by vaultcrypto.Seal) alongside its content id and kind tag.
type encryptedBlobObjectBody struct {
	contentID [32]byte
	kind      uint8
	sealed    []byte
}

func encodeEncryptedBlobObject(b encryptedBlobObjectBody) []byte {
	buf := make([]byte, 32+1+len(b.sealed))
	copy(buf[0:32], b.contentID[:])
	buf[32] = b.kind
	copy(buf[33:], b.sealed)
	return buf
}

func decodeEncryptedBlobObject(buf []byte) (encryptedBlobObjectBody, error) {
	var b encryptedBlobObjectBody
	if len(buf) < 33 {
		return b, vaulterr.ErrUnexpectedEOF
	}
	copy(b.contentID[:], buf[0:32])
	b.kind = buf[32]
	b.sealed = append([]byte(nil), buf[33:]...)
	return b, nil
}

type encryptedIndexSnapshotBody struct {
	sealed []byte
}

func encodeEncryptedIndexSnapshot(b encryptedIndexSnapshotBody) []byte {
	return append([]byte(nil), b.sealed...)
}

func decodeEncryptedIndexSnapshot(buf []byte) encryptedIndexSnapshotBody {
	return encryptedIndexSnapshotBody{sealed: append([]byte(nil), buf...)}
}

type txnCommitBody struct {
	txnID      [16]byte
	indexOff   uint64
	indexLen   uint32
	indexHash  [32]byte
	ts         int64
}

func encodeTxnCommit(b txnCommitBody) []byte {
	buf := make([]byte, 16+8+4+32+8)
	copy(buf[0:16], b.txnID[:])
	binary.LittleEndian.PutUint64(buf[16:24], b.indexOff)
	binary.LittleEndian.PutUint32(buf[24:28], b.indexLen)
	copy(buf[28:60], b.indexHash[:])
	binary.LittleEndian.PutUint64(buf[60:68], uint64(b.ts))
	return buf
}

func decodeTxnCommit(buf []byte) (txnCommitBody, error) {
	var b txnCommitBody
	if len(buf) != 68 {
		return b, vaulterr.ErrUnexpectedEOF
	}
	copy(b.txnID[:], buf[0:16])
	b.indexOff = binary.LittleEndian.Uint64(buf[16:24])
	b.indexLen = binary.LittleEndian.Uint32(buf[24:28])
	copy(b.indexHash[:], buf[28:60])
	b.ts = int64(binary.LittleEndian.Uint64(buf[60:68]))
	return b, nil
}
