package vault

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

type fileHeader struct {
	version   uint32
	accountID [32]byte
}

func encodeFileHeader(h fileHeader) []byte {
	buf := make([]byte, FileHeaderSize)
	copy(buf[0:8], magicFileHeader)
	binary.LittleEndian.PutUint32(buf[8:12], h.version)
	copy(buf[12:44], h.accountID[:])
	crc := crc32.ChecksumIEEE(buf[0:44])
	binary.LittleEndian.PutUint32(buf[44:48], crc)
	return buf
}

func decodeFileHeader(buf []byte) (fileHeader, error) {
	var h fileHeader
	if len(buf) != FileHeaderSize {
		return h, vaulterr.New(vaulterr.CodeUnexpectedEOF, "short file header")
	}
	if string(buf[0:8]) != magicFileHeader {
		return h, vaulterr.ErrInvalidMagic
	}
	crc := crc32.ChecksumIEEE(buf[0:44])
	if binary.LittleEndian.Uint32(buf[44:48]) != crc {
		return h, vaulterr.ErrChecksumMismatch
	}
	h.version = binary.LittleEndian.Uint32(buf[8:12])
	copy(h.accountID[:], buf[12:44])
	return h, nil
}

type superblock struct {
	generation uint64
	commitOff  uint64
	commitHash [32]byte
}

func encodeSuperblock(sb superblock) []byte {
	buf := make([]byte, SuperblockSize)
	copy(buf[0:5], magicSuperblock)
	binary.LittleEndian.PutUint64(buf[5:13], sb.generation)
	binary.LittleEndian.PutUint64(buf[13:21], sb.commitOff)
	copy(buf[21:53], sb.commitHash[:])
	crc := crc32.ChecksumIEEE(buf[0:53])
	binary.LittleEndian.PutUint32(buf[53:57], crc)
	return buf
}

// decodeSuperblock returns ok=false (not an error) whenever the slot fails
// any structural check — slot validity is a normal branch, not a fault.
func decodeSuperblock(buf []byte) (superblock, bool) {
	var sb superblock
	if len(buf) != SuperblockSize {
		return sb, false
	}
	if string(buf[0:5]) != magicSuperblock {
		return sb, false
	}
	crc := crc32.ChecksumIEEE(buf[0:53])
	if binary.LittleEndian.Uint32(buf[53:57]) != crc {
		return sb, false
	}
	sb.generation = binary.LittleEndian.Uint64(buf[5:13])
	sb.commitOff = binary.LittleEndian.Uint64(buf[13:21])
	copy(sb.commitHash[:], buf[21:53])
	return sb, true
}

type recordEnvelope struct {
	typ  recordType
	ver  uint16
	body []byte
}

// encodeRecord serializes a full record (envelope header + body) ready to append.
func encodeRecord(typ recordType, body []byte) []byte {
	header := make([]byte, recordEnvelopeHeaderSize)
	copy(header[0:4], magicRecord)
	binary.LittleEndian.PutUint16(header[4:6], uint16(typ))
	binary.LittleEndian.PutUint16(header[6:8], currentRecordVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(body)))
	crc := crc32.ChecksumIEEE(header[0:12])
	binary.LittleEndian.PutUint32(header[12:16], crc)

	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	out = append(out, body...)
	return out
}

// decodeRecordAt decodes the record envelope header starting at buf[0] and
// returns the full record (header+body) plus its total on-disk length.
func decodeRecordAt(buf []byte) (recordEnvelope, int, error) {
	var rec recordEnvelope
	if len(buf) < recordEnvelopeHeaderSize {
		return rec, 0, vaulterr.ErrUnexpectedEOF
	}
	header := buf[0:recordEnvelopeHeaderSize]
	if string(header[0:4]) != magicRecord {
		return rec, 0, vaulterr.ErrInvalidMagic
	}
	crc := crc32.ChecksumIEEE(header[0:12])
	if binary.LittleEndian.Uint32(header[12:16]) != crc {
		return rec, 0, vaulterr.ErrChecksumMismatch
	}
	rec.typ = recordType(binary.LittleEndian.Uint16(header[4:6]))
	rec.ver = binary.LittleEndian.Uint16(header[6:8])
	bodyLen := binary.LittleEndian.Uint32(header[8:12])
	total := recordEnvelopeHeaderSize + int(bodyLen)
	if len(buf) < total {
		return rec, 0, vaulterr.ErrUnexpectedEOF
	}
	rec.body = buf[recordEnvelopeHeaderSize:total]
	return rec, total, nil
}
