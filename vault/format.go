// Package vault implements the append-only, dual-superblock container file
// that persists one account's credential state. All multi-byte integers are
// little-endian. Every structural boundary (header, superblock, record
// envelope) carries its own CRC-32 so that a torn or partial write is
// rejected by checksum rather than misread as data.
package vault

const (
	magicFileHeader = "WIDVAULT"
	magicSuperblock = "WIDSB"
	magicRecord     = "WIDR"

	fileHeaderVersion = 1

	// FileHeaderSize is the fixed size of the leading file header:
	// magic(8) + version(4) + account_id(32) + crc32(4).
	FileHeaderSize = 48

	// SuperblockSize is the fixed size of one superblock slot:
	// magic(5) + generation(8) + commit_off(8) + commit_hash(32) + crc32(4).
	SuperblockSize = 57

	SuperblockAOffset = FileHeaderSize
	SuperblockBOffset = SuperblockAOffset + SuperblockSize
	DataRegionStart   = SuperblockBOffset + SuperblockSize

	// recordEnvelopeHeaderSize is magic(4) + type(2) + rec_ver(2) +
	// body_len(4) + header_crc32(4), preceding every record body.
	recordEnvelopeHeaderSize = 16
)

type recordType uint16

const (
	recordTypeTxnBegin            recordType = 1
	recordTypeEncryptedBlobObject  recordType = 2
	recordTypeEncryptedIndexSnap   recordType = 3
	recordTypeTxnCommit           recordType = 4
)

const currentRecordVersion uint16 = 1
