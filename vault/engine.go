package vault

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/platform"
	"github.com/worldcoin/walletkit-vault/vaultcrypto"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

// Vault is one open credential container file for a single account. It owns
// the backing VaultFileStore handle; callers must serialize access with the
// account lock (see lockmgr) — Vault's own mutex only protects its
// in-memory cache against same-process races, it is not a substitute for
// the cross-process account lock.
type Vault struct {
	store     platform.VaultFileStore
	key       [32]byte
	accountID vaulttypes.AccountID
	cfg       config.Config

	mu         sync.Mutex
	slotAIsLive bool
	generation uint64
	index      vaulttypes.VaultIndex
}

// OpenOrCreate opens an existing vault file, or initializes a fresh one if
// the store is empty.
func OpenOrCreate(store platform.VaultFileStore, accountID vaulttypes.AccountID, key [32]byte, cfg config.Config, now int64) (*Vault, error) {
	length, err := store.Len()
	if err != nil {
		return nil, vaulterr.IO("stat vault file", err)
	}
	if length == 0 {
		return create(store, accountID, key, cfg, now)
	}
	return open(store, accountID, key, cfg)
}

func create(store platform.VaultFileStore, accountID vaulttypes.AccountID, key [32]byte, cfg config.Config, now int64) (*Vault, error) {
	if err := store.SetLen(int64(DataRegionStart)); err != nil {
		return nil, vaulterr.IO("allocate header region", err)
	}
	header := encodeFileHeader(fileHeader{version: cfg.FileHeaderVersion, accountID: [32]byte(accountID)})
	if _, err := store.WriteAt(header, 0); err != nil {
		return nil, vaulterr.IO("write file header", err)
	}

	v := &Vault{store: store, key: key, accountID: accountID, cfg: cfg}
	emptyIndex := vaulttypes.VaultIndex{
		Version:   cfg.IndexVersion,
		AccountID: accountID,
		Sequence:  0,
		UpdatedAt: now,
	}
	if err := v.commitIndex(emptyIndex, now); err != nil {
		return nil, err
	}
	return v, nil
}

func open(store platform.VaultFileStore, accountID vaulttypes.AccountID, key [32]byte, cfg config.Config) (*Vault, error) {
	length, err := store.Len()
	if err != nil {
		return nil, vaulterr.IO("stat vault file", err)
	}
	headerBuf := make([]byte, FileHeaderSize)
	if _, err := store.ReadAt(headerBuf, 0); err != nil {
		return nil, vaulterr.IO("read file header", err)
	}
	header, err := decodeFileHeader(headerBuf)
	if err != nil {
		return nil, err
	}
	if header.version != cfg.FileHeaderVersion {
		return nil, vaulterr.ErrInvalidVersion
	}
	if header.accountID != [32]byte(accountID) {
		return nil, vaulterr.ErrAccountIDMismatch
	}

	sbA, okA := readSuperblockSlot(store, SuperblockAOffset)
	sbB, okB := readSuperblockSlot(store, SuperblockBOffset)
	validA := okA && validateSuperblock(store, sbA, length)
	validB := okB && validateSuperblock(store, sbB, length)

	var chosen superblock
	var slotAIsLive bool
	switch {
	case validA && validB:
		if sbA.generation >= sbB.generation {
			chosen, slotAIsLive = sbA, true
		} else {
			chosen, slotAIsLive = sbB, false
		}
	case validA:
		chosen, slotAIsLive = sbA, true
	case validB:
		chosen, slotAIsLive = sbB, false
	default:
		return nil, vaulterr.ErrNoValidSuperblock
	}

	commitRecord, err := readRecordFull(store, int64(chosen.commitOff))
	if err != nil {
		return nil, err
	}
	if commitRecord.typ != recordTypeTxnCommit {
		return nil, vaulterr.ErrCorruptedData
	}
	commitBody, err := decodeTxnCommit(commitRecord.body)
	if err != nil {
		return nil, err
	}

	indexRecord, err := readRecordFull(store, int64(commitBody.indexOff))
	if err != nil {
		return nil, err
	}
	if indexRecord.typ != recordTypeEncryptedIndexSnap {
		return nil, vaulterr.ErrCorruptedData
	}
	snapshot := decodeEncryptedIndexSnapshot(indexRecord.body)
	if vaultcrypto.RecordHash(snapshot.sealed) != commitBody.indexHash {
		return nil, vaulterr.ErrChecksumMismatch
	}
	plaintext, err := vaultcrypto.Open(key, vaultcrypto.AADVaultIndex([32]byte(accountID)), snapshot.sealed)
	if err != nil {
		return nil, err
	}
	index, err := deserializeIndex(plaintext)
	if err != nil {
		return nil, err
	}

	return &Vault{
		store:       store,
		key:         key,
		accountID:   accountID,
		cfg:         cfg,
		slotAIsLive: slotAIsLive,
		generation:  chosen.generation,
		index:       index,
	}, nil
}

func readSuperblockSlot(store platform.VaultFileStore, offset int64) (superblock, bool) {
	buf := make([]byte, SuperblockSize)
	if _, err := store.ReadAt(buf, offset); err != nil {
		return superblock{}, false
	}
	return decodeSuperblock(buf)
}

func validateSuperblock(store platform.VaultFileStore, sb superblock, fileLen int64) bool {
	if int64(sb.commitOff) < int64(DataRegionStart) || int64(sb.commitOff) >= fileLen {
		return false
	}
	rec, err := readRecordFull(store, int64(sb.commitOff))
	if err != nil || rec.typ != recordTypeTxnCommit {
		return false
	}
	if vaultcrypto.RecordHash(rec.body) != sb.commitHash {
		return false
	}
	commitBody, err := decodeTxnCommit(rec.body)
	if err != nil {
		return false
	}
	indexRec, err := readRecordFull(store, int64(commitBody.indexOff))
	return err == nil && indexRec.typ == recordTypeEncryptedIndexSnap
}

// readRecordFull reads the full record (envelope+body) located at offset,
// first peeking the envelope header to learn the body length.
func readRecordFull(store platform.VaultFileStore, offset int64) (recordEnvelope, error) {
	headerBuf := make([]byte, recordEnvelopeHeaderSize)
	if _, err := store.ReadAt(headerBuf, offset); err != nil {
		return recordEnvelope{}, vaulterr.IO("read record header", err)
	}
	bodyLen := binary.LittleEndian.Uint32(headerBuf[8:12])
	full := make([]byte, recordEnvelopeHeaderSize+int(bodyLen))
	if _, err := store.ReadAt(full, offset); err != nil {
		return recordEnvelope{}, vaulterr.IO("read record body", err)
	}
	rec, _, err := decodeRecordAt(full)
	if err != nil {
		return recordEnvelope{}, err
	}
	return rec, nil
}

func appendRecord(store platform.VaultFileStore, typ recordType, body []byte) (int64, int, error) {
	full := encodeRecord(typ, body)
	off, err := store.Append(full)
	if err != nil {
		return 0, 0, vaulterr.IO("append record", err)
	}
	return off, len(full), nil
}

// Index returns a snapshot of the currently committed vault index.
func (v *Vault) Index() vaulttypes.VaultIndex {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneIndex(v.index)
}

func cloneIndex(idx vaulttypes.VaultIndex) vaulttypes.VaultIndex {
	out := idx
	out.Records = append([]vaulttypes.CredentialRecord(nil), idx.Records...)
	out.Blobs = append([]vaulttypes.BlobPointer(nil), idx.Blobs...)
	return out
}

// ReadBlob reads and decrypts the blob referenced by ptr, verifying its
// envelope checksum and content id before decryption.
func (v *Vault) ReadBlob(ptr vaulttypes.BlobPointer) ([]byte, error) {
	buf := make([]byte, ptr.Length)
	if _, err := v.store.ReadAt(buf, int64(ptr.Offset)); err != nil {
		return nil, vaulterr.IO("read blob record", err)
	}
	rec, total, err := decodeRecordAt(buf)
	if err != nil {
		return nil, err
	}
	if total != len(buf) || rec.typ != recordTypeEncryptedBlobObject {
		return nil, vaulterr.ErrCorruptedData
	}
	blob, err := decodeEncryptedBlobObject(rec.body)
	if err != nil {
		return nil, err
	}
	if blob.contentID != ptr.ContentID {
		return nil, vaulterr.New(vaulterr.CodeCorruptedData, "blob content id mismatch")
	}
	aad := aadForKind(v.accountID, ptr.ContentID, vaulttypes.BlobKind(blob.kind))
	return vaultcrypto.Open(v.key, aad, blob.sealed)
}

func aadForKind(accountID vaulttypes.AccountID, cid vaulttypes.ContentID, kind vaulttypes.BlobKind) []byte {
	if kind == vaulttypes.BlobKindAssociatedData {
		return vaultcrypto.AADBlobAssociatedData([32]byte(accountID), [32]byte(cid))
	}
	return vaultcrypto.AADBlobCredential([32]byte(accountID), [32]byte(cid))
}

// Txn is the in-flight working set for one vault transaction.
type Txn struct {
	v     *Vault
	index vaulttypes.VaultIndex
}

// Index returns the transaction's mutable working index. Callers append,
// update, or remove CredentialRecord entries directly; blob pointers are
// only ever added via PutBlob.
func (t *Txn) Index() *vaulttypes.VaultIndex { return &t.index }

// PutBlob encrypts and appends plaintext as a new blob record, unless a
// blob with the same content id already exists in the working index, in
// which case its existing pointer is reused.
func (t *Txn) PutBlob(plaintext []byte, kind vaulttypes.BlobKind) (vaulttypes.BlobPointer, error) {
	cid := vaulttypes.ContentID(vaultcrypto.ContentID(plaintext))
	if existing := t.index.FindBlob(cid); existing != nil {
		return *existing, nil
	}
	aad := aadForKind(t.v.accountID, cid, kind)
	sealed, err := vaultcrypto.Seal(t.v.key, aad, plaintext)
	if err != nil {
		return vaulttypes.BlobPointer{}, err
	}
	body := encodeEncryptedBlobObject(encryptedBlobObjectBody{
		contentID: [32]byte(cid),
		kind:      uint8(kind),
		sealed:    sealed,
	})
	off, total, err := appendRecord(t.v.store, recordTypeEncryptedBlobObject, body)
	if err != nil {
		return vaulttypes.BlobPointer{}, err
	}
	ptr := vaulttypes.BlobPointer{ContentID: cid, Offset: uint64(off), Length: uint32(total), Kind: kind}
	t.index.Blobs = append(t.index.Blobs, ptr)
	return ptr, nil
}

// Transaction runs fn under the vault's in-process mutex, appending a
// TxnBegin record before fn runs and, if fn succeeds, committing a fresh
// index snapshot and advancing the superblock. If fn returns an error, the
// appended-but-uncommitted bytes are left in place; the next open ignores
// them since no superblock references them.
func (v *Vault) Transaction(now int64, fn func(t *Txn) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var txnID [16]byte
	if _, err := rand.Read(txnID[:]); err != nil {
		return vaulterr.Wrap(vaulterr.CodeInternal, "generate txn id", err)
	}
	if _, _, err := appendRecord(v.store, recordTypeTxnBegin, encodeTxnBegin(txnBeginBody{txnID: txnID, ts: now})); err != nil {
		return err
	}

	txn := &Txn{v: v, index: cloneIndex(v.index)}
	if err := fn(txn); err != nil {
		return err
	}
	return v.commitLocked(txn.index, txnID, now)
}

// commitIndex is used by create() to publish the initial empty index; it
// takes the lock itself since no transaction has begun yet.
func (v *Vault) commitIndex(idx vaulttypes.VaultIndex, now int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	var txnID [16]byte
	if _, err := rand.Read(txnID[:]); err != nil {
		return vaulterr.Wrap(vaulterr.CodeInternal, "generate txn id", err)
	}
	if _, _, err := appendRecord(v.store, recordTypeTxnBegin, encodeTxnBegin(txnBeginBody{txnID: txnID, ts: now})); err != nil {
		return err
	}
	return v.commitLocked(idx, txnID, now)
}

func (v *Vault) commitLocked(idx vaulttypes.VaultIndex, txnID [16]byte, now int64) error {
	idx.BumpSequence(now)
	plaintext, err := serializeIndex(idx)
	if err != nil {
		return err
	}
	sealed, err := vaultcrypto.Seal(v.key, vaultcrypto.AADVaultIndex([32]byte(v.accountID)), plaintext)
	if err != nil {
		return err
	}
	indexOff, indexTotal, err := appendRecord(v.store, recordTypeEncryptedIndexSnap, encodeEncryptedIndexSnapshot(encryptedIndexSnapshotBody{sealed: sealed}))
	if err != nil {
		return err
	}
	indexHash := vaultcrypto.RecordHash(sealed)

	commitBody := txnCommitBody{
		txnID:     txnID,
		indexOff:  uint64(indexOff),
		indexLen:  uint32(indexTotal),
		indexHash: indexHash,
		ts:        now,
	}
	commitBodyBytes := encodeTxnCommit(commitBody)
	commitOff, _, err := appendRecord(v.store, recordTypeTxnCommit, commitBodyBytes)
	if err != nil {
		return err
	}
	if err := v.store.Sync(); err != nil {
		return vaulterr.IO("fsync vault data", err)
	}

	newGeneration := v.generation + 1
	targetOffset := int64(SuperblockBOffset)
	if !v.slotAIsLive {
		targetOffset = int64(SuperblockAOffset)
	}
	sbBytes := encodeSuperblock(superblock{
		generation: newGeneration,
		commitOff:  uint64(commitOff),
		commitHash: vaultcrypto.RecordHash(commitBodyBytes),
	})
	if _, err := v.store.WriteAt(sbBytes, targetOffset); err != nil {
		return vaulterr.IO("write superblock", err)
	}
	if err := v.store.Sync(); err != nil {
		return vaulterr.IO("fsync superblock", err)
	}

	v.slotAIsLive = !v.slotAIsLive
	v.generation = newGeneration
	v.index = idx
	return nil
}

// Close releases the underlying file handle.
func (v *Vault) Close() error {
	return v.store.Close()
}
