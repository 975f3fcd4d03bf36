package vaulttypes

// VaultKey is the 32-byte high-entropy key anchoring an account's vault
// file. Callers must call Zero once the key is no longer needed.
type VaultKey [32]byte

// Zero overwrites the key in place. Go has no destructors, so callers must
// defer this explicitly at every scope that holds a decrypted VaultKey.
func (k *VaultKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// BlindSeed is a 32-byte seed used to derive issuer or session blinds.
type BlindSeed [32]byte

func (s *BlindSeed) Zero() {
	for i := range s {
		s[i] = 0
	}
}

// AccountState is the small per-device encrypted record that anchors an
// account's key hierarchy. One exists per device per account and is
// rewritten atomically on every change.
type AccountState struct {
	Version          uint32
	AccountID        AccountID
	LeafIndexCache   *uint64 // optional hint; never a source of truth
	IssuerBlindSeed  BlindSeed
	SessionBlindSeed BlindSeed
	WrappedVaultKey  []byte
	DeviceID         DeviceID
	UpdatedAt        int64
}

// Zero clears the blinding seeds held in this AccountState.
func (s *AccountState) Zero() {
	if s == nil {
		return
	}
	s.IssuerBlindSeed.Zero()
	s.SessionBlindSeed.Zero()
}

// CredentialRecord is the metadata upserted by put_credential and updated
// by retire_credential.
type CredentialRecord struct {
	CredentialID      CredentialID
	IssuerSchemaID    uint64
	CreatedAt         int64
	UpdatedAt         int64
	ExpiresAt         *int64
	CredentialBlobCID ContentID
	AssociatedDataCID *ContentID
	Status            CredentialStatus
}

// IsExpired reports whether the record has a populated ExpiresAt in the past.
func (r *CredentialRecord) IsExpired(now int64) bool {
	return r.ExpiresAt != nil && *r.ExpiresAt <= now
}

// BlobPointer locates one stored blob, deduplicated by ContentID.
type BlobPointer struct {
	ContentID ContentID
	Offset    uint64
	Length    uint32
	Kind      BlobKind
}

// VaultIndex is the canonical snapshot of all records and blob pointers for
// one account, rewritten on every committed transaction.
type VaultIndex struct {
	Version   uint32
	AccountID AccountID
	Sequence  uint64
	UpdatedAt int64
	Records   []CredentialRecord
	Blobs     []BlobPointer
}

// FindCredential returns a pointer to the record with the given id, or nil.
func (idx *VaultIndex) FindCredential(id CredentialID) *CredentialRecord {
	for i := range idx.Records {
		if idx.Records[i].CredentialID == id {
			return &idx.Records[i]
		}
	}
	return nil
}

// UpsertRecord replaces the record sharing CredentialID, or appends rec as
// a new record when none exists.
func (idx *VaultIndex) UpsertRecord(rec CredentialRecord) {
	for i := range idx.Records {
		if idx.Records[i].CredentialID == rec.CredentialID {
			idx.Records[i] = rec
			return
		}
	}
	idx.Records = append(idx.Records, rec)
}

// FindBlob returns a pointer to the BlobPointer with the given content id, or nil.
func (idx *VaultIndex) FindBlob(cid ContentID) *BlobPointer {
	for i := range idx.Blobs {
		if idx.Blobs[i].ContentID == cid {
			return &idx.Blobs[i]
		}
	}
	return nil
}

// BumpSequence advances the index to the next committed generation.
func (idx *VaultIndex) BumpSequence(now int64) {
	idx.Sequence++
	idx.UpdatedAt = now
}

// CredentialFilter narrows list_credentials results. The zero value matches
// active, non-expired credentials of any issuer schema.
type CredentialFilter struct {
	IssuerSchemaID *uint64
	Status         *CredentialStatus
	IncludeExpired bool
	AnyStatus      bool
}

// NewCredentialFilter returns the default filter: active, non-expired.
func NewCredentialFilter() CredentialFilter {
	return CredentialFilter{}
}

// WithIssuerSchemaID narrows the filter to one issuer schema.
func (f CredentialFilter) WithIssuerSchemaID(id uint64) CredentialFilter {
	f.IssuerSchemaID = &id
	return f
}

// WithStatus narrows the filter to one status.
func (f CredentialFilter) WithStatus(s CredentialStatus) CredentialFilter {
	f.Status = &s
	return f
}

// IncludingExpired allows expired credentials to match.
func (f CredentialFilter) IncludingExpired() CredentialFilter {
	f.IncludeExpired = true
	return f
}

// AnyStatusAllowed allows both active and retired credentials to match.
func (f CredentialFilter) AnyStatusAllowed() CredentialFilter {
	f.AnyStatus = true
	return f
}

// Matches reports whether a record satisfies the filter at time now.
func (f CredentialFilter) Matches(r *CredentialRecord, now int64) bool {
	if !f.AnyStatus {
		want := CredentialStatusActive
		if f.Status != nil {
			want = *f.Status
		}
		if r.Status != want {
			return false
		}
	} else if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.IssuerSchemaID != nil && r.IssuerSchemaID != *f.IssuerSchemaID {
		return false
	}
	if !f.IncludeExpired && r.IsExpired(now) {
		return false
	}
	return true
}
