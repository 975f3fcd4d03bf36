package account

import (
	"context"
	"errors"

	"github.com/worldcoin/walletkit-vault/transfer"
	"github.com/worldcoin/walletkit-vault/vault"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

// errTransferNoOp aborts an in-flight vault.Transaction without committing
// it, once applyImport discovers the incoming record is not newer than the
// local one. The appended-but-uncommitted TxnBegin bytes are orphaned,
// exactly the same as any other cancelled transaction (see vault package).
var errTransferNoOp = errors.New("transfer: no-op import")

// ExportCredential produces an active credential transfer: the record plus
// its decrypted blobs, sealed under this account's vault key.
func (a *Account) ExportCredential(id vaulttypes.CredentialID) ([]byte, error) {
	cred, assoc, err := a.GetCredential(id)
	if err != nil {
		return nil, err
	}
	rec, err := a.GetCredentialRecord(id)
	if err != nil {
		return nil, err
	}
	return transfer.Encode(a.key, a.accountID, transfer.Bytes{
		Version:   a.cfg.TransferVersion,
		Record:    rec,
		CredBlob:  cred,
		AssocData: assoc,
	})
}

// ExportCredentialTombstone produces a tombstone transfer carrying only the
// record's metadata, no blobs — typically used after RetireCredential.
func (a *Account) ExportCredentialTombstone(id vaulttypes.CredentialID) ([]byte, error) {
	rec, err := a.GetCredentialRecord(id)
	if err != nil {
		return nil, err
	}
	return transfer.Encode(a.key, a.accountID, transfer.Bytes{
		Version:     a.cfg.TransferVersion,
		Record:      rec,
		IsTombstone: true,
	})
}

// ExportAllCredentials exports every credential known to this account:
// active records as full exports, retired records as tombstones.
func (a *Account) ExportAllCredentials() ([][]byte, error) {
	idx := a.vault.Index()
	out := make([][]byte, 0, len(idx.Records))
	for _, rec := range idx.Records {
		var (
			sealed []byte
			err    error
		)
		if rec.Status == vaulttypes.CredentialStatusRetired {
			sealed, err = a.ExportCredentialTombstone(rec.CredentialID)
		} else {
			sealed, err = a.ExportCredential(rec.CredentialID)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sealed)
	}
	return out, nil
}

// ImportCredential decodes and applies a single credential transfer,
// reporting whether it was Applied or was a NoOp under last-writer-wins.
func (a *Account) ImportCredential(ctx context.Context, sealed []byte, now int64) (transfer.Outcome, error) {
	payload, err := transfer.Decode(a.key, a.accountID, sealed, a.cfg)
	if err != nil {
		return "", err
	}
	return a.applyImport(ctx, payload, now)
}

// ImportCredentials imports a batch of transfer messages in order, stopping
// at the first error. The returned slice holds the outcome of every
// transfer processed before that point.
func (a *Account) ImportCredentials(ctx context.Context, sealedItems [][]byte, now int64) ([]transfer.Outcome, error) {
	outcomes := make([]transfer.Outcome, 0, len(sealedItems))
	for _, sealed := range sealedItems {
		outcome, err := a.ImportCredential(ctx, sealed, now)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (a *Account) applyImport(ctx context.Context, payload transfer.Bytes, now int64) (transfer.Outcome, error) {
	var outcome transfer.Outcome
	err := a.withLock(ctx, func() error {
		return a.vault.Transaction(now, func(t *vault.Txn) error {
			idx := t.Index()
			local := idx.FindCredential(payload.Record.CredentialID)
			if !transfer.ShouldApply(local, payload.Record) {
				outcome = transfer.NoOp
				return errTransferNoOp
			}

			rec := payload.Record
			if !payload.IsTombstone {
				credPtr, err := t.PutBlob(payload.CredBlob, vaulttypes.BlobKindCredential)
				if err != nil {
					return err
				}
				rec.CredentialBlobCID = credPtr.ContentID
				if payload.AssocData != nil {
					assocPtr, err := t.PutBlob(payload.AssocData, vaulttypes.BlobKindAssociatedData)
					if err != nil {
						return err
					}
					cid := assocPtr.ContentID
					rec.AssociatedDataCID = &cid
				} else {
					rec.AssociatedDataCID = nil
				}
			}
			idx.UpsertRecord(rec)
			outcome = transfer.Applied
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, errTransferNoOp) {
			return transfer.NoOp, nil
		}
		return "", err
	}
	return outcome, nil
}
