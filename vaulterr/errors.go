// Package vaulterr defines the stable error taxonomy returned across the
// credential storage core's public operations.
package vaulterr

import "fmt"

// Code is a closed set of stable, observable failure categories. Callers
// should compare against the package-level Err* sentinels with errors.Is,
// not against Code values directly, since the wrapped cause may vary.
type Code int

const (
	CodeUnknown Code = iota
	CodeIO
	CodeInvalidMagic
	CodeInvalidVersion
	CodeChecksumMismatch
	CodeCorruptedData
	CodeInvalidInput
	CodeUnexpectedEOF
	CodeDecryptionFailed
	CodeEncryptionFailed
	CodeKeyDerivationFailed
	CodeNoValidSuperblock
	CodeTransactionFailed
	CodeVaultLocked
	CodeVaultNotInitialized
	CodeAccountNotFound
	CodeAccountAlreadyExists
	CodeCredentialNotFound
	CodeBlobNotFound
	CodeNullifierAlreadyConsumed
	CodeActionAlreadyPending
	CodePendingActionNotFound
	CodePendingActionStoreFull
	CodeAccountIDMismatch
	CodeInvalidTransfer
	CodeKeystoreError
	CodeLockError
	CodeSerializationError
	CodeDeserializationError
	CodeUnsupportedVersion
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeIO:
		return "io"
	case CodeInvalidMagic:
		return "invalid_magic"
	case CodeInvalidVersion:
		return "invalid_version"
	case CodeChecksumMismatch:
		return "checksum_mismatch"
	case CodeCorruptedData:
		return "corrupted_data"
	case CodeInvalidInput:
		return "invalid_input"
	case CodeUnexpectedEOF:
		return "unexpected_eof"
	case CodeDecryptionFailed:
		return "decryption_failed"
	case CodeEncryptionFailed:
		return "encryption_failed"
	case CodeKeyDerivationFailed:
		return "key_derivation_failed"
	case CodeNoValidSuperblock:
		return "no_valid_superblock"
	case CodeTransactionFailed:
		return "transaction_failed"
	case CodeVaultLocked:
		return "vault_locked"
	case CodeVaultNotInitialized:
		return "vault_not_initialized"
	case CodeAccountNotFound:
		return "account_not_found"
	case CodeAccountAlreadyExists:
		return "account_already_exists"
	case CodeCredentialNotFound:
		return "credential_not_found"
	case CodeBlobNotFound:
		return "blob_not_found"
	case CodeNullifierAlreadyConsumed:
		return "nullifier_already_consumed"
	case CodeActionAlreadyPending:
		return "action_already_pending"
	case CodePendingActionNotFound:
		return "pending_action_not_found"
	case CodePendingActionStoreFull:
		return "pending_action_store_full"
	case CodeAccountIDMismatch:
		return "account_id_mismatch"
	case CodeInvalidTransfer:
		return "invalid_transfer"
	case CodeKeystoreError:
		return "keystore_error"
	case CodeLockError:
		return "lock_error"
	case CodeSerializationError:
		return "serialization_error"
	case CodeDeserializationError:
		return "deserialization_error"
	case CodeUnsupportedVersion:
		return "unsupported_version"
	case CodeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// StorageError is the single exported error type at the public operation
// boundary. It carries a stable Code plus an optional wrapped cause.
type StorageError struct {
	Code Code
	Msg  string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return e.Code.String()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, vaulterr.ErrCredentialNotFound) to match any
// *StorageError sharing the same Code, regardless of message or cause.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs a StorageError with no wrapped cause.
func New(code Code, msg string) *StorageError {
	return &StorageError{Code: code, Msg: msg}
}

// Wrap constructs a StorageError wrapping an underlying cause.
func Wrap(code Code, msg string, err error) *StorageError {
	return &StorageError{Code: code, Msg: msg, Err: err}
}

// Sentinels for errors.Is comparison at call sites. Each carries only a
// Code; messages and wrapped causes vary per call site and do not affect
// equality under Is.
var (
	ErrInvalidMagic             = &StorageError{Code: CodeInvalidMagic}
	ErrInvalidVersion           = &StorageError{Code: CodeInvalidVersion}
	ErrChecksumMismatch         = &StorageError{Code: CodeChecksumMismatch}
	ErrCorruptedData            = &StorageError{Code: CodeCorruptedData}
	ErrInvalidInput             = &StorageError{Code: CodeInvalidInput}
	ErrUnexpectedEOF            = &StorageError{Code: CodeUnexpectedEOF}
	ErrDecryptionFailed         = &StorageError{Code: CodeDecryptionFailed}
	ErrEncryptionFailed         = &StorageError{Code: CodeEncryptionFailed}
	ErrKeyDerivationFailed      = &StorageError{Code: CodeKeyDerivationFailed}
	ErrNoValidSuperblock        = &StorageError{Code: CodeNoValidSuperblock}
	ErrTransactionFailed        = &StorageError{Code: CodeTransactionFailed}
	ErrVaultLocked              = &StorageError{Code: CodeVaultLocked}
	ErrVaultNotInitialized      = &StorageError{Code: CodeVaultNotInitialized}
	ErrAccountNotFound          = &StorageError{Code: CodeAccountNotFound}
	ErrAccountAlreadyExists     = &StorageError{Code: CodeAccountAlreadyExists}
	ErrCredentialNotFound       = &StorageError{Code: CodeCredentialNotFound}
	ErrBlobNotFound             = &StorageError{Code: CodeBlobNotFound}
	ErrNullifierAlreadyConsumed = &StorageError{Code: CodeNullifierAlreadyConsumed}
	ErrActionAlreadyPending     = &StorageError{Code: CodeActionAlreadyPending}
	ErrPendingActionNotFound    = &StorageError{Code: CodePendingActionNotFound}
	ErrPendingActionStoreFull   = &StorageError{Code: CodePendingActionStoreFull}
	ErrAccountIDMismatch        = &StorageError{Code: CodeAccountIDMismatch}
	ErrInvalidTransfer          = &StorageError{Code: CodeInvalidTransfer}
	ErrKeystoreError            = &StorageError{Code: CodeKeystoreError}
	ErrLockError                = &StorageError{Code: CodeLockError}
	ErrUnsupportedVersion       = &StorageError{Code: CodeUnsupportedVersion}
)

// IO wraps a filesystem error under CodeIO.
func IO(msg string, err error) *StorageError { return Wrap(CodeIO, msg, err) }

// Internal wraps an unexpected failure that should never occur in practice.
func Internal(msg string, err error) *StorageError { return Wrap(CodeInternal, msg, err) }
