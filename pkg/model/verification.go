package model

// CheckKind names one dimension of file verification.
type CheckKind string

// Supported verification checks.
const (
	CheckChecksum CheckKind = "checksum"
	CheckSize     CheckKind = "size"
	CheckArchive  CheckKind = "archive"
)

// VerificationRecord is the transient result of checking one on-disk file
// against its FileRecord. Results holds one entry per requested check.
type VerificationRecord struct {
	ItemID   string
	FileName string
	Path     string
	Missing  bool
	Results  map[CheckKind]bool
	Deleted  bool // set when the delete-on-failure disposition removed the file
}

// Passed reports whether the file was present and every requested check
// succeeded.
func (r VerificationRecord) Passed() bool {
	if r.Missing {
		return false
	}
	for _, ok := range r.Results {
		if !ok {
			return false
		}
	}
	return true
}

// Failed reports whether the file was present but at least one check failed.
// A missing file is reported as missing, not failed.
func (r VerificationRecord) Failed() bool {
	if r.Missing {
		return false
	}
	for _, ok := range r.Results {
		if !ok {
			return true
		}
	}
	return false
}

// ItemStatus aggregates the verification results of one item's files.
type ItemStatus string

// Aggregate item statuses.
const (
	ItemAllPassed   ItemStatus = "passed"
	ItemSomeFailed  ItemStatus = "failed"
	ItemSomeMissing ItemStatus = "missing"
)
