package classify

import (
	"errors"
	"fmt"
)

// Kind identifies the failure site of a per-record error
type Kind string

const (
	KindParse     Kind = "parse"
	KindMissingIP Kind = "missing_ip"
	KindLookup    Kind = "lookup"
	KindPersist   Kind = "persist"
	KindOversize  Kind = "oversize"
)

// RecordError is a defect confined to one dataset line. It is reported and
// the scan continues with the next line.
type RecordError struct {
	Kind Kind
	Line int64
	IP   string
	Err  error
}

func (e *RecordError) Error() string {
	if e.IP != "" {
		return fmt.Sprintf("line %d (%s): %s: %v", e.Line, e.IP, e.Kind, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Kind, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// FileError is a failure of the dataset or pointer file itself. It aborts
// the run and the job must not be marked complete.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// KindOf returns the kind of a RecordError in err's chain, or "" if there is none
func KindOf(err error) Kind {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsFileError reports whether err is a file-level failure
func IsFileError(err error) bool {
	var fe *FileError
	return errors.As(err, &fe)
}
