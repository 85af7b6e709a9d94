package db

import "errors"

var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	ErrAliasExists   = errors.New("db: alias already exists")
	ErrNotReady      = errors.New("db: backend not ready")
)

// Command names used as the Op of an Error.
const (
	OpPing        = "PING"
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpListIndexes = "FT._LIST"
	OpAliasAdd    = "FT.ALIASADD"
	OpSearch      = "FT.SEARCH"
	OpAggregate   = "FT.AGGREGATE"
	OpDel         = "DEL"
	OpHGetAll     = "HGETALL"
	OpHSet        = "HSET"
	OpExists      = "EXISTS"
	OpJSONSet     = "JSON.SET"
	OpJSONGet     = "JSON.GET"
)

// Error records which backend command failed. Key is empty for commands
// that do not address a single key.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, otherwise an *Error for op on key.
func Wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Err: err}
}

// OpOf reports the command name carried by err, if any.
func OpOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Op, true
	}
	return "", false
}
