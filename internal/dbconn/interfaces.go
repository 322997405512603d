// Package dbconn defines the narrow interfaces that let the client
// facade (pkg/sqlited) bind to either a local, in-leader-process
// worker or a remote follower worker without knowing which (spec
// §1: "Followers present an API that mirrors the normal embedded
// database client surface... so callers cannot tell whether the
// database is being driven locally or remotely").
package dbconn

import "github.com/hnjm/SQLiteServer/internal/wire"

// Command is satisfied by both worker.Command (remote) and
// local.Command (same-process leader), matching spec §4.4's
// command-worker contract.
type Command interface {
	ExecuteNonQuery() (int32, error)
	ExecuteReader(behavior uint32) (Reader, error)
	Dispose()
}

// Reader is satisfied by both worker.Reader (remote) and
// local.Reader (same-process leader), matching spec §4.4's
// reader-worker contract.
type Reader interface {
	Read() (bool, error)
	GetOrdinal(name string) (int32, error)
	GetString(ord uint16) (string, error)
	GetInt16(ord uint16) (int16, error)
	GetInt32(ord uint16) (int32, error)
	GetInt64(ord uint16) (int64, error)
	GetFieldType(ord uint16) (wire.SQLiteType, error)
	Columns() []wire.ColumnDescriptor
	Dispose()
}
