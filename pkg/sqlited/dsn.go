package sqlited

import (
	"net/url"
	"strconv"
	"time"

	"github.com/hnjm/SQLiteServer/internal/errs"
)

// Options is the parsed form of a connection string: the options the
// core reads (spec §6 "Connection-string options consumed") plus
// every other query parameter, collected verbatim in Forwarded.
// Nothing in this module passes Forwarded on: the leader's SQLite
// open step uses the separate DSN given to Connection.RunLeader.
//
// Connection strings are parsed as URLs, since the corpus carries no
// third-party DSN parser for a bespoke embedded-SQLite scheme (the
// go-sql-driver/mysql and jackc/pgx DSN parsers are tied to their own
// wire formats and would misparse this one); net/url is the stdlib
// exception recorded in DESIGN.md.
type Options struct {
	Raw            string
	DefaultTimeout time.Duration
	// HasDefaultTimeout distinguishes "option absent, use the
	// package default" from "DefaultTimeout=0, meaning no timeout"
	// (spec §6: "0 = no timeout").
	HasDefaultTimeout bool
	Forwarded         url.Values
}

// ParseOptions parses a connection string of the form
// "sqlited://host:port/dbname?DefaultTimeout=5000&..." per spec §6.
func ParseOptions(dsn string) (Options, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Options{}, errs.InvalidOperation("invalid connection string: %v", err)
	}

	values := u.Query()
	opts := Options{Raw: dsn, Forwarded: url.Values{}}

	for key, vals := range values {
		if key == "DefaultTimeout" {
			continue
		}
		opts.Forwarded[key] = vals
	}

	timeoutStr := values.Get("DefaultTimeout")
	if timeoutStr == "" {
		return opts, nil
	}
	ms, err := strconv.ParseInt(timeoutStr, 10, 64)
	if err != nil || ms < 0 {
		return Options{}, errs.InvalidOperation("DefaultTimeout must be a non-negative integer, got %q", timeoutStr)
	}
	opts.DefaultTimeout = time.Duration(ms) * time.Millisecond
	opts.HasDefaultTimeout = true
	return opts, nil
}
