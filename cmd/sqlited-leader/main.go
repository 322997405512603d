// Command sqlited-leader runs a leader process: it owns a SQLite
// database and serves followers over the framed protocol (spec §1,
// §4.3).
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hnjm/SQLiteServer/internal/engine"
	"github.com/hnjm/SQLiteServer/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		listenAddr string
		sqliteDSN  string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "sqlited-leader",
		Short: "Run a sqlited leader process",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			return run(listenAddr, sqliteDSN)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8226", "address to accept follower connections on")
	cmd.Flags().StringVar(&sqliteDSN, "sqlite-dsn", "file:sqlited.db", "database/sql DSN for the owned SQLite database")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	return cmd
}

func run(listenAddr, sqliteDSN string) error {
	e, err := engine.Open(sqliteDSN)
	if err != nil {
		return err
	}
	defer e.Close()

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	logger.Info("leader listening", logger.Ctx{"addr": listenAddr, "sqlite_dsn": sqliteDSN})

	srv := engine.NewServer(e)
	return srv.Serve(ln)
}
