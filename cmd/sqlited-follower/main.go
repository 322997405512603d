// Command sqlited-follower is a demonstration follower process: it
// dials a leader and exposes the same client facade a local process
// would use, proving commands and readers are indistinguishable
// whether driven locally or remotely (spec §1).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hnjm/SQLiteServer/internal/logger"
	"github.com/hnjm/SQLiteServer/pkg/sqlited"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		leaderAddr string
		query      string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "sqlited-follower",
		Short: "Connect to a sqlited leader and run one statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			return run(cmd.Context(), leaderAddr, query)
		},
	}

	cmd.Flags().StringVar(&leaderAddr, "leader", "127.0.0.1:8226", "address of the leader to dial")
	cmd.Flags().StringVar(&query, "query", "", "SQL statement to run")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func run(ctx context.Context, leaderAddr, query string) error {
	conn, err := sqlited.Open("sqlited://follower?DefaultTimeout=5000")
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DialFollower(ctx, leaderAddr); err != nil {
		return err
	}

	command := conn.CreateCommand()
	command.SetCommandText(query)
	defer command.Dispose()

	changes, err := command.ExecuteNonQuery()
	if err != nil {
		return err
	}
	fmt.Printf("changes: %d\n", changes)
	return nil
}
