package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/bcrypthasher"
)

func newHashCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print a bcrypt hash of a password (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				plain = line
			}
			plain = strings.TrimSpace(plain)
			if plain == "" {
				return errors.New("password must not be empty")
			}

			h, err := bcrypthasher.New(cost)
			if err != nil {
				return err
			}
			out, err := h.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypthasher.DefaultCost, "bcrypt work factor")
	return cmd
}
