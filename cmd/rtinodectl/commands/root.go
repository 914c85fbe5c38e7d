// Package commands implements rtinodectl, the administrative CLI for a
// running rtinode: it talks to the node's admin HTTP surface and never
// touches the RTI wire protocol.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/openrti/rtinode/internal/adminapi"
)

var (
	serverAddr string
	authToken  string
)

var rootCmd = &cobra.Command{
	Use:           "rtinodectl",
	Short:         "Inspect a running rtinode",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "http://127.0.0.1:8316", "admin API base URL")
	rootCmd.PersistentFlags().StringVarP(&authToken, "token", "t", os.Getenv("RTINODECTL_TOKEN"), "bearer token (defaults to $RTINODECTL_TOKEN)")

	rootCmd.AddCommand(federationsCmd)
	rootCmd.AddCommand(federatesCmd)
	rootCmd.AddCommand(connectsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// get fetches path from the admin API and decodes it into out.
func get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, serverAddr+path, nil)
	if err != nil {
		return err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var federationsCmd = &cobra.Command{
	Use:   "federations",
	Short: "List federation executions on the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		var feds []adminapi.FederationSummary
		if err := get("/federations", &feds); err != nil {
			return err
		}
		if len(feds) == 0 {
			fmt.Println("no federations")
			return nil
		}
		rows := make([][]string, 0, len(feds))
		for _, f := range feds {
			rows = append(rows, []string{
				f.Name,
				strconv.FormatUint(f.Handle, 10),
				strconv.Itoa(f.FederateCount),
				strconv.Itoa(f.ObjectInstances),
				strconv.Itoa(f.Modules),
			})
		}
		renderTable(cmd.OutOrStdout(), []string{"Name", "Handle", "Federates", "Instances", "Modules"}, rows)
		return nil
	},
}

var federatesCmd = &cobra.Command{
	Use:   "federates <federation-name>",
	Short: "List joined federates of one federation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var feds []adminapi.FederateSummary
		if err := get("/federations/"+args[0]+"/federates", &feds); err != nil {
			return err
		}
		rows := make([][]string, 0, len(feds))
		for _, f := range feds {
			rows = append(rows, []string{
				f.Name,
				strconv.FormatUint(f.Handle, 10),
				f.Type,
				strconv.FormatBool(f.TimeRegulating),
				strconv.FormatBool(f.ResignPending),
			})
		}
		renderTable(cmd.OutOrStdout(), []string{"Name", "Handle", "Type", "Regulating", "Resigning"}, rows)
		return nil
	},
}

var connectsCmd = &cobra.Command{
	Use:   "connects",
	Short: "List transport connects on the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		var conns []adminapi.ConnectSummary
		if err := get("/connects", &conns); err != nil {
			return err
		}
		rows := make([][]string, 0, len(conns))
		for _, c := range conns {
			rows = append(rows, []string{
				strconv.FormatUint(c.Handle, 10),
				c.Name,
				strconv.FormatBool(c.IsParent),
			})
		}
		renderTable(cmd.OutOrStdout(), []string{"Handle", "Name", "Parent"}, rows)
		return nil
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint an admin API bearer token",
	Long: `Mint a bearer token for the admin API. The signing secret comes from
$RTINODE_ADMIN_JWT_SECRET and must match the node's admin.jwt_secret;
the issuer must match the node's server name ($RTINODE_SERVER_NAME,
default rtinode).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("RTINODE_ADMIN_JWT_SECRET")
		if secret == "" {
			return fmt.Errorf("RTINODE_ADMIN_JWT_SECRET is not set")
		}
		issuer := os.Getenv("RTINODE_SERVER_NAME")
		if issuer == "" {
			issuer = "rtinode"
		}
		auth := adminapi.NewAuth(secret, issuer)
		token, err := auth.IssueToken(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
