package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type cliOptions struct {
	server  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "catalog",
		Short:         "Client en ligne de commande du serveur catalogue",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("CATALOG_SERVER_URL", "http://127.0.0.1:8080"), "URL du serveur")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Timeout HTTP")

	root.AddCommand(
		newGetCmd(opts, "health", "État du serveur", "/api/v1/health"),
		newGetCmd(opts, "version", "Version du serveur", "/api/v1/version"),
		newGetCmd(opts, "whoami", "Profil courant", "/api/v1/session"),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newPageCmd(opts),
	)
	return root
}

func newGetCmd(opts *cliOptions, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd.OutOrStdout(), http.MethodGet, path, nil)
		},
	}
}

func newLoginCmd(opts *cliOptions) *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Enregistre le profil (nom + rôle)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]string{"displayName": name, "roleLabel": role})
			if err != nil {
				return err
			}
			return opts.call(cmd.OutOrStdout(), http.MethodPut, "/api/v1/session", body)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Nom affiché")
	cmd.Flags().StringVar(&role, "role", "", "Intitulé du poste")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newLogoutCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Efface le profil",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd.OutOrStdout(), http.MethodDelete, "/api/v1/session", nil)
		},
	}
}

func newPageCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "page [N]",
		Short: "Charge une page du catalogue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid page %q", args[0])
				}
				page = n
			}
			return opts.call(cmd.OutOrStdout(), http.MethodGet, "/api/v1/catalog?page="+strconv.Itoa(page), nil)
		},
	}
}

// call exécute la requête et affiche la réponse JSON indentée.
func (o *cliOptions) call(out io.Writer, method, path string, body []byte) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, o.server+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) > 0 {
		var pretty any
		if json.Unmarshal(b, &pretty) == nil {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			_ = enc.Encode(pretty)
		} else {
			fmt.Fprintln(out, string(b))
		}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
