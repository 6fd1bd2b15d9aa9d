// eatgo-call issues one EatGo API call with the stored bearer credential.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eatgo/apic"
	"github.com/eatgo/apic/credstore"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var (
	baseURL     string
	method      string
	data        string
	storePath   string
	storeDriver string
	storeDSN    string
	storeTable  string
	tokenKey    string
	marker      string
	twoPhase    bool
	timeout     time.Duration
	checkExpiry bool
)

var rootCmd = &cobra.Command{
	Use:   "eatgo-call [flags] <path>",
	Short: "Call the EatGo API with the stored bearer token",
	Long: "Sends one request and prints the status line and body.\n" +
		"Requests whose URL contains the API marker carry \"Authorization: Bearer <token>\"\n" +
		"when the credential store holds a usable token.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCall,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&baseURL, "base-url", "", "Base URL relative paths are resolved against")
	f.StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	f.StringVarP(&data, "data", "d", "", "Request body")
	f.StringVar(&storePath, "store", "", "Credential file (.json, .yaml or .yml)")
	f.StringVar(&storeDriver, "store-driver", "", "SQL driver for the credential store (sqlite3|postgres)")
	f.StringVar(&storeDSN, "store-dsn", "", "SQL data source name for the credential store")
	f.StringVar(&storeTable, "store-table", "credentials", "SQL table holding credentials")
	f.StringVar(&tokenKey, "key", credstore.DefaultKey, "Key the token is stored under")
	f.StringVar(&marker, "marker", "/api/", "Path fragment marking protected API calls")
	f.BoolVar(&twoPhase, "two-phase", false, "Send through the open/set-header/send call")
	f.DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	f.BoolVar(&checkExpiry, "check-expiry", false, "Skip JWT tokens whose exp has passed")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func storeConfig() (credstore.Config, error) {
	switch {
	case storePath != "" && storeDriver != "":
		return credstore.Config{}, fmt.Errorf("--store and --store-driver are mutually exclusive")
	case storePath != "":
		return credstore.Config{Kind: "file", Path: storePath}, nil
	case storeDriver != "":
		return credstore.Config{Kind: "sql", Driver: storeDriver, DSN: storeDSN, Table: storeTable}, nil
	default:
		return credstore.Config{}, nil
	}
}

func runCall(cmd *cobra.Command, args []string) error {
	storeCfg, err := storeConfig()
	if err != nil {
		return err
	}

	cfg := apic.Config{BaseURL: baseURL, Timeout: timeout, Store: storeCfg}
	cfg.Auth.TokenKey = tokenKey
	cfg.Auth.APIMarker = marker
	cfg.Auth.CheckExpiry = checkExpiry

	client, err := apic.New(apic.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var resp *http.Response
	if twoPhase {
		resp, err = sendCall(ctx, client, args[0])
	} else {
		resp, err = sendRequest(ctx, client, args[0])
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return nil
}

func sendRequest(ctx context.Context, client apic.Client, target string) (*http.Response, error) {
	var opts []apic.ReqOption
	if data != "" {
		opts = append(opts, apic.WithRaw([]byte(data), "application/json"))
	}
	r, err := client.Do(ctx, apic.NewRequest(method, target, opts...))
	if err != nil {
		return nil, err
	}
	return r.Raw(), nil
}

func sendCall(ctx context.Context, client apic.Client, target string) (*http.Response, error) {
	call := client.NewCall()
	if err := call.Open(method, target); err != nil {
		return nil, err
	}
	var body io.Reader
	if data != "" {
		if err := call.SetRequestHeader("Content-Type", "application/json"); err != nil {
			return nil, err
		}
		body = strings.NewReader(data)
	}
	return call.Send(ctx, body)
}
