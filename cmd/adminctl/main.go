// Command adminctl drives the server's admin endpoints: listing bindings,
// deleting a user, and triggering a sweep. The admin token is read from
// the TYPERANK_ADMIN_TOKEN environment variable or prompted without echo.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const tokenEnvVar = "TYPERANK_ADMIN_TOKEN"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: adminctl [-s server] <command>

Commands:
  list               list bindings (usernames and credential digests)
  delete <username>  remove a user's binding and profile
  sweep              run one revalidation sweep now
`)
	os.Exit(2)
}

func getToken() (string, error) {
	if token := os.Getenv(tokenEnvVar); token != "" {
		return token, nil
	}
	fmt.Println("Enter admin token")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("empty admin token")
	}
	return token, nil
}

func call(server, token, method, path string) error {
	req, err := http.NewRequest(method, server+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	hc := &http.Client{Timeout: 30 * time.Second}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func main() {
	server := flag.String("s", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	token, err := getToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	base := strings.TrimRight(*server, "/")

	switch args[0] {
	case "list":
		err = call(base, token, http.MethodGet, "/api/admin/bindings")
	case "delete":
		if len(args) != 2 {
			usage()
		}
		err = call(base, token, http.MethodDelete, "/api/admin/bindings/"+args[1])
	case "sweep":
		err = call(base, token, http.MethodPost, "/api/admin/sweep")
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
