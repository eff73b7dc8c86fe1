// Command queue-cli is a minimal interactive client for the queue
// protocol server: it dials, reconnects with backoff on failure, and
// relays stdin lines to the connection, printing replies to stdout.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jessevdk/go-flags"
)

type options struct {
	Addr string `long:"addr" description:"queued server address" default:"127.0.0.1:5248"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	conn, err := dialWithBackoff(opts.Addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queue-cli: could not connect to %s: %v\n", opts.Addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "connected to %s\n", opts.Addr)
	go printReplies(conn)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasSuffix(line, ";") {
			line += ";"
		}
		if _, err := conn.Write([]byte(line)); err != nil {
			fmt.Fprintf(os.Stderr, "queue-cli: write failed: %v\n", err)
			return
		}
	}
}

// dialWithBackoff retries the initial connection with exponential
// backoff, the same resiliency pattern the teacher hand-rolled for AMQP
// reconnects (server/config.go's Reconnect* fields) but expressed with
// cenkalti/backoff instead of a custom retry loop.
func dialWithBackoff(addr string) (net.Conn, error) {
	var conn net.Conn
	operation := func() error {
		c, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return conn, nil
}

func printReplies(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			fmt.Print(line)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "queue-cli: connection closed: %v\n", err)
			return
		}
	}
}
