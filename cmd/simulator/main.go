// Command simulator is an interactive client for exercising a running
// gateway from a terminal: each line typed becomes one /query turn.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/adapter/transport"
	"github.com/parlance-ai/parlance/internal/domain"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "gateway base URL")
	clientID  = flag.String("client", "simulator-1", "client id")
	userID    = flag.String("user", "simuser-1", "user id")
	locale    = flag.String("locale", "en-US", "request locale")
	trace     = flag.Bool("trace", false, "request trace info with every turn")
	verbose   = flag.Bool("verbose", false, "enable verbose logging")
)

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	proto := transport.NewJSONProtocol(logger)
	httpClient := &http.Client{Timeout: 30 * time.Second}

	fmt.Printf("Connected to %s as %s/%s. Type a query, or 'quit'.\n", *serverURL, *userID, *clientID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "quit" || line == "exit" {
			break
		}
		if line == "" {
			continue
		}
		if err := runTurn(httpClient, proto, line); err != nil {
			fmt.Fprintln(os.Stderr, "turn failed:", err)
		}
	}
}

func runTurn(httpClient *http.Client, proto transport.Protocol, text string) error {
	var flags uint32
	if *trace {
		flags = domain.FlagTrace
	}
	payload, err := proto.WriteRequest(&domain.Request{
		SchemaVersion:   domain.CurrentSchemaVersion,
		TraceID:         domain.NewTraceID(),
		InteractionType: domain.InputTyped,
		TextInput:       text,
		Flags:           flags,
		ClientContext: &domain.ClientContext{
			ClientID:          *clientID,
			UserID:            *userID,
			ClientName:        "terminal simulator",
			Locale:            *locale,
			Capabilities:      domain.CapDisplayBasicText | domain.CapDisplayUnlimitedText,
			ReferenceDateTime: time.Now().Format("2006-01-02T15:04:05"),
		},
	})
	if err != nil {
		return err
	}

	httpResp, err := httpClient.Post(*serverURL+"/query", proto.MimeType(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return err
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", httpResp.StatusCode, body)
	}

	resp, err := proto.ParseResponse(body)
	if err != nil {
		return err
	}
	switch resp.ExecutionResult {
	case domain.ResultSuccess:
		fmt.Println(resp.ResponseText)
	case domain.ResultSkip:
		fmt.Println("(no plugin answered)")
	default:
		fmt.Println("error:", resp.ErrorMessage)
	}
	if resp.ResponseURL != "" {
		fmt.Println("  more:", resp.ResponseURL)
	}
	for _, ev := range resp.TraceInfo {
		fmt.Printf("  [%s] %s %s: %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Level, ev.Component, ev.Message)
	}
	return nil
}
