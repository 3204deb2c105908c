package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/sidgs/performance-management-sub001/internal/auth"
	"github.com/sidgs/performance-management-sub001/internal/bridge"
	"github.com/sidgs/performance-management-sub001/internal/config"
	"github.com/sidgs/performance-management-sub001/internal/portal"
	"github.com/sidgs/performance-management-sub001/internal/storage"
	"github.com/sidgs/performance-management-sub001/pkg/logger"
	"github.com/sidgs/performance-management-sub001/pkg/types"
	"github.com/sidgs/performance-management-sub001/sdk"
)

const pairingTimeout = 2 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("pulse", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	serverURL := fs.String("server-url", "", "Agent backend URL")
	portalURL := fs.String("portal-url", "", "Portal relay URL")
	debug := fs.Bool("debug", false, "Enable debug logging")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showHelp {
		printUsage()
		return nil
	}
	if args := fs.Args(); len(args) > 0 {
		switch args[0] {
		case "help":
			printUsage()
			return nil
		case "version":
			fmt.Println("pulse-cli v1.0.0")
			return nil
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *portalURL != "" {
		cfg.PortalURL = *portalURL
	}
	if *debug {
		cfg.Debug = true
		cfg.Log.Level = "debug"
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	store, err := storage.NewFileStore(filepath.Join(cfg.HomeDir, "state"))
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	var channel bridge.MessageChannel
	if cfg.PortalURL != "" {
		storedToken := auth.NewResolver(auth.NewCredentialStore(store), nil).Resolve()
		relay := portal.NewChannel(cfg.PortalURL, storedToken, cfg.Debug)
		if err := relay.Connect(); err != nil {
			logger.Warnf("portal relay unavailable: %v", err)
		} else {
			if !relay.WaitForConnect(5 * time.Second) {
				logger.Warnf("portal relay connection timed out, continuing without it")
			}
			channel = relay
			defer relay.Close()
		}
	}

	client, err := sdk.NewClient(sdk.Options{
		ServerURL: cfg.ServerURL,
		Store:     store,
		Channel:   channel,
		Listener:  &consoleListener{},
		EmbeddedSources: []auth.EmbeddedSource{
			{Name: "environment", Lookup: func() string { return os.Getenv("PULSE_AUTH_TOKEN") }},
		},
		WidgetExplicit: cfg.ExplicitWidget(),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if client.Token() == "" {
		if err := pairWithPortal(cfg, client); err != nil {
			return err
		}
	}

	if err := client.Initialize(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if claims := client.Claims(); claims != nil {
		name := claims.DisplayName
		if name == "" {
			name = claims.UserID
		}
		fmt.Printf("Signed in as %s\n", name)
	}
	fmt.Printf("Server: %s\n", cfg.ServerURL)
	fmt.Println(`Type a message to chat, or /help for commands.`)

	return repl(client, widgetURL(cfg))
}

// widgetURL is the standalone widget address shown by /qr, for moving a
// conversation onto another device.
func widgetURL(cfg *config.Config) string {
	base := cfg.PortalURL
	if base == "" {
		base = cfg.ServerURL
	}
	return strings.TrimSuffix(base, "/") + "/?widget=true"
}

// pairWithPortal renders the portal sign-in URL as a QR code and waits for
// the credential to arrive, either over the relay channel or pasted into the
// environment on a restart.
func pairWithPortal(cfg *config.Config, client *sdk.Client) error {
	loginURL := cfg.PortalURL
	if loginURL == "" {
		return fmt.Errorf("no credential available: set PULSE_AUTH_TOKEN or configure portal_url for pairing")
	}
	loginURL = strings.TrimSuffix(loginURL, "/") + "/login?widget=true"

	qr, err := qrcode.New(loginURL, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("render pairing code: %w", err)
	}
	fmt.Println("Scan to sign in:")
	fmt.Println(qr.ToSmallString(false))
	fmt.Println(loginURL)
	fmt.Println("Waiting for sign-in...")

	deadline := time.Now().Add(pairingTimeout)
	for time.Now().Before(deadline) {
		if client.Token() != "" {
			fmt.Println("Paired.")
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("pairing timed out after %s", pairingTimeout)
}

func repl(client *sdk.Client, widgetURL string) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	printSessions(client)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && err != io.EOF {
				return err
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := handleCommand(client, widgetURL, line)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := client.SendMessage(line, nil); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printLastReply(client)
	}
}

func handleCommand(client *sdk.Client, widgetURL, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		printREPLHelp()
	case "/sessions":
		printSessions(client)
	case "/select":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /select <number>")
		}
		id, err := sessionByIndex(client, fields[1])
		if err != nil {
			return false, err
		}
		client.SelectSession(id)
		printHistory(client, id)
	case "/new":
		if err := client.NewSession(); err != nil {
			return false, err
		}
		fmt.Printf("Started session %s\n", client.ActiveSessionID())
	case "/delete":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /delete <number>")
		}
		id, err := sessionByIndex(client, fields[1])
		if err != nil {
			return false, err
		}
		if err := client.DeleteSession(id); err != nil {
			return false, err
		}
		fmt.Printf("Deleted %s, now on %s\n", id, client.ActiveSessionID())
	case "/attach":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /attach <path> [message]")
		}
		data, err := os.ReadFile(fields[1])
		if err != nil {
			return false, err
		}
		message := strings.Join(fields[2:], " ")
		att := &types.Attachment{Name: filepath.Base(fields[1]), Data: data}
		if err := client.SendMessage(message, att); err != nil {
			return false, err
		}
		printLastReply(client)
	case "/history":
		printHistory(client, client.ActiveSessionID())
	case "/claims":
		printClaims(client)
	case "/qr":
		qr, err := qrcode.New(widgetURL, qrcode.Medium)
		if err != nil {
			return false, err
		}
		fmt.Println(qr.ToSmallString(false))
		fmt.Println(widgetURL)
	case "/logout":
		client.Logout()
		fmt.Println("Signed out.")
		return true, nil
	case "/quit", "/exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

func sessionByIndex(client *sdk.Client, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("not a session number: %s", arg)
	}
	sessions := client.Sessions()
	if n < 1 || n > len(sessions) {
		return "", fmt.Errorf("session %d out of range (have %d)", n, len(sessions))
	}
	return sessions[n-1].SessionID, nil
}

func printSessions(client *sdk.Client) {
	sessions := client.Sessions()
	active := client.ActiveSessionID()
	fmt.Printf("Sessions (%d):\n", len(sessions))
	for i, s := range sessions {
		marker := " "
		if s.SessionID == active {
			marker = "*"
		}
		fmt.Printf(" %s %d. %s (%d messages)\n", marker, i+1, s.SessionID, s.InteractionCount)
	}
}

func printHistory(client *sdk.Client, sessionID string) {
	for _, msg := range client.Messages(sessionID) {
		printMessage(msg)
	}
}

func printLastReply(client *sdk.Client) {
	history := client.Messages(client.ActiveSessionID())
	if len(history) == 0 {
		return
	}
	printMessage(history[len(history)-1])
}

func printMessage(msg types.ChatMessage) {
	who := "you"
	if msg.Role == types.RoleAssistant {
		who = msg.AgentName
		if who == "" {
			who = "agent"
		}
	}
	fmt.Printf("[%s] %s\n", who, msg.Content)
}

func printClaims(client *sdk.Client) {
	claims := client.Claims()
	if claims == nil {
		fmt.Println("No credential.")
		return
	}
	fmt.Printf("User:  %s\n", claims.UserID)
	fmt.Printf("Name:  %s\n", claims.DisplayName)
	fmt.Printf("Email: %s\n", claims.Email)
	if len(claims.Roles) > 0 {
		fmt.Printf("Roles: %s\n", strings.Join(claims.Roles, ", "))
	}
	if !claims.ExpiresAt.IsZero() {
		fmt.Printf("Expires: %s\n", claims.ExpiresAt.Format(time.RFC3339))
	}
}

func printREPLHelp() {
	fmt.Println(`Commands:
  /sessions          List sessions
  /select <number>   Switch to a session
  /new               Start a new session
  /delete <number>   Delete a session
  /history           Show the active session's messages
  /attach <path> [message]  Send a file
  /claims            Show the signed-in identity
  /qr                Show the widget URL as a QR code
  /logout            Drop stored credentials and exit
  /quit              Exit`)
}

func printUsage() {
	fmt.Println(`pulse - terminal client for the Pulse EPM agent

Usage:
  pulse                Start an interactive chat session
  pulse version        Show version information
  pulse help           Show this help message

Environment Variables:
  PULSE_SERVER_URL   Agent backend URL (default: http://localhost:3000)
  PULSE_PORTAL_URL   Portal relay URL (enables QR pairing)
  PULSE_HOME_DIR     State directory (default: ~/.pulse)
  PULSE_AUTH_TOKEN   Bearer token, used when no stored credential exists
  PULSE_DEBUG        Enable debug logging (true/1)

Flags:
  --config           Path to config file
  --server-url       Agent backend URL
  --portal-url       Portal relay URL
  --debug            Enable debug logging`)
}

// consoleListener surfaces client events on the terminal.
type consoleListener struct{}

func (consoleListener) OnCredentialChanged(reason string) {
	if reason == auth.ReasonInvalidated {
		fmt.Println("\nCredential rejected by the backend; sign in again.")
	}
}

func (consoleListener) OnSessionsRefreshed() {}

func (consoleListener) OnNotice(message string) {
	fmt.Printf("\nNotice: %s\n", message)
}
