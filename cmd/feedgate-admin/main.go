// ABOUTME: Admin CLI for feedgate token and session management
// ABOUTME: Operates directly on the configured database, no server required

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/fluxmill/feedgate/internal/auth"
	"github.com/fluxmill/feedgate/internal/config"
	"github.com/fluxmill/feedgate/internal/store"
)

const banner = `
  __               _            _               _           _
 / _| ___  ___  __| | __ _  __ _| |_ ___      __ _  __| |_ __ ___ (_)_ __
| |_ / _ \/ _ \/ _' |/ _' |/ _' | __/ _ \____/ _' |/ _' | '_ ' _ \| | '_ \
|  _|  __/  __/ (_| | (_| | (_| | ||  __/____| (_| | (_| | | | | | | | | |
|_|  \___|\___|\__,_|\__, |\__,_|\__\___|     \__,_|\__,_|_| |_| |_|_|_| |_|
                     |___/
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "token":
		err = cmdToken(ctx, args)
	case "session":
		err = cmdSession(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: feedgate-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  token create --owner ID [--name NAME] [--scopes a,b] [--ttl 720h]")
	fmt.Println("                          Create an access token (plaintext shown once)")
	fmt.Println("  token list --owner ID   List an owner's tokens")
	fmt.Println("  token revoke <id>       Revoke a token by ID")
	fmt.Println("  session create --user ID [--ttl 24h]")
	fmt.Println("                          Mint a session credential for REST access")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  FEEDGATE_CONFIG         Config file path (default: ~/.config/feedgate/feedgate.yaml)")
	fmt.Println()
}

// getConfigPath mirrors the server's config resolution.
func getConfigPath() string {
	if envPath := os.Getenv("FEEDGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "feedgate.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "feedgate", "feedgate.yaml")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}

type tokenFlags struct {
	owner  string
	name   string
	scopes []string
	ttl    time.Duration
}

func parseTokenFlags(args []string) (tokenFlags, []string, error) {
	var flags tokenFlags
	var rest []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		value := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			i++
			return args[i], nil
		}

		switch arg {
		case "--owner", "--user":
			v, err := value()
			if err != nil {
				return flags, nil, err
			}
			flags.owner = v
		case "--name":
			v, err := value()
			if err != nil {
				return flags, nil, err
			}
			flags.name = v
		case "--scopes":
			v, err := value()
			if err != nil {
				return flags, nil, err
			}
			for _, scope := range strings.Split(v, ",") {
				if scope = strings.TrimSpace(scope); scope != "" {
					flags.scopes = append(flags.scopes, scope)
				}
			}
		case "--ttl":
			v, err := value()
			if err != nil {
				return flags, nil, err
			}
			ttl, err := time.ParseDuration(v)
			if err != nil {
				return flags, nil, fmt.Errorf("parsing --ttl %q: %w", v, err)
			}
			flags.ttl = ttl
		default:
			if strings.HasPrefix(arg, "-") {
				return flags, nil, fmt.Errorf("unknown flag: %s", arg)
			}
			rest = append(rest, arg)
		}
	}

	return flags, rest, nil
}

func cmdToken(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: feedgate-admin token <create|list|revoke>")
	}

	sub := args[0]
	flags, rest, err := parseTokenFlags(args[1:])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	switch sub {
	case "create":
		return tokenCreate(ctx, s, flags)
	case "list":
		return tokenList(ctx, s, flags)
	case "revoke":
		if len(rest) != 1 {
			return fmt.Errorf("usage: feedgate-admin token revoke <id>")
		}
		return tokenRevoke(ctx, s, rest[0])
	default:
		return fmt.Errorf("unknown token subcommand: %s", sub)
	}
}

func tokenCreate(ctx context.Context, s *store.SQLiteStore, flags tokenFlags) error {
	if flags.owner == "" {
		return fmt.Errorf("--owner is required")
	}

	var expiresAt *time.Time
	if flags.ttl > 0 {
		t := time.Now().Add(flags.ttl).UTC()
		expiresAt = &t
	}

	issuer := auth.NewTokenIssuer(s)
	secret, record, err := issuer.Issue(ctx, flags.owner, flags.name, flags.scopes, expiresAt)
	if err != nil {
		return fmt.Errorf("creating token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Println("Token created. The plaintext is shown once and cannot be recovered.")
	fmt.Println()
	fmt.Printf("  ID:      %s\n", record.ID)
	fmt.Printf("  Token:   %s\n", secret)
	fmt.Printf("  Scopes:  %s\n", strings.Join(record.Scopes, ", "))
	if record.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", record.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Printf("  Expires: never\n")
	}
	return nil
}

func tokenList(ctx context.Context, s *store.SQLiteStore, flags tokenFlags) error {
	if flags.owner == "" {
		return fmt.Errorf("--owner is required")
	}

	tokens, err := s.ListAccessTokens(ctx, flags.owner)
	if err != nil {
		return fmt.Errorf("listing tokens: %w", err)
	}

	if len(tokens) == 0 {
		fmt.Println("No tokens.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSCOPES\tEXPIRES\tLAST USED\tCREATED")
	for _, t := range tokens {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.Name,
			strings.Join(t.Scopes, ","),
			formatOptional(t.ExpiresAt),
			formatOptional(t.LastUsedAt),
			t.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return w.Flush()
}

func tokenRevoke(ctx context.Context, s *store.SQLiteStore, id string) error {
	if err := s.DeleteAccessToken(ctx, id); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	color.Green("Revoked %s", id)
	return nil
}

func cmdSession(args []string) error {
	if len(args) < 1 || args[0] != "create" {
		return fmt.Errorf("usage: feedgate-admin session create --user ID [--ttl 24h]")
	}

	flags, _, err := parseTokenFlags(args[1:])
	if err != nil {
		return err
	}
	if flags.owner == "" {
		return fmt.Errorf("--user is required")
	}

	ttl := flags.ttl
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessions := auth.NewJWTSessionVerifier([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionAudiences)
	token, err := sessions.Generate(flags.owner, ttl)
	if err != nil {
		return fmt.Errorf("generating session: %w", err)
	}

	fmt.Println(token)
	return nil
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
