// Command roastcli runs the roast pipeline against the configured provider
// from local files, and issues development session tokens.
//
// Usage:
//
//	roastcli roast --text chat.txt --image shot.png --gender Female --status "Talking Stage" --ask "is he lying?"
//	roastcli token --email me@example.com --premium
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/love-auditor/cmd/mainconfig"
	"github.com/wolfman30/love-auditor/internal/app/bootstrap"
	"github.com/wolfman30/love-auditor/internal/audit"
	appconfig "github.com/wolfman30/love-auditor/internal/config"
	"github.com/wolfman30/love-auditor/internal/http/middleware"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roastcli",
		Short:         "Manual checks for the Love Auditor pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRoastCmd(), newTokenCmd())
	return root
}

type roastOptions struct {
	textPath  string
	imagePath string
	gender    string
	status    string
	provider  string
	questions []string
	timeout   time.Duration
}

func newRoastCmd() *cobra.Command {
	opts := roastOptions{}
	cmd := &cobra.Command{
		Use:   "roast",
		Short: "Roast a chat from a text file and/or screenshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoast(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.textPath, "text", "", "path to a pasted chat transcript")
	cmd.Flags().StringVar(&opts.imagePath, "image", "", "path to a chat screenshot")
	cmd.Flags().StringVar(&opts.gender, "gender", string(audit.GenderFemale), "Male, Female or Other")
	cmd.Flags().StringVar(&opts.status, "status", string(audit.StatusDating), "relationship status")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "override INFERENCE_PROVIDER")
	cmd.Flags().StringArrayVar(&opts.questions, "ask", nil, "follow-up question for the auditor (repeatable)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "overall deadline")
	return cmd
}

func runRoast(ctx context.Context, out io.Writer, opts roastOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	input, err := loadInput(opts)
	if err != nil {
		return err
	}

	cfg := appconfig.Load()
	if opts.provider != "" {
		cfg.InferenceProvider = strings.ToLower(strings.TrimSpace(opts.provider))
	}
	logger := logging.NewWithWriter(cfg.LogLevel, os.Stderr)

	var awsCfg *aws.Config
	if bootstrap.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}
	llms, err := bootstrap.BuildLLMClients(cfg, awsCfg, nil, logger)
	if err != nil {
		return err
	}
	services := bootstrap.BuildAuditServices(cfg, llms, nil, nil, logger)

	start := time.Now()
	result, genErr := services.Roast.Generate(ctx, input)
	if genErr != nil {
		fmt.Fprintf(out, "warning: %v\n", genErr)
	}
	fmt.Fprintf(out, "roast (%s):\n", time.Since(start).Round(time.Millisecond))
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	var history []audit.ChatTurn
	for _, q := range opts.questions {
		reply, err := services.Chat.Reply(ctx, history, q, result, input)
		if err != nil {
			fmt.Fprintf(out, "warning: %v\n", err)
		}
		fmt.Fprintf(out, "\nyou: %s\nauditor: %s\n", q, reply)
		history = append(history,
			audit.ChatTurn{Role: audit.ChatRoleUser, Text: q},
			audit.ChatTurn{Role: audit.ChatRoleAuditor, Text: reply},
		)
	}
	return nil
}

func loadInput(opts roastOptions) (audit.AuditInput, error) {
	input := audit.AuditInput{
		Gender: audit.Gender(opts.gender),
		Status: audit.RelationshipStatus(opts.status),
	}
	if opts.textPath != "" {
		raw, err := os.ReadFile(opts.textPath)
		if err != nil {
			return audit.AuditInput{}, fmt.Errorf("read text: %w", err)
		}
		input.ChatText = string(raw)
	}
	if opts.imagePath != "" {
		dataURL, err := imageDataURL(opts.imagePath)
		if err != nil {
			return audit.AuditInput{}, err
		}
		input.Screenshot = dataURL
	}
	return input.Normalize()
}

func imageDataURL(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(raw)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

type tokenOptions struct {
	subject string
	email   string
	premium bool
	ttl     time.Duration
}

func newTokenCmd() *cobra.Command {
	opts := tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session JWT signed with SESSION_JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := appconfig.Load().SessionJWTSecret
			if secret == "" {
				return fmt.Errorf("SESSION_JWT_SECRET is not set")
			}
			if opts.subject == "" {
				opts.subject = opts.email
			}
			token, err := middleware.IssueUserToken(secret, opts.subject, opts.email, opts.premium, opts.ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.subject, "sub", "", "subject claim (defaults to email)")
	cmd.Flags().StringVar(&opts.email, "email", "", "email claim")
	cmd.Flags().BoolVar(&opts.premium, "premium", false, "set the is_premium claim")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
