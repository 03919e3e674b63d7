// Package tresoradmin implements the operator CLI used to inspect and
// settle remote tresor operations by hand, for example after the bridge
// approved an operation but failed to record it.
package tresoradmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/louisbranch/tresorgate/internal/platform/config"
	platformgrpc "github.com/louisbranch/tresorgate/internal/platform/grpc"
	"github.com/louisbranch/tresorgate/internal/services/bridge/adminapi"
)

// KindTresorCreation selects tresor creation in approve and reject, which
// take a tresor id instead of an operation id.
const KindTresorCreation = "tresor-creation"

// Config holds the remote authority settings. Values come from the
// environment and may be overridden by flags.
type Config struct {
	TenantID    string        `env:"TENANT_ID"`
	ServiceURL  string        `env:"SERVICE_URL"`
	AdminUserID string        `env:"ADMIN_USER_ID"`
	AdminKey    string        `env:"ADMIN_KEY"`
	SDKVersion  string        `env:"SDK_VERSION" envDefault:"4"`
	Timeout     time.Duration `env:"REMOTE_TIMEOUT" envDefault:"10s"`
}

type cli struct {
	cfg    Config
	out    io.Writer
	client *adminapi.Client
	remote adminapi.Remote
}

// NewCommand builds the root command writing results to out.
func NewCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	var overrides Config

	root := &cobra.Command{
		Use:           "tresoradmin",
		Short:         "Inspect and settle remote tresor operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "health" {
				return nil
			}
			return c.setup(overrides)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&overrides.TenantID, "tenant", "", "tenant id (derives service url and admin user)")
	flags.StringVar(&overrides.ServiceURL, "service-url", "", "remote authority base url")
	flags.StringVar(&overrides.AdminUserID, "admin-user", "", "admin user id")
	flags.StringVar(&overrides.AdminKey, "admin-key", "", "hex encoded admin key")
	flags.StringVar(&overrides.SDKVersion, "sdk-version", "", "remote API version")
	flags.DurationVar(&overrides.Timeout, "timeout", 0, "timeout for a single remote call")

	root.AddCommand(
		c.signCmd(),
		c.membersCmd(),
		c.detailsCmd(),
		c.settleCmd("approve", "approved", "Approve a pending operation"),
		c.settleCmd("reject", "rejected", "Reject a pending operation"),
		c.healthCmd(),
	)
	return root
}

// Execute runs the CLI with args.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root := NewCommand(out)
	root.SetArgs(args)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func (c *cli) setup(overrides Config) error {
	if err := config.ParseEnv(&c.cfg); err != nil {
		return err
	}
	override(&c.cfg.TenantID, overrides.TenantID)
	override(&c.cfg.ServiceURL, overrides.ServiceURL)
	override(&c.cfg.AdminUserID, overrides.AdminUserID)
	override(&c.cfg.AdminKey, overrides.AdminKey)
	override(&c.cfg.SDKVersion, overrides.SDKVersion)
	if overrides.Timeout > 0 {
		c.cfg.Timeout = overrides.Timeout
	}

	tenant := adminapi.Tenant{ID: c.cfg.TenantID, ServiceURL: c.cfg.ServiceURL, AdminUserID: c.cfg.AdminUserID}.WithDefaults()
	if tenant.AdminUserID == "" {
		return errors.New("admin user id is required")
	}
	signer, err := adminapi.NewSigner(tenant.AdminUserID, c.cfg.AdminKey)
	if err != nil {
		return fmt.Errorf("admin key: %w", err)
	}
	client, err := adminapi.NewClient(tenant.ServiceURL, c.cfg.SDKVersion, signer)
	if err != nil {
		return err
	}
	client.Timeout = c.cfg.Timeout
	c.client = client
	c.remote = adminapi.NewGateway(client)
	return nil
}

func override(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func (c *cli) signCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign PATH [BODY]",
		Short: "Print the signed headers for a request without sending it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			var body []byte
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return errors.New("body must be valid JSON")
				}
				body = []byte(args[1])
			}
			path := c.client.APIPath + args[0]
			headers, canonical, err := c.client.Signer.Headers(adminapi.Method(body), path, body)
			if err != nil {
				return err
			}
			for _, header := range headers {
				fmt.Fprintf(c.out, "%s: %s\n", header.Name, header.Value)
			}
			fmt.Fprintf(c.out, "\n%s\n", canonical)
			return nil
		},
	}
}

func (c *cli) membersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members TRESOR_ID",
		Short: "List the members of a tresor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := c.remote.ListTresorMembers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, member := range members {
				fmt.Fprintln(c.out, member)
			}
			return nil
		},
	}
}

func (c *cli) detailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details KIND OPERATION_ID",
		Short: "Show the details of a pending operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := operationKind(args[0])
			if err != nil {
				return err
			}
			details, err := c.remote.OperationDetails(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(c.out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(details)
		},
	}
}

// settleCmd builds approve or reject.
func (c *cli) settleCmd(verb, done, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " KIND ID",
		Short: short,
		Long:  "KIND is " + KindTresorCreation + " (ID is a tresor id) or one of: " + strings.Join(kindNames(), ", ") + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, id := cmd.Context(), args[1]
			approve := verb == "approve"
			var err error
			if args[0] == KindTresorCreation {
				if approve {
					err = c.remote.ApproveTresorCreation(ctx, id)
				} else {
					err = c.remote.RejectTresorCreation(ctx, id)
				}
			} else {
				kind, kindErr := operationKind(args[0])
				if kindErr != nil {
					return kindErr
				}
				if approve {
					err = c.remote.ApproveOperation(ctx, kind, id)
				} else {
					err = c.remote.RejectOperation(ctx, kind, id)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s %s %s\n", done, args[0], id)
			return nil
		},
	}
}

func (c *cli) healthCmd() *cobra.Command {
	var addr, service string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the gRPC health of a running bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := platformgrpc.Dial(addr)
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx := cmd.Context()
			if wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, wait)
				defer cancel()
				if err := platformgrpc.WaitForHealth(ctx, conn, service, nil); err != nil {
					return err
				}
			}
			status, err := platformgrpc.CheckHealth(ctx, conn, service)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, status.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8081", "bridge gRPC health address")
	cmd.Flags().StringVar(&service, "service", "", "health service name")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for SERVING")
	return cmd
}

var operationKinds = []adminapi.OperationKind{
	adminapi.KindShare,
	adminapi.KindKick,
	adminapi.KindInvitationLinkCreate,
	adminapi.KindInvitationLinkAccept,
	adminapi.KindInvitationLinkRevoke,
}

func kindNames() []string {
	names := make([]string, 0, len(operationKinds))
	for _, kind := range operationKinds {
		names = append(names, string(kind))
	}
	return names
}

func operationKind(name string) (adminapi.OperationKind, error) {
	for _, kind := range operationKinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown operation kind %q (want one of %s)", name, strings.Join(kindNames(), ", "))
}
