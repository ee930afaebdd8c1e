// Package registryctl implements the registry client CLI.
package registryctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	entrypoint "github.com/louisbranch/recordkeep/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/recordkeep/internal/platform/grpc"
	"github.com/louisbranch/recordkeep/internal/platform/timeouts"
	grpcmeta "github.com/louisbranch/recordkeep/internal/services/registry/api/grpc/metadata"
	registryservice "github.com/louisbranch/recordkeep/internal/services/registry/api/grpc/registry"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"github.com/spf13/cobra"
)

// Config holds registryctl configuration.
type Config struct {
	Addr     string `env:"RECORDKEEP_REGISTRY_ADDR"        envDefault:"localhost:8095"`
	Identity string `env:"RECORDKEEP_REGISTRYCTL_IDENTITY"`
	Locale   string `env:"RECORDKEEP_REGISTRYCTL_LOCALE"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type cli struct {
	cfg   Config
	clock uint64
	out   io.Writer
}

// NewRootCommand builds the registryctl command tree. Results are written to
// out as JSON.
func NewRootCommand(cfg Config, out io.Writer) *cobra.Command {
	c := &cli{cfg: cfg, out: out}
	root := &cobra.Command{
		Use:          entrypoint.ServiceRegistryCtl,
		Short:        "Query and change records in a recordkeep registry",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.cfg.Addr, "addr", cfg.Addr, "registry gRPC address")
	root.PersistentFlags().StringVar(&c.cfg.Identity, "identity", cfg.Identity, "caller identity sent with every request")
	root.PersistentFlags().StringVar(&c.cfg.Locale, "locale", cfg.Locale, "locale for error messages (e.g. pt-BR)")
	root.PersistentFlags().Uint64Var(&c.clock, "clock", 0, "host logical clock for mutations; 0 lets the server decide")
	root.SetOut(out)

	root.AddCommand(
		c.createCommand(),
		c.updateCommand(),
		c.transferCommand(),
		c.getCommand(),
		c.countCommand(),
		c.listCommand(),
		c.accessCommand(),
		c.authorityCommand(),
		c.ownsCommand(),
		c.eventsCommand(),
	)
	return root
}

// withClient dials the registry and runs fn with a bounded request context.
func (c *cli) withClient(cmd *cobra.Command, fn func(context.Context, *registryservice.Client) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := platformgrpc.Dial(ctx, c.cfg.Addr, platformgrpc.ClientOptions{
		Timeout:       timeouts.GRPCDial,
		HealthService: registryservice.ServiceName,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	var clockValue *uint64
	if c.clock != 0 {
		clockValue = &c.clock
	}
	callCtx, cancel := context.WithTimeout(grpcmeta.OutgoingContext(ctx, c.cfg.Identity, clockValue, c.cfg.Locale), timeouts.GRPCRequest)
	defer cancel()

	result, err := fn(callCtx, registryservice.NewClient(conn))
	if err != nil {
		return err
	}
	return c.print(result)
}

func (c *cli) print(value any) error {
	encoder := json.NewEncoder(c.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func parseKey(raw string) (uint64, error) {
	key, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("record key %q must be a decimal uint64", raw)
	}
	return key, nil
}

type fieldFlags struct {
	metadata string
	metric   uint64
	notes    string
	labels   []string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.metadata, "metadata", "", "descriptive metadata (1 to 64 bytes)")
	cmd.Flags().Uint64Var(&f.metric, "metric", 0, "data metric (1 to 999999999)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes (1 to 128 bytes)")
	cmd.Flags().StringArrayVarP(&f.labels, "label", "l", nil, "taxonomy label (repeatable, 1 to 10)")
	for _, name := range []string{"metadata", "metric", "notes", "label"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (f *fieldFlags) fields() domain.Fields {
	return domain.Fields{Metadata: f.metadata, Metric: f.metric, Notes: f.notes, Taxonomy: f.labels}
}

type recordView struct {
	Key          uint64   `json:"key"`
	Owner        string   `json:"owner"`
	GenesisBlock uint64   `json:"genesis_block"`
	Metadata     string   `json:"metadata"`
	Metric       uint64   `json:"metric"`
	Notes        string   `json:"notes"`
	Taxonomy     []string `json:"taxonomy"`
}

func viewRecord(record domain.Record) recordView {
	return recordView{
		Key:          record.Key,
		Owner:        record.Owner.String(),
		GenesisBlock: record.GenesisBlock,
		Metadata:     record.Metadata,
		Metric:       record.Metric,
		Notes:        record.Notes,
		Taxonomy:     record.Taxonomy,
	}
}

type eventView struct {
	Seq   uint64 `json:"seq"`
	Type  string `json:"type"`
	Actor string `json:"actor"`
	Owner string `json:"owner"`
	Clock uint64 `json:"clock"`
}

func (c *cli) createCommand() *cobra.Command {
	var flags fieldFlags
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a record owned by the caller",
		Example: `  registryctl --identity alice create --metadata doc-1 --metric 500 -l finance -l q3`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				key, err := client.CreateRecord(ctx, flags.fields())
				if err != nil {
					return nil, err
				}
				return map[string]uint64{"key": key}, nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) updateCommand() *cobra.Command {
	var flags fieldFlags
	cmd := &cobra.Command{
		Use:   "update <key>",
		Short: "Replace the editable fields of a record you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				if err := client.UpdateRecord(ctx, key, flags.fields()); err != nil {
					return nil, err
				}
				record, err := client.FetchFullRecord(ctx, key)
				if err != nil {
					return nil, err
				}
				return viewRecord(record), nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) transferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <key> <new-owner>",
		Short: "Transfer a record you own to another identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				if err := client.TransferOwnership(ctx, key, args[1]); err != nil {
					return nil, err
				}
				owner, err := client.FetchOperator(ctx, key)
				if err != nil {
					return nil, err
				}
				return map[string]any{"key": key, "owner": owner}, nil
			})
		},
	}
}

func (c *cli) getCommand() *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a record, or one of its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				return fetchField(ctx, client, key, field)
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "only this field: metadata, metric, notes, taxonomy, owner or genesis_block")
	return cmd
}

func fetchField(ctx context.Context, client *registryservice.Client, key uint64, field string) (any, error) {
	var (
		value any
		err   error
	)
	switch field {
	case "":
		record, err := client.FetchFullRecord(ctx, key)
		if err != nil {
			return nil, err
		}
		return viewRecord(record), nil
	case "metadata":
		value, err = client.FetchMetadata(ctx, key)
	case "metric":
		value, err = client.FetchMetric(ctx, key)
	case "notes":
		value, err = client.FetchNotes(ctx, key)
	case "taxonomy":
		value, err = client.FetchTaxonomy(ctx, key)
	case "owner":
		value, err = client.FetchOperator(ctx, key)
	case "genesis_block":
		value, err = client.FetchGenesisBlock(ctx, key)
	default:
		return nil, fmt.Errorf("unknown field %q", field)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{field: value}, nil
}

func (c *cli) countCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show how many records exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				count, err := client.TotalRecordCount(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]uint64{"count": count}, nil
			})
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	var (
		pageSize  int32
		pageToken string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				page, err := client.ListRecords(ctx, pageSize, pageToken)
				if err != nil {
					return nil, err
				}
				records := make([]recordView, 0, len(page.Records))
				for _, record := range page.Records {
					records = append(records, viewRecord(record))
				}
				return map[string]any{"records": records, "next_page_token": page.NextPageToken}, nil
			})
		},
	}
	cmd.Flags().Int32Var(&pageSize, "page-size", 0, "records per page (default 10, max 50)")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "next_page_token of a previous page")
	return cmd
}

func (c *cli) accessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "access <key> <identity>",
		Short: "Show the access flag stored for an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				granted, err := client.CheckAccessPermission(ctx, key, args[1])
				if err != nil {
					return nil, err
				}
				return map[string]bool{"granted": granted}, nil
			})
		},
	}
}

func (c *cli) authorityCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "authority <identity>",
		Short: "Check whether an identity is the protocol authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				verified, err := client.VerifyProtocolAuthority(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return map[string]bool{"verified": verified}, nil
			})
		},
	}
}

func (c *cli) ownsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "owns <key> <identity>",
		Short: "Check whether an identity owns a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				verified, err := client.VerifyRecordOwnership(ctx, key, args[1])
				if err != nil {
					return nil, err
				}
				return map[string]bool{"verified": verified}, nil
			})
		},
	}
}

func (c *cli) eventsCommand() *cobra.Command {
	var (
		afterSeq uint64
		pageSize int32
	)
	cmd := &cobra.Command{
		Use:   "events <key>",
		Short: "List the audit events of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, client *registryservice.Client) (any, error) {
				events, err := client.ListRecordEvents(ctx, key, afterSeq, pageSize)
				if err != nil {
					return nil, err
				}
				views := make([]eventView, 0, len(events))
				for _, event := range events {
					views = append(views, eventView{
						Seq:   event.Seq,
						Type:  string(event.Type),
						Actor: event.Actor.String(),
						Owner: event.Owner.String(),
						Clock: event.Clock,
					})
				}
				return map[string]any{"events": views}, nil
			})
		},
	}
	cmd.Flags().Uint64Var(&afterSeq, "after", 0, "only events with a greater sequence number")
	cmd.Flags().Int32Var(&pageSize, "page-size", 0, "events per page (default 10, max 50)")
	return cmd
}
