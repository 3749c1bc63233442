package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loadboard/internal/app"
	"loadboard/internal/config"
	"loadboard/internal/domain"
	"loadboard/internal/engine"
	"loadboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "lb",
	Short: "Loadboard CLI",
	Long: `Loadboard tracks warehouse loads from picking to departure.
- Loads: a client's goods for one trip; small loads ride a route, large loads
  ride pallets. Quantities move with 'lb load add' and 'lb load missing'.
- Lifecycle: pending -> in_process -> complete, with hold as a side branch.
  A load can only complete when every expected unit is loaded or missing.
- Groups: a vehicle trip owning several loads; its status follows the loads.
- Shifts: collection periods that scope loads and the route rules.
- Routes: staging lanes keyed by the route code's first two characters;
  restricted lanes refuse a second concurrent route.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("LOADBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(groupCmd())
	rootCmd.AddCommand(shiftCmd())
	rootCmd.AddCommand(serveCmd())
}

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	workspace, err := app.ResolveWorkspace(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	ac, err := app.Open(workspace)
	if err != nil {
		return err
	}
	defer ac.Close()
	return fn(ctx, ac)
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default loadboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := app.ResolveWorkspace(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := config.Write(workspace, config.Default()); err != nil {
				return err
			}
			fmt.Println("wrote", config.FileName, "in", workspace)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := app.ResolveWorkspace(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			c, err := config.Load(workspace)
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func loadCmd() *cobra.Command {
	load := &cobra.Command{Use: "load", Short: "Manage loads"}
	load.AddCommand(loadCreateCmd())
	load.AddCommand(loadListCmd())
	load.AddCommand(loadShowCmd())
	load.AddCommand(loadVehicleCmd())
	load.AddCommand(loadAddCmd())
	load.AddCommand(loadMissingCmd())
	load.AddCommand(loadStatusCmd())
	load.AddCommand(loadVerifyCmd())
	load.AddCommand(loadGroupCmd())
	load.AddCommand(loadDeleteCmd())
	return load
}

func loadCreateCmd() *cobra.Command {
	var client, format, order, vehicle, route, routeGroup, groupID, shiftID string
	var expected, pallets int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a load",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				f, err := domain.ParseLoadFormat(format)
				if err != nil {
					return err
				}
				o, err := domain.ParseLoadOrder(order)
				if err != nil {
					return err
				}
				opts := engine.CreateLoadOptions{
					ClientName:  client,
					ExpectedQty: expected,
					Format:      f,
					LoadOrder:   o,
				}
				if cmd.Flags().Changed("vehicle") {
					opts.VehicleID = &vehicle
				}
				if cmd.Flags().Changed("route") {
					opts.RouteCode = &route
				}
				if cmd.Flags().Changed("route-group") {
					opts.RouteGroupID = &routeGroup
				}
				if cmd.Flags().Changed("pallets") {
					opts.PalletCount = &pallets
				}
				if cmd.Flags().Changed("group") {
					opts.GroupID = &groupID
				}
				if cmd.Flags().Changed("shift") {
					opts.ShiftID = &shiftID
				}
				l, err := ac.Engine.CreateLoad(ctx, opts)
				if err != nil {
					return err
				}
				return printLoad(l)
			})
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "client name")
	cmd.Flags().IntVar(&expected, "expected", 0, "expected quantity")
	cmd.Flags().StringVar(&format, "format", "small", "format (small, large)")
	cmd.Flags().StringVar(&order, "order", "m", "load order (f, mf, m, mp, p)")
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle id")
	cmd.Flags().StringVar(&route, "route", "", "route code")
	cmd.Flags().StringVar(&routeGroup, "route-group", "", "route group id")
	cmd.Flags().IntVar(&pallets, "pallets", 0, "pallet count (large format)")
	cmd.Flags().StringVar(&groupID, "group", "", "load group id")
	cmd.Flags().StringVar(&shiftID, "shift", "", "shift id")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("expected")
	return cmd
}

func loadListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.ListLoads(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "CLIENT", "FMT", "STATUS", "LOADED", "MISSING", "EXPECTED", "ROUTE"})
				for _, l := range items {
					t.AppendRow(table.Row{
						shortID(l.ID), l.ClientName, l.Format, l.Status,
						l.LoadedQty, l.MissingQty, l.ExpectedQty, l.RouteCodeValue(),
					})
				}
				t.Render()
				return nil
			})
		},
	}
}

func loadShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				l, err := ac.Engine.GetLoad(ctx, args[0])
				if err != nil {
					return err
				}
				return printLoad(l)
			})
		},
	}
}

func loadVehicleCmd() *cobra.Command {
	var vehicle, route, routeGroup string
	cmd := &cobra.Command{
		Use:   "vehicle <id>",
		Short: "Assign vehicle and route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				var routePtr, routeGroupPtr *string
				if cmd.Flags().Changed("route") {
					routePtr = &route
				}
				if cmd.Flags().Changed("route-group") {
					routeGroupPtr = &routeGroup
				}
				l, err := ac.Engine.AssignVehicle(ctx, args[0], vehicle, routePtr, routeGroupPtr)
				if err != nil {
					return err
				}
				return printLoad(l)
			})
		},
	}
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle id")
	cmd.Flags().StringVar(&route, "route", "", "route code")
	cmd.Flags().StringVar(&routeGroup, "route-group", "", "route group id")
	_ = cmd.MarkFlagRequired("vehicle")
	return cmd
}

func loadAddCmd() *cobra.Command {
	var delta int
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Record scanned units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				l, err := ac.Engine.IncrementLoaded(ctx, args[0], delta)
				if err != nil {
					return err
				}
				return printLoad(l)
			})
		},
	}
	cmd.Flags().IntVar(&delta, "qty", 1, "units scanned")
	return cmd
}

func loadMissingCmd() *cobra.Command {
	var qty int
	var refs []string
	cmd := &cobra.Command{
		Use:   "missing <id>",
		Short: "Set missing quantity and references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				l, err := ac.Engine.SetMissing(ctx, args[0], qty, refs)
				if err != nil {
					return err
				}
				return printLoad(l)
			})
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 0, "missing quantity")
	cmd.Flags().StringSliceVar(&refs, "ref", nil, "missing item reference (repeatable)")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}

func loadStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change load status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				status, err := domain.ParseLoadStatus(args[1])
				if err != nil {
					return err
				}
				l, err := ac.Engine.ChangeStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				return printLoad(l)
			})
		},
	}
	return cmd
}

func loadVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <id> <verification>",
		Short: "Set verification status (large format)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				v, err := domain.ParseVerificationStatus(args[1])
				if err != nil {
					return err
				}
				l, err := ac.Engine.SetVerification(ctx, args[0], v)
				if err != nil {
					return err
				}
				return printLoad(l)
			})
		},
	}
	return cmd
}

func loadGroupCmd() *cobra.Command {
	var groupID string
	var detach bool
	cmd := &cobra.Command{
		Use:   "group <id>",
		Short: "Attach or detach the load's group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				var gid *string
				if !detach {
					if groupID == "" {
						return fmt.Errorf("--group or --detach required")
					}
					gid = &groupID
				}
				l, err := ac.Engine.AssignGroup(ctx, args[0], gid)
				if err != nil {
					return err
				}
				return printLoad(l)
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "group id")
	cmd.Flags().BoolVar(&detach, "detach", false, "detach from current group")
	return cmd
}

func loadDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if err := ac.Engine.DeleteLoad(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func groupCmd() *cobra.Command {
	group := &cobra.Command{Use: "group", Short: "Manage load groups"}

	var vehicle, shiftID string
	var pallets int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a load group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				var sid *string
				if cmd.Flags().Changed("shift") {
					sid = &shiftID
				}
				g, err := ac.Engine.CreateGroup(ctx, vehicle, pallets, sid)
				if err != nil {
					return err
				}
				return printJSON(g)
			})
		},
	}
	create.Flags().StringVar(&vehicle, "vehicle", "", "vehicle id")
	create.Flags().IntVar(&pallets, "max-pallets", 0, "max pallet count")
	create.Flags().StringVar(&shiftID, "shift", "", "shift id")
	_ = create.MarkFlagRequired("vehicle")
	group.AddCommand(create)

	group.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List load groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.ListGroups(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "VEHICLE", "STATUS", "MAX PALLETS"})
				for _, g := range items {
					t.AppendRow(table.Row{shortID(g.ID), g.VehicleID, g.Status, g.MaxPalletCount})
				}
				t.Render()
				return nil
			})
		},
	})

	group.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a group and its loads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				g, err := ac.Engine.GetGroup(ctx, args[0])
				if err != nil {
					return err
				}
				loads, err := ac.Engine.GroupLoads(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"group": g, "loads": loads})
			})
		},
	})

	var updVehicle, updStatus string
	var updPallets int
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a load group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				var vPtr *string
				var pPtr *int
				var sPtr *domain.LoadStatus
				if cmd.Flags().Changed("vehicle") {
					vPtr = &updVehicle
				}
				if cmd.Flags().Changed("max-pallets") {
					pPtr = &updPallets
				}
				if cmd.Flags().Changed("status") {
					s, err := domain.ParseLoadStatus(updStatus)
					if err != nil {
						return err
					}
					sPtr = &s
				}
				g, err := ac.Engine.UpdateGroup(ctx, args[0], vPtr, pPtr, sPtr)
				if err != nil {
					return err
				}
				return printJSON(g)
			})
		},
	}
	update.Flags().StringVar(&updVehicle, "vehicle", "", "vehicle id")
	update.Flags().IntVar(&updPallets, "max-pallets", 0, "max pallet count")
	update.Flags().StringVar(&updStatus, "status", "", "manual status override")
	group.AddCommand(update)

	group.AddCommand(&cobra.Command{
		Use:   "sync <id>",
		Short: "Re-derive group status from its loads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if err := ac.Engine.SyncGroupStatus(ctx, args[0]); err != nil {
					return err
				}
				g, err := ac.Engine.GetGroup(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(g)
			})
		},
	})

	group.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a group (loads survive detached)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if err := ac.Engine.DeleteGroup(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return group
}

func shiftCmd() *cobra.Command {
	shift := &cobra.Command{Use: "shift", Short: "Manage shifts"}

	var name, starts, ends string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a shift",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				sh, err := ac.Engine.CreateShift(ctx, name, starts, ends)
				if err != nil {
					return err
				}
				return printJSON(sh)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "shift name")
	create.Flags().StringVar(&starts, "starts", "", "start time (RFC3339)")
	create.Flags().StringVar(&ends, "ends", "", "end time (RFC3339)")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("starts")
	_ = create.MarkFlagRequired("ends")
	shift.AddCommand(create)

	shift.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List shifts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.ListShifts(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "NAME", "STARTS", "ENDS"})
				for _, sh := range items {
					t.AppendRow(table.Row{shortID(sh.ID), sh.Name, sh.StartsAt, sh.EndsAt})
				}
				t.Render()
				return nil
			})
		},
	})

	shift.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if err := ac.Engine.DeleteShift(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return shift
}

func serveCmd() *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if !cmd.Flags().Changed("host") {
					host = ac.Config.Server.Host
				}
				if !cmd.Flags().Changed("port") {
					port = ac.Config.Server.Port
				}
				log := logrus.New()
				log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
				handler, err := server.New(server.Config{
					Engine:   ac.Engine,
					BasePath: ac.Config.Server.BasePath,
					Log:      log,
				})
				if err != nil {
					return err
				}
				addr := fmt.Sprintf("%s:%d", host, port)
				srv := &http.Server{
					Addr:              addr,
					Handler:           handler,
					ReadHeaderTimeout: 10 * time.Second,
				}
				log.WithField("addr", addr).Info("serving loadboard api")
				return srv.ListenAndServe()
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "bind host")
	cmd.Flags().IntVar(&port, "port", 8844, "bind port")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLoad(l domain.LoadRecord) error {
	if viper.GetBool("json") {
		return printJSON(l)
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRow(table.Row{"id", l.ID})
	t.AppendRow(table.Row{"client", l.ClientName})
	t.AppendRow(table.Row{"format", l.Format})
	t.AppendRow(table.Row{"status", l.Status})
	t.AppendRow(table.Row{"expected", l.ExpectedQty})
	t.AppendRow(table.Row{"loaded", l.LoadedQty})
	t.AppendRow(table.Row{"missing", l.MissingQty})
	if l.RouteCode != nil {
		t.AppendRow(table.Row{"route", *l.RouteCode})
	}
	if l.VehicleID != nil {
		t.AppendRow(table.Row{"vehicle", *l.VehicleID})
	}
	if l.PalletCount != nil {
		t.AppendRow(table.Row{"pallets", *l.PalletCount})
	}
	if l.Verification != nil {
		t.AppendRow(table.Row{"verification", *l.Verification})
	}
	t.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
