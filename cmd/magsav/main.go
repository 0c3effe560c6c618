package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/atvirokodosprendimai/magsav/internal/application"
	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}
	if err := rootCommand().Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "magsav",
		Usage: "After-sales service desk: server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			productsCommand(),
			requestsCommand(),
			interventionsCommand(),
			accessCommand(),
			auditCommand(),
		},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}
}

// render prints v as JSON when --json is set, otherwise through table.
func render[T any](c *cli.Command, v T, table func(T)) error {
	if c.Bool("json") {
		return printJSON(v)
	}
	table(v)
	return nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds", Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Value: defaultServer},
					&cli.StringFlag{Name: "socket", Value: defaultSocket},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					transport := c.String("transport")
					if transport != "uds" && transport != "http" {
						return fmt.Errorf("unknown transport %q", transport)
					}
					cfg := cliConfig{Transport: transport, Server: c.String("server"), Socket: c.String("socket")}
					var out struct {
						Token string `json:"token"`
						Email string `json:"email"`
					}
					if err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out); err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						ID          uint     `json:"id"`
						Email       string   `json:"email"`
						Permissions []string `json:"permissions"`
					}
					if err := doWhoAmI(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{
						{"id", uintToString(out.ID)},
						{"email", out.Email},
						{"permissions", fmt.Sprint(out.Permissions)},
					})
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Clear local CLI auth token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					_ = doLogout(ctx, cfg)
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func productsCommand() *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "Catalog commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List catalog products",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "match name, UID or serial"},
					&cli.StringFlag{Name: "situation"},
					&cli.IntFlag{Name: "limit"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Product
					if err := doProductsList(ctx, cfg, c.String("q"), c.String("situation"), c.Int("limit"), &out); err != nil {
						return err
					}
					return render(c, out, printProducts)
				},
			},
			{
				Name:  "show",
				Usage: "Show one product",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Product
					if err := doProductsGet(ctx, cfg, c.Uint("id"), &out); err != nil {
						return err
					}
					return render(c, out, printProduct)
				},
			},
			{
				Name:  "create",
				Usage: "Add a product to the catalog with a fresh UID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "serial", Required: true},
					&cli.StringFlag{Name: "manufacturer"},
					&cli.StringFlag{Name: "category"},
					&cli.StringFlag{Name: "subcategory"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "situation", Value: string(domain.SituationInStock)},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					in := map[string]any{
						"name":          c.String("name"),
						"serial_number": c.String("serial"),
						"manufacturer":  c.String("manufacturer"),
						"category":      c.String("category"),
						"subcategory":   c.String("subcategory"),
						"description":   c.String("description"),
						"situation":     c.String("situation"),
					}
					var out domain.Product
					if err := doProductsCreate(ctx, cfg, in, &out); err != nil {
						return err
					}
					return render(c, out, printProduct)
				},
			},
			{
				Name:  "resolve",
				Usage: "Look a UID up in the catalog",
				Flags: []cli.Flag{&cli.StringFlag{Name: "uid", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out resolveOutput
					if err := doProductsResolve(ctx, cfg, c.String("uid"), &out); err != nil {
						return err
					}
					return render(c, out, printResolution)
				},
			},
			{
				Name:  "situation",
				Usage: "Change a product's situation",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "situation", Required: true},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Product
					if err := doProductsSituation(ctx, cfg, c.Uint("id"), c.String("situation"), &out); err != nil {
						return err
					}
					return render(c, out, printProduct)
				},
			},
			{
				Name:  "history",
				Usage: "List a product's interventions, newest first",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Intervention
					if err := doProductsHistory(ctx, cfg, c.Uint("id"), &out); err != nil {
						return err
					}
					return render(c, out, printInterventions)
				},
			},
		},
	}
}

func requestsCommand() *cli.Command {
	return &cli.Command{
		Name:  "requests",
		Usage: "Service request commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List service requests",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "EN_ATTENTE, VALIDEE or REFUSEE"},
					&cli.StringFlag{Name: "type", Usage: "PRODUIT_REPERTORIE or PRODUIT_NON_REPERTORIE"},
					&cli.StringFlag{Name: "q"},
					&cli.IntFlag{Name: "limit"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.ServiceRequest
					if err := doRequestsList(ctx, cfg, c.String("status"), c.String("type"), c.String("q"), c.Int("limit"), &out); err != nil {
						return err
					}
					return render(c, out, printRequests)
				},
			},
			{
				Name:  "pending",
				Usage: "List requests awaiting a decision, oldest first",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.ServiceRequest
					if err := doRequestsPending(ctx, cfg, &out); err != nil {
						return err
					}
					return render(c, out, printRequests)
				},
			},
			{
				Name:  "show",
				Usage: "Show one service request",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.ServiceRequest
					if err := doRequestsGet(ctx, cfg, c.Uint("id"), &out); err != nil {
						return err
					}
					return render(c, out, printRequest)
				},
			},
			{
				Name:  "create",
				Usage: "Record a new service request",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Value: string(domain.RequestUnknownProduct)},
					&cli.UintFlag{Name: "product-id"},
					&cli.StringFlag{Name: "product-name"},
					&cli.StringFlag{Name: "product-serial"},
					&cli.StringFlag{Name: "product-uid"},
					&cli.StringFlag{Name: "product-manufacturer"},
					&cli.StringFlag{Name: "product-category"},
					&cli.StringFlag{Name: "product-subcategory"},
					&cli.StringFlag{Name: "product-description"},
					&cli.StringFlag{Name: "owner-type", Usage: "CLIENT, SOCIETE or INTERNE"},
					&cli.StringFlag{Name: "owner-name"},
					&cli.StringFlag{Name: "owner-details"},
					&cli.StringFlag{Name: "fault", Required: true},
					&cli.StringFlag{Name: "client-note"},
					&cli.StringFlag{Name: "detector"},
					&cli.StringFlag{Name: "requester"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					in := map[string]any{
						"type":                 c.String("type"),
						"product_name":         c.String("product-name"),
						"product_serial":       c.String("product-serial"),
						"product_uid":          c.String("product-uid"),
						"product_manufacturer": c.String("product-manufacturer"),
						"product_category":     c.String("product-category"),
						"product_subcategory":  c.String("product-subcategory"),
						"product_description":  c.String("product-description"),
						"owner_type":           c.String("owner-type"),
						"owner_name":           c.String("owner-name"),
						"owner_details":        c.String("owner-details"),
						"fault_description":    c.String("fault"),
						"client_note":          c.String("client-note"),
						"detector":             c.String("detector"),
						"requester_name":       c.String("requester"),
					}
					if c.IsSet("product-id") {
						in["product_id"] = c.Uint("product-id")
					}
					var out domain.ServiceRequest
					if err := doRequestsCreate(ctx, cfg, in, &out); err != nil {
						return err
					}
					return render(c, out, printRequest)
				},
			},
			{
				Name:  "accept",
				Usage: "Accept a pending request and open its intervention",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "create-product", Usage: "provision a catalog product for an unknown one"},
					&cli.StringFlag{Name: "validator"},
					&cli.StringFlag{Name: "notes"},
					&cli.StringFlag{Name: "manufacturer", Usage: "override for the provisioned product"},
					&cli.StringFlag{Name: "category", Usage: "override for the provisioned product"},
					&cli.StringFlag{Name: "subcategory", Usage: "override for the provisioned product"},
					&cli.StringFlag{Name: "description", Usage: "override for the provisioned product"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					in := map[string]any{
						"create_product_if_unknown": c.Bool("create-product"),
						"validator_name":            c.String("validator"),
						"notes":                     c.String("notes"),
						"overrides": application.ProductOverrides{
							Manufacturer: c.String("manufacturer"),
							Category:     c.String("category"),
							Subcategory:  c.String("subcategory"),
							Description:  c.String("description"),
						},
					}
					var out acceptOutput
					if err := doRequestsAccept(ctx, cfg, c.Uint("id"), in, &out); err != nil {
						return err
					}
					return render(c, out, printAcceptResult)
				},
			},
			{
				Name:  "reject",
				Usage: "Reject a pending request",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "validator"},
					&cli.StringFlag{Name: "notes"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.ServiceRequest
					if err := doRequestsReject(ctx, cfg, c.Uint("id"), c.String("validator"), c.String("notes"), &out); err != nil {
						return err
					}
					return render(c, out, printRequest)
				},
			},
		},
	}
}

func interventionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "interventions",
		Usage: "Intervention ticket commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List interventions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status"},
					&cli.UintFlag{Name: "product-id"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Intervention
					if err := doInterventionsList(ctx, cfg, c.String("status"), c.Uint("product-id"), &out); err != nil {
						return err
					}
					return render(c, out, printInterventions)
				},
			},
			{
				Name:  "show",
				Usage: "Show one intervention",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Intervention
					if err := doInterventionsGet(ctx, cfg, c.Uint("id"), &out); err != nil {
						return err
					}
					return render(c, out, printIntervention)
				},
			},
			{
				Name:  "status",
				Usage: "Move an intervention to another status",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "status", Required: true},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Intervention
					if err := doInterventionsStatus(ctx, cfg, c.Uint("id"), c.String("status"), &out); err != nil {
						return err
					}
					return render(c, out, printIntervention)
				},
			},
			{
				Name:  "export",
				Usage: "Download interventions as an XLSX workbook (HTTP only)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "interventions.xlsx"},
					&cli.StringFlag{Name: "status"},
					&cli.UintFlag{Name: "product-id"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					f, err := os.Create(c.String("out"))
					if err != nil {
						return err
					}
					if err := doInterventionsExport(ctx, cfg, c.String("status"), c.Uint("product-id"), f); err != nil {
						_ = f.Close()
						_ = os.Remove(c.String("out"))
						return err
					}
					if err := f.Close(); err != nil {
						return err
					}
					fmt.Printf("wrote %s\n", c.String("out"))
					return nil
				},
			},
		},
	}
}

func accessCommand() *cli.Command {
	return &cli.Command{
		Name:  "access",
		Usage: "Access and users commands",
		Commands: []*cli.Command{
			{
				Name:  "users",
				Usage: "List users",
				Flags: []cli.Flag{&cli.StringFlag{Name: "q"}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.User
					if err := doUsersList(ctx, cfg, c.String("q"), &out); err != nil {
						return err
					}
					return render(c, out, printUsers)
				},
			},
			{
				Name:  "create-user",
				Usage: "Create user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.UintFlag{Name: "role-id"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.User
					if err := doUsersCreate(ctx, cfg, c.String("email"), c.String("password"), c.Uint("role-id"), &out); err != nil {
						return err
					}
					return render(c, []domain.User{out}, printUsers)
				},
			},
			{
				Name:  "roles",
				Usage: "List roles",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Role
					if err := doRolesList(ctx, cfg, &out); err != nil {
						return err
					}
					return render(c, out, printRoles)
				},
			},
			{
				Name:  "assign-role",
				Usage: "Assign role to user",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "user-id", Required: true},
					&cli.UintFlag{Name: "role-id", Required: true},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out map[string]any
					if err := doAssignRole(ctx, cfg, c.Uint("user-id"), c.Uint("role-id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					fmt.Printf("assigned role %d to user %d\n", c.Uint("role-id"), c.Uint("user-id"))
					return nil
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audit logs",
				Flags: []cli.Flag{&cli.IntFlag{Name: "limit"}, jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditRecord
					if err := doAuditList(ctx, cfg, c.Int("limit"), &out); err != nil {
						return err
					}
					return render(c, out, printAuditRecords)
				},
			},
		},
	}
}
