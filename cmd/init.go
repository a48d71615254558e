package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a starter bundle and check credentials",
	Long: `Write a starter bundle to the bundle path (refusing to overwrite an
existing file) and verify that AWS credentials resolve.

Examples:
  stratus init
  stratus init -f infra/web.yaml -r us-east-1`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

const starterBundle = `provider:
  region: us-east-1

security_groups:
  - name: web
    description: Allow SSH and HTTP
    ingress:
      - from_port: 22
        to_port: 22
        protocol: tcp
        cidr_blocks: ["0.0.0.0/0"]
      - from_port: 80
        to_port: 80
        protocol: tcp
        cidr_blocks: ["0.0.0.0/0"]
    egress:
      - from_port: 0
        to_port: 0
        protocol: "-1"
        cidr_blocks: ["0.0.0.0/0"]

instances:
  - name: web
    ami: ami-0c55b159cbfafe1f0 # pick an AMI for your region
    instance_type: t2.micro
    key_name: deployer # must already exist in your account
    security_groups: [web]
    root_volume:
      size: 20
      type: gp2
      delete_on_termination: true
    tags:
      Name: web-server

outputs:
  - name: public_ip
    instance: web
    attribute: public_ip
  - name: public_dns
    instance: web
    attribute: public_dns
`

func runInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if _, err := os.Stat(bundlePath); err == nil {
		fmt.Printf("Bundle %s already exists, leaving it alone.\n", bundlePath)
	} else {
		if err := os.WriteFile(bundlePath, []byte(starterBundle), 0644); err != nil {
			return fmt.Errorf("failed to write bundle file: %w", err)
		}
		fmt.Println(ui.OKStyle.Render("✓") + " Wrote starter bundle to " + bundlePath)
	}

	fmt.Print("Checking credentials... ")
	client, err := newClient(ctx, nil)
	if err != nil {
		fmt.Println(ui.BadStyle.Render("✗"))
		return err
	}

	identity, err := client.GetCallerIdentity(ctx)
	if err != nil {
		fmt.Println(ui.BadStyle.Render("✗"))
		return err
	}

	fmt.Println(ui.OKStyle.Render("✓"))
	fmt.Printf("Account %s in %s\n", identity.Account, client.Region())
	fmt.Println()
	fmt.Println("Edit the bundle, then run: stratus plan")
	return nil
}
