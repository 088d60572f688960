package main

import (
	"context"
	"log"

	"github.com/hashicorp/terraform-plugin-framework/providerserver"

	"github.com/tphummel/devices/terraform-provider-devices/internal/provider"
)

func main() {
	err := providerserver.Serve(context.Background(), provider.New, providerserver.ServeOpts{
		// Address must match the source in consumers' required_providers block.
		Address: "registry.terraform.io/tphummel/devices",
	})
	if err != nil {
		log.Fatal(err)
	}
}
