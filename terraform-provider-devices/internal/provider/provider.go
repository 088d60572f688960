package provider

import (
	"context"
	"os"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/tphummel/devices/internal/apiclient"
	"github.com/tphummel/devices/terraform-provider-devices/internal/datasources"
	"github.com/tphummel/devices/terraform-provider-devices/internal/resources"
)

// New returns the provider factory function expected by providerserver.Serve.
func New() provider.Provider {
	return &devicesProvider{}
}

type devicesProvider struct{}

func (p *devicesProvider) Metadata(_ context.Context, _ provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "devices"
}

func (p *devicesProvider) Schema(_ context.Context, _ provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Manages device inventory in the devices service.",
		Attributes: map[string]schema.Attribute{
			"endpoint": schema.StringAttribute{
				Description: "Base URL of the devices API (e.g. https://devices.internal). " +
					"Can also be set via the DEVICES_ENDPOINT environment variable.",
				Optional: true,
			},
			"token": schema.StringAttribute{
				Description: "Bearer credential for the devices API: the static API token or a signed JWT. " +
					"Can also be set via the DEVICES_TOKEN environment variable.",
				Optional:  true,
				Sensitive: true,
			},
		},
	}
}

type devicesProviderModel struct {
	Endpoint types.String `tfsdk:"endpoint"`
	Token    types.String `tfsdk:"token"`
}

func (p *devicesProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var config devicesProviderModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	endpoint := os.Getenv("DEVICES_ENDPOINT")
	if !config.Endpoint.IsNull() && !config.Endpoint.IsUnknown() {
		endpoint = config.Endpoint.ValueString()
	}
	if endpoint == "" {
		resp.Diagnostics.AddError("Missing endpoint",
			"endpoint must be set in the provider configuration or via the DEVICES_ENDPOINT environment variable.")
		return
	}

	token := os.Getenv("DEVICES_TOKEN")
	if !config.Token.IsNull() && !config.Token.IsUnknown() {
		token = config.Token.ValueString()
	}
	if token == "" {
		resp.Diagnostics.AddError("Missing token",
			"token must be set in the provider configuration or via the DEVICES_TOKEN environment variable.")
		return
	}

	client := apiclient.NewClient(endpoint, token)
	resp.ResourceData = client
	resp.DataSourceData = client
}

func (p *devicesProvider) Resources(_ context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		resources.NewDeviceResource,
	}
}

func (p *devicesProvider) DataSources(_ context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		datasources.NewDevicesDataSource,
	}
}
