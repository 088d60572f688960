package datasources

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/tphummel/devices/internal/apiclient"
	"github.com/tphummel/devices/internal/models"
)

// Ensure full interface compliance at compile time.
var _ datasource.DataSource = &devicesDataSource{}
var _ datasource.DataSourceWithConfigure = &devicesDataSource{}

type devicesDataSource struct {
	client *apiclient.Client
}

// NewDevicesDataSource is the factory function registered with the provider.
func NewDevicesDataSource() datasource.DataSource {
	return &devicesDataSource{}
}

type devicesDataSourceModel struct {
	Brand   types.String      `tfsdk:"brand"`
	State   types.String      `tfsdk:"state"`
	Devices []deviceDataModel `tfsdk:"devices"`
}

type deviceDataModel struct {
	ID           types.String `tfsdk:"id"`
	Name         types.String `tfsdk:"name"`
	Brand        types.String `tfsdk:"brand"`
	State        types.String `tfsdk:"state"`
	CreationTime types.String `tfsdk:"creation_time"`
	Version      types.Int64  `tfsdk:"version"`
}

func (d *devicesDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_devices" // → "devices_devices"
}

func (d *devicesDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Lists devices, optionally filtered by brand and state.",
		Attributes: map[string]schema.Attribute{
			"brand": schema.StringAttribute{
				Description: "Optional brand filter, matched ignoring case.",
				Optional:    true,
			},
			"state": schema.StringAttribute{
				Description: "Optional state filter (available, in-use, inactive).",
				Optional:    true,
			},
			"devices": schema.ListNestedAttribute{
				Description: "Devices returned by the API.",
				Computed:    true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"id":            schema.StringAttribute{Computed: true, Description: "Server-assigned numeric id."},
						"name":          schema.StringAttribute{Computed: true, Description: "Device name."},
						"brand":         schema.StringAttribute{Computed: true, Description: "Device brand."},
						"state":         schema.StringAttribute{Computed: true, Description: "Lifecycle state."},
						"creation_time": schema.StringAttribute{Computed: true, Description: "Creation instant (RFC 3339)."},
						"version":       schema.Int64Attribute{Computed: true, Description: "Optimistic-locking version."},
					},
				},
			},
		},
	}
}

func (d *devicesDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	client, ok := req.ProviderData.(*apiclient.Client)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected provider data type",
			fmt.Sprintf("Expected *apiclient.Client, got %T", req.ProviderData),
		)
		return
	}
	d.client = client
}

func (d *devicesDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var config devicesDataSourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	devices, err := d.list(ctx, config.Brand.ValueString(), config.State.ValueString())
	if err != nil {
		resp.Diagnostics.AddError("Error listing devices", err.Error())
		return
	}

	config.Devices = make([]deviceDataModel, len(devices))
	for i, dev := range devices {
		config.Devices[i] = deviceDataModel{
			ID:           types.StringValue(strconv.FormatInt(dev.ID, 10)),
			Name:         types.StringValue(dev.Name),
			Brand:        types.StringValue(dev.Brand),
			State:        types.StringValue(string(dev.State)),
			CreationTime: types.StringValue(dev.CreationTime.UTC().Format(time.RFC3339Nano)),
			Version:      types.Int64Value(dev.Version),
		}
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &config)...)
}

// list picks the narrowest API listing for the filters. With both filters set
// the brand listing is narrowed by state locally.
func (d *devicesDataSource) list(ctx context.Context, brand, state string) ([]models.Response, error) {
	var want models.State
	if state != "" {
		s, err := models.ParseState(state)
		if err != nil {
			return nil, err
		}
		want = s
	}

	switch {
	case brand != "":
		devices, err := d.client.ListDevicesByBrand(ctx, brand)
		if err != nil || want == "" {
			return devices, err
		}
		out := devices[:0]
		for _, dev := range devices {
			if dev.State == want {
				out = append(out, dev)
			}
		}
		return out, nil
	case want != "":
		return d.client.ListDevicesByState(ctx, want)
	default:
		return d.client.ListDevices(ctx)
	}
}
