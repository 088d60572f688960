package resources

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/tphummel/devices/internal/apiclient"
	"github.com/tphummel/devices/internal/models"
)

// Ensure full interface compliance at compile time.
var (
	_ resource.Resource                = &deviceResource{}
	_ resource.ResourceWithConfigure   = &deviceResource{}
	_ resource.ResourceWithImportState = &deviceResource{}
)

type deviceResource struct {
	client *apiclient.Client
}

// deviceModel maps the Terraform schema attributes to Go values.
type deviceModel struct {
	ID           types.String `tfsdk:"id"`
	Name         types.String `tfsdk:"name"`
	Brand        types.String `tfsdk:"brand"`
	State        types.String `tfsdk:"state"`
	CreationTime types.String `tfsdk:"creation_time"`
	Version      types.Int64  `tfsdk:"version"`
}

// NewDeviceResource is the factory function registered with the provider.
func NewDeviceResource() resource.Resource {
	return &deviceResource{}
}

func (r *deviceResource) Metadata(_ context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_device" // → "devices_device"
}

func (r *deviceResource) Schema(_ context.Context, _ resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Manages a device in the devices inventory.",
		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Description: "Server-assigned numeric id.",
				Computed:    true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"name":  schema.StringAttribute{Description: "Device name, 1 to 100 characters.", Required: true},
			"brand": schema.StringAttribute{Description: "Device brand, 1 to 50 characters.", Required: true},
			"state": schema.StringAttribute{
				Description: "Lifecycle state: available, in-use or inactive. Defaults to available.",
				Optional:    true,
				Computed:    true,
				// The API answers with the lowercase token, so only that spelling
				// round-trips without a diff.
				Validators: []validator.String{
					stringvalidator.OneOf(stateTokens()...),
				},
			},
			"creation_time": schema.StringAttribute{
				Description: "Creation instant (RFC 3339).",
				Computed:    true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"version": schema.Int64Attribute{
				Description: "Optimistic-locking version; increases on every update.",
				Computed:    true,
			},
		},
	}
}

func (r *deviceResource) Configure(_ context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
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
	r.client = client
}

func (r *deviceResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var plan deviceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	create := models.CreateRequest{
		Name:  plan.Name.ValueString(),
		Brand: plan.Brand.ValueString(),
	}
	if s, ok := plannedState(plan); ok {
		create.State = &s
	}

	created, err := r.client.CreateDevice(ctx, create)
	if err != nil {
		resp.Diagnostics.AddError("Error creating devices_device", err.Error())
		return
	}

	deviceToState(created, &plan)
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *deviceResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var state deviceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}
	id, err := parseID(state.ID.ValueString())
	if err != nil {
		resp.Diagnostics.AddError("Error reading devices_device", err.Error())
		return
	}

	d, err := r.client.GetDevice(ctx, id)
	if apiclient.IsNotFound(err) {
		// Removed outside Terraform; tell the framework the resource is gone.
		resp.State.RemoveResource(ctx)
		return
	}
	if err != nil {
		resp.Diagnostics.AddError("Error reading devices_device", err.Error())
		return
	}

	deviceToState(d, &state)
	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

// Update sends the version recorded in state, so changes made outside
// Terraform since the last refresh are reported as conflicts instead of being
// overwritten.
func (r *deviceResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var plan deviceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	var state deviceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}
	id, err := parseID(state.ID.ValueString())
	if err != nil {
		resp.Diagnostics.AddError("Error updating devices_device", err.Error())
		return
	}

	s, ok := plannedState(plan)
	if !ok {
		s = models.State(state.State.ValueString())
	}
	version := state.Version.ValueInt64()

	updated, err := r.client.UpdateDevice(ctx, id, models.UpdateRequest{
		Name:    plan.Name.ValueString(),
		Brand:   plan.Brand.ValueString(),
		State:   &s,
		Version: &version,
	})
	if err != nil {
		resp.Diagnostics.AddError("Error updating devices_device", err.Error())
		return
	}

	deviceToState(updated, &plan)
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *deviceResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var state deviceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}
	id, err := parseID(state.ID.ValueString())
	if err != nil {
		resp.Diagnostics.AddError("Error deleting devices_device", err.Error())
		return
	}
	if err := r.client.DeleteDevice(ctx, id); err != nil && !apiclient.IsNotFound(err) {
		resp.Diagnostics.AddError("Error deleting devices_device", err.Error())
	}
}

// ImportState enables: terraform import devices_device.laptop <id>
func (r *deviceResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	id, err := parseID(req.ID)
	if err != nil {
		resp.Diagnostics.AddError("Error importing devices_device", err.Error())
		return
	}
	d, err := r.client.GetDevice(ctx, id)
	if apiclient.IsNotFound(err) {
		resp.Diagnostics.AddError("Device not found",
			fmt.Sprintf("No device with id %d exists in the devices service.", id))
		return
	}
	if err != nil {
		resp.Diagnostics.AddError("Error importing devices_device", err.Error())
		return
	}

	var state deviceModel
	deviceToState(d, &state)
	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid device id %q: must be an integer", raw)
	}
	return id, nil
}

func stateTokens() []string {
	states := models.ValidStates()
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// plannedState returns the configured state, if one is known. The schema
// validator has already restricted it to a lowercase token.
func plannedState(m deviceModel) (models.State, bool) {
	if m.State.IsNull() || m.State.IsUnknown() {
		return "", false
	}
	return models.State(m.State.ValueString()), true
}

// deviceToState copies API response fields into the Terraform state model.
func deviceToState(d *models.Response, s *deviceModel) {
	s.ID = types.StringValue(strconv.FormatInt(d.ID, 10))
	s.Name = types.StringValue(d.Name)
	s.Brand = types.StringValue(d.Brand)
	s.State = types.StringValue(string(d.State))
	s.CreationTime = types.StringValue(d.CreationTime.UTC().Format(time.RFC3339Nano))
	s.Version = types.Int64Value(d.Version)
}
