package datasources_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-go/tftypes"

	"github.com/tphummel/devices/internal/apiclient"
	"github.com/tphummel/devices/internal/models"
	"github.com/tphummel/devices/terraform-provider-devices/internal/datasources"
)

// testDevicesModel mirrors devicesDataSourceModel for reading state in tests.
type testDevicesModel struct {
	Brand   types.String     `tfsdk:"brand"`
	State   types.String     `tfsdk:"state"`
	Devices []testDeviceItem `tfsdk:"devices"`
}

type testDeviceItem struct {
	ID           types.String `tfsdk:"id"`
	Name         types.String `tfsdk:"name"`
	Brand        types.String `tfsdk:"brand"`
	State        types.String `tfsdk:"state"`
	CreationTime types.String `tfsdk:"creation_time"`
	Version      types.Int64  `tfsdk:"version"`
}

var created = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

var fixture = []models.Response{
	{ID: 1, Name: "ThinkPad", Brand: "Lenovo", State: models.StateAvailable, CreationTime: created, Version: 1},
	{ID: 2, Name: "Yoga", Brand: "Lenovo", State: models.StateInUse, CreationTime: created, Version: 3},
}

// getDataSourceSchema returns the schema from the data source.
func getDataSourceSchema(t *testing.T, d datasource.DataSource) datasource.SchemaResponse {
	t.Helper()
	var resp datasource.SchemaResponse
	d.Schema(context.Background(), datasource.SchemaRequest{}, &resp)
	return resp
}

// newMockServer creates an httptest server and a client pointing at it.
func newMockServer(t *testing.T, handler http.HandlerFunc) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return apiclient.NewClient(srv.URL, "test-token")
}

// configureDataSource injects the client into the data source.
func configureDataSource(t *testing.T, d datasource.DataSource, client *apiclient.Client) {
	t.Helper()
	dc, ok := d.(datasource.DataSourceWithConfigure)
	if !ok {
		t.Fatal("data source does not implement DataSourceWithConfigure")
	}
	var resp datasource.ConfigureResponse
	dc.Configure(context.Background(), datasource.ConfigureRequest{ProviderData: client}, &resp)
	if resp.Diagnostics.HasError() {
		t.Fatalf("Configure: %v", resp.Diagnostics)
	}
}

func optionalString(v string) tftypes.Value {
	if v == "" {
		return tftypes.NewValue(tftypes.String, nil)
	}
	return tftypes.NewValue(tftypes.String, v)
}

// buildConfig constructs a tfsdk.Config for the devices data source. brand
// and state may be "" to represent an omitted filter.
func buildConfig(t *testing.T, schm datasource.SchemaResponse, brand, state string) tfsdk.Config {
	t.Helper()
	ctx := context.Background()
	tfType := schm.Schema.Type().TerraformType(ctx)
	objType := tfType.(tftypes.Object)
	devicesType := objType.AttributeTypes["devices"]

	raw := tftypes.NewValue(tfType, map[string]tftypes.Value{
		"brand":   optionalString(brand),
		"state":   optionalString(state),
		"devices": tftypes.NewValue(devicesType, nil),
	})
	return tfsdk.Config{Schema: schm.Schema, Raw: raw}
}

func emptyState(schm datasource.SchemaResponse) tfsdk.State {
	ctx := context.Background()
	return tfsdk.State{
		Schema: schm.Schema,
		Raw:    tftypes.NewValue(schm.Schema.Type().TerraformType(ctx), nil),
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// --- Metadata ---

func TestDevicesDataSource_Metadata(t *testing.T) {
	d := datasources.NewDevicesDataSource()
	var resp datasource.MetadataResponse
	d.Metadata(context.Background(), datasource.MetadataRequest{ProviderTypeName: "devices"}, &resp)

	want := "devices_devices"
	if resp.TypeName != want {
		t.Errorf("TypeName: got %q, want %q", resp.TypeName, want)
	}
}

// --- Schema ---

func TestDevicesDataSource_Schema_FiltersOptional(t *testing.T) {
	d := datasources.NewDevicesDataSource()
	schm := getDataSourceSchema(t, d)

	for _, name := range []string{"brand", "state"} {
		attr, ok := schm.Schema.Attributes[name]
		if !ok {
			t.Errorf("schema missing %q attribute", name)
			continue
		}
		if !attr.IsOptional() {
			t.Errorf("%q attribute should be Optional", name)
		}
	}
}

func TestDevicesDataSource_Schema_HasDevicesAttribute(t *testing.T) {
	d := datasources.NewDevicesDataSource()
	schm := getDataSourceSchema(t, d)

	attr, ok := schm.Schema.Attributes["devices"]
	if !ok {
		t.Fatal("schema missing 'devices' attribute")
	}
	if !attr.IsComputed() {
		t.Error("'devices' attribute should be Computed")
	}
}

// --- Configure ---

func TestDevicesDataSource_Configure_NilData(t *testing.T) {
	dc := datasources.NewDevicesDataSource().(datasource.DataSourceWithConfigure)

	var resp datasource.ConfigureResponse
	dc.Configure(context.Background(), datasource.ConfigureRequest{ProviderData: nil}, &resp)

	if resp.Diagnostics.HasError() {
		t.Errorf("Configure(nil): unexpected error: %v", resp.Diagnostics)
	}
}

func TestDevicesDataSource_Configure_WrongType(t *testing.T) {
	dc := datasources.NewDevicesDataSource().(datasource.DataSourceWithConfigure)

	var resp datasource.ConfigureResponse
	dc.Configure(context.Background(), datasource.ConfigureRequest{ProviderData: 42}, &resp)

	if !resp.Diagnostics.HasError() {
		t.Error("Configure(wrong type): expected error, got none")
	}
}

// --- Read ---

func TestDevicesDataSource_Read_Filters(t *testing.T) {
	tests := []struct {
		name     string
		brand    string
		state    string
		wantPath string
		wantIDs  []string
	}{
		{"no filter", "", "", "/api/v1/devices", []string{"1", "2"}},
		{"brand", "Lenovo", "", "/api/v1/devices/brand/Lenovo", []string{"1", "2"}},
		{"state", "", "IN-USE", "/api/v1/devices/state/in-use", []string{"1", "2"}},
		{"brand and state", "Lenovo", "in-use", "/api/v1/devices/brand/Lenovo", []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d := datasources.NewDevicesDataSource()
			schm := getDataSourceSchema(t, d)

			client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("path: got %q, want %q", r.URL.Path, tt.wantPath)
				}
				writeJSON(w, http.StatusOK, fixture)
			})
			configureDataSource(t, d, client)

			resp := &datasource.ReadResponse{State: emptyState(schm)}
			d.Read(ctx, datasource.ReadRequest{Config: buildConfig(t, schm, tt.brand, tt.state)}, resp)

			if resp.Diagnostics.HasError() {
				t.Fatalf("Read: unexpected error: %v", resp.Diagnostics)
			}
			var got testDevicesModel
			if diags := resp.State.Get(ctx, &got); diags.HasError() {
				t.Fatalf("state.Get: %v", diags)
			}
			if len(got.Devices) != len(tt.wantIDs) {
				t.Fatalf("devices: got %d, want %d", len(got.Devices), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got.Devices[i].ID.ValueString() != id {
					t.Errorf("devices[%d].ID: got %q, want %q", i, got.Devices[i].ID.ValueString(), id)
				}
			}
		})
	}
}

func TestDevicesDataSource_Read_MapsFields(t *testing.T) {
	ctx := context.Background()
	d := datasources.NewDevicesDataSource()
	schm := getDataSourceSchema(t, d)

	client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, fixture[1:])
	})
	configureDataSource(t, d, client)

	resp := &datasource.ReadResponse{State: emptyState(schm)}
	d.Read(ctx, datasource.ReadRequest{Config: buildConfig(t, schm, "", "")}, resp)
	if resp.Diagnostics.HasError() {
		t.Fatalf("Read: unexpected error: %v", resp.Diagnostics)
	}

	var got testDevicesModel
	if diags := resp.State.Get(ctx, &got); diags.HasError() {
		t.Fatalf("state.Get: %v", diags)
	}
	item := got.Devices[0]
	if item.Name.ValueString() != "Yoga" || item.Brand.ValueString() != "Lenovo" {
		t.Errorf("got name %q brand %q", item.Name.ValueString(), item.Brand.ValueString())
	}
	if item.State.ValueString() != "in-use" {
		t.Errorf("State: got %q, want in-use", item.State.ValueString())
	}
	if item.CreationTime.ValueString() != "2024-01-15T10:30:00Z" {
		t.Errorf("CreationTime: got %q", item.CreationTime.ValueString())
	}
	if item.Version.ValueInt64() != 3 {
		t.Errorf("Version: got %d, want 3", item.Version.ValueInt64())
	}
}

func TestDevicesDataSource_Read_EmptyList(t *testing.T) {
	ctx := context.Background()
	d := datasources.NewDevicesDataSource()
	schm := getDataSourceSchema(t, d)

	client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Response{})
	})
	configureDataSource(t, d, client)

	resp := &datasource.ReadResponse{State: emptyState(schm)}
	d.Read(ctx, datasource.ReadRequest{Config: buildConfig(t, schm, "Nobody", "")}, resp)
	if resp.Diagnostics.HasError() {
		t.Fatalf("Read: unexpected error: %v", resp.Diagnostics)
	}

	var got testDevicesModel
	if diags := resp.State.Get(ctx, &got); diags.HasError() {
		t.Fatalf("state.Get: %v", diags)
	}
	if len(got.Devices) != 0 {
		t.Errorf("devices: got %d, want 0", len(got.Devices))
	}
}

func TestDevicesDataSource_Read_APIError(t *testing.T) {
	ctx := context.Background()
	d := datasources.NewDevicesDataSource()
	schm := getDataSourceSchema(t, d)

	client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Code: "INTERNAL_SERVER_ERROR", Message: "An unexpected error occurred"})
	})
	configureDataSource(t, d, client)

	resp := &datasource.ReadResponse{State: emptyState(schm)}
	d.Read(ctx, datasource.ReadRequest{Config: buildConfig(t, schm, "", "")}, resp)

	if !resp.Diagnostics.HasError() {
		t.Error("Read: expected error on API failure, got none")
	}
}

func TestDevicesDataSource_Read_InvalidState(t *testing.T) {
	ctx := context.Background()
	d := datasources.NewDevicesDataSource()
	schm := getDataSourceSchema(t, d)

	client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})
	configureDataSource(t, d, client)

	resp := &datasource.ReadResponse{State: emptyState(schm)}
	d.Read(ctx, datasource.ReadRequest{Config: buildConfig(t, schm, "", "broken")}, resp)

	if !resp.Diagnostics.HasError() {
		t.Error("Read: expected error for unknown state, got none")
	}
}
