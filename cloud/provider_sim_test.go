package cloud_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/cloud"
	"github.com/sixsq/slipstream-cloud/sim"
	"github.com/sixsq/slipstream-cloud/slipstream"
)

// simProvider stands up a simulator and a provider logged in to it, so the
// whole stack is exercised over real HTTP.
func simProvider(t *testing.T) (*sim.Service, *cloud.SlipStreamProvider) {
	t.Helper()

	service := sim.New()
	service.AddUser("test", "secret", "exoscale")
	service.AddModule(slipstream.Module{
		Path: "examples/ubuntu", Version: 4, Kind: slipstream.ModuleKindComponent, Name: "ubuntu",
	})
	service.AddServiceOffer(map[string]interface{}{
		"id":               "service-offer/small",
		"name":             "small",
		"resource:type":    "VM",
		"resource:ram":     float64(512),
		"resource:country": "CH",
		"connector":        map[string]interface{}{"href": "connector/exoscale"},
	})

	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)

	provider, err := cloud.NewSlipStreamProvider(context.Background(), cloud.SlipStreamConfiguration{
		Endpoint: server.URL,
		Key:      "test",
		Secret:   "secret",
	})
	if err != nil {
		t.Fatalf("NewSlipStreamProvider returned error: %v", err)
	}

	return service, provider
}

func TestProviderNodeLifecycleOverHTTP(t *testing.T) {
	service, provider := simProvider(t)
	ctx := context.Background()

	node, err := provider.CreateNode(ctx, cloud.CreateNodeOpts{
		Name:     "my-vm",
		Image:    "examples/ubuntu/4",
		Location: "exoscale",
		Size:     "service-offer/small",
	})
	if err != nil {
		t.Fatalf("CreateNode returned error: %v", err)
	}
	if node.State != cloud.NodeStatePending {
		t.Errorf("new node state = %q, want %q", node.State, cloud.NodeStatePending)
	}

	deploy := service.LastDeploy()
	if deploy == nil {
		t.Fatal("the simulator saw no deploy")
	}
	if deploy.Cloud != "exoscale" {
		t.Errorf("deploy.Cloud = %q, want %q", deploy.Cloud, "exoscale")
	}
	if deploy.Parameters["service-offer"] != "service-offer/small" {
		t.Errorf("service offer not injected: %v", deploy.Parameters)
	}

	service.ScriptRunStates(node.ID, "Provisioning", "Ready")
	state, err := provider.WaitNodeInState(ctx, node, cloud.WaitOpts{Period: time.Millisecond})
	if err != nil {
		t.Fatalf("WaitNodeInState returned error: %v", err)
	}
	if state != "Ready" {
		t.Errorf("final state = %q, want %q", state, "Ready")
	}

	if err := provider.DestroyNode(ctx, node); err != nil {
		t.Fatalf("DestroyNode returned error: %v", err)
	}

	destroyed, err := provider.GetNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("GetNode returned error: %v", err)
	}
	if destroyed.State != cloud.NodeStateTerminated {
		t.Errorf("destroyed node state = %q, want %q", destroyed.State, cloud.NodeStateTerminated)
	}
}

func TestProviderCatalogOverHTTP(t *testing.T) {
	_, provider := simProvider(t)
	ctx := context.Background()

	images, err := provider.ListImages(ctx, cloud.ListImagesOpts{})
	if err != nil {
		t.Fatalf("ListImages returned error: %v", err)
	}
	if len(images) != 1 || images[0].ID != "examples/ubuntu/4" {
		t.Fatalf("got %+v, want just examples/ubuntu/4", images)
	}

	sizes, err := provider.ListSizes(ctx, "exoscale")
	if err != nil {
		t.Fatalf("ListSizes returned error: %v", err)
	}
	if len(sizes) != 1 || sizes[0].RAM != 512 {
		t.Errorf("got sizes %+v", sizes)
	}

	locations, err := provider.ListLocations(ctx)
	if err != nil {
		t.Fatalf("ListLocations returned error: %v", err)
	}
	if len(locations) != 1 || locations[0].ID != "exoscale" || locations[0].Country != "CH" {
		t.Errorf("got locations %+v", locations)
	}
}

func TestProviderKeyPairsOverHTTP(t *testing.T) {
	service, provider := simProvider(t)
	ctx := context.Background()

	imported, err := provider.ImportKeyPair(ctx, "laptop", "ssh-rsa AAAAB3NzaLaptop")
	if err != nil {
		t.Fatalf("ImportKeyPair returned error: %v", err)
	}

	keyPairs, err := provider.ListKeyPairs(ctx)
	if err != nil {
		t.Fatalf("ListKeyPairs returned error: %v", err)
	}
	if len(keyPairs) != 1 || keyPairs[0].Name != "laptop" {
		t.Fatalf("got key pairs %+v", keyPairs)
	}

	if err := provider.DeleteKeyPair(ctx, imported); err != nil {
		t.Fatalf("DeleteKeyPair returned error: %v", err)
	}
	if blob := service.UserSSHKeys("test"); blob != "" {
		t.Errorf("key blob = %q after delete, want empty", blob)
	}
}

func TestProviderBadLogin(t *testing.T) {
	service := sim.New()
	service.AddUser("test", "secret")

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	_, err := cloud.NewSlipStreamProvider(context.Background(), cloud.SlipStreamConfiguration{
		Endpoint: server.URL,
		Key:      "test",
		Secret:   "wrong",
	})
	if err == nil {
		t.Fatal("NewSlipStreamProvider succeeded with bad credentials")
	}
}
