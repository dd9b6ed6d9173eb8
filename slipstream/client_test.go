package slipstream_test

import (
	"net/http/httptest"
	"testing"

	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/sim"
	"github.com/sixsq/slipstream-cloud/slipstream"
)

// testService starts a simulator with one seeded account and returns a
// logged-in client for it.
func testService(t *testing.T) (*sim.Service, *slipstream.Client) {
	t.Helper()

	service := sim.New()
	service.AddUser("test", "secret", "exoscale")

	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)

	client, err := slipstream.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	err = client.Login(context.Background(), slipstream.Credentials{
		Method:   slipstream.LoginInternal,
		Username: "test",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	return service, client
}

func TestLogin(t *testing.T) {
	_, client := testService(t)

	if client.Username() != "test" {
		t.Errorf("client.Username() = %q, want %q", client.Username(), "test")
	}
}

func TestLoginBadPassword(t *testing.T) {
	service := sim.New()
	service.AddUser("test", "secret")

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	client, err := slipstream.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	err = client.Login(context.Background(), slipstream.Credentials{
		Username: "test",
		Password: "wrong",
	})
	apiErr, ok := err.(*slipstream.APIError)
	if !ok {
		t.Fatalf("got %v (%T), want an *APIError", err, err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestLoginAPIKey(t *testing.T) {
	service := sim.New()
	service.AddUser("test", "secret")

	key, keySecret, err := service.IssueAPIKey("test")
	if err != nil {
		t.Fatalf("IssueAPIKey returned error: %v", err)
	}

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	client, err := slipstream.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	err = client.Login(context.Background(), slipstream.Credentials{
		Method: slipstream.LoginAPIKey,
		Key:    key,
		Secret: keySecret,
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if client.Username() != "test" {
		t.Errorf("client.Username() = %q, want %q", client.Username(), "test")
	}

	// A wrong secret must not open a session.
	other, _ := slipstream.NewClient(server.URL)
	err = other.Login(context.Background(), slipstream.Credentials{
		Method: slipstream.LoginAPIKey,
		Key:    key,
		Secret: "wrong",
	})
	if err == nil {
		t.Error("Login with a wrong API secret succeeded")
	}
}

func TestLoginUnknownMethod(t *testing.T) {
	client, err := slipstream.NewClient("http://localhost:0")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	err = client.Login(context.Background(), slipstream.Credentials{Method: "kerberos"})
	if err == nil {
		t.Fatal("an unknown login method was accepted without a request")
	}
}

func TestRequestsWithoutSessionAreRejected(t *testing.T) {
	service := sim.New()
	service.AddUser("test", "secret")

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	client, err := slipstream.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = client.ListRuns(context.Background())
	apiErr, ok := err.(*slipstream.APIError)
	if !ok {
		t.Fatalf("got %v (%T), want an *APIError", err, err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestDeployAndGetRun(t *testing.T) {
	service, client := testService(t)
	ctx := context.Background()

	service.AddModule(slipstream.Module{
		Path: "examples/ubuntu", Version: 4, Kind: slipstream.ModuleKindComponent, Name: "ubuntu",
	})

	id, err := client.Deploy(ctx, slipstream.DeployRequest{
		Path:  "examples/ubuntu/4",
		Cloud: "exoscale",
		Tags:  []string{"my-vm"},
	})
	if err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}
	if id == "" {
		t.Fatal("Deploy returned an empty run ID")
	}

	last := service.LastDeploy()
	if last == nil || last.Cloud != "exoscale" {
		t.Errorf("simulator recorded deploy %+v", last)
	}

	run, err := client.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.ID != id || run.Status != "initializing" {
		t.Errorf("run = %+v", run)
	}
	if len(run.Tags) != 1 || run.Tags[0] != "my-vm" {
		t.Errorf("run.Tags = %v, want [my-vm]", run.Tags)
	}

	runs, err := client.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs, want 1", len(runs))
	}
}

func TestDeployUnknownModule(t *testing.T) {
	_, client := testService(t)

	_, err := client.Deploy(context.Background(), slipstream.DeployRequest{Path: "no/such/module"})
	if !slipstream.IsNotFound(err) {
		t.Fatalf("got %v, want a not-found error", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	_, client := testService(t)

	_, err := client.GetRun(context.Background(), "no-such-run")
	if !slipstream.IsNotFound(err) {
		t.Fatalf("got %v, want a not-found error", err)
	}

	apiErr := err.(*slipstream.APIError)
	if apiErr.Message != "unknown run" {
		t.Errorf("error message = %q, want the decoded service message", apiErr.Message)
	}
}

func TestTerminate(t *testing.T) {
	service, client := testService(t)
	ctx := context.Background()

	service.AddModule(slipstream.Module{Path: "examples/ubuntu", Version: 4, Kind: slipstream.ModuleKindComponent})
	id, err := client.Deploy(ctx, slipstream.DeployRequest{Path: "examples/ubuntu"})
	if err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}

	if err := client.Terminate(ctx, id); err != nil {
		t.Fatalf("Terminate returned error: %v", err)
	}

	run, err := client.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.Status != "cancelled" {
		t.Errorf("run.Status = %q after terminate, want %q", run.Status, "cancelled")
	}

	if err := client.Terminate(ctx, "no-such-run"); !slipstream.IsNotFound(err) {
		t.Errorf("terminating a missing run returned %v, want a not-found error", err)
	}
}

func TestGetRunParameter(t *testing.T) {
	service, client := testService(t)
	ctx := context.Background()

	service.AddModule(slipstream.Module{Path: "examples/ubuntu", Version: 4, Kind: slipstream.ModuleKindComponent})
	id, err := client.Deploy(ctx, slipstream.DeployRequest{Path: "examples/ubuntu"})
	if err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}

	service.ScriptRunStates(id, "Provisioning", "Ready")

	for _, want := range []string{"Provisioning", "Ready", "Ready"} {
		state, err := client.GetRunParameter(ctx, id, "ss:state")
		if err != nil {
			t.Fatalf("GetRunParameter returned error: %v", err)
		}
		if state != want {
			t.Errorf("ss:state = %q, want %q", state, want)
		}
	}

	service.SetRunAbort(id, "disk full")
	abort, err := client.GetRunParameter(ctx, id, "ss:abort")
	if err != nil {
		t.Fatalf("GetRunParameter returned error: %v", err)
	}
	if abort != "disk full" {
		t.Errorf("ss:abort = %q, want %q", abort, "disk full")
	}

	_, err = client.GetRunParameter(ctx, id, "ss:nonsense")
	if !slipstream.IsNotFound(err) {
		t.Errorf("unknown parameter returned %v, want a not-found error", err)
	}
}

func TestModuleCatalog(t *testing.T) {
	service, client := testService(t)
	ctx := context.Background()

	service.AddModule(slipstream.Module{Path: "examples", Version: 1, Kind: slipstream.ModuleKindProject, Name: "examples"})
	service.AddModule(slipstream.Module{Path: "examples/ubuntu", Version: 4, Kind: slipstream.ModuleKindComponent, Name: "ubuntu"})
	service.AddModule(slipstream.Module{Path: "examples/sub", Version: 1, Kind: slipstream.ModuleKindProject, Name: "sub"})
	service.AddModule(slipstream.Module{Path: "examples/sub/centos", Version: 2, Kind: slipstream.ModuleKindComponent, Name: "centos"})

	// The public catalog hides projects.
	modules, err := client.ListModules(ctx)
	if err != nil {
		t.Fatalf("ListModules returned error: %v", err)
	}
	if len(modules) != 2 {
		t.Errorf("got %d modules, want 2: %+v", len(modules), modules)
	}

	// A version suffix resolves to the module at that path.
	module, err := client.GetModule(ctx, "examples/ubuntu/4")
	if err != nil {
		t.Fatalf("GetModule returned error: %v", err)
	}
	if module.Name != "ubuntu" {
		t.Errorf("module.Name = %q, want %q", module.Name, "ubuntu")
	}

	content, err := client.ListProjectContent(ctx, "examples", false)
	if err != nil {
		t.Fatalf("ListProjectContent returned error: %v", err)
	}
	if len(content) != 2 {
		t.Errorf("got %d direct children, want 2: %+v", len(content), content)
	}

	content, err = client.ListProjectContent(ctx, "examples", true)
	if err != nil {
		t.Fatalf("ListProjectContent returned error: %v", err)
	}
	if len(content) != 3 {
		t.Errorf("got %d recursive children, want 3: %+v", len(content), content)
	}

	if err := client.DeleteModule(ctx, "examples/ubuntu"); err != nil {
		t.Fatalf("DeleteModule returned error: %v", err)
	}
	if _, err := client.GetModule(ctx, "examples/ubuntu"); !slipstream.IsNotFound(err) {
		t.Errorf("deleted module still resolves: %v", err)
	}
}

func TestSearch(t *testing.T) {
	service, client := testService(t)

	service.AddServiceOffer(map[string]interface{}{
		"id":            "service-offer/small",
		"resource:type": "VM",
		"connector":     map[string]interface{}{"href": "connector/exoscale"},
	})
	service.AddServiceOffer(map[string]interface{}{
		"id":            "service-offer/large",
		"resource:type": "VM",
		"connector":     map[string]interface{}{"href": "connector/cloudsigma"},
	})

	filter := new(slipstream.Filter).
		Eq("resource:type", "VM").
		Eq("connector/href", "connector/exoscale").
		String()

	collection, err := client.Search(context.Background(), "serviceOffers", filter)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if collection.Count != 1 || len(collection.Resources) != 1 {
		t.Fatalf("got collection %+v, want exactly the exoscale offer", collection)
	}
	if collection.Resources[0]["id"] != "service-offer/small" {
		t.Errorf("matched resource %+v", collection.Resources[0])
	}
}

func TestSearchUnknownResourceType(t *testing.T) {
	_, client := testService(t)

	_, err := client.Search(context.Background(), "unicorns", "")
	if !slipstream.IsNotFound(err) {
		t.Fatalf("got %v, want a not-found error", err)
	}
}

func TestUserProfile(t *testing.T) {
	service, client := testService(t)
	ctx := context.Background()

	service.SetUserSSHKeys("test", "ssh-rsa AAAA laptop")

	user, err := client.GetUser(ctx)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if user.SSHPublicKeys != "ssh-rsa AAAA laptop" {
		t.Errorf("user.SSHPublicKeys = %q", user.SSHPublicKeys)
	}
	if len(user.ConfiguredClouds) != 1 || user.ConfiguredClouds[0] != "exoscale" {
		t.Errorf("user.ConfiguredClouds = %v", user.ConfiguredClouds)
	}

	blob := "ssh-rsa AAAA laptop\nssh-rsa BBBB desktop"
	if err := client.UpdateUserSSHKeys(ctx, blob); err != nil {
		t.Fatalf("UpdateUserSSHKeys returned error: %v", err)
	}
	if got := service.UserSSHKeys("test"); got != blob {
		t.Errorf("stored blob = %q, want %q", got, blob)
	}
}
