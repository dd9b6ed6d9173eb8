package cloud

import (
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/slipstream"
	"github.com/sixsq/slipstream-cloud/sscontext"
)

// slipstreamAPI is the part of the SlipStream client the provider uses.
type slipstreamAPI interface {
	ListRuns(ctx context.Context) ([]slipstream.Run, error)
	GetRun(ctx context.Context, id string) (slipstream.Run, error)
	Deploy(ctx context.Context, req slipstream.DeployRequest) (string, error)
	Terminate(ctx context.Context, id string) error
	GetRunParameter(ctx context.Context, id, name string) (string, error)
	ListModules(ctx context.Context) ([]slipstream.Module, error)
	GetModule(ctx context.Context, path string) (slipstream.Module, error)
	ListProjectContent(ctx context.Context, path string, recurse bool) ([]slipstream.Module, error)
	DeleteModule(ctx context.Context, path string) error
	Search(ctx context.Context, resourceType, filter string) (slipstream.Collection, error)
	GetUser(ctx context.Context) (slipstream.User, error)
	UpdateUserSSHKeys(ctx context.Context, sshPublicKeys string) error
}

var _ slipstreamAPI = (*slipstream.Client)(nil)

// SlipStreamProvider is an implementation of cloud.Provider backed by a
// SlipStream service. It holds the authenticated client handle and nothing
// else; every call re-queries the service.
type SlipStreamProvider struct {
	api slipstreamAPI
}

var _ Provider = (*SlipStreamProvider)(nil)

// SlipStreamConfiguration contains all the configuration needed to create a
// SlipStreamProvider. With the internal login method, Key and Secret are the
// username and password; with the api-key method they are the API key ID and
// secret.
type SlipStreamConfiguration struct {
	Key         string `json:"key"`
	Secret      string `json:"secret"`
	LoginMethod string `json:"login_method"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Insecure    bool   `json:"insecure"`

	// Endpoint overrides Host/Port/Insecure when set.
	Endpoint string `json:"endpoint"`
}

// NewSlipStreamProviderFromJSON deserializes the given jsonConfig into a
// SlipStreamConfiguration and creates a SlipStreamProvider from that. Pass
// this to Register to make the provider available by alias.
func NewSlipStreamProviderFromJSON(jsonConfig []byte) (Provider, error) {
	var config SlipStreamConfiguration
	err := json.Unmarshal(jsonConfig, &config)
	if err != nil {
		return nil, err
	}

	return NewSlipStreamProvider(context.Background(), config)
}

// NewSlipStreamProvider creates a new SlipStreamProvider with the given
// configuration and logs in. A provider is only returned if login succeeds;
// without a session the provider would be unusable.
func NewSlipStreamProvider(ctx context.Context, conf SlipStreamConfiguration) (*SlipStreamProvider, error) {
	endpoint := conf.Endpoint
	if endpoint == "" {
		host := conf.Host
		if host == "" {
			host = "nuv.la"
		}

		scheme := "https"
		if conf.Insecure {
			scheme = "http"
		}

		port := ""
		if conf.Port != 0 {
			port = fmt.Sprintf(":%d", conf.Port)
		}

		endpoint = fmt.Sprintf("%s://%s%s", scheme, host, port)
	}

	client, err := slipstream.NewClient(endpoint)
	if err != nil {
		return nil, err
	}

	creds := slipstream.Credentials{Method: conf.LoginMethod}
	switch conf.LoginMethod {
	case slipstream.LoginAPIKey:
		creds.Key = conf.Key
		creds.Secret = conf.Secret
	default:
		creds.Username = conf.Key
		creds.Password = conf.Secret
	}

	err = client.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("could not log in to %s: %s", endpoint, err)
	}

	return &SlipStreamProvider{api: client}, nil
}

// NewSlipStreamProviderWithClient creates a SlipStreamProvider around a
// client that already has a session, for callers that manage login
// themselves.
func NewSlipStreamProviderWithClient(client *slipstream.Client) *SlipStreamProvider {
	return &SlipStreamProvider{api: client}
}

// ListNodes returns a node for every deployment visible to the account. An
// empty result is not an error.
func (p *SlipStreamProvider) ListNodes(ctx context.Context) ([]Node, error) {
	runs, err := p.api.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	var nodes []Node
	for _, run := range runs {
		nodes = append(nodes, runToNode(run))
	}

	return nodes, nil
}

// GetNode fetches a single node by deployment ID. Returns ErrNodeNotFound if
// no deployment with that ID exists.
func (p *SlipStreamProvider) GetNode(ctx context.Context, id string) (Node, error) {
	run, err := p.api.GetRun(ctx, id)
	if err != nil {
		if slipstream.IsNotFound(err) {
			return Node{}, ErrNodeNotFound
		}
		return Node{}, err
	}

	return runToNode(run), nil
}

// DestroyNode terminates the deployment behind the node. Returns
// ErrNodeNotFound if the deployment doesn't exist; any other upstream error
// is returned as-is for the caller to decide on.
func (p *SlipStreamProvider) DestroyNode(ctx context.Context, node Node) error {
	err := p.api.Terminate(ctx, node.ID)
	if err != nil {
		if slipstream.IsNotFound(err) {
			return ErrNodeNotFound
		}
		return err
	}
	return nil
}

// DestroyNodes destroys the given nodes, continuing past individual
// failures so one bad node doesn't abort the batch. Each failure is logged
// and the aggregate is returned.
func (p *SlipStreamProvider) DestroyNodes(ctx context.Context, nodes []Node) error {
	var result *multierror.Error

	for _, node := range nodes {
		err := p.DestroyNode(ctx, node)
		if err != nil {
			sscontext.LoggerFromContext(ctx).WithFields(logrus.Fields{
				"err":     err,
				"node_id": node.ID,
			}).Warn("error destroying node")
			sscontext.CaptureError(ctx, err)
			result = multierror.Append(result, fmt.Errorf("destroying node %q: %s", node.ID, err))
		}
	}

	return result.ErrorOrNil()
}

// ListSizes returns the service offers for virtual machines, optionally
// restricted to a connector location.
func (p *SlipStreamProvider) ListSizes(ctx context.Context, location string) ([]Size, error) {
	filter := new(slipstream.Filter).Eq("resource:type", "VM")
	if location != "" {
		filter.Eq("connector/href", "connector/"+location)
	}

	collection, err := p.api.Search(ctx, "serviceOffers", filter.String())
	if err != nil {
		return nil, err
	}

	var sizes []Size
	for _, offer := range collection.Resources {
		sizes = append(sizes, Size{
			ID:    stringAttr(offer, "id"),
			Name:  stringAttr(offer, "name"),
			RAM:   intAttr(offer, "resource:ram"),
			Disk:  intAttr(offer, "resource:disk"),
			Price: floatAttr(offer, "price:unitCost"),
			Extra: offer,
		})
	}

	return sizes, nil
}

// ListLocations returns the cloud connectors configured for the account. The
// country of each location is resolved on a best-effort basis from the
// connector's service offers; if the lookup fails the field stays empty and
// the reason is logged at debug level.
func (p *SlipStreamProvider) ListLocations(ctx context.Context) ([]Location, error) {
	user, err := p.api.GetUser(ctx)
	if err != nil {
		return nil, err
	}

	var locations []Location
	for _, cloud := range user.ConfiguredClouds {
		location := Location{
			ID:   cloud,
			Name: cloud,
		}
		location.Country = p.resolveCountry(ctx, cloud)

		locations = append(locations, location)
	}

	return locations, nil
}

func (p *SlipStreamProvider) resolveCountry(ctx context.Context, connector string) string {
	filter := new(slipstream.Filter).Eq("connector/href", "connector/"+connector)

	collection, err := p.api.Search(ctx, "serviceOffers", filter.String())
	if err != nil {
		sscontext.LoggerFromContext(ctx).WithFields(logrus.Fields{
			"err":       err,
			"connector": connector,
		}).Debug("could not resolve country for connector")
		return ""
	}

	for _, offer := range collection.Resources {
		if country := stringAttr(offer, "resource:country"); country != "" {
			return country
		}
	}

	return ""
}

// ListVirtualMachinesOpts restricts ListVirtualMachines. Both filters are
// optional and are combined with "and" when both are set.
type ListVirtualMachinesOpts struct {
	// Location restricts the listing to machines on the given connector.
	Location string

	// NodeID restricts the listing to machines of the given deployment.
	NodeID string

	// IsPublic classifies an IP address as public. When nil, the standard
	// private-subnet classification is used.
	IsPublic func(ip string) (bool, error)
}

// ListVirtualMachines returns the individual machines known to the service,
// one per upstream virtualMachines resource. This is a SlipStream extension
// and not part of the generic Provider interface.
func (p *SlipStreamProvider) ListVirtualMachines(ctx context.Context, opts ListVirtualMachinesOpts) ([]VirtualMachine, error) {
	filter := new(slipstream.Filter)
	if opts.Location != "" {
		filter.Eq("connector/href", "connector/"+opts.Location)
	}
	if opts.NodeID != "" {
		filter.Eq("deployment/href", "run/"+opts.NodeID)
	}

	collection, err := p.api.Search(ctx, "virtualMachines", filter.String())
	if err != nil {
		return nil, err
	}

	isPublic := opts.IsPublic
	if isPublic == nil {
		isPublic = isPublicIP
	}

	var machines []VirtualMachine
	for _, resource := range collection.Resources {
		vm := VirtualMachine{
			ID:    stringAttr(resource, "id"),
			Name:  stringAttr(resource, "instanceID"),
			State: NodeStateUnknown,
			Extra: resource,
		}

		if state := stringAttr(resource, "state"); state != "" {
			vm.State = NodeStateFromStatus(state)
		}

		if offer, ok := resource["serviceOffer"].(map[string]interface{}); ok {
			vm.Size = stringAttr(offer, "href")
		}

		// Classification failure leaves both IP lists unset.
		if ip := stringAttr(resource, "ip"); ip != "" {
			public, err := isPublic(ip)
			switch {
			case err != nil:
			case public:
				vm.PublicIPs = []string{ip}
			default:
				vm.PrivateIPs = []string{ip}
			}
		}

		machines = append(machines, vm)
	}

	return machines, nil
}

func runToNode(run slipstream.Run) Node {
	return Node{
		ID:    run.ID,
		Name:  run.ID,
		State: NodeStateFromStatus(run.Status),
		Image: run.Module,
		Extra: run.Attrs,
	}
}

func isPublicIP(ip string) (bool, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false, err
	}

	private := addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
	return !private, nil
}

func stringAttr(attrs map[string]interface{}, key string) string {
	value, _ := attrs[key].(string)
	return value
}

func intAttr(attrs map[string]interface{}, key string) int {
	switch value := attrs[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	}
	return 0
}

func floatAttr(attrs map[string]interface{}, key string) float64 {
	switch value := attrs[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	}
	return 0
}
