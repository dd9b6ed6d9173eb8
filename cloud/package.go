// Package cloud provides a provider-neutral interface for managing compute
// resources, and an implementation of it backed by SlipStream.
package cloud

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/net/context"
)

// ErrNodeNotFound is returned from Provider.GetNode() or
// Provider.DestroyNode() if a node with the given ID doesn't exist.
var ErrNodeNotFound = errors.New("could not find node")

// ErrImageNotFound is returned from Provider.GetImage() or
// Provider.DeleteImage() if an image with the given ID doesn't exist.
var ErrImageNotFound = errors.New("could not find image")

// ErrKeyPairNotFound is returned from Provider.GetKeyPair() or
// Provider.DeleteKeyPair() if no key pair with the given name is registered.
var ErrKeyPairNotFound = errors.New("could not find key pair")

// A Provider implements the methods necessary to manage compute nodes,
// images, sizes, locations and SSH key pairs on a given cloud provider.
type Provider interface {
	ListNodes(ctx context.Context) ([]Node, error)
	GetNode(ctx context.Context, id string) (Node, error)
	CreateNode(ctx context.Context, opts CreateNodeOpts) (Node, error)
	DestroyNode(ctx context.Context, node Node) error

	ListImages(ctx context.Context, opts ListImagesOpts) ([]Image, error)
	GetImage(ctx context.Context, id string) (Image, error)
	DeleteImage(ctx context.Context, image Image) error

	ListSizes(ctx context.Context, location string) ([]Size, error)
	ListLocations(ctx context.Context) ([]Location, error)

	ListKeyPairs(ctx context.Context) ([]KeyPair, error)
	GetKeyPair(ctx context.Context, name string) (KeyPair, error)
	CreateKeyPair(ctx context.Context, name string) (KeyPair, error)
	ImportKeyPair(ctx context.Context, name, material string) (KeyPair, error)
	DeleteKeyPair(ctx context.Context, keyPair KeyPair) error
}

// A Node is a single deployment: one or more machines started from an image.
type Node struct {
	ID    string
	Name  string
	State NodeState

	// Image is the upstream reference of the module the node was started
	// from.
	Image string

	// Extra holds the full upstream attribute set of the deployment.
	Extra map[string]interface{}
}

// An Image is a deployable catalog element: a component (single machine
// recipe) or an application (composition of named sub-nodes).
type Image struct {
	// ID is the catalog path joined with the version, "path/version".
	ID    string
	Name  string
	Extra map[string]interface{}
}

// A Size is a service offer: a CPU/RAM/disk/price tier available on some
// connector.
type Size struct {
	ID    string
	Name  string
	RAM   int
	Disk  int
	Price float64
	Extra map[string]interface{}
}

// A Location is a cloud connector configured for the account. Country is
// advisory metadata resolved on a best-effort basis; the empty string means
// it could not be resolved.
type Location struct {
	ID      string
	Name    string
	Country string
}

// A KeyPair is an SSH public key registered to the account, identified by
// the comment/name field of its authorized-keys line. Fingerprint is never
// computed by this layer and is always empty. PrivateKey is only set on the
// value returned by CreateKeyPair and is not stored anywhere.
type KeyPair struct {
	Name        string
	PublicKey   string
	Type        string
	Content     string
	Fingerprint string
	PrivateKey  string
}

// A VirtualMachine is a single machine belonging to a deployment, as
// reported by the upstream virtualMachines resource.
type VirtualMachine struct {
	ID         string
	Name       string
	State      NodeState
	PublicIPs  []string
	PrivateIPs []string

	// Size is the reference of the service offer the machine runs on.
	Size  string
	Extra map[string]interface{}
}

// CreateNodeOpts contains the options recognized when creating a node. Image
// is mandatory; everything else is optional.
type CreateNodeOpts struct {
	// Name becomes the first tag of the new node.
	Name string `json:"name,omitempty"`

	// Image is the ID of the image to deploy, "path/version".
	Image string `json:"image"`

	// Size is the ID of the service offer to run on. It is injected into the
	// deployment parameters unless the caller already set one explicitly.
	Size string `json:"size,omitempty"`

	// Location is the connector to deploy to. Ignored if Cloud is set.
	Location string `json:"location,omitempty"`

	// Cloud is the connector to deploy to, taking precedence over Location.
	Cloud string `json:"cloud,omitempty"`

	// Parameters are deployment parameters for a component image.
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// ParametersByNode are deployment parameters for an application image,
	// keyed by sub-node name.
	ParametersByNode map[string]map[string]interface{} `json:"parameters_by_node,omitempty"`

	Tags             TagList `json:"tags,omitempty"`
	KeepRunning      string  `json:"keep_running,omitempty"`
	Multiplicity     int     `json:"multiplicity,omitempty"`
	TolerateFailures int     `json:"tolerate_failures,omitempty"`
	CheckSSHKey      bool    `json:"check_ssh_key,omitempty"`
	Scalable         bool    `json:"scalable,omitempty"`
}

// ListImagesOpts contains the options recognized when listing images.
type ListImagesOpts struct {
	// Location is accepted for interface compatibility but not supported:
	// the catalog is not partitioned by connector, so the value is ignored.
	Location string `json:"location,omitempty"`

	// Path lists the content of the given project instead of the public
	// catalog.
	Path string `json:"path,omitempty"`

	// Recurse walks sub-projects too. Opt-in because it costs one upstream
	// call per sub-project.
	Recurse bool `json:"recurse,omitempty"`
}

// A TagList is a list of tags that also unmarshals from a bare JSON string,
// which becomes a single-element list.
type TagList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TagList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("tags must be a string or a list of strings: %s", err)
	}
	*t = TagList(many)
	return nil
}

// A KeyFormatError is returned when an SSH public key entry can't be parsed
// as an authorized-keys line.
type KeyFormatError struct {
	Entry string
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("invalid OpenSSH public key format for key: %q", e.Entry)
}
