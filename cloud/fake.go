package cloud

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/context"
)

// FakeProvider is an in-memory Provider suitable for tests of code that
// consumes the cloud package.
type FakeProvider struct {
	mutex    sync.Mutex
	nodes    map[string]Node
	images   map[string]Image
	keyPairs []KeyPair
	counter  uint64
}

var _ Provider = (*FakeProvider)(nil)

// NewFakeProvider creates a FakeProvider offering the given images.
func NewFakeProvider(images ...Image) *FakeProvider {
	p := &FakeProvider{
		nodes:  make(map[string]Node),
		images: make(map[string]Image),
	}
	for _, image := range images {
		p.images[image.ID] = image
	}
	return p
}

// MarkState sets the state of a node, so tests can script transitions.
func (p *FakeProvider) MarkState(id string, state NodeState) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	node := p.nodes[id]
	node.State = state
	p.nodes[id] = node
}

// ListNodes returns all the nodes in the fake provider.
func (p *FakeProvider) ListNodes(ctx context.Context) ([]Node, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var nodes []Node
	for _, node := range p.nodes {
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (p *FakeProvider) GetNode(ctx context.Context, id string) (Node, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	node, ok := p.nodes[id]
	if !ok {
		return Node{}, ErrNodeNotFound
	}
	return node, nil
}

// CreateNode creates a node in the fake provider.
func (p *FakeProvider) CreateNode(ctx context.Context, opts CreateNodeOpts) (Node, error) {
	if opts.Image == "" {
		return Node{}, fmt.Errorf("an image is required to create a node")
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	image, ok := p.images[opts.Image]
	if !ok {
		return Node{}, ErrImageNotFound
	}

	count := atomic.AddUint64(&p.counter, 1)
	node := Node{
		ID:    fmt.Sprintf("fake-node-%d", count),
		Name:  opts.Name,
		State: NodeStatePending,
		Image: image.ID,
		Extra: map[string]interface{}{"tags": normalizeTags(opts.Name, opts.Tags)},
	}
	p.nodes[node.ID] = node

	return node, nil
}

func (p *FakeProvider) DestroyNode(ctx context.Context, node Node) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.nodes[node.ID]; !ok {
		return ErrNodeNotFound
	}
	delete(p.nodes, node.ID)
	return nil
}

// ListImages returns the images the fake provider was seeded with.
func (p *FakeProvider) ListImages(ctx context.Context, opts ListImagesOpts) ([]Image, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var images []Image
	for _, image := range p.images {
		if opts.Path != "" && !strings.HasPrefix(image.ID, opts.Path) {
			continue
		}
		images = append(images, image)
	}
	return images, nil
}

func (p *FakeProvider) GetImage(ctx context.Context, id string) (Image, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	image, ok := p.images[id]
	if !ok {
		return Image{}, ErrImageNotFound
	}
	return image, nil
}

func (p *FakeProvider) DeleteImage(ctx context.Context, image Image) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.images[image.ID]; !ok {
		return ErrImageNotFound
	}
	delete(p.images, image.ID)
	return nil
}

func (p *FakeProvider) ListSizes(ctx context.Context, location string) ([]Size, error) {
	return []Size{
		{ID: "service-offer/fake-small", Name: "fake-small", RAM: 512, Disk: 10},
		{ID: "service-offer/fake-large", Name: "fake-large", RAM: 8192, Disk: 100, Price: 1.5},
	}, nil
}

func (p *FakeProvider) ListLocations(ctx context.Context) ([]Location, error) {
	return []Location{{ID: "fake-cloud", Name: "fake-cloud", Country: "CH"}}, nil
}

func (p *FakeProvider) ListKeyPairs(ctx context.Context) ([]KeyPair, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return append([]KeyPair(nil), p.keyPairs...), nil
}

func (p *FakeProvider) GetKeyPair(ctx context.Context, name string) (KeyPair, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, keyPair := range p.keyPairs {
		if keyPair.Name == name {
			return keyPair, nil
		}
	}
	return KeyPair{}, ErrKeyPairNotFound
}

func (p *FakeProvider) CreateKeyPair(ctx context.Context, name string) (KeyPair, error) {
	return p.ImportKeyPair(ctx, name, "ssh-rsa AAAAfake "+name)
}

func (p *FakeProvider) ImportKeyPair(ctx context.Context, name, material string) (KeyPair, error) {
	keyPair, err := keyPairFromPublicKey(material, name)
	if err != nil {
		return KeyPair{}, err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.keyPairs = append(p.keyPairs, keyPair)
	return keyPair, nil
}

func (p *FakeProvider) DeleteKeyPair(ctx context.Context, keyPair KeyPair) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i, existing := range p.keyPairs {
		if existing.Name == keyPair.Name {
			p.keyPairs = append(p.keyPairs[:i], p.keyPairs[i+1:]...)
			return nil
		}
	}
	return ErrKeyPairNotFound
}
