package cloud

import (
	"fmt"

	"github.com/mitchellh/multistep"
	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/slipstream"
)

type ssCreateContext struct {
	ctx      context.Context
	opts     CreateNodeOpts
	module   slipstream.Module
	req      slipstream.DeployRequest
	runID    string
	nodeChan chan Node
	errChan  chan error
}

// CreateNode deploys the image named in opts and returns the resulting node.
// Deployment doesn't return full node data, so a successful deploy is
// followed by a get-by-id round trip.
func (p *SlipStreamProvider) CreateNode(ctx context.Context, opts CreateNodeOpts) (Node, error) {
	if opts.Image == "" {
		return Node{}, fmt.Errorf("an image is required to create a node")
	}

	state := &multistep.BasicStateBag{}

	c := &ssCreateContext{
		ctx:      ctx,
		opts:     opts,
		nodeChan: make(chan Node),
		errChan:  make(chan error),
	}

	runner := &multistep.BasicRunner{
		Steps: []multistep.Step{
			&ssCreateMultistepWrapper{c: c, f: p.stepResolveImage},
			&ssCreateMultistepWrapper{c: c, f: p.stepBuildDeployRequest},
			&ssCreateMultistepWrapper{c: c, f: p.stepDeploy},
			&ssCreateMultistepWrapper{c: c, f: p.stepFetchNode},
		},
	}

	go runner.Run(state)

	select {
	case node := <-c.nodeChan:
		return node, nil
	case err := <-c.errChan:
		return Node{}, err
	}
}

func (p *SlipStreamProvider) stepResolveImage(c *ssCreateContext) multistep.StepAction {
	module, err := p.api.GetModule(c.ctx, c.opts.Image)
	if err != nil {
		if slipstream.IsNotFound(err) {
			err = ErrImageNotFound
		}
		c.errChan <- err
		return multistep.ActionHalt
	}

	if module.Kind != slipstream.ModuleKindComponent && module.Kind != slipstream.ModuleKindApplication {
		c.errChan <- fmt.Errorf("module %q is a %s, not a deployable image", c.opts.Image, module.Kind)
		return multistep.ActionHalt
	}

	c.module = module
	return multistep.ActionContinue
}

func (p *SlipStreamProvider) stepBuildDeployRequest(c *ssCreateContext) multistep.StepAction {
	req := slipstream.DeployRequest{
		Path:             c.opts.Image,
		Tags:             normalizeTags(c.opts.Name, c.opts.Tags),
		KeepRunning:      c.opts.KeepRunning,
		Multiplicity:     c.opts.Multiplicity,
		TolerateFailures: c.opts.TolerateFailures,
		CheckSSHKey:      c.opts.CheckSSHKey,
		Scalable:         c.opts.Scalable,
	}

	cloud := c.opts.Cloud
	if cloud == "" {
		cloud = c.opts.Location
	}

	if c.module.Kind == slipstream.ModuleKindApplication {
		req.ParametersByNode = copyParametersByNode(c.opts.ParametersByNode)

		if cloud != "" {
			req.CloudByNode = map[string]string{}
			for nodeName := range c.module.Nodes {
				req.CloudByNode[nodeName] = cloud
			}
		}

		// The service offer goes into every sub-node, but an explicit
		// caller-supplied offer is never overwritten.
		if c.opts.Size != "" {
			if req.ParametersByNode == nil {
				req.ParametersByNode = map[string]map[string]interface{}{}
			}
			for nodeName := range c.module.Nodes {
				parameters := req.ParametersByNode[nodeName]
				if parameters == nil {
					parameters = map[string]interface{}{}
					req.ParametersByNode[nodeName] = parameters
				}
				if _, ok := parameters["service-offer"]; !ok {
					parameters["service-offer"] = c.opts.Size
				}
			}
		}
	} else {
		req.Cloud = cloud
		req.Parameters = copyParameters(c.opts.Parameters)

		if c.opts.Size != "" {
			if req.Parameters == nil {
				req.Parameters = map[string]interface{}{}
			}
			if _, ok := req.Parameters["service-offer"]; !ok {
				req.Parameters["service-offer"] = c.opts.Size
			}
		}
	}

	c.req = req
	return multistep.ActionContinue
}

func (p *SlipStreamProvider) stepDeploy(c *ssCreateContext) multistep.StepAction {
	runID, err := p.api.Deploy(c.ctx, c.req)
	if err != nil {
		c.errChan <- err
		return multistep.ActionHalt
	}

	c.runID = runID
	return multistep.ActionContinue
}

func (p *SlipStreamProvider) stepFetchNode(c *ssCreateContext) multistep.StepAction {
	run, err := p.api.GetRun(c.ctx, c.runID)
	if err != nil {
		c.errChan <- err
		return multistep.ActionHalt
	}

	c.nodeChan <- runToNode(run)
	return multistep.ActionContinue
}

// normalizeTags prepends the node name, if given, to the tag list.
func normalizeTags(name string, tags []string) []string {
	normalized := make([]string, 0, len(tags)+1)
	if name != "" {
		normalized = append(normalized, name)
	}
	return append(normalized, tags...)
}

func copyParameters(parameters map[string]interface{}) map[string]interface{} {
	if parameters == nil {
		return nil
	}
	copied := make(map[string]interface{}, len(parameters))
	for key, value := range parameters {
		copied[key] = value
	}
	return copied
}

func copyParametersByNode(parameters map[string]map[string]interface{}) map[string]map[string]interface{} {
	if parameters == nil {
		return nil
	}
	copied := make(map[string]map[string]interface{}, len(parameters))
	for nodeName, nodeParameters := range parameters {
		copied[nodeName] = copyParameters(nodeParameters)
	}
	return copied
}

type ssCreateMultistepWrapper struct {
	f func(*ssCreateContext) multistep.StepAction
	c *ssCreateContext
}

func (w *ssCreateMultistepWrapper) Run(multistep.StateBag) multistep.StepAction {
	return w.f(w.c)
}

func (w *ssCreateMultistepWrapper) Cleanup(multistep.StateBag) { return }
