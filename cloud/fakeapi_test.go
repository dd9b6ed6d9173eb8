package cloud

import (
	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/slipstream"
)

// fakeAPI is an in-memory slipstreamAPI that records the calls made against
// it, so tests can script upstream behavior without HTTP.
type fakeAPI struct {
	runs    map[string]slipstream.Run
	modules map[string]slipstream.Module

	user    slipstream.User
	userErr error

	// updatedKeys records every UpdateUserSSHKeys payload.
	updatedKeys []string

	deploys   []slipstream.DeployRequest
	deployID  string
	deployErr error

	terminated   []string
	terminateErr error

	searches     []searchCall
	searchResult slipstream.Collection
	searchErr    error

	// stateSequence scripts successive ss:state polls; the last value
	// sticks. statePolls counts them.
	stateSequence []string
	statePolls    int
	abortValue    string
}

type searchCall struct {
	resourceType string
	filter       string
}

func notFoundErr() error {
	return &slipstream.APIError{StatusCode: 404, Method: "GET", URL: "fake"}
}

func (f *fakeAPI) ListRuns(ctx context.Context) ([]slipstream.Run, error) {
	var runs []slipstream.Run
	for _, run := range f.runs {
		runs = append(runs, run)
	}
	return runs, nil
}

func (f *fakeAPI) GetRun(ctx context.Context, id string) (slipstream.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return slipstream.Run{}, notFoundErr()
	}
	return run, nil
}

func (f *fakeAPI) Deploy(ctx context.Context, req slipstream.DeployRequest) (string, error) {
	if f.deployErr != nil {
		return "", f.deployErr
	}

	f.deploys = append(f.deploys, req)

	id := f.deployID
	if id == "" {
		id = "run-1"
	}
	if f.runs == nil {
		f.runs = map[string]slipstream.Run{}
	}
	f.runs[id] = slipstream.Run{
		ID:     id,
		Module: req.Path,
		Status: "initializing",
		Tags:   req.Tags,
		Attrs:  map[string]interface{}{"id": id},
	}
	return id, nil
}

func (f *fakeAPI) Terminate(ctx context.Context, id string) error {
	if f.terminateErr != nil {
		return f.terminateErr
	}
	if _, ok := f.runs[id]; !ok {
		return notFoundErr()
	}
	f.terminated = append(f.terminated, id)
	return nil
}

func (f *fakeAPI) GetRunParameter(ctx context.Context, id, name string) (string, error) {
	if name == runAbortParameter {
		return f.abortValue, nil
	}

	f.statePolls++
	if len(f.stateSequence) == 0 {
		return "", notFoundErr()
	}
	value := f.stateSequence[0]
	if len(f.stateSequence) > 1 {
		f.stateSequence = f.stateSequence[1:]
	}
	return value, nil
}

func (f *fakeAPI) ListModules(ctx context.Context) ([]slipstream.Module, error) {
	var modules []slipstream.Module
	for _, module := range f.modules {
		modules = append(modules, module)
	}
	return modules, nil
}

func (f *fakeAPI) GetModule(ctx context.Context, path string) (slipstream.Module, error) {
	module, ok := f.modules[path]
	if !ok {
		return slipstream.Module{}, notFoundErr()
	}
	return module, nil
}

func (f *fakeAPI) ListProjectContent(ctx context.Context, path string, recurse bool) ([]slipstream.Module, error) {
	project, err := f.GetModule(ctx, path)
	if err != nil {
		return nil, err
	}

	var elements []slipstream.Module
	for _, child := range project.Children {
		elements = append(elements, child)
		if recurse && child.Kind == slipstream.ModuleKindProject {
			sub, err := f.ListProjectContent(ctx, child.Path, true)
			if err != nil {
				return nil, err
			}
			elements = append(elements, sub...)
		}
	}
	return elements, nil
}

func (f *fakeAPI) DeleteModule(ctx context.Context, path string) error {
	if _, ok := f.modules[path]; !ok {
		return notFoundErr()
	}
	delete(f.modules, path)
	return nil
}

func (f *fakeAPI) Search(ctx context.Context, resourceType, filter string) (slipstream.Collection, error) {
	f.searches = append(f.searches, searchCall{resourceType: resourceType, filter: filter})
	if f.searchErr != nil {
		return slipstream.Collection{}, f.searchErr
	}
	return f.searchResult, nil
}

func (f *fakeAPI) GetUser(ctx context.Context) (slipstream.User, error) {
	if f.userErr != nil {
		return slipstream.User{}, f.userErr
	}
	return f.user, nil
}

func (f *fakeAPI) UpdateUserSSHKeys(ctx context.Context, sshPublicKeys string) error {
	f.updatedKeys = append(f.updatedKeys, sshPublicKeys)
	f.user.SSHPublicKeys = sshPublicKeys
	return nil
}
