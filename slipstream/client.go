package slipstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/context"

	"github.com/sirupsen/logrus"
	"github.com/sixsq/slipstream-cloud/sscontext"
)

// LoginInternal and LoginAPIKey are the supported session template methods.
const (
	LoginInternal = "internal"
	LoginAPIKey   = "api-key"
)

// Credentials selects a session template and carries the matching fields.
// Method internal uses Username/Password, method api-key uses Key/Secret.
type Credentials struct {
	Method   string
	Username string
	Password string
	Key      string
	Secret   string
}

// A Client talks to a SlipStream service. Construct it with NewClient and
// call Login before anything else; the session cookie is held in the client's
// cookie jar. A Client is not safe for concurrent mutation of upstream state;
// callers must serialize create/terminate/update calls themselves.
type Client struct {
	endpoint   string
	httpClient *http.Client
	username   string
}

// NewClient creates a client for the service at the given endpoint URL, e.g.
// "https://nuv.la". The returned client has no session yet.
func NewClient(endpoint string) (*Client, error) {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("slipstream: invalid endpoint %q: %s", endpoint, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Jar: jar},
	}, nil
}

// Endpoint returns the service URL this client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Username returns the account name established at login.
func (c *Client) Username() string {
	return c.username
}

// Login creates a session using the template selected by the credentials.
// The session cookie is stored in the client's jar; the client is unusable
// until Login succeeds.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	template := map[string]string{}
	switch creds.Method {
	case LoginAPIKey:
		template["href"] = "session-template/api-key"
		template["key"] = creds.Key
		template["secret"] = creds.Secret
	case LoginInternal, "":
		template["href"] = "session-template/internal"
		template["username"] = creds.Username
		template["password"] = creds.Password
	default:
		return fmt.Errorf("slipstream: unknown login method %q", creds.Method)
	}

	var session struct {
		Username string `json:"username"`
	}
	err := c.do(ctx, "POST", "/api/session", map[string]interface{}{"sessionTemplate": template}, &session, nil)
	if err != nil {
		return err
	}

	c.username = session.Username
	if c.username == "" {
		c.username = creds.Username
	}

	sscontext.LoggerFromContext(ctx).WithField("username", c.username).Debug("logged in")
	return nil
}

// ListRuns returns all deployments visible to the account.
func (c *Client) ListRuns(ctx context.Context) ([]Run, error) {
	var out struct {
		Runs []Run `json:"runs"`
	}
	err := c.do(ctx, "GET", "/run", nil, &out, nil)
	if err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// GetRun fetches a single deployment by ID.
func (c *Client) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := c.do(ctx, "GET", "/run/"+url.PathEscape(id), nil, &run, nil)
	return run, err
}

// Deploy starts a new run and returns its ID, taken from the Location header
// of the response. It does not wait for the run to reach any state.
func (c *Client) Deploy(ctx context.Context, req DeployRequest) (string, error) {
	var location string
	err := c.do(ctx, "POST", "/run", req, nil, &location)
	if err != nil {
		return "", err
	}

	idx := strings.LastIndex(location, "/")
	if idx < 0 || idx == len(location)-1 {
		return "", fmt.Errorf("slipstream: deploy returned unusable location %q", location)
	}
	return location[idx+1:], nil
}

// Terminate stops the run with the given ID.
func (c *Client) Terminate(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/run/"+url.PathEscape(id), nil, nil, nil)
}

// GetRunParameter reads one runtime parameter of a run, e.g. "ss:state".
func (c *Client) GetRunParameter(ctx context.Context, id, name string) (string, error) {
	var param RunParameter
	err := c.do(ctx, "GET", "/run/"+url.PathEscape(id)+"/parameter/"+url.PathEscape(name), nil, &param, nil)
	if err != nil {
		return "", err
	}
	return param.Value, nil
}

// ListModules returns the public catalog of deployable modules.
func (c *Client) ListModules(ctx context.Context) ([]Module, error) {
	var out struct {
		Modules []Module `json:"modules"`
	}
	err := c.do(ctx, "GET", "/module", nil, &out, nil)
	if err != nil {
		return nil, err
	}
	return out.Modules, nil
}

// GetModule fetches a catalog element by path. The path may carry a version
// suffix ("path/42"); without one the latest version is returned.
func (c *Client) GetModule(ctx context.Context, path string) (Module, error) {
	var module Module
	err := c.do(ctx, "GET", "/module/"+escapeModulePath(path), nil, &module, nil)
	return module, err
}

// ListProjectContent returns the elements directly under the given project
// path. With recurse set, sub-projects are walked too, which costs one
// upstream call per sub-project.
func (c *Client) ListProjectContent(ctx context.Context, path string, recurse bool) ([]Module, error) {
	project, err := c.GetModule(ctx, path)
	if err != nil {
		return nil, err
	}

	var elements []Module
	for _, child := range project.Children {
		elements = append(elements, child)

		if recurse && child.Kind == ModuleKindProject {
			sub, err := c.ListProjectContent(ctx, child.Path, true)
			if err != nil {
				return nil, err
			}
			elements = append(elements, sub...)
		}
	}

	return elements, nil
}

// DeleteModule deletes a catalog element by path.
func (c *Client) DeleteModule(ctx context.Context, path string) error {
	return c.do(ctx, "DELETE", "/module/"+escapeModulePath(path), nil, nil, nil)
}

// Search runs a CIMI search over the given resource type ("serviceOffers",
// "virtualMachines", ...) with an optional filter expression.
func (c *Client) Search(ctx context.Context, resourceType, filter string) (Collection, error) {
	path := "/api/" + url.PathEscape(resourceType)
	if filter != "" {
		path += "?$filter=" + url.QueryEscape(filter)
	}

	raw := map[string]json.RawMessage{}
	err := c.do(ctx, "GET", path, nil, &raw, nil)
	if err != nil {
		return Collection{}, err
	}

	var collection Collection
	if count, ok := raw["count"]; ok {
		if err := json.Unmarshal(count, &collection.Count); err != nil {
			return Collection{}, err
		}
	}
	if resources, ok := raw[resourceType]; ok {
		if err := json.Unmarshal(resources, &collection.Resources); err != nil {
			return Collection{}, err
		}
	}
	return collection, nil
}

// GetUser fetches the profile of the logged-in account.
func (c *Client) GetUser(ctx context.Context) (User, error) {
	var user User
	err := c.do(ctx, "GET", "/user/"+url.PathEscape(c.username), nil, &user, nil)
	return user, err
}

// UpdateUserSSHKeys replaces the account's newline-joined SSH public key
// blob. There is no finer-grained update; every key mutation round-trips the
// whole list.
func (c *Client) UpdateUserSSHKeys(ctx context.Context, sshPublicKeys string) error {
	body := map[string]string{"sshPublicKeys": sshPublicKeys}
	return c.do(ctx, "PUT", "/user/"+url.PathEscape(c.username), body, nil, nil)
}

// do performs one request. A non-nil in is sent as a JSON body, a non-nil out
// receives the decoded JSON response, and a non-nil location receives the
// Location response header.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, location *string) error {
	ctx = sscontext.FromEndpoint(ctx, c.endpoint)

	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.endpoint+path, body)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        c.endpoint + path,
		}

		var msg struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&msg); err == nil {
			apiErr.Message = msg.Message
		}

		sscontext.LoggerFromContext(ctx).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Debug("upstream call failed")

		return apiErr
	}

	if location != nil {
		*location = resp.Header.Get("Location")
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// escapeModulePath escapes a multi-segment module path for use in a URL,
// keeping the slashes.
func escapeModulePath(path string) string {
	path = strings.Trim(path, "/")
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
