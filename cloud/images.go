package cloud

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/slipstream"
)

// MakeImageID builds an image ID from a catalog path and a version.
func MakeImageID(path string, version int) string {
	return fmt.Sprintf("%s/%d", path, version)
}

// SplitImageID recovers the catalog path and version from an image ID built
// with MakeImageID.
func SplitImageID(id string) (string, int, error) {
	idx := strings.LastIndex(id, "/")
	if idx <= 0 || idx == len(id)-1 {
		return "", 0, fmt.Errorf("invalid image ID %q: want \"path/version\"", id)
	}

	version, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid image ID %q: version is not a number", id)
	}

	return id[:idx], version, nil
}

// ListImages lists the deployable catalog elements: the public catalog by
// default, or the content of opts.Path. Elements that are neither components
// nor applications (projects, for one) are excluded. opts.Location is
// ignored; see ListImagesOpts.
func (p *SlipStreamProvider) ListImages(ctx context.Context, opts ListImagesOpts) ([]Image, error) {
	var elements []slipstream.Module
	var err error

	if opts.Path == "" {
		elements, err = p.api.ListModules(ctx)
	} else {
		elements, err = p.api.ListProjectContent(ctx, strings.TrimPrefix(opts.Path, "/"), opts.Recurse)
	}
	if err != nil {
		return nil, err
	}

	var images []Image
	for _, element := range elements {
		if element.Kind != slipstream.ModuleKindComponent && element.Kind != slipstream.ModuleKindApplication {
			continue
		}
		images = append(images, moduleToImage(element))
	}

	return images, nil
}

// GetImage fetches a catalog element by image ID. Returns ErrImageNotFound
// if no element exists at that path and version.
func (p *SlipStreamProvider) GetImage(ctx context.Context, id string) (Image, error) {
	module, err := p.api.GetModule(ctx, id)
	if err != nil {
		if slipstream.IsNotFound(err) {
			return Image{}, ErrImageNotFound
		}
		return Image{}, err
	}

	return moduleToImage(module), nil
}

// DeleteImage deletes the catalog element behind the image. Returns
// ErrImageNotFound if it doesn't exist; any other upstream error is returned
// as-is for the caller to decide on.
func (p *SlipStreamProvider) DeleteImage(ctx context.Context, image Image) error {
	err := p.api.DeleteModule(ctx, image.ID)
	if err != nil {
		if slipstream.IsNotFound(err) {
			return ErrImageNotFound
		}
		return err
	}
	return nil
}

func moduleToImage(module slipstream.Module) Image {
	return Image{
		ID:   MakeImageID(module.Path, module.Version),
		Name: module.Name,
		Extra: map[string]interface{}{
			"path":        module.Path,
			"version":     module.Version,
			"kind":        module.Kind,
			"description": module.Description,
		},
	}
}
