package azurite

import (
	"context"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/asad/azctl/internal/logging"
)

// ListContainers returns every container name in backend order. A failing
// page request fails the whole listing.
func (s *Storage) ListContainers(ctx context.Context) ([]string, error) {
	var names []string
	err := s.bridge.run(ctx, "list_containers", func(ctx context.Context) error {
		pager := s.client.NewListContainersPager(&azblob.ListContainersOptions{
			MaxResults: s.maxResults(),
		})
		for page := 1; pager.More(); page++ {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, item := range resp.ContainerItems {
				if item == nil || item.Name == nil {
					continue
				}
				names = append(names, *item.Name)
			}
			s.logger.Debug("container page fetched",
				logging.Int("page", page),
				logging.Int("items", len(resp.ContainerItems)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, internalf(err, "list containers")
	}
	return names, nil
}

// CreateContainer creates name. An existing container is reported by the
// backend and surfaces as KindInternal.
func (s *Storage) CreateContainer(ctx context.Context, name string) error {
	err := s.bridge.run(ctx, "create_container", func(ctx context.Context) error {
		_, err := s.client.CreateContainer(ctx, name, nil)
		return err
	})
	if err != nil {
		return internalf(err, "create container %q", name)
	}
	s.logger.Debug("container created", logging.String("container", name))
	return nil
}

// DeleteContainer deletes name and everything in it.
func (s *Storage) DeleteContainer(ctx context.Context, name string) error {
	err := s.bridge.run(ctx, "delete_container", func(ctx context.Context) error {
		_, err := s.client.DeleteContainer(ctx, name, nil)
		return err
	})
	if err != nil {
		return internalf(err, "delete container %q", name)
	}
	s.logger.Debug("container deleted", logging.String("container", name))
	return nil
}

// ContainerURL returns the path component of the container's address,
// e.g. /devstoreaccount1/name. No request is sent.
func (s *Storage) ContainerURL(ctx context.Context, name string) (string, error) {
	var path string
	err := s.bridge.run(ctx, "container_url", func(context.Context) error {
		u, err := url.Parse(s.client.ServiceClient().NewContainerClient(name).URL())
		if err != nil {
			return err
		}
		path = u.Path
		return nil
	})
	if err != nil {
		return "", internalf(err, "resolve url of container %q", name)
	}
	return path, nil
}
