// Package docker inspects containers started by the container-build strategy.
package docker

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// Inspector is the part of the Docker SDK client used here
type Inspector interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	Close() error
}

// Client wraps the Docker SDK client
type Client struct {
	inner Inspector
}

// New creates a client from the environment, optionally pinned to host
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{inner: inner}, nil
}

func NewWithInspector(inner Inspector) *Client {
	return &Client{inner: inner}
}

// Endpoints returns the HTTP endpoints published by a running container
func (c *Client) Endpoints(ctx context.Context, containerID string) ([]string, error) {
	if c == nil || c.inner == nil {
		return nil, fmt.Errorf("docker client not initialized")
	}

	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return nil, fmt.Errorf("container id is empty")
	}

	inspect, err := c.inner.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("container inspect: %w", err)
	}
	if inspect.NetworkSettings == nil {
		return nil, nil
	}
	return Endpoints(inspect.NetworkSettings.Ports), nil
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// Endpoints turns published port bindings into loopback-reachable URLs, ordered
// by container port. Bindings on every interface are reported on 127.0.0.1.
func Endpoints(ports nat.PortMap) []string {
	keys := make([]nat.Port, 0, len(ports))
	for port := range ports {
		keys = append(keys, port)
	}
	slices.SortFunc(keys, func(a, b nat.Port) int {
		if a.Int() != b.Int() {
			return a.Int() - b.Int()
		}
		return strings.Compare(a.Proto(), b.Proto())
	})

	var urls []string
	for _, port := range keys {
		if port.Proto() != "tcp" {
			continue
		}
		for _, binding := range ports[port] {
			if strings.TrimSpace(binding.HostPort) == "" {
				continue
			}
			url := "http://" + net.JoinHostPort(hostFor(binding.HostIP), binding.HostPort)
			if !slices.Contains(urls, url) {
				urls = append(urls, url)
			}
		}
	}
	return urls
}

func hostFor(hostIP string) string {
	switch hostIP {
	case "", "0.0.0.0", "::":
		return "127.0.0.1"
	default:
		return hostIP
	}
}
