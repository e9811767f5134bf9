package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/joblog"
	"github.com/oar-cd/launchpad/process"
)

// StaticSiteDockerfile serves the repository root with nginx
const StaticSiteDockerfile = "FROM nginx:alpine\nCOPY . /usr/share/nginx/html\n"

var (
	buildTags = joblog.Tags{Stdout: "[Docker Build]: ", Stderr: "[Docker Info]: "}
	runTags   = joblog.Tags{Stdout: "[Container ID]: ", Stderr: "[Docker Info]: "}

	imageNameComponent = regexp.MustCompile(`^[a-z0-9]+(?:(?:[._]|__|-+)[a-z0-9]+)*$`)
)

// ContainerConfig tunes the container-build strategy
type ContainerConfig struct {
	DockerCommand    string
	DockerHost       string
	DefaultNamespace string
}

// ContainerStrategy builds an image from the repository and starts it locally
type ContainerStrategy struct {
	steps
	config     ContainerConfig
	workspace  Acquirer
	supervisor Supervisor
	discoverer EndpointDiscoverer
}

// NewContainerStrategy creates the strategy. discoverer may be nil.
func NewContainerStrategy(
	log JobLog,
	status StatusStore,
	workspace Acquirer,
	supervisor Supervisor,
	discoverer EndpointDiscoverer,
	config ContainerConfig,
) *ContainerStrategy {
	return &ContainerStrategy{
		steps:      steps{log: log, status: status},
		config:     config,
		workspace:  workspace,
		supervisor: supervisor,
		discoverer: discoverer,
	}
}

func (s *ContainerStrategy) Execute(ctx context.Context, d *domain.Deployment) error {
	s.say(d.ID, "Starting Docker Deployment Process...")

	dir, err := s.workspace.Acquire(ctx, d.ID, d.RepositoryURL, d.Credentials.Get(domain.CredentialGitToken))
	if err != nil {
		return err
	}

	if err := s.setStatus(d.ID, domain.DeploymentStatusBuilding); err != nil {
		return err
	}
	s.say(d.ID, "Analyzing project structure...")

	if err := s.prepareBuildContext(d, dir); err != nil {
		return err
	}

	s.say(d.ID, "Building Docker Image...")
	tag := ImageTag(d.Credentials.Get(domain.CredentialNamespace), s.config.DefaultNamespace, d)
	s.say(d.ID, "Image Tag: "+tag)

	build := s.command(dir, "build", "--no-cache", "-t", tag, ".")
	code, err := s.supervisor.Run(ctx, d.ID, build, buildTags, nil)
	if err != nil {
		return err
	}
	if code != 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.processFailed(d.ID, build, code, "❌ Docker Build Failed.")
	}
	s.say(d.ID, "✅ Docker Image Built Successfully.")

	s.say(d.ID, "Starting Container...")
	var containerID string
	onLine := func(stream domain.LogStream, line string) {
		if stream == domain.LogStreamStdout && strings.TrimSpace(line) != "" {
			containerID = strings.TrimSpace(line)
		}
	}

	run := s.command(dir, "run", "-d", "-P", tag)
	code, err = s.supervisor.Run(ctx, d.ID, run, runTags, onLine)
	if err != nil {
		return err
	}
	if code != 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.processFailed(d.ID, run, code, "❌ Failed to start container.")
	}

	s.reportEndpoints(ctx, d, containerID)

	return s.finish(d.ID, domain.DeploymentStatusDeployed, "✅ Container Running!")
}

// prepareBuildContext generates a static-site Dockerfile when the tree has an
// entry page but neither a dependency manifest nor its own Dockerfile
func (s *ContainerStrategy) prepareBuildContext(d *domain.Deployment, dir string) error {
	hasDockerfile := fileExists(filepath.Join(dir, "Dockerfile"))
	hasManifest := fileExists(filepath.Join(dir, "package.json"))
	hasEntry := fileExists(filepath.Join(dir, "index.html")) || fileExists(filepath.Join(dir, "index.htm"))

	switch {
	case hasDockerfile:
		s.say(d.ID, "Using repository Dockerfile.")
	case hasEntry && !hasManifest:
		s.say(d.ID, "⚠️ Static Site Detected. Using Nginx.")
		if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(StaticSiteDockerfile), 0o644); err != nil {
			return fmt.Errorf("failed to write Dockerfile: %w", err)
		}
	default:
		s.say(d.ID, "⚠️ No Dockerfile found in repository.")
	}
	return nil
}

func (s *ContainerStrategy) reportEndpoints(ctx context.Context, d *domain.Deployment, containerID string) {
	if s.discoverer == nil || containerID == "" {
		return
	}

	endpoints, err := s.discoverer.Endpoints(ctx, containerID)
	if err != nil {
		slog.Warn("Endpoint discovery failed",
			"layer", "strategy",
			"operation", "discover_endpoints",
			"deployment_id", d.ID,
			"container_id", containerID,
			"error", err)
		s.say(d.ID, "⚠️ Could not determine service endpoint: "+err.Error())
		return
	}

	for _, endpoint := range endpoints {
		s.say(d.ID, "Service endpoint: "+endpoint)
	}
}

func (s *ContainerStrategy) command(dir string, args ...string) process.Command {
	cmd := process.Command{
		Name: s.config.DockerCommand,
		Args: args,
		Dir:  dir,
	}
	if s.config.DockerHost != "" {
		cmd.Env = []string{"DOCKER_HOST=" + s.config.DockerHost}
	}
	return cmd
}

// ImageTag builds "<namespace>/<repository>:<deployment id>". Components that
// are not valid image name parts are slugified.
func ImageTag(namespace, defaultNamespace string, d *domain.Deployment) string {
	namespace = imageComponent(namespace)
	if namespace == "" {
		namespace = imageComponent(defaultNamespace)
	}
	repo := imageComponent(d.RepositoryName())
	if repo == "" {
		repo = "app"
	}
	return fmt.Sprintf("%s/%s:%s", namespace, repo, d.ID)
}

func imageComponent(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || imageNameComponent.MatchString(s) {
		return s
	}
	return slug.Make(s)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
