// image.go implements the build, retag and push operations for the
// livepatch container images.
//
// Builds run through `docker build` as a child process; tagging and
// pushing use the SDK, with the push progress stream decoded to surface
// daemon-side errors (the HTTP call itself succeeds even when the push
// later fails, so the stream is the only error channel).
package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/docker/docker/api/types/image"

	"github.com/canonical/livepatch-ops/internal/model"
)

// anonymousAuth is the X-Registry-Auth header value for registries that
// require no credentials, such as the local microk8s registry. The Docker
// API rejects push requests without the header, so an empty auth config
// is encoded instead of omitting it.
var anonymousAuth = base64.URLEncoding.EncodeToString([]byte("{}"))

// BuildImage builds the image described by spec, tagging it with the
// spec's plain reference (e.g. "livepatch:1.0").
func BuildImage(ctx context.Context, spec model.ImageSpec) error {
	if err := spec.Validate(); err != nil {
		return model.WrapCLIError(model.ExitDockerError, "cannot build image", err)
	}

	args := []string{"build", "-t", spec.Ref()}
	if spec.Dockerfile != "" {
		args = append(args, "-f", spec.Dockerfile)
	}
	args = append(args, spec.Context)

	// Build output goes straight to the terminal; docker's own progress
	// rendering is more useful than anything recaptured here.
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return model.WrapCLIError(model.ExitDockerError,
			fmt.Sprintf("docker build failed for image %q", spec.Ref()), err)
	}
	return nil
}

// TagImage applies target as an additional reference for source, e.g.
// retagging "livepatch:1.0" as "localhost:32000/livepatch:1.0" before a
// push to the local registry.
func TagImage(ctx context.Context, cli *Client, source, target string) error {
	if err := cli.Inner().ImageTag(ctx, source, target); err != nil {
		return model.WrapCLIError(model.ExitDockerError,
			fmt.Sprintf("failed to tag %q as %q", source, target), err)
	}
	return nil
}

// PushImage pushes ref to its registry and blocks until the daemon
// reports completion. progress, when non-nil, receives the daemon's
// status lines (layer upload progress and the final digest).
func PushImage(ctx context.Context, cli *Client, ref string, progress io.Writer) error {
	rc, err := cli.Inner().ImagePush(ctx, ref, image.PushOptions{
		RegistryAuth: anonymousAuth,
	})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerError,
			fmt.Sprintf("failed to push %q", ref), err)
	}
	defer rc.Close()

	if err := drainPushStream(rc, progress); err != nil {
		return model.WrapCLIError(model.ExitDockerError,
			fmt.Sprintf("push of %q failed", ref), err)
	}
	return nil
}

// pushMessage is the subset of the daemon's JSON progress stream needed
// to report status and detect failure.
type pushMessage struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// drainPushStream consumes the push progress stream until EOF. The daemon
// reports push failures as {"error": ...} entries in the stream rather
// than as an HTTP error, so every message must be inspected.
func drainPushStream(r io.Reader, progress io.Writer) error {
	dec := json.NewDecoder(r)
	for {
		var msg pushMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("malformed push progress stream: %w", err)
		}
		if msg.Error != "" {
			return errors.New(strings.TrimSpace(msg.Error))
		}
		if progress != nil && msg.Status != "" {
			fmt.Fprintln(progress, msg.Status)
		}
	}
}
