// Package registry verifies that pushed images are actually served by the
// local container registry.
//
// A push that the Docker daemon reports as complete can still be briefly
// invisible through the registry's pull API while it finishes committing
// the manifest, so verification issues HEAD requests for the manifest
// under a short exponential backoff.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/canonical/livepatch-ops/internal/model"
)

// verifyMaxElapsed bounds the total time spent waiting for a manifest to
// become visible before the push is declared failed.
const verifyMaxElapsed = 15 * time.Second

// VerifyPushed checks that the manifest for ref is served by its registry
// and returns its digest. The reference is resolved insecurely because the
// local microk8s registry speaks plain HTTP.
func VerifyPushed(ctx context.Context, ref string) (string, error) {
	parsed, err := name.ParseReference(ref, name.Insecure)
	if err != nil {
		return "", model.WrapCLIError(model.ExitRegistryError,
			fmt.Sprintf("invalid image reference %q", ref), err)
	}

	var digest string
	op := func() error {
		desc, err := remote.Head(parsed, remote.WithContext(ctx))
		if err != nil {
			return err
		}
		digest = desc.Digest.String()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = verifyMaxElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", model.WrapCLIError(model.ExitRegistryError,
			fmt.Sprintf("registry did not serve a manifest for %q", ref), err)
	}
	return digest, nil
}
