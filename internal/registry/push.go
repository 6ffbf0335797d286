package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
)

// PushExternal copies an already-built, SHA-pinned image to an external
// registry and returns its pinned reference at the destination.
//
// The destination digest is re-resolved after the copy: tags are mutable, so
// only a digest-qualified reference is stable enough to hand to later stages.
func PushExternal(ctx context.Context, srcRef, dstRef string) (string, error) {
	opts := []crane.Option{crane.WithContext(ctx), crane.Insecure}

	if err := crane.Copy(srcRef, dstRef, opts...); err != nil {
		return "", fmt.Errorf("copying %s to %s: %w", srcRef, dstRef, err)
	}

	digest, err := crane.Digest(dstRef, opts...)
	if err != nil {
		return "", fmt.Errorf("resolving digest of %s: %w", dstRef, err)
	}

	ref, err := name.ParseReference(dstRef)
	if err != nil {
		return "", fmt.Errorf("parsing reference %s: %w", dstRef, err)
	}
	return ref.Context().Name() + "@" + digest, nil
}
