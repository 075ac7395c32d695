package docker

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// LabelSource is the OCI annotation key for the URL of the source code the
// image was built from. It is the only label releasekit sets on an image,
// which lets `docker inspect` trace a published image back to its project.
const LabelSource = "org.opencontainers.image.source"

// BuildLabels constructs the label map applied to the runtime image.
//
// The source URL must be an absolute http(s) URL; anything else would give
// registries (GHCR links packages to repositories through this label) a
// value they cannot resolve.
func BuildLabels(source string) (map[string]string, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}
	return map[string]string{LabelSource: source}, nil
}

// ParseLabels extracts the provenance source from an image's labels.
// Returns an error if the label is absent.
func ParseLabels(labels map[string]string) (string, error) {
	source, ok := labels[LabelSource]
	if !ok || source == "" {
		return "", fmt.Errorf("missing required image label: %s", LabelSource)
	}
	return source, nil
}

// LabelArgs renders labels as repeated `--label key=value` arguments in
// key order, so the generated command line is deterministic.
func LabelArgs(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, "--label", k+"="+labels[k])
	}
	return args
}

func validateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("image source URL must not be empty")
	}
	u, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("invalid image source URL %q: %w", source, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid image source URL %q: must be an absolute http(s) URL", source)
	}
	return nil
}
