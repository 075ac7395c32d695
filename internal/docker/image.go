package docker

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// LocalImage is a locally stored image that carries at least one of the
// release repository tags.
type LocalImage struct {
	// ID is the image content ID ("sha256:...").
	ID string `json:"id"`

	// Tags lists the "repository:tag" references pointing at this image,
	// sorted alphabetically.
	Tags []string `json:"tags"`

	// Source is the provenance label value, or "" when the image has none.
	Source string `json:"source,omitempty"`

	// Created is the image creation time.
	Created time.Time `json:"created"`

	// Size is the image size in bytes.
	Size int64 `json:"size"`
}

// ListImages returns local images tagged under any of the given
// repositories. The engine performs the filtering: multiple "reference"
// filters are OR-ed, and a bare repository name matches all of its tags.
func (c *Client) ListImages(ctx context.Context, repositories ...string) ([]LocalImage, error) {
	args := filters.NewArgs()
	for _, repo := range repositories {
		args.Add("reference", repo)
	}

	summaries, err := c.inner.ImageList(ctx, image.ListOptions{Filters: args})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list local images",
			err,
		)
	}

	result := make([]LocalImage, 0, len(summaries))
	for _, s := range summaries {
		result = append(result, summaryToImage(s, repositories))
	}

	// Newest first, matching `docker images`.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Created.After(result[j].Created)
	})
	return result, nil
}

// summaryToImage converts an engine image summary to a LocalImage, keeping
// only the tags that belong to the release repositories.
func summaryToImage(s image.Summary, repositories []string) LocalImage {
	var tags []string
	for _, t := range s.RepoTags {
		if ref, ok := matchRepository(t, repositories); ok {
			tags = append(tags, ref)
		}
	}
	sort.Strings(tags)

	source, _ := ParseLabels(s.Labels)

	return LocalImage{
		ID:      s.ID,
		Tags:    tags,
		Source:  source,
		Created: time.Unix(s.Created, 0).UTC(),
		Size:    s.Size,
	}
}

// implicitPrefixes are added by engines to short names: podman stores
// local images under "localhost/", Docker Hub images under
// "docker.io/library/".
var implicitPrefixes = []string{"localhost/", "docker.io/library/"}

// matchRepository reports whether ref ("repo:tag") names one of repos and
// returns ref rewritten to use the matching repository spelling.
func matchRepository(ref string, repos []string) (string, bool) {
	name, tag := ref, ""
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		name, tag = ref[:i], ref[i+1:]
	}

	candidates := []string{name}
	for _, prefix := range implicitPrefixes {
		if stripped := strings.TrimPrefix(name, prefix); stripped != name {
			candidates = append(candidates, stripped)
		}
	}

	for _, candidate := range candidates {
		for _, repo := range repos {
			if candidate == repo {
				return repo + ":" + tag, true
			}
		}
	}
	return "", false
}

// GroupImageTags maps every release tag to the ID of the image carrying it.
// The publisher uses this to confirm that all four references point at the
// same image after a build.
func GroupImageTags(images []LocalImage) map[string]string {
	byTag := make(map[string]string)
	for _, img := range images {
		for _, t := range img.Tags {
			byTag[t] = img.ID
		}
	}
	return byTag
}
