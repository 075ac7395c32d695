// Package docker drives the container tool used to build, tag and push
// release images.
//
// This package handles:
//   - Running the container tool CLI (docker, or whatever $DOCKER names)
//     for build, login and push
//   - Rendering the two-stage Containerfile that compiles the artifact and
//     copies it into a minimal runtime image
//   - Provenance labels linking an image to its source repository
//   - Engine SDK queries (ping, local image listing) with automatic socket
//     detection for Docker and podman
//
// The Engine SDK is github.com/docker/docker/client, with API version
// negotiation enabled for broad compatibility.
package docker
