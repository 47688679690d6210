package config

import (
	"os"
	"sync"
)

// dockerHostAlias is how a container reaches services published on its host.
const dockerHostAlias = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the engine runs inside a Docker container,
// based on the /.dockerenv marker. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker rewrites loopback hosts to the Docker host alias when
// running in a container, so a local Postgres or Redis stays reachable.
// Empty and non-loopback hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	if host == "" || !IsRunningInDocker() {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return dockerHostAlias
	}
	return host
}
