package config

import (
	"net"
	"os"
	"strconv"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// loopbackHosts are rewritten to the Docker host gateway inside a container.
var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// IsRunningInDocker reports whether /.dockerenv exists. Cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal when
// running in Docker so backends on the host machine stay reachable.
func ResolveHostForDocker(host string) string {
	if IsRunningInDocker() && loopbackHosts[host] {
		return "host.docker.internal"
	}
	return host
}

// HostPort joins a Docker-resolved host with port. IPv6 literals are
// bracketed.
func HostPort(host string, port int) string {
	return net.JoinHostPort(ResolveHostForDocker(host), strconv.Itoa(port))
}

// Addr returns the Redis address for the client options.
func (c *RedisConfig) Addr() string {
	return HostPort(c.Host, c.Port)
}
