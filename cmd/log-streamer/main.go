// log-streamer interleaves the logs of the local docker-compose stack, one
// color per service. Gateway and worker containers emit slog JSON in prod
// mode; lines that parse as JSON are rendered as "LEVEL msg k=v ..." instead
// of raw JSON.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/fatih/color"
)

const composeServiceLabel = "com.docker.compose.service"

var serviceColors = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
	color.New(color.FgMagenta),
	color.New(color.FgHiCyan),
}

var levelColors = map[string]*color.Color{
	"WARN":  color.New(color.FgYellow, color.Bold),
	"ERROR": color.New(color.FgRed, color.Bold),
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		log.Fatalf("docker client: %v", err)
	}
	defer docker.Close()

	// Compose names containers <project>-<service>-<n>; match on the service
	// label instead of the container name.
	containers, err := docker.ContainerList(ctx, containertypes.ListOptions{})
	if err != nil {
		log.Fatalf("list containers: %v", err)
	}

	wanted := map[string]bool{}
	for _, arg := range os.Args[1:] {
		wanted[arg] = true
	}

	targets := map[string]string{} // service -> container ID
	for _, cont := range containers {
		svc := cont.Labels[composeServiceLabel]
		if svc == "" {
			continue
		}
		if len(wanted) > 0 && !wanted[svc] {
			continue
		}
		targets[svc] = cont.ID
	}
	if len(targets) == 0 {
		log.Fatal("no matching compose containers running")
	}

	names := make([]string, 0, len(targets))
	for svc := range targets {
		names = append(names, svc)
	}
	sort.Strings(names)

	var wg sync.WaitGroup
	for i, svc := range names {
		wg.Add(1)
		go func(svc, id string, c *color.Color) {
			defer wg.Done()
			tail(ctx, docker, svc, id, c)
		}(svc, targets[svc], serviceColors[i%len(serviceColors)])
	}
	wg.Wait()
}

func tail(ctx context.Context, docker *client.Client, service, containerID string, c *color.Color) {
	reader, err := docker.ContainerLogs(ctx, containerID, containertypes.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       "50",
	})
	if err != nil {
		log.Printf("logs for %s: %v", service, err)
		return
	}
	defer reader.Close()

	prefix := c.SprintfFunc()("[%s]", service)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Printf("%-28s %s\n", prefix, render(scanner.Text()))
	}
}

// render pretty-prints a slog JSON line; anything else passes through as is.
func render(line string) string {
	start := strings.IndexByte(line, '{')
	if start < 0 {
		return line
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(line[start:]), &fields); err != nil {
		return line
	}
	msg, _ := fields["msg"].(string)
	level, _ := fields["level"].(string)
	if msg == "" || level == "" {
		return line
	}
	delete(fields, "time")
	delete(fields, "msg")
	delete(fields, "level")

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	if lc, ok := levelColors[level]; ok {
		b.WriteString(lc.Sprintf("%-5s", level))
	} else {
		fmt.Fprintf(&b, "%-5s", level)
	}
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}
