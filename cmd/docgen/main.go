// Command docgen builds the API reference help page from the @Title,
// @Route, @Description and @Response annotations on the handlers in
// internal/api.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	apiDir := flag.String("api", "internal/api", "Directory with annotated handlers")
	out := flag.String("out", "internal/docs/help/api.adoc", "Output AsciiDoc file")
	flag.Parse()

	files, err := os.ReadDir(*apiDir)
	if err != nil {
		log.Fatalf("read %s: %v", *apiDir, err)
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := os.Open(filepath.Join(*apiDir, name))
		if err != nil {
			continue
		}
		endpoints = append(endpoints, parseEndpoints(f)...)
		f.Close()
	}
	sort.SliceStable(endpoints, func(i, j int) bool {
		return routePath(endpoints[i].Route) < routePath(endpoints[j].Route)
	})

	if err := os.WriteFile(*out, []byte(renderAsciiDoc(endpoints)), 0644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	fmt.Printf("Generated %s (%d endpoints)\n", *out, len(endpoints))
}

// parseEndpoints collects annotation blocks. A block ends at @Response.
func parseEndpoints(r io.Reader) []Endpoint {
	var endpoints []Endpoint
	var current Endpoint

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints
}

func routePath(route string) string {
	if _, path, ok := strings.Cut(route, " "); ok {
		return path
	}
	return route
}

func renderAsciiDoc(endpoints []Endpoint) string {
	var b strings.Builder
	b.WriteString("= API Reference\n\n")
	b.WriteString("Generated from the handler annotations in internal/api. ")
	b.WriteString("Amounts in request bodies are in ETH; amounts in responses are in wei.\n\n")
	b.WriteString("Errors are returned as `+{\"error\": \"...\"}+` with 404 for unknown properties, ")
	b.WriteString("409 for refused actions, 422 for amounts that cannot be converted, ")
	b.WriteString("429 while a sync is running and 502 when the ledger cannot be read.\n")

	for _, ep := range endpoints {
		fmt.Fprintf(&b, "\n== %s\n\n", ep.Title)
		fmt.Fprintf(&b, "`+%s+`\n\n", ep.Route)
		if ep.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", ep.Description)
		}
		fmt.Fprintf(&b, "Response:: `+%s+`\n", ep.Response)
	}
	return b.String()
}
