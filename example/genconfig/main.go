package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type serverConfig struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	Disabled    bool              `json:"disabled"`
	Description string            `json:"description,omitempty"`
	Icon        string            `json:"icon,omitempty"`
}

type clientConfig struct {
	MCPServers map[string]serverConfig `json:"mcpServers"`
}

func main() {
	command := flag.String("command", "talebook-mcp-stdio", "server command the client should launch")
	outDir := flag.String("out", ".", "directory to write the config files into")
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to resolve working directory: %v", err)
	}

	variants := []struct {
		name   string
		config clientConfig
	}{
		{
			name: "generic",
			config: clientConfig{
				MCPServers: map[string]serverConfig{
					"talebook-mcp": {
						Command:  *command,
						Args:     []string{},
						Cwd:      cwd,
						Disabled: false,
					},
				},
			},
		},
		{
			name: "claude",
			config: clientConfig{
				MCPServers: map[string]serverConfig{
					"talebook-mcp": {
						Command:     *command,
						Args:        []string{},
						Env:         map[string]string{"LOG_LEVEL": "INFO"},
						Cwd:         cwd,
						Disabled:    false,
						Description: "Talebook MCP Server - Provides book management tools",
						Icon:        "📚",
					},
				},
			},
		},
	}

	for _, variant := range variants {
		bs, err := json.MarshalIndent(variant.config, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal %s config: %v", variant.name, err)
		}
		bs = append(bs, '\n')

		path := filepath.Join(*outDir, fmt.Sprintf("generated-%s-config.json", variant.name))
		if err := os.WriteFile(path, bs, 0600); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("Generated %s config: %s\n", variant.name, path)
	}
}
