// Package scaffold creates the files a new coordination project starts from.
package scaffold

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// ConfigFileName is the stack configuration file created in the project root.
const ConfigFileName = "stack.yml"

// Initialize writes a starter stack.yml into the current directory.
// If force is true, an existing stack.yml is removed first; otherwise an
// existing file is an error so a working config is never clobbered.
func Initialize(force bool) error {
	if _, err := os.Stat(ConfigFileName); err == nil {
		if !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", ConfigFileName)
		}
		fmt.Printf("⚠️  Removing existing %s...\n", ConfigFileName)
		if err := os.Remove(ConfigFileName); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ConfigFileName, err)
		}
	}

	content, err := templatesFS.ReadFile("templates/stack.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read stack.yml template: %w", err)
	}

	if err := os.WriteFile(ConfigFileName, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ConfigFileName, err)
	}

	return validateCreatedFile()
}

// validateCreatedFile checks the written config parses as YAML.
func validateCreatedFile() error {
	content, err := os.ReadFile(ConfigFileName)
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", ConfigFileName, err)
	}

	var yamlData interface{}
	if err := yaml.Unmarshal(content, &yamlData); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", ConfigFileName, err)
	}

	return nil
}

// PrintSuccess prints the success message with next steps.
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized coordination project!")
	fmt.Println("\nCreated:")
	fmt.Println("  ✓ stack.yml")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit stack.yml: set your project name and instance list")
	fmt.Println("  2. Uncomment the integrations you use (sheets, discord, mqtt, n8n)")
	fmt.Println("  3. Start the board: docker run -d -p 6379:6379 redis:7-alpine")
	fmt.Println("  4. Run 'brewctl task list' to verify connectivity")
}
