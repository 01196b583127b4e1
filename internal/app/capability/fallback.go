package capability

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"mcpscout/internal/domain"
)

type getWeatherArgs struct {
	City string `json:"city" jsonschema:"name of the city, for example London or Tokyo"`
}

type directoryArgs struct {
	DirectoryPath string `json:"directory_path" jsonschema:"path of the directory"`
}

type filePathArgs struct {
	FilePath string `json:"file_path" jsonschema:"path of the text file"`
}

type writeFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"path of the text file"`
	Content  string `json:"content" jsonschema:"text to write"`
}

type searchFilesArgs struct {
	DirectoryPath string `json:"directory_path" jsonschema:"directory to search recursively"`
	Pattern       string `json:"pattern" jsonschema:"shell glob matched against file names"`
}

type fallbackTool struct {
	name        string
	description string
	schema      func(*jsonschema.ForOptions) (*jsonschema.Schema, error)
}

var fallbackCatalog = []fallbackTool{
	{"get_weather", "Retrieves the current weather report for a specified city.", jsonschema.For[getWeatherArgs]},
	{"list_files", "Lists all files in the specified directory.", jsonschema.For[directoryArgs]},
	{"read_file_content", "Reads and returns the content of a text file.", jsonschema.For[filePathArgs]},
	{"write_file_content", "Writes content to a text file.", jsonschema.For[writeFileArgs]},
	{"create_dir", "Creates a new directory.", jsonschema.For[directoryArgs]},
	{"search_for_files", "Searches for files matching a pattern in the specified directory.", jsonschema.For[searchFilesArgs]},
}

type builtSchema struct {
	name        string
	description string
	parameters  []byte
}

// Schemas are cached in encoded form so every caller decodes its own maps.
var buildFallback = sync.OnceValues(func() ([]builtSchema, error) {
	built := make([]builtSchema, 0, len(fallbackCatalog))
	for _, entry := range fallbackCatalog {
		schema, err := entry.schema(nil)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", entry.name, err)
		}
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", entry.name, err)
		}
		built = append(built, builtSchema{name: entry.name, description: entry.description, parameters: raw})
	}
	return built, nil
})

// FallbackTools returns the built-in tool set used when discovery yields
// nothing. Each call returns fresh values.
func FallbackTools() []domain.ToolSchema {
	built, err := buildFallback()
	if err != nil {
		panic(err)
	}
	tools := make([]domain.ToolSchema, 0, len(built))
	for _, entry := range built {
		var params map[string]any
		if err := json.Unmarshal(entry.parameters, &params); err != nil {
			panic(fmt.Errorf("schema for %s: %w", entry.name, err))
		}
		tools = append(tools, domain.ToolSchema{
			Name:        entry.name,
			Description: entry.description,
			Parameters:  params,
		})
	}
	return tools
}
