package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergokit/ergokit/llm"
)

// validateWorkspacePath resolves targetPath against the workspace root
// and rejects anything that escapes it.
func validateWorkspacePath(workspacePath, targetPath string) (string, error) {
	absWorkspace, err := filepath.Abs(filepath.Clean(workspacePath))
	if err != nil {
		return "", fmt.Errorf("invalid workspace path: %w", err)
	}

	joined := targetPath
	if !filepath.IsAbs(targetPath) {
		joined = filepath.Join(absWorkspace, targetPath)
	}
	absTarget, err := filepath.Abs(filepath.Clean(joined))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if absTarget != absWorkspace && !strings.HasPrefix(absTarget, absWorkspace+string(filepath.Separator)) {
		return "", fmt.Errorf("path outside workspace: %s", targetPath)
	}
	return absTarget, nil
}

// RegisterFilesystemTools registers read_file, write_file, and
// list_directory handlers scoped to the given workspace directory.
func (r *Registry) RegisterFilesystemTools(workspacePath string) {
	r.logger.Info().Str("workspace", workspacePath).Msg("registering filesystem tools")

	r.Register(llm.ToolSpec{
		Name:        "read_file",
		Description: "Read the contents of a file. Returns the file content, size, and path.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to read (relative to workspace)",
				},
				"max_bytes": map[string]any{
					"type":        "number",
					"description": "Maximum number of bytes to read (0 = read entire file)",
				},
			},
			"required": []string{"path"},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var payload struct {
			Path     string `json:"path"`
			MaxBytes int64  `json:"max_bytes"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("decoding arguments: %w", err)
		}
		path, err := validateWorkspacePath(workspacePath, payload.Path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		truncated := false
		if payload.MaxBytes > 0 && int64(len(data)) > payload.MaxBytes {
			data = data[:payload.MaxBytes]
			truncated = true
		}
		return map[string]any{
			"path":      payload.Path,
			"content":   string(data),
			"size":      len(data),
			"truncated": truncated,
		}, nil
	})

	r.Register(llm.ToolSpec{
		Name:        "write_file",
		Description: "Write content to a file. Creates the file if it doesn't exist, overwrites if it does.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to write (relative to workspace)",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write to the file",
				},
				"create_dirs": map[string]any{
					"type":        "boolean",
					"description": "Create parent directories if they don't exist",
				},
			},
			"required": []string{"path", "content"},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var payload struct {
			Path       string `json:"path"`
			Content    string `json:"content"`
			CreateDirs bool   `json:"create_dirs"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("decoding arguments: %w", err)
		}
		path, err := validateWorkspacePath(workspacePath, payload.Path)
		if err != nil {
			return nil, err
		}
		if payload.CreateDirs {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("creating directories: %w", err)
			}
		}
		if err := os.WriteFile(path, []byte(payload.Content), 0o644); err != nil {
			return nil, fmt.Errorf("writing file: %w", err)
		}
		return map[string]any{
			"path":    payload.Path,
			"written": len(payload.Content),
		}, nil
	})

	r.Register(llm.ToolSpec{
		Name:        "list_directory",
		Description: "List files and directories in a path.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the directory to list (relative to workspace, default: '.')",
				},
				"include_hidden": map[string]any{
					"type":        "boolean",
					"description": "Whether to include hidden files (starting with '.')",
				},
			},
			"required": []string{},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var payload struct {
			Path          string `json:"path"`
			IncludeHidden bool   `json:"include_hidden"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("decoding arguments: %w", err)
		}
		if payload.Path == "" {
			payload.Path = "."
		}
		path, err := validateWorkspacePath(workspacePath, payload.Path)
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("listing directory: %w", err)
		}
		out := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			if !payload.IncludeHidden && strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			out = append(out, map[string]any{
				"name":   entry.Name(),
				"is_dir": entry.IsDir(),
			})
		}
		return map[string]any{
			"path":    payload.Path,
			"entries": out,
		}, nil
	})
}
