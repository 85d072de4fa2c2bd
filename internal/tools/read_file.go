package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/flemzord/toolguard/internal/security"
	"github.com/flemzord/toolguard/internal/tool"
)

// ReadFileName is the tool name of read_file.
const ReadFileName = "read_file"

// DefaultReadMaxSize caps how much of a file read_file returns.
const DefaultReadMaxSize = 1024 * 1024

// ReadFileConfig configures the read_file tool.
type ReadFileConfig struct {
	// Root is the directory every path is confined to.
	Root    string
	MaxSize int64
}

var readFileParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "File path relative to the workspace root"}
  },
  "required": ["path"]
}`)

// ReadFile returns a tool that reads text files under cfg.Root.
func ReadFile(cfg ReadFileConfig) tool.Tool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultReadMaxSize
	}
	return tool.Tool{
		Name:        ReadFileName,
		Description: "Read a text file from the workspace. Paths outside the workspace are rejected.",
		Parameters:  readFileParameters,
		Execute: func(ctx context.Context, call tool.Call, _ tool.ProgressFunc) (tool.Result, error) {
			return readFile(ctx, cfg, call)
		},
	}
}

func readFile(ctx context.Context, cfg ReadFileConfig, call tool.Call) (tool.Result, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(call.Arguments, &args); err != nil {
		return tool.ErrorResult(err.Error()), nil
	}
	if args.Path == "" {
		return tool.ErrorResult("path is required"), nil
	}
	if err := ctx.Err(); err != nil {
		return tool.Result{}, err
	}

	path, err := security.ConfinePath(cfg.Root, args.Path)
	if err != nil {
		return tool.ErrorResult(err.Error()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tool.ErrorResult("file not found: " + args.Path), nil
		}
		return tool.ErrorResult(fmt.Sprintf("open %s: %v", args.Path, err)), nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("stat %s: %v", args.Path, err)), nil
	}
	if info.IsDir() {
		return tool.ErrorResult(args.Path + " is a directory"), nil
	}

	data, err := io.ReadAll(io.LimitReader(f, cfg.MaxSize+1))
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("read %s: %v", args.Path, err)), nil
	}
	truncated := int64(len(data)) > cfg.MaxSize
	if truncated {
		data = data[:cfg.MaxSize]
	}
	if len(data) > 0 && !isLikelyText(data) {
		return tool.ErrorResult(args.Path + " looks like a binary file"), nil
	}

	text := string(data)
	if truncated {
		text += "\n[file truncated due to size limit]"
	}
	r := tool.TextResult(text)
	r.Details = map[string]any{
		"path":      args.Path,
		"size":      info.Size(),
		"truncated": truncated,
	}
	return r, nil
}
