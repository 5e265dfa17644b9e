// Package mcp provides optional MCP (Model Context Protocol) tool adapters for Courier.
// This package allows Courier to be driven by MCP-compatible agent frameworks.
//
// This package offers two approaches:
//
//  1. Full MCP Server (server.go) - RECOMMENDED
//     Use NewServer() for a complete MCP server implementation using mcp-go.
//     This provides full MCP protocol support with stdio transport.
//
//  2. Registry Pattern (tools.go)
//     Use RegisterTools() for framework-agnostic integration where you
//     provide your own MCP registry implementation.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/courier"
)

// Registry is an interface for MCP tool registration.
type Registry interface {
	Register(tool Tool)
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string
	Description string
	Parameters  Schema
	Handler     Handler
}

// Schema defines the JSON schema for tool parameters.
type Schema map[string]ParameterDef

// ParameterDef defines a single parameter.
type ParameterDef struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Handler is a function that handles tool invocations.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// RegisterTools registers Courier tools with an MCP registry. The tools
// mirror those served by NewServer but return structured values instead
// of formatted text.
func RegisterTools(registry Registry, client *courier.Client) {
	registry.Register(Tool{
		Name:        "courier_preferences",
		Description: "Return the current value of every preference",
		Parameters:  Schema{},
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return client.Preferences().GetAllPreferences()
		},
	})

	registry.Register(Tool{
		Name:        "courier_set_preference",
		Description: "Change one preference; the change is queued for sync",
		Parameters: Schema{
			"key": {
				Type:        "string",
				Description: "Preference key",
				Required:    true,
				Enum:        keyNames(),
			},
			"value": {
				Type:        "string",
				Description: "New value; text is parsed for the key's kind",
				Required:    true,
			},
		},
		Handler: makeSetPreferenceHandler(client),
	})

	registry.Register(Tool{
		Name:        "courier_sync",
		Description: "Push pending preference changes and unsynced call/SMS logs",
		Parameters: Schema{
			"scope": {
				Type:        "string",
				Description: "What to sync",
				Default:     "all",
				Enum:        []string{"preferences", "logs", "all"},
			},
		},
		Handler: makeSyncHandler(client),
	})

	registry.Register(Tool{
		Name:        "courier_force_sync",
		Description: "Replace local preferences with the backend's copy",
		Parameters:  Schema{},
		Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
			if err := client.ForceSync(ctx); err != nil {
				return nil, err
			}
			return client.Preferences().GetAllPreferences()
		},
	})

	registry.Register(Tool{
		Name:        "courier_status",
		Description: "Return sync status and local store statistics",
		Parameters:  Schema{},
		Handler: func(context.Context, json.RawMessage) (any, error) {
			stats, err := client.Stats()
			if err != nil {
				return nil, err
			}
			return &statusResult{Sync: client.Status(), Store: stats}, nil
		},
	})
}

// statusResult is the courier_status result.
type statusResult struct {
	Sync  courier.SyncStatus  `json:"sync"`
	Store *courier.StoreStats `json:"store"`
}

// setPreferenceParams represents the parameters for courier_set_preference.
type setPreferenceParams struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func makeSetPreferenceHandler(client *courier.Client) Handler {
	return func(_ context.Context, rawParams json.RawMessage) (any, error) {
		var params setPreferenceParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, fmt.Errorf("parse params: %w", err)
		}
		if params.Key == "" {
			return nil, fmt.Errorf("key is required")
		}
		if len(params.Value) == 0 {
			return nil, fmt.Errorf("value is required")
		}

		key, err := courier.ParsePreferenceKey(params.Key)
		if err != nil {
			return nil, err
		}

		var raw any
		var text string
		if err := json.Unmarshal(params.Value, &text); err == nil {
			raw = text
		} else {
			var v courier.Value
			if err := json.Unmarshal(params.Value, &v); err != nil {
				return nil, fmt.Errorf("parse value: %w", err)
			}
			raw = v
		}

		value, err := parseArgValue(key, raw)
		if err != nil {
			return nil, err
		}
		if err := client.Preferences().UpdatePreference(key, value); err != nil {
			return nil, err
		}
		return client.Preferences().GetAllPreferences()
	}
}

// syncParams represents the parameters for courier_sync.
type syncParams struct {
	Scope string `json:"scope"`
}

// syncResult is the courier_sync result.
type syncResult struct {
	Status courier.SyncStatus     `json:"status"`
	Logs   *courier.LogSyncResult `json:"logs,omitempty"`
}

func makeSyncHandler(client *courier.Client) Handler {
	return func(ctx context.Context, rawParams json.RawMessage) (any, error) {
		var params syncParams
		if len(rawParams) > 0 {
			if err := json.Unmarshal(rawParams, &params); err != nil {
				return nil, fmt.Errorf("parse params: %w", err)
			}
		}

		result := &syncResult{}
		switch params.Scope {
		case "preferences":
			if err := client.SyncPreferences(ctx); err != nil {
				return nil, err
			}
		case "logs":
			logs, err := client.SyncLogs(ctx)
			if err != nil {
				return nil, err
			}
			result.Logs = logs
		case "", "all":
			if err := client.SyncNow(ctx); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("invalid scope %q", params.Scope)
		}

		result.Status = client.Status()
		return result, nil
	}
}

func keyNames() []string {
	keys := courier.PreferenceKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return names
}
