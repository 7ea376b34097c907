package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

type ToolType string

const (
	ToolTypeFunction ToolType = "function"

	// Tool Names
	ToolWebSearch  = "web_search"
	ToolCalculator = "calculator"
	ToolWeather    = "weather"
	ToolTranslate  = "translate"
	ToolWikiLookup = "wiki_lookup"
)

// OpenTool is a generic tool definition that is not tied to any specific model.
type OpenTool struct {
	Type     ToolType
	Function *OpenFunctionDefinition
}

// OpenFunctionDefinition is a generic function definition that is not tied to any specific model.
type OpenFunctionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Capability is one external tool the model may request mid-response.
type Capability interface {
	Name() string
	Definition() OpenTool
	Execute(ctx context.Context, argsJSON string) (string, error)
}

// ToolResult is the immutable outcome of one executed call.
type ToolResult struct {
	ToolCallID   string
	FunctionName string
	Content      string
	Success      bool
	Error        string
}

// ToolExecutionCoordinator dispatches completed tool calls to capabilities.
// One coordinator belongs to one session. The executing flag is the only
// shared mutable state between the network task and racing completion
// signals: at most one execution round may run at a time.
type ToolExecutionCoordinator struct {
	caps      map[string]Capability
	order     []string
	executing atomic.Bool
}

func NewToolExecutionCoordinator(caps ...Capability) *ToolExecutionCoordinator {
	c := &ToolExecutionCoordinator{caps: make(map[string]Capability)}
	for _, capability := range caps {
		c.Register(capability)
	}
	return c
}

func (c *ToolExecutionCoordinator) Register(capability Capability) {
	name := capability.Name()
	if _, exists := c.caps[name]; !exists {
		c.order = append(c.order, name)
	}
	c.caps[name] = capability
}

// Definitions returns the tool definitions in registration order, for
// request construction.
func (c *ToolExecutionCoordinator) Definitions() []OpenTool {
	defs := make([]OpenTool, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.caps[name].Definition())
	}
	return defs
}

// ExecuteAll runs every completed record in order and returns one result
// per record. The second return is false when another execution round
// already holds the lock; the caller treats that as a duplicate completion
// signal and does nothing.
//
// A failing capability yields ToolResult{Success:false} and never aborts
// its siblings or the session.
func (c *ToolExecutionCoordinator) ExecuteAll(ctx context.Context, records []*ToolCallRecord) ([]ToolResult, bool) {
	if !c.executing.CompareAndSwap(false, true) {
		Debugf("duplicate tool execution signal ignored")
		return nil, false
	}
	defer c.executing.Store(false)

	results := make([]ToolResult, 0, len(records))
	for _, rec := range records {
		results = append(results, c.executeOne(ctx, rec))
	}
	return results, true
}

func (c *ToolExecutionCoordinator) executeOne(ctx context.Context, rec *ToolCallRecord) ToolResult {
	result := ToolResult{
		ToolCallID:   rec.ID,
		FunctionName: rec.Name,
	}

	capability, ok := c.caps[rec.Name]
	if !ok {
		// Some models make up function names; answer with an error result
		// instead of failing the round.
		result.Error = fmt.Sprintf("unknown function: %s", rec.Name)
		Warnf("Tool call for unknown function %q skipped", rec.Name)
		return result
	}

	Debugf("Function Calling: %s(%s)", rec.Name, truncateForLog(rec.Arguments, 200))
	content, err := capability.Execute(ctx, rec.Arguments)
	if err != nil {
		result.Error = err.Error()
		Errorf("Tool %s failed: %v", rec.Name, err)
		return result
	}
	result.Content = content
	result.Success = true
	return result
}

// decodeArgs parses a tool call's accumulated argument JSON.
func decodeArgs(argsJSON string) (map[string]interface{}, error) {
	var argsMap map[string]interface{}
	if err := json.Unmarshal([]byte(argsJSON), &argsMap); err != nil {
		return nil, fmt.Errorf("error parsing arguments: %v", err)
	}
	return argsMap, nil
}

func stringArg(argsMap map[string]interface{}, key string) (string, error) {
	v, ok := argsMap[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s not found in arguments", key)
	}
	return v, nil
}
