package workflowagent

import (
	"github.com/zavora-ai/adk-go/pkg/agent"
)

// SequentialConfig configures a sequential agent.
type SequentialConfig struct {
	Name        string
	Description string

	// SubAgents are the agents to run in order.
	SubAgents []agent.Agent
}

// NewSequential builds an agent that runs its sub-agents once, in the order
// they are listed. It is a LoopAgent with MaxIterations=1.
//
// Use it for a fixed-order processing pipeline.
func NewSequential(cfg SequentialConfig) (agent.Agent, error) {
	return NewLoop(LoopConfig{
		Name:          cfg.Name,
		Description:   cfg.Description,
		SubAgents:     cfg.SubAgents,
		MaxIterations: 1,
	})
}
