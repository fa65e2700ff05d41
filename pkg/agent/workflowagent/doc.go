// Package workflowagent provides workflow agents for composing multi-agent
// flows out of ordinary agent.Agent values.
//
// Four combinators are provided:
//
// # Sequential
//
// Runs sub-agents once, in the order they are listed:
//
//	a, _ := workflowagent.NewSequential(workflowagent.SequentialConfig{
//	    Name:        "pipeline",
//	    Description: "Processes data through multiple stages",
//	    SubAgents:   []agent.Agent{stage1, stage2, stage3},
//	})
//
// # Parallel
//
// Runs sub-agents simultaneously, each on its own branch:
//
//	a, _ := workflowagent.NewParallel(workflowagent.ParallelConfig{
//	    Name:        "voters",
//	    Description: "Gets multiple perspectives simultaneously",
//	    SubAgents:   []agent.Agent{voter1, voter2, voter3},
//	})
//
// # Loop
//
// Runs sub-agents repeatedly for N iterations or until one escalates:
//
//	a, _ := workflowagent.NewLoop(workflowagent.LoopConfig{
//	    Name:          "refiner",
//	    Description:   "Iteratively refines output",
//	    SubAgents:     []agent.Agent{reviewer, improver},
//	    MaxIterations: 3,
//	})
//
// # Conditional
//
// Picks a single branch to run based on a predicate evaluated once, at the
// start of the invocation:
//
//	a, _ := workflowagent.NewConditional(workflowagent.ConditionalConfig{
//	    Name: "router",
//	    If: func(ctx agent.InvocationContext) bool {
//	        v, _ := ctx.Session().State().Get("user:is_premium")
//	        return v == true
//	    },
//	    Then: premiumHandler,
//	    Else: standardHandler,
//	})
package workflowagent
