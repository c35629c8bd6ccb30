// Command server wires the turn orchestration engine together: config,
// Redis-backed session store, the lane/agent registry, the intent
// router, the Controller, and the Orchestration Job. It does not attempt
// response delivery, start an HTTP listener, or poll any provider
// webhook queue — a production scheduler supplies messages to Job.Run;
// this binary only demonstrates the wiring those callers depend on.
package main

import (
	"os"

	"github.com/sergiobayona/lexi-commerce-sub001/agent"
	"github.com/sergiobayona/lexi-commerce-sub001/agents"
	"github.com/sergiobayona/lexi-commerce-sub001/core"
	"github.com/sergiobayona/lexi-commerce-sub001/job"
	"github.com/sergiobayona/lexi-commerce-sub001/orchestrator"
	"github.com/sergiobayona/lexi-commerce-sub001/pkg/logger"
	"github.com/sergiobayona/lexi-commerce-sub001/router"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/telemetry"
)

func main() {
	log := logger.NewJSONLogger().WithComponent("server")

	cfg, err := core.NewConfig(core.WithLogger(log))
	if err != nil {
		fatal(log, "invalid configuration", err)
	}

	redisClient, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL:  cfg.RedisURL,
		DB:        core.RedisDBSessions,
		Namespace: "orchestrator",
		Logger:    cfg.Logger,
	})
	if err != nil {
		fatal(log, "redis connection failed", err)
	}
	defer redisClient.Close()

	store := session.NewRedisStore(redisClient)

	laneConfig, err := os.ReadFile(cfg.AgentsConfigPath)
	if err != nil {
		laneConfig = builtinLaneConfig
	}

	registry, err := agent.BuildRegistry(laneConfig, map[string]agent.Factory{
		"info":     agents.NewInfoAgent,
		"commerce": agents.NewCommerceAgent,
		"product":  agents.NewProductAgent,
		"order":    agents.NewOrderAgent,
		"support":  agents.NewSupportAgent,
	})
	if err != nil {
		fatal(log, "lane registry configuration", err)
	}

	classifier := router.DeterministicClassifier{Rules: []router.Rule{
		{Keyword: "ordenar", Lane: "commerce", Intent: "start_order"},
		{Keyword: "pedido", Lane: "order", Intent: "track_order"},
		{Keyword: "ayuda", Lane: "support", Intent: "open_case"},
		{Keyword: "precio", Lane: "product", Intent: "product_question"},
	}}

	intentRouter, err := router.New(classifier, registry.Lanes(), registry.DefaultLane(),
		router.WithTimeout(cfg.RouterTimeout),
		router.WithLogger(cfg.Logger),
	)
	if err != nil {
		fatal(log, "router configuration", err)
	}

	tel := telemetry.NewProvider("orchestrator")
	controller := orchestrator.New(store, intentRouter, registry, cfg, tel)

	turnJob := job.New(store, controller, cfg.Logger, cfg.OrchestratedTTL)
	_ = turnJob

	log.Info("orchestrator wired", map[string]interface{}{
		"lanes":          registry.LaneIDs(),
		"default_lane":   registry.DefaultLane(),
		"max_baton_hops": cfg.MaxBatonHops,
	})
}

func fatal(log core.Logger, msg string, err error) {
	log.Error(msg, map[string]interface{}{"error": err.Error()})
	os.Exit(1)
}

var builtinLaneConfig = []byte(`
lanes:
  - id: info
    description: greetings and general questions
    is_default: true
  - id: commerce
    description: cart building and checkout
  - id: product
    description: catalog questions
  - id: order
    description: order verification and tracking
  - id: support
    description: support case handling
`)
