package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidGraph is wrapped by every ConfigurationError.
var ErrInvalidGraph = errors.New("invalid flow graph")

// ConfigurationError lists every problem found in a flow's graph.
type ConfigurationError struct {
	FlowID   string
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("flow %s has an invalid graph: %s", e.FlowID, strings.Join(e.Problems, "; "))
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidGraph
}

func (e *ConfigurationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateGraph checks the structural invariants a flow must satisfy before
// it can be activated. Cycles are allowed; the walker stops on revisits.
func ValidateGraph(flow *Flow) error {
	cfgErr := &ConfigurationError{FlowID: flow.ID}

	if flow.Channel != ChannelEmail && flow.Channel != ChannelSMS {
		cfgErr.add("unsupported channel %q", flow.Channel)
	}

	nodes := make(map[string]*Node, len(flow.Nodes))
	triggers := 0

	for i, node := range flow.Nodes {
		if node == nil {
			cfgErr.add("node #%d is empty", i)

			continue
		}

		if node.ID == "" {
			cfgErr.add("node #%d has no id", i)

			continue
		}

		if _, dup := nodes[node.ID]; dup {
			cfgErr.add("duplicate node id %q", node.ID)

			continue
		}

		nodes[node.ID] = node

		if node.Type == NodeTypeTrigger {
			triggers++
		}

		validateNodeConfig(cfgErr, node)
	}

	if triggers != 1 {
		cfgErr.add("expected exactly one trigger node, found %d", triggers)
	}

	edgeIDs := make(map[string]struct{}, len(flow.Edges))
	outgoing := make(map[string][]*Edge)

	for i, edge := range flow.Edges {
		if edge == nil {
			cfgErr.add("edge #%d is empty", i)

			continue
		}

		err := validate.Struct(edge)
		if err != nil {
			cfgErr.add("edge %q: %v", edge.ID, err)

			continue
		}

		if _, dup := edgeIDs[edge.ID]; dup {
			cfgErr.add("duplicate edge id %q", edge.ID)
		}

		edgeIDs[edge.ID] = struct{}{}

		if _, ok := nodes[edge.Source]; !ok {
			cfgErr.add("edge %q references unknown source node %q", edge.ID, edge.Source)
		}

		target, ok := nodes[edge.Target]
		if !ok {
			cfgErr.add("edge %q references unknown target node %q", edge.ID, edge.Target)
		} else if target.Type == NodeTypeTrigger {
			cfgErr.add("edge %q points into trigger node %q", edge.ID, edge.Target)
		}

		outgoing[edge.Source] = append(outgoing[edge.Source], edge)
	}

	for id, node := range nodes {
		validateBranches(cfgErr, node, outgoing[id])
	}

	if len(cfgErr.Problems) > 0 {
		return cfgErr
	}

	return nil
}

func validateNodeConfig(cfgErr *ConfigurationError, node *Node) {
	err := validate.Struct(node)
	if err != nil {
		cfgErr.add("node %q: %v", node.ID, err)

		return
	}

	cfg := node.Config()
	if cfg == nil {
		cfgErr.add("node %q of type %s has no %s configuration", node.ID, node.Type, node.Type)

		return
	}

	err = validate.Struct(cfg)
	if err != nil {
		cfgErr.add("node %q: %v", node.ID, err)

		return
	}

	if node.Delay != nil {
		_, err = node.Delay.Duration()
		if err != nil {
			cfgErr.add("node %q: %v", node.ID, err)
		}
	}
}

func validateBranches(cfgErr *ConfigurationError, node *Node, edges []*Edge) {
	if node.Type != NodeTypeCondition {
		if len(edges) > 1 {
			cfgErr.add("%s node %q has %d outgoing edges, expected at most one (only the first would ever be followed)", node.Type, node.ID, len(edges))
		}

		for _, edge := range edges {
			if edge.BranchLabel != "" {
				cfgErr.add("edge %q from %s node %q must not carry branch label %q", edge.ID, node.Type, node.ID, edge.BranchLabel)
			}
		}

		return
	}

	labels := map[string]int{}
	for _, edge := range edges {
		labels[edge.BranchLabel]++
	}

	if labels["true"] != 1 {
		cfgErr.add("condition node %q needs exactly one \"true\" edge, found %d", node.ID, labels["true"])
	}

	if labels["false"] > 1 {
		cfgErr.add("condition node %q has %d \"false\" edges, expected at most one", node.ID, labels["false"])
	}

	if labels[""] > 0 {
		cfgErr.add("condition node %q has %d unlabeled edges", node.ID, labels[""])
	}
}
