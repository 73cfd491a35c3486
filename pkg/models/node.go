// Package models defines core node models for flow graph execution
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeType tags which configuration a Node carries.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeMessage   NodeType = "message"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
)

var ErrUnknownNodeType = errors.New("unknown node type")

// Node is a tagged union over the five node kinds. Exactly one of the
// config pointers is set and it always matches Type.
type Node struct {
	ID   string   `json:"id"   validate:"required"`
	Type NodeType `json:"type" validate:"required,oneof=trigger message delay condition action"`
	Name string   `json:"name"`

	Trigger   *TriggerConfig   `json:"-"`
	Message   *MessageConfig   `json:"-"`
	Delay     *DelayConfig     `json:"-"`
	Condition *ConditionConfig `json:"-"`
	Action    *ActionConfig    `json:"-"`
}

// NewTriggerNode builds a trigger node.
func NewTriggerNode(id string, cfg TriggerConfig) *Node {
	return &Node{ID: id, Type: NodeTypeTrigger, Trigger: &cfg}
}

// NewMessageNode builds a message node.
func NewMessageNode(id string, cfg MessageConfig) *Node {
	return &Node{ID: id, Type: NodeTypeMessage, Message: &cfg}
}

// NewDelayNode builds a delay node.
func NewDelayNode(id string, cfg DelayConfig) *Node {
	return &Node{ID: id, Type: NodeTypeDelay, Delay: &cfg}
}

// NewConditionNode builds a condition node.
func NewConditionNode(id string, cfg ConditionConfig) *Node {
	return &Node{ID: id, Type: NodeTypeCondition, Condition: &cfg}
}

// NewActionNode builds an action node.
func NewActionNode(id string, cfg ActionConfig) *Node {
	return &Node{ID: id, Type: NodeTypeAction, Action: &cfg}
}

// Config returns the typed configuration selected by Type, or nil when the
// node is in an inconsistent state.
func (n *Node) Config() any {
	switch n.Type {
	case NodeTypeTrigger:
		if n.Trigger != nil {
			return n.Trigger
		}
	case NodeTypeMessage:
		if n.Message != nil {
			return n.Message
		}
	case NodeTypeDelay:
		if n.Delay != nil {
			return n.Delay
		}
	case NodeTypeCondition:
		if n.Condition != nil {
			return n.Condition
		}
	case NodeTypeAction:
		if n.Action != nil {
			return n.Action
		}
	}

	return nil
}

// IsEndFlow reports whether the node is an action that terminates the flow.
func (n *Node) IsEndFlow() bool {
	return n.Type == NodeTypeAction && n.Action != nil && n.Action.Kind == ActionKindEndFlow
}

type nodeJSON struct {
	ID   string          `json:"id"`
	Type NodeType        `json:"type"`
	Name string          `json:"name,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the node with its typed config under "data".
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{ID: n.ID, Type: n.Type, Name: n.Name}

	if cfg := n.Config(); cfg != nil {
		data, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s config of node %s: %w", n.Type, n.ID, err)
		}

		out.Data = data
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes "data" into the config selected by "type".
func (n *Node) UnmarshalJSON(b []byte) error {
	var in nodeJSON

	err := json.Unmarshal(b, &in)
	if err != nil {
		return err
	}

	*n = Node{ID: in.ID, Type: in.Type, Name: in.Name}

	data := in.Data
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}

	switch in.Type {
	case NodeTypeTrigger:
		n.Trigger = &TriggerConfig{}
		err = json.Unmarshal(data, n.Trigger)
	case NodeTypeMessage:
		n.Message = &MessageConfig{}
		err = json.Unmarshal(data, n.Message)
	case NodeTypeDelay:
		n.Delay = &DelayConfig{}
		err = json.Unmarshal(data, n.Delay)
	case NodeTypeCondition:
		n.Condition = &ConditionConfig{}
		err = json.Unmarshal(data, n.Condition)
	case NodeTypeAction:
		n.Action = &ActionConfig{}
		err = json.Unmarshal(data, n.Action)
	default:
		return fmt.Errorf("%w %q for node %s", ErrUnknownNodeType, in.Type, in.ID)
	}

	if err != nil {
		return fmt.Errorf("failed to decode %s config of node %s: %w", in.Type, in.ID, err)
	}

	return nil
}
